// Package tree implements the channel tree builder: a pure transform
// from a flat sequence of Channel rows to a sorted nested forest.
package tree

import (
	"sort"

	"github.com/akinalp/reson8/models"
)

// Build assembles channels into a forest. Roots are channels with a nil
// ParentID, or a ParentID that names a channel not present in the input
// (a dangling reference) — both surface as roots rather than being
// dropped. Roots and every children slice are sorted ascending by
// Position, with ID as a deterministic tiebreaker. Occupants are always
// left empty; populating them from presence is the caller's job.
//
// O(n) time and space. Re-running Build on the same input always produces
// the same shape and order.
func Build(channels []models.Channel) []*models.ChannelNode {
	nodes := make(map[string]*models.ChannelNode, len(channels))
	for _, ch := range channels {
		nodes[ch.ID] = &models.ChannelNode{
			Channel:   ch,
			Occupants: []string{},
			Children:  []*models.ChannelNode{},
		}
	}

	var roots []*models.ChannelNode
	for _, ch := range channels {
		node := nodes[ch.ID]
		if ch.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*ch.ParentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortNodes(roots)
	for _, node := range nodes {
		sortNodes(node.Children)
	}

	return roots
}

// Flatten walks a forest built by Build back into the flat Channel rows
// it came from; Build(Flatten(forest)) reproduces the forest up to shape
// and order.
func Flatten(forest []*models.ChannelNode) []models.Channel {
	var out []models.Channel
	var walk func(nodes []*models.ChannelNode)
	walk = func(nodes []*models.ChannelNode) {
		for _, n := range nodes {
			out = append(out, n.Channel)
			walk(n.Children)
		}
	}
	walk(forest)
	return out
}

func sortNodes(nodes []*models.ChannelNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Position != nodes[j].Position {
			return nodes[i].Position < nodes[j].Position
		}
		return nodes[i].ID < nodes[j].ID
	})
}
