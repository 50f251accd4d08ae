// Package services holds the business layer between the event router and
// the stores: session lifecycle, channel CRUD, messages, and role
// administration. The channel and message services broadcast their own
// resulting events through the ws.Publisher they are handed; the session
// and admin services only return results, and the event router does any
// broadcasting for them.
package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/akinalp/reson8/durable"
	"github.com/akinalp/reson8/models"
	"github.com/akinalp/reson8/pkg"
	"github.com/akinalp/reson8/presence"
	"github.com/akinalp/reson8/tree"
)

// treeWithOccupants materializes the server's channel forest and fills
// every node's occupants from the Presence Store — the builder itself
// always leaves them empty. Occupant lists are sorted so identical
// presence always yields an identical tree.
func treeWithOccupants(ctx context.Context, channels durable.ChannelRepository, pres presence.Store, serverID string) ([]*models.ChannelNode, error) {
	rows, err := channels.GetByServerID(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	forest := tree.Build(rows)

	var fill func(nodes []*models.ChannelNode) error
	fill = func(nodes []*models.ChannelNode) error {
		for _, node := range nodes {
			members, err := pres.ChannelMembers(ctx, node.ID)
			if err != nil {
				return err
			}
			if members == nil {
				members = []string{}
			}
			sort.Strings(members)
			node.Occupants = members
			if err := fill(node.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := fill(forest); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBackend, err)
	}

	if forest == nil {
		forest = []*models.ChannelNode{}
	}
	return forest, nil
}
