package tree

import (
	"testing"

	"github.com/akinalp/reson8/models"
)

func strp(s string) *string { return &s }

func TestBuildOrdersSiblingsByPosition(t *testing.T) {
	rows := []models.Channel{
		{ID: "R", ParentID: nil, Position: 0},
		{ID: "A", ParentID: strp("R"), Position: 1},
		{ID: "B", ParentID: strp("R"), Position: 0},
	}

	forest := Build(rows)
	if len(forest) != 1 || forest[0].ID != "R" {
		t.Fatalf("expected single root R, got %+v", forest)
	}
	children := forest[0].Children
	if len(children) != 2 || children[0].ID != "B" || children[1].ID != "A" {
		t.Fatalf("expected children [B, A], got %v", ids(children))
	}
}

func TestBuildToleratesOrphans(t *testing.T) {
	rows := []models.Channel{
		{ID: "X", ParentID: strp("missing"), Position: 0},
		{ID: "Y", ParentID: nil, Position: 1},
	}

	forest := Build(rows)
	if len(forest) != 2 || forest[0].ID != "X" || forest[1].ID != "Y" {
		t.Fatalf("expected roots [X, Y], got %v", ids(forest))
	}
}

func TestBuildIsStableAcrossReruns(t *testing.T) {
	rows := []models.Channel{
		{ID: "R", ParentID: nil, Position: 0},
		{ID: "C1", ParentID: strp("R"), Position: 5},
		{ID: "C2", ParentID: strp("R"), Position: 5},
	}

	first := ids(Build(rows)[0].Children)
	second := ids(Build(rows)[0].Children)
	if first[0] != second[0] || first[1] != second[1] {
		t.Fatalf("expected stable order across reruns, got %v then %v", first, second)
	}
	// Equal positions fall back to id ordering as a deterministic tiebreaker.
	if first[0] != "C1" || first[1] != "C2" {
		t.Fatalf("expected id tiebreak [C1, C2], got %v", first)
	}
}

func TestBuildFlattenRoundTrip(t *testing.T) {
	rows := []models.Channel{
		{ID: "R", ParentID: nil, Position: 0},
		{ID: "A", ParentID: strp("R"), Position: 0},
		{ID: "B", ParentID: strp("R"), Position: 1},
		{ID: "Z", ParentID: nil, Position: 1},
	}

	forest := Build(rows)
	flat := Flatten(forest)
	forestAgain := Build(flat)

	if ids(forestAgain) != nil && !equalIDs(ids(forest), ids(forestAgain)) {
		t.Fatalf("round-trip root order mismatch: %v vs %v", ids(forest), ids(forestAgain))
	}
}

func TestOccupantsStartEmpty(t *testing.T) {
	forest := Build([]models.Channel{{ID: "R", Position: 0}})
	if len(forest[0].Occupants) != 0 {
		t.Fatalf("expected builder to leave occupants empty, got %v", forest[0].Occupants)
	}
}

func ids(nodes []*models.ChannelNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
