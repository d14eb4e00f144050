package terminal

import (
	"testing"

	"github.com/cutroom/floor-service/internal/access"
	"github.com/cutroom/floor-service/internal/models"
)

func TestFilterSpreaderQueue(t *testing.T) {
	items := []models.Mattress{
		{ID: 1, Device: "SP1", Status: models.StatusToLoad, Shift: models.Shift1, Position: 3},
		{ID: 2, Device: "SP1", Status: models.StatusOnSpread, Shift: models.Shift1, Position: 1},
		{ID: 3, Device: "SP1", Status: models.StatusToLoad, Shift: models.Shift2, Position: 2},
		{ID: 4, Device: "SP1", Status: models.StatusToCut, Shift: models.Shift1, Position: 0},
		{ID: 5, Device: "SP2", Status: models.StatusToLoad, Shift: models.Shift1, Position: 0},
		{ID: 6, Device: "SP1", Status: models.StatusToLoad, Shift: models.Shift2, Position: 1},
	}

	q := FilterSpreaderQueue(items, "SP1")

	if got := ids(q.Shift1); !equalIDs(got, []int64{2, 1}) {
		t.Errorf("shift 1 = %v, want [2 1]", got)
	}
	if got := ids(q.Shift2); !equalIDs(got, []int64{6, 3}) {
		t.Errorf("shift 2 = %v, want [6 3]", got)
	}
	if q.Len() != 4 {
		t.Errorf("expected 4 items, got %d", q.Len())
	}
}

func TestFilterCutterQueueFollowsRoutes(t *testing.T) {
	routes := access.NewRoutes(nil)
	items := []models.Mattress{
		{ID: 1, Device: "SP1", Status: models.StatusToCut},
		{ID: 2, Device: "SP2", Status: models.StatusToCut},
		{ID: 3, Device: "MS", Status: models.StatusToCut},
		{ID: 4, Device: "CT2", Status: models.StatusOnCut},
		{ID: 5, Device: "CT2", Status: models.StatusToCut},
		{ID: 6, Device: "SP1", Status: models.StatusOnSpread},
		{ID: 7, Device: "CT1", Status: models.StatusCompleted},
	}

	tests := []struct {
		cutter string
		want   []int64
	}{
		{"CT1", []int64{1}},
		{"CT2", []int64{2, 3, 4, 5}},
		{"CT9", nil},
	}

	for _, tt := range tests {
		got := ids(FilterCutterQueue(items, tt.cutter, routes))
		if !equalIDs(got, tt.want) {
			t.Errorf("FilterCutterQueue(%s) = %v, want %v", tt.cutter, got, tt.want)
		}
	}
}

func TestClaimedItemLeavesOtherCutters(t *testing.T) {
	routes := access.NewRoutes(map[string][]string{"CT1": {"SP1"}, "CT2": {"SP1"}})
	claimed := models.Mattress{ID: 1, Device: "CT2", Status: models.StatusOnCut}

	if CutterCanSee(claimed, "CT1", routes) {
		t.Error("CT1 must not see an item claimed by CT2")
	}
	if !CutterCanSee(claimed, "CT2", routes) {
		t.Error("CT2 must keep seeing its claimed item")
	}
}

func TestActiveFor(t *testing.T) {
	items := []models.Mattress{
		{ID: 1, Device: "SP1", Status: models.StatusToLoad},
		{ID: 2, Device: "SP2", Status: models.StatusOnSpread},
		{ID: 3, Device: "SP1", Status: models.StatusOnSpread},
	}

	if m := ActiveFor(items, "SP1"); m == nil || m.ID != 3 {
		t.Errorf("expected item 3, got %+v", m)
	}
	if m := ActiveFor(items, "SP3"); m != nil {
		t.Errorf("expected nothing for SP3, got %+v", m)
	}
}

func ids(items []models.Mattress) []int64 {
	var out []int64
	for _, m := range items {
		out = append(out, m.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
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
