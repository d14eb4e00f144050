package terminal

import (
	"sort"
	"strings"

	"github.com/cutroom/floor-service/internal/access"
	"github.com/cutroom/floor-service/internal/models"
)

// SpreaderQueue is the work of one spreader split by shift
type SpreaderQueue struct {
	Shift1 []models.Mattress
	Shift2 []models.Mattress
}

// Len returns the number of queued items
func (q SpreaderQueue) Len() int {
	return len(q.Shift1) + len(q.Shift2)
}

// FilterSpreaderQueue keeps the items of device waiting for or under spreading.
// Anything not marked 2shift lands in the first shift bucket.
func FilterSpreaderQueue(items []models.Mattress, device string) SpreaderQueue {
	var q SpreaderQueue
	for _, m := range items {
		if !strings.EqualFold(m.Device, device) {
			continue
		}
		if m.Status != models.StatusToLoad && m.Status != models.StatusOnSpread {
			continue
		}
		if m.Shift == models.Shift2 {
			q.Shift2 = append(q.Shift2, m)
		} else {
			q.Shift1 = append(q.Shift1, m)
		}
	}
	sortByPosition(q.Shift1)
	sortByPosition(q.Shift2)
	return q
}

// FilterCutterQueue keeps the items a cutter may work on: its own TO CUT and
// ON CUT items plus unclaimed TO CUT items coming from its spreaders.
func FilterCutterQueue(items []models.Mattress, cutter string, routes access.Routes) []models.Mattress {
	var out []models.Mattress
	for _, m := range items {
		if CutterCanSee(m, cutter, routes) {
			out = append(out, m)
		}
	}
	sortByPosition(out)
	return out
}

// CutterCanSee reports whether m belongs in the queue of cutter
func CutterCanSee(m models.Mattress, cutter string, routes access.Routes) bool {
	if strings.EqualFold(m.Device, cutter) {
		return m.Status == models.StatusToCut || m.Status == models.StatusOnCut
	}
	return m.Status == models.StatusToCut &&
		!access.IsCutterDevice(m.Device) &&
		routes.Accepts(cutter, m.Device)
}

// ActiveFor returns the item device is currently working on, if any
func ActiveFor(items []models.Mattress, device string) *models.Mattress {
	for i := range items {
		if strings.EqualFold(items[i].Device, device) && items[i].Status.IsActive() {
			m := items[i]
			return &m
		}
	}
	return nil
}

// Find returns the item with the given id
func Find(items []models.Mattress, id int64) *models.Mattress {
	for i := range items {
		if items[i].ID == id {
			m := items[i]
			return &m
		}
	}
	return nil
}

func sortByPosition(items []models.Mattress) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
}
