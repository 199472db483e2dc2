package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type statusStore struct {
	t *tx
}

func (r statusStore) Append(ctx context.Context, entry domain.StatusEntry) (domain.StatusEntry, error) {
	if err := r.t.check(); err != nil {
		return domain.StatusEntry{}, err
	}
	if _, ok := orderStore(r).lookup(entry.OrderID); !ok {
		return domain.StatusEntry{}, domain.ErrOrderNotFound
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.t.store.now()
	}

	r.t.lastStatusID++
	entry.ID = r.t.lastStatusID
	entry.InternalNotes = cloneString(entry.InternalNotes)
	entry.CustomerNotes = cloneString(entry.CustomerNotes)
	r.t.statuses[entry.OrderID] = append(r.t.statuses[entry.OrderID], entry)
	return entry, nil
}

func (r statusStore) Latest(ctx context.Context, orderID string) (domain.StatusEntry, bool, error) {
	if err := r.t.check(); err != nil {
		return domain.StatusEntry{}, false, err
	}
	entry, ok := latestOf(r.entries(orderID))
	return entry, ok, nil
}

func (r statusStore) History(ctx context.Context, orderID string) ([]domain.StatusEntry, error) {
	if err := r.t.check(); err != nil {
		return nil, err
	}
	entries := r.entries(orderID)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[j].Later(entries[i])
	})
	return entries, nil
}

// entries возвращает копию committed и staged записей заказа.
func (r statusStore) entries(orderID string) []domain.StatusEntry {
	committed := r.t.store.statuses[orderID]
	staged := r.t.statuses[orderID]
	out := make([]domain.StatusEntry, 0, len(committed)+len(staged))
	out = append(out, committed...)
	out = append(out, staged...)
	return out
}

func latestOf(entries []domain.StatusEntry) (domain.StatusEntry, bool) {
	if len(entries) == 0 {
		return domain.StatusEntry{}, false
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.Later(latest) {
			latest = e
		}
	}
	return latest, true
}

var _ domain.StatusStore = statusStore{}
