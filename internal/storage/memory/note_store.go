package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type noteStore struct {
	t *tx
}

func (r noteStore) Append(ctx context.Context, note domain.OrderNote) (domain.OrderNote, error) {
	if err := r.t.check(); err != nil {
		return domain.OrderNote{}, err
	}
	if _, ok := orderStore(r).lookup(note.OrderID); !ok {
		return domain.OrderNote{}, domain.ErrOrderNotFound
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = r.t.store.now()
	}

	r.t.lastNoteID++
	note.ID = r.t.lastNoteID
	r.t.notes[note.OrderID] = append(r.t.notes[note.OrderID], note)
	return note, nil
}

func (r noteStore) List(ctx context.Context, orderID string) ([]domain.OrderNote, error) {
	if err := r.t.check(); err != nil {
		return nil, err
	}
	committed := r.t.store.notes[orderID]
	staged := r.t.notes[orderID]
	notes := make([]domain.OrderNote, 0, len(committed)+len(staged))
	notes = append(notes, committed...)
	notes = append(notes, staged...)
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].NewerThan(notes[j])
	})
	return notes, nil
}

var _ domain.NoteStore = noteStore{}
