package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// AddNoteRequest новая заметка к заказу.
type AddNoteRequest struct {
	Type domain.NoteType
	Text string
}

// Validate проверяет тип и текст заметки.
func (r AddNoteRequest) Validate() error {
	v := &domain.ValidationError{}
	if r.Type == "" {
		v.Add("noteType", "is required")
	} else if !r.Type.Valid() {
		v.Add("noteType", "must be one of: customer, internal")
	}
	text := strings.TrimSpace(r.Text)
	if text == "" {
		v.Add("noteText", "is required")
	}
	checkLength(v, "noteText", &text, maxNotesLength)
	return v.OrNil()
}

// AddNote добавляет заметку к существующему заказу. Автором считается actor.
func (s *Service) AddNote(ctx context.Context, tx domain.Tx, orderID string, req AddNoteRequest, actor string) (domain.OrderNote, error) {
	defer s.metrics.ObserveOperation("add_note", time.Now())

	if err := requireActor(actor); err != nil {
		return domain.OrderNote{}, err
	}
	if err := req.Validate(); err != nil {
		return domain.OrderNote{}, err
	}

	var note domain.OrderNote
	err := withinTx(ctx, s.transactor, tx, func(tx domain.Tx) error {
		if _, err := tx.Orders().Get(ctx, orderID); err != nil {
			return err
		}
		var err error
		note, err = tx.Notes().Append(ctx, domain.OrderNote{
			OrderID:   orderID,
			Type:      req.Type,
			Text:      strings.TrimSpace(req.Text),
			CreatedBy: actor,
			CreatedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("append note for %s: %w", orderID, err)
		}
		return nil
	})
	if err != nil {
		return domain.OrderNote{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":  orderID,
		"note_id":   note.ID,
		"note_type": note.Type,
		"actor":     actor,
	}).Info("order note added")
	return note, nil
}

// Notes возвращает заметки заказа, новые первыми.
func (s *Service) Notes(ctx context.Context, orderID string) ([]domain.OrderNote, error) {
	defer s.metrics.ObserveOperation("list_notes", time.Now())

	var notes []domain.OrderNote
	err := withinTx(ctx, s.transactor, nil, func(tx domain.Tx) error {
		if _, err := tx.Orders().Get(ctx, orderID); err != nil {
			return err
		}
		var err error
		notes, err = tx.Notes().List(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list notes for %s: %w", orderID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}
