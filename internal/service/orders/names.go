package orders

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// NameResolver отдаёт отображаемое название позиции справочника материалов.
type NameResolver interface {
	DisplayName(ctx context.Context, kind domain.MaterialKind, id int) (string, error)
}

// resolvedNames названия, полученные до открытия транзакции.
type resolvedNames struct {
	names map[domain.MaterialKind]string
	at    time.Time
}

func (r resolvedNames) empty() bool {
	return len(r.names) == 0
}

// applyTo записывает разрешённые названия в заказ.
func (r resolvedNames) applyTo(order *domain.Order) {
	if r.empty() {
		return
	}
	for kind, name := range r.names {
		n := name
		order.SetMaterialName(kind, &n)
	}
	at := r.at
	order.MaterialCacheUpdatedAt = &at
}

// applyToPatch переносит названия в патч, чтобы они сохранились вместе с изменением ссылок.
func (r resolvedNames) applyToPatch(patch *domain.OrderPatch) {
	if r.empty() {
		return
	}
	for kind, name := range r.names {
		n := name
		switch kind {
		case domain.MaterialKindMaterial:
			patch.MaterialName = &n
		case domain.MaterialKindColor:
			patch.ColorName = &n
		case domain.MaterialKindSurfaceFinish:
			patch.SurfaceFinishName = &n
		}
	}
	at := r.at
	patch.NamesResolvedAt = &at
}

// resolveNames запрашивает названия по ссылкам. Недоступность справочника не блокирует запись:
// название, которое не удалось получить для новой ссылки, остаётся пустым до следующего чтения.
func (s *Service) resolveNames(ctx context.Context, refs map[domain.MaterialKind]int) resolvedNames {
	out := resolvedNames{names: make(map[domain.MaterialKind]string, len(refs))}
	if s.names == nil || len(refs) == 0 {
		return out
	}
	for kind, id := range refs {
		name, err := s.names.DisplayName(ctx, kind, id)
		if err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"kind": kind,
				"id":   id,
			}).Warn("material name lookup failed")
			continue
		}
		out.names[kind] = name
	}
	if !out.empty() {
		out.at = s.now()
	}
	return out
}

// refreshNames обновляет устаревшие или недостающие названия в прочитанном заказе
// без записи в хранилище.
func (s *Service) refreshNames(ctx context.Context, order *domain.Order) {
	if s.names == nil {
		return
	}
	at := order.MaterialCacheUpdatedAt
	if at != nil && s.now().Sub(*at) < s.namesTTL && !order.MissingMaterialNames() {
		return
	}
	refs := refsOf(order.MaterialID, order.ColorID, order.SurfaceFinishID)
	s.resolveNames(ctx, refs).applyTo(order)
}
