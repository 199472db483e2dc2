package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type orderStore struct {
	t *tx
}

func (r orderStore) Insert(ctx context.Context, order domain.Order) (domain.VersionToken, error) {
	if err := r.t.check(); err != nil {
		return nil, err
	}
	if _, ok := r.lookup(order.ID); ok {
		return nil, fmt.Errorf("%w: order %s already exists", domain.ErrDataIntegrity, order.ID)
	}

	r.t.lastVersion++
	order.Version = domain.VersionFromUint64(r.t.lastVersion)
	r.t.orders[order.ID] = cloneOrder(order)
	return order.Version, nil
}

func (r orderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := r.t.check(); err != nil {
		return domain.Order{}, err
	}
	order, ok := r.lookup(id)
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// GetForUpdate совпадает с Get: транзакция уже исключительная.
func (r orderStore) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.Get(ctx, id)
}

func (r orderStore) Update(ctx context.Context, order domain.Order, expected domain.VersionToken) (domain.VersionToken, error) {
	if err := r.t.check(); err != nil {
		return nil, err
	}
	current, ok := r.lookup(order.ID)
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if !current.Version.Equal(expected) {
		return nil, domain.ErrConcurrencyConflict
	}

	r.t.lastVersion++
	order.Version = domain.VersionFromUint64(r.t.lastVersion)
	order.CreatedAt = current.CreatedAt
	order.CreatedBy = current.CreatedBy
	r.t.orders[order.ID] = cloneOrder(order)
	return order.Version, nil
}

func (r orderStore) LastOrderID(ctx context.Context, prefix string) (string, bool, error) {
	if err := r.t.check(); err != nil {
		return "", false, err
	}
	last := ""
	for _, id := range r.ids() {
		if strings.HasPrefix(id, prefix) && id > last {
			last = id
		}
	}
	return last, last != "", nil
}

func (r orderStore) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	if err := r.t.check(); err != nil {
		return nil, 0, err
	}

	statuses := statusStore(r)
	matched := make([]domain.Order, 0)
	for _, id := range r.ids() {
		order, _ := r.lookup(id)
		if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" {
			latest, ok := latestOf(statuses.entries(id))
			if !ok || latest.Status != filter.Status {
				continue
			}
		}
		matched = append(matched, order)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	page := make([]domain.Order, 0, end-start)
	for _, order := range matched[start:end] {
		page = append(page, cloneOrder(order))
	}
	return page, total, nil
}

func (r orderStore) lookup(id string) (domain.Order, bool) {
	if order, ok := r.t.orders[id]; ok {
		return order, true
	}
	order, ok := r.t.store.orders[id]
	return order, ok
}

func (r orderStore) ids() []string {
	ids := make([]string, 0, len(r.t.store.orders)+len(r.t.orders))
	for id := range r.t.store.orders {
		ids = append(ids, id)
	}
	for id := range r.t.orders {
		if _, ok := r.t.store.orders[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Version = append(domain.VersionToken(nil), src.Version...)
	dst.ProcessTypeID = cloneInt(src.ProcessTypeID)
	dst.MaterialID = cloneInt(src.MaterialID)
	dst.ColorID = cloneInt(src.ColorID)
	dst.SurfaceFinishID = cloneInt(src.SurfaceFinishID)
	dst.OrderedQuantity = cloneInt(src.OrderedQuantity)
	dst.ManufacturedQuantity = cloneInt(src.ManufacturedQuantity)
	dst.LeadTimeDays = cloneInt(src.LeadTimeDays)
	dst.Requirements = cloneString(src.Requirements)
	dst.MaterialName = cloneString(src.MaterialName)
	dst.ColorName = cloneString(src.ColorName)
	dst.SurfaceFinishName = cloneString(src.SurfaceFinishName)
	dst.PaymentID = cloneString(src.PaymentID)
	dst.AssignedEmployeeID = cloneString(src.AssignedEmployeeID)
	dst.DepartmentID = cloneString(src.DepartmentID)
	if src.MaterialCacheUpdatedAt != nil {
		v := *src.MaterialCacheUpdatedAt
		dst.MaterialCacheUpdatedAt = &v
	}
	if src.PromisedDeliveryDate != nil {
		v := *src.PromisedDeliveryDate
		dst.PromisedDeliveryDate = &v
	}
	if src.ActualDeliveryDate != nil {
		v := *src.ActualDeliveryDate
		dst.ActualDeliveryDate = &v
	}
	if src.QuotedAmount != nil {
		v := *src.QuotedAmount
		dst.QuotedAmount = &v
	}
	return dst
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var _ domain.OrderStore = orderStore{}
