package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/orders"
)

// defaultDeleteReason причина отмены через DELETE без явной причины.
const defaultDeleteReason = "Cancelled by request"

// Handler HTTP-адаптер над сервисом заказов.
type Handler struct {
	service *orders.Service
	batch   *orders.BatchCoordinator
	logger  *log.Entry
}

// NewHandler создаёт обработчики заказов.
func NewHandler(service *orders.Service, batch *orders.BatchCoordinator, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{service: service, batch: batch, logger: logger}
}

func (h *Handler) listOrders(c *gin.Context) {
	query := orders.ListQuery{CustomerID: strings.TrimSpace(c.Query("customerId"))}

	var err error
	if query.Page, err = intQuery(c, "page"); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if query.PageSize, err = intQuery(c, "pageSize"); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if raw := c.Query("status"); raw != "" {
		if query.Status, err = domain.ParseOrderStatus(raw); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	page, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	items := make([]orderResponse, 0, len(page.Items))
	for _, view := range page.Items {
		items = append(items, toOrderResponse(view))
	}
	c.JSON(http.StatusOK, orderListResponse{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalCount: page.Total,
		TotalPages: page.TotalPages(),
	})
}

func (h *Handler) getOrder(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(view))
}

func (h *Handler) createOrder(c *gin.Context) {
	var body createOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "malformed request body: "+err.Error())
		return
	}

	view, err := h.service.Create(c.Request.Context(), nil, body.toRequest(), actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Location", "/v1/orders/"+view.Order.ID)
	c.JSON(http.StatusCreated, toOrderResponse(view))
}

func (h *Handler) updateOrder(c *gin.Context) {
	var body updateOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "malformed request body: "+err.Error())
		return
	}

	view, err := h.service.Update(c.Request.Context(), nil, c.Param("orderId"), body.toRequest(), actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(view))
}

// deleteOrder отменяет заказ: история статусов не удаляется.
func (h *Handler) deleteOrder(c *gin.Context) {
	reason := strings.TrimSpace(c.Query("reason"))
	if reason == "" {
		reason = defaultDeleteReason
	}
	h.cancel(c, orders.CancelRequest{Reason: reason})
}

func (h *Handler) cancelOrder(c *gin.Context) {
	var body cancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "malformed request body: "+err.Error())
		return
	}
	h.cancel(c, body.toRequest())
}

func (h *Handler) cancel(c *gin.Context, req orders.CancelRequest) {
	entry, err := h.service.Cancel(c.Request.Context(), nil, c.Param("orderId"), req, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toStatusEntryResponse(entry))
}

func (h *Handler) listStatuses(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	items := make([]statusEntryResponse, 0, len(history))
	for _, entry := range history {
		items = append(items, toStatusEntryResponse(entry))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) appendStatus(c *gin.Context) {
	var body appendStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "malformed request body: "+err.Error())
		return
	}
	status, err := domain.ParseOrderStatus(body.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	entry, err := h.service.AppendStatus(c.Request.Context(), nil, c.Param("orderId"), status, domain.StatusNotes{
		Internal: body.InternalNotes,
		Customer: body.CustomerNotes,
	}, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toStatusEntryResponse(entry))
}

func (h *Handler) listNotes(c *gin.Context) {
	notes, err := h.service.Notes(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	items := make([]noteResponse, 0, len(notes))
	for _, note := range notes {
		items = append(items, toNoteResponse(note))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) addNote(c *gin.Context) {
	var body addNoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "malformed request body: "+err.Error())
		return
	}
	note, err := h.service.AddNote(c.Request.Context(), nil, c.Param("orderId"), body.toRequest(), actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toNoteResponse(note))
}

func (h *Handler) createBatch(c *gin.Context) {
	var body batchCreateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "malformed request body: "+err.Error())
		return
	}
	reqs := make([]orders.CreateOrderRequest, 0, len(body.Items))
	for _, item := range body.Items {
		reqs = append(reqs, item.toRequest())
	}

	result, err := h.batch.CreateBatch(c.Request.Context(), reqs, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toBatchResponse(result))
}

func (h *Handler) updateBatch(c *gin.Context) {
	var body batchUpdateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "malformed request body: "+err.Error())
		return
	}
	items := make([]orders.BatchUpdateItem, 0, len(body.Items))
	for _, item := range body.Items {
		items = append(items, orders.BatchUpdateItem{
			OrderID:            item.OrderID,
			UpdateOrderRequest: item.toRequest(),
		})
	}

	result, err := h.batch.UpdateBatch(c.Request.Context(), items, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toBatchResponse(result))
}

func (h *Handler) cancelBatch(c *gin.Context) {
	var body batchCancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "malformed request body: "+err.Error())
		return
	}

	result, err := h.batch.CancelBatch(c.Request.Context(), body.OrderIDs, orders.CancelRequest{
		Reason:        body.Reason,
		CustomerNotes: body.CustomerNotes,
	}, actorFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toBatchResponse(result))
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer")
	}
	return n, nil
}
