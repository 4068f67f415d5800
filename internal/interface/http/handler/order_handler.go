package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/dto"
	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/response"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/order"
	"github.com/ignatzorin/smm-panel-backend/internal/validation"
)

type OrderHandler struct {
	createOrderUC  *order.CreateOrderUseCase
	getOrderUC     *order.GetOrderUseCase
	listOrdersUC   *order.ListOrdersUseCase
	historyUC      *order.GetOrderHistoryUseCase
	cancelOrderUC  *order.CancelOrderUseCase
	refundOrderUC  *order.RefundOrderUseCase
	updateStatusUC *order.UpdateOrderStatusUseCase
	progressUC     *order.UpdateProgressUseCase
}

func NewOrderHandler(
	createOrderUC *order.CreateOrderUseCase,
	getOrderUC *order.GetOrderUseCase,
	listOrdersUC *order.ListOrdersUseCase,
	historyUC *order.GetOrderHistoryUseCase,
	cancelOrderUC *order.CancelOrderUseCase,
	refundOrderUC *order.RefundOrderUseCase,
	updateStatusUC *order.UpdateOrderStatusUseCase,
	progressUC *order.UpdateProgressUseCase,
) *OrderHandler {
	return &OrderHandler{
		createOrderUC:  createOrderUC,
		getOrderUC:     getOrderUC,
		listOrdersUC:   listOrdersUC,
		historyUC:      historyUC,
		cancelOrderUC:  cancelOrderUC,
		refundOrderUC:  refundOrderUC,
		updateStatusUC: updateStatusUC,
		progressUC:     progressUC,
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	if err := validation.ValidateFields(
		validation.Field{Name: "link", Value: req.Link, Required: true, Max: validation.MaxLinkLength},
		validation.Field{Name: "notes", Value: validation.Optional(req.Notes), Max: validation.MaxNotesLength},
	); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.createOrderUC.Execute(c.Request.Context(), order.CreateOrderInput{
		UserID:    p.UserID,
		TenantID:  p.TenantID,
		ServiceID: uuid.MustParse(req.ServiceID),
		Link:      req.Link,
		Quantity:  req.Quantity,
		Notes:     req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToCreateOrderResponse(result))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id", "некорректный ID заказа")
	if !ok {
		return
	}

	view, err := h.getOrderUC.Execute(c.Request.Context(), orderID, actorOf(p))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToOrderResponse(*view))
}

// ListMyOrders обрабатывает GET /api/orders. Администратор может передать user_id.
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	input := order.ListOrdersInput{
		UserID: &p.UserID,
		Limit:  clamp(parseIntQuery(c, "limit", 20), 1, 100),
		Offset: clamp(parseIntQuery(c, "offset", 0), 0, 1<<31-1),
	}
	if raw := c.Query("status"); raw != "" {
		status, err := valueobject.NewOrderStatus(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		input.Status = &status
	}
	if p.IsAdmin() {
		input.UserID = nil
		if raw := c.Query("user_id"); raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				response.BadRequest(c, "некорректный user_id")
				return
			}
			input.UserID = &userID
		}
	}

	views, total, err := h.listOrdersUC.Execute(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToOrderResponses(views), total, input.Limit, input.Offset)
}

func (h *OrderHandler) GetOrderHistory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id", "некорректный ID заказа")
	if !ok {
		return
	}

	entries, err := h.historyUC.Execute(c.Request.Context(), orderID, actorOf(p))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToOrderHistoryResponses(entries))
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id", "некорректный ID заказа")
	if !ok {
		return
	}

	var req dto.CancelOrderRequest
	// тело необязательно
	_ = c.ShouldBindJSON(&req)
	if err := validation.ValidateLength("reason", req.Reason, 0, validation.MaxReasonLength); err != nil {
		response.Error(c, err)
		return
	}

	o, err := h.cancelOrderUC.Execute(c.Request.Context(), orderID, actorOf(p), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToOrderEntityResponse(o))
}

// RefundOrder обрабатывает POST /api/admin/orders/:id/refund.
func (h *OrderHandler) RefundOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id", "некорректный ID заказа")
	if !ok {
		return
	}

	var req dto.RefundOrderRequest
	// тело необязательно
	_ = c.ShouldBindJSON(&req)
	if err := validation.ValidateLength("reason", req.Reason, 0, validation.MaxReasonLength); err != nil {
		response.Error(c, err)
		return
	}

	o, err := h.refundOrderUC.Execute(c.Request.Context(), orderID, &p.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToOrderEntityResponse(o))
}

// UpdateOrderStatus обрабатывает PATCH /api/admin/orders/:id/status.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id", "некорректный ID заказа")
	if !ok {
		return
	}

	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	if err := validation.ValidateLength("reason", req.Reason, 0, validation.MaxReasonLength); err != nil {
		response.Error(c, err)
		return
	}

	o, err := h.updateStatusUC.Execute(c.Request.Context(), order.UpdateOrderStatusInput{
		OrderID:  orderID,
		Status:   valueobject.OrderStatus(req.Status),
		Metadata: req.Metadata,
		ActorID:  &p.UserID,
		Reason:   req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToOrderEntityResponse(o))
}

// UpdateProgress обрабатывает PATCH /api/admin/orders/:id/progress.
func (h *OrderHandler) UpdateProgress(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	orderID, ok := pathUUID(c, "id", "некорректный ID заказа")
	if !ok {
		return
	}

	var req dto.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	o, err := h.progressUC.Execute(c.Request.Context(), orderID, req.StartCount, req.Remains, &p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToOrderEntityResponse(o))
}
