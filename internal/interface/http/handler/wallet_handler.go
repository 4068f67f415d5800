package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/dto"
	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/response"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/ledger"
	"github.com/ignatzorin/smm-panel-backend/internal/validation"
)

type WalletHandler struct {
	ledger *ledger.Ledger
}

func NewWalletHandler(l *ledger.Ledger) *WalletHandler {
	return &WalletHandler{ledger: l}
}

// GetBalance обрабатывает GET /api/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToBalanceResponse(balance))
}

// ListTransactions обрабатывает GET /api/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	limit := clamp(parseIntQuery(c, "limit", 20), 1, 100)
	offset := clamp(parseIntQuery(c, "offset", 0), 0, 1<<31-1)

	list, total, err := h.ledger.ListTransactions(c.Request.Context(), p.UserID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToTransactionResponses(list), total, limit, offset)
}

// Transfer обрабатывает POST /api/wallet/transfer.
func (h *WalletHandler) Transfer(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	if err := validateEntryText(req.Reference, req.Description); err != nil {
		response.Error(c, err)
		return
	}

	out, _, err := h.ledger.Transfer(c.Request.Context(), p.UserID, uuid.MustParse(req.ToUserID), req.Amount, req.Reference, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToTransactionResponse(out))
}

// UserBalance обрабатывает GET /api/admin/wallets/:userId.
func (h *WalletHandler) UserBalance(c *gin.Context) {
	userID, ok := pathUUID(c, "userId", "некорректный ID пользователя")
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToBalanceResponse(balance))
}

// Credit обрабатывает POST /api/admin/wallets/:userId/credit.
func (h *WalletHandler) Credit(c *gin.Context) {
	h.adjust(c, true)
}

// Debit обрабатывает POST /api/admin/wallets/:userId/debit.
func (h *WalletHandler) Debit(c *gin.Context) {
	h.adjust(c, false)
}

func (h *WalletHandler) adjust(c *gin.Context, credit bool) {
	p, ok := principal(c)
	if !ok {
		return
	}
	userID, ok := pathUUID(c, "userId", "некорректный ID пользователя")
	if !ok {
		return
	}

	var req dto.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	if err := validateEntryText(req.Reference, req.Description); err != nil {
		response.Error(c, err)
		return
	}

	entry := ledger.Entry{
		UserID:      userID,
		Type:        valueobject.TransactionType(req.Type),
		Amount:      req.Amount,
		Reference:   req.Reference,
		Description: req.Description,
		Metadata:    map[string]any{"admin_id": p.UserID.String()},
	}

	post := h.ledger.Debit
	if credit {
		post = h.ledger.Credit
	}
	t, err := post(c.Request.Context(), entry)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToTransactionResponse(t))
}

// SetStatus обрабатывает PATCH /api/admin/wallets/:userId/status.
func (h *WalletHandler) SetStatus(c *gin.Context) {
	userID, ok := pathUUID(c, "userId", "некорректный ID пользователя")
	if !ok {
		return
	}

	var req dto.WalletStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}
	status, err := valueobject.NewWalletStatus(req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	if _, err := h.ledger.SetStatus(c.Request.Context(), userID, status); err != nil {
		response.Error(c, err)
		return
	}
	h.respondBalance(c, userID)
}

// SetLimits обрабатывает PATCH /api/admin/wallets/:userId/limits.
func (h *WalletHandler) SetLimits(c *gin.Context) {
	userID, ok := pathUUID(c, "userId", "некорректный ID пользователя")
	if !ok {
		return
	}

	var req dto.WalletLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	if _, err := h.ledger.SetLimits(c.Request.Context(), userID, req.DailyLimit, req.MonthlyLimit); err != nil {
		response.Error(c, err)
		return
	}
	h.respondBalance(c, userID)
}

// Reconcile обрабатывает POST /api/admin/wallets/:userId/reconcile.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	userID, ok := pathUUID(c, "userId", "некорректный ID пользователя")
	if !ok {
		return
	}

	result, err := h.ledger.Reconcile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToReconcileResponse(result))
}

func (h *WalletHandler) respondBalance(c *gin.Context, userID uuid.UUID) {
	balance, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToBalanceResponse(balance))
}

func validateEntryText(reference, description string) error {
	return validation.ValidateFields(
		validation.Field{Name: "reference", Value: reference, Required: true, Max: validation.MaxReferenceLength},
		validation.Field{Name: "description", Value: description, Max: validation.MaxDescriptionLength},
	)
}
