package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

const orderColumns = `id, user_id, service_id, provider_id, provider_order_id, link, quantity, price,
	refunded_amount, currency, status, priority, start_count, remains, notes, metadata,
	created_at, updated_at, completed_at, failed_at, cancelled_at, refunded_at`

type orderRow struct {
	ID              uuid.UUID       `db:"id"`
	UserID          uuid.UUID       `db:"user_id"`
	ServiceID       uuid.UUID       `db:"service_id"`
	ProviderID      uuid.UUID       `db:"provider_id"`
	ProviderOrderID *string         `db:"provider_order_id"`
	Link            string          `db:"link"`
	Quantity        int64           `db:"quantity"`
	Price           decimal.Decimal `db:"price"`
	RefundedAmount  decimal.Decimal `db:"refunded_amount"`
	Currency        string          `db:"currency"`
	Status          string          `db:"status"`
	Priority        int             `db:"priority"`
	StartCount      *int64          `db:"start_count"`
	Remains         *int64          `db:"remains"`
	Notes           *string         `db:"notes"`
	Metadata        types.JSONText  `db:"metadata"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
	CompletedAt     *time.Time      `db:"completed_at"`
	FailedAt        *time.Time      `db:"failed_at"`
	CancelledAt     *time.Time      `db:"cancelled_at"`
	RefundedAt      *time.Time      `db:"refunded_at"`
}

func (r orderRow) toEntity() *entity.Order {
	return &entity.Order{
		ID:              r.ID,
		UserID:          r.UserID,
		ServiceID:       r.ServiceID,
		ProviderID:      r.ProviderID,
		ProviderOrderID: r.ProviderOrderID,
		Link:            r.Link,
		Quantity:        r.Quantity,
		Price:           r.Price,
		RefundedAmount:  r.RefundedAmount,
		Currency:        r.Currency,
		Status:          valueobject.OrderStatus(r.Status),
		Priority:        r.Priority,
		StartCount:      r.StartCount,
		Remains:         r.Remains,
		Notes:           r.Notes,
		Metadata:        unmarshalMeta(r.Metadata),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		CompletedAt:     r.CompletedAt,
		FailedAt:        r.FailedAt,
		CancelledAt:     r.CancelledAt,
		RefundedAt:      r.RefundedAt,
	}
}

type OrderRepository struct {
	base
}

var _ repository.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{base{db: db}}
}

func (r *OrderRepository) Create(ctx context.Context, o *entity.Order) error {
	meta, err := marshalMeta(o.Metadata)
	if err != nil {
		return err
	}
	return r.exec(ctx, "не удалось создать заказ", `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, o.ID, o.UserID, o.ServiceID, o.ProviderID, o.ProviderOrderID, o.Link, o.Quantity, o.Price,
		o.RefundedAmount, o.Currency, string(o.Status), o.Priority, o.StartCount, o.Remains, o.Notes, meta,
		o.CreatedAt, o.UpdatedAt, o.CompletedAt, o.FailedAt, o.CancelledAt, o.RefundedAt)
}

func (r *OrderRepository) Update(ctx context.Context, o *entity.Order) error {
	meta, err := marshalMeta(o.Metadata)
	if err != nil {
		return err
	}
	return r.execOne(ctx, apperror.ErrOrderNotFound, `
		UPDATE orders
		SET provider_order_id = $2, refunded_amount = $3, status = $4, start_count = $5, remains = $6,
		    notes = $7, metadata = $8, updated_at = $9, completed_at = $10, failed_at = $11,
		    cancelled_at = $12, refunded_at = $13
		WHERE id = $1
	`, o.ID, o.ProviderOrderID, o.RefundedAmount, string(o.Status), o.StartCount, o.Remains,
		o.Notes, meta, o.UpdatedAt, o.CompletedAt, o.FailedAt, o.CancelledAt, o.RefundedAt)
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	var row orderRow
	if err := r.get(ctx, &row, apperror.ErrOrderNotFound,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	var row orderRow
	if err := r.get(ctx, &row, apperror.ErrOrderNotFound,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM orders`+clause, args...); err != nil {
		return nil, 0, dbError(err, "не удалось посчитать заказы")
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		orderColumns, clause, len(args)-1, len(args))

	var rows []orderRow
	if err := r.conn(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, dbError(err, "не удалось получить заказы")
	}
	return ordersFromRows(rows), total, nil
}

func (r *OrderRepository) ListActive(ctx context.Context, limit int) ([]*entity.Order, error) {
	var rows []orderRow
	if err := r.conn(ctx).SelectContext(ctx, &rows, `
		SELECT `+orderColumns+` FROM orders
		WHERE status IN ('pending', 'processing', 'in_progress') AND provider_order_id IS NOT NULL
		ORDER BY updated_at
		LIMIT $1
	`, limit); err != nil {
		return nil, dbError(err, "не удалось получить активные заказы")
	}
	return ordersFromRows(rows), nil
}

func ordersFromRows(rows []orderRow) []*entity.Order {
	out := make([]*entity.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out
}

type historyRow struct {
	ID         uuid.UUID  `db:"id"`
	OrderID    uuid.UUID  `db:"order_id"`
	FromStatus *string    `db:"from_status"`
	ToStatus   string     `db:"to_status"`
	Reason     string     `db:"reason"`
	ActorID    *uuid.UUID `db:"actor_id"`
	CreatedAt  time.Time  `db:"created_at"`
}

type OrderHistoryRepository struct {
	base
}

var _ repository.OrderHistoryRepository = (*OrderHistoryRepository)(nil)

func NewOrderHistoryRepository(db *sqlx.DB) *OrderHistoryRepository {
	return &OrderHistoryRepository{base{db: db}}
}

func (r *OrderHistoryRepository) Create(ctx context.Context, h *entity.OrderStatusHistory) error {
	var from *string
	if h.FromStatus != nil {
		s := string(*h.FromStatus)
		from = &s
	}
	return r.exec(ctx, "не удалось записать историю заказа", `
		INSERT INTO order_status_history (id, order_id, from_status, to_status, reason, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, h.ID, h.OrderID, from, string(h.ToStatus), h.Reason, h.ActorID, h.CreatedAt)
}

func (r *OrderHistoryRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*entity.OrderStatusHistory, error) {
	var rows []historyRow
	if err := r.conn(ctx).SelectContext(ctx, &rows, `
		SELECT id, order_id, from_status, to_status, reason, actor_id, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID); err != nil {
		return nil, dbError(err, "не удалось получить историю заказа")
	}

	out := make([]*entity.OrderStatusHistory, 0, len(rows))
	for _, row := range rows {
		entry := &entity.OrderStatusHistory{
			ID:        row.ID,
			OrderID:   row.OrderID,
			ToStatus:  valueobject.OrderStatus(row.ToStatus),
			Reason:    row.Reason,
			ActorID:   row.ActorID,
			CreatedAt: row.CreatedAt,
		}
		if row.FromStatus != nil {
			from := valueobject.OrderStatus(*row.FromStatus)
			entry.FromStatus = &from
		}
		out = append(out, entry)
	}
	return out, nil
}
