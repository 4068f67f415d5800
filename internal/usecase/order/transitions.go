package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/logger"
	"github.com/ignatzorin/smm-panel-backend/internal/metrics"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
	"github.com/ignatzorin/smm-panel-backend/internal/usecase/ledger"
)

// EventOrderStatusChanged - имя WebSocket-события о смене статуса заказа.
const EventOrderStatusChanged = "order_status_changed"

// StatusEvent - полезная нагрузка события о смене статуса.
type StatusEvent struct {
	OrderID              uuid.UUID               `json:"order_id"`
	From                 valueobject.OrderStatus `json:"from"`
	To                   valueobject.OrderStatus `json:"to"`
	Remains              *int64                  `json:"remains,omitempty"`
	CompletionPercentage float64                 `json:"completion_percentage"`
	ChangedAt            time.Time               `json:"changed_at"`
}

// mutateFunc меняет заблокированный заказ. Возвращает применённые переходы
// и признак того, что заказ изменился без смены статуса.
type mutateFunc func(ctx context.Context, o *entity.Order, now time.Time) ([]entity.StatusChange, bool, error)

// Transitions - единая точка изменения заказов. Каждое изменение идёт под
// блокировкой строки заказа, журнал переходов пишется в той же транзакции.
type Transitions struct {
	tx       repository.Transactor
	orders   repository.OrderRepository
	history  repository.OrderHistoryRepository
	ledger   Ledger
	notifier Notifier
	log      *logrus.Entry
	now      func() time.Time
}

func NewTransitions(tx repository.Transactor, orders repository.OrderRepository, history repository.OrderHistoryRepository, l Ledger, notifier Notifier) *Transitions {
	return &Transitions{
		tx:       tx,
		orders:   orders,
		history:  history,
		ledger:   l,
		notifier: notifier,
		log:      logger.WithComponent("order_transitions"),
		now:      time.Now,
	}
}

func (t *Transitions) apply(ctx context.Context, orderID uuid.UUID, reason string, actorID *uuid.UUID, fn mutateFunc) (*entity.Order, error) {
	var (
		order   *entity.Order
		changes []entity.StatusChange
	)
	err := t.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := t.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		applied, dirty, err := fn(ctx, o, t.now().UTC())
		if err != nil {
			return err
		}
		order, changes = o, applied
		if !dirty && len(applied) == 0 {
			return nil
		}

		if err := t.orders.Update(ctx, o); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить заказ")
		}
		for _, entry := range entity.HistoryFromChanges(o.ID, applied, reason, actorID) {
			if err := t.history.Create(ctx, entry); err != nil {
				return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось записать историю заказа")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.publish(order, changes)
	return order, nil
}

// publish вызывается после фиксации транзакции.
func (t *Transitions) publish(o *entity.Order, changes []entity.StatusChange) {
	for _, c := range changes {
		metrics.RecordOrderTransition(string(c.From), string(c.To))
		t.log.WithFields(logrus.Fields{
			"order_id": o.ID,
			"from":     c.From,
			"to":       c.To,
		}).Info("статус заказа изменён")

		if t.notifier == nil {
			continue
		}
		event := StatusEvent{
			OrderID:              o.ID,
			From:                 c.From,
			To:                   c.To,
			Remains:              o.Remains,
			CompletionPercentage: o.CompletionPercentage(),
			ChangedAt:            o.UpdatedAt,
		}
		if err := t.notifier.BroadcastToUser(o.UserID, EventOrderStatusChanged, event); err != nil {
			t.log.WithError(err).WithField("order_id", o.ID).Warn("не удалось отправить уведомление")
		}
	}
}

// refundRemaining возвращает невозвращённую часть цены и переводит заказ в refunded.
func (t *Transitions) refundRemaining(ctx context.Context, o *entity.Order, now time.Time) (entity.StatusChange, error) {
	if !o.Status.CanBeRefunded() {
		return entity.StatusChange{}, apperror.InvalidStatusTransition(string(o.Status), string(valueobject.OrderStatusRefunded))
	}

	amount := o.RefundableAmount()
	if amount.IsPositive() {
		if _, err := t.ledger.Refund(ctx, ledger.Entry{
			UserID:      o.UserID,
			Amount:      amount,
			Reference:   entity.RefundReference(o.ID),
			Description: "Возврат по заказу " + o.ID.String(),
			Metadata:    map[string]any{"order_id": o.ID.String()},
		}); err != nil {
			return entity.StatusChange{}, err
		}
		o.AddRefunded(amount)
	}
	return o.TransitionTo(valueobject.OrderStatusRefunded, now)
}

// refundUndelivered возвращает долю цены за недоставленный объём частичного заказа.
func (t *Transitions) refundUndelivered(ctx context.Context, o *entity.Order) error {
	amount := o.UndeliveredShare()
	if refundable := o.RefundableAmount(); amount.GreaterThan(refundable) {
		amount = refundable
	}
	if !amount.IsPositive() {
		return nil
	}

	if _, err := t.ledger.Refund(ctx, ledger.Entry{
		UserID:      o.UserID,
		Amount:      amount,
		Reference:   entity.PartialRefundReference(o.ID),
		Description: "Частичный возврат по заказу " + o.ID.String(),
		Metadata:    map[string]any{"order_id": o.ID.String(), "remains": *o.Remains},
	}); err != nil {
		return err
	}
	o.AddRefunded(amount)
	return nil
}

// moveTo переводит заказ в status и проводит связанные с ним возвраты.
func (t *Transitions) moveTo(ctx context.Context, o *entity.Order, status valueobject.OrderStatus, now time.Time) ([]entity.StatusChange, error) {
	if status == valueobject.OrderStatusRefunded {
		change, err := t.refundRemaining(ctx, o, now)
		if err != nil {
			return nil, err
		}
		return []entity.StatusChange{change}, nil
	}

	change, err := o.TransitionTo(status, now)
	if err != nil {
		return nil, err
	}
	if status == valueobject.OrderStatusPartial {
		if err := t.refundUndelivered(ctx, o); err != nil {
			return nil, err
		}
	}
	return []entity.StatusChange{change}, nil
}
