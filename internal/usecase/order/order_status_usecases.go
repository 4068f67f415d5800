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
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

// CancelOrderUseCase отменяет заказ без возврата средств. Провайдер
// получает запрос на отмену после фиксации, его ответ на исход не влияет.
type CancelOrderUseCase struct {
	transitions *Transitions
	providers   repository.ProviderRepository
	gateway     repository.ProviderGateway
	log         *logrus.Entry
}

func NewCancelOrderUseCase(transitions *Transitions, providers repository.ProviderRepository, gateway repository.ProviderGateway) *CancelOrderUseCase {
	return &CancelOrderUseCase{
		transitions: transitions,
		providers:   providers,
		gateway:     gateway,
		log:         logger.WithComponent("cancel_order"),
	}
}

func (uc *CancelOrderUseCase) Execute(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*entity.Order, error) {
	if reason == "" {
		reason = "отменён пользователем"
	}
	o, err := uc.transitions.apply(ctx, orderID, reason, actor.ref(),
		func(ctx context.Context, o *entity.Order, now time.Time) ([]entity.StatusChange, bool, error) {
			if !actor.canAccess(o) {
				return nil, false, apperror.ErrOrderNotFound
			}
			if !o.Status.CanBeCancelled() {
				return nil, false, apperror.InvalidStatusTransition(string(o.Status), string(valueobject.OrderStatusCancelled))
			}
			change, err := o.TransitionTo(valueobject.OrderStatusCancelled, now)
			if err != nil {
				return nil, false, err
			}
			return []entity.StatusChange{change}, false, nil
		})
	if err != nil {
		return nil, err
	}

	uc.cancelAtProvider(ctx, o)
	return o, nil
}

func (uc *CancelOrderUseCase) cancelAtProvider(ctx context.Context, o *entity.Order) {
	if o.ProviderOrderID == nil {
		return
	}
	log := uc.log.WithFields(logrus.Fields{"order_id": o.ID, "provider_order_id": *o.ProviderOrderID})

	p, err := uc.providers.FindByID(ctx, o.ProviderID)
	if err != nil {
		log.WithError(err).Warn("провайдер заказа не найден")
		return
	}
	if !uc.gateway.CancelOrder(ctx, p, *o.ProviderOrderID) {
		log.Warn("провайдер не подтвердил отмену")
	}
}

// RefundOrderUseCase возвращает на кошелёк невозвращённую часть цены.
type RefundOrderUseCase struct {
	transitions *Transitions
}

func NewRefundOrderUseCase(transitions *Transitions) *RefundOrderUseCase {
	return &RefundOrderUseCase{transitions: transitions}
}

func (uc *RefundOrderUseCase) Execute(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, reason string) (*entity.Order, error) {
	if reason == "" {
		reason = "возврат средств"
	}
	return uc.transitions.apply(ctx, orderID, reason, actorID,
		func(ctx context.Context, o *entity.Order, now time.Time) ([]entity.StatusChange, bool, error) {
			change, err := uc.transitions.refundRemaining(ctx, o, now)
			if err != nil {
				return nil, false, err
			}
			return []entity.StatusChange{change}, true, nil
		})
}

// ApplyProviderStatusUseCase применяет ответ провайдера о заказе. Заказ
// продвигается вперёд по одному допустимому ребру за шаг; устаревшие
// статусы игнорируются.
type ApplyProviderStatusUseCase struct {
	transitions *Transitions
	log         *logrus.Entry
}

func NewApplyProviderStatusUseCase(transitions *Transitions) *ApplyProviderStatusUseCase {
	return &ApplyProviderStatusUseCase{
		transitions: transitions,
		log:         logger.WithComponent("provider_status"),
	}
}

func (uc *ApplyProviderStatusUseCase) Execute(ctx context.Context, orderID uuid.UUID, state *entity.ProviderOrderState) (*entity.Order, error) {
	target, known := valueobject.ParseProviderStatus(state.Status)
	if !known {
		uc.log.WithFields(logrus.Fields{"order_id": orderID, "status": state.Status}).Warn("неизвестный статус провайдера")
	}

	return uc.transitions.apply(ctx, orderID, "статус провайдера: "+state.Status, nil,
		func(ctx context.Context, o *entity.Order, now time.Time) ([]entity.StatusChange, bool, error) {
			if o.Status.IsFinished() && o.Status != valueobject.OrderStatusPartial {
				return nil, false, nil
			}

			dirty, changes, err := o.UpdateProgress(state.StartCount, state.Remains, now)
			if err != nil {
				return nil, false, err
			}
			if !known {
				return changes, dirty, nil
			}

			more, err := uc.advance(ctx, o, target, now)
			if err != nil {
				return nil, false, err
			}
			return append(changes, more...), dirty, nil
		})
}

func (uc *ApplyProviderStatusUseCase) advance(ctx context.Context, o *entity.Order, target valueobject.OrderStatus, now time.Time) ([]entity.StatusChange, error) {
	t := uc.transitions

	switch target {
	case valueobject.ProviderOrderCancelled:
		var changes []entity.StatusChange
		if o.Status.CanTransitionTo(valueobject.OrderStatusFailed) {
			change, err := o.TransitionTo(valueobject.OrderStatusFailed, now)
			if err != nil {
				return nil, err
			}
			changes = append(changes, change)
		}
		if !o.Status.CanBeRefunded() {
			return changes, nil
		}
		change, err := t.refundRemaining(ctx, o, now)
		if err != nil {
			return nil, err
		}
		return append(changes, change), nil

	case valueobject.OrderStatusFailed:
		if !o.Status.CanTransitionTo(valueobject.OrderStatusFailed) {
			return nil, nil
		}
		change, err := o.TransitionTo(valueobject.OrderStatusFailed, now)
		if err != nil {
			return nil, err
		}
		return []entity.StatusChange{change}, nil
	}

	changes, err := o.AdvanceTo(target, now)
	if err != nil {
		return nil, err
	}
	if len(changes) > 0 && o.Status == valueobject.OrderStatusPartial {
		if err := t.refundUndelivered(ctx, o); err != nil {
			return nil, err
		}
	}
	return changes, nil
}
