package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
)

type UpdateOrderStatusInput struct {
	OrderID  uuid.UUID
	Status   valueobject.OrderStatus
	Metadata map[string]any
	ActorID  *uuid.UUID
	Reason   string
}

// UpdateOrderStatusUseCase - административная смена статуса. Переходы в
// partial и refunded проводят соответствующие возвраты.
type UpdateOrderStatusUseCase struct {
	transitions *Transitions
}

func NewUpdateOrderStatusUseCase(transitions *Transitions) *UpdateOrderStatusUseCase {
	return &UpdateOrderStatusUseCase{transitions: transitions}
}

func (uc *UpdateOrderStatusUseCase) Execute(ctx context.Context, input UpdateOrderStatusInput) (*entity.Order, error) {
	status, err := valueobject.NewOrderStatus(string(input.Status))
	if err != nil {
		return nil, err
	}
	reason := input.Reason
	if reason == "" {
		reason = "изменено администратором"
	}

	return uc.transitions.apply(ctx, input.OrderID, reason, input.ActorID,
		func(ctx context.Context, o *entity.Order, now time.Time) ([]entity.StatusChange, bool, error) {
			dirty := len(input.Metadata) > 0
			o.MergeMetadata(input.Metadata)
			if status == o.Status {
				if dirty {
					o.UpdatedAt = now
				}
				return nil, dirty, nil
			}

			changes, err := uc.transitions.moveTo(ctx, o, status, now)
			if err != nil {
				return nil, false, err
			}
			return changes, true, nil
		})
}

type UpdateProgressUseCase struct {
	transitions *Transitions
}

func NewUpdateProgressUseCase(transitions *Transitions) *UpdateProgressUseCase {
	return &UpdateProgressUseCase{transitions: transitions}
}

// Execute сохраняет прогресс выполнения. Повтор тех же значений ничего не пишет.
func (uc *UpdateProgressUseCase) Execute(ctx context.Context, orderID uuid.UUID, startCount, remains *int64, actorID *uuid.UUID) (*entity.Order, error) {
	return uc.transitions.apply(ctx, orderID, "обновлён прогресс", actorID,
		func(ctx context.Context, o *entity.Order, now time.Time) ([]entity.StatusChange, bool, error) {
			changed, changes, err := o.UpdateProgress(startCount, remains, now)
			if err != nil {
				return nil, false, err
			}
			return changes, changed, nil
		})
}
