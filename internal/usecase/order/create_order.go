package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/logger"
	"github.com/ignatzorin/smm-panel-backend/internal/metrics"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

// settleTimeout ограничивает шаги после передачи заказа провайдеру.
const settleTimeout = 30 * time.Second

type CreateOrderInput struct {
	UserID    uuid.UUID
	TenantID  *uuid.UUID
	ServiceID uuid.UUID
	Link      string
	Quantity  int64
	Notes     *string
}

type CreateOrderResult struct {
	OrderID         uuid.UUID
	Status          valueobject.OrderStatus
	Charge          decimal.Decimal
	Currency        string
	Quantity        int64
	CreatedAt       time.Time
	ProviderOrderID string
}

// CreateOrderUseCase оформляет заказ: резерв средств, передача провайдеру,
// списание резерва вместе с сохранением заказа. При сбое провайдера резерв
// снимается.
type CreateOrderUseCase struct {
	tx       repository.Transactor
	orders   repository.OrderRepository
	history  repository.OrderHistoryRepository
	resolver ServiceResolver
	ledger   Ledger
	gateway  repository.ProviderGateway
	currency string
	log      *logrus.Entry
}

func NewCreateOrderUseCase(
	tx repository.Transactor,
	orders repository.OrderRepository,
	history repository.OrderHistoryRepository,
	resolver ServiceResolver,
	l Ledger,
	gateway repository.ProviderGateway,
	currency string,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		tx:       tx,
		orders:   orders,
		history:  history,
		resolver: resolver,
		ledger:   l,
		gateway:  gateway,
		currency: currency,
		log:      logger.WithComponent("create_order"),
	}
}

func (uc *CreateOrderUseCase) Execute(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	result, err := uc.execute(ctx, input)
	metrics.RecordOrderCreated(string(apperror.Code(err)))
	return result, err
}

func (uc *CreateOrderUseCase) execute(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if err := entity.ValidateLink(input.Link); err != nil {
		return nil, err
	}
	if err := entity.ValidateQuantity(input.Quantity); err != nil {
		return nil, err
	}

	svc, provider, err := uc.resolver.Execute(ctx, input.ServiceID, input.TenantID)
	if err != nil {
		return nil, err
	}
	if err := svc.CheckQuantity(input.Quantity); err != nil {
		return nil, err
	}

	order, err := entity.NewOrder(input.UserID, svc, input.Link, input.Quantity, svc.PriceFor(input.Quantity), uc.currency)
	if err != nil {
		return nil, err
	}
	order.Notes = input.Notes
	reference := entity.OrderReference(order.ID)
	log := uc.log.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"user_id":     input.UserID,
		"provider_id": provider.ID,
		"reference":   reference,
	})

	if _, err := uc.ledger.Hold(ctx, input.UserID, order.Price, reference, "Оплата заказа "+svc.Name); err != nil {
		return nil, err
	}

	providerOrderID, err := uc.gateway.SubmitOrder(ctx, provider, entity.ProviderSubmit{
		ProviderServiceID: svc.ProviderServiceID,
		Link:              order.Link,
		Quantity:          order.Quantity,
	})

	// Дальше резерв должен быть списан или снят даже при отмене запроса.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if err != nil {
		uc.release(settleCtx, log, input.UserID, reference)
		return nil, apperror.OrderProcessing(err, "провайдер не принял заказ")
	}
	order.SetProviderOrderID(providerOrderID)
	log = log.WithField("provider_order_id", providerOrderID)

	err = uc.tx.WithinTx(settleCtx, func(ctx context.Context) error {
		if _, err := uc.ledger.Capture(ctx, input.UserID, reference); err != nil {
			return err
		}
		if err := uc.orders.Create(ctx, order); err != nil {
			return err
		}
		entry := entity.NewOrderStatusHistory(order.ID, nil, order.Status, "заказ создан", &input.UserID)
		return uc.history.Create(ctx, entry)
	})
	if err != nil {
		return nil, uc.compensate(settleCtx, log, provider, input.UserID, reference, providerOrderID, err)
	}

	log.WithField("price", order.Price.String()).Info("заказ создан")
	return &CreateOrderResult{
		OrderID:         order.ID,
		Status:          order.Status,
		Charge:          order.Price,
		Currency:        order.Currency,
		Quantity:        order.Quantity,
		CreatedAt:       order.CreatedAt,
		ProviderOrderID: providerOrderID,
	}, nil
}

// compensate отменяет заказ у провайдера, если локально его сохранить не удалось.
// Если отмена не прошла, резерв остаётся до ручной сверки.
func (uc *CreateOrderUseCase) compensate(ctx context.Context, log *logrus.Entry, provider *entity.Provider, userID uuid.UUID, reference, providerOrderID string, cause error) error {
	if uc.gateway.CancelOrder(ctx, provider, providerOrderID) {
		uc.release(ctx, log, userID, reference)
		log.WithError(cause).Warn("заказ не сохранён, отменён у провайдера")
		return apperror.OrderProcessing(cause, "не удалось сохранить заказ")
	}

	log.WithError(cause).Error("заказ принят провайдером, но не сохранён; резерв оставлен до сверки")
	return apperror.ReconciliationRequired(cause, providerOrderID)
}

func (uc *CreateOrderUseCase) release(ctx context.Context, log *logrus.Entry, userID uuid.UUID, reference string) {
	if _, err := uc.ledger.Release(ctx, userID, reference); err != nil {
		log.WithError(err).Error("не удалось снять резерв")
	}
}
