package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
)

type WalletRepository interface {
	Create(ctx context.Context, wallet *entity.Wallet) error
	Update(ctx context.Context, wallet *entity.Wallet) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Wallet, error)
	// FindByUserIDForUpdate блокирует строку кошелька до конца транзакции.
	FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*entity.Wallet, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) error
	// UpdateStatus сохраняет переход pending → completed/failed/cancelled.
	UpdateStatus(ctx context.Context, tx *entity.Transaction) error
	// FindByReference возвращает nil без ошибки, если записи нет.
	FindByReference(ctx context.Context, walletID uuid.UUID, reference string) (*entity.Transaction, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entity.Transaction, int, error)
	// LedgerBalance - сумма проведённых кредитов минус сумма проведённых дебетов.
	LedgerBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
	ListPending(ctx context.Context, txType valueobject.TransactionType, createdBefore time.Time, limit int) ([]*entity.Transaction, error)
}
