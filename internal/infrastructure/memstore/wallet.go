package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

type WalletRepository struct {
	s *Store
}

func (r *WalletRepository) Create(ctx context.Context, w *entity.Wallet) error {
	return r.s.do(ctx, func() error {
		if _, ok := r.s.wallets[w.UserID]; ok {
			return apperror.Conflict("кошелёк пользователя уже существует")
		}
		r.s.wallets[w.UserID] = *w
		return nil
	})
}

func (r *WalletRepository) Update(ctx context.Context, w *entity.Wallet) error {
	return r.s.do(ctx, func() error {
		if _, ok := r.s.wallets[w.UserID]; !ok {
			return apperror.ErrWalletNotFound
		}
		r.s.wallets[w.UserID] = *w
		return nil
	})
}

func (r *WalletRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Wallet, error) {
	var out *entity.Wallet
	err := r.s.do(ctx, func() error {
		w, ok := r.s.wallets[userID]
		if !ok {
			return apperror.ErrWalletNotFound
		}
		out = &w
		return nil
	})
	return out, err
}

// FindByUserIDForUpdate внутри WithinTx уже защищён блокировкой Store.
func (r *WalletRepository) FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*entity.Wallet, error) {
	return r.FindByUserID(ctx, userID)
}

type TransactionRepository struct {
	s *Store
}

func (r *TransactionRepository) Create(ctx context.Context, t *entity.Transaction) error {
	return r.s.do(ctx, func() error {
		for _, existing := range r.s.transactions {
			if existing.WalletID == t.WalletID && existing.Reference == t.Reference {
				return apperror.Conflict("операция с таким reference уже существует")
			}
		}
		cp := *t
		cp.Metadata = cloneMeta(t.Metadata)
		r.s.transactions[t.ID] = cp
		return nil
	})
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, t *entity.Transaction) error {
	return r.s.do(ctx, func() error {
		existing, ok := r.s.transactions[t.ID]
		if !ok {
			return apperror.New(apperror.ErrCodeNotFound, "операция не найдена")
		}
		existing.Status = t.Status
		existing.BalanceAfter = t.BalanceAfter
		existing.CompletedAt = t.CompletedAt
		r.s.transactions[t.ID] = existing
		return nil
	})
}

func (r *TransactionRepository) FindByReference(ctx context.Context, walletID uuid.UUID, reference string) (*entity.Transaction, error) {
	var out *entity.Transaction
	err := r.s.do(ctx, func() error {
		for _, t := range r.s.transactions {
			if t.WalletID == walletID && t.Reference == reference {
				cp := t
				cp.Metadata = cloneMeta(t.Metadata)
				out = &cp
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *TransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entity.Transaction, int, error) {
	var out []*entity.Transaction
	total := 0
	err := r.s.do(ctx, func() error {
		var all []entity.Transaction
		for _, t := range r.s.transactions {
			if t.WalletID == walletID {
				all = append(all, t)
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
		total = len(all)
		for _, t := range page(all, limit, offset) {
			cp := t
			out = append(out, &cp)
		}
		return nil
	})
	return out, total, err
}

func (r *TransactionRepository) LedgerBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := r.s.do(ctx, func() error {
		for _, t := range r.s.transactions {
			if t.WalletID == walletID && t.IsCompleted() {
				sum = sum.Add(t.Signed())
			}
		}
		return nil
	})
	return sum, err
}

func (r *TransactionRepository) ListPending(ctx context.Context, txType valueobject.TransactionType, createdBefore time.Time, limit int) ([]*entity.Transaction, error) {
	var out []*entity.Transaction
	err := r.s.do(ctx, func() error {
		var all []entity.Transaction
		for _, t := range r.s.transactions {
			if t.Type == txType && t.IsPending() && t.CreatedAt.Before(createdBefore) {
				all = append(all, t)
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
		for _, t := range page(all, limit, 0) {
			cp := t
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}
