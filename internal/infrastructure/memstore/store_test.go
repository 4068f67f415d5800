package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(New())

	w := entity.NewWallet(uuid.New(), "USD")
	require.NoError(t, repos.Wallets.Create(ctx, w))

	boom := errors.New("boom")
	err := repos.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		w.Balance = decimal.NewFromInt(100)
		require.NoError(t, repos.Wallets.Update(ctx, w))

		inner := repos.Transactor.WithinTx(ctx, func(ctx context.Context) error {
			tx, err := entity.NewTransaction(w, valueobject.TransactionTypeDeposit, decimal.NewFromInt(100), "dep-1", "")
			require.NoError(t, err)
			return repos.Transactions.Create(ctx, tx)
		})
		require.NoError(t, inner)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := repos.Wallets.FindByUserID(ctx, w.UserID)
	require.NoError(t, err)
	assert.True(t, stored.Balance.IsZero())

	found, err := repos.Transactions.FindByReference(ctx, w.ID, "dep-1")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestTransactionRepository_UniqueReference(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(New())
	w := entity.NewWallet(uuid.New(), "USD")

	first, _ := entity.NewTransaction(w, valueobject.TransactionTypeDeposit, decimal.NewFromInt(1), "ref", "")
	second, _ := entity.NewTransaction(w, valueobject.TransactionTypeDeposit, decimal.NewFromInt(1), "ref", "")

	require.NoError(t, repos.Transactions.Create(ctx, first))
	assert.True(t, apperror.IsConflict(repos.Transactions.Create(ctx, second)))
}

func TestOrderRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories(New())

	o := &entity.Order{ID: uuid.New(), Status: valueobject.OrderStatusPending, Metadata: map[string]any{"a": 1}}
	require.NoError(t, repos.Orders.Create(ctx, o))

	loaded, err := repos.Orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	loaded.MergeMetadata(map[string]any{"b": 2})

	again, err := repos.Orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.NotContains(t, again.Metadata, "b")

	_, err = repos.Orders.FindByID(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}
