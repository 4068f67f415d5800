package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

const uniqueViolation = "23505"

type txKey struct{}

// querier - общее подмножество *sqlx.DB и *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Transactor кладёт открытую транзакцию в контекст. Репозитории берут
// соединение через conn и сами попадают в транзакцию.
type Transactor struct {
	db *sqlx.DB
}

var _ repository.Transactor = (*Transactor)(nil)

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx выполняет функцию внутри транзакции с правильной обработкой ошибок
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			// При панике откатываем транзакцию
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type base struct {
	db *sqlx.DB
}

func (b base) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return b.db
}

// get читает одну строку; отсутствие строки превращается в notFound.
func (b base) get(ctx context.Context, dest interface{}, notFound error, query string, args ...interface{}) error {
	if err := b.conn(ctx).GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound
		}
		return dbError(err, "не удалось прочитать запись")
	}
	return nil
}

// execOne выполняет UPDATE и требует ровно одну затронутую строку.
func (b base) execOne(ctx context.Context, notFound error, query string, args ...interface{}) error {
	res, err := b.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return dbError(err, "не удалось обновить запись")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "не удалось обновить запись")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (b base) exec(ctx context.Context, message string, query string, args ...interface{}) error {
	if _, err := b.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return dbError(err, message)
	}
	return nil
}

// dbError переводит нарушение уникальности в CONFLICT, остальное в DATABASE_ERROR.
func dbError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperror.Wrap(err, apperror.ErrCodeConflict, "запись уже существует").
			WithDetails(map[string]any{"constraint": pqErr.Constraint})
	}
	return apperror.Wrap(err, apperror.ErrCodeDatabaseError, message)
}

func marshalMeta(m map[string]any) (types.JSONText, error) {
	if len(m) == 0 {
		return types.JSONText("{}"), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать metadata")
	}
	return types.JSONText(raw), nil
}

func unmarshalMeta(raw types.JSONText) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	if err := raw.Unmarshal(&out); err != nil {
		return map[string]any{}
	}
	return out
}

// errNoRow - внутренний маркер отсутствия строки для поиска без ошибки.
var errNoRow = errors.New("persistence: no row")

type Repositories struct {
	Transactor   *Transactor
	Wallets      *WalletRepository
	Transactions *TransactionRepository
	Orders       *OrderRepository
	History      *OrderHistoryRepository
	Services     *ServiceRepository
	Providers    *ProviderRepository
}

func NewRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Transactor:   NewTransactor(db),
		Wallets:      NewWalletRepository(db),
		Transactions: NewTransactionRepository(db),
		Orders:       NewOrderRepository(db),
		History:      NewOrderHistoryRepository(db),
		Services:     NewServiceRepository(db),
		Providers:    NewProviderRepository(db),
	}
}
