package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/valueobject"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

const walletColumns = `id, user_id, balance, held, currency, status, daily_limit, monthly_limit,
	spent_today, spent_this_month, last_transaction_at, created_at, updated_at`

type walletRow struct {
	ID                uuid.UUID           `db:"id"`
	UserID            uuid.UUID           `db:"user_id"`
	Balance           decimal.Decimal     `db:"balance"`
	Held              decimal.Decimal     `db:"held"`
	Currency          string              `db:"currency"`
	Status            string              `db:"status"`
	DailyLimit        decimal.NullDecimal `db:"daily_limit"`
	MonthlyLimit      decimal.NullDecimal `db:"monthly_limit"`
	SpentToday        decimal.Decimal     `db:"spent_today"`
	SpentThisMonth    decimal.Decimal     `db:"spent_this_month"`
	LastTransactionAt *time.Time          `db:"last_transaction_at"`
	CreatedAt         time.Time           `db:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at"`
}

func (r walletRow) toEntity() *entity.Wallet {
	return &entity.Wallet{
		ID:                r.ID,
		UserID:            r.UserID,
		Balance:           r.Balance,
		Held:              r.Held,
		Currency:          r.Currency,
		Status:            valueobject.WalletStatus(r.Status),
		DailyLimit:        fromNullDecimal(r.DailyLimit),
		MonthlyLimit:      fromNullDecimal(r.MonthlyLimit),
		SpentToday:        r.SpentToday,
		SpentThisMonth:    r.SpentThisMonth,
		LastTransactionAt: r.LastTransactionAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type WalletRepository struct {
	base
}

var _ repository.WalletRepository = (*WalletRepository)(nil)

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{base{db: db}}
}

// Create вставляет кошелёк. Если кошелёк пользователя уже есть, возвращает CONFLICT.
func (r *WalletRepository) Create(ctx context.Context, w *entity.Wallet) error {
	res, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO wallets (`+walletColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO NOTHING
	`, w.ID, w.UserID, w.Balance, w.Held, w.Currency, string(w.Status),
		toNullDecimal(w.DailyLimit), toNullDecimal(w.MonthlyLimit),
		w.SpentToday, w.SpentThisMonth, w.LastTransactionAt, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return dbError(err, "не удалось создать кошелёк")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.Conflict("кошелёк пользователя уже существует")
	}
	return nil
}

func (r *WalletRepository) Update(ctx context.Context, w *entity.Wallet) error {
	return r.execOne(ctx, apperror.ErrWalletNotFound, `
		UPDATE wallets
		SET balance = $2, held = $3, status = $4, daily_limit = $5, monthly_limit = $6,
		    spent_today = $7, spent_this_month = $8, last_transaction_at = $9, updated_at = $10
		WHERE id = $1
	`, w.ID, w.Balance, w.Held, string(w.Status),
		toNullDecimal(w.DailyLimit), toNullDecimal(w.MonthlyLimit),
		w.SpentToday, w.SpentThisMonth, w.LastTransactionAt, w.UpdatedAt)
}

func (r *WalletRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Wallet, error) {
	var row walletRow
	if err := r.get(ctx, &row, apperror.ErrWalletNotFound,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *WalletRepository) FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*entity.Wallet, error) {
	var row walletRow
	if err := r.get(ctx, &row, apperror.ErrWalletNotFound,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

const transactionColumns = `id, wallet_id, user_id, type, amount, currency, status, reference,
	description, metadata, balance_after, created_at, completed_at`

type transactionRow struct {
	ID           uuid.UUID           `db:"id"`
	WalletID     uuid.UUID           `db:"wallet_id"`
	UserID       uuid.UUID           `db:"user_id"`
	Type         string              `db:"type"`
	Amount       decimal.Decimal     `db:"amount"`
	Currency     string              `db:"currency"`
	Status       string              `db:"status"`
	Reference    string              `db:"reference"`
	Description  string              `db:"description"`
	Metadata     types.JSONText      `db:"metadata"`
	BalanceAfter decimal.NullDecimal `db:"balance_after"`
	CreatedAt    time.Time           `db:"created_at"`
	CompletedAt  *time.Time          `db:"completed_at"`
}

func (r transactionRow) toEntity() *entity.Transaction {
	return &entity.Transaction{
		ID:           r.ID,
		WalletID:     r.WalletID,
		UserID:       r.UserID,
		Type:         valueobject.TransactionType(r.Type),
		Amount:       r.Amount,
		Currency:     r.Currency,
		Status:       valueobject.TransactionStatus(r.Status),
		Reference:    r.Reference,
		Description:  r.Description,
		Metadata:     unmarshalMeta(r.Metadata),
		BalanceAfter: fromNullDecimal(r.BalanceAfter),
		CreatedAt:    r.CreatedAt,
		CompletedAt:  r.CompletedAt,
	}
}

type TransactionRepository struct {
	base
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{base{db: db}}
}

func (r *TransactionRepository) Create(ctx context.Context, t *entity.Transaction) error {
	meta, err := marshalMeta(t.Metadata)
	if err != nil {
		return err
	}
	return r.exec(ctx, "не удалось записать операцию", `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, t.ID, t.WalletID, t.UserID, string(t.Type), t.Amount, t.Currency, string(t.Status),
		t.Reference, t.Description, meta, toNullDecimal(t.BalanceAfter), t.CreatedAt, t.CompletedAt)
}

// UpdateStatus меняет только pending-записи: проведённая операция неизменна.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, t *entity.Transaction) error {
	return r.execOne(ctx, apperror.Conflict("операция уже не в статусе pending"), `
		UPDATE transactions
		SET status = $2, balance_after = $3, completed_at = $4
		WHERE id = $1 AND status = 'pending'
	`, t.ID, string(t.Status), toNullDecimal(t.BalanceAfter), t.CompletedAt)
}

func (r *TransactionRepository) FindByReference(ctx context.Context, walletID uuid.UUID, reference string) (*entity.Transaction, error) {
	var row transactionRow
	err := r.get(ctx, &row, errNoRow,
		`SELECT `+transactionColumns+` FROM transactions WHERE wallet_id = $1 AND reference = $2`, walletID, reference)
	if err == errNoRow {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (r *TransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entity.Transaction, int, error) {
	var total int
	if err := r.conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions WHERE wallet_id = $1`, walletID); err != nil {
		return nil, 0, dbError(err, "не удалось посчитать операции")
	}

	var rows []transactionRow
	if err := r.conn(ctx).SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset); err != nil {
		return nil, 0, dbError(err, "не удалось получить операции")
	}

	out := make([]*entity.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, total, nil
}

func (r *TransactionRepository) LedgerBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.conn(ctx).GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(CASE WHEN type = ANY($2) THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE wallet_id = $1 AND status = 'completed'
	`, walletID, creditTypes())
	if err != nil {
		return decimal.Zero, dbError(err, "не удалось пересчитать баланс")
	}
	return sum, nil
}

func (r *TransactionRepository) ListPending(ctx context.Context, txType valueobject.TransactionType, createdBefore time.Time, limit int) ([]*entity.Transaction, error) {
	var rows []transactionRow
	if err := r.conn(ctx).SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE type = $1 AND status = 'pending' AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, string(txType), createdBefore, limit); err != nil {
		return nil, dbError(err, "не удалось получить ожидающие операции")
	}

	out := make([]*entity.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func creditTypes() pq.StringArray {
	credit := []valueobject.TransactionType{
		valueobject.TransactionTypeDeposit,
		valueobject.TransactionTypeRefund,
		valueobject.TransactionTypeBonus,
		valueobject.TransactionTypeTransferIn,
	}
	out := make(pq.StringArray, 0, len(credit))
	for _, t := range credit {
		out = append(out, string(t))
	}
	return out
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
