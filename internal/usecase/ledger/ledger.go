package ledger

import (
	"bytes"
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

// Ledger - кошелёк и журнал операций пользователя. Все изменения баланса
// идут под блокировкой строки кошелька внутри одной транзакции.
type Ledger struct {
	tx       repository.Transactor
	wallets  repository.WalletRepository
	entries  repository.TransactionRepository
	currency string
	log      *logrus.Entry
	now      func() time.Time
}

func New(tx repository.Transactor, wallets repository.WalletRepository, entries repository.TransactionRepository, currency string) *Ledger {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &Ledger{
		tx:       tx,
		wallets:  wallets,
		entries:  entries,
		currency: currency,
		log:      logger.WithComponent("ledger"),
		now:      time.Now,
	}
}

// Entry описывает проводку. Type по умолчанию зависит от операции.
type Entry struct {
	UserID      uuid.UUID
	Type        valueobject.TransactionType
	Amount      decimal.Decimal
	Reference   string
	Description string
	Metadata    map[string]any
}

type Balance struct {
	UserID         uuid.UUID
	Balance        decimal.Decimal
	Held           decimal.Decimal
	Available      decimal.Decimal
	Currency       string
	Status         valueobject.WalletStatus
	DailyLimit     *decimal.Decimal
	MonthlyLimit   *decimal.Decimal
	SpentToday     decimal.Decimal
	SpentThisMonth decimal.Decimal
}

type ReconcileResult struct {
	UserID        uuid.UUID
	Balance       decimal.Decimal
	LedgerBalance decimal.Decimal
	Difference    decimal.Decimal
	OK            bool
}

type postKind int

const (
	postDebit postKind = iota
	postCredit
	postRefund
)

// Debit списывает средства. Тип по умолчанию - order-debit.
func (l *Ledger) Debit(ctx context.Context, e Entry) (*entity.Transaction, error) {
	if e.Type == "" {
		e.Type = valueobject.TransactionTypeOrderDebit
	}
	if !e.Type.IsDebit() {
		return nil, apperror.Validation("тип операции не является списанием")
	}
	t, err := l.post(ctx, e, postDebit)
	metrics.RecordLedgerOperation("debit", err)
	return t, err
}

// Credit зачисляет средства. Тип по умолчанию - deposit.
func (l *Ledger) Credit(ctx context.Context, e Entry) (*entity.Transaction, error) {
	if e.Type == "" {
		e.Type = valueobject.TransactionTypeDeposit
	}
	if !e.Type.IsCredit() {
		return nil, apperror.Validation("тип операции не является зачислением")
	}
	t, err := l.post(ctx, e, postCredit)
	metrics.RecordLedgerOperation("credit", err)
	return t, err
}

// Refund зачисляет возврат и уменьшает счётчики расходов.
func (l *Ledger) Refund(ctx context.Context, e Entry) (*entity.Transaction, error) {
	e.Type = valueobject.TransactionTypeRefund
	t, err := l.post(ctx, e, postRefund)
	metrics.RecordLedgerOperation("refund", err)
	return t, err
}

func (l *Ledger) post(ctx context.Context, e Entry, kind postKind) (*entity.Transaction, error) {
	if err := valueobject.ValidatePositiveAmount(e.Amount); err != nil {
		return nil, err
	}

	var result *entity.Transaction
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		wallet, err := l.lockWallet(ctx, e.UserID)
		if err != nil {
			return err
		}

		existing, err := l.replay(ctx, wallet, e.Reference, e.Type, e.Amount)
		if err != nil {
			return err
		}
		if existing != nil {
			if !existing.IsCompleted() {
				return apperror.Conflict("операция с таким reference не проведена").
					WithDetails(map[string]any{"reference": e.Reference, "status": string(existing.Status)})
			}
			result = existing
			return nil
		}

		now := l.now()
		wallet.RollSpendWindows(now)

		switch kind {
		case postDebit:
			if err := wallet.CheckDebit(e.Amount); err != nil {
				return err
			}
			wallet.ApplyDebit(e.Amount, now)
		case postCredit:
			if err := wallet.CheckCredit(); err != nil {
				return err
			}
			wallet.ApplyCredit(e.Amount, now)
		case postRefund:
			if err := wallet.CheckCredit(); err != nil {
				return err
			}
			wallet.ApplyRefund(e.Amount, now)
		}

		t, err := l.newEntry(wallet, e)
		if err != nil {
			return err
		}
		if err := t.Complete(wallet.Balance, now); err != nil {
			return err
		}
		if err := l.entries.Create(ctx, t); err != nil {
			return err
		}
		if err := l.wallets.Update(ctx, wallet); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"user_id":   e.UserID,
		"type":      result.Type,
		"amount":    result.Amount.String(),
		"reference": result.Reference,
	}).Debug("проводка выполнена")
	return result, nil
}

// Transfer переводит средства между кошельками в одной транзакции.
// Кошельки блокируются в порядке user_id, чтобы встречные переводы не
// взаимоблокировались.
func (l *Ledger) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount decimal.Decimal, reference, description string) (out, in *entity.Transaction, err error) {
	defer func() { metrics.RecordLedgerOperation("transfer", err) }()

	if fromUserID == toUserID {
		return nil, nil, apperror.Validation("нельзя перевести средства самому себе")
	}
	if err := valueobject.ValidatePositiveAmount(amount); err != nil {
		return nil, nil, err
	}
	if reference == "" {
		reference = "TRANSFER-" + uuid.NewString()
	}
	outRef, inRef := reference+"-OUT", reference+"-IN"

	err = l.tx.WithinTx(ctx, func(ctx context.Context) error {
		first, second := fromUserID, toUserID
		if bytes.Compare(first[:], second[:]) > 0 {
			first, second = second, first
		}
		locked := make(map[uuid.UUID]*entity.Wallet, 2)
		for _, id := range []uuid.UUID{first, second} {
			w, err := l.lockWallet(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = w
		}
		from, to := locked[fromUserID], locked[toUserID]

		prevOut, err := l.replay(ctx, from, outRef, valueobject.TransactionTypeTransferOut, amount)
		if err != nil {
			return err
		}
		if prevOut != nil {
			prevIn, err := l.entries.FindByReference(ctx, to.ID, inRef)
			if err != nil {
				return err
			}
			// reference уже занят переводом другому получателю.
			if prevIn == nil || prevIn.UserID != toUserID || !prevIn.Amount.Equal(amount) {
				return apperror.Conflict("reference уже использован для другой операции").
					WithDetails(map[string]any{"reference": reference})
			}
			out, in = prevOut, prevIn
			return nil
		}

		now := l.now()
		from.RollSpendWindows(now)
		to.RollSpendWindows(now)
		if err := from.CheckDebit(amount); err != nil {
			return err
		}
		if err := to.CheckCredit(); err != nil {
			return err
		}

		from.ApplyDebit(amount, now)
		to.ApplyCredit(amount, now)

		meta := map[string]any{"from_user_id": fromUserID.String(), "to_user_id": toUserID.String(), "reference": reference}
		out, err = l.newEntry(from, Entry{Type: valueobject.TransactionTypeTransferOut, Amount: amount, Reference: outRef, Description: description, Metadata: meta})
		if err != nil {
			return err
		}
		in, err = l.newEntry(to, Entry{Type: valueobject.TransactionTypeTransferIn, Amount: amount, Reference: inRef, Description: description, Metadata: meta})
		if err != nil {
			return err
		}
		if err := out.Complete(from.Balance, now); err != nil {
			return err
		}
		if err := in.Complete(to.Balance, now); err != nil {
			return err
		}

		for _, t := range []*entity.Transaction{out, in} {
			if err := l.entries.Create(ctx, t); err != nil {
				return err
			}
		}
		if err := l.wallets.Update(ctx, from); err != nil {
			return err
		}
		return l.wallets.Update(ctx, to)
	})
	if err != nil {
		return nil, nil, err
	}
	return out, in, nil
}

// Hold резервирует сумму под заказ: создаёт pending order-debit и
// увеличивает held. Повтор с тем же reference возвращает тот же резерв.
func (l *Ledger) Hold(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference, description string) (*entity.Transaction, error) {
	if err := valueobject.ValidatePositiveAmount(amount); err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, apperror.Validation("reference обязателен для резерва")
	}

	var result *entity.Transaction
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		wallet, err := l.lockWallet(ctx, userID)
		if err != nil {
			return err
		}

		existing, err := l.replay(ctx, wallet, reference, valueobject.TransactionTypeOrderDebit, amount)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == valueobject.TransactionStatusFailed {
				return apperror.Conflict("резерв с таким reference уже снят")
			}
			result = existing
			return nil
		}

		now := l.now()
		wallet.RollSpendWindows(now)
		if err := wallet.CheckDebit(amount); err != nil {
			return err
		}

		t, err := l.newEntry(wallet, Entry{
			UserID:      userID,
			Type:        valueobject.TransactionTypeOrderDebit,
			Amount:      amount,
			Reference:   reference,
			Description: description,
		})
		if err != nil {
			return err
		}
		wallet.PlaceHold(amount, now)

		if err := l.entries.Create(ctx, t); err != nil {
			return err
		}
		if err := l.wallets.Update(ctx, wallet); err != nil {
			return err
		}
		result = t
		return nil
	})
	metrics.RecordLedgerOperation("hold", err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Capture проводит ранее созданный резерв.
func (l *Ledger) Capture(ctx context.Context, userID uuid.UUID, reference string) (*entity.Transaction, error) {
	var result *entity.Transaction
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		wallet, t, err := l.lockHold(ctx, userID, reference)
		if err != nil {
			return err
		}

		switch t.Status {
		case valueobject.TransactionStatusCompleted:
			result = t
			return nil
		case valueobject.TransactionStatusPending:
		default:
			return apperror.BusinessLogic("резерв уже снят").
				WithDetails(map[string]any{"reference": reference})
		}

		now := l.now()
		wallet.RollSpendWindows(now)
		wallet.CaptureHold(t.Amount, now)
		if err := t.Complete(wallet.Balance, now); err != nil {
			return err
		}
		if err := l.entries.UpdateStatus(ctx, t); err != nil {
			return err
		}
		if err := l.wallets.Update(ctx, wallet); err != nil {
			return err
		}
		result = t
		return nil
	})
	metrics.RecordLedgerOperation("capture", err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Release снимает резерв без списания.
func (l *Ledger) Release(ctx context.Context, userID uuid.UUID, reference string) (*entity.Transaction, error) {
	var result *entity.Transaction
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		wallet, t, err := l.lockHold(ctx, userID, reference)
		if err != nil {
			return err
		}

		switch t.Status {
		case valueobject.TransactionStatusFailed, valueobject.TransactionStatusCancelled:
			result = t
			return nil
		case valueobject.TransactionStatusPending:
		default:
			return apperror.BusinessLogic("резерв уже списан").
				WithDetails(map[string]any{"reference": reference})
		}

		now := l.now()
		wallet.ReleaseHold(t.Amount, now)
		if err := t.Fail(now); err != nil {
			return err
		}
		if err := l.entries.UpdateStatus(ctx, t); err != nil {
			return err
		}
		if err := l.wallets.Update(ctx, wallet); err != nil {
			return err
		}
		result = t
		return nil
	})
	metrics.RecordLedgerOperation("release", err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *Ledger) lockHold(ctx context.Context, userID uuid.UUID, reference string) (*entity.Wallet, *entity.Transaction, error) {
	wallet, err := l.wallets.FindByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	t, err := l.entries.FindByReference(ctx, wallet.ID, reference)
	if err != nil {
		return nil, nil, err
	}
	if t == nil || t.Type != valueobject.TransactionTypeOrderDebit {
		return nil, nil, apperror.New(apperror.ErrCodeNotFound, "резерв не найден").
			WithDetails(map[string]any{"reference": reference})
	}
	return wallet, t, nil
}

// EnsureWallet возвращает кошелёк пользователя, создавая его при первом обращении.
func (l *Ledger) EnsureWallet(ctx context.Context, userID uuid.UUID) (*entity.Wallet, error) {
	var wallet *entity.Wallet
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		wallet, err = l.lockWallet(ctx, userID)
		return err
	})
	return wallet, err
}

func (l *Ledger) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	wallet, err := l.wallets.FindByUserID(ctx, userID)
	if apperror.IsNotFound(err) {
		wallet, err = l.EnsureWallet(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	wallet.RollSpendWindows(l.now())
	return &Balance{
		UserID:         wallet.UserID,
		Balance:        wallet.Balance,
		Held:           wallet.Held,
		Available:      wallet.Available(),
		Currency:       wallet.Currency,
		Status:         wallet.Status,
		DailyLimit:     wallet.DailyLimit,
		MonthlyLimit:   wallet.MonthlyLimit,
		SpentToday:     wallet.SpentToday,
		SpentThisMonth: wallet.SpentThisMonth,
	}, nil
}

func (l *Ledger) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Transaction, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	wallet, err := l.wallets.FindByUserID(ctx, userID)
	if apperror.IsNotFound(err) {
		return []*entity.Transaction{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return l.entries.ListByWallet(ctx, wallet.ID, limit, offset)
}

// Reconcile сверяет сохранённый баланс с суммой проведённых операций.
func (l *Ledger) Reconcile(ctx context.Context, userID uuid.UUID) (*ReconcileResult, error) {
	var result *ReconcileResult
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		wallet, err := l.wallets.FindByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		sum, err := l.entries.LedgerBalance(ctx, wallet.ID)
		if err != nil {
			return err
		}
		diff := wallet.Balance.Sub(sum)
		result = &ReconcileResult{
			UserID:        userID,
			Balance:       wallet.Balance,
			LedgerBalance: sum,
			Difference:    diff,
			OK:            diff.IsZero(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.OK {
		l.log.WithFields(logrus.Fields{
			"user_id":        userID,
			"balance":        result.Balance.String(),
			"ledger_balance": result.LedgerBalance.String(),
		}).Error("баланс кошелька расходится с журналом")
	}
	return result, nil
}

func (l *Ledger) SetStatus(ctx context.Context, userID uuid.UUID, status valueobject.WalletStatus) (*entity.Wallet, error) {
	return l.mutateWallet(ctx, userID, func(w *entity.Wallet) error {
		return w.SetStatus(status)
	})
}

func (l *Ledger) SetLimits(ctx context.Context, userID uuid.UUID, daily, monthly *decimal.Decimal) (*entity.Wallet, error) {
	return l.mutateWallet(ctx, userID, func(w *entity.Wallet) error {
		return w.SetLimits(daily, monthly)
	})
}

func (l *Ledger) mutateWallet(ctx context.Context, userID uuid.UUID, fn func(w *entity.Wallet) error) (*entity.Wallet, error) {
	var wallet *entity.Wallet
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		w, err := l.lockWallet(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(w); err != nil {
			return err
		}
		wallet = w
		return l.wallets.Update(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// StaleHolds возвращает резервы заказов, висящие дольше olderThan.
func (l *Ledger) StaleHolds(ctx context.Context, olderThan time.Duration, limit int) ([]*entity.Transaction, error) {
	return l.entries.ListPending(ctx, valueobject.TransactionTypeOrderDebit, l.now().Add(-olderThan), limit)
}

// lockWallet блокирует кошелёк, создавая его при первом обращении.
// Вызывается только внутри WithinTx.
func (l *Ledger) lockWallet(ctx context.Context, userID uuid.UUID) (*entity.Wallet, error) {
	wallet, err := l.wallets.FindByUserIDForUpdate(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	if err := l.wallets.Create(ctx, entity.NewWallet(userID, l.currency)); err != nil && !apperror.IsConflict(err) {
		return nil, err
	}
	return l.wallets.FindByUserIDForUpdate(ctx, userID)
}

// replay ищет уже существующую операцию с тем же reference. Совпадение
// reference при другом типе или сумме - конфликт.
func (l *Ledger) replay(ctx context.Context, wallet *entity.Wallet, reference string, txType valueobject.TransactionType, amount decimal.Decimal) (*entity.Transaction, error) {
	if reference == "" {
		return nil, nil
	}
	existing, err := l.entries.FindByReference(ctx, wallet.ID, reference)
	if err != nil || existing == nil {
		return nil, err
	}
	if !existing.Matches(txType, amount) {
		return nil, apperror.Conflict("reference уже использован для другой операции").
			WithDetails(map[string]any{"reference": reference})
	}
	return existing, nil
}

func (l *Ledger) newEntry(wallet *entity.Wallet, e Entry) (*entity.Transaction, error) {
	t, err := entity.NewTransaction(wallet, e.Type, e.Amount, e.Reference, e.Description)
	if err != nil {
		return nil, err
	}
	t.Metadata = e.Metadata
	return t, nil
}
