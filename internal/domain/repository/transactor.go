package repository

import "context"

// Transactor выполняет fn в одной транзакции БД. Репозитории, вызванные
// с полученным ctx, работают внутри неё. Вложенный вызов использует
// внешнюю транзакцию.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
