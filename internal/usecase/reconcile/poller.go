package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/goroutine"
	"github.com/ignatzorin/smm-panel-backend/internal/logger"
	"github.com/ignatzorin/smm-panel-backend/internal/metrics"
)

// StatusApplier применяет ответ провайдера к заказу.
type StatusApplier interface {
	Execute(ctx context.Context, orderID uuid.UUID, state *entity.ProviderOrderState) (*entity.Order, error)
}

// HoldReporter находит резервы, зависшие в pending.
type HoldReporter interface {
	StaleHolds(ctx context.Context, olderThan time.Duration, limit int) ([]*entity.Transaction, error)
}

type Config struct {
	Schedule     string
	BatchLimit   int
	RunTimeout   time.Duration
	StaleHoldAge time.Duration
}

type Report struct {
	Checked    int
	Updated    int
	Failed     int
	StaleHolds int
}

// Poller периодически опрашивает провайдеров о выполняющихся заказах и
// проводит переходы через тот же StatusApplier, что и ручные операции.
type Poller struct {
	orders    repository.OrderRepository
	providers repository.ProviderRepository
	gateway   repository.ProviderGateway
	apply     StatusApplier
	holds     HoldReporter
	cfg       Config

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	log     *logrus.Entry
}

func NewPoller(
	orders repository.OrderRepository,
	providers repository.ProviderRepository,
	gateway repository.ProviderGateway,
	apply StatusApplier,
	holds HoldReporter,
	cfg Config,
) *Poller {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 500
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if cfg.StaleHoldAge <= 0 {
		cfg.StaleHoldAge = 15 * time.Minute
	}
	return &Poller{
		orders:    orders,
		providers: providers,
		gateway:   gateway,
		apply:     apply,
		holds:     holds,
		cfg:       cfg,
		log:       logger.WithComponent("reconcile_poller"),
	}
}

// Start регистрирует задачу в cron. Запуски не пересекаются.
func (p *Poller) Start() error {
	recovery := goroutine.NewRecoveryHandler(p.log)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(p.log))))
	if _, err := c.AddFunc(p.cfg.Schedule, func() {
		recovery.Run(func() {
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.RunTimeout)
			defer cancel()
			_, _ = p.RunOnce(ctx)
		})
	}); err != nil {
		return err
	}

	p.cron = c
	c.Start()
	p.log.WithField("schedule", p.cfg.Schedule).Info("опрос провайдеров запущен")
	return nil
}

// Stop останавливает расписание и ждёт завершения текущего запуска.
func (p *Poller) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
	p.log.Info("опрос провайдеров остановлен")
}

// RunOnce выполняет один проход. Если проход уже идёт, возвращает пустой отчёт.
func (p *Poller) RunOnce(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.log.Debug("предыдущий проход ещё выполняется")
		return &Report{}, nil
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	report, err := p.run(ctx)
	metrics.RecordPollerRun(report.Checked, err)
	if err != nil {
		p.log.WithError(err).Error("проход опроса провайдеров завершился ошибкой")
		return report, err
	}

	p.log.WithFields(logrus.Fields{
		"checked":     report.Checked,
		"updated":     report.Updated,
		"failed":      report.Failed,
		"stale_holds": report.StaleHolds,
	}).Info("проход опроса провайдеров завершён")
	return report, nil
}

func (p *Poller) run(ctx context.Context) (*Report, error) {
	report := &Report{}

	active, err := p.orders.ListActive(ctx, p.cfg.BatchLimit)
	if err != nil {
		return report, err
	}

	byProvider := make(map[uuid.UUID][]*entity.Order)
	for _, o := range active {
		if o.ProviderOrderID == nil {
			continue
		}
		byProvider[o.ProviderID] = append(byProvider[o.ProviderID], o)
	}

	for providerID, orders := range byProvider {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p.pollProvider(ctx, providerID, orders, report)
	}

	p.reportStaleHolds(ctx, report)
	return report, nil
}

func (p *Poller) pollProvider(ctx context.Context, providerID uuid.UUID, orders []*entity.Order, report *Report) {
	log := p.log.WithField("provider_id", providerID)

	provider, err := p.providers.FindByID(ctx, providerID)
	if err != nil {
		log.WithError(err).Warn("провайдер не найден, заказы пропущены")
		report.Failed += len(orders)
		return
	}
	if !provider.IsActive {
		log.Debug("провайдер отключён, заказы пропущены")
		return
	}

	ids := make([]string, 0, len(orders))
	byProviderOrderID := make(map[string]*entity.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, *o.ProviderOrderID)
		byProviderOrderID[*o.ProviderOrderID] = o
	}

	for _, item := range p.gateway.BulkStatusCheck(ctx, provider, ids) {
		report.Checked++
		o := byProviderOrderID[item.ProviderOrderID]
		if o == nil {
			continue
		}
		if item.Err != nil || item.State == nil {
			report.Failed++
			log.WithError(item.Err).WithField("order_id", o.ID).Warn("не удалось получить статус заказа")
			continue
		}

		updated, err := p.apply.Execute(ctx, o.ID, item.State)
		if err != nil {
			report.Failed++
			log.WithError(err).WithField("order_id", o.ID).Error("не удалось применить статус провайдера")
			continue
		}
		if updated.Status != o.Status || !sameRemains(updated.Remains, o.Remains) {
			report.Updated++
		}
	}
}

// reportStaleHolds только сообщает о зависших резервах: снимать их
// автоматически нельзя, провайдер мог принять заказ.
func (p *Poller) reportStaleHolds(ctx context.Context, report *Report) {
	if p.holds == nil {
		return
	}
	stale, err := p.holds.StaleHolds(ctx, p.cfg.StaleHoldAge, 100)
	if err != nil {
		p.log.WithError(err).Warn("не удалось проверить зависшие резервы")
		return
	}

	report.StaleHolds = len(stale)
	metrics.SetStaleHolds(len(stale))
	for _, t := range stale {
		p.log.WithFields(logrus.Fields{
			"user_id":    t.UserID,
			"reference":  t.Reference,
			"amount":     t.Amount.String(),
			"created_at": t.CreatedAt,
		}).Warn("резерв ожидает сверки")
	}
}

func sameRemains(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
