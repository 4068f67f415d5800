package provider

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/smm-panel-backend/internal/domain/entity"
	"github.com/ignatzorin/smm-panel-backend/internal/domain/repository"
	"github.com/ignatzorin/smm-panel-backend/internal/logger"
	"github.com/ignatzorin/smm-panel-backend/internal/metrics"
	"github.com/ignatzorin/smm-panel-backend/internal/pkg/apperror"
)

// KeyDecrypter расшифровывает API-ключ провайдера.
type KeyDecrypter interface {
	Decrypt(ciphertext, iv string) (string, error)
}

type GatewayConfig struct {
	BulkBatchSize  int
	BulkBatchDelay time.Duration
}

// Gateway реализует repository.ProviderGateway поверх Client и ведёт
// статистику здоровья провайдера: один логический вызов - одна запись.
type Gateway struct {
	client     *Client
	keys       KeyDecrypter
	providers  repository.ProviderRepository
	tx         repository.Transactor
	batchSize  int
	batchDelay time.Duration
	log        *logrus.Entry
}

var _ repository.ProviderGateway = (*Gateway)(nil)

func NewGateway(client *Client, keys KeyDecrypter, providers repository.ProviderRepository, tx repository.Transactor, cfg GatewayConfig) *Gateway {
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 10
	}
	if cfg.BulkBatchDelay < 0 {
		cfg.BulkBatchDelay = 0
	}
	return &Gateway{
		client:     client,
		keys:       keys,
		providers:  providers,
		tx:         tx,
		batchSize:  cfg.BulkBatchSize,
		batchDelay: cfg.BulkBatchDelay,
		log:        logger.WithComponent("provider_gateway"),
	}
}

func (g *Gateway) SubmitOrder(ctx context.Context, p *entity.Provider, req entity.ProviderSubmit) (string, error) {
	params := url.Values{}
	params.Set("service", req.ProviderServiceID)
	params.Set("link", req.Link)
	params.Set("quantity", strconv.FormatInt(req.Quantity, 10))

	res, err := g.call(ctx, p, ActionAdd, params)
	if err != nil {
		return "", err
	}

	id := res.Body.Get("order").String()
	if id == "" {
		return "", apperror.ExternalService(errors.New("в ответе нет order"), "провайдер не вернул номер заказа")
	}
	return id, nil
}

func (g *Gateway) GetOrderStatus(ctx context.Context, p *entity.Provider, providerOrderID string) (*entity.ProviderOrderState, error) {
	params := url.Values{}
	params.Set("order", providerOrderID)

	res, err := g.call(ctx, p, ActionStatus, params)
	if err != nil {
		return nil, err
	}
	return parseOrderState(providerOrderID, res.Body), nil
}

func (g *Gateway) GetBalance(ctx context.Context, p *entity.Provider) (*entity.ProviderBalance, error) {
	res, err := g.call(ctx, p, ActionBalance, nil)
	if err != nil {
		return nil, err
	}

	balance, ok := parseDecimal(res.Body.Get("balance"))
	if !ok {
		return nil, apperror.ExternalService(errors.New("в ответе нет balance"), "провайдер вернул некорректный баланс")
	}
	return &entity.ProviderBalance{Balance: *balance, Currency: res.Body.Get("currency").String()}, nil
}

func (g *Gateway) GetServices(ctx context.Context, p *entity.Provider) ([]entity.ProviderServiceInfo, error) {
	res, err := g.call(ctx, p, ActionServices, nil)
	if err != nil {
		return nil, err
	}
	if !res.Body.IsArray() {
		return nil, apperror.ExternalService(errors.New("ожидался массив"), "провайдер вернул некорректный список услуг")
	}

	var out []entity.ProviderServiceInfo
	for _, item := range res.Body.Array() {
		rate, ok := parseDecimal(item.Get("rate"))
		if !ok {
			continue
		}
		out = append(out, entity.ProviderServiceInfo{
			ServiceID: item.Get("service").String(),
			Name:      item.Get("name").String(),
			Type:      item.Get("type").String(),
			Category:  item.Get("category").String(),
			Rate:      *rate,
			Min:       item.Get("min").Int(),
			Max:       item.Get("max").Int(),
			DripFeed:  item.Get("dripfeed").Bool(),
			Refill:    item.Get("refill").Bool(),
			Cancel:    item.Get("cancel").Bool(),
		})
	}
	return out, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, p *entity.Provider, providerOrderID string) bool {
	params := url.Values{}
	params.Set("order", providerOrderID)

	if _, err := g.call(ctx, p, ActionCancel, params); err != nil {
		g.log.WithError(err).WithFields(logrus.Fields{
			"provider_id":       p.ID,
			"provider_order_id": providerOrderID,
		}).Warn("провайдер не отменил заказ")
		return false
	}
	return true
}

// TestConnection проверяет реквизиты запросом баланса.
func (g *Gateway) TestConnection(ctx context.Context, p *entity.Provider) error {
	_, err := g.GetBalance(ctx, p)
	return err
}

// BulkStatusCheck опрашивает заказы пачками по batchSize параллельно,
// с паузой между пачками.
func (g *Gateway) BulkStatusCheck(ctx context.Context, p *entity.Provider, providerOrderIDs []string) []entity.BulkStatusItem {
	items := make([]entity.BulkStatusItem, len(providerOrderIDs))

	for start := 0; start < len(providerOrderIDs); start += g.batchSize {
		if start > 0 && g.batchDelay > 0 {
			if err := g.client.sleep(ctx, g.batchDelay); err != nil {
				for i := start; i < len(providerOrderIDs); i++ {
					items[i] = entity.BulkStatusItem{ProviderOrderID: providerOrderIDs[i], Err: err}
				}
				return items
			}
		}

		end := start + g.batchSize
		if end > len(providerOrderIDs) {
			end = len(providerOrderIDs)
		}

		var group errgroup.Group
		for i := start; i < end; i++ {
			i := i
			group.Go(func() error {
				id := providerOrderIDs[i]
				state, err := g.GetOrderStatus(ctx, p, id)
				items[i] = entity.BulkStatusItem{ProviderOrderID: id, State: state, Err: err}
				return nil
			})
		}
		_ = group.Wait()
	}
	return items
}

func (g *Gateway) call(ctx context.Context, p *entity.Provider, action string, params url.Values) (Result, error) {
	apiKey, err := g.keys.Decrypt(p.APIKeyEncrypted, p.APIKeyIV)
	if err != nil {
		return Result{}, apperror.ExternalService(err, "не удалось расшифровать ключ провайдера")
	}

	res := g.client.Do(ctx, Credentials{
		ProviderID:        p.ID,
		Name:              p.Name,
		APIURL:            p.APIURL,
		APIKey:            apiKey,
		RequestsPerMinute: p.RequestsPerMinute,
	}, action, params)

	metrics.RecordProviderRequest(p.Name, action, res.Outcome.String(), res.Latency)
	g.recordHealth(ctx, p, action, res)

	if res.OK() {
		return res, nil
	}

	details := map[string]any{
		"provider_id": p.ID.String(),
		"action":      action,
		"outcome":     res.Outcome.String(),
		"attempts":    res.Attempts,
	}
	if res.StatusCode != 0 {
		details["status_code"] = res.StatusCode
	}
	cause := res.Err
	if res.Outcome == OutcomeDeclared {
		cause = errors.New(res.Declared)
	}
	return res, apperror.ExternalService(cause, "ошибка API провайдера: "+res.Failure()).WithDetails(details)
}

// recordHealth обновляет статистику под блокировкой строки провайдера.
// В счётчики заказов попадает только action=add. Ошибка записи не влияет
// на результат вызова.
func (g *Gateway) recordHealth(ctx context.Context, p *entity.Provider, action string, res Result) {
	if g.providers == nil || g.tx == nil {
		return
	}

	now := time.Now()
	order := action == ActionAdd
	err := g.tx.WithinTx(ctx, func(ctx context.Context) error {
		stored, err := g.providers.FindByIDForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		if res.OK() {
			stored.RecordSuccess(res.Latency, order, now)
		} else {
			stored.RecordFailure(res.Failure(), order, now)
		}
		return g.providers.Update(ctx, stored)
	})
	if err != nil {
		g.log.WithError(err).WithField("provider_id", p.ID).Warn("не удалось обновить статистику провайдера")
	}
}

func parseOrderState(providerOrderID string, body gjson.Result) *entity.ProviderOrderState {
	state := &entity.ProviderOrderState{
		ProviderOrderID: providerOrderID,
		Status:          body.Get("status").String(),
		Currency:        body.Get("currency").String(),
	}
	if charge, ok := parseDecimal(body.Get("charge")); ok {
		state.Charge = charge
	}
	state.StartCount = parseInt(body.Get("start_count"))
	state.Remains = parseInt(body.Get("remains"))
	return state
}

// parseDecimal принимает число как JSON-число или строку.
func parseDecimal(v gjson.Result) (*decimal.Decimal, bool) {
	if !v.Exists() || v.Type == gjson.Null || v.String() == "" {
		return nil, false
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return nil, false
	}
	return &d, true
}

func parseInt(v gjson.Result) *int64 {
	if !v.Exists() || v.Type == gjson.Null || v.String() == "" {
		return nil
	}
	n, err := strconv.ParseInt(v.String(), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(v.String(), 64)
		if ferr != nil {
			return nil
		}
		n = int64(f)
	}
	return &n
}
