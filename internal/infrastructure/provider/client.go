package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/ignatzorin/smm-panel-backend/internal/logger"
)

const (
	ActionAdd      = "add"
	ActionStatus   = "status"
	ActionServices = "services"
	ActionBalance  = "balance"
	ActionCancel   = "cancel"

	maxBodySize = 4 << 20
)

// Outcome - итог вызова API провайдера.
type Outcome int

const (
	// OutcomeOK - провайдер ответил без поля error.
	OutcomeOK Outcome = iota
	// OutcomeDeclared - провайдер вернул поле error.
	OutcomeDeclared
	// OutcomeTransport - сеть, таймаут, HTTP-ошибка или неразборчивый ответ.
	OutcomeTransport
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDeclared:
		return "declared_error"
	default:
		return "transport_failure"
	}
}

// Result - ответ провайдера после всех попыток.
type Result struct {
	Outcome    Outcome
	Body       gjson.Result
	Declared   string
	Err        error
	StatusCode int
	Attempts   int
	Latency    time.Duration
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Failure описывает неудачу одной строкой для логов и last_error.
func (r Result) Failure() string {
	switch r.Outcome {
	case OutcomeOK:
		return ""
	case OutcomeDeclared:
		return r.Declared
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return fmt.Sprintf("HTTP %d", r.StatusCode)
}

// Credentials - расшифрованные реквизиты провайдера для одного вызова.
type Credentials struct {
	ProviderID        uuid.UUID
	Name              string
	APIURL            string
	APIKey            string
	RequestsPerMinute int
}

type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Client выполняет form-encoded POST к API провайдера с повторами и
// ограничением частоты на каждого провайдера.
type Client struct {
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	log        *logrus.Entry

	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter

	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		log:        logger.WithComponent("provider_client"),
		limiters:   make(map[uuid.UUID]*rate.Limiter),
		sleep:      sleepContext,
	}
}

// Do отправляет запрос action. 4xx не повторяется; 5xx, сетевые ошибки и
// таймауты повторяются до maxRetries попыток с задержкой base*2^(n-1).
func (c *Client) Do(ctx context.Context, creds Credentials, action string, params url.Values) Result {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("key", creds.APIKey)
	form.Set("action", action)
	payload := form.Encode()

	start := time.Now()
	var res Result

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.wait(ctx, creds); err != nil {
			res = Result{Outcome: OutcomeTransport, Err: err}
			res.Attempts = attempt
			break
		}

		var retry bool
		res, retry = c.attempt(ctx, creds.APIURL, payload)
		res.Attempts = attempt

		entry := c.log.WithFields(logrus.Fields{
			"provider_id": creds.ProviderID,
			"action":      action,
			"attempt":     attempt,
			"status_code": res.StatusCode,
		})
		if res.OK() {
			entry.Debug("запрос к провайдеру выполнен")
			break
		}
		entry.WithField("reason", res.Failure()).Warn("запрос к провайдеру не удался")

		if !retry || attempt == c.maxRetries {
			break
		}
		delay := c.baseDelay * time.Duration(1<<(attempt-1))
		if err := c.sleep(ctx, delay); err != nil {
			res = Result{Outcome: OutcomeTransport, Err: err, Attempts: attempt}
			break
		}
	}

	res.Latency = time.Since(start)
	return res
}

func (c *Client) attempt(ctx context.Context, apiURL, payload string) (Result, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(payload))
	if err != nil {
		return Result{Outcome: OutcomeTransport, Err: err}, false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// отмена контекста вызывающим не повторяется
		return Result{Outcome: OutcomeTransport, Err: err}, ctx.Err() == nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Result{Outcome: OutcomeTransport, Err: err, StatusCode: resp.StatusCode}, true
	}

	res := Result{StatusCode: resp.StatusCode}
	if gjson.ValidBytes(raw) {
		res.Body = gjson.ParseBytes(raw)
	}
	if msg := declaredError(res.Body); msg != "" {
		res.Outcome = OutcomeDeclared
		res.Declared = msg
		return res, resp.StatusCode >= 500
	}

	switch {
	case resp.StatusCode >= 500:
		res.Outcome = OutcomeTransport
		res.Err = fmt.Errorf("provider: код ответа %d", resp.StatusCode)
		return res, true
	case resp.StatusCode >= 400:
		res.Outcome = OutcomeTransport
		res.Err = fmt.Errorf("provider: код ответа %d", resp.StatusCode)
		return res, false
	case !res.Body.Exists():
		res.Outcome = OutcomeTransport
		res.Err = errors.New("provider: ответ не является JSON")
		return res, false
	}

	res.Outcome = OutcomeOK
	return res, false
}

func declaredError(body gjson.Result) string {
	if !body.IsObject() {
		return ""
	}
	e := body.Get("error")
	if !e.Exists() || e.Type == gjson.Null {
		return ""
	}
	msg := strings.TrimSpace(e.String())
	if msg == "" {
		msg = "provider error"
	}
	return msg
}

func (c *Client) wait(ctx context.Context, creds Credentials) error {
	if creds.RequestsPerMinute <= 0 {
		return nil
	}

	c.mu.Lock()
	lim, ok := c.limiters[creds.ProviderID]
	perSecond := rate.Limit(float64(creds.RequestsPerMinute) / 60)
	if !ok {
		burst := creds.RequestsPerMinute / 60
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(perSecond, burst)
		c.limiters[creds.ProviderID] = lim
	} else if lim.Limit() != perSecond {
		lim.SetLimit(perSecond)
	}
	c.mu.Unlock()

	return lim.Wait(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
