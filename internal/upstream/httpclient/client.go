// Package httpclient — HTTP-клиенты сервисов каталога и рекомендаций.
// Каждый сервис закрыт своим circuit breaker; повторов нет.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	ServiceCatalog         = "catalog"
	ServiceRecommendations = "recommendations"

	defaultTimeout       = 5 * time.Second
	defaultMaxBodyBytes  = 4 << 20
	defaultTripFailures  = 5
	defaultOpenTimeout   = 30 * time.Second
	defaultCountInterval = time.Minute
)

// Config описывает адрес апстрима и параметры breaker.
type Config struct {
	BaseURL      string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout      time.Duration `koanf:"timeout"`
	TripFailures uint32        `koanf:"trip_failures"`
	OpenTimeout  time.Duration `koanf:"open_timeout"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.TripFailures == 0 {
		c.TripFailures = defaultTripFailures
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = defaultOpenTimeout
	}
	return c
}

type bearerKey struct{}

// WithBearer кладёт токен профиля в контекст; клиент отправит его в Authorization.
func WithBearer(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFrom(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет транспорт (тесты, общий пул соединений).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *log.Entry) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.PersonalizationMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client ходит в апстрим за товарами. Один экземпляр обслуживает одну службу.
type Client struct {
	service string
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]domain.Product]
	metrics *metrics.PersonalizationMetrics
	logger  *log.Entry
}

func newClient(service string, cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid %s base url %q", service, cfg.BaseURL)
	}

	c := &Client{
		service: service,
		base:    base,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  log.New().WithField("component", service+"-client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	tripAfter := cfg.TripFailures
	c.breaker = gobreaker.NewCircuitBreaker[[]domain.Product](gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Interval:    defaultCountInterval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
			c.metrics.RecordBreakerState(name, stateValue(to))
		},
	})
	c.metrics.RecordBreakerState(service, stateValue(gobreaker.StateClosed))
	return c, nil
}

// Ошибки, которые не говорят о здоровье апстрима.
var (
	// errAbandoned: вызывающий отменил запрос или у него истёк срок.
	errAbandoned = errors.New("request abandoned by caller")
	// errClientStatus: апстрим ответил 4xx на конкретный запрос.
	errClientStatus = errors.New("client error status")
)

// countsAsHealthy решает, что breaker не считает отказом. Breaker общий для
// всех посетителей, поэтому уход одного посетителя его не размыкает.
func countsAsHealthy(err error) bool {
	return err == nil || errors.Is(err, errAbandoned) || errors.Is(err, errClientStatus)
}

// stateValue: 0 closed, 1 half-open, 2 open.
func stateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// BreakerState возвращает текущее состояние breaker в виде строки.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Ping проверяет, что breaker не разомкнут. Сетевой запрос не делается.
func (c *Client) Ping(context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("%w: %s circuit open", domain.ErrUpstreamUnavailable, c.service)
	}
	return nil
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.TrimRight(c.base.String(), "/") + "/" + strings.Join(escaped, "/")
}

// fetchProducts выполняет запрос через breaker и декодирует список товаров.
func (c *Client) fetchProducts(ctx context.Context, method, target string, body any) ([]domain.Product, error) {
	started := time.Now()
	products, err := c.breaker.Execute(func() ([]domain.Product, error) {
		return c.do(ctx, method, target, body)
	})

	outcome := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
		err = fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, c.service, err)
	case errors.Is(err, errAbandoned):
		outcome = "abandoned"
	case err != nil:
		outcome = "failure"
	}
	c.metrics.RecordUpstreamRequest(c.service, outcome, time.Since(started))
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) do(ctx context.Context, method, target string, body any) ([]domain.Product, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.service, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := bearerFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrUpstreamUnavailable, c.service, errors.Join(errAbandoned, ctx.Err()))
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, c.service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: read %s body: %w", domain.ErrUpstreamUnavailable, c.service, errors.Join(errAbandoned, ctx.Err()))
		}
		return nil, fmt.Errorf("%w: read %s body: %v", domain.ErrUpstreamUnavailable, c.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if isClientStatus(resp.StatusCode) {
			return nil, fmt.Errorf("%w: %s responded %d: %w", domain.ErrUpstreamUnavailable, c.service, resp.StatusCode, errClientStatus)
		}
		return nil, fmt.Errorf("%w: %s responded %d", domain.ErrUpstreamUnavailable, c.service, resp.StatusCode)
	}
	return decodeProducts(raw)
}

// isClientStatus: 4xx, кроме 408 и 429, которые говорят о перегрузке апстрима.
func isClientStatus(code int) bool {
	return code >= 400 && code < 500 &&
		code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}

// decodeProducts читает JSON-массив товаров. Любое другое тело считается пустым списком.
func decodeProducts(raw []byte) ([]domain.Product, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []domain.Product{}, nil
	}
	var products []domain.Product
	if err := json.Unmarshal(trimmed, &products); err != nil {
		return nil, fmt.Errorf("%w: decode products: %v", domain.ErrUpstreamUnavailable, err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}
