package material

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/retry"
)

const defaultClientTimeout = 5 * time.Second

var endpoints = map[domain.MaterialKind]string{
	domain.MaterialKindMaterial:      "/api/v1/materials/%d",
	domain.MaterialKindColor:         "/api/v1/colors/%d",
	domain.MaterialKindSurfaceFinish: "/api/v1/surface-finishings/%d",
}

type referenceDTO struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Client HTTP-клиент сервиса справочника материалов.
type Client struct {
	baseURL string
	http    *http.Client
	retrier *retry.Retrier
	breaker *retry.CircuitBreaker
	logger  *log.Entry
}

// ClientOption настраивает Client.
type ClientOption func(*Client)

// WithHTTPClient задаёт http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetrier задаёт политику повторов.
func WithRetrier(r *retry.Retrier) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.retrier = r
		}
	}
}

// WithCircuitBreaker подключает breaker.
func WithCircuitBreaker(cb *retry.CircuitBreaker) ClientOption {
	return func(c *Client) {
		c.breaker = cb
	}
}

// WithClientLogger задаёт логгер.
func WithClientLogger(logger *log.Entry) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient создаёт клиент для baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultClientTimeout},
		logger:  log.New().WithField("component", "material-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retrier == nil {
		c.retrier = retry.New(retry.DefaultConfig(), c.logger)
	}
	return c
}

// LookupName запрашивает название позиции справочника с повтором временных ошибок.
func (c *Client) LookupName(ctx context.Context, kind domain.MaterialKind, id int) (string, error) {
	pattern, ok := endpoints[kind]
	if !ok {
		return "", domain.NewValidationError("kind", fmt.Sprintf("unsupported material kind %q", kind))
	}
	url := c.baseURL + fmt.Sprintf(pattern, id)

	var name string
	err := c.retrier.Do(ctx, "material.lookup", func(ctx context.Context) error {
		return c.breaker.Execute("material.lookup", func() error {
			n, err := c.fetch(ctx, url)
			if err != nil {
				return err
			}
			name = n
			return nil
		}, retry.IsRetryable)
	})
	if err != nil {
		return "", fmt.Errorf("lookup %s %d: %w", kind, id, err)
	}
	return name, nil
}

// Ping проверяет доступность сервиса (для health-check).
func (c *Client) Ping(ctx context.Context) error {
	if c.breaker != nil && c.breaker.State() == retry.CircuitOpen {
		return retry.ErrCircuitOpen
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build material request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", domain.ErrExternalServiceUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
	case res.StatusCode == http.StatusNotFound:
		return "", domain.ErrMaterialNotFound
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("%w: status %d", domain.ErrExternalServiceUnavailable, res.StatusCode)
	default:
		return "", fmt.Errorf("unexpected material service status %d", res.StatusCode)
	}

	var dto referenceDTO
	if err := json.NewDecoder(res.Body).Decode(&dto); err != nil {
		return "", fmt.Errorf("decode material response: %w", err)
	}
	if strings.TrimSpace(dto.Name) == "" {
		return "", errors.New("material service returned empty name")
	}
	return dto.Name, nil
}

var _ domain.MaterialLookup = (*Client)(nil)
