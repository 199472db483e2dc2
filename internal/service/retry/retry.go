package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// Config конфигурация повторов.
type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultConfig возвращает конфигурацию по умолчанию: 3 попытки с экспоненциальной задержкой.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retrier выполняет операции с повтором временных ошибок.
type Retrier struct {
	config    Config
	logger    *log.Entry
	retryable func(error) bool
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option настраивает Retrier.
type Option func(*Retrier)

// WithRetryable заменяет классификатор повторяемых ошибок.
func WithRetryable(fn func(error) bool) Option {
	return func(r *Retrier) {
		if fn != nil {
			r.retryable = fn
		}
	}
}

// WithSleep подменяет ожидание между попытками (используется в тестах).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retrier) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// New создаёт Retrier. Нулевые поля конфигурации заменяются значениями по умолчанию.
func New(config Config, logger *log.Entry, opts ...Option) *Retrier {
	defaults := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = defaults.BackoffFactor
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if logger == nil {
		logger = log.New().WithField("component", "retry")
	}

	r := &Retrier{
		config:    config,
		logger:    logger,
		retryable: IsRetryable,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do вызывает fn до MaxAttempts раз. Неповторяемая ошибка возвращается сразу.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Info("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !r.retryable(err) {
			return err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		r.logger.WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay,
		}).WithError(err).Warn("operation failed, retrying")

		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: retry interrupted: %w", operation, lastErr)
		}
		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}

	r.logger.WithFields(log.Fields{
		"operation":    operation,
		"max_attempts": r.config.MaxAttempts,
	}).WithError(lastErr).Error("operation failed after all retry attempts")
	return lastErr
}

// IsRetryable повторяет только временную недоступность внешнего сервиса.
// NotFound, конфликты и ошибки валидации не повторяются никогда.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrMaterialNotFound),
		errors.Is(err, domain.ErrConcurrencyConflict),
		errors.Is(err, domain.ErrValidationFailed),
		errors.Is(err, ErrCircuitOpen):
		return false
	case errors.Is(err, domain.ErrExternalServiceUnavailable):
		return true
	default:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
