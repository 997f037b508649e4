// Package retry содержит классификацию ошибок браузерных операций,
// повтор с задержкой и circuit breaker для удаленных гридов.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

type ErrorType int

const (
	ErrorTypeTemporary ErrorType = iota
	ErrorTypeCritical
	ErrorTypeRetryable
)

func (e ErrorType) String() string {
	switch e {
	case ErrorTypeTemporary:
		return "temporary"
	case ErrorTypeCritical:
		return "critical"
	case ErrorTypeRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

type ActionError struct {
	Type    ErrorType
	Action  string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Classify определяет тип ошибки по ее содержимому.
func Classify(action string, err error) *ActionError {
	if err == nil {
		return nil
	}

	msg := err.Error()
	errStr := strings.ToLower(msg)

	if errors.Is(err, playwright.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "econnrefused") ||
		strings.Contains(errStr, "etimedout") {
		return &ActionError{
			Type:    ErrorTypeRetryable,
			Action:  action,
			Message: msg,
			Err:     err,
		}
	}

	if strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "selector") ||
		strings.Contains(errStr, "element") {
		return &ActionError{
			Type:    ErrorTypeTemporary,
			Action:  action,
			Message: msg,
			Err:     err,
		}
	}

	return &ActionError{
		Type:    ErrorTypeCritical,
		Action:  action,
		Message: msg,
		Err:     err,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как не подлежащую повтору.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do выполняет fn до attempts раз с фиксированной задержкой между попытками.
// Повтор прекращается на ошибке, помеченной Permanent, или при отмене ctx.
// onRetry, если задан, вызывается перед каждой повторной попыткой.
func Do(ctx context.Context, attempts int, delay time.Duration, onRetry func(attempt int, err error), fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if onRetry != nil {
				onRetry(i, lastErr)
			}
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			} else if err := ctx.Err(); err != nil {
				return err
			}
		}

		err := fn(i + 1)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return err
		}
	}

	return fmt.Errorf("после %d попыток: %w", attempts, lastErr)
}
