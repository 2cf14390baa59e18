// Package llm implements out.TextGenerator on hosted language models.
package llm

import (
	"context"
	"errors"
	"time"

	"ticket_triage/pkg/logger"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the model endpoint is considered down.
var ErrCircuitOpen = errors.New("llm circuit open")

func newBreaker(name string) *gobreaker.CircuitBreaker {
	log := logger.WithField("component", "llm")
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A caller giving up is not an endpoint failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	})
}

// complete runs fn through cb and maps breaker rejections to ErrCircuitOpen.
func complete(cb *gobreaker.CircuitBreaker, fn func() (string, error)) (string, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", errors.Join(ErrCircuitOpen, err)
	}
	if err != nil {
		return "", err
	}
	text, _ := out.(string)
	return text, nil
}
