package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/nourish-clinic/platform/pkg/common/models"
)

func init() {
	logger.Silence()
}

func countingHandler(failures int, failWith error) (EventHandler, *int) {
	calls := 0
	return func(context.Context, models.Event) error {
		calls++
		if calls <= failures {
			return failWith
		}
		return nil
	}, &calls
}

func TestHandleWithRetryRecoversFromTransientFailure(t *testing.T) {
	handler, calls := countingHandler(2, errors.New("connection reset"))
	err := handleWithRetry(context.Background(), 5, time.Millisecond, models.Event{ID: "e1"}, handler)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if *calls != 3 {
		t.Fatalf("expected 3 calls, got %d", *calls)
	}
}

func TestHandleWithRetryExhausts(t *testing.T) {
	handler, calls := countingHandler(10, errors.New("database down"))
	err := handleWithRetry(context.Background(), 3, time.Millisecond, models.Event{ID: "e2"}, handler)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if *calls != 3 {
		t.Fatalf("expected 3 calls, got %d", *calls)
	}
}

func TestHandleWithRetryPoisonIsNotRetried(t *testing.T) {
	handler, calls := countingHandler(10, ErrPoison)
	err := handleWithRetry(context.Background(), 5, time.Millisecond, models.Event{ID: "e3"}, handler)
	if !errors.Is(err, ErrPoison) || errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected bare ErrPoison, got %v", err)
	}
	if *calls != 1 {
		t.Fatalf("expected a single call, got %d", *calls)
	}
}

func TestHandleWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := func(context.Context, models.Event) error {
		cancel()
		return errors.New("timeout")
	}
	err := handleWithRetry(ctx, 5, time.Second, models.Event{ID: "e4"}, handler)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
