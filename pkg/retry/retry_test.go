package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicy_RetriesOnceThenSucceeds(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 1, Delay: time.Millisecond})

	attempts := 0
	got, err := Get(context.Background(), p, func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected success on retry, got %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected result %q", got)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestPolicy_BoundedAttempts(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 1, Delay: time.Millisecond})

	attempts := 0
	wantErr := errors.New("still failing")
	_, err := Get(context.Background(), p, func() (int, error) {
		attempts++
		return 0, wantErr
	})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts (1 retry), got %d", attempts)
	}
}

func TestPolicy_DoWrapsGet(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 2, Delay: time.Millisecond})

	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}
