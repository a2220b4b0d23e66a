package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// CompleteText runs a completion without tools and drains the stream into a
// single string.
func CompleteText(ctx context.Context, provider Provider, messages []Message) (string, error) {
	if provider == nil {
		return "", errors.New("llm provider is required")
	}
	stream, err := provider.Complete(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var result strings.Builder
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		result.WriteString(chunk.Content)
	}
	return result.String(), nil
}

// EstimateTokens gives a rough token count for usage accounting.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

// CallStatus tags the outcome of a deadline-bound completion.
type CallStatus int

const (
	CallCompleted CallStatus = iota
	CallDeadlineExceeded
	CallFailed
)

// CallResult is the tagged outcome of CompleteTextWithDeadline.
type CallResult struct {
	Status CallStatus
	Text   string
	Err    error
}

// CompleteTextWithDeadline races a completion against a wall-clock deadline.
// The call runs in its own goroutine so a provider that ignores context
// cancellation cannot block the caller past the deadline; its eventual result
// is discarded.
func CompleteTextWithDeadline(ctx context.Context, provider Provider, messages []Message, timeout time.Duration) CallResult {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := CompleteText(callCtx, provider, messages)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return CallResult{Status: CallDeadlineExceeded, Err: out.err}
			}
			return CallResult{Status: CallFailed, Err: out.err}
		}
		return CallResult{Status: CallCompleted, Text: out.text}
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return CallResult{Status: CallDeadlineExceeded, Err: callCtx.Err()}
		}
		return CallResult{Status: CallFailed, Err: callCtx.Err()}
	}
}
