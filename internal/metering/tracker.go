// Package metering tracks external-call usage (LLM calls, tokens, searches,
// refusals) per pipeline stage. The tracker is an injected service owned by
// the caller, with an explicit Reset lifecycle so tests can isolate state.
package metering

import (
	"context"
	"sync"
	"time"

	"prospector/pkg/logging"
)

type contextKey struct{}

// Context carries the active tracker and the stage name through a pipeline
// run.
type Context struct {
	Stage   string
	Tracker *Tracker
}

func WithContext(ctx context.Context, meterCtx *Context) context.Context {
	if meterCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, meterCtx)
}

func FromContext(ctx context.Context) (*Context, bool) {
	if ctx == nil {
		return nil, false
	}
	value := ctx.Value(contextKey{})
	if meterCtx, ok := value.(*Context); ok && meterCtx != nil {
		return meterCtx, true
	}
	return nil, false
}

// RecordLLMUsage records one LLM call against the stage carried by ctx.
// A ctx without a tracker is a no-op.
func RecordLLMUsage(ctx context.Context, inputTokens, outputTokens int) {
	meterCtx, ok := FromContext(ctx)
	if !ok || meterCtx.Tracker == nil {
		return
	}
	meterCtx.Tracker.RecordLLMCall(meterCtx.Stage, inputTokens, outputTokens)
}

// RecordSearchQuery records one external lookup against the stage carried
// by ctx.
func RecordSearchQuery(ctx context.Context) {
	meterCtx, ok := FromContext(ctx)
	if !ok || meterCtx.Tracker == nil {
		return
	}
	meterCtx.Tracker.RecordSearch(meterCtx.Stage)
}

// RecordRefusal records one groundedness refusal. Refusals are a quality
// signal, not an error.
func RecordRefusal(ctx context.Context) {
	meterCtx, ok := FromContext(ctx)
	if !ok || meterCtx.Tracker == nil {
		return
	}
	meterCtx.Tracker.RecordRefusal(meterCtx.Stage)
}

// StageUsage is the accumulated usage of one pipeline stage.
type StageUsage struct {
	LLMCalls     int
	InputTokens  int
	OutputTokens int
	Searches     int
	Refusals     int
}

// TrackerConfig configures the usage tracker.
type TrackerConfig struct {
	Logger logging.Logger

	// ReportInterval is how often accumulated usage is logged.
	// Zero disables periodic reporting.
	ReportInterval time.Duration
}

// Tracker accumulates usage per stage. Safe for concurrent use.
type Tracker struct {
	logger         logging.Logger
	reportInterval time.Duration
	stopOnce       sync.Once
	stopCh         chan struct{}

	mu           sync.Mutex
	usageByStage map[string]*StageUsage
}

func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		logger:         cfg.Logger,
		reportInterval: cfg.ReportInterval,
		stopCh:         make(chan struct{}),
		usageByStage:   make(map[string]*StageUsage),
	}
}

// Start launches periodic usage reporting when a report interval is set.
func (t *Tracker) Start() {
	if t == nil || t.reportInterval <= 0 {
		return
	}
	go t.loop()
}

// Stop halts periodic reporting and logs a final summary.
func (t *Tracker) Stop() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.report()
	})
}

func (t *Tracker) loop() {
	ticker := time.NewTicker(t.reportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.report()
		case <-t.stopCh:
			return
		}
	}
}

func (t *Tracker) report() {
	if t.logger == nil {
		return
	}
	for stage, usage := range t.Snapshot() {
		t.logger.WithFields(logging.Fields{
			"stage":         stage,
			"llm_calls":     usage.LLMCalls,
			"input_tokens":  usage.InputTokens,
			"output_tokens": usage.OutputTokens,
			"searches":      usage.Searches,
			"refusals":      usage.Refusals,
		}).Info("Usage summary")
	}
}

func (t *Tracker) stage(name string) *StageUsage {
	usage, ok := t.usageByStage[name]
	if !ok {
		usage = &StageUsage{}
		t.usageByStage[name] = usage
	}
	return usage
}

// RecordLLMCall adds one LLM call and its token counts to a stage.
func (t *Tracker) RecordLLMCall(stage string, inputTokens, outputTokens int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	usage := t.stage(stage)
	usage.LLMCalls++
	usage.InputTokens += inputTokens
	usage.OutputTokens += outputTokens

	llmCallsTotal.WithLabelValues(stage).Inc()
	llmTokensTotal.WithLabelValues(stage, "input").Add(float64(inputTokens))
	llmTokensTotal.WithLabelValues(stage, "output").Add(float64(outputTokens))
}

// RecordSearch adds one external lookup to a stage.
func (t *Tracker) RecordSearch(stage string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage(stage).Searches++
	searchQueriesTotal.WithLabelValues(stage).Inc()
}

// RecordRefusal adds one groundedness refusal to a stage.
func (t *Tracker) RecordRefusal(stage string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage(stage).Refusals++
	refusalsTotal.Inc()
}

// Snapshot returns a copy of the accumulated usage per stage.
func (t *Tracker) Snapshot() map[string]StageUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]StageUsage, len(t.usageByStage))
	for stage, usage := range t.usageByStage {
		out[stage] = *usage
	}
	return out
}

// Reset clears all accumulated usage. Prometheus counters are monotonic and
// are not reset.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usageByStage = make(map[string]*StageUsage)
}
