// Package agent coordinates one chat turn end to end: admission, intent
// gating, context assembly, generation, and the follow-up writes that
// happen after the reply is out the door.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"resume-agent/internal/ai"
	"resume-agent/internal/intent"
	"resume-agent/internal/memory"
	"resume-agent/internal/model"
	"resume-agent/internal/persona"
	"resume-agent/internal/session"
	"resume-agent/internal/trace"
)

// Turn states, in the order a turn moves through them.
const (
	StateAdmitted      = "admitted"
	StateIntentChecked = "intent_checked"
	StateContextBuilt  = "context_built"
	StateGenerating    = "generating"
	StateCompleted     = "completed"
	StateDeclined      = "declined"
	StateFailed        = "failed"
)

var (
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrSessionBusy     = errors.New("a reply is already being generated for this session")
)

const memoryFetchTimeout = 2 * time.Second

// Generator produces streamed completions. *ai.Client satisfies it.
type Generator interface {
	StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, opts ai.ChatOptions, onChunk func(string) error) (string, ai.Usage, error)
}

// UsagePublisher hands usage events to the async persistence queue.
type UsagePublisher interface {
	PublishUsage(ctx context.Context, event model.UsageEvent) error
}

// Result describes a finished turn.
type Result struct {
	State     string
	Reply     string
	Intent    string
	TokensIn  int
	TokensOut int
	LatencyMS int64
}

type Orchestrator struct {
	sessions  *session.Store
	gate      intent.Classifier
	assembler *Assembler
	history   *History
	generator Generator
	chatCfg   ai.ChatConfig
	memory    memory.Retriever
	tracer    trace.Sink
	fallback  *persona.Persona
	publisher UsagePublisher
	timeout   time.Duration
	log       *zap.Logger

	mu   sync.Mutex
	busy map[string]bool
}

func NewOrchestrator(
	sessions *session.Store,
	gate intent.Classifier,
	assembler *Assembler,
	history *History,
	generator Generator,
	chatCfg ai.ChatConfig,
	mem memory.Retriever,
	tracer trace.Sink,
	p *persona.Persona,
	publisher UsagePublisher,
	streamTimeout time.Duration,
	log *zap.Logger,
) *Orchestrator {
	if streamTimeout <= 0 {
		streamTimeout = 60 * time.Second
	}
	return &Orchestrator{
		sessions:  sessions,
		gate:      gate,
		assembler: assembler,
		history:   history,
		generator: generator,
		chatCfg:   chatCfg,
		memory:    mem,
		tracer:    tracer,
		fallback:  p,
		publisher: publisher,
		timeout:   streamTimeout,
		log:       log,
		busy:      make(map[string]bool),
	}
}

// Stream runs one turn, forwarding reply fragments to onChunk in generation
// order. An error from onChunk aborts generation and is returned unchanged,
// so callers can tell a client disconnect from a model failure. The returned
// Result is non-nil whenever the turn was admitted.
func (o *Orchestrator) Stream(ctx context.Context, sessionID, query string, onChunk func(string) error) (*Result, error) {
	sess := o.sessions.Get(ctx, sessionID)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if !o.acquire(sessionID) {
		return nil, ErrSessionBusy
	}
	defer o.release(sessionID)

	o.sessions.Touch(ctx, sessionID)
	started := time.Now()

	hints := intent.Hints{Company: sess.Company}
	if info := sess.JobInfoStruct(); info != nil {
		if info.CompanyName != "" {
			hints.Company = info.CompanyName
		}
		hints.RoleTitle = info.RoleTitle
	}
	decision := o.gate.Classify(ctx, query, hints)

	if !decision.InScope() {
		reply := decision.DeclineMessage
		if reply == "" {
			reply = o.fallback.DeclineReply()
		}
		if err := onChunk(reply); err != nil {
			return nil, err
		}
		res := &Result{
			State:     StateDeclined,
			Reply:     reply,
			Intent:    decision.Label,
			LatencyMS: time.Since(started).Milliseconds(),
		}
		o.history.Append(ctx, sessionID, model.RoleUser, query)
		o.afterTurn(sess, query, res)
		return res, nil
	}

	snippets := o.fetchSnippets(ctx, sessionID, query)
	recent := o.history.Recent(ctx, sessionID, o.assembler.maxTurns)
	messages := o.assembler.Build(sess, recent, snippets, query)

	genCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	// A delivery failure and a generation failure both surface through
	// StreamComplete's single error return; track delivery separately so a
	// dead client never triggers the fallback path.
	var deliveryErr error
	send := func(chunk string) error {
		if err := onChunk(chunk); err != nil {
			deliveryErr = err
			return err
		}
		return nil
	}

	reply, usage, err := o.generator.StreamComplete(genCtx, o.chatCfg, messages, ai.ChatOptions{}, send)
	if err != nil {
		if deliveryErr != nil {
			return nil, deliveryErr
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("stream aborted: %w", ctx.Err())
		}
		// Fragments already delivered stay as-is; the recorded reply is
		// the fallback so the client can render an error affordance.
		o.log.Warn("generation failed", zap.String("session_id", sessionID),
			zap.Int("partial_runes", len([]rune(reply))), zap.Error(err))
		fb := o.fallback.FallbackReply()
		if sendErr := onChunk(fb); sendErr != nil {
			return nil, sendErr
		}
		res := &Result{
			State:     StateFailed,
			Reply:     fb,
			Intent:    decision.Label,
			LatencyMS: time.Since(started).Milliseconds(),
		}
		o.history.Append(ctx, sessionID, model.RoleUser, query)
		o.history.Append(ctx, sessionID, model.RoleAssistant, fb)
		o.afterTurn(sess, query, res)
		return res, nil
	}

	res := &Result{
		State:     StateCompleted,
		Reply:     reply,
		Intent:    decision.Label,
		TokensIn:  usage.TokensIn,
		TokensOut: usage.TokensOut,
		LatencyMS: time.Since(started).Milliseconds(),
	}

	o.history.Append(ctx, sessionID, model.RoleUser, query)
	o.history.Append(ctx, sessionID, model.RoleAssistant, reply)
	o.afterTurn(sess, query, res)
	return res, nil
}

// Respond runs one turn without streaming. It shares the full Stream path,
// so the reply equals the concatenation a streaming client would have seen.
func (o *Orchestrator) Respond(ctx context.Context, sessionID, query string) (*Result, error) {
	return o.Stream(ctx, sessionID, query, func(string) error { return nil })
}

// fetchSnippets asks the memory layer concurrently and abandons it at the
// deadline rather than holding up generation.
func (o *Orchestrator) fetchSnippets(ctx context.Context, sessionID, query string) []string {
	if o.memory == nil || !o.memory.Enabled() {
		return nil
	}

	type fetched struct{ snippets []string }
	ch := make(chan fetched, 1)
	go func() {
		ch <- fetched{o.memory.Snippets(ctx, sessionID, query, 0)}
	}()

	select {
	case f := <-ch:
		return f.snippets
	case <-time.After(memoryFetchTimeout):
		o.log.Warn("memory fetch abandoned", zap.String("session_id", sessionID))
		return nil
	case <-ctx.Done():
		return nil
	}
}

// afterTurn handles the writes that must not delay the reply: memory,
// tracing, and usage accounting.
func (o *Orchestrator) afterTurn(sess *model.Session, query string, res *Result) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if res.State == StateCompleted && o.memory != nil && o.memory.Enabled() {
			o.memory.Remember(ctx, sess.ID, model.RoleUser, query)
			o.memory.Remember(ctx, sess.ID, model.RoleAssistant, res.Reply)
		}

		if o.tracer != nil && o.tracer.Enabled() {
			o.tracer.LogGeneration(ctx, trace.Generation{
				Name:      "chat_turn",
				SessionID: sess.ID,
				Model:     o.chatCfg.Model,
				Input:     query,
				Output:    res.Reply,
				TokensIn:  res.TokensIn,
				TokensOut: res.TokensOut,
				LatencyMS: res.LatencyMS,
				CostUSD:   trace.Cost(o.chatCfg.Model, res.TokensIn, res.TokensOut),
				Timestamp: time.Now(),
			})
		}

		if o.publisher != nil {
			event := model.UsageEvent{
				SessionID: sess.ID,
				EventType: res.State,
				Intent:    res.Intent,
				TokensIn:  res.TokensIn,
				TokensOut: res.TokensOut,
				LatencyMS: res.LatencyMS,
			}
			if err := o.publisher.PublishUsage(ctx, event); err != nil {
				o.log.Warn("usage event publish failed", zap.String("session_id", sess.ID), zap.Error(err))
			}
		}
	}()
}

func (o *Orchestrator) acquire(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy[sessionID] {
		return false
	}
	o.busy[sessionID] = true
	return true
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	delete(o.busy, sessionID)
	o.mu.Unlock()
}
