package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"resume-agent/internal/agent"
	"resume-agent/internal/ai"
	"resume-agent/internal/bootstrap"
	"resume-agent/internal/botcheck"
	"resume-agent/internal/config"
	"resume-agent/internal/intent"
	"resume-agent/internal/jobintel"
	"resume-agent/internal/leads"
	"resume-agent/internal/model"
	"resume-agent/internal/persona"
	"resume-agent/internal/ratelimit"
	"resume-agent/internal/session"
	"resume-agent/internal/token"
	"resume-agent/internal/trace"
	"resume-agent/internal/transport/http/handler"

	httptransport "resume-agent/internal/transport/http"
)

type fixedClassifier struct {
	decision intent.Decision
}

func (f fixedClassifier) Classify(ctx context.Context, query string, hints intent.Hints) intent.Decision {
	return f.decision
}

type fixedGenerator struct {
	fragments []string
}

func (g *fixedGenerator) StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, opts ai.ChatOptions, onChunk func(string) error) (string, ai.Usage, error) {
	var full strings.Builder
	for _, f := range g.fragments {
		if err := onChunk(f); err != nil {
			return full.String(), ai.Usage{}, err
		}
		full.WriteString(f)
	}
	return full.String(), ai.Usage{TokensIn: 10, TokensOut: 5}, nil
}

type failingGenerator struct {
	fragments []string
}

func (g *failingGenerator) StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, opts ai.ChatOptions, onChunk func(string) error) (string, ai.Usage, error) {
	var full strings.Builder
	for _, f := range g.fragments {
		if err := onChunk(f); err != nil {
			return full.String(), ai.Usage{}, err
		}
		full.WriteString(f)
	}
	return full.String(), ai.Usage{}, errors.New("provider reset the stream")
}

func newTestApp(t *testing.T, fragments []string) *bootstrap.App {
	return newTestAppWithGenerator(t, &fixedGenerator{fragments: fragments})
}

func newTestAppWithGenerator(t *testing.T, gen agent.Generator) *bootstrap.App {
	t.Helper()
	log := zap.NewNop()
	p := &persona.Persona{
		CandidateName: "Pat Morgan",
		ContactEmail:  "pat@example.com",
		Resume:        "Senior Go engineer.",
	}
	sessions := session.NewStore(nil, time.Hour, 100, log)
	t.Cleanup(sessions.Close)

	history := agent.NewHistory(nil, nil, nil, log)
	orch := agent.NewOrchestrator(
		sessions,
		fixedClassifier{decision: intent.Decision{Label: intent.LabelInScope}},
		agent.NewAssembler(p, 24000, 12),
		history,
		gen,
		ai.ChatConfig{Model: "test"},
		nil,
		trace.NewHTTPSink("", "", "", log),
		p, nil, 5*time.Second, log,
	)

	cfg := &config.Config{}
	cfg.App.Name = "resume-agent"
	cfg.App.Env = "test"
	cfg.App.GinMode = "test"

	return &bootstrap.App{
		Config:       cfg,
		Log:          log,
		Persona:      p,
		Sessions:     sessions,
		History:      history,
		Orchestrator: orch,
		Extractor:    jobintel.NewExtractor(),
		Leads:        leads.NewService("", nil, log),
		BotCheck:     botcheck.NewTurnstile("", log),
		Tokens:       token.NewManager("test-secret", time.Hour),
		Limiter:      ratelimit.NewLimiter(1000),
		StartedAt:    time.Now(),
	}
}

func TestCreateSessionWelcomesByName(t *testing.T) {
	app := newTestApp(t, nil)
	router := httptransport.NewRouter(app)

	body, _ := json.Marshal(handler.CreateSessionRequest{UserName: "Dana", Company: "Acme"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/session", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var envelope struct {
		Code int                   `json:"code"`
		Data handler.CreateSessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Zero(t, envelope.Code)
	require.NotEmpty(t, envelope.Data.SessionID)
	require.NotEmpty(t, envelope.Data.SessionToken)
	require.Contains(t, envelope.Data.WelcomeMessage, "Hi Dana from Acme!")
	require.Equal(t, jobintel.DefaultPrompts, envelope.Data.SuggestedPrompts)
}

func TestCreateSessionSanitizesName(t *testing.T) {
	app := newTestApp(t, nil)
	router := httptransport.NewRouter(app)

	body, _ := json.Marshal(handler.CreateSessionRequest{UserName: "<script>alert(1)</script>Dana"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/session", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var envelope struct {
		Data handler.CreateSessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Contains(t, envelope.Data.WelcomeMessage, "Hi Dana!")
	require.NotContains(t, envelope.Data.WelcomeMessage, "<script>")

	sess := app.Sessions.Get(context.Background(), envelope.Data.SessionID)
	require.Equal(t, "Dana", sess.UserName)
}

func TestChatReturnsReply(t *testing.T) {
	app := newTestApp(t, []string{"Pat has ", "8 years of Go."})
	router := httptransport.NewRouter(app)

	sess := app.Sessions.Create(context.Background(), &model.Session{UserName: "Dana"})

	body, _ := json.Marshal(handler.ChatRequest{SessionID: sess.ID, Query: "How much Go?"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var envelope struct {
		Data handler.ChatResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "Pat has 8 years of Go.", envelope.Data.Reply)
	require.Equal(t, agent.StateCompleted, envelope.Data.State)
}

func TestChatAcceptsSessionToken(t *testing.T) {
	app := newTestApp(t, []string{"answer"})
	router := httptransport.NewRouter(app)

	sess := app.Sessions.Create(context.Background(), &model.Session{UserName: "Dana"})
	sessionToken, err := app.Tokens.Issue(sess.ID)
	require.NoError(t, err)

	body, _ := json.Marshal(handler.ChatRequest{SessionToken: sessionToken, Query: "hello"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
}

func TestChatUnknownSession(t *testing.T) {
	app := newTestApp(t, nil)
	router := httptransport.NewRouter(app)

	body, _ := json.Marshal(handler.ChatRequest{SessionID: "missing", Query: "hello"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, 404, w.Code)
}

func TestChatStreamSSEFraming(t *testing.T) {
	app := newTestApp(t, []string{"Pat ", "writes ", "Go."})
	router := httptransport.NewRouter(app)

	sess := app.Sessions.Create(context.Background(), &model.Session{UserName: "Dana"})

	body, _ := json.Marshal(handler.ChatRequest{SessionID: sess.ID, Query: "question"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/chat/stream", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	require.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	require.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	var chunks []string
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			chunks = append(chunks, payload)
			continue
		}
		var frame struct {
			Chunk string `json:"chunk"`
		}
		require.NoError(t, json.Unmarshal([]byte(payload), &frame))
		chunks = append(chunks, frame.Chunk)
	}
	require.Equal(t, []string{"Pat ", "writes ", "Go.", "[DONE]"}, chunks)
}

func TestChatStreamFailureEndsWithErrorEvent(t *testing.T) {
	app := newTestAppWithGenerator(t, &failingGenerator{fragments: []string{"one ", "two "}})
	router := httptransport.NewRouter(app)

	sess := app.Sessions.Create(context.Background(), &model.Session{UserName: "Dana"})

	body, _ := json.Marshal(handler.ChatRequest{SessionID: sess.ID, Query: "question"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/chat/stream", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	raw := w.Body.String()

	// The fragments already sent stay on the wire, the fallback follows,
	// and the stream terminates with an error event, not [DONE].
	oneIdx := strings.Index(raw, `{"chunk":"one "}`)
	twoIdx := strings.Index(raw, `{"chunk":"two "}`)
	errIdx := strings.Index(raw, "event: error\n")
	require.True(t, oneIdx >= 0 && twoIdx > oneIdx && errIdx > twoIdx, raw)
	require.Contains(t, raw, "having trouble responding")
	require.NotContains(t, raw, "[DONE]")
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, nil)
	router := httptransport.NewRouter(app)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var body struct {
		Dependencies map[string]struct {
			Status string `json:"status"`
		} `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Dependencies["llm"].Status)
	require.Equal(t, "disabled", body.Dependencies["mysql"].Status)
	require.Equal(t, "disabled", body.Dependencies["redis"].Status)
	require.Equal(t, "disabled", body.Dependencies["rabbitmq"].Status)
}

func TestAdminEndpointsRequireDurableStore(t *testing.T) {
	app := newTestApp(t, nil)
	app.Config.Admin.APIKey = "admin-key"
	router := httptransport.NewRouter(app)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/admin/analytics", nil)
	req.Header.Set("X-Admin-Key", "admin-key")
	router.ServeHTTP(w, req)
	require.Equal(t, 503, w.Code)
}
