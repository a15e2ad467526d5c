// Package trace is the degradable observability sink. Generation records are
// POSTed to an ingest endpoint; when keys are missing or the endpoint is
// down, every call is a logged no-op.
package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Generation is one traced model call.
type Generation struct {
	Name      string         `json:"name"`
	SessionID string         `json:"session_id"`
	Model     string         `json:"model"`
	Input     string         `json:"input"`
	Output    string         `json:"output"`
	TokensIn  int            `json:"tokens_in"`
	TokensOut int            `json:"tokens_out"`
	LatencyMS int64          `json:"latency_ms"`
	CostUSD   float64        `json:"cost_usd"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink records generations.
type Sink interface {
	Enabled() bool
	LogGeneration(ctx context.Context, gen Generation)
}

// HTTPSink ships generations to a trace ingest endpoint with basic auth
// (public key as user, secret as password).
type HTTPSink struct {
	enabled    bool
	ingestURL  string
	publicKey  string
	secretKey  string
	httpClient *http.Client
	log        *zap.Logger
}

func NewHTTPSink(ingestURL, publicKey, secretKey string, log *zap.Logger) *HTTPSink {
	enabled := ingestURL != "" && publicKey != "" && secretKey != ""
	if !enabled {
		log.Info("tracing disabled")
	}
	return &HTTPSink{
		enabled:    enabled,
		ingestURL:  ingestURL,
		publicKey:  publicKey,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
	}
}

func (s *HTTPSink) Enabled() bool { return s.enabled }

// LogGeneration sends one record. Best-effort: any failure is logged and
// swallowed at this boundary.
func (s *HTTPSink) LogGeneration(ctx context.Context, gen Generation) {
	if !s.enabled {
		return
	}
	if gen.Timestamp.IsZero() {
		gen.Timestamp = time.Now().UTC()
	}
	gen.CostUSD = Cost(gen.Model, gen.TokensIn, gen.TokensOut)

	body, err := json.Marshal(gen)
	if err != nil {
		s.log.Warn("trace marshal failed", zap.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ingestURL, bytes.NewReader(body))
	if err != nil {
		s.log.Warn("trace request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.publicKey, s.secretKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Warn("trace ingest failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.log.Warn("trace ingest rejected", zap.Int("status", resp.StatusCode))
	}
}

// modelPricing is USD per 1M tokens.
var modelPricing = map[string]struct{ in, out float64 }{
	"gemini-2.0-flash": {0.075, 0.30},
	"gemini-1.5-flash": {0.075, 0.30},
	"gemini-1.5-pro":   {1.25, 5.00},
}

// Cost estimates the USD cost of one generation; unknown models use the
// cheapest known rate.
func Cost(model string, tokensIn, tokensOut int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		pricing = modelPricing["gemini-2.0-flash"]
	}
	cost := float64(tokensIn)/1e6*pricing.in + float64(tokensOut)/1e6*pricing.out
	return float64(int(cost*1e6+0.5)) / 1e6
}
