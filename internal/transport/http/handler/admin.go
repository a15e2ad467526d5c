package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"resume-agent/internal/bootstrap"
	"resume-agent/internal/transport/http/response"
)

type AdminHandler struct {
	app *bootstrap.App
}

func NewAdminHandler(app *bootstrap.App) *AdminHandler {
	return &AdminHandler{app: app}
}

type analyticsSummary struct {
	WindowDays    int            `json:"window_days"`
	SessionsTotal int64          `json:"sessions_total"`
	TurnsByState  map[string]int `json:"turns_by_state"`
	TurnsByIntent map[string]int `json:"turns_by_intent"`
	TokensIn      int            `json:"tokens_in"`
	TokensOut     int            `json:"tokens_out"`
	AvgLatencyMS  int64          `json:"avg_latency_ms"`
}

// Analytics summarizes usage events over a trailing window (default 7 days).
func (h *AdminHandler) Analytics(c *gin.Context) {
	if h.app.UsageEvents == nil || h.app.SessionRepo == nil {
		response.Error(c, 503, response.CodeInternalServer, "analytics requires the durable store")
		return
	}

	days := 7
	if raw := c.Query("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 365 {
			days = parsed
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	since := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

	events, err := h.app.UsageEvents.ListSince(ctx, since)
	if err != nil {
		response.Error(c, 500, response.CodeInternalServer, "load usage events failed")
		return
	}
	sessionCount, err := h.app.SessionRepo.CountSince(ctx, since)
	if err != nil {
		response.Error(c, 500, response.CodeInternalServer, "count sessions failed")
		return
	}

	summary := analyticsSummary{
		WindowDays:    days,
		SessionsTotal: sessionCount,
		TurnsByState:  make(map[string]int),
		TurnsByIntent: make(map[string]int),
	}
	var latencySum int64
	for _, e := range events {
		summary.TurnsByState[e.EventType]++
		if e.Intent != "" {
			summary.TurnsByIntent[e.Intent]++
		}
		summary.TokensIn += e.TokensIn
		summary.TokensOut += e.TokensOut
		latencySum += e.LatencyMS
	}
	if len(events) > 0 {
		summary.AvgLatencyMS = latencySum / int64(len(events))
	}

	response.OK(c, summary)
}

type sessionSummary struct {
	ID         string    `json:"id"`
	UserName   string    `json:"user_name"`
	Company    string    `json:"company"`
	HasJobText bool      `json:"has_job_text"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Sessions lists the most recent sessions for operator review.
func (h *AdminHandler) Sessions(c *gin.Context) {
	if h.app.SessionRepo == nil {
		response.Error(c, 503, response.CodeInternalServer, "session listing requires the durable store")
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	sessions, err := h.app.SessionRepo.ListRecent(ctx, limit)
	if err != nil {
		response.Error(c, 500, response.CodeInternalServer, "list sessions failed")
		return
	}

	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{
			ID:         s.ID,
			UserName:   s.UserName,
			Company:    s.Company,
			HasJobText: s.JobPosting != "",
			CreatedAt:  s.CreatedAt,
			LastActive: s.LastActive,
		})
	}
	response.OK(c, out)
}
