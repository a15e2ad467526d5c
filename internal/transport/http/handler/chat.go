package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-agent/internal/agent"
	"resume-agent/internal/bootstrap"
	"resume-agent/internal/model"
	"resume-agent/internal/sanitize"
	"resume-agent/internal/transport/http/response"
)

type ChatHandler struct {
	app *bootstrap.App
}

type ChatRequest struct {
	SessionID    string `json:"session_id"`
	SessionToken string `json:"session_token"`
	Query        string `json:"query" binding:"required,max=4000"`

	// Optional context updates applied to the session before the turn runs.
	UserName   string `json:"user_name"`
	Company    string `json:"company"`
	JobPosting string `json:"job_posting"`
}

type ChatResponse struct {
	Reply     string `json:"reply"`
	State     string `json:"state"`
	Intent    string `json:"intent,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

func NewChatHandler(app *bootstrap.App) *ChatHandler {
	return &ChatHandler{app: app}
}

// resolveSessionID prefers an explicit session id; a signed session token is
// accepted in its place so returning visitors can pick up where they left.
func (h *ChatHandler) resolveSessionID(req *ChatRequest) (string, bool) {
	if req.SessionID != "" {
		return req.SessionID, true
	}
	if req.SessionToken != "" && h.app.Tokens.Enabled() {
		if id, err := h.app.Tokens.Verify(req.SessionToken); err == nil {
			return id, true
		}
	}
	return "", false
}

// applyContextUpdates folds any context fields sent with the turn into the
// session record.
func (h *ChatHandler) applyContextUpdates(c *gin.Context, sessionID string, req *ChatRequest) {
	if req.UserName == "" && req.Company == "" && req.JobPosting == "" {
		return
	}
	h.app.Sessions.Update(c.Request.Context(), sessionID, func(s *model.Session) {
		if v := sanitize.Text(req.UserName); v != "" {
			s.UserName = v
		}
		if v := sanitize.Text(req.Company); v != "" {
			s.Company = v
		}
		if v := sanitize.Block(req.JobPosting); v != "" {
			s.JobPosting = v
		}
	})
}

func (h *ChatHandler) Send(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "invalid request payload")
		return
	}
	sessionID, ok := h.resolveSessionID(&req)
	if !ok {
		response.Error(c, 400, response.CodeBadRequest, "session_id or resume_token required")
		return
	}

	query := sanitize.Text(req.Query)
	if query == "" {
		response.Error(c, 400, response.CodeBadRequest, "query is empty")
		return
	}
	h.applyContextUpdates(c, sessionID, &req)

	result, err := h.app.Orchestrator.Respond(c.Request.Context(), sessionID, query)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrSessionNotFound):
			response.Error(c, 404, response.CodeSessionNotFound, err.Error())
		case errors.Is(err, agent.ErrSessionBusy):
			response.Error(c, 409, response.CodeSessionBusy, err.Error())
		default:
			response.Error(c, 500, response.CodeInternalServer, "chat failed")
		}
		return
	}

	response.OK(c, ChatResponse{
		Reply:     result.Reply,
		State:     result.State,
		Intent:    result.Intent,
		LatencyMS: result.LatencyMS,
	})
}

func (h *ChatHandler) Stream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "invalid request payload")
		return
	}
	sessionID, ok := h.resolveSessionID(&req)
	if !ok {
		response.Error(c, 400, response.CodeBadRequest, "session_id or resume_token required")
		return
	}

	query := sanitize.Text(req.Query)
	if query == "" {
		response.Error(c, 400, response.CodeBadRequest, "query is empty")
		return
	}
	h.applyContextUpdates(c, sessionID, &req)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, 500, response.CodeInternalServer, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	result, err := h.app.Orchestrator.Stream(c.Request.Context(), sessionID, query, func(chunk string) error {
		payload, marshalErr := json.Marshal(gin.H{"chunk": chunk})
		if marshalErr != nil {
			return marshalErr
		}
		if _, writeErr := c.Writer.Write([]byte("data: " + string(payload) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrSessionNotFound):
			response.Error(c, 404, response.CodeSessionNotFound, err.Error())
		case errors.Is(err, agent.ErrSessionBusy):
			response.Error(c, 409, response.CodeSessionBusy, err.Error())
		default:
			// Headers are already out; signal failure in-stream.
			writeSSEError(c, flusher, err.Error())
		}
		return
	}

	// A failed turn ends with an error event, never the normal done
	// marker, so the client can render an error affordance.
	if result.State == agent.StateFailed {
		writeSSEError(c, flusher, result.Reply)
		return
	}

	if _, writeErr := c.Writer.Write([]byte("data: [DONE]\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

func writeSSEError(c *gin.Context, flusher http.Flusher, message string) {
	payload, marshalErr := json.Marshal(gin.H{"message": sanitizeSSE(message)})
	if marshalErr != nil {
		return
	}
	if _, writeErr := c.Writer.Write([]byte("event: error\ndata: " + string(payload) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	return strings.ReplaceAll(replaced, "\n", "\\n")
}
