package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"resume-agent/internal/bootstrap"
	"resume-agent/internal/jobintel"
	"resume-agent/internal/model"
	"resume-agent/internal/sanitize"
	"resume-agent/internal/transport/http/response"
)

type SessionHandler struct {
	app *bootstrap.App
}

type CreateSessionRequest struct {
	UserName       string `json:"user_name" binding:"required,max=120"`
	Company        string `json:"company" binding:"max=200"`
	JobPosting     string `json:"job_posting" binding:"max=50000"`
	TurnstileToken string `json:"turnstile_token"`
}

type CreateSessionResponse struct {
	SessionID        string         `json:"session_id"`
	SessionToken     string         `json:"session_token,omitempty"`
	WelcomeMessage   string         `json:"welcome_message"`
	SuggestedPrompts []string       `json:"suggested_prompts"`
	JobInfo          *model.JobInfo `json:"job_info,omitempty"`
	ExtractionError  string         `json:"extraction_error,omitempty"`
}

func NewSessionHandler(app *bootstrap.App) *SessionHandler {
	return &SessionHandler{app: app}
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "invalid request payload")
		return
	}

	if h.app.BotCheck.Enabled() && !h.app.BotCheck.Verify(c.Request.Context(), req.TurnstileToken, c.ClientIP()) {
		response.Error(c, 403, response.CodeUnauthorized, "bot verification failed")
		return
	}

	userName := sanitize.Text(req.UserName)
	company := sanitize.Text(req.Company)
	jobPosting := sanitize.Block(req.JobPosting)

	var jobURL, extractionErr string
	if jobintel.IsURL(jobPosting) {
		jobURL = jobPosting
		extracted, errMsg := h.app.Extractor.ExtractFromURL(c.Request.Context(), jobURL)
		if errMsg != "" {
			extractionErr = errMsg
			jobPosting = ""
		} else {
			jobPosting = extracted
		}
	}

	var info *model.JobInfo
	prompts := jobintel.DefaultPrompts
	if jobPosting != "" {
		info = h.app.JobParser.Parse(c.Request.Context(), jobPosting)
		prompts = h.app.JobParser.SuggestPrompts(c.Request.Context(), info, jobPosting)
	}

	sess := &model.Session{
		UserName:   userName,
		Company:    company,
		JobPosting: jobPosting,
	}
	if info != nil {
		sess.SetJobInfo(info)
	}
	sess.SetPrompts(prompts)
	sess = h.app.Sessions.Create(c.Request.Context(), sess)

	if h.app.Leads.Enabled() && (userName != "" || company != "") {
		lead := model.Lead{
			SessionID:  sess.ID,
			Name:       userName,
			Company:    company,
			JobURL:     jobURL,
			JobPosting: jobPosting,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			h.app.Leads.Submit(ctx, lead)
		}()
	}

	sessionToken := ""
	if h.app.Tokens.Enabled() {
		if t, err := h.app.Tokens.Issue(sess.ID); err == nil {
			sessionToken = t
		}
	}

	var roleTitle, jobCompany string
	if info != nil {
		roleTitle = info.RoleTitle
		jobCompany = info.CompanyName
	}
	welcome := h.app.Persona.WelcomeMessage(userName, company, roleTitle, jobCompany, jobPosting != "")

	response.OK(c, CreateSessionResponse{
		SessionID:        sess.ID,
		SessionToken:     sessionToken,
		WelcomeMessage:   welcome,
		SuggestedPrompts: prompts,
		JobInfo:          info,
		ExtractionError:  extractionErr,
	})
}
