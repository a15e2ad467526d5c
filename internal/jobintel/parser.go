package jobintel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"resume-agent/internal/ai"
	"resume-agent/internal/model"
)

const (
	parseTimeout   = 10 * time.Second
	parseInputCap  = 6000
	maxKeySkills   = 6
	maxPromptWords = 12
)

// DefaultPrompts are the starter questions used when no job context is
// available or prompt generation fails.
var DefaultPrompts = []string{
	"What is your strongest technical skill?",
	"Tell me about a project you're proud of.",
	"What kind of role are you looking for?",
}

// Parser derives structured job info and tailored starter prompts from
// extracted posting text.
type Parser struct {
	client *ai.Client
	cfg    ai.ChatConfig
	log    *zap.Logger
}

func NewParser(client *ai.Client, cfg ai.ChatConfig, log *zap.Logger) *Parser {
	return &Parser{client: client, cfg: cfg, log: log}
}

// Parse extracts company name, role title, and key skills. Returns nil when
// parsing fails; callers treat job info as optional.
func (p *Parser) Parse(ctx context.Context, jobText string) *model.JobInfo {
	jobText = capRunes(jobText, parseInputCap)
	if strings.TrimSpace(jobText) == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, parseTimeout)
	defer cancel()

	messages := []ai.ChatMessage{
		{Role: "system", Content: "Extract structured data from the job posting. Respond with JSON only: " +
			`{"company_name": string, "role_title": string, "key_skills": [string]}. ` +
			fmt.Sprintf("At most %d key skills. Use empty strings for unknown fields.", maxKeySkills)},
		{Role: "user", Content: jobText},
	}

	temp := 0.0
	raw, _, err := p.client.Complete(ctx, p.cfg, messages, ai.ChatOptions{Temperature: &temp, MaxTokens: 512, JSONOnly: true})
	if err != nil {
		p.log.Warn("job parse failed", zap.Error(err))
		return nil
	}

	var info model.JobInfo
	if err := json.Unmarshal([]byte(ai.StripFences(raw)), &info); err != nil {
		p.log.Warn("job parse returned malformed json", zap.Error(err))
		return nil
	}
	if len(info.KeySkills) > maxKeySkills {
		info.KeySkills = info.KeySkills[:maxKeySkills]
	}
	if info.CompanyName == "" && info.RoleTitle == "" && len(info.KeySkills) == 0 {
		return nil
	}
	return &info
}

// SuggestPrompts produces three short questions a recruiter for this role
// would ask the candidate. Falls back to DefaultPrompts on any failure.
func (p *Parser) SuggestPrompts(ctx context.Context, info *model.JobInfo, jobText string) []string {
	if info == nil && strings.TrimSpace(jobText) == "" {
		return DefaultPrompts
	}

	ctx, cancel := context.WithTimeout(ctx, parseTimeout)
	defer cancel()

	var sb strings.Builder
	if info != nil {
		if info.RoleTitle != "" {
			fmt.Fprintf(&sb, "Role: %s\n", info.RoleTitle)
		}
		if info.CompanyName != "" {
			fmt.Fprintf(&sb, "Company: %s\n", info.CompanyName)
		}
		if len(info.KeySkills) > 0 {
			fmt.Fprintf(&sb, "Key skills: %s\n", strings.Join(info.KeySkills, ", "))
		}
	}
	if sb.Len() == 0 {
		sb.WriteString(capRunes(jobText, 2000))
	}

	messages := []ai.ChatMessage{
		{Role: "system", Content: fmt.Sprintf("You write starter questions a recruiter would ask a candidate about fit for a specific job. "+
			"Respond with JSON only: {\"prompts\": [string]}. Exactly 3 questions, each at most %d words, addressed to the candidate.", maxPromptWords)},
		{Role: "user", Content: sb.String()},
	}

	temp := 0.7
	raw, _, err := p.client.Complete(ctx, p.cfg, messages, ai.ChatOptions{Temperature: &temp, MaxTokens: 256, JSONOnly: true})
	if err != nil {
		p.log.Warn("prompt suggestion failed", zap.Error(err))
		return DefaultPrompts
	}

	var parsed struct {
		Prompts []string `json:"prompts"`
	}
	if err := json.Unmarshal([]byte(ai.StripFences(raw)), &parsed); err != nil || len(parsed.Prompts) < 3 {
		return DefaultPrompts
	}
	return parsed.Prompts[:3]
}

func capRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}
