// Package leads captures recruiters who brought a job posting. Degradable:
// submission is fire-and-forget via webhook, with a local table fallback when
// no webhook is configured.
package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"resume-agent/internal/model"
	"resume-agent/internal/repository"
)

// Capturer records recruiter leads.
type Capturer interface {
	Enabled() bool
	Submit(ctx context.Context, lead model.Lead)
}

// Service posts leads to a webhook; without one it writes to the lead table;
// without either it is disabled.
type Service struct {
	webhookURL string
	repo       *repository.LeadRepository
	httpClient *http.Client
	log        *zap.Logger
}

func NewService(webhookURL string, repo *repository.LeadRepository, log *zap.Logger) *Service {
	if webhookURL == "" && repo == nil {
		log.Info("lead capture disabled")
	}
	return &Service{
		webhookURL: webhookURL,
		repo:       repo,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (s *Service) Enabled() bool { return s.webhookURL != "" || s.repo != nil }

// Submit records one lead, best-effort. Failures are logged and swallowed.
func (s *Service) Submit(ctx context.Context, lead model.Lead) {
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	if s.webhookURL != "" {
		if err := s.post(ctx, lead); err != nil {
			s.log.Warn("lead webhook failed", zap.Error(err))
		} else {
			return
		}
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, &lead); err != nil {
			s.log.Warn("lead store failed", zap.Error(err))
		}
	}
}

func (s *Service) post(ctx context.Context, lead model.Lead) error {
	body, err := json.Marshal(lead)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("lead webhook status %d", resp.StatusCode)
	}
	return nil
}
