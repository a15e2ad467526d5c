package model

import (
	"encoding/json"
	"time"
)

// Session is one recruiter conversation. The ID is a UUID minted at creation
// and is the only handle clients ever hold.
type Session struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	UserName         string    `gorm:"size:100;not null" json:"user_name"`
	Company          string    `gorm:"size:100" json:"company,omitempty"`
	JobPosting       string    `gorm:"type:text" json:"job_posting,omitempty"`
	JobInfo          string    `gorm:"type:text" json:"-"` // JSON-encoded JobInfo
	SuggestedPrompts string    `gorm:"type:text" json:"-"` // JSON array of strings
	CreatedAt        time.Time `json:"created_at"`
	LastActive       time.Time `gorm:"index" json:"last_active"`
}

// JobInfo is the structured extraction of a pasted or fetched job posting.
type JobInfo struct {
	CompanyName string   `json:"company_name,omitempty"`
	RoleTitle   string   `json:"role_title,omitempty"`
	KeySkills   []string `json:"key_skills,omitempty"`
}

func (s *Session) JobInfoStruct() *JobInfo {
	if s.JobInfo == "" {
		return nil
	}
	var info JobInfo
	if err := json.Unmarshal([]byte(s.JobInfo), &info); err != nil {
		return nil
	}
	return &info
}

func (s *Session) SetJobInfo(info *JobInfo) {
	if info == nil {
		s.JobInfo = ""
		return
	}
	b, _ := json.Marshal(info)
	s.JobInfo = string(b)
}

func (s *Session) Prompts() []string {
	if s.SuggestedPrompts == "" {
		return nil
	}
	var prompts []string
	_ = json.Unmarshal([]byte(s.SuggestedPrompts), &prompts)
	return prompts
}

func (s *Session) SetPrompts(prompts []string) {
	if len(prompts) == 0 {
		s.SuggestedPrompts = ""
		return
	}
	b, _ := json.Marshal(prompts)
	s.SuggestedPrompts = string(b)
}

// Expired reports whether the session's lifetime has run out. Lifetime is
// measured from CreatedAt, not LastActive, so retention is bounded no matter
// how often a client touches the session.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}
