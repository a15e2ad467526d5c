package model

import "time"

// Lead captures a recruiter who brought a job posting. Stored locally when no
// webhook is configured, so the signal is never silently lost.
type Lead struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"size:36;index" json:"session_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Company    string    `gorm:"size:100" json:"company,omitempty"`
	JobURL     string    `gorm:"size:2000" json:"job_url,omitempty"`
	JobPosting string    `gorm:"type:text" json:"job_posting,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
