package model

import (
	"encoding/json"
	"time"
)

// UsageEvent is one row of the best-effort audit trail. Written
// asynchronously; loss is tolerated.
type UsageEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:36;index" json:"session_id"`
	EventType string    `gorm:"size:32;not null" json:"event_type"`
	Intent    string    `gorm:"size:32" json:"intent,omitempty"`
	TokensIn  int       `json:"tokens_in"`
	TokensOut int       `json:"tokens_out"`
	LatencyMS int64     `json:"latency_ms"`
	Metadata  string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *UsageEvent) SetMetadata(meta map[string]any) {
	if len(meta) == 0 {
		e.Metadata = ""
		return
	}
	b, _ := json.Marshal(meta)
	e.Metadata = string(b)
}
