package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"resume-agent/internal/model"
)

type UsageEventRepository struct {
	db *gorm.DB
}

func NewUsageEventRepository(db *gorm.DB) *UsageEventRepository {
	return &UsageEventRepository{db: db}
}

func (r *UsageEventRepository) Create(ctx context.Context, event *model.UsageEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create usage event failed: %w", err)
	}
	return nil
}

func (r *UsageEventRepository) ListSince(ctx context.Context, since time.Time) ([]model.UsageEvent, error) {
	var events []model.UsageEvent
	if err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list usage events failed: %w", err)
	}
	return events, nil
}
