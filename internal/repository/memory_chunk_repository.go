package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"resume-agent/internal/model"
)

type MemoryChunkRepository struct {
	db *gorm.DB
}

func NewMemoryChunkRepository(db *gorm.DB) *MemoryChunkRepository {
	return &MemoryChunkRepository{db: db}
}

func (r *MemoryChunkRepository) Create(ctx context.Context, chunk *model.MemoryChunk) error {
	if err := r.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("create memory chunk failed: %w", err)
	}
	return nil
}

func (r *MemoryChunkRepository) ListBySessionID(ctx context.Context, sessionID string) ([]model.MemoryChunk, error) {
	var chunks []model.MemoryChunk
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list memory chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *MemoryChunkRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&model.MemoryChunk{}).Error; err != nil {
		return fmt.Errorf("delete memory chunks failed: %w", err)
	}
	return nil
}
