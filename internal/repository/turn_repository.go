package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"resume-agent/internal/model"
)

type TurnRepository struct {
	db *gorm.DB
}

func NewTurnRepository(db *gorm.DB) *TurnRepository {
	return &TurnRepository{db: db}
}

func (r *TurnRepository) Create(ctx context.Context, turn *model.ChatTurn) error {
	if err := r.db.WithContext(ctx).Create(turn).Error; err != nil {
		return fmt.Errorf("create turn failed: %w", err)
	}
	return nil
}

// ListBySessionID returns turns oldest-first.
func (r *TurnRepository) ListBySessionID(ctx context.Context, sessionID string, limit int) ([]model.ChatTurn, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var turns []model.ChatTurn
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("list turns failed: %w", err)
	}
	return turns, nil
}

// ListRecentBySessionID returns the newest `limit` turns in chronological
// order, the shape the context assembler wants.
func (r *TurnRepository) ListRecentBySessionID(ctx context.Context, sessionID string, limit int) ([]model.ChatTurn, error) {
	if limit <= 0 {
		limit = 20
	}
	var turns []model.ChatTurn
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("list recent turns failed: %w", err)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
