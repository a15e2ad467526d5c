package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"resume-agent/internal/cache"
	"resume-agent/internal/model"
	"resume-agent/internal/platform/rabbitmq"
	"resume-agent/internal/repository"
)

const localHistoryCap = 64

// History keeps conversation turns across three tiers: an in-process buffer
// that always works, a Redis cache for fast reads, and async durable
// persistence through the message queue. Any tier may be absent.
type History struct {
	repo      *repository.TurnRepository
	turnCache *cache.TurnCache
	publisher *rabbitmq.EventPublisher
	log       *zap.Logger

	mu    sync.Mutex
	local map[string][]model.ChatTurn
}

func NewHistory(repo *repository.TurnRepository, turnCache *cache.TurnCache, publisher *rabbitmq.EventPublisher, log *zap.Logger) *History {
	return &History{
		repo:      repo,
		turnCache: turnCache,
		publisher: publisher,
		log:       log,
		local:     make(map[string][]model.ChatTurn),
	}
}

// Append records a turn in every available tier. The in-process buffer is
// updated synchronously; cache and durable writes are best-effort.
func (h *History) Append(ctx context.Context, sessionID, role, content string) {
	turn := model.ChatTurn{SessionID: sessionID, Role: role, Content: content}

	h.mu.Lock()
	turns := append(h.local[sessionID], turn)
	if len(turns) > localHistoryCap {
		turns = turns[len(turns)-localHistoryCap:]
	}
	h.local[sessionID] = turns
	snapshot := make([]model.ChatTurn, len(turns))
	copy(snapshot, turns)
	h.mu.Unlock()

	if h.turnCache != nil {
		if err := h.turnCache.SetTurns(ctx, sessionID, snapshot); err != nil {
			h.log.Warn("turn cache update failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	switch {
	case h.publisher != nil:
		if err := h.publisher.PublishTurn(ctx, turn); err != nil {
			h.log.Warn("turn publish failed, falling back to direct write", zap.Error(err))
			h.writeDirect(ctx, &turn)
		}
	case h.repo != nil:
		h.writeDirect(ctx, &turn)
	}
}

func (h *History) writeDirect(ctx context.Context, turn *model.ChatTurn) {
	if h.repo == nil {
		return
	}
	if err := h.repo.Create(ctx, turn); err != nil {
		h.log.Warn("turn persist failed", zap.String("session_id", turn.SessionID), zap.Error(err))
	}
}

// Recent returns up to limit turns in chronological order, reading the
// fastest available tier.
func (h *History) Recent(ctx context.Context, sessionID string, limit int) []model.ChatTurn {
	if h.turnCache != nil {
		turns, ok, err := h.turnCache.GetTurns(ctx, sessionID)
		if err != nil {
			h.log.Warn("turn cache read failed", zap.String("session_id", sessionID), zap.Error(err))
		} else if ok {
			return tail(turns, limit)
		}
	}

	if h.repo != nil {
		turns, err := h.repo.ListRecentBySessionID(ctx, sessionID, limit)
		if err != nil {
			h.log.Warn("turn history read failed", zap.String("session_id", sessionID), zap.Error(err))
		} else if len(turns) > 0 {
			return turns
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return tail(h.local[sessionID], limit)
}

func tail(turns []model.ChatTurn, limit int) []model.ChatTurn {
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]model.ChatTurn, len(turns))
	copy(out, turns)
	return out
}
