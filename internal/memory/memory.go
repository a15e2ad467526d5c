// Package memory is the degradable semantic-memory wrapper. Conversation
// fragments are embedded and stored per session; retrieval ranks them by
// cosine similarity against the current query. When disabled or failing,
// every operation degrades to an empty result - the chat turn never notices.
package memory

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"resume-agent/internal/ai"
	"resume-agent/internal/model"
	"resume-agent/internal/repository"
)

// Retriever is the capability surface the orchestrator depends on.
type Retriever interface {
	Enabled() bool
	Snippets(ctx context.Context, sessionID, query string, limit int) []string
	Remember(ctx context.Context, sessionID, role, content string)
}

// Store embeds and retrieves per-session memory chunks through the durable
// store. The zero-value-ish disabled form is what you get without a chunk
// repository or embedding credentials.
type Store struct {
	enabled bool
	repo    *repository.MemoryChunkRepository
	client  *ai.Client
	embCfg  ai.EmbeddingConfig
	topK    int
	log     *zap.Logger
}

func NewStore(repo *repository.MemoryChunkRepository, client *ai.Client, embCfg ai.EmbeddingConfig, topK int, log *zap.Logger) *Store {
	enabled := repo != nil && client != nil && embCfg.BaseURL != "" && embCfg.Model != ""
	if !enabled {
		log.Info("semantic memory disabled")
	}
	if topK <= 0 {
		topK = 5
	}
	return &Store{
		enabled: enabled,
		repo:    repo,
		client:  client,
		embCfg:  embCfg,
		topK:    topK,
		log:     log,
	}
}

// Disabled returns a memory store that is permanently off.
func Disabled(log *zap.Logger) *Store {
	return &Store{enabled: false, log: log}
}

func (s *Store) Enabled() bool { return s.enabled }

// Remember embeds one message and stores it. Best-effort: failures are
// logged and swallowed.
func (s *Store) Remember(ctx context.Context, sessionID, role, content string) {
	if !s.enabled || content == "" {
		return
	}
	vec, err := s.client.Embed(ctx, s.embCfg, content)
	if err != nil {
		s.log.Warn("memory embed failed", zap.Error(err))
		return
	}
	chunk := &model.MemoryChunk{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}
	chunk.SetEmbedding(vec)
	if err := s.repo.Create(ctx, chunk); err != nil {
		s.log.Warn("memory store failed", zap.Error(err))
	}
}

// Snippets returns up to limit remembered fragments ranked by relevance to
// the query, most relevant first. Empty on any failure.
func (s *Store) Snippets(ctx context.Context, sessionID, query string, limit int) []string {
	if !s.enabled || query == "" {
		return nil
	}
	if limit <= 0 || limit > s.topK {
		limit = s.topK
	}

	chunks, err := s.repo.ListBySessionID(ctx, sessionID)
	if err != nil {
		s.log.Warn("memory lookup failed", zap.Error(err))
		return nil
	}
	if len(chunks) == 0 {
		return nil
	}

	queryVec, err := s.client.Embed(ctx, s.embCfg, query)
	if err != nil {
		s.log.Warn("memory query embed failed", zap.Error(err))
		return nil
	}

	type scored struct {
		content string
		score   float32
	}
	ranked := make([]scored, 0, len(chunks))
	for i := range chunks {
		ranked = append(ranked, scored{
			content: chunks[i].Content,
			score:   cosineSimilarity(queryVec, chunks[i].EmbeddingVector()),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]string, 0, limit)
	for _, r := range ranked[:limit] {
		out = append(out, r.content)
	}
	return out
}

// Forget drops all memory for a session. Best-effort.
func (s *Store) Forget(ctx context.Context, sessionID string) {
	if !s.enabled {
		return
	}
	if err := s.repo.DeleteBySessionID(ctx, sessionID); err != nil {
		s.log.Warn("memory forget failed", zap.Error(err))
	}
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
