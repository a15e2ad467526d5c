// Package session owns conversational session state: a durable primary
// store with an in-process TTL cache fallback, behind one interface, so
// chat continuity survives a transient outage of the durable backend.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resume-agent/internal/model"
	"resume-agent/internal/repository"
)

const durableCallTimeout = 3 * time.Second

// Store is the two-tier session store. The durable repository may be nil,
// in which case the cache tier carries everything.
type Store struct {
	repo  *repository.SessionRepository
	cache *ttlCache
	ttl   time.Duration
	log   *zap.Logger

	stopSweep chan struct{}
}

func NewStore(repo *repository.SessionRepository, ttl time.Duration, cacheMaxSize int, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s := &Store{
		repo:      repo,
		cache:     newTTLCache(ttl, cacheMaxSize),
		ttl:       ttl,
		log:       log,
		stopSweep: make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) Close() {
	close(s.stopSweep)
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case now := <-ticker.C:
			if removed := s.cache.sweep(now); removed > 0 {
				s.log.Debug("session cache sweep", zap.Int("removed", removed))
			}
		}
	}
}

// Create mints a session. The durable write is best-effort: if the primary
// store is down the session still exists in the cache tier.
func (s *Store) Create(ctx context.Context, sess *model.Session) *model.Session {
	now := time.Now().UTC()
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	sess.CreatedAt = now
	sess.LastActive = now

	s.cache.put(sess)
	if s.repo != nil {
		callCtx, cancel := context.WithTimeout(ctx, durableCallTimeout)
		defer cancel()
		if err := s.repo.Create(callCtx, sess); err != nil {
			s.log.Warn("durable session create failed, cache only", zap.Error(err))
		}
	}
	return sess
}

// Get returns the session or nil when unknown or past its TTL. Lookup order
// is durable store first (bounded), then cache; a durable hit refreshes the
// cache so a later outage can still serve the session.
func (s *Store) Get(ctx context.Context, id string) *model.Session {
	if id == "" {
		return nil
	}
	now := time.Now().UTC()

	if s.repo != nil {
		callCtx, cancel := context.WithTimeout(ctx, durableCallTimeout)
		sess, err := s.repo.GetByID(callCtx, id)
		cancel()
		switch {
		case err != nil:
			s.log.Warn("durable session get failed, trying cache", zap.Error(err))
		case sess != nil:
			if sess.Expired(now, s.ttl) {
				return nil
			}
			s.cache.put(sess)
			return sess
		}
	}

	sess, ok := s.cache.get(id, now)
	if !ok {
		return nil
	}
	return sess
}

// Touch refreshes last-active in both tiers. TTL expiry is unaffected: the
// lifetime clock runs from CreatedAt.
func (s *Store) Touch(ctx context.Context, id string) {
	now := time.Now().UTC()
	s.cache.touch(id, now)
	if s.repo != nil {
		callCtx, cancel := context.WithTimeout(ctx, durableCallTimeout)
		defer cancel()
		if err := s.repo.Touch(callCtx, id, now); err != nil {
			s.log.Warn("durable session touch failed", zap.Error(err))
		}
	}
}

// Update applies mutate to the current session state and writes it back to
// both tiers. Returns the updated session, or nil when the session is
// absent or expired.
func (s *Store) Update(ctx context.Context, id string, mutate func(*model.Session)) *model.Session {
	sess := s.Get(ctx, id)
	if sess == nil {
		return nil
	}
	mutate(sess)
	sess.LastActive = time.Now().UTC()

	s.cache.put(sess)
	if s.repo != nil {
		callCtx, cancel := context.WithTimeout(ctx, durableCallTimeout)
		defer cancel()
		if err := s.repo.Save(callCtx, sess); err != nil {
			s.log.Warn("durable session update failed, cache only", zap.Error(err))
		}
	}
	return sess
}

// CacheSize reports the fallback tier's population, for the health endpoint.
func (s *Store) CacheSize() int { return s.cache.len() }

// DurableEnabled reports whether the primary store is configured.
func (s *Store) DurableEnabled() bool { return s.repo != nil }
