// Package session keeps one cart, API client and recently viewed list per
// authenticated client session.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront-cart-service/internal/apiclient"
	"storefront-cart-service/internal/cart"
	"storefront-cart-service/internal/entity"
	"storefront-cart-service/internal/kvstore"
	"storefront-cart-service/internal/recentlyviewed"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

var ErrMissingSessionID = errors.New("session id is required")

type Session struct {
	ID     string
	Cart   *cart.Store
	API    *apiclient.Client
	Recent *recentlyviewed.List

	store    kvstore.Store
	lastSeen time.Time // guarded by Manager.mu
}

type Manager struct {
	mu       sync.Mutex
	store    kvstore.Store
	apiURL   string
	timeout  time.Duration
	sessions map[string]*Session
	now      func() time.Time
}

func NewManager(store kvstore.Store, apiURL string, timeout time.Duration) *Manager {
	return &Manager{
		store:    store,
		apiURL:   apiURL,
		timeout:  timeout,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session for sessionID, creating it on first use. A non-empty
// token replaces the stored bearer token.
func (m *Manager) Get(ctx context.Context, sessionID, token string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = m.newSession(sessionID)
		m.sessions[sessionID] = s
		// The load outlives the request that created the session.
		s.Cart.Restore(context.Background())
	}
	s.lastSeen = m.now()
	m.mu.Unlock()

	if token != "" {
		if err := s.store.Set(ctx, kvstore.KeyToken, token); err != nil {
			return nil, errors.Wrapf(err, "could not store token for session %s", sessionID)
		}
	}
	return s, nil
}

func (m *Manager) newSession(id string) *Session {
	store := kvstore.Prefixed(m.store, fmt.Sprintf("session:%s:", id))
	onError := func(err error) {
		logger.Error().Err(err).Msgf("Cart persistence failed for session %s", id)
	}
	return &Session{
		ID:     id,
		Cart:   cart.NewStore(cart.NewKVPersister(store), cart.WithErrorHandler(onError)),
		API:    apiclient.New(m.apiURL, m.timeout, store),
		Recent: recentlyviewed.New(store),
		store:  store,
	}
}

// RefreshProduct pushes updated catalog data into every live cart holding the
// product and returns how many carts changed.
func (m *Manager) RefreshProduct(product entity.Product) int {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	changed := 0
	for _, s := range sessions {
		<-s.Cart.Ready()
		if s.Cart.RefreshProduct(product) {
			changed++
		}
	}
	return changed
}

// EvictIdle drops sessions not used for idle after flushing their carts. The
// next Get for an evicted session restores it from the store.
func (m *Manager) EvictIdle(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	var candidates []*Session
	for _, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			candidates = append(candidates, s)
		}
	}
	m.mu.Unlock()

	evicted := 0
	for _, s := range candidates {
		<-s.Cart.Ready()
		s.Cart.Flush()

		m.mu.Lock()
		if m.sessions[s.ID] == s && s.lastSeen.Before(cutoff) {
			delete(m.sessions, s.ID)
			evicted++
		}
		m.mu.Unlock()
	}
	return evicted
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (m *Manager) RunEviction(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(idle); n > 0 {
				logger.Info().Msgf("Evicted %d idle sessions", n)
			}
		}
	}
}

// Close waits for every pending cart save.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		<-s.Cart.Ready()
		s.Cart.Flush()
	}
	logger.Info().Msgf("Flushed %d carts", len(sessions))
}
