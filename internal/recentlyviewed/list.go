// Package recentlyviewed keeps the products a session looked at, newest first.
package recentlyviewed

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront-cart-service/internal/entity"
	"storefront-cart-service/internal/kvstore"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const (
	MaxItems           = 20
	maxRecommendations = 4
)

type List struct {
	mu     sync.Mutex
	store  kvstore.Store
	items  []entity.ViewedProduct
	loaded bool
	now    func() time.Time
}

func New(store kvstore.Store) *List {
	return &List{store: store, now: time.Now}
}

// load reads the persisted list once. A broken list is logged and treated as
// empty; a failed read is retried on the next call.
func (l *List) load(ctx context.Context) error {
	if l.loaded {
		return nil
	}

	data, ok, err := l.store.Get(ctx, kvstore.KeyRecentlyViewed)
	if err != nil {
		logger.Error().Err(err).Msg("Error loading recently viewed")
		return errors.Wrap(err, "could not load recently viewed")
	}
	l.loaded = true
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(data), &l.items); err != nil {
		logger.Error().Err(err).Msg("Error unmarshalling recently viewed")
		l.items = nil
	}
	return nil
}

func (l *List) save(ctx context.Context) error {
	data, err := json.Marshal(l.items)
	if err != nil {
		return errors.Wrap(err, "could not marshal recently viewed")
	}
	if err := l.store.Set(ctx, kvstore.KeyRecentlyViewed, string(data)); err != nil {
		logger.Error().Err(err).Msg("Error saving recently viewed")
		return err
	}
	return nil
}

// Add moves product to the front of the list and keeps at most MaxItems.
func (l *List) Add(ctx context.Context, product entity.Product) error {
	if product.ID == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.load(ctx); err != nil {
		return err
	}

	updated := make([]entity.ViewedProduct, 0, len(l.items)+1)
	updated = append(updated, entity.ViewedProduct{Product: product, ViewedAt: l.now().UTC().Format(time.RFC3339)})
	for _, item := range l.items {
		if item.ID != product.ID {
			updated = append(updated, item)
		}
	}
	if len(updated) > MaxItems {
		updated = updated[:MaxItems]
	}
	l.items = updated

	return l.save(ctx)
}

func (l *List) Items(ctx context.Context) []entity.ViewedProduct {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.load(ctx)

	return append([]entity.ViewedProduct(nil), l.items...)
}

func (l *List) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loaded = true
	l.items = nil
	return l.store.Delete(ctx, kvstore.KeyRecentlyViewed)
}

// Recommendations returns up to 4 other viewed products sharing the category
// of productID. Unknown products get no recommendations.
func (l *List) Recommendations(ctx context.Context, productID string) []entity.ViewedProduct {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.load(ctx)

	var current *entity.ViewedProduct
	for i := range l.items {
		if l.items[i].ID == productID {
			current = &l.items[i]
			break
		}
	}
	if current == nil {
		return nil
	}

	var out []entity.ViewedProduct
	for _, item := range l.items {
		if item.ID != productID && item.Category == current.Category {
			out = append(out, item)
			if len(out) == maxRecommendations {
				break
			}
		}
	}
	return out
}
