// Package cart keeps a session's shopping cart: an ordered sequence of line
// items, at most one per product, with totals derived through the pricing
// engine on every read.
package cart

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-cart-service/internal/entity"
	"storefront-cart-service/internal/pricing"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const defaultSaveTimeout = 5 * time.Second

// Store is the cart aggregate of one session.
type Store struct {
	mu        sync.Mutex
	items     []entity.LineItem
	mutations uint64

	persister   Persister
	onError     func(error)
	saveTimeout time.Duration

	saveMu       sync.Mutex
	savedVersion uint64
	pending      sync.WaitGroup

	restoreOnce sync.Once
	ready       chan struct{}
}

type Option func(*Store)

// WithErrorHandler receives persistence failures as non-blocking notifications.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Store) { s.onError = fn }
}

func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) { s.saveTimeout = d }
}

// NewStore creates an empty cart. A nil persister keeps the cart in memory only.
func NewStore(persister Persister, opts ...Option) *Store {
	s := &Store{
		persister:   persister,
		saveTimeout: defaultSaveTimeout,
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted cart in the background. The loaded items are
// applied only if the cart has not been mutated since Restore was called.
func (s *Store) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		if s.persister == nil {
			close(s.ready)
			return
		}

		s.mu.Lock()
		startedAt := s.mutations
		s.mu.Unlock()

		go func() {
			defer close(s.ready)

			items, err := s.persister.LoadCart(ctx)
			if err != nil {
				s.report(fmt.Errorf("%w: load: %w", ErrPersistence, err))
				return
			}

			s.mu.Lock()
			defer s.mu.Unlock()
			if s.mutations != startedAt {
				logger.Warn().Msgf("Discarding restored cart: %d mutations happened during load", s.mutations-startedAt)
				return
			}
			s.items = sanitize(items)
		}()
	})
}

// Ready is closed once Restore has finished, whether or not it succeeded.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// AddItem adds quantity units of product. An existing line grows by quantity
// and fails with ErrStockExceeded past the product's stock; a new line is
// appended with its quantity clamped to the stock.
func (s *Store) AddItem(product entity.Product, quantity int) error {
	if product.ID == "" {
		return ErrInvalidProduct
	}
	if quantity < 1 {
		return errors.Wrapf(ErrInvalidQuantity, "product %s: got %d", product.ID, quantity)
	}
	if product.Stock < 1 {
		return errors.Wrapf(ErrInvalidQuantity, "product %s is out of stock", product.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(product.ID); i >= 0 {
		newQuantity := s.items[i].Quantity + quantity
		if newQuantity > product.Stock {
			return errors.Wrapf(ErrStockExceeded, "product %s: %d requested, %d in stock", product.ID, newQuantity, product.Stock)
		}
		s.items[i] = entity.LineItem{Product: product, Quantity: newQuantity}
	} else {
		if quantity > product.Stock {
			quantity = product.Stock
		}
		s.items = append(s.items, entity.LineItem{Product: product, Quantity: quantity})
	}

	s.mutatedLocked()
	return nil
}

// RemoveItem deletes the line for productID. Removing an absent product is a no-op.
func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removeLocked(productID) {
		s.mutatedLocked()
	}
}

// SetQuantity replaces a line's quantity in place. Quantities below 1 remove
// the line.
func (s *Store) SetQuantity(productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		if s.removeLocked(productID) {
			s.mutatedLocked()
		}
		return nil
	}

	i := s.indexOf(productID)
	if i < 0 {
		return errors.Wrapf(ErrProductNotFound, "product %s", productID)
	}
	if stock := s.items[i].Product.Stock; quantity > stock {
		return errors.Wrapf(ErrStockExceeded, "product %s: %d requested, %d in stock", productID, quantity, stock)
	}
	if s.items[i].Quantity == quantity {
		return nil
	}

	s.items[i].Quantity = quantity
	s.mutatedLocked()
	return nil
}

// Merge adds every line the way a reorder does: quantities are clamped to the
// current stock and lines that cannot be added at all are skipped. It reports
// how many lines were skipped and saves once.
func (s *Store) Merge(items []entity.LineItem) (skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, item := range items {
		product := item.Product
		if product.ID == "" || item.Quantity < 1 || product.Stock < 1 {
			skipped++
			continue
		}

		if i := s.indexOf(product.ID); i >= 0 {
			newQuantity := min(s.items[i].Quantity+item.Quantity, product.Stock)
			if newQuantity <= s.items[i].Quantity {
				skipped++
				continue
			}
			s.items[i] = entity.LineItem{Product: product, Quantity: newQuantity}
		} else {
			s.items = append(s.items, entity.LineItem{Product: product, Quantity: min(item.Quantity, product.Stock)})
		}
		changed = true
	}

	if changed {
		s.mutatedLocked()
	}
	return skipped
}

// Deduct takes the ordered quantities off their lines and drops lines that
// reach zero. Units added after the order snapshot was taken stay in the cart.
func (s *Store) Deduct(ordered []entity.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, item := range ordered {
		i := s.indexOf(item.Product.ID)
		if i < 0 || item.Quantity < 1 {
			continue
		}
		if left := s.items[i].Quantity - item.Quantity; left > 0 {
			s.items[i].Quantity = left
		} else {
			s.removeLocked(item.Product.ID)
		}
		changed = true
	}

	if changed {
		s.mutatedLocked()
	}
}

// RefreshProduct replaces the snapshot of product's line with the current
// catalog data. The quantity is clamped to the new stock and the line is
// dropped when the product ran out. It reports whether the cart changed.
func (s *Store) RefreshProduct(product entity.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(product.ID)
	if i < 0 || product.ID == "" {
		return false
	}
	if product.Stock < 1 {
		s.removeLocked(product.ID)
	} else {
		s.items[i] = entity.LineItem{Product: product, Quantity: min(s.items[i].Quantity, product.Stock)}
	}

	s.mutatedLocked()
	return true
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.mutatedLocked()
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []entity.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]entity.LineItem(nil), s.items...)
}

// Totals recomputes the item count and discounted subtotal.
func (s *Store) Totals() entity.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := entity.Totals{Subtotal: decimal.Zero}
	for _, item := range s.items {
		totals.ItemCount += item.Quantity
		totals.Subtotal = totals.Subtotal.Add(pricing.PriceFor(item.Product, item.Quantity).TotalPrice)
	}
	return totals
}

// Quote prices the line for productID at its current quantity.
func (s *Store) Quote(productID string) (entity.Pricing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return entity.Pricing{}, false
	}
	return pricing.PriceFor(s.items[i].Product, s.items[i].Quantity), true
}

// Flush blocks until every scheduled save has finished.
func (s *Store) Flush() {
	s.pending.Wait()
}

func (s *Store) indexOf(productID string) int {
	for i, item := range s.items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(productID string) bool {
	i := s.indexOf(productID)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return true
}

// mutatedLocked bumps the mutation counter and schedules a save of the
// current snapshot. Callers hold s.mu.
func (s *Store) mutatedLocked() {
	s.mutations++
	if s.persister == nil {
		return
	}

	version := s.mutations
	snapshot := append([]entity.LineItem{}, s.items...)
	s.pending.Add(1)
	go s.save(version, snapshot)
}

// save writes snapshot unless a newer version has already been written.
func (s *Store) save(version uint64, snapshot []entity.LineItem) {
	defer s.pending.Done()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if version <= s.savedVersion {
		return
	}
	s.savedVersion = version

	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	if err := s.persister.SaveCart(ctx, snapshot); err != nil {
		s.report(fmt.Errorf("%w: save: %w", ErrPersistence, err))
	}
}

func (s *Store) report(err error) {
	logger.Warn().Err(err).Msg("Cart persistence failure")
	if s.onError != nil {
		s.onError(err)
	}
}

// sanitize restores the cart invariants on persisted data: one line per
// product, quantities within [1, stock].
func sanitize(items []entity.LineItem) []entity.LineItem {
	var clean []entity.LineItem
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Product.ID == "" || item.Quantity < 1 || item.Product.Stock < 1 {
			logger.Warn().Msgf("Dropping invalid restored line for product %q", item.Product.ID)
			continue
		}
		if i, ok := index[item.Product.ID]; ok {
			clean[i].Quantity = min(clean[i].Quantity+item.Quantity, clean[i].Product.Stock)
			continue
		}
		item.Quantity = min(item.Quantity, item.Product.Stock)
		index[item.Product.ID] = len(clean)
		clean = append(clean, item)
	}
	return clean
}
