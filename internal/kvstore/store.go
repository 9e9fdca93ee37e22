// Package kvstore holds the credential and key-value stores the client
// persists its auth token, cart and recently viewed list in.
package kvstore

import "context"

// Well-known keys.
const (
	KeyToken          = "token"
	KeyCart           = "cart"
	KeyRecentlyViewed = "recentlyViewed"
)

// Store is a string key-value store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type prefixed struct {
	store  Store
	prefix string
}

// Prefixed namespaces every key of store with prefix.
func Prefixed(store Store, prefix string) Store {
	return &prefixed{store: store, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.store.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.store.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.store.Delete(ctx, p.prefix+key)
}
