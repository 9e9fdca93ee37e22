package cart

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"storefront-cart-service/internal/entity"
	"storefront-cart-service/internal/kvstore"
)

// Persister loads and saves the serialized line-item sequence.
type Persister interface {
	LoadCart(ctx context.Context) ([]entity.LineItem, error)
	SaveCart(ctx context.Context, items []entity.LineItem) error
}

// KVPersister keeps the cart as a JSON array under a single key.
type KVPersister struct {
	store kvstore.Store
	key   string
}

func NewKVPersister(store kvstore.Store) *KVPersister {
	return &KVPersister{store: store, key: kvstore.KeyCart}
}

func (p *KVPersister) LoadCart(ctx context.Context) ([]entity.LineItem, error) {
	data, ok, err := p.store.Get(ctx, p.key)
	if err != nil {
		return nil, err
	}
	if !ok || data == "" {
		return nil, nil
	}

	var items []entity.LineItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal cart")
	}
	return items, nil
}

func (p *KVPersister) SaveCart(ctx context.Context, items []entity.LineItem) error {
	if items == nil {
		items = []entity.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "could not marshal cart")
	}
	return p.store.Set(ctx, p.key, string(data))
}
