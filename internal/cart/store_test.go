package cart

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-cart-service/internal/entity"
	"storefront-cart-service/internal/kvstore"
)

type fakePersister struct {
	mu      sync.Mutex
	saved   [][]entity.LineItem
	saveErr error

	loadItems []entity.LineItem
	loadErr   error
	release   chan struct{}
}

func (f *fakePersister) LoadCart(ctx context.Context) ([]entity.LineItem, error) {
	if f.release != nil {
		<-f.release
	}
	return f.loadItems, f.loadErr
}

func (f *fakePersister) SaveCart(ctx context.Context, items []entity.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, items)
	return f.saveErr
}

func (f *fakePersister) last() []entity.LineItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return nil
	}
	return f.saved[len(f.saved)-1]
}

func product(id string, price int64, stock int) entity.Product {
	return entity.Product{ID: id, Title: "Product " + id, Price: decimal.NewFromInt(price), Stock: stock}
}

func quantities(items []entity.LineItem) map[string]int {
	out := make(map[string]int, len(items))
	for _, item := range items {
		out[item.Product.ID] = item.Quantity
	}
	return out
}

func TestAddItem_SameProductIncrements(t *testing.T) {
	store := NewStore(nil)
	p := product("a", 100, 10)

	require.NoError(t, store.AddItem(p, 2))
	require.NoError(t, store.AddItem(p, 3))

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 5, store.Totals().ItemCount)
}

func TestAddItem_KeepsInsertionOrder(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.AddItem(product("a", 1, 5), 1))
	require.NoError(t, store.AddItem(product("b", 1, 5), 1))
	require.NoError(t, store.AddItem(product("c", 1, 5), 1))
	require.NoError(t, store.AddItem(product("a", 1, 5), 1))

	items := store.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{items[0].Product.ID, items[1].Product.ID, items[2].Product.ID})
}

func TestAddItem_Validation(t *testing.T) {
	store := NewStore(nil)

	t.Run("Fail on quantity below one", func(t *testing.T) {
		err := store.AddItem(product("a", 100, 10), 0)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("Fail on out of stock product", func(t *testing.T) {
		err := store.AddItem(product("a", 100, 0), 1)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("Fail on missing id", func(t *testing.T) {
		err := store.AddItem(product("", 100, 3), 1)
		assert.ErrorIs(t, err, ErrInvalidProduct)
	})

	assert.Empty(t, store.Items())
}

func TestAddItem_NewLineClampedToStock(t *testing.T) {
	store := NewStore(nil)

	require.NoError(t, store.AddItem(product("a", 100, 4), 9))
	assert.Equal(t, 4, store.Items()[0].Quantity)
}

func TestAddItem_ExistingLineRejectsExcess(t *testing.T) {
	store := NewStore(nil)
	p := product("a", 100, 5)
	require.NoError(t, store.AddItem(p, 4))

	err := store.AddItem(p, 2)
	assert.ErrorIs(t, err, ErrStockExceeded)
	assert.Equal(t, 4, store.Items()[0].Quantity)
}

func TestAddItem_RefreshesProductSnapshot(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.AddItem(product("a", 100, 5), 1))
	require.NoError(t, store.AddItem(product("a", 80, 8), 1))

	items := store.Items()
	assert.Equal(t, "80", items[0].Product.Price.String())
	assert.Equal(t, 8, items[0].Product.Stock)
}

func TestRemoveItem(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.AddItem(product("a", 100, 5), 1))
	require.NoError(t, store.AddItem(product("b", 100, 5), 1))

	store.RemoveItem("a")
	store.RemoveItem("missing")

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].Product.ID)
}

func TestSetQuantity(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.AddItem(product("a", 100, 5), 1))
	require.NoError(t, store.AddItem(product("b", 100, 5), 2))

	t.Run("Success keeps position", func(t *testing.T) {
		require.NoError(t, store.SetQuantity("a", 4))
		items := store.Items()
		assert.Equal(t, "a", items[0].Product.ID)
		assert.Equal(t, 4, items[0].Quantity)
	})

	t.Run("Fail above stock leaves quantity", func(t *testing.T) {
		err := store.SetQuantity("a", 6)
		assert.ErrorIs(t, err, ErrStockExceeded)
		assert.Equal(t, 4, quantities(store.Items())["a"])
	})

	t.Run("Fail on unknown product", func(t *testing.T) {
		err := store.SetQuantity("missing", 1)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("Zero removes", func(t *testing.T) {
		require.NoError(t, store.SetQuantity("a", 0))
		assert.NotContains(t, quantities(store.Items()), "a")
	})

	t.Run("Zero on unknown product is a no-op", func(t *testing.T) {
		assert.NoError(t, store.SetQuantity("missing", 0))
		assert.Len(t, store.Items(), 1)
	})
}

func TestTotals_UsesTierPricing(t *testing.T) {
	store := NewStore(nil)
	bulk := product("rice", 500, 100)
	bulk.DiscountTiers = []entity.DiscountTier{
		{MinQty: 10, DiscountPercent: decimal.NewFromInt(20)},
		{MinQty: 5, DiscountPercent: decimal.NewFromInt(10)},
	}
	require.NoError(t, store.AddItem(bulk, 12))
	require.NoError(t, store.AddItem(product("salt", 50, 10), 2))

	totals := store.Totals()
	assert.Equal(t, 14, totals.ItemCount)
	assert.Equal(t, "4900", totals.Subtotal.String())

	require.NoError(t, store.SetQuantity("rice", 5))
	assert.Equal(t, "2350", store.Totals().Subtotal.String())

	quote, ok := store.Quote("rice")
	require.True(t, ok)
	assert.Equal(t, "450", quote.UnitPrice.String())

	_, ok = store.Quote("missing")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	persister := &fakePersister{}
	store := NewStore(persister)
	require.NoError(t, store.AddItem(product("a", 100, 5), 3))

	store.Clear()
	store.Flush()

	totals := store.Totals()
	assert.Equal(t, 0, totals.ItemCount)
	assert.True(t, totals.Subtotal.IsZero())
	assert.Empty(t, persister.last())
}

func TestMerge(t *testing.T) {
	persister := &fakePersister{}
	store := NewStore(persister)
	require.NoError(t, store.AddItem(product("a", 100, 5), 4))
	store.Flush()

	skipped := store.Merge([]entity.LineItem{
		{Product: product("a", 100, 5), Quantity: 3},
		{Product: product("b", 100, 2), Quantity: 5},
		{Product: product("c", 100, 0), Quantity: 1},
		{Product: product("d", 100, 9), Quantity: 0},
	})
	store.Flush()

	assert.Equal(t, 2, skipped)
	assert.Equal(t, map[string]int{"a": 5, "b": 2}, quantities(store.Items()))

	persister.mu.Lock()
	assert.Len(t, persister.saved, 2, "merge saves once")
	persister.mu.Unlock()

	full := store.Merge([]entity.LineItem{{Product: product("a", 100, 5), Quantity: 1}})
	assert.Equal(t, 1, full)
}

func TestDeduct(t *testing.T) {
	persister := &fakePersister{}
	store := NewStore(persister)
	require.NoError(t, store.AddItem(product("a", 100, 10), 3))
	require.NoError(t, store.AddItem(product("b", 100, 10), 2))
	ordered := store.Items()

	// added after the snapshot
	require.NoError(t, store.AddItem(product("a", 100, 10), 2))
	require.NoError(t, store.AddItem(product("c", 100, 10), 1))

	store.Deduct(ordered)
	store.Flush()

	assert.Equal(t, map[string]int{"a": 2, "c": 1}, quantities(store.Items()))
	assert.Equal(t, map[string]int{"a": 2, "c": 1}, quantities(persister.last()))

	store.Deduct([]entity.LineItem{{Product: product("missing", 1, 1), Quantity: 1}})
	assert.Len(t, store.Items(), 2)
}

func TestRefreshProduct(t *testing.T) {
	persister := &fakePersister{}
	store := NewStore(persister)
	require.NoError(t, store.AddItem(product("a", 100, 10), 6))
	require.NoError(t, store.AddItem(product("b", 100, 10), 2))

	assert.False(t, store.RefreshProduct(product("z", 100, 1)))

	cheaper := product("a", 80, 4)
	assert.True(t, store.RefreshProduct(cheaper))
	assert.True(t, store.RefreshProduct(product("b", 100, 0)))
	store.Flush()

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, "320", store.Totals().Subtotal.String())
	assert.Equal(t, map[string]int{"a": 4}, quantities(persister.last()))
}

func TestMutationsAreSaved(t *testing.T) {
	persister := &fakePersister{}
	store := NewStore(persister)

	require.NoError(t, store.AddItem(product("a", 100, 5), 1))
	require.NoError(t, store.AddItem(product("b", 100, 5), 2))
	require.NoError(t, store.SetQuantity("a", 3))
	store.RemoveItem("b")
	store.Flush()

	assert.Equal(t, map[string]int{"a": 3}, quantities(persister.last()))
}

func TestFailedMutationDoesNotSave(t *testing.T) {
	persister := &fakePersister{}
	store := NewStore(persister)
	require.NoError(t, store.AddItem(product("a", 100, 2), 2))
	store.Flush()

	assert.Error(t, store.AddItem(product("a", 100, 2), 1))
	assert.Error(t, store.SetQuantity("a", 3))
	store.RemoveItem("missing")
	store.Flush()

	persister.mu.Lock()
	defer persister.mu.Unlock()
	assert.Len(t, persister.saved, 1)
}

func TestSaveFailureKeepsCartUsable(t *testing.T) {
	var reported []error
	var mu sync.Mutex
	diskFull := errors.New("disk full")
	persister := &fakePersister{saveErr: diskFull}
	store := NewStore(persister, WithErrorHandler(func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))

	require.NoError(t, store.AddItem(product("a", 100, 5), 2))
	store.Flush()

	assert.Equal(t, 2, store.Totals().ItemCount)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrPersistence)
	assert.ErrorIs(t, reported[0], diskFull)
	assert.Contains(t, reported[0].Error(), "disk full")
}

func TestRestore(t *testing.T) {
	persister := &fakePersister{loadItems: []entity.LineItem{
		{Product: product("a", 100, 5), Quantity: 2},
		{Product: product("b", 100, 3), Quantity: 7},
		{Product: product("a", 100, 5), Quantity: 4},
		{Product: product("c", 100, 5), Quantity: 0},
		{Product: product("d", 100, 0), Quantity: 1},
	}}
	store := NewStore(persister)

	store.Restore(context.Background())
	<-store.Ready()

	items := store.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Product.ID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, "b", items[1].Product.ID)
	assert.Equal(t, 3, items[1].Quantity)
}

func TestRestore_LoadFailureLeavesEmptyCart(t *testing.T) {
	var reported error
	corrupt := errors.New("corrupt")
	persister := &fakePersister{loadErr: corrupt}
	store := NewStore(persister, WithErrorHandler(func(err error) { reported = err }))

	store.Restore(context.Background())
	<-store.Ready()

	assert.Empty(t, store.Items())
	assert.ErrorIs(t, reported, ErrPersistence)
	assert.ErrorIs(t, reported, corrupt)

	require.NoError(t, store.AddItem(product("a", 100, 5), 1))
	assert.Equal(t, 1, store.Totals().ItemCount)
}

func TestRestore_StaleLoadIsDiscarded(t *testing.T) {
	persister := &fakePersister{
		loadItems: []entity.LineItem{{Product: product("old", 100, 5), Quantity: 2}},
		release:   make(chan struct{}),
	}
	store := NewStore(persister)

	store.Restore(context.Background())
	require.NoError(t, store.AddItem(product("new", 100, 5), 1))
	close(persister.release)
	<-store.Ready()

	assert.Equal(t, map[string]int{"new": 1}, quantities(store.Items()))
}

func TestRestore_WithoutPersisterIsReady(t *testing.T) {
	store := NewStore(nil)
	store.Restore(context.Background())

	select {
	case <-store.Ready():
	default:
		t.Fatal("expected store to be ready")
	}
}

func TestKVPersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()

	first := NewStore(NewKVPersister(kv))
	p := product("a", 100, 5)
	p.DiscountTiers = []entity.DiscountTier{{MinQty: 2, DiscountPercent: decimal.RequireFromString("12.5")}}
	require.NoError(t, first.AddItem(p, 2))
	require.NoError(t, first.AddItem(product("b", 30, 5), 1))
	first.Flush()

	second := NewStore(NewKVPersister(kv))
	second.Restore(ctx)
	<-second.Ready()

	assert.Equal(t, first.Items()[0].Product.ID, second.Items()[0].Product.ID)
	assert.True(t, first.Totals().Subtotal.Equal(second.Totals().Subtotal))

	second.Clear()
	second.Flush()
	raw, ok, err := kv.Get(ctx, kvstore.KeyCart)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", raw)
}

func TestKVPersister_MissingKeyIsEmpty(t *testing.T) {
	items, err := NewKVPersister(kvstore.NewMemory()).LoadCart(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestInvariantsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	catalog := []entity.Product{product("a", 10, 3), product("b", 20, 8), product("c", 30, 1), product("d", 40, 12)}
	store := NewStore(nil)

	for i := 0; i < 2000; i++ {
		p := catalog[rng.Intn(len(catalog))]
		switch rng.Intn(3) {
		case 0:
			_ = store.AddItem(p, rng.Intn(5))
		case 1:
			store.RemoveItem(p.ID)
		case 2:
			_ = store.SetQuantity(p.ID, rng.Intn(14)-1)
		}

		items := store.Items()
		seen := make(map[string]bool)
		sum := 0
		for _, item := range items {
			require.False(t, seen[item.Product.ID], "duplicate line for %s", item.Product.ID)
			seen[item.Product.ID] = true
			require.GreaterOrEqual(t, item.Quantity, 1)
			require.LessOrEqual(t, item.Quantity, item.Product.Stock)
			sum += item.Quantity
		}
		require.Equal(t, sum, store.Totals().ItemCount)
	}
}
