// Package cart keeps shopping carts server-side. A cart belongs to an
// owner (a signed-in user or a guest token) and holds one line per
// product, size and color.
package cart

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Owner identifies whose cart it is.
type Owner string

func UserOwner(userID uint) Owner  { return Owner(fmt.Sprintf("user:%d", userID)) }
func GuestOwner(token string) Owner { return Owner("guest:" + token) }

// Item is one cart line. The product fields are a snapshot from the time
// the line was added; checkout re-reads live prices.
type Item struct {
	Key           string           `json:"key"`
	ProductID     uint             `json:"product_id"`
	Size          string           `json:"size"`
	Color         string           `json:"color"`
	Quantity      int              `json:"quantity"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	Image         string           `json:"image"`
	Stock         int              `json:"stock"`
	AddedAt       time.Time        `json:"added_at"`
}

// Key builds the line key "{productID}-{size}-{color}".
func Key(productID uint, size, color string) string {
	return fmt.Sprintf("%d-%s-%s", productID, size, color)
}

// Store persists carts.
type Store interface {
	Items(ctx context.Context, owner Owner) ([]Item, error)
	Get(ctx context.Context, owner Owner, key string) (Item, bool, error)
	// Add inserts item or, when its key exists, adds its quantity to the
	// existing line. It returns the resulting line.
	Add(ctx context.Context, owner Owner, item Item) (Item, error)
	// SetQuantity sets a line's quantity; qty <= 0 removes the line.
	// Missing keys are reported with ok=false.
	SetQuantity(ctx context.Context, owner Owner, key string, qty int) (ok bool, err error)
	Remove(ctx context.Context, owner Owner, key string) error
	Clear(ctx context.Context, owner Owner) error
}

// Merge moves every line from one cart into another, summing quantities
// for shared keys, then clears the source.
func Merge(ctx context.Context, s Store, from, to Owner) error {
	if from == to {
		return nil
	}
	items, err := s.Items(ctx, from)
	if err != nil {
		return err
	}
	for _, it := range items {
		if _, err := s.Add(ctx, to, it); err != nil {
			return err
		}
	}
	return s.Clear(ctx, from)
}

// Subtract takes ordered lines out of a cart. Each line loses the ordered
// quantity, so anything added after the snapshot was taken stays.
func Subtract(ctx context.Context, s Store, owner Owner, ordered []Item) error {
	for _, it := range ordered {
		key := Key(it.ProductID, it.Size, it.Color)
		cur, ok, err := s.Get(ctx, owner, key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, err := s.SetQuantity(ctx, owner, key, cur.Quantity-it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ItemCount sums quantities.
func ItemCount(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].AddedAt.Before(items[j].AddedAt)
		}
		return items[i].Key < items[j].Key
	})
}

func normalize(item Item) Item {
	item.Key = Key(item.ProductID, item.Size, item.Color)
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	return item
}
