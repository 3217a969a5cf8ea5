package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(productID uint, size, color string, qty int) Item {
	return Item{ProductID: productID, Size: size, Color: color, Quantity: qty, Name: "Tee", Price: decimal.NewFromInt(500)}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "12-XL-Black", Key(12, "XL", "Black"))
	assert.Equal(t, "user:7", string(UserOwner(7)))
	assert.Equal(t, "guest:abc", string(GuestOwner("abc")))
}

func TestAddMergesSameLine(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := UserOwner(1)

	first, err := s.Add(ctx, owner, line(12, "XL", "Black", 1))
	require.NoError(t, err)
	second, err := s.Add(ctx, owner, line(12, "XL", "Black", 2))
	require.NoError(t, err)
	_, err = s.Add(ctx, owner, line(12, "M", "Black", 1))
	require.NoError(t, err)

	assert.Equal(t, "12-XL-Black", second.Key)
	assert.Equal(t, 3, second.Quantity)
	assert.Equal(t, first.AddedAt, second.AddedAt)

	items, err := s.Items(ctx, owner)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 4, ItemCount(items))

	_, err = s.Add(ctx, owner, line(12, "XL", "Black", 0))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSetQuantityZeroRemoves(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := GuestOwner("t1")
	_, err := s.Add(ctx, owner, line(3, "S", "White", 2))
	require.NoError(t, err)

	ok, err := s.SetQuantity(ctx, owner, "3-S-White", 5)
	require.NoError(t, err)
	assert.True(t, ok)
	it, found, _ := s.Get(ctx, owner, "3-S-White")
	require.True(t, found)
	assert.Equal(t, 5, it.Quantity)

	ok, err = s.SetQuantity(ctx, owner, "3-S-White", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	items, _ := s.Items(ctx, owner)
	assert.Empty(t, items)

	ok, err = s.SetQuantity(ctx, owner, "missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMergeGuestIntoUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	guest, user := GuestOwner("g"), UserOwner(9)

	_, _ = s.Add(ctx, user, line(1, "M", "Black", 1))
	_, _ = s.Add(ctx, guest, line(1, "M", "Black", 2))
	g2 := line(2, "L", "Navy", 1)
	g2.AddedAt = time.Now().Add(time.Minute)
	_, _ = s.Add(ctx, guest, g2)

	require.NoError(t, Merge(ctx, s, guest, user))

	items, _ := s.Items(ctx, user)
	require.Len(t, items, 2)
	assert.Equal(t, "1-M-Black", items[0].Key)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "2-L-Navy", items[1].Key)

	left, _ := s.Items(ctx, guest)
	assert.Empty(t, left)
	require.NoError(t, Merge(ctx, s, user, user))
}

func TestSubtractKeepsLaterAdditions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := UserOwner(1)

	_, err := s.Add(ctx, owner, line(12, "XL", "Black", 2))
	require.NoError(t, err)
	_, err = s.Add(ctx, owner, line(13, "", "", 1))
	require.NoError(t, err)
	ordered, err := s.Items(ctx, owner)
	require.NoError(t, err)

	// after the snapshot: one more of an ordered line, and a new line
	_, err = s.Add(ctx, owner, line(12, "XL", "Black", 1))
	require.NoError(t, err)
	_, err = s.Add(ctx, owner, line(14, "M", "", 1))
	require.NoError(t, err)

	require.NoError(t, Subtract(ctx, s, owner, ordered))

	left, err := s.Items(ctx, owner)
	require.NoError(t, err)
	got := map[string]int{}
	for _, it := range left {
		got[Key(it.ProductID, it.Size, it.Color)] = it.Quantity
	}
	assert.Equal(t, map[string]int{"12-XL-Black": 1, "14-M-": 1}, got)
}
