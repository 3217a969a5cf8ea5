package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/pkg/apperr"
)

func validAddress() AddressInput {
	return AddressInput{
		Type:    models.AddressWork,
		Name:    "Asha Rao",
		Phone:   "+91 98765 43210",
		Line1:   "4th Floor, Tech Park",
		City:    "Pune",
		State:   "Maharashtra",
		Pincode: "411001",
	}
}

func defaults(t *testing.T, f *fixture, userID uint) []uint {
	t.Helper()
	var ids []uint
	require.NoError(t, f.db.Model(&models.Address{}).
		Where("user_id = ? AND is_default = ?", userID, true).Pluck("id", &ids).Error)
	return ids
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	f := newFixture(t)
	u := f.user("asha@example.com")
	svc := NewAddressService(f.db)

	a, err := svc.Create(f.ctx, u.ID, validAddress())
	require.NoError(t, err)
	assert.True(t, a.IsDefault)
	assert.Equal(t, "9876543210", a.Phone)
	assert.Equal(t, "India", a.Country)

	b, err := svc.Create(f.ctx, u.ID, validAddress())
	require.NoError(t, err)
	assert.False(t, b.IsDefault)

	in := validAddress()
	in.IsDefault = true
	c, err := svc.Create(f.ctx, u.ID, in)
	require.NoError(t, err)
	assert.Equal(t, []uint{c.ID}, defaults(t, f, u.ID))

	list, err := svc.List(f.ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, c.ID, list[0].ID)
}

func TestSetDefaultLeavesExactlyOne(t *testing.T) {
	f := newFixture(t)
	u := f.user("asha@example.com")
	other := f.user("ravi@example.com")
	otherAddr := f.address(other.ID)
	svc := NewAddressService(f.db)

	var ids []uint
	for i := 0; i < 3; i++ {
		a, err := svc.Create(f.ctx, u.ID, validAddress())
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	for _, id := range []uint{ids[1], ids[2], ids[0], ids[2], ids[2]} {
		a, err := svc.SetDefault(f.ctx, u.ID, id)
		require.NoError(t, err)
		assert.True(t, a.IsDefault)
		assert.Equal(t, []uint{id}, defaults(t, f, u.ID))
	}
	assert.Equal(t, []uint{otherAddr.ID}, defaults(t, f, other.ID), "other users are untouched")

	_, err := svc.SetDefault(f.ctx, u.ID, otherAddr.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestDeleteDefaultPromotesAnother(t *testing.T) {
	f := newFixture(t)
	u := f.user("asha@example.com")
	svc := NewAddressService(f.db)

	first, err := svc.Create(f.ctx, u.ID, validAddress())
	require.NoError(t, err)
	second, err := svc.Create(f.ctx, u.ID, validAddress())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(f.ctx, u.ID, first.ID))
	assert.Equal(t, []uint{second.ID}, defaults(t, f, u.ID))

	require.NoError(t, svc.Delete(f.ctx, u.ID, second.ID))
	assert.Empty(t, defaults(t, f, u.ID))
	assert.True(t, apperr.Is(svc.Delete(f.ctx, u.ID, second.ID), apperr.NotFound))
}

func TestUpdateAddress(t *testing.T) {
	f := newFixture(t)
	u := f.user("asha@example.com")
	svc := NewAddressService(f.db)
	a, err := svc.Create(f.ctx, u.ID, validAddress())
	require.NoError(t, err)
	b, err := svc.Create(f.ctx, u.ID, validAddress())
	require.NoError(t, err)

	in := validAddress()
	in.City = "Mumbai"
	in.IsDefault = true
	got, err := svc.Update(f.ctx, u.ID, b.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", got.City)
	assert.Equal(t, []uint{b.ID}, defaults(t, f, u.ID))

	in.IsDefault = false
	got, err = svc.Update(f.ctx, u.ID, b.ID, in)
	require.NoError(t, err)
	assert.True(t, got.IsDefault, "the only default cannot be switched off")

	fetched, err := svc.Get(f.ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsDefault)
}

func TestAddressValidation(t *testing.T) {
	f := newFixture(t)
	u := f.user("asha@example.com")
	svc := NewAddressService(f.db)

	for _, pin := range []string{"1234", "abcdef", "5600011"} {
		in := validAddress()
		in.Pincode = pin
		_, err := svc.Create(f.ctx, u.ID, in)
		require.Error(t, err, pin)
		_, fields := apperr.Public(err)
		assert.Contains(t, fields, "pincode", pin)
	}

	in := validAddress()
	in.Pincode = "560001"
	in.Phone = "12345"
	in.Type = "villa"
	in.Name = ""
	_, err := svc.Create(f.ctx, u.ID, in)
	_, fields := apperr.Public(err)
	assert.Contains(t, fields, "phone")
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "name")
	assert.NotContains(t, fields, "pincode")
}
