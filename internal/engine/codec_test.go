package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopcart/internal/domain"
	apperrors "github.com/utafrali/shopcart/pkg/errors"
)

func TestStoreKey(t *testing.T) {
	assert.Equal(t, "@shopcart:cart:abc", StoreKey("abc"))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	c := domain.Cart{
		{ProductID: 1, Title: "Tênis", Price: decimal.RequireFromString("179.9"), Image: "a.jpg", Amount: 2},
		{ProductID: 7, Title: "Bota", Price: decimal.RequireFromString("0.01"), Image: "", Amount: 1},
	}

	raw, err := Encode(c)
	require.NoError(t, err)
	got, err := Decode(raw)
	require.NoError(t, err)

	assert.True(t, c.Equal(got))
}

func TestEncode_EmptyCart(t *testing.T) {
	raw, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDecode_Null(t *testing.T) {
	got, err := Decode("null")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestDecode_Rejects(t *testing.T) {
	for _, raw := range []string{"", "{", `"cart"`, `[{"id":1,"amount":-2}]`} {
		_, err := Decode(raw)
		assert.Error(t, err, raw)
	}
}

func TestClassify(t *testing.T) {
	inventoryErr := errors.Join(ErrInventory, apperrors.NotFound("inventory resource", "/products/1"))
	tests := []struct {
		name string
		op   domain.Operation
		err  error
		want domain.Kind
	}{
		{"add out of stock", domain.OpAdd, apperrors.OutOfStock("1", 2, 1), domain.KindOutOfStock},
		{"update out of stock", domain.OpUpdate, apperrors.OutOfStock("1", 9, 1), domain.KindOutOfStock},
		{"add inventory 404", domain.OpAdd, inventoryErr, domain.KindAddFailed},
		{"update inventory 404", domain.OpUpdate, inventoryErr, domain.KindUpdateFailed},
		{"remove missing line", domain.OpRemove, apperrors.NotFound("cart line", "1"), domain.KindProductNotFound},
		{"update missing line", domain.OpUpdate, apperrors.NotFound("cart line", "1"), domain.KindProductNotFound},
		{"add unexpected", domain.OpAdd, errBoom, domain.KindAddFailed},
		{"update unexpected", domain.OpUpdate, errBoom, domain.KindUpdateFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.op, tc.err))
		})
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock(1)
	assert.Equal(t, 1, k.size())
	unlock()
	assert.Zero(t, k.size())
}
