package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerKey_RoundTrip(t *testing.T) {
	for _, key := range []OwnerKey{UserOwner("u1"), GuestOwner("g1")} {
		parsed, err := ParseOwnerKey(key.String())
		require.NoError(t, err)
		assert.Equal(t, key, parsed)
		assert.True(t, parsed.Valid())
	}
	assert.Equal(t, "user:u1", UserOwner("u1").String())
	assert.Equal(t, "guest:g1", GuestOwner("g1").String())
}

func TestOwnerKey_RejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "user", "user:", "admin:1", "guest:  "} {
		_, err := ParseOwnerKey(raw)
		assert.Error(t, err, raw)
	}
	var zero OwnerKey
	assert.False(t, zero.Valid())
	assert.Equal(t, "", zero.String())
}

func TestCart_AddMergesQuantities(t *testing.T) {
	now := time.Now()
	c := NewCart(GuestOwner("g"), now)
	c.Add("p1", 2, now)
	c.Add("p2", 1, now)
	c.Add("p1", 3, now)

	require.Len(t, c.Items, 2)
	assert.Equal(t, "p1", c.Items[0].ProductID)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, "p2", c.Items[1].ProductID)
}

func TestCart_SetQuantityAndRemove(t *testing.T) {
	now := time.Now()
	c := NewCart(UserOwner("u"), now)
	c.Add("p1", 2, now)
	c.Add("p2", 2, now)

	require.NoError(t, c.SetQuantity("p1", 7))
	assert.Equal(t, 7, c.Quantity("p1"))
	assert.ErrorIs(t, c.SetQuantity("missing", 1), ErrItemNotFound)

	assert.False(t, c.Remove("missing"))
	assert.Len(t, c.Items, 2)
	assert.True(t, c.Remove("p1"))
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p2", c.Items[0].ProductID)

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.NotNil(t, c.Items)
}

func TestNewCartView_ToleratesDanglingProducts(t *testing.T) {
	now := time.Now()
	c := NewCart(GuestOwner("g"), now)
	c.Add("p1", 2, now)
	c.Add("gone", 4, now)

	view := NewCartView(*c, map[string]Product{
		"p1": {ID: "p1", Name: "Apple", Price: decimal.RequireFromString("1.25")},
	})
	require.Len(t, view.Items, 2)
	require.NotNil(t, view.Items[0].Product)
	assert.Equal(t, "Apple", view.Items[0].Product.Name)
	assert.Nil(t, view.Items[1].Product)
	assert.True(t, view.Subtotal.Equal(decimal.RequireFromString("2.50")))
}

func TestParseOrderStatus(t *testing.T) {
	for _, s := range []string{"Pending", "Shipped", "Completed"} {
		status, err := ParseOrderStatus(s)
		require.NoError(t, err)
		assert.Equal(t, OrderStatus(s), status)
	}
	for _, s := range []string{"", "pending", "Cancelled", "SHIPPED"} {
		_, err := ParseOrderStatus(s)
		assert.ErrorIs(t, err, ErrInvalidStatus)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.True(t, OrderStatusPending.Before(OrderStatusShipped))
	assert.False(t, OrderStatusCompleted.Before(OrderStatusShipped))
}

func TestSumItems(t *testing.T) {
	items := []OrderItem{
		NewOrderItem(Product{ID: "p1", Price: decimal.RequireFromString("10.0")}, 2),
		NewOrderItem(Product{ID: "p2", Price: decimal.RequireFromString("5.0")}, 1),
	}
	assert.True(t, SumItems(items).Equal(decimal.NewFromInt(25)))
	assert.True(t, items[0].LineTotal.Equal(decimal.NewFromInt(20)))
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, errors.Is(ErrCartNotFound, ErrNotFound))
	assert.True(t, errors.Is(ErrEmptyCart, ErrValidation))
	assert.True(t, errors.Is(ErrInsufficientStock, ErrBusinessRule))
	assert.Equal(t, "cart not found", ErrCartNotFound.Error())

	err := Invalid("quantity must be at least %d", 1)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "quantity must be at least 1", err.Error())
}

func TestAddressValidate(t *testing.T) {
	ok := Address{Street: "1 Main", City: "Town", PostalCode: "00000", Country: "US"}
	assert.NoError(t, ok.Validate())
	missing := ok
	missing.City = " "
	assert.ErrorIs(t, missing.Validate(), ErrValidation)
}
