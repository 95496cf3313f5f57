package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusPreparing, true},
		{StatusPending, StatusReady, true}, // kitchen fast-track
		{StatusPreparing, StatusReady, true},
		{StatusReady, StatusServed, true},
		{StatusServed, StatusCompleted, true},

		{StatusPending, StatusServed, false},
		{StatusPending, StatusCompleted, false},
		{StatusPreparing, StatusServed, false},
		{StatusReady, StatusCompleted, false},
		{StatusCompleted, StatusPending, false},

		// no transition ever moves backward
		{StatusPreparing, StatusPending, false},
		{StatusReady, StatusPreparing, false},
		{StatusServed, StatusReady, false},
		{StatusCompleted, StatusServed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanAdvanceTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("READY")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, s)

	_, err = ParseStatus("COOKING")
	require.ErrorIs(t, err, ErrValidation)
}

func TestOrderClone(t *testing.T) {
	o := &Order{
		ID:      "1",
		TableID: 4,
		Items: []OrderLine{{
			Name:   "Latte",
			Qty:    2,
			Price:  50,
			Size:   &LineOption{Name: "Large", Price: 10},
			Addons: []LineOption{{Name: "Extra Shot", Price: 5}},
		}},
		Status: StatusPending,
	}
	c := o.Clone()
	c.Items[0].Size.Price = 99
	c.Items[0].Addons[0].Price = 99
	c.Items[0].Qty = 9

	assert.Equal(t, 10.0, o.Items[0].Size.Price)
	assert.Equal(t, 5.0, o.Items[0].Addons[0].Price)
	assert.Equal(t, 2, o.Items[0].Qty)
}

func TestUnitPrice(t *testing.T) {
	l := OrderLine{
		Price:  50,
		Size:   &LineOption{Name: "Large", Price: 10},
		Addons: []LineOption{{Name: "Extra Shot", Price: 5}, {Name: "Caramel", Price: 3}},
	}
	assert.Equal(t, 68.0, l.UnitPrice())
}
