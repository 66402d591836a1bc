package eventbus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"orderflow/internal/pkg/eventbus"
)

func TestMatchRoutingKey(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"orders.OrderCreated", "orders.OrderCreated", true},
		{"orders.OrderCreated", "orders.OrderRejected", false},
		{"*.OrderConfirmed", "payments.OrderConfirmed", true},
		{"*.OrderConfirmed", "payments.sub.OrderConfirmed", false},
		{"#.OrderConfirmed", "payments.OrderConfirmed", true},
		{"#.OrderConfirmed", "payments.sub.OrderConfirmed", true},
		{"#.OrderConfirmed", "OrderConfirmed", true},
		{"orders.*", "orders.OrderCreated", true},
		{"orders.*", "orders", false},
		{"orders.#", "orders", true},
		{"orders.#", "orders.a.b.c", true},
		{"#", "anything.at.all", true},
		{"*", "orders.OrderCreated", false},
		{"*.*", "orders.OrderCreated", true},
		{"inventory.InventoryReserved", "inventory.InventoryReserved", true},
	}
	for _, tc := range cases {
		t.Run(tc.pattern+"/"+tc.key, func(t *testing.T) {
			assert.Equal(t, tc.want, eventbus.MatchRoutingKey(tc.pattern, tc.key))
		})
	}
}
