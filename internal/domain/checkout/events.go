package checkout

import "time"

// OrderCreatedEvent is emitted once the gateway has accepted a new order.
type OrderCreatedEvent struct {
	OrderID    string
	Amount     Amount
	OccurredAt time.Time
}

func (OrderCreatedEvent) EventName() string { return "checkout.order_created" }

func NewOrderCreatedEvent(orderID string, amount Amount) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    orderID,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCapturedEvent is emitted when a capture comes back COMPLETED.
// This is where a persistent store would record the paid order.
type OrderCapturedEvent struct {
	OrderID    string
	Status     Status
	OccurredAt time.Time
}

func (OrderCapturedEvent) EventName() string { return "checkout.order_captured" }

func NewOrderCapturedEvent(o Order) OrderCapturedEvent {
	return OrderCapturedEvent{
		OrderID:    o.ID,
		Status:     o.Status,
		OccurredAt: time.Now().UTC(),
	}
}
