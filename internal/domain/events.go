package domain

import "time"

const TopicOrderPlaced = "order.placed"

type OrderPlacedEvent struct {
	Order     Order     `json:"order"`
	Recipient string    `json:"recipient"`
	Timestamp time.Time `json:"timestamp"`
}
