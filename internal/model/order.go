package model

import (
	"time"

	"github.com/google/uuid"
)

type OrderItemType string

const (
	OrderItemTypeVideoGeneration OrderItemType = "video_generation"
	OrderItemTypeTokenPack       OrderItemType = "token_pack"
)

// Order is what the commerce system reports once an order is completed.
type Order struct {
	Number    string      `json:"number"`
	AccountID int64       `json:"account_id"`
	Channel   string      `json:"channel"`
	Items     []OrderItem `json:"items"`
}

type OrderItem struct {
	ID            string        `json:"id"`
	Type          OrderItemType `json:"type"`
	Quantity      int           `json:"quantity"`
	TokensPerUnit int64         `json:"tokens_per_unit,omitempty"`
	GenerationID  *uuid.UUID    `json:"generation_id,omitempty"`
}

// TokenTotal is the number of tokens bought by the token pack lines.
func (o Order) TokenTotal() int64 {
	var total int64
	for _, item := range o.Items {
		if item.Type != OrderItemTypeTokenPack || item.Quantity <= 0 || item.TokensPerUnit <= 0 {
			continue
		}
		total += item.TokensPerUnit * int64(item.Quantity)
	}
	return total
}

// StatusCheck is a queued, delayed status poll for one generation.
type StatusCheck struct {
	ID           uuid.UUID  `db:"id"`
	GenerationID uuid.UUID  `db:"generation_id"`
	Attempt      int        `db:"attempt"`
	RunAt        time.Time  `db:"run_at"`
	LockedUntil  *time.Time `db:"locked_until"`
	CreatedAt    time.Time  `db:"created_at"`
}
