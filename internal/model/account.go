package model

import (
	"time"
)

// Account is a customer, keyed by their Telegram user id.
type Account struct {
	ID           int64     `json:"id" db:"id"`
	Username     *string   `json:"username,omitempty" db:"username"`
	FirstName    *string   `json:"first_name,omitempty" db:"first_name"`
	LastName     *string   `json:"last_name,omitempty" db:"last_name"`
	LanguageCode *string   `json:"language_code,omitempty" db:"language_code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type AccountWithWallet struct {
	Account
	Wallet *Wallet `json:"wallet,omitempty"`
}
