package model

import (
	"time"

	"github.com/google/uuid"
)

const PaymentTypeWallet = "wallet"

// Generation is one asynchronous video generation request. Its fields are
// only changed through Apply, inside a locked read-modify-write.
type Generation struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	AccountID            int64           `json:"account_id" db:"account_id"`
	Prompt               string          `json:"prompt" db:"prompt"`
	TokenCost            int64           `json:"token_cost" db:"token_cost"`
	State                GenerationState `json:"state" db:"workflow_state"`
	PaymentTransactionID *uuid.UUID      `json:"payment_transaction_id,omitempty" db:"payment_transaction_id"`
	PaymentType          *string         `json:"payment_type,omitempty" db:"payment_type"`
	OrderItemID          *string         `json:"order_item_id,omitempty" db:"order_item_id"`
	ExternalProvider     *string         `json:"external_provider,omitempty" db:"external_provider"`
	ExternalJobID        *string         `json:"external_job_id,omitempty" db:"external_job_id"`
	ExternalSubmittedAt  *time.Time      `json:"external_submitted_at,omitempty" db:"external_submitted_at"`
	ExternalErrorMessage *string         `json:"external_error_message,omitempty" db:"external_error_message"`
	ExternalMetadata     Metadata        `json:"external_metadata,omitempty" db:"external_metadata"`
	VideoStorageURL      *string         `json:"video_storage_url,omitempty" db:"video_storage_url"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

func (g *Generation) Can(t Transition) bool {
	return CanTransition(g.State, t)
}

// Apply moves the generation along t. It returns false and changes nothing
// when the current state does not allow t.
func (g *Generation) Apply(t Transition) bool {
	next, ok := NextState(g.State, t)
	if !ok {
		return false
	}
	g.State = next
	g.UpdatedAt = time.Now()
	return true
}

func (g *Generation) HasExternalJob() bool {
	return g.ExternalJobID != nil && *g.ExternalJobID != ""
}

func (g *Generation) IsFinalState() bool {
	return g.State.IsFinal()
}

func (g *Generation) IsInProgress() bool {
	return g.State.IsInProgress()
}

// CustomerStatus folds the technical states into what a customer sees.
func (g *Generation) CustomerStatus() string {
	if g.State.IsInProgress() {
		return string(StateProcessing)
	}
	return string(g.State)
}
