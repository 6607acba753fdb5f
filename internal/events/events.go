package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the ledger and its state-machine adapters.
// Events are published after the owning database transaction commits,
// so consumers only ever see committed facts.
const (
	TypeHoldCreated  = "ledger.hold.created"
	TypeHoldReleased = "ledger.hold.released"
	TypeHoldConsumed = "ledger.hold.consumed"

	TypeWithdrawalRequested   = "withdrawal.requested"
	TypeWithdrawalReviewed    = "withdrawal.reviewed"
	TypeWithdrawalApproved    = "withdrawal.approved"
	TypeWithdrawalRejected    = "withdrawal.rejected"
	TypeWithdrawalBroadcasted = "withdrawal.broadcasted"
	TypeWithdrawalConfirmed   = "withdrawal.confirmed"

	TypeEscrowCreated   = "escrow.created"
	TypeEscrowReleased  = "escrow.released"
	TypeEscrowCancelled = "escrow.cancelled"

	TypeYieldSubscribed = "yield.subscribed"
	TypeYieldRedeemed   = "yield.redeemed"

	TypeRewardGranted = "reward.granted"
)

// Event is the envelope published to the message broker. Subject is
// the identifier of the aggregate the event is about and doubles as
// the partition key.
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Type       string                 `json:"type"`
	Subject    string                 `json:"subject"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// New creates an event envelope
func New(eventType, subject string, payload map[string]interface{}) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher publishes events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards all events. Used in development and tests when
// no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (NopPublisher) Close() error                                   { return nil }
