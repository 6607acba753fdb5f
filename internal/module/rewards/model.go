package rewards

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// EntryTypeGrant is the journal entry type for reward grants. Together
// with the grant ID as reference it makes every grant idempotent.
const EntryTypeGrant = "reward_grant"

// Grant is the result of awarding points to a user. Grants have no
// table of their own: the journal entry is the record, the campaign
// counter is the running total.
type Grant struct {
	ID         string
	CampaignID string
	OwnerID    uuid.UUID
	AssetID    string
	Points     int64
	Amount     *big.Int
	EntryID    uuid.UUID

	// CampaignTotal is the user's accumulated points in the campaign
	// after this grant was applied.
	CampaignTotal int64

	GrantedAt time.Time
}
