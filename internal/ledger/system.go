package ledger

import "github.com/google/uuid"

// Well-known owner IDs for platform-side accounts. Every user-facing
// flow posts against one of these so entries always balance: user
// funds move to or from a system account, never into thin air.
//
// System owners live in a reserved namespace (the first twelve UUID
// bytes are zero). Their accounts mirror value custodied outside the
// ledger, so they are the only accounts allowed to run a deficit:
// a deposit credits the user and debits treasury below zero, because
// the real funds sit in the hot wallet, not in the journal.
var (
	// SystemOwnerTreasury holds platform custody funds (hot wallet side
	// of deposits and withdrawals)
	SystemOwnerTreasury = uuid.MustParse("00000000-0000-0000-0000-000000000101")

	// SystemOwnerFees collects fee revenue
	SystemOwnerFees = uuid.MustParse("00000000-0000-0000-0000-000000000102")

	// SystemOwnerYield is the counterparty of yield subscriptions and
	// interest payouts
	SystemOwnerYield = uuid.MustParse("00000000-0000-0000-0000-000000000104")

	// SystemOwnerRewards funds reward and points grants
	SystemOwnerRewards = uuid.MustParse("00000000-0000-0000-0000-000000000105")
)

// IsSystemOwner reports whether ownerID falls in the reserved platform
// namespace. Accounts of system owners are exempt from the
// non-negative availability check on debits.
func IsSystemOwner(ownerID uuid.UUID) bool {
	for _, b := range ownerID[:12] {
		if b != 0 {
			return false
		}
	}
	return ownerID != uuid.Nil
}
