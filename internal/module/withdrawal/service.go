package withdrawal

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/coinpilot/exchange-ledger/internal/events"
	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/pkg/logger"
	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// Service drives the withdrawal state machine on top of the ledger.
// Funds are reserved with a hold at request time and only posted to
// the journal once the transfer is broadcast on chain.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	assets    *asset.Service
	publisher events.Publisher
	log       *logger.Logger
}

// NewService creates a new withdrawal service
func NewService(repo Repository, ledgerSvc *ledger.Service, assets *asset.Service, publisher events.Publisher, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		assets:    assets,
		publisher: publisher,
		log:       log.WithField("component", "withdrawal"),
	}
}

// Request creates a withdrawal request and reserves the funds. The
// hold covers amount plus fee so the user cannot spend either while
// the request is pending.
func (s *Service) Request(ctx context.Context, ownerID uuid.UUID, assetID string, amount *big.Int, address string) (*Withdrawal, error) {
	if ownerID == uuid.Nil {
		return nil, ErrInvalidOwnerID
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if address == "" {
		return nil, ErrInvalidAddress
	}

	a, err := s.assets.CheckWithdrawable(ctx, assetID, amount)
	if err != nil {
		return nil, err
	}

	fee, err := money.BpsFeeCeil(amount, a.WithdrawFeeBps)
	if err != nil {
		return nil, err
	}

	account, err := s.ledger.EnsureAccount(ctx, ownerID, assetID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	w := &Withdrawal{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		AccountID: account.ID,
		AssetID:   assetID,
		Amount:    amount,
		Fee:       fee,
		Address:   address,
		Status:    StatusRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.ledger.InTx(ctx, func(ctx context.Context) error {
		hold, err := s.ledger.CreateHold(ctx, account.ID, assetID, w.Total(), HoldReason)
		if err != nil {
			return err
		}
		w.HoldID = hold.ID
		return s.repo.Create(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal requested",
		"withdrawal_id", w.ID,
		"owner_id", ownerID,
		"asset_id", assetID,
		"amount", money.Format(amount),
		"fee", money.Format(fee),
	)
	s.publish(ctx, events.TypeWithdrawalRequested, w)
	s.publishHold(ctx, events.TypeHoldCreated, w)

	return w, nil
}

// MarkReviewed moves a requested withdrawal into the compliance queue
func (s *Service) MarkReviewed(ctx context.Context, id uuid.UUID) (*Withdrawal, error) {
	return s.transition(ctx, id, func(ctx context.Context, w *Withdrawal) error {
		if w.Status != StatusRequested {
			return ErrStateConflict
		}
		w.Status = StatusNeedsReview
		return nil
	}, events.TypeWithdrawalReviewed)
}

// Approve clears a reviewed withdrawal for broadcast. Approving a
// withdrawal that is already past the approval gate (approved,
// broadcasted or confirmed) is a no-op success so operator retries
// and replayed callbacks are safe.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Withdrawal, error) {
	var alreadyApproved bool
	w, err := s.transition(ctx, id, func(ctx context.Context, w *Withdrawal) error {
		if w.PastApproval() {
			alreadyApproved = true
			return nil
		}
		if w.Status != StatusNeedsReview {
			return ErrStateConflict
		}
		w.Status = StatusApproved
		return nil
	}, "")
	if err != nil {
		return nil, err
	}

	if !alreadyApproved {
		s.publish(ctx, events.TypeWithdrawalApproved, w)
	}
	return w, nil
}

// Reject declines a withdrawal and releases the reserved funds. Only
// possible before approval; later states return ErrStateConflict.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*Withdrawal, error) {
	w, err := s.transition(ctx, id, func(ctx context.Context, w *Withdrawal) error {
		if !w.CanReject() {
			return ErrStateConflict
		}
		w.Status = StatusRejected
		w.Reason = reason
		return s.ledger.ReleaseHold(ctx, w.HoldID)
	}, events.TypeWithdrawalRejected)
	if err != nil {
		return nil, err
	}

	s.publishHold(ctx, events.TypeHoldReleased, w)
	return w, nil
}

// MarkBroadcasted records the on-chain broadcast: the hold is fully
// consumed and the funds movement is posted to the journal, all in one
// transaction. The tx hash doubles as the journal reference, so a
// replayed broadcast callback cannot post twice.
func (s *Service) MarkBroadcasted(ctx context.Context, id uuid.UUID, txHash string) (*Withdrawal, error) {
	if txHash == "" {
		return nil, ErrInvalidTxHash
	}

	w, err := s.transition(ctx, id, func(ctx context.Context, w *Withdrawal) error {
		if w.Status != StatusApproved {
			return ErrStateConflict
		}

		if _, err := s.ledger.ConsumeHold(ctx, w.HoldID, w.Total()); err != nil {
			return err
		}

		treasury, err := s.ledger.EnsureAccount(ctx, ledger.SystemOwnerTreasury, w.AssetID)
		if err != nil {
			return err
		}
		feeAccount, err := s.ledger.EnsureAccount(ctx, ledger.SystemOwnerFees, w.AssetID)
		if err != nil {
			return err
		}

		lines := []ledger.LineInput{
			{AccountID: w.AccountID, AssetID: w.AssetID, Amount: new(big.Int).Neg(w.Total())},
			{AccountID: treasury.ID, AssetID: w.AssetID, Amount: w.Amount},
		}
		if w.Fee.Sign() > 0 {
			lines = append(lines, ledger.LineInput{AccountID: feeAccount.ID, AssetID: w.AssetID, Amount: w.Fee})
		}

		_, err = s.ledger.PostEntry(ctx, EntryTypeFund, &txHash, map[string]interface{}{
			"withdrawal_id": w.ID.String(),
			"address":       w.Address,
		}, lines)
		if err != nil {
			return err
		}

		w.Status = StatusBroadcasted
		w.TxHash = &txHash
		return nil
	}, events.TypeWithdrawalBroadcasted)
	if err != nil {
		return nil, err
	}

	s.publishHold(ctx, events.TypeHoldConsumed, w)
	return w, nil
}

// Confirm finalizes a broadcast withdrawal after enough chain
// confirmations
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Withdrawal, error) {
	return s.transition(ctx, id, func(ctx context.Context, w *Withdrawal) error {
		if w.Status != StatusBroadcasted {
			return ErrStateConflict
		}
		w.Status = StatusConfirmed
		return nil
	}, events.TypeWithdrawalConfirmed)
}

// Get retrieves a withdrawal by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Withdrawal, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByOwner retrieves an owner's withdrawals, newest first
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Withdrawal, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

// transition loads the withdrawal under a row lock, applies fn inside
// the transaction and persists the result, then publishes eventType if
// one is given
func (s *Service) transition(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, w *Withdrawal) error, eventType string) (*Withdrawal, error) {
	var w *Withdrawal

	err := s.ledger.InTx(ctx, func(ctx context.Context) error {
		var err error
		w, err = s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := fn(ctx, w); err != nil {
			return err
		}

		w.UpdatedAt = time.Now().UTC()
		return s.repo.Update(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	if eventType != "" {
		s.publish(ctx, eventType, w)
	}
	return w, nil
}

func (s *Service) publish(ctx context.Context, eventType string, w *Withdrawal) {
	event := events.New(eventType, w.ID.String(), map[string]interface{}{
		"owner_id": w.OwnerID.String(),
		"asset_id": w.AssetID,
		"amount":   money.Format(w.Amount),
		"fee":      money.Format(w.Fee),
		"status":   string(w.Status),
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Event delivery is best effort; the journal is the source of truth
		s.log.WithError(err).Error("failed to publish withdrawal event", "type", eventType, "withdrawal_id", w.ID)
	}
}

// publishHold mirrors the hold lifecycle backing this withdrawal onto
// the event stream, keyed by the hold ID
func (s *Service) publishHold(ctx context.Context, eventType string, w *Withdrawal) {
	event := events.New(eventType, w.HoldID.String(), map[string]interface{}{
		"account_id": w.AccountID.String(),
		"asset_id":   w.AssetID,
		"amount":     money.Format(w.Total()),
		"reason":     HoldReason,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).Error("failed to publish hold event", "type", eventType, "hold_id", w.HoldID)
	}
}
