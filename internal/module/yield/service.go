package yield

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

// Service drives yield positions on top of the ledger. Subscribing
// locks the principal on the user's account; redeeming consumes the
// hold and settles principal plus interest against the yield pool in
// one transaction.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	assets    *asset.Service
	publisher events.Publisher
	log       *logger.Logger
}

// NewService creates a new yield service
func NewService(repo Repository, ledgerSvc *ledger.Service, assets *asset.Service, publisher events.Publisher, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		assets:    assets,
		publisher: publisher,
		log:       log.WithField("component", "yield"),
	}
}

// Subscribe opens a position and locks the principal
func (s *Service) Subscribe(ctx context.Context, ownerID uuid.UUID, assetID string, principal *big.Int, rateBps int64) (*Position, error) {
	if ownerID == uuid.Nil {
		return nil, ErrInvalidOwnerID
	}
	if principal == nil || principal.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if rateBps < 0 || rateBps > 10000 {
		return nil, ErrInvalidRate
	}

	if _, err := s.assets.GetActiveRequired(ctx, assetID); err != nil {
		return nil, err
	}

	account, err := s.ledger.EnsureAccount(ctx, ownerID, assetID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	position := &Position{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		AccountID:    account.ID,
		AssetID:      assetID,
		Principal:    principal,
		RateBps:      rateBps,
		Status:       StatusActive,
		SubscribedAt: now,
		UpdatedAt:    now,
	}

	err = s.ledger.InTx(ctx, func(ctx context.Context) error {
		hold, err := s.ledger.CreateHold(ctx, account.ID, assetID, principal, HoldReason)
		if err != nil {
			return err
		}
		position.HoldID = hold.ID
		return s.repo.Create(ctx, position)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("yield position opened",
		"position_id", position.ID,
		"owner_id", ownerID,
		"asset_id", assetID,
		"principal", money.Format(principal),
		"rate_bps", rateBps,
	)
	s.publish(ctx, events.TypeYieldSubscribed, position)
	s.publishHold(ctx, events.TypeHoldCreated, position)

	return position, nil
}

// Redeem closes the position: the principal hold is consumed, the
// principal cycles through the yield pool and comes back with interest,
// all in one journal entry and one transaction. The position ID is the
// journal reference, so a replayed redemption cannot settle twice.
func (s *Service) Redeem(ctx context.Context, id uuid.UUID) (*Position, error) {
	var position *Position

	err := s.ledger.InTx(ctx, func(ctx context.Context) error {
		var err error
		position, err = s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !position.IsActive() {
			return ErrStateConflict
		}

		if _, err := s.ledger.ConsumeHold(ctx, position.HoldID, position.Principal); err != nil {
			return err
		}

		pool, err := s.ledger.EnsureAccount(ctx, ledger.SystemOwnerYield, position.AssetID)
		if err != nil {
			return err
		}

		interest := position.Interest()
		payout := new(big.Int).Add(position.Principal, interest)
		reference := position.ID.String()

		_, err = s.ledger.PostEntry(ctx, EntryTypeRedeem, &reference, map[string]interface{}{
			"position_id": position.ID.String(),
			"rate_bps":    position.RateBps,
			"interest":    money.Format(interest),
		}, []ledger.LineInput{
			{AccountID: position.AccountID, AssetID: position.AssetID, Amount: new(big.Int).Neg(position.Principal)},
			{AccountID: pool.ID, AssetID: position.AssetID, Amount: position.Principal},
			{AccountID: pool.ID, AssetID: position.AssetID, Amount: new(big.Int).Neg(payout)},
			{AccountID: position.AccountID, AssetID: position.AssetID, Amount: payout},
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		position.Status = StatusRedeemed
		position.RedeemedAt = &now
		position.UpdatedAt = now
		return s.repo.Update(ctx, position)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeYieldRedeemed, position)
	s.publishHold(ctx, events.TypeHoldConsumed, position)
	return position, nil
}

// Get retrieves a position by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Position, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByOwner retrieves an owner's positions, newest first
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Position, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

func (s *Service) publish(ctx context.Context, eventType string, p *Position) {
	event := events.New(eventType, p.ID.String(), map[string]interface{}{
		"owner_id":  p.OwnerID.String(),
		"asset_id":  p.AssetID,
		"principal": money.Format(p.Principal),
		"rate_bps":  p.RateBps,
		"status":    string(p.Status),
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).Error("failed to publish yield event", "type", eventType, "position_id", p.ID)
	}
}

// publishHold mirrors the principal hold lifecycle onto the event
// stream, keyed by the hold ID
func (s *Service) publishHold(ctx context.Context, eventType string, p *Position) {
	event := events.New(eventType, p.HoldID.String(), map[string]interface{}{
		"account_id": p.AccountID.String(),
		"asset_id":   p.AssetID,
		"amount":     money.Format(p.Principal),
		"reason":     HoldReason,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).Error("failed to publish hold event", "type", eventType, "hold_id", p.HoldID)
	}
}
