package escrow

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

// Service drives the escrow order state machine. An order reserves the
// seller's funds with a hold; release consumes the hold and posts the
// seller-to-buyer movement in one transaction, cancel releases the
// hold with no journal activity.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	assets    *asset.Service
	publisher events.Publisher
	log       *logger.Logger
}

// NewService creates a new escrow service
func NewService(repo Repository, ledgerSvc *ledger.Service, assets *asset.Service, publisher events.Publisher, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		assets:    assets,
		publisher: publisher,
		log:       log.WithField("component", "escrow"),
	}
}

// CreateOrder opens an escrow order locking the seller's funds
func (s *Service) CreateOrder(ctx context.Context, sellerID, buyerID uuid.UUID, assetID string, amount *big.Int, reference *string) (*Order, error) {
	if sellerID == uuid.Nil {
		return nil, ErrInvalidSellerID
	}
	if buyerID == uuid.Nil {
		return nil, ErrInvalidBuyerID
	}
	if sellerID == buyerID {
		return nil, ErrSameParty
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := s.assets.GetActiveRequired(ctx, assetID); err != nil {
		return nil, err
	}

	account, err := s.ledger.EnsureAccount(ctx, sellerID, assetID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &Order{
		ID:        uuid.New(),
		SellerID:  sellerID,
		BuyerID:   buyerID,
		AccountID: account.ID,
		AssetID:   assetID,
		Amount:    amount,
		Status:    StatusOpen,
		Reference: reference,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.ledger.InTx(ctx, func(ctx context.Context) error {
		hold, err := s.ledger.CreateHold(ctx, account.ID, assetID, amount, HoldReason)
		if err != nil {
			return err
		}
		order.HoldID = hold.ID
		return s.repo.Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("escrow order created",
		"order_id", order.ID,
		"seller_id", sellerID,
		"buyer_id", buyerID,
		"asset_id", assetID,
		"amount", money.Format(amount),
	)
	s.publish(ctx, events.TypeEscrowCreated, order)
	s.publishHold(ctx, events.TypeHoldCreated, order)

	return order, nil
}

// Release completes the trade: the seller's hold is consumed and the
// funds are posted to the buyer in the same transaction. The order ID
// is the journal reference, so a replayed release cannot post twice.
func (s *Service) Release(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, err := s.resolve(ctx, id, events.TypeEscrowReleased, func(ctx context.Context, order *Order) error {
		if _, err := s.ledger.ConsumeHold(ctx, order.HoldID, order.Amount); err != nil {
			return err
		}

		buyerAccount, err := s.ledger.EnsureAccount(ctx, order.BuyerID, order.AssetID)
		if err != nil {
			return err
		}

		reference := order.ID.String()
		metadata := map[string]interface{}{
			"order_id": order.ID.String(),
		}
		if order.Reference != nil {
			metadata["trade_reference"] = *order.Reference
		}

		_, err = s.ledger.PostEntry(ctx, EntryTypeRelease, &reference, metadata, []ledger.LineInput{
			{AccountID: order.AccountID, AssetID: order.AssetID, Amount: new(big.Int).Neg(order.Amount)},
			{AccountID: buyerAccount.ID, AssetID: order.AssetID, Amount: order.Amount},
		})
		if err != nil {
			return err
		}

		order.Status = StatusReleased
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishHold(ctx, events.TypeHoldConsumed, order)
	return order, nil
}

// Cancel voids the order and gives the seller back full use of the
// funds. No journal entry is posted because nothing ever moved.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, err := s.resolve(ctx, id, events.TypeEscrowCancelled, func(ctx context.Context, order *Order) error {
		if err := s.ledger.ReleaseHold(ctx, order.HoldID); err != nil {
			return err
		}
		order.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishHold(ctx, events.TypeHoldReleased, order)
	return order, nil
}

// Get retrieves an order by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByParty retrieves orders where the given party is seller or buyer
func (s *Service) ListByParty(ctx context.Context, partyID uuid.UUID, limit, offset int) ([]*Order, error) {
	return s.repo.ListByParty(ctx, partyID, limit, offset)
}

// resolve loads the order under a row lock, requires it to be open,
// applies fn and persists the result
func (s *Service) resolve(ctx context.Context, id uuid.UUID, eventType string, fn func(ctx context.Context, order *Order) error) (*Order, error) {
	var order *Order

	err := s.ledger.InTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !order.IsOpen() {
			return ErrStateConflict
		}

		if err := fn(ctx, order); err != nil {
			return err
		}

		order.UpdatedAt = time.Now().UTC()
		return s.repo.Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, eventType, order)
	return order, nil
}

func (s *Service) publish(ctx context.Context, eventType string, order *Order) {
	event := events.New(eventType, order.ID.String(), map[string]interface{}{
		"seller_id": order.SellerID.String(),
		"buyer_id":  order.BuyerID.String(),
		"asset_id":  order.AssetID,
		"amount":    money.Format(order.Amount),
		"status":    string(order.Status),
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).Error("failed to publish escrow event", "type", eventType, "order_id", order.ID)
	}
}

// publishHold mirrors the seller-side hold lifecycle onto the event
// stream, keyed by the hold ID
func (s *Service) publishHold(ctx context.Context, eventType string, order *Order) {
	event := events.New(eventType, order.HoldID.String(), map[string]interface{}{
		"account_id": order.AccountID.String(),
		"asset_id":   order.AssetID,
		"amount":     money.Format(order.Amount),
		"reason":     HoldReason,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).Error("failed to publish hold event", "type", eventType, "hold_id", order.HoldID)
	}
}
