package rewards

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/coinpilot/exchange-ledger/internal/events"
	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/pkg/logger"
	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// Service grants campaign points. A grant is a journal entry moving
// points from the rewards pool to the user plus a counter bump keyed
// by campaign and owner, all in one transaction. The grant ID is the
// journal reference, so replaying a grant neither double-pays nor
// double-counts.
type Service struct {
	ledger    *ledger.Service
	assets    *asset.Service
	publisher events.Publisher
	log       *logger.Logger

	// pointsAssetID is the asset grants are denominated in.
	pointsAssetID string
}

// NewService creates a new rewards service
func NewService(ledgerSvc *ledger.Service, assets *asset.Service, publisher events.Publisher, log *logger.Logger, pointsAssetID string) *Service {
	return &Service{
		ledger:        ledgerSvc,
		assets:        assets,
		publisher:     publisher,
		log:           log.WithField("component", "rewards"),
		pointsAssetID: pointsAssetID,
	}
}

// Grant awards points to a user for a campaign. grantID identifies the
// business event (a referral, a completed quest) and deduplicates
// retries.
func (s *Service) Grant(ctx context.Context, campaignID string, ownerID uuid.UUID, points int64, grantID string) (*Grant, error) {
	if campaignID == "" {
		return nil, ErrInvalidCampaignID
	}
	if ownerID == uuid.Nil {
		return nil, ErrInvalidOwnerID
	}
	if points <= 0 {
		return nil, ErrInvalidPoints
	}
	if grantID == "" {
		return nil, ErrInvalidGrantID
	}

	pointsAsset, err := s.assets.GetActiveRequired(ctx, s.pointsAssetID)
	if err != nil {
		return nil, err
	}

	amount, err := money.MulStep(pointsAsset.Step(), points)
	if err != nil {
		return nil, fmt.Errorf("convert points to amount: %w", err)
	}

	grant := &Grant{
		ID:         grantID,
		CampaignID: campaignID,
		OwnerID:    ownerID,
		AssetID:    pointsAsset.ID,
		Points:     points,
		Amount:     amount,
		GrantedAt:  time.Now().UTC(),
	}

	err = s.ledger.InTx(ctx, func(ctx context.Context) error {
		poolAccount, err := s.ledger.EnsureAccount(ctx, ledger.SystemOwnerRewards, pointsAsset.ID)
		if err != nil {
			return err
		}
		userAccount, err := s.ledger.EnsureAccount(ctx, ownerID, pointsAsset.ID)
		if err != nil {
			return err
		}

		reference := grantID
		entry, err := s.ledger.PostEntry(ctx, EntryTypeGrant, &reference, map[string]interface{}{
			"campaign_id": campaignID,
			"points":      points,
		}, []ledger.LineInput{
			{AccountID: poolAccount.ID, AssetID: pointsAsset.ID, Amount: new(big.Int).Neg(amount)},
			{AccountID: userAccount.ID, AssetID: pointsAsset.ID, Amount: amount},
		})
		if err != nil {
			return err
		}
		grant.EntryID = entry.ID

		total, err := s.ledger.UpsertCounter(ctx, counterKey(campaignID, ownerID), points)
		if err != nil {
			return err
		}
		grant.CampaignTotal = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reward granted",
		"campaign_id", campaignID,
		"owner_id", ownerID,
		"grant_id", grantID,
		"points", points,
		"campaign_total", grant.CampaignTotal,
	)

	event := events.New(events.TypeRewardGranted, grantID, map[string]interface{}{
		"campaign_id":    campaignID,
		"owner_id":       ownerID.String(),
		"points":         points,
		"campaign_total": grant.CampaignTotal,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).Error("failed to publish reward event", "grant_id", grantID)
	}

	return grant, nil
}

// CampaignTotal returns the user's accumulated points in a campaign.
func (s *Service) CampaignTotal(ctx context.Context, campaignID string, ownerID uuid.UUID) (int64, error) {
	if campaignID == "" {
		return 0, ErrInvalidCampaignID
	}
	if ownerID == uuid.Nil {
		return 0, ErrInvalidOwnerID
	}
	return s.ledger.UpsertCounter(ctx, counterKey(campaignID, ownerID), 0)
}

func counterKey(campaignID string, ownerID uuid.UUID) string {
	return "rewards:" + campaignID + ":" + ownerID.String()
}
