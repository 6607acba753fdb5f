package rewards

import "errors"

var (
	ErrInvalidCampaignID = errors.New("campaign id is required")
	ErrInvalidOwnerID    = errors.New("invalid owner id")
	ErrInvalidPoints     = errors.New("points must be positive")
	ErrInvalidGrantID    = errors.New("grant id is required")
)
