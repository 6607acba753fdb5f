package asset

import "errors"

var (
	ErrAssetNotFound   = errors.New("asset not found")
	ErrDuplicateAsset  = errors.New("asset already exists")
	ErrAssetInactive   = errors.New("asset is not active")
	ErrInvalidAssetID  = errors.New("invalid asset id")
	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidDecimals = errors.New("invalid decimals")
	ErrInvalidFeeBps   = errors.New("invalid fee basis points")
	ErrSubStepAmount   = errors.New("amount is not a multiple of the asset step")

	ErrBelowMinWithdrawal = errors.New("amount is below the minimum withdrawal")
)
