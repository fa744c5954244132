package commands

import (
	"context"
	"math/big"

	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
)

// resolvePrice returns the unit price for an asset at RateScale precision.
// Assets without an external source use their static price directly. An
// external read is treated as invalid when the call fails, the value is
// non-positive, the quote is stale, or the value exceeds the sane absolute
// bound; every invalid read degrades silently to the static price so a
// misbehaving source can never block deposits or distributions. The second
// return reports whether the fallback was taken.
func (uc UseCase) resolvePrice(ctx context.Context, asset entities.AssetConfig) (*big.Int, bool) {
	if asset.PriceSourceID == "" || uc.Prices == nil {
		return new(big.Int).Set(asset.StaticPrice), false
	}

	quote, err := uc.Prices.Quote(ctx, asset.PriceSourceID)
	if err != nil {
		uc.logDegradedPrice(asset, "source unreachable", err)
		return new(big.Int).Set(asset.StaticPrice), true
	}
	switch {
	case !quote.Valid:
		uc.logDegradedPrice(asset, "source reported invalid", nil)
	case quote.Value == nil || quote.Value.Sign() <= 0:
		uc.logDegradedPrice(asset, "non-positive value", nil)
	case uc.Params.PriceMaxAge > 0 && uc.now().Sub(quote.UpdatedAt) > uc.Params.PriceMaxAge:
		uc.logDegradedPrice(asset, "stale quote", nil)
	case uc.Params.PriceMaxValue != nil && quote.Value.Cmp(uc.Params.PriceMaxValue) > 0:
		uc.logDegradedPrice(asset, "value out of bound", nil)
	default:
		return new(big.Int).Set(quote.Value), false
	}
	return new(big.Int).Set(asset.StaticPrice), true
}

func (uc UseCase) logDegradedPrice(asset entities.AssetConfig, reason string, err error) {
	args := []any{
		"event", "engine_price_degraded_fallback",
		"module", "recovery-core/distribution-engine",
		"layer", "application",
		"vault_id", uc.Config.VaultID,
		"asset_id", asset.AssetID,
		"price_source_id", asset.PriceSourceID,
		"reason", reason,
	}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	uc.logger().Warn("price source degraded to static fallback", args...)
}
