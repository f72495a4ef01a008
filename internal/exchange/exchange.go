// Package exchange defines the canonical contract every exchange adapter
// satisfies. The engine holds an Exchange value and never a concrete adapter
// type; which implementation it gets is decided by configuration alone.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"coinbot/internal/config"
	"coinbot/internal/core"
	"coinbot/internal/exchange/itbit"
	"coinbot/internal/exchange/kraken"
)

// Exchange is the capability set the engine drives each polling cycle. Every
// network-touching operation is a single blocking round trip bounded by the
// adapter's configured timeout; failures carry a core.ExchangeError kind so
// the caller can decide between retry and abort without string matching.
type Exchange interface {
	// ImplName identifies the adapter implementation. No network call.
	ImplName() string

	// CreateOrder places a limit order and returns the exchange-assigned
	// order id.
	CreateOrder(ctx context.Context, req core.NewOrderRequest) (string, error)

	// CancelOrder cancels a resting order. It returns true exactly when the
	// exchange reported success; a received-and-understood rejection is
	// (false, nil), not an error. marketID is ignored by exchanges that
	// address orders by id alone.
	CancelOrder(ctx context.Context, orderID, marketID string) (bool, error)

	// OpenOrders returns our resting orders for the market, in the order the
	// exchange returned them.
	OpenOrders(ctx context.Context, marketID string) ([]core.OpenOrder, error)

	// MarketOrders returns the order book snapshot at whatever depth the
	// exchange provides; adapters never truncate.
	MarketOrders(ctx context.Context, marketID string) (core.MarketOrderBook, error)

	// LatestMarketPrice returns the last traded price.
	LatestMarketPrice(ctx context.Context, marketID string) (decimal.Decimal, error)

	// BalanceInfo returns available and, where the exchange reports them,
	// on-hold balances per currency.
	BalanceInfo(ctx context.Context) (core.BalanceInfo, error)

	// BuyFeePercentage and SellFeePercentage are static per-exchange
	// configuration lookups. No network call.
	BuyFeePercentage(marketID string) (decimal.Decimal, error)
	SellFeePercentage(marketID string) (decimal.Decimal, error)
}

// New builds the adapter named by cfg.Exchange. An unknown name is a
// configuration failure: the bot cannot come up half-wired.
func New(cfg config.Config) (Exchange, error) {
	switch cfg.Exchange {
	case "itbit":
		return itbit.New(cfg.ItBit)
	case "kraken":
		return kraken.New(cfg.Kraken)
	case "":
		return nil, core.NewConfigError("config missing exchange name", nil)
	default:
		return nil, core.NewConfigError("unknown exchange "+cfg.Exchange, nil)
	}
}
