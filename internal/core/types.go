package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType is the side of an order: buying or selling the base currency.
type OrderType string

const (
	Buy  OrderType = "BUY"
	Sell OrderType = "SELL"
)

// NewOrderRequest is the intent to place a limit order on a market.
// Market ids are exchange-defined and treated as opaque strings.
type NewOrderRequest struct {
	MarketID string
	Type     OrderType
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Validate rejects requests an exchange would reject anyway, before any
// network call is made.
func (r NewOrderRequest) Validate() error {
	if r.MarketID == "" {
		return NewPermanentError("order request missing market id", nil)
	}
	if r.Type != Buy && r.Type != Sell {
		return NewPermanentError("order request has invalid order type "+string(r.Type), nil)
	}
	if r.Quantity.Cmp(decimal.Zero) <= 0 {
		return NewPermanentError("order quantity must be greater than zero", nil)
	}
	if r.Price.Cmp(decimal.Zero) <= 0 {
		return NewPermanentError("order price must be greater than zero", nil)
	}
	return nil
}

// OpenOrder is a snapshot of one of our resting orders on the exchange.
// Total is always recomputed locally as Price * OriginalQuantity; the
// exchange's own arithmetic is never trusted.
type OpenOrder struct {
	ID               string
	MarketID         string
	Type             OrderType
	CreatedAt        time.Time
	Price            decimal.Decimal
	Quantity         decimal.Decimal // remaining, unfilled quantity
	OriginalQuantity decimal.Decimal
	Total            decimal.Decimal
}

// MarketOrder is one price level in an order book. Total = Price * Quantity,
// recomputed locally.
type MarketOrder struct {
	Type     OrderType
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Total    decimal.Decimal
}

// MarketOrderBook is a depth snapshot for one market. BuyOrders and
// SellOrders keep the exchange's response order: best price first.
type MarketOrderBook struct {
	MarketID   string
	BuyOrders  []MarketOrder
	SellOrders []MarketOrder
}

// BalanceInfo holds per-currency account balances. OnHold stays empty, not
// zero-filled, when an exchange does not report held funds: absent means
// unknown, not zero.
type BalanceInfo struct {
	Available map[string]decimal.Decimal
	OnHold    map[string]decimal.Decimal
}

// NewBalanceInfo returns a BalanceInfo with both maps allocated.
func NewBalanceInfo() BalanceInfo {
	return BalanceInfo{
		Available: make(map[string]decimal.Decimal),
		OnHold:    make(map[string]decimal.Decimal),
	}
}
