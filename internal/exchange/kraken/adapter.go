// Package kraken implements the exchange adapter contract against the Kraken
// REST API v0. Kraken differs from the other adapters in two ways that the
// shared contract absorbs: every response is wrapped in an error/result
// envelope, and authenticated calls are form-encoded POSTs with the nonce in
// the body rather than a header.
package kraken

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coinbot/internal/config"
	"coinbot/internal/core"
	"coinbot/internal/exchange/transport"
	"coinbot/internal/money"
)

const (
	implName       = "Kraken REST API v0"
	defaultBaseURL = "https://api.kraken.com"

	// Kraken accepts volumes at up to 8 decimal places on every pair.
	volumeScale = 8
)

type Adapter struct {
	buyFee  decimal.Decimal
	sellFee decimal.Decimal
	api     requester
}

func New(cfg config.KrakenConfig) (*Adapter, error) {
	if cfg.Key == "" {
		return nil, core.NewConfigError("kraken config missing key", nil)
	}
	if cfg.Secret == "" {
		return nil, core.NewConfigError("kraken config missing secret", nil)
	}
	secret, err := base64.StdEncoding.DecodeString(cfg.Secret)
	if err != nil {
		return nil, core.NewConfigError("kraken config secret is not valid base64", err)
	}
	if cfg.BuyFeePercent == nil {
		return nil, core.NewConfigError("kraken config missing buy_fee_percent", nil)
	}
	if cfg.SellFeePercent == nil {
		return nil, core.NewConfigError("kraken config missing sell_fee_percent", nil)
	}
	if cfg.TimeoutSec <= 0 {
		return nil, core.NewConfigError("kraken config missing timeout_sec", nil)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	hundred := decimal.NewFromInt(100)
	return &Adapter{
		buyFee:  cfg.BuyFeePercent.Div(hundred),
		sellFee: cfg.SellFeePercent.Div(hundred),
		api: newSignedTransport(baseURL, cfg.Key, secret,
			time.Duration(cfg.TimeoutSec)*time.Second),
	}, nil
}

func (a *Adapter) ImplName() string { return implName }

func (a *Adapter) CreateOrder(ctx context.Context, req core.NewOrderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	params := map[string]string{
		"pair":      req.MarketID,
		"type":      strings.ToLower(string(req.Type)),
		"ordertype": "limit",
		"price":     req.Price.String(),
		"volume":    money.FormatAtScale(req.Quantity, volumeScale),
	}
	result, err := a.call(ctx, "AddOrder", params)
	if err != nil {
		return "", err
	}
	return decodeAddOrder(result)
}

// CancelOrder ignores marketID: Kraken addresses orders by transaction id.
func (a *Adapter) CancelOrder(ctx context.Context, orderID, marketID string) (bool, error) {
	if orderID == "" {
		return false, core.NewPermanentError("cancel requires an order id", nil)
	}
	result, err := a.call(ctx, "CancelOrder", map[string]string{"txid": orderID})
	if err != nil {
		return false, err
	}
	return decodeCancelOrder(result)
}

func (a *Adapter) OpenOrders(ctx context.Context, marketID string) ([]core.OpenOrder, error) {
	result, err := a.call(ctx, "OpenOrders", nil)
	if err != nil {
		return nil, err
	}
	return decodeOpenOrders(result, marketID)
}

func (a *Adapter) MarketOrders(ctx context.Context, marketID string) (core.MarketOrderBook, error) {
	result, err := a.callPublic(ctx, "Depth", map[string]string{"pair": marketID})
	if err != nil {
		return core.MarketOrderBook{}, err
	}
	return decodeOrderBook(result, marketID)
}

func (a *Adapter) LatestMarketPrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	result, err := a.callPublic(ctx, "Ticker", map[string]string{"pair": marketID})
	if err != nil {
		return decimal.Zero, err
	}
	return decodeTicker(result)
}

func (a *Adapter) BalanceInfo(ctx context.Context) (core.BalanceInfo, error) {
	result, err := a.call(ctx, "Balance", nil)
	if err != nil {
		return core.BalanceInfo{}, err
	}
	return decodeBalances(result)
}

func (a *Adapter) BuyFeePercentage(marketID string) (decimal.Decimal, error) {
	return a.buyFee, nil
}

func (a *Adapter) SellFeePercentage(marketID string) (decimal.Decimal, error) {
	return a.sellFee, nil
}

func (a *Adapter) call(ctx context.Context, apiMethod string, params map[string]string) ([]byte, error) {
	resp, err := a.api.SendPrivate(ctx, apiMethod, params)
	if err != nil {
		return nil, err
	}
	return a.unwrap(apiMethod, resp)
}

func (a *Adapter) callPublic(ctx context.Context, apiMethod string, params map[string]string) ([]byte, error) {
	resp, err := a.api.SendPublic(ctx, apiMethod, params)
	if err != nil {
		return nil, err
	}
	return a.unwrap(apiMethod, resp)
}

func (a *Adapter) unwrap(apiMethod string, resp transport.Response) ([]byte, error) {
	if resp.StatusCode/100 != 2 {
		return nil, core.NewPermanentError(
			fmt.Sprintf("%s failed: %s %s", apiMethod, resp.Status, strings.TrimSpace(string(resp.Body))), nil)
	}
	return decodeEnvelope(resp.Body)
}
