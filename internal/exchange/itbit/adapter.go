// Package itbit implements the exchange adapter contract against the itBit
// REST API v1. All account-scoped endpoints live under a wallet; the wallet
// id is resolved from the configured user id on first use and cached for the
// adapter's lifetime.
package itbit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"coinbot/internal/config"
	"coinbot/internal/core"
	"coinbot/internal/money"
)

const (
	implName       = "itBit REST API v1"
	defaultBaseURL = "https://api.itbit.com/v1"

	// Documented itBit decimal granularity for outbound order fields.
	amountScale = 4
	priceScale  = 2
)

// Adapter is safe for concurrent use: settings are immutable after New and
// the wallet id cache is guarded by a mutex.
type Adapter struct {
	userID  string
	buyFee  decimal.Decimal
	sellFee decimal.Decimal
	api     requester

	mu       sync.Mutex
	walletID string
}

// New validates the settings and builds the adapter. Every required field is
// checked independently; a missing one fails construction with a config error
// naming it, before any network call is possible.
func New(cfg config.ItBitConfig) (*Adapter, error) {
	if cfg.UserID == "" {
		return nil, core.NewConfigError("itbit config missing user_id", nil)
	}
	if cfg.ClientKey == "" {
		return nil, core.NewConfigError("itbit config missing client_key", nil)
	}
	if cfg.ClientSecret == "" {
		return nil, core.NewConfigError("itbit config missing client_secret", nil)
	}
	if cfg.BuyFeePercent == nil {
		return nil, core.NewConfigError("itbit config missing buy_fee_percent", nil)
	}
	if cfg.SellFeePercent == nil {
		return nil, core.NewConfigError("itbit config missing sell_fee_percent", nil)
	}
	if cfg.TimeoutSec <= 0 {
		return nil, core.NewConfigError("itbit config missing timeout_sec", nil)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	hundred := decimal.NewFromInt(100)
	return &Adapter{
		userID:  cfg.UserID,
		buyFee:  cfg.BuyFeePercent.Div(hundred),
		sellFee: cfg.SellFeePercent.Div(hundred),
		api: newSignedTransport(baseURL, cfg.ClientKey, cfg.ClientSecret,
			time.Duration(cfg.TimeoutSec)*time.Second),
	}, nil
}

func (a *Adapter) ImplName() string { return implName }

func (a *Adapter) CreateOrder(ctx context.Context, req core.NewOrderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if len(req.MarketID) < 3 {
		return "", core.NewPermanentError("market id "+req.MarketID+" too short to derive currency", nil)
	}
	walletID, err := a.resolveWalletID(ctx)
	if err != nil {
		return "", err
	}

	params := map[string]string{
		"type":       "limit",
		"amount":     money.FormatAtScale(req.Quantity, amountScale),
		"price":      money.FormatAtScale(req.Price, priceScale),
		"instrument": req.MarketID,
		"currency":   req.MarketID[:3],
		"side":       strings.ToLower(string(req.Type)),
	}
	resp, err := a.api.SendAuthenticated(ctx, http.MethodPost, "wallets/"+walletID+"/orders", params)
	if err != nil {
		return "", err
	}
	if !resp.OK(http.StatusCreated) {
		return "", core.NewPermanentError(
			fmt.Sprintf("create order rejected: %s %s", resp.Status, strings.TrimSpace(string(resp.Body))), nil)
	}
	return decodeNewOrder(resp.Body)
}

// CancelOrder ignores marketID: itBit addresses orders by wallet and id.
func (a *Adapter) CancelOrder(ctx context.Context, orderID, marketID string) (bool, error) {
	if orderID == "" {
		return false, core.NewPermanentError("cancel requires an order id", nil)
	}
	walletID, err := a.resolveWalletID(ctx)
	if err != nil {
		return false, err
	}
	resp, err := a.api.SendAuthenticated(ctx, http.MethodDelete, "wallets/"+walletID+"/orders/"+orderID, nil)
	if err != nil {
		return false, err
	}
	if !resp.OK(http.StatusAccepted) {
		logrus.WithFields(logrus.Fields{
			"order_id": orderID,
			"status":   resp.StatusCode,
		}).Warn("itbit cancel order not accepted")
		return false, nil
	}
	return true, nil
}

func (a *Adapter) OpenOrders(ctx context.Context, marketID string) ([]core.OpenOrder, error) {
	walletID, err := a.resolveWalletID(ctx)
	if err != nil {
		return nil, err
	}
	params := map[string]string{"status": "open"}
	resp, err := a.api.SendAuthenticated(ctx, http.MethodGet, "wallets/"+walletID+"/orders", params)
	if err != nil {
		return nil, err
	}
	if !resp.OK(http.StatusOK) {
		return nil, core.NewPermanentError(
			fmt.Sprintf("open orders query failed: %s %s", resp.Status, strings.TrimSpace(string(resp.Body))), nil)
	}
	return decodeOpenOrders(resp.Body, marketID)
}

func (a *Adapter) MarketOrders(ctx context.Context, marketID string) (core.MarketOrderBook, error) {
	resp, err := a.api.SendPublic(ctx, "/markets/"+marketID+"/order_book")
	if err != nil {
		return core.MarketOrderBook{}, err
	}
	if !resp.OK(http.StatusOK) {
		return core.MarketOrderBook{}, core.NewPermanentError(
			fmt.Sprintf("order book query failed: %s %s", resp.Status, strings.TrimSpace(string(resp.Body))), nil)
	}
	return decodeOrderBook(resp.Body, marketID)
}

func (a *Adapter) LatestMarketPrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	resp, err := a.api.SendPublic(ctx, "/markets/"+marketID+"/ticker")
	if err != nil {
		return decimal.Zero, err
	}
	if !resp.OK(http.StatusOK) {
		return decimal.Zero, core.NewPermanentError(
			fmt.Sprintf("ticker query failed: %s %s", resp.Status, strings.TrimSpace(string(resp.Body))), nil)
	}
	return decodeTicker(resp.Body)
}

func (a *Adapter) BalanceInfo(ctx context.Context) (core.BalanceInfo, error) {
	wallet, err := a.fetchWallet(ctx)
	if err != nil {
		return core.BalanceInfo{}, err
	}
	info := core.NewBalanceInfo()
	for _, balance := range wallet.Balances {
		available, err := parseDecimal(balance.AvailableBalance, "availableBalance")
		if err != nil {
			return core.BalanceInfo{}, err
		}
		info.Available[balance.Currency] = available
	}
	// itBit does not report on-hold balances; the map stays empty so a
	// lookup yields "unknown", never a fabricated zero.
	return info, nil
}

func (a *Adapter) BuyFeePercentage(marketID string) (decimal.Decimal, error) {
	return a.buyFee, nil
}

func (a *Adapter) SellFeePercentage(marketID string) (decimal.Decimal, error) {
	return a.sellFee, nil
}

// resolveWalletID returns the cached wallet id, fetching it on first use.
// Concurrent first calls may race to fetch, but only one result is kept.
func (a *Adapter) resolveWalletID(ctx context.Context) (string, error) {
	a.mu.Lock()
	cached := a.walletID
	a.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	wallet, err := a.fetchWallet(ctx)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.walletID == "" {
		a.walletID = wallet.ID
	}
	return a.walletID, nil
}

// fetchWallet queries the wallets endpoint and refreshes the wallet id cache
// as a side effect, so balance queries and order operations share one lookup.
func (a *Adapter) fetchWallet(ctx context.Context) (walletResponse, error) {
	params := map[string]string{"userId": a.userID}
	resp, err := a.api.SendAuthenticated(ctx, http.MethodGet, "wallets", params)
	if err != nil {
		return walletResponse{}, err
	}
	if !resp.OK(http.StatusOK) {
		return walletResponse{}, core.NewPermanentError(
			fmt.Sprintf("wallets query failed: %s %s", resp.Status, strings.TrimSpace(string(resp.Body))), nil)
	}
	wallet, err := decodeWallets(resp.Body)
	if err != nil {
		return walletResponse{}, err
	}
	a.mu.Lock()
	if a.walletID == "" {
		a.walletID = wallet.ID
	}
	a.mu.Unlock()
	return wallet, nil
}
