package itbit

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coinbot/internal/core"
	"coinbot/internal/money"
)

// Wire shapes per the itBit REST API v1. Decoding is strict: an unexpected
// shape is a permanent failure, never a silently defaulted value.

type newOrderResponse struct {
	ID string `json:"id"`
}

type yourOrderResponse struct {
	ID           string `json:"id"`
	WalletID     string `json:"walletId"`
	Side         string `json:"side"`
	Instrument   string `json:"instrument"`
	Type         string `json:"type"`
	Currency     string `json:"currency"`
	Amount       string `json:"amount"`
	AmountFilled string `json:"amountFilled"`
	Price        string `json:"price"`
	CreatedTime  string `json:"createdTime"`
	Status       string `json:"status"`
}

type orderBookResponse struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

type tickerResponse struct {
	Pair      string `json:"pair"`
	LastPrice string `json:"lastPrice"`
}

type walletResponse struct {
	ID       string          `json:"id"`
	UserID   string          `json:"userId"`
	Name     string          `json:"name"`
	Balances []walletBalance `json:"balances"`
}

type walletBalance struct {
	Currency         string `json:"currency"`
	AvailableBalance string `json:"availableBalance"`
	TotalBalance     string `json:"totalBalance"`
}

func decodeNewOrder(body []byte) (string, error) {
	var resp newOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", core.NewPermanentError("unexpected new-order response shape", err)
	}
	if resp.ID == "" {
		return "", core.NewPermanentError("new-order response missing order id", nil)
	}
	return resp.ID, nil
}

func decodeOpenOrders(body []byte, marketID string) ([]core.OpenOrder, error) {
	var resp []yourOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, core.NewPermanentError("unexpected open-orders response shape", err)
	}
	orders := make([]core.OpenOrder, 0, len(resp))
	for _, ord := range resp {
		orderType, err := sideToOrderType(ord.Side)
		if err != nil {
			return nil, err
		}
		price, err := parseDecimal(ord.Price, "order price")
		if err != nil {
			return nil, err
		}
		amount, err := parseDecimal(ord.Amount, "order amount")
		if err != nil {
			return nil, err
		}
		filled, err := parseDecimal(ord.AmountFilled, "order amountFilled")
		if err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339Nano, ord.CreatedTime)
		if err != nil {
			return nil, core.NewPermanentError("unparseable order createdTime "+ord.CreatedTime, err)
		}
		orders = append(orders, core.OpenOrder{
			ID:               ord.ID,
			MarketID:         marketID,
			Type:             orderType,
			CreatedAt:        createdAt,
			Price:            price,
			Quantity:         amount.Sub(filled),
			OriginalQuantity: amount,
			// The exchange's own total, if ever reported, is ignored.
			Total: money.Total(price, amount),
		})
	}
	return orders, nil
}

func decodeOrderBook(body []byte, marketID string) (core.MarketOrderBook, error) {
	var resp orderBookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.MarketOrderBook{}, core.NewPermanentError("unexpected order-book response shape", err)
	}
	buys, err := decodeBookLevels(resp.Bids, core.Buy)
	if err != nil {
		return core.MarketOrderBook{}, err
	}
	sells, err := decodeBookLevels(resp.Asks, core.Sell)
	if err != nil {
		return core.MarketOrderBook{}, err
	}
	return core.MarketOrderBook{
		MarketID:   marketID,
		BuyOrders:  buys,
		SellOrders: sells,
	}, nil
}

func decodeBookLevels(levels [][]string, orderType core.OrderType) ([]core.MarketOrder, error) {
	orders := make([]core.MarketOrder, 0, len(levels))
	for _, level := range levels {
		if len(level) != 2 {
			return nil, core.NewPermanentError("order-book level is not a [price, quantity] pair", nil)
		}
		price, err := parseDecimal(level[0], "book price")
		if err != nil {
			return nil, err
		}
		quantity, err := parseDecimal(level[1], "book quantity")
		if err != nil {
			return nil, err
		}
		orders = append(orders, core.MarketOrder{
			Type:     orderType,
			Price:    price,
			Quantity: quantity,
			Total:    money.Total(price, quantity),
		})
	}
	return orders, nil
}

func decodeTicker(body []byte) (decimal.Decimal, error) {
	var resp tickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, core.NewPermanentError("unexpected ticker response shape", err)
	}
	return parseDecimal(resp.LastPrice, "ticker lastPrice")
}

// decodeWallets returns the trading wallet: the account is assumed to use a
// single wallet on the exchange, so the first one wins.
func decodeWallets(body []byte) (walletResponse, error) {
	var resp []walletResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return walletResponse{}, core.NewPermanentError("unexpected wallets response shape", err)
	}
	if len(resp) == 0 {
		return walletResponse{}, core.NewPermanentError("wallets response contains no wallets", nil)
	}
	if resp[0].ID == "" {
		return walletResponse{}, core.NewPermanentError("wallet response missing wallet id", nil)
	}
	return resp[0], nil
}

func sideToOrderType(side string) (core.OrderType, error) {
	switch strings.ToLower(side) {
	case "buy":
		return core.Buy, nil
	case "sell":
		return core.Sell, nil
	}
	return "", core.NewPermanentError("unrecognised order side "+side, nil)
}

func parseDecimal(value, field string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, core.NewPermanentError("response missing "+field, nil)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, core.NewPermanentError("unparseable "+field+" "+value, err)
	}
	return d, nil
}
