package kraken

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coinbot/internal/core"
	"coinbot/internal/money"
)

// Every Kraken response wraps its payload in the same envelope; a non-empty
// error array means the exchange answered and rejected the call, which is
// permanent as far as retrying unmodified goes.
type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

func decodeEnvelope(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, core.NewPermanentError("unexpected response shape", err)
	}
	if len(env.Error) > 0 {
		return nil, core.NewPermanentError("exchange rejected request: "+strings.Join(env.Error, "; "), nil)
	}
	if len(env.Result) == 0 {
		return nil, core.NewPermanentError("response missing result", nil)
	}
	return env.Result, nil
}

type tickerResult struct {
	Close []string `json:"c"` // [price, lot volume] of the last trade
}

func decodeTicker(result json.RawMessage) (decimal.Decimal, error) {
	var byPair map[string]tickerResult
	if err := json.Unmarshal(result, &byPair); err != nil {
		return decimal.Zero, core.NewPermanentError("unexpected ticker result shape", err)
	}
	for _, ticker := range byPair {
		if len(ticker.Close) == 0 {
			return decimal.Zero, core.NewPermanentError("ticker result missing last trade", nil)
		}
		return parseDecimal(ticker.Close[0], "last trade price")
	}
	return decimal.Zero, core.NewPermanentError("ticker result contains no pair", nil)
}

type depthResult struct {
	Bids [][]json.RawMessage `json:"bids"`
	Asks [][]json.RawMessage `json:"asks"`
}

func decodeOrderBook(result json.RawMessage, marketID string) (core.MarketOrderBook, error) {
	var byPair map[string]depthResult
	if err := json.Unmarshal(result, &byPair); err != nil {
		return core.MarketOrderBook{}, core.NewPermanentError("unexpected depth result shape", err)
	}
	for _, depth := range byPair {
		buys, err := decodeBookLevels(depth.Bids, core.Buy)
		if err != nil {
			return core.MarketOrderBook{}, err
		}
		sells, err := decodeBookLevels(depth.Asks, core.Sell)
		if err != nil {
			return core.MarketOrderBook{}, err
		}
		return core.MarketOrderBook{MarketID: marketID, BuyOrders: buys, SellOrders: sells}, nil
	}
	return core.MarketOrderBook{}, core.NewPermanentError("depth result contains no pair", nil)
}

// Kraken book levels are [price, volume, timestamp] triples with string
// prices and volumes.
func decodeBookLevels(levels [][]json.RawMessage, orderType core.OrderType) ([]core.MarketOrder, error) {
	orders := make([]core.MarketOrder, 0, len(levels))
	for _, level := range levels {
		if len(level) < 2 {
			return nil, core.NewPermanentError("depth level is not a [price, volume, ...] entry", nil)
		}
		var priceStr, volumeStr string
		if err := json.Unmarshal(level[0], &priceStr); err != nil {
			return nil, core.NewPermanentError("unexpected depth level price", err)
		}
		if err := json.Unmarshal(level[1], &volumeStr); err != nil {
			return nil, core.NewPermanentError("unexpected depth level volume", err)
		}
		price, err := parseDecimal(priceStr, "depth price")
		if err != nil {
			return nil, err
		}
		volume, err := parseDecimal(volumeStr, "depth volume")
		if err != nil {
			return nil, err
		}
		orders = append(orders, core.MarketOrder{
			Type:     orderType,
			Price:    price,
			Quantity: volume,
			Total:    money.Total(price, volume),
		})
	}
	return orders, nil
}

func decodeBalances(result json.RawMessage) (core.BalanceInfo, error) {
	var byCurrency map[string]string
	if err := json.Unmarshal(result, &byCurrency); err != nil {
		return core.BalanceInfo{}, core.NewPermanentError("unexpected balance result shape", err)
	}
	info := core.NewBalanceInfo()
	for currency, amount := range byCurrency {
		value, err := parseDecimal(amount, "balance for "+currency)
		if err != nil {
			return core.BalanceInfo{}, err
		}
		info.Available[currency] = value
	}
	// Kraken's Balance call reports totals only, so on-hold stays empty:
	// absent means unknown, not zero.
	return info, nil
}

type openOrder struct {
	Descr       openOrderDescr `json:"descr"`
	Volume      string         `json:"vol"`
	VolumeExec  string         `json:"vol_exec"`
	OpenSeconds float64        `json:"opentm"`
	Status      string         `json:"status"`
}

type openOrderDescr struct {
	Pair      string `json:"pair"`
	Type      string `json:"type"`
	OrderType string `json:"ordertype"`
	Price     string `json:"price"`
}

// decodeOpenOrders keeps only orders on marketID: the OpenOrders call answers
// across all pairs and the contract is per market. The open object is walked
// token by token so the returned sequence keeps the response's key order; a
// map decode would iterate randomly.
func decodeOpenOrders(result json.RawMessage, marketID string) ([]core.OpenOrder, error) {
	var parsed struct {
		Open json.RawMessage `json:"open"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, core.NewPermanentError("unexpected open-orders result shape", err)
	}
	if len(parsed.Open) == 0 {
		return []core.OpenOrder{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(parsed.Open))
	tok, err := dec.Token()
	if err != nil {
		return nil, core.NewPermanentError("unexpected open-orders result shape", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, core.NewPermanentError("open-orders result is not an object", nil)
	}

	orders := make([]core.OpenOrder, 0, 8)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, core.NewPermanentError("unexpected open-orders result shape", err)
		}
		txid, ok := keyTok.(string)
		if !ok {
			return nil, core.NewPermanentError("open-orders result has a non-string transaction id", nil)
		}
		var ord openOrder
		if err := dec.Decode(&ord); err != nil {
			return nil, core.NewPermanentError("unexpected open-order entry shape", err)
		}
		if !strings.EqualFold(ord.Descr.Pair, marketID) {
			continue
		}
		orderType, err := sideToOrderType(ord.Descr.Type)
		if err != nil {
			return nil, err
		}
		price, err := parseDecimal(ord.Descr.Price, "order price")
		if err != nil {
			return nil, err
		}
		volume, err := parseDecimal(ord.Volume, "order volume")
		if err != nil {
			return nil, err
		}
		executed, err := parseDecimal(ord.VolumeExec, "order executed volume")
		if err != nil {
			return nil, err
		}
		seconds := int64(ord.OpenSeconds)
		nanos := int64((ord.OpenSeconds - float64(seconds)) * float64(time.Second))
		orders = append(orders, core.OpenOrder{
			ID:               txid,
			MarketID:         marketID,
			Type:             orderType,
			CreatedAt:        time.Unix(seconds, nanos).UTC(),
			Price:            price,
			Quantity:         volume.Sub(executed),
			OriginalQuantity: volume,
			Total:            money.Total(price, volume),
		})
	}
	return orders, nil
}

type addOrderResult struct {
	TxIDs []string `json:"txid"`
}

func decodeAddOrder(result json.RawMessage) (string, error) {
	var parsed addOrderResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return "", core.NewPermanentError("unexpected add-order result shape", err)
	}
	if len(parsed.TxIDs) == 0 {
		return "", core.NewPermanentError("add-order result missing transaction id", nil)
	}
	return parsed.TxIDs[0], nil
}

type cancelOrderResult struct {
	Count int `json:"count"`
}

func decodeCancelOrder(result json.RawMessage) (bool, error) {
	var parsed cancelOrderResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return false, core.NewPermanentError("unexpected cancel-order result shape", err)
	}
	return parsed.Count > 0, nil
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
