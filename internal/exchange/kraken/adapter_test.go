package kraken

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"coinbot/internal/config"
	"coinbot/internal/core"
	"coinbot/internal/exchange/transport"
)

type apiCall struct {
	method string
	params map[string]string
}

// fakeAPI records calls and plays back canned responses so adapter logic can
// be exercised without a server.
type fakeAPI struct {
	publicCalls  []apiCall
	privateCalls []apiCall

	public  func(apiMethod string, params map[string]string) (transport.Response, error)
	private func(apiMethod string, params map[string]string) (transport.Response, error)
}

func (f *fakeAPI) SendPublic(ctx context.Context, apiMethod string, params map[string]string) (transport.Response, error) {
	f.publicCalls = append(f.publicCalls, apiCall{method: apiMethod, params: params})
	return f.public(apiMethod, params)
}

func (f *fakeAPI) SendPrivate(ctx context.Context, apiMethod string, params map[string]string) (transport.Response, error) {
	f.privateCalls = append(f.privateCalls, apiCall{method: apiMethod, params: params})
	return f.private(apiMethod, params)
}

func okResponse(body string) (transport.Response, error) {
	return transport.Response{StatusCode: http.StatusOK, Status: "200 OK", Body: []byte(body)}, nil
}

func newTestAdapter(api *fakeAPI) *Adapter {
	hundred := decimal.NewFromInt(100)
	return &Adapter{
		buyFee:  decimal.RequireFromString("0.26").Div(hundred),
		sellFee: decimal.RequireFromString("0.26").Div(hundred),
		api:     api,
	}
}

const cannedTicker = `{
	"error": [],
	"result": {
		"XXBTZUSD": {
			"a": ["237.71000", "1", "1.000"],
			"b": ["237.58000", "1", "1.000"],
			"c": ["237.70000000", "0.10000000"],
			"o": "240.00000"
		}
	}
}`

const cannedDepth = `{
	"error": [],
	"result": {
		"XXBTZUSD": {
			"bids": [
				["236.84000", "6.74000000", 1443722400],
				["236.73000", "0.03000000", 1443722390]
			],
			"asks": [
				["236.90000", "1.25000000", 1443722410]
			]
		}
	}
}`

const cannedBalance = `{
	"error": [],
	"result": {
		"XXBT": "1.5000000000",
		"ZUSD": "1000.9900"
	}
}`

const cannedOpenOrders = `{
	"error": [],
	"result": {
		"open": {
			"OQCLML-BW3P3-BUCMWZ": {
				"status": "open",
				"opentm": 1443722466.847,
				"vol": "0.01500000",
				"vol_exec": "0.00500000",
				"descr": {
					"pair": "XBTUSD",
					"type": "sell",
					"ordertype": "limit",
					"price": "255.59"
				}
			},
			"OTHERP-AIR11-ORDER1": {
				"status": "open",
				"opentm": 1443722500.0,
				"vol": "2.00000000",
				"vol_exec": "0.00000000",
				"descr": {
					"pair": "ETHUSD",
					"type": "buy",
					"ordertype": "limit",
					"price": "0.75"
				}
			}
		}
	}
}`

const cannedAddOrder = `{
	"error": [],
	"result": {
		"descr": {"order": "buy 0.01000000 XBTUSD @ limit 236.00"},
		"txid": ["OUF4EM-FRGI2-MQMWZD"]
	}
}`

const cannedCancelled = `{"error": [], "result": {"count": 1}}`
const cannedNotCancelled = `{"error": [], "result": {"count": 0}}`

func TestCreateOrderSendsAddOrderParams(t *testing.T) {
	api := &fakeAPI{
		private: func(apiMethod string, params map[string]string) (transport.Response, error) {
			return okResponse(cannedAddOrder)
		},
	}
	adapter := newTestAdapter(api)

	orderID, err := adapter.CreateOrder(context.Background(), core.NewOrderRequest{
		MarketID: "XBTUSD",
		Type:     core.Buy,
		Quantity: decimal.RequireFromString("0.01"),
		Price:    decimal.RequireFromString("236.00"),
	})
	require.NoError(t, err)
	require.Equal(t, "OUF4EM-FRGI2-MQMWZD", orderID)

	require.Len(t, api.privateCalls, 1)
	call := api.privateCalls[0]
	require.Equal(t, "AddOrder", call.method)
	require.Equal(t, map[string]string{
		"pair":      "XBTUSD",
		"type":      "buy",
		"ordertype": "limit",
		"price":     "236",
		"volume":    "0.01",
	}, call.params)
}

func TestCreateOrderSellSide(t *testing.T) {
	api := &fakeAPI{
		private: func(apiMethod string, params map[string]string) (transport.Response, error) {
			return okResponse(cannedAddOrder)
		},
	}
	adapter := newTestAdapter(api)

	_, err := adapter.CreateOrder(context.Background(), core.NewOrderRequest{
		MarketID: "XBTUSD",
		Type:     core.Sell,
		Quantity: decimal.RequireFromString("0.01000000"),
		Price:    decimal.RequireFromString("250.18"),
	})
	require.NoError(t, err)
	require.Equal(t, "sell", api.privateCalls[0].params["type"])
	require.Equal(t, "0.01", api.privateCalls[0].params["volume"], "volume trims trailing zeros")
}

func TestCreateOrderExchangeRejectionIsPermanent(t *testing.T) {
	api := &fakeAPI{
		private: func(apiMethod string, params map[string]string) (transport.Response, error) {
			return okResponse(`{"error": ["EOrder:Insufficient funds"], "result": null}`)
		},
	}
	adapter := newTestAdapter(api)

	_, err := adapter.CreateOrder(context.Background(), core.NewOrderRequest{
		MarketID: "XBTUSD",
		Type:     core.Buy,
		Quantity: decimal.RequireFromString("0.01"),
		Price:    decimal.RequireFromString("236.00"),
	})
	require.True(t, core.IsPermanent(err))
	require.ErrorContains(t, err, "EOrder:Insufficient funds")
}

func TestCreateOrderTransportFailurePropagates(t *testing.T) {
	api := &fakeAPI{
		private: func(apiMethod string, params map[string]string) (transport.Response, error) {
			return transport.Response{}, core.NewTransientError("request to exchange failed", nil)
		},
	}
	adapter := newTestAdapter(api)

	_, err := adapter.CreateOrder(context.Background(), core.NewOrderRequest{
		MarketID: "XBTUSD",
		Type:     core.Buy,
		Quantity: decimal.RequireFromString("0.01"),
		Price:    decimal.RequireFromString("236.00"),
	})
	require.True(t, core.IsTransient(err))
}

func TestCancelOrder(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		api := &fakeAPI{
			private: func(apiMethod string, params map[string]string) (transport.Response, error) {
				return okResponse(cannedCancelled)
			},
		}
		adapter := newTestAdapter(api)

		cancelled, err := adapter.CancelOrder(context.Background(), "OQCLML-BW3P3-BUCMWZ", "XBTUSD")
		require.NoError(t, err)
		require.True(t, cancelled)
		require.Equal(t, "CancelOrder", api.privateCalls[0].method)
		require.Equal(t, map[string]string{"txid": "OQCLML-BW3P3-BUCMWZ"}, api.privateCalls[0].params)
	})

	t.Run("nothing cancelled", func(t *testing.T) {
		api := &fakeAPI{
			private: func(apiMethod string, params map[string]string) (transport.Response, error) {
				return okResponse(cannedNotCancelled)
			},
		}
		adapter := newTestAdapter(api)

		cancelled, err := adapter.CancelOrder(context.Background(), "OQCLML-BW3P3-BUCMWZ", "XBTUSD")
		require.NoError(t, err)
		require.False(t, cancelled)
	})

	t.Run("unknown order is a rejection", func(t *testing.T) {
		api := &fakeAPI{
			private: func(apiMethod string, params map[string]string) (transport.Response, error) {
				return okResponse(`{"error": ["EOrder:Unknown order"], "result": null}`)
			},
		}
		adapter := newTestAdapter(api)

		_, err := adapter.CancelOrder(context.Background(), "BOGUS", "XBTUSD")
		require.True(t, core.IsPermanent(err))
	})

	t.Run("missing order id", func(t *testing.T) {
		adapter := newTestAdapter(&fakeAPI{})
		_, err := adapter.CancelOrder(context.Background(), "", "XBTUSD")
		require.True(t, core.IsPermanent(err))
	})
}

func TestOpenOrders(t *testing.T) {
	api := &fakeAPI{
		private: func(apiMethod string, params map[string]string) (transport.Response, error) {
			return okResponse(cannedOpenOrders)
		},
	}
	adapter := newTestAdapter(api)

	orders, err := adapter.OpenOrders(context.Background(), "XBTUSD")
	require.NoError(t, err)
	require.Equal(t, "OpenOrders", api.privateCalls[0].method)
	require.Len(t, orders, 1, "orders on other pairs are filtered out")

	order := orders[0]
	require.Equal(t, "OQCLML-BW3P3-BUCMWZ", order.ID)
	require.Equal(t, "XBTUSD", order.MarketID)
	require.Equal(t, core.Sell, order.Type)
	require.True(t, decimal.RequireFromString("255.59").Equal(order.Price))
	require.True(t, decimal.RequireFromString("0.015").Equal(order.OriginalQuantity))
	require.True(t, decimal.RequireFromString("0.01").Equal(order.Quantity),
		"remaining quantity is vol minus vol_exec")
	require.True(t, decimal.RequireFromString("3.83385").Equal(order.Total),
		"total is recomputed from price and original quantity")
	require.Equal(t, int64(1443722466), order.CreatedAt.Unix())
}

func TestOpenOrdersKeepResponseOrder(t *testing.T) {
	order := func(price string) string {
		return `{
			"status": "open",
			"opentm": 1443722466.0,
			"vol": "1.00000000",
			"vol_exec": "0.00000000",
			"descr": {"pair": "XBTUSD", "type": "buy", "ordertype": "limit", "price": "` + price + `"}
		}`
	}
	// Transaction ids are deliberately not in sorted order so a map-based or
	// key-sorting decode cannot pass by accident.
	canned := `{"error": [], "result": {"open": {
		"OCHARL-33333-CCCCCC": ` + order("230.01") + `,
		"OALPHA-11111-AAAAAA": ` + order("230.02") + `,
		"OECHOO-55555-EEEEEE": ` + order("230.03") + `,
		"OBRAVO-22222-BBBBBB": ` + order("230.04") + `,
		"ODELTA-44444-DDDDDD": ` + order("230.05") + `
	}}}`
	api := &fakeAPI{
		private: func(apiMethod string, params map[string]string) (transport.Response, error) {
			return okResponse(canned)
		},
	}
	adapter := newTestAdapter(api)

	want := []string{
		"OCHARL-33333-CCCCCC",
		"OALPHA-11111-AAAAAA",
		"OECHOO-55555-EEEEEE",
		"OBRAVO-22222-BBBBBB",
		"ODELTA-44444-DDDDDD",
	}
	for i := 0; i < 50; i++ {
		orders, err := adapter.OpenOrders(context.Background(), "XBTUSD")
		require.NoError(t, err)
		ids := make([]string, len(orders))
		for j, ord := range orders {
			ids[j] = ord.ID
		}
		require.Equal(t, want, ids, "identical responses must decode to the same sequence, in response order")
	}
}

func TestMarketOrders(t *testing.T) {
	api := &fakeAPI{
		public: func(apiMethod string, params map[string]string) (transport.Response, error) {
			return okResponse(cannedDepth)
		},
	}
	adapter := newTestAdapter(api)

	book, err := adapter.MarketOrders(context.Background(), "XBTUSD")
	require.NoError(t, err)
	require.Equal(t, "Depth", api.publicCalls[0].method)
	require.Equal(t, map[string]string{"pair": "XBTUSD"}, api.publicCalls[0].params)

	require.Equal(t, "XBTUSD", book.MarketID)
	require.Len(t, book.BuyOrders, 2)
	require.Len(t, book.SellOrders, 1)

	top := book.BuyOrders[0]
	require.Equal(t, core.Buy, top.Type)
	require.True(t, decimal.RequireFromString("236.84").Equal(top.Price))
	require.True(t, decimal.RequireFromString("6.74").Equal(top.Quantity))
	require.True(t, decimal.RequireFromString("1596.2216").Equal(top.Total))

	small := book.BuyOrders[1]
	require.True(t, decimal.RequireFromString("7.1019").Equal(small.Total))

	ask := book.SellOrders[0]
	require.Equal(t, core.Sell, ask.Type)
	require.True(t, decimal.RequireFromString("236.90").Equal(ask.Price))
}

func TestMarketOrdersMalformedLevelIsPermanent(t *testing.T) {
	api := &fakeAPI{
		public: func(apiMethod string, params map[string]string) (transport.Response, error) {
			return okResponse(`{"error": [], "result": {"XXBTZUSD": {"bids": [["236.84000"]], "asks": []}}}`)
		},
	}
	adapter := newTestAdapter(api)

	_, err := adapter.MarketOrders(context.Background(), "XBTUSD")
	require.True(t, core.IsPermanent(err))
}

func TestLatestMarketPrice(t *testing.T) {
	api := &fakeAPI{
		public: func(apiMethod string, params map[string]string) (transport.Response, error) {
			return okResponse(cannedTicker)
		},
	}
	adapter := newTestAdapter(api)

	price, err := adapter.LatestMarketPrice(context.Background(), "XBTUSD")
	require.NoError(t, err)
	require.Equal(t, "Ticker", api.publicCalls[0].method)
	require.True(t, decimal.RequireFromString("237.70000000").Equal(price))
}

func TestLatestMarketPriceGarbledResponseIsPermanent(t *testing.T) {
	api := &fakeAPI{
		public: func(apiMethod string, params map[string]string) (transport.Response, error) {
			return okResponse(`not json at all`)
		},
	}
	adapter := newTestAdapter(api)

	_, err := adapter.LatestMarketPrice(context.Background(), "XBTUSD")
	require.True(t, core.IsPermanent(err))
}

func TestBalanceInfo(t *testing.T) {
	api := &fakeAPI{
		private: func(apiMethod string, params map[string]string) (transport.Response, error) {
			return okResponse(cannedBalance)
		},
	}
	adapter := newTestAdapter(api)

	info, err := adapter.BalanceInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Balance", api.privateCalls[0].method)

	require.True(t, decimal.RequireFromString("1.5").Equal(info.Available["XXBT"]))
	require.True(t, decimal.RequireFromString("1000.99").Equal(info.Available["ZUSD"]))

	// Balance reports totals only. On-hold amounts are unknown, so lookups
	// miss rather than answer zero.
	require.NotNil(t, info.OnHold)
	_, held := info.OnHold["XXBT"]
	require.False(t, held)
}

func TestFeesAndImplNameNeedNoNetwork(t *testing.T) {
	adapter := newTestAdapter(&fakeAPI{})

	buyFee, err := adapter.BuyFeePercentage("XBTUSD")
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("0.0026").Equal(buyFee))

	sellFee, err := adapter.SellFeePercentage("XBTUSD")
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("0.0026").Equal(sellFee))

	require.Equal(t, "Kraken REST API v0", adapter.ImplName())
}

func validKrakenConfig() config.KrakenConfig {
	fee := config.Decimal{Decimal: decimal.RequireFromString("0.26")}
	return config.KrakenConfig{
		Key:            "api-key",
		Secret:         base64.StdEncoding.EncodeToString([]byte("api-secret")),
		BuyFeePercent:  &fee,
		SellFeePercent: &fee,
		TimeoutSec:     30,
	}
}

func TestNewValidatesEachField(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.KrakenConfig)
		wantMsg string
	}{
		{"missing key", func(c *config.KrakenConfig) { c.Key = "" }, "key"},
		{"missing secret", func(c *config.KrakenConfig) { c.Secret = "" }, "secret"},
		{"secret not base64", func(c *config.KrakenConfig) { c.Secret = "%%%not-base64%%%" }, "base64"},
		{"missing buy fee", func(c *config.KrakenConfig) { c.BuyFeePercent = nil }, "buy_fee_percent"},
		{"missing sell fee", func(c *config.KrakenConfig) { c.SellFeePercent = nil }, "sell_fee_percent"},
		{"missing timeout", func(c *config.KrakenConfig) { c.TimeoutSec = 0 }, "timeout_sec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validKrakenConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.True(t, core.IsConfig(err))
			require.ErrorContains(t, err, tt.wantMsg)
		})
	}
}

func TestNewAcceptsValidConfig(t *testing.T) {
	adapter, err := New(validKrakenConfig())
	require.NoError(t, err)
	require.Equal(t, "Kraken REST API v0", adapter.ImplName())

	fee, err := adapter.BuyFeePercentage("XBTUSD")
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("0.0026").Equal(fee), "fee percent is converted to a fraction")
}
