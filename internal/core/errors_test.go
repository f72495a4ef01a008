package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestErrorKindsAreDistinguishable(t *testing.T) {
	transient := NewTransientError("connect timed out", errors.New("dial tcp: i/o timeout"))
	permanent := NewPermanentError("unexpected response shape", nil)
	config := NewConfigError("missing client_key", nil)

	require.True(t, IsTransient(transient))
	require.False(t, IsPermanent(transient))
	require.False(t, IsConfig(transient))

	require.True(t, IsPermanent(permanent))
	require.False(t, IsTransient(permanent))

	require.True(t, IsConfig(config))
	require.False(t, IsPermanent(config))
}

func TestErrorWrappingSurvivesFmtErrorf(t *testing.T) {
	cause := errors.New("read tcp: connection reset by peer")
	err := fmt.Errorf("polling XBTUSD: %w", NewTransientError("request failed", cause))

	require.True(t, IsTransient(err))
	exErr, ok := AsExchangeError(err)
	require.True(t, ok)
	require.Equal(t, ErrTransient, exErr.Kind)
	require.ErrorIs(t, err, cause)
}

func TestUnclassifiedErrorHasNoKind(t *testing.T) {
	err := errors.New("some library error")
	require.False(t, IsTransient(err))
	require.False(t, IsPermanent(err))
	require.False(t, IsConfig(err))
	_, ok := AsExchangeError(err)
	require.False(t, ok)
}

func TestNewOrderRequestValidate(t *testing.T) {
	valid := NewOrderRequest{
		MarketID: "XBTUSD",
		Type:     Buy,
		Quantity: decimal.RequireFromString("0.01"),
		Price:    decimal.RequireFromString("200.18"),
	}
	require.NoError(t, valid.Validate())

	noMarket := valid
	noMarket.MarketID = ""
	require.True(t, IsPermanent(noMarket.Validate()))

	badType := valid
	badType.Type = OrderType("HOLD")
	require.True(t, IsPermanent(badType.Validate()))

	zeroQty := valid
	zeroQty.Quantity = decimal.Zero
	require.True(t, IsPermanent(zeroQty.Validate()))

	negPrice := valid
	negPrice.Price = decimal.RequireFromString("-1")
	require.True(t, IsPermanent(negPrice.Validate()))
}
