package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"coinbot/internal/config"
	"coinbot/internal/core"
	"coinbot/internal/exchange"
)

var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "coinbot",
		Usage:   "exchange adapter toolbox: query markets and manage orders over one canonical contract",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the YAML config file",
			},
			&cli.StringFlag{
				Name:    "exchange",
				Aliases: []string{"e"},
				Usage:   "override the exchange named in the config",
			},
			&cli.StringFlag{
				Name:    "market",
				Aliases: []string{"m"},
				Value:   "XBTUSD",
				Usage:   "market id to operate on",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "ticker",
				Usage:  "print the latest traded price",
				Action: cmdTicker,
			},
			{
				Name:   "orderbook",
				Usage:  "print the order book snapshot",
				Action: cmdOrderBook,
			},
			{
				Name:   "orders",
				Usage:  "list our open orders on the market",
				Action: cmdOpenOrders,
			},
			{
				Name:   "balances",
				Usage:  "print available and on-hold balances",
				Action: cmdBalances,
			},
			{
				Name:   "fees",
				Usage:  "print the configured buy and sell fees",
				Action: cmdFees,
			},
			{
				Name:  "buy",
				Usage: "place a limit buy order",
				Flags: orderFlags(),
				Action: func(c *cli.Context) error {
					return cmdPlaceOrder(c, core.Buy)
				},
			},
			{
				Name:  "sell",
				Usage: "place a limit sell order",
				Flags: orderFlags(),
				Action: func(c *cli.Context) error {
					return cmdPlaceOrder(c, core.Sell)
				},
			},
			{
				Name:  "cancel",
				Usage: "cancel a resting order by id",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "exchange-assigned order id",
						Required: true,
					},
				},
				Action: cmdCancel,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if core.IsTransient(err) {
			log.WithError(err).Error("exchange unreachable, safe to retry")
		} else {
			log.WithError(err).Error("command failed")
		}
		os.Exit(1)
	}
}

func orderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "quantity",
			Aliases:  []string{"q"},
			Usage:    "amount of base currency to trade",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "price",
			Aliases:  []string{"p"},
			Usage:    "limit price in counter currency",
			Required: true,
		},
	}
}

// buildExchange loads the config and constructs the adapter it names. Every
// command goes through here so a broken config fails before any network call.
func buildExchange(c *cli.Context) (exchange.Exchange, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if name := c.String("exchange"); name != "" {
		cfg.Exchange = strings.ToLower(name)
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	log.SetLevel(level)

	ex, err := exchange.New(cfg)
	if err != nil {
		return nil, err
	}
	log.WithField("impl", ex.ImplName()).Debug("adapter ready")
	return ex, nil
}

func cmdTicker(c *cli.Context) error {
	ex, err := buildExchange(c)
	if err != nil {
		return err
	}
	market := c.String("market")
	price, err := ex.LatestMarketPrice(context.Background(), market)
	if err != nil {
		return err
	}
	fmt.Printf("%s last price: %s\n", market, price)
	return nil
}

func cmdOrderBook(c *cli.Context) error {
	ex, err := buildExchange(c)
	if err != nil {
		return err
	}
	market := c.String("market")
	book, err := ex.MarketOrders(context.Background(), market)
	if err != nil {
		return err
	}
	fmt.Printf("%s order book: %d bids, %d asks\n", book.MarketID, len(book.BuyOrders), len(book.SellOrders))
	if len(book.SellOrders) > 0 {
		best := book.SellOrders[0]
		fmt.Printf("best ask: %s x %s (total %s)\n", best.Price, best.Quantity, best.Total)
	}
	if len(book.BuyOrders) > 0 {
		best := book.BuyOrders[0]
		fmt.Printf("best bid: %s x %s (total %s)\n", best.Price, best.Quantity, best.Total)
	}
	return nil
}

func cmdOpenOrders(c *cli.Context) error {
	ex, err := buildExchange(c)
	if err != nil {
		return err
	}
	market := c.String("market")
	orders, err := ex.OpenOrders(context.Background(), market)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Printf("no open orders on %s\n", market)
		return nil
	}
	for _, order := range orders {
		fmt.Printf("%s %s %s remaining of %s @ %s (total %s, created %s)\n",
			order.ID, order.Type, order.Quantity, order.OriginalQuantity,
			order.Price, order.Total, order.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}

func cmdBalances(c *cli.Context) error {
	ex, err := buildExchange(c)
	if err != nil {
		return err
	}
	info, err := ex.BalanceInfo(context.Background())
	if err != nil {
		return err
	}
	for currency, amount := range info.Available {
		fmt.Printf("%s available: %s\n", currency, amount)
	}
	for currency, amount := range info.OnHold {
		fmt.Printf("%s on hold: %s\n", currency, amount)
	}
	return nil
}

func cmdFees(c *cli.Context) error {
	ex, err := buildExchange(c)
	if err != nil {
		return err
	}
	market := c.String("market")
	buyFee, err := ex.BuyFeePercentage(market)
	if err != nil {
		return err
	}
	sellFee, err := ex.SellFeePercentage(market)
	if err != nil {
		return err
	}
	fmt.Printf("%s buy fee: %s, sell fee: %s\n", market, buyFee, sellFee)
	return nil
}

func cmdPlaceOrder(c *cli.Context, orderType core.OrderType) error {
	ex, err := buildExchange(c)
	if err != nil {
		return err
	}
	quantity, err := decimal.NewFromString(c.String("quantity"))
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", c.String("quantity"), err)
	}
	price, err := decimal.NewFromString(c.String("price"))
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", c.String("price"), err)
	}
	market := c.String("market")

	orderID, err := ex.CreateOrder(context.Background(), core.NewOrderRequest{
		MarketID: market,
		Type:     orderType,
		Quantity: quantity,
		Price:    price,
	})
	if err != nil {
		return err
	}
	fmt.Printf("order placed: %s\n", orderID)
	return nil
}

func cmdCancel(c *cli.Context) error {
	ex, err := buildExchange(c)
	if err != nil {
		return err
	}
	cancelled, err := ex.CancelOrder(context.Background(), c.String("id"), c.String("market"))
	if err != nil {
		return err
	}
	if !cancelled {
		fmt.Println("exchange declined the cancel, order may already be filled")
		return nil
	}
	fmt.Println("order cancelled")
	return nil
}
