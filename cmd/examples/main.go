package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/veiloq/bitmex-connector/pkg/exchanges/bitmex"
	"github.com/veiloq/bitmex-connector/pkg/exchanges/interfaces"
	"github.com/veiloq/bitmex-connector/pkg/logging"
)

func main() {
	// Load credentials from .env when present; real environment wins.
	_ = godotenv.Load()

	// Create logger
	logger := logging.NewZapLogger(
		logging.WithDevelopmentMode(),
		logging.WithLogLevel(logging.DEBUG),
	)

	// Create exchange options
	options := &interfaces.ExchangeOptions{
		// API credentials (optional for public endpoints)
		APIKey:    os.Getenv("BITMEX_API_KEY"),
		APISecret: os.Getenv("BITMEX_API_SECRET"),

		// Connection settings
		HTTPTimeout: 15 * time.Second,

		// Client-side rate limiting floor
		MaxRequestsPerSecond: 10,
	}

	// Create BitMEX connector
	connector := bitmex.NewConnector(options, logger)
	defer connector.Close()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fetch the market catalogue
	logger.Info("fetching active markets")
	markets, err := connector.Markets(ctx)
	if err != nil {
		logger.Error("failed to fetch markets", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("market catalogue loaded", logging.Int("markets", len(markets)))

	// Fetch recent public trades
	logger.Info("fetching recent trades")
	trades, err := connector.TradesSince(ctx, "XBTUSD", time.Now().Add(-5*time.Minute))
	if err != nil {
		logger.Error("failed to fetch trades", logging.Error(err))
		os.Exit(1)
	}
	for _, trade := range trades {
		logger.Info("public trade",
			logging.String("symbol", trade.Symbol),
			logging.String("side", string(trade.Side)),
			logging.Float64("price", trade.Price),
			logging.Float64("size", trade.Size),
		)
	}

	// Start the live order-book mirror
	logger.Info("starting order book stream")
	stream, err := connector.StartBookStream(ctx, "XBTUSD")
	if err != nil {
		logger.Error("failed to start book stream", logging.Error(err))
		os.Exit(1)
	}

	// Report stream conditions
	go func() {
		for event := range stream.Events() {
			if event.Severity == interfaces.Fatal {
				logger.Error("book stream lost", logging.Error(event.Err))
				return
			}
			logger.Warn("book stream advisory", logging.Error(event.Err))
		}
	}()

	// Periodically show the top of the book and the request quota
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			book, err := connector.GetBook(ctx, "XBTUSD")
			if err != nil {
				logger.Error("failed to get book", logging.Error(err))
				continue
			}
			if len(book.Bids) == 0 || len(book.Asks) == 0 {
				continue
			}
			logger.Info("top of book",
				logging.Float64("best_bid", book.Bids[len(book.Bids)-1].Price),
				logging.Float64("best_ask", book.Asks[0].Price),
				logging.Int("bid_levels", len(book.Bids)),
				logging.Int("ask_levels", len(book.Asks)),
			)

			if remaining, observed := connector.Transport().Quota().Remaining(); observed {
				logger.Debug("request quota",
					logging.Int("remaining", remaining),
					logging.String("reset", connector.Transport().Quota().ResetAt().Format(time.RFC3339)),
				)
			}
		}
	}()

	// Signed endpoints need credentials
	if options.APIKey != "" {
		logger.Info("fetching open orders")
		orders, err := connector.PlacedOffers(ctx, "XBTUSD")
		if err != nil {
			logger.Error("failed to fetch open orders", logging.Error(err))
			os.Exit(1)
		}
		for _, order := range orders {
			logger.Info("open order",
				logging.String("orderID", order.OrderID),
				logging.String("side", string(order.Side)),
				logging.Float64("price", order.Price),
				logging.Int64("size", order.Size),
			)
		}

		logger.Info("fetching wallet balances")
		balances, err := connector.AccountBalances(ctx)
		if err != nil {
			logger.Error("failed to fetch balances", logging.Error(err))
			os.Exit(1)
		}
		for _, balance := range balances {
			logger.Info("wallet balance",
				logging.String("asset", balance.Asset),
				logging.Int64("amount", balance.Amount),
			)
		}
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("running... press Ctrl+C to exit")
	<-sigChan

	// Cleanup
	logger.Info("shutting down")
	cancel()
}
