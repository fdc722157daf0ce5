// Package bitmex-connector provides a connectivity layer for the BitMEX
// derivatives exchange.
//
// The library covers the four concerns a market-making or reconciliation
// system needs from the venue: a signed, self-throttling REST transport, a
// streaming order-book mirror, maker-only order lifecycle management, and
// cursor-based execution reconciliation.
//
// Core Features:
//
//   - HMAC-SHA256 request signing with strictly increasing nonces
//   - Self-throttling driven by the venue's rate-limit response headers
//   - Live order-book mirroring over the realtime WebSocket feed
//   - Maker-only (post-only) order placement with idempotent cancellation
//   - Duplicate-free execution fetching keyed by a trade-id cursor
//
// The library is built around the ExchangeConnector interface, which defines
// the operations for interacting with the venue over REST, plus the
// BookSynchronizer type for the streaming order-book mirror.
//
// # Standard Errors
//
// The library defines standardized errors for consistent handling:
//
//   - ErrNotConnected: Returned when an operation is attempted on a closed
//     or never-connected component
//
//   - ErrInvalidSymbol: Returned when a market symbol is unknown
//
//   - ErrExchangeUnavailable: Returned (wrapped in an APIError) when the
//     venue answers with a transient server error; the caller decides
//     whether to retry
//
//   - ErrAuthenticationRequired: Returned when a signed endpoint is called
//     without credentials
//
//   - ErrProtocolViolation: Returned when the realtime feed breaks its
//     message contract; the affected stream is terminal
//
//   - ErrStreamClosed: Returned when reading from a terminated book stream
//
// Structured venue rejections are reported as *APIError carrying the HTTP
// status and the venue's error name and message.
//
// # Examples
//
// Basic usage:
//
//	options := interfaces.NewExchangeOptions().
//		WithCredentials("your-api-key", "your-api-secret")
//	connector := bitmex.NewConnector(options, logging.NewZapLogger())
//	defer connector.Close()
//
//	ctx := context.Background()
//
//	// Fetch the market catalogue once; it backs price and volume
//	// quantization for order placement.
//	markets, err := connector.Markets(ctx)
//	if err != nil {
//	    log.Fatalf("failed to fetch markets: %v", err)
//	}
//	fmt.Printf("venue lists %d active markets\n", len(markets))
//
// Streaming the order book:
//
//	stream, err := connector.StartBookStream(ctx, "XBTUSD")
//	if err != nil {
//	    log.Fatalf("failed to start book stream: %v", err)
//	}
//
//	// GetBook serves the live mirror while the stream runs and falls
//	// back to a REST snapshot once it terminates.
//	book, err := connector.GetBook(ctx, "XBTUSD")
//	if err != nil {
//	    log.Fatalf("failed to get book: %v", err)
//	}
//	fmt.Printf("best bid: %f, best ask: %f\n",
//	    book.Bids[len(book.Bids)-1].Price, book.Asks[0].Price)
//
//	// Stream conditions surface on the events channel; a Fatal event
//	// means the stream is terminal and must be reconstructed.
//	go func() {
//	    for event := range stream.Events() {
//	        if event.Severity == interfaces.Fatal {
//	            log.Printf("book stream lost: %v", event.Err)
//	        }
//	    }
//	}()
//
// Placing and cancelling maker-only offers:
//
//	placed, err := connector.PostOffer(ctx, interfaces.Offer{
//	    Symbol: "XBTUSD",
//	    Side:   interfaces.Buy,
//	    Price:  9342.7501, // quantized to the market tick before submission
//	    Size:   100,
//	})
//	if err != nil {
//	    log.Fatalf("failed to post offer: %v", err)
//	}
//	if placed == nil {
//	    // The order would have crossed the book and was dropped by the
//	    // maker-only policy; this is an expected outcome, not an error.
//	    return
//	}
//
//	// Cancelling an already-filled or unknown order is idempotent success.
//	if err := connector.CancelOffer(ctx, *placed); err != nil {
//	    log.Printf("cancel anomaly: %v", err)
//	}
//
// Reconciling executions:
//
//	market, _ := connector.Market("XBTUSD")
//	executions, err := connector.ExecutionsSince(ctx, market, lastTradeID)
//	if err != nil {
//	    log.Fatalf("failed to fetch executions: %v", err)
//	}
//	for _, execution := range executions {
//	    fmt.Printf("%s %s %d @ %f (net %f)\n",
//	        execution.TradeID, execution.Side, execution.Size,
//	        execution.Price, execution.NetVolume)
//	    lastTradeID = execution.TradeID
//	}
package bitmexconnector
