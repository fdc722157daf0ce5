package bitmex

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/veiloq/bitmex-connector/pkg/exchanges/interfaces"
	"github.com/veiloq/bitmex-connector/pkg/logging"
	"github.com/veiloq/bitmex-connector/pkg/websocket"
)

const (
	bookTable      = "orderBookL2"
	welcomeMarker  = "Welcome"
	actionPartial  = "partial"
	actionInsert   = "insert"
	actionUpdate   = "update"
	actionDelete   = "delete"
	eventsCapacity = 16
)

// bookState is the synchronizer's protocol state. The three active states
// form a straight line; closed is terminal and reachable from any of them.
type bookState int

const (
	awaitingWelcome bookState = iota
	awaitingSubscribeAck
	streaming
	closed
)

func (s bookState) String() string {
	switch s {
	case awaitingWelcome:
		return "awaiting-welcome"
	case awaitingSubscribeAck:
		return "awaiting-subscribe-ack"
	case streaming:
		return "streaming"
	case closed:
		return "closed"
	default:
		return "unknown"
	}
}

// bookEntry is the stored (price, offer) pair for one server-assigned level
// id. The invariant entry.offer.Price == entry.price holds at every
// observation point; offers are rebuilt, never mutated.
type bookEntry struct {
	price float64
	offer interfaces.Offer
}

// BookSynchronizer maintains a live mirror of one market's order book from
// the venue's snapshot+diff socket protocol. It owns one socket and one
// level map; nothing is shared across markets.
//
// Lifecycle: Start dials the socket with the subscribe topic in the query
// string and spawns the message loop. The loop walks
// awaitingWelcome → awaitingSubscribeAck → streaming; any protocol
// violation closes the socket, emits a fatal event, and leaves the
// synchronizer terminal. Close is the only cancellation primitive and there
// is no resume — construct a new synchronizer to re-mirror the market.
type BookSynchronizer struct {
	symbol  string
	topic   string
	session websocket.Session
	logger  logging.Logger

	// mu guards state and entries. The message loop holds it for the whole
	// row batch of one inbound message, so a concurrent Book() never
	// observes a partially applied message.
	mu      sync.Mutex
	state   bookState
	entries map[int64]bookEntry

	events    chan interfaces.StreamEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewBookSynchronizer creates a synchronizer for one market. wsBaseURL is
// the venue's realtime endpoint (e.g. "wss://www.bitmex.com/realtime").
func NewBookSynchronizer(wsBaseURL, symbol string, logger logging.Logger) *BookSynchronizer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	topic := bookTable + ":" + symbol
	logger = logger.WithFields(logging.String("symbol", symbol))

	return &BookSynchronizer{
		symbol: symbol,
		topic:  topic,
		session: websocket.NewSession(websocket.Config{
			URL:    wsBaseURL + "?subscribe=" + topic,
			Logger: logger,
		}),
		logger:  logger,
		state:   awaitingWelcome,
		entries: make(map[int64]bookEntry),
		events:  make(chan interfaces.StreamEvent, eventsCapacity),
		done:    make(chan struct{}),
	}
}

// Start connects the socket and begins mirroring. It returns once the
// connection is established; protocol progress and failures are reported on
// Events.
func (b *BookSynchronizer) Start(ctx context.Context) error {
	if err := b.session.Connect(ctx); err != nil {
		b.terminate(nil)
		return err
	}
	go b.run()
	return nil
}

// Events delivers advisory and fatal stream conditions. The channel is
// buffered; events overflowing the buffer are dropped rather than blocking
// the message loop.
func (b *BookSynchronizer) Events() <-chan interfaces.StreamEvent {
	return b.events
}

// Done is closed when the synchronizer reaches its terminal state.
func (b *BookSynchronizer) Done() <-chan struct{} {
	return b.done
}

// Close tears the socket down and makes the synchronizer terminal.
func (b *BookSynchronizer) Close() error {
	b.terminate(nil)
	return nil
}

// Book returns the current mirrored book: asks and bids, each sorted
// ascending by price. It fails with ErrStreamClosed once the synchronizer
// is terminal, and reports an empty (not yet loaded) book as valid empty
// slices.
func (b *BookSynchronizer) Book() (*interfaces.OrderBook, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == closed {
		return nil, interfaces.ErrStreamClosed
	}

	book := &interfaces.OrderBook{
		Symbol: b.symbol,
		Bids:   make([]interfaces.PriceLevel, 0, len(b.entries)),
		Asks:   make([]interfaces.PriceLevel, 0, len(b.entries)),
	}
	for _, entry := range b.entries {
		level := interfaces.PriceLevel{Price: entry.price, Size: entry.offer.Size}
		if entry.offer.Side == interfaces.Buy {
			book.Bids = append(book.Bids, level)
		} else {
			book.Asks = append(book.Asks, level)
		}
	}
	// Both sides ascending, matching the upstream feed's ordering.
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price < book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book, nil
}

// run is the message loop. It exits when the socket errors or the
// synchronizer terminates.
func (b *BookSynchronizer) run() {
	for {
		message, err := b.session.ReadMessage()
		if err != nil {
			b.mu.Lock()
			alreadyClosed := b.state == closed
			b.mu.Unlock()
			if !alreadyClosed {
				b.terminate(fmt.Errorf("socket read: %w", err))
			}
			return
		}
		if err := b.handleMessage(message); err != nil {
			b.terminate(err)
			return
		}
	}
}

// handleMessage applies one inbound frame. A returned error is a protocol
// violation and terminates the synchronizer.
func (b *BookSynchronizer) handleMessage(data []byte) error {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: undecodable frame: %v", interfaces.ErrProtocolViolation, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case awaitingWelcome:
		if !strings.Contains(msg.Info, welcomeMarker) {
			return fmt.Errorf("%w: expected greeting, got %q", interfaces.ErrProtocolViolation, msg.Info)
		}
		b.state = awaitingSubscribeAck
		b.logger.Debug("greeting received")
		return nil

	case awaitingSubscribeAck:
		if !msg.Success || msg.Subscribe != b.topic {
			return fmt.Errorf("%w: expected ack for %q, got subscribe=%q success=%t error=%q",
				interfaces.ErrProtocolViolation, b.topic, msg.Subscribe, msg.Success, msg.Error)
		}
		b.state = streaming
		b.logger.Info("subscription confirmed", logging.String("topic", b.topic))
		return nil

	case streaming:
		return b.applyDelta(msg)

	default:
		return interfaces.ErrStreamClosed
	}
}

// applyDelta applies one table message's full row batch under the lock
// already held by handleMessage.
func (b *BookSynchronizer) applyDelta(msg streamMessage) error {
	if msg.Table != bookTable {
		return fmt.Errorf("%w: unexpected table %q", interfaces.ErrProtocolViolation, msg.Table)
	}

	switch msg.Action {
	case actionPartial:
		if len(b.entries) != 0 {
			return fmt.Errorf("%w: partial after initial load", interfaces.ErrProtocolViolation)
		}
		for _, row := range msg.Data {
			if row.Price == nil {
				return fmt.Errorf("%w: partial row %d without price", interfaces.ErrProtocolViolation, row.ID)
			}
			b.entries[row.ID] = b.buildEntry(row.Side, *row.Price, row.Size)
		}

	case actionInsert:
		for _, row := range msg.Data {
			if row.Price == nil {
				return fmt.Errorf("%w: insert row %d without price", interfaces.ErrProtocolViolation, row.ID)
			}
			b.entries[row.ID] = b.buildEntry(row.Side, *row.Price, row.Size)
		}

	case actionUpdate:
		for _, row := range msg.Data {
			existing, ok := b.entries[row.ID]
			if !ok {
				// The level was never announced; skip it and let the caller
				// know rather than guessing a price.
				b.emit(interfaces.StreamEvent{
					Severity: interfaces.Advisory,
					Symbol:   b.symbol,
					Err:      fmt.Errorf("update for unknown level id %d", row.ID),
				})
				continue
			}
			b.entries[row.ID] = b.buildEntry(row.Side, existing.price, row.Size)
		}

	case actionDelete:
		for _, row := range msg.Data {
			delete(b.entries, row.ID)
		}

	default:
		return fmt.Errorf("%w: unexpected action %q", interfaces.ErrProtocolViolation, msg.Action)
	}

	return nil
}

// buildEntry constructs a fresh (price, offer) pair. Offers are value
// objects; every size or price change produces a new one.
func (b *BookSynchronizer) buildEntry(side string, price, size float64) bookEntry {
	return bookEntry{
		price: price,
		offer: interfaces.Offer{
			Symbol: b.symbol,
			Side:   interfaces.Side(side),
			Price:  price,
			Size:   size,
		},
	}
}

// terminate closes the socket and moves the synchronizer to its terminal
// state, emitting a fatal event when a cause is given.
func (b *BookSynchronizer) terminate(cause error) {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.state = closed
		b.mu.Unlock()

		_ = b.session.Close()

		if cause != nil {
			b.logger.Error("book stream terminated", logging.Error(cause))
			b.emit(interfaces.StreamEvent{
				Severity: interfaces.Fatal,
				Symbol:   b.symbol,
				Err:      cause,
			})
		} else {
			b.logger.Info("book stream closed")
		}
		close(b.done)
	})
}

// emit delivers an event without ever blocking the message loop.
func (b *BookSynchronizer) emit(event interfaces.StreamEvent) {
	select {
	case b.events <- event:
	default:
	}
}
