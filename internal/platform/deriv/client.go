// Package deriv implements a websocket client for the Deriv trading API.
// It correlates requests to responses through synthetic req_ids, keeps at
// most one active tick subscription per symbol through reference counting,
// and reconnects with exponential backoff, restoring live subscriptions.
package deriv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// TickHandler receives raw quotes for a subscribed symbol in arrival order.
type TickHandler func(quote float64, epoch int64)

// ContractHandler receives settlement-tracking updates for an open contract.
type ContractHandler func(ContractUpdate)

// tickSub tracks one broker-side tick subscription shared by all local
// consumers of a symbol.
type tickSub struct {
	brokerID string
	handlers map[int]TickHandler
}

// Config holds client construction parameters.
type Config struct {
	WsURL       string
	AppID       string
	Token       string
	CallTimeout time.Duration
}

// Client is a websocket client for the Deriv API. It is safe for concurrent
// use; all API methods may be called from multiple goroutines.
type Client struct {
	wsURL       string
	token       string
	callTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	reqID     atomic.Int64
	handlerID atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan json.RawMessage

	subsMu       sync.Mutex
	subs         map[string]*tickSub
	contractSubs map[int64]ContractHandler

	// done is closed when the client is shut down.
	done chan struct{}
}

// New creates a Client for the given endpoint. The app_id is appended as a
// query parameter per the Deriv API convention.
func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.CallTimeout
	if timeout < 10*time.Second {
		timeout = 15 * time.Second
	}
	return &Client{
		wsURL:        fmt.Sprintf("%s?app_id=%s", cfg.WsURL, cfg.AppID),
		token:        cfg.Token,
		callTimeout:  timeout,
		logger:       logger.With(slog.String("component", "deriv_ws")),
		pending:      make(map[int64]chan json.RawMessage),
		subs:         make(map[string]*tickSub),
		contractSubs: make(map[int64]ContractHandler),
		done:         make(chan struct{}),
	}
}

// Connect establishes the websocket connection, authorizes when a token is
// configured, and restores any live tick subscriptions (after a reconnect).
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrNotConnected
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("deriv: connect: %w", err)
	}

	c.conn = conn
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.pingLoop(conn)

	if c.token != "" {
		if err := c.authorize(ctx); err != nil {
			return err
		}
	}

	return c.restoreSubscriptions(ctx)
}

// Close shuts down the connection and fails all pending calls.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	c.failPending()

	if c.conn != nil {
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return c.conn.Close()
	}
	return nil
}

// SubscribeTicks registers a handler for the symbol's tick stream and
// returns a release function. The first consumer of a symbol triggers the
// real broker subscription; later consumers share it. The broker
// subscription is forgotten only when the last consumer releases.
func (c *Client) SubscribeTicks(ctx context.Context, symbol string, h TickHandler) (func(), error) {
	id := int(c.handlerID.Add(1))

	c.subsMu.Lock()
	sub, live := c.subs[symbol]
	if !live {
		sub = &tickSub{handlers: make(map[int]TickHandler)}
		c.subs[symbol] = sub
	}
	sub.handlers[id] = h
	c.subsMu.Unlock()

	if !live {
		brokerID, err := c.subscribeSymbol(ctx, symbol)
		if err != nil {
			c.subsMu.Lock()
			delete(sub.handlers, id)
			if len(sub.handlers) == 0 {
				delete(c.subs, symbol)
			}
			c.subsMu.Unlock()
			return nil, err
		}
		c.subsMu.Lock()
		sub.brokerID = brokerID
		c.subsMu.Unlock()
	}

	release := func() {
		c.subsMu.Lock()
		sub, ok := c.subs[symbol]
		if !ok {
			c.subsMu.Unlock()
			return
		}
		delete(sub.handlers, id)
		last := len(sub.handlers) == 0
		brokerID := sub.brokerID
		if last {
			delete(c.subs, symbol)
		}
		c.subsMu.Unlock()

		if last && brokerID != "" {
			c.forget(brokerID)
		}
	}
	return release, nil
}

// TickHistory fetches the most recent count quotes for warm-starting
// analyzers.
func (c *Client) TickHistory(ctx context.Context, symbol string, count int) ([]float64, []int64, error) {
	reqID := c.reqID.Add(1)
	raw, err := c.call(ctx, reqID, historyRequest{
		TicksHistory: symbol,
		Count:        count,
		End:          "latest",
		Style:        "ticks",
		ReqID:        reqID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("deriv: tick history %s: %w", symbol, err)
	}

	var resp historyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, fmt.Errorf("deriv: decode history: %w", err)
	}
	return resp.History.Prices, resp.History.Times, nil
}

// Proposal fetches a priced quote for the given contract.
func (c *Client) Proposal(ctx context.Context, p domain.ContractParams) (domain.Proposal, error) {
	reqID := c.reqID.Add(1)
	raw, err := c.call(ctx, reqID, proposalRequest{
		Proposal:     1,
		Amount:       p.Amount,
		Basis:        "stake",
		ContractType: p.ContractType,
		Currency:     p.Currency,
		Duration:     p.Duration,
		DurationUnit: p.DurationUnit,
		Symbol:       p.Symbol,
		Barrier:      p.Barrier,
		ReqID:        reqID,
	})
	if err != nil {
		return domain.Proposal{}, fmt.Errorf("deriv: proposal: %w", err)
	}

	var resp proposalResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.Proposal{}, fmt.Errorf("deriv: decode proposal: %w", err)
	}
	return domain.Proposal{
		ID:       resp.Proposal.ID,
		AskPrice: resp.Proposal.AskPrice,
		Payout:   resp.Proposal.Payout,
		Spot:     resp.Proposal.Spot,
		SpotTime: resp.Proposal.SpotTime,
	}, nil
}

// Buy purchases a previously proposed contract at up to the given price.
func (c *Client) Buy(ctx context.Context, proposalID string, price float64) (int64, float64, error) {
	reqID := c.reqID.Add(1)
	raw, err := c.call(ctx, reqID, buyRequest{Buy: proposalID, Price: price, ReqID: reqID})
	if err != nil {
		return 0, 0, fmt.Errorf("deriv: buy: %w", err)
	}

	var resp buyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, 0, fmt.Errorf("deriv: decode buy: %w", err)
	}
	return resp.Buy.ContractID, resp.Buy.BuyPrice, nil
}

// MonitorContract subscribes to settlement updates for an open contract.
// The handler receives every update until the contract is sold or the
// returned release function is called.
func (c *Client) MonitorContract(ctx context.Context, contractID int64, h ContractHandler) (func(), error) {
	c.subsMu.Lock()
	c.contractSubs[contractID] = h
	c.subsMu.Unlock()

	reqID := c.reqID.Add(1)
	raw, err := c.call(ctx, reqID, openContractRequest{
		ProposalOpenContract: 1,
		ContractID:           contractID,
		Subscribe:            1,
		ReqID:                reqID,
	})
	if err != nil {
		c.subsMu.Lock()
		delete(c.contractSubs, contractID)
		c.subsMu.Unlock()
		return nil, fmt.Errorf("deriv: monitor contract %d: %w", contractID, err)
	}

	// The correlated response is also the first update.
	c.dispatchOpenContract(raw)

	release := func() {
		c.subsMu.Lock()
		delete(c.contractSubs, contractID)
		c.subsMu.Unlock()
	}
	return release, nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// authorize performs token authorization on the current connection.
func (c *Client) authorize(ctx context.Context) error {
	reqID := c.reqID.Add(1)
	raw, err := c.call(ctx, reqID, authorizeRequest{Authorize: c.token, ReqID: reqID})
	if err != nil {
		return fmt.Errorf("deriv: authorize: %w", err)
	}
	var resp authorizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("deriv: decode authorize: %w", err)
	}
	c.logger.Info("authorized",
		slog.String("loginid", resp.Authorize.LoginID),
		slog.Float64("balance", resp.Authorize.Balance),
	)
	return nil
}

// subscribeSymbol issues the real broker subscription for a symbol and
// returns the server-assigned subscription id.
func (c *Client) subscribeSymbol(ctx context.Context, symbol string) (string, error) {
	reqID := c.reqID.Add(1)
	raw, err := c.call(ctx, reqID, ticksRequest{Ticks: symbol, Subscribe: 1, ReqID: reqID})
	if err != nil {
		return "", fmt.Errorf("deriv: subscribe ticks %s: %w", symbol, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("deriv: decode subscribe ack: %w", err)
	}
	if env.Subscription == nil {
		return "", fmt.Errorf("deriv: subscribe ticks %s: no subscription id in ack", symbol)
	}

	// The ack carries the first tick; dispatch it like any other.
	c.dispatchTick(raw)

	return env.Subscription.ID, nil
}

// restoreSubscriptions re-issues broker subscriptions for every symbol that
// still has live consumers. Called after (re)connect.
func (c *Client) restoreSubscriptions(ctx context.Context) error {
	c.subsMu.Lock()
	symbols := make([]string, 0, len(c.subs))
	for sym := range c.subs {
		symbols = append(symbols, sym)
	}
	c.subsMu.Unlock()

	for _, sym := range symbols {
		brokerID, err := c.subscribeSymbol(ctx, sym)
		if err != nil {
			return fmt.Errorf("deriv: restore subscription: %w", err)
		}
		c.subsMu.Lock()
		if sub, ok := c.subs[sym]; ok {
			sub.brokerID = brokerID
		}
		c.subsMu.Unlock()
	}
	return nil
}

// call sends a correlated request and waits for its response, the context,
// or the call timeout, whichever comes first. The pending entry is always
// removed so abandoned calls do not leak.
func (c *Client) call(ctx context.Context, reqID int64, req any) (json.RawMessage, error) {
	ch := make(chan json.RawMessage, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = ch
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}

	if err := c.send(req); err != nil {
		cleanup()
		return nil, err
	}

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	case <-c.done:
		cleanup()
		return nil, domain.ErrNotConnected
	case <-timer.C:
		cleanup()
		return nil, fmt.Errorf("after %s: %w", c.callTimeout, domain.ErrCallTimeout)
	case raw, ok := <-ch:
		cleanup()
		if !ok {
			return nil, domain.ErrNotConnected
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("deriv: decode envelope: %w", err)
		}
		if env.Error != nil {
			return nil, &domain.APIError{Code: env.Error.Code, Message: env.Error.Message}
		}
		return raw, nil
	}
}

// send writes a JSON message to the connection.
func (c *Client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return domain.ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("deriv: marshal request: %w", err)
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// forget issues a best-effort forget for a broker subscription id.
func (c *Client) forget(brokerID string) {
	reqID := c.reqID.Add(1)
	if err := c.send(forgetRequest{Forget: brokerID, ReqID: reqID}); err != nil {
		c.logger.Debug("forget failed", slog.String("sub_id", brokerID), slog.String("error", err.Error()))
	}
}

// failPending aborts every call still waiting on the dying connection.
// Waiters observe the closed channel and report ErrNotConnected.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// readLoop reads messages from one connection generation and dispatches
// them. On read error it triggers reconnection unless the client is closed.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.failPending()
			c.reconnect()
			return // a new readLoop is started by reconnect -> Connect
		}

		c.handleMessage(message)
	}
}

// pingLoop sends periodic pings to keep one connection generation alive.
func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage routes a raw message: correlated responses go to the pending
// table, streaming messages to their handlers.
func (c *Client) handleMessage(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return // silently drop unparseable messages
	}

	if env.ReqID != 0 {
		c.pendingMu.Lock()
		ch, ok := c.pending[env.ReqID]
		if ok {
			delete(c.pending, env.ReqID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- json.RawMessage(raw)
			return
		}
		// Correlated response nobody is waiting for (timed-out call):
		// fall through so streaming payloads are still dispatched.
	}

	switch env.MsgType {
	case "tick":
		c.dispatchTick(raw)
	case "proposal_open_contract":
		c.dispatchOpenContract(raw)
	}
}

// dispatchTick fans a tick out to the symbol's handlers. Ticks for symbols
// with no live consumers are ghost subscriptions: dropped, and the broker
// subscription is forgotten.
func (c *Client) dispatchTick(raw []byte) {
	var msg tickMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Tick.Symbol == "" {
		return
	}

	c.subsMu.Lock()
	sub, ok := c.subs[msg.Tick.Symbol]
	var handlers []TickHandler
	if ok {
		handlers = make([]TickHandler, 0, len(sub.handlers))
		for _, h := range sub.handlers {
			handlers = append(handlers, h)
		}
	}
	c.subsMu.Unlock()

	if !ok {
		if msg.Tick.ID != "" {
			c.logger.Debug("ghost tick subscription, forgetting",
				slog.String("symbol", msg.Tick.Symbol),
			)
			c.forget(msg.Tick.ID)
		}
		return
	}

	for _, h := range handlers {
		h(msg.Tick.Quote, msg.Tick.Epoch)
	}
}

// dispatchOpenContract routes a contract update to its monitor, if any.
func (c *Client) dispatchOpenContract(raw []byte) {
	var msg openContractMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	poc := msg.ProposalOpenContract
	if poc.ContractID == 0 {
		return
	}

	c.subsMu.Lock()
	h, ok := c.contractSubs[poc.ContractID]
	c.subsMu.Unlock()
	if !ok {
		return
	}

	h(ContractUpdate{
		ContractID: poc.ContractID,
		IsSold:     poc.IsSold != 0,
		Profit:     poc.Profit,
		Payout:     poc.Payout,
		BuyPrice:   poc.BuyPrice,
	})
}

// reconnect re-establishes the connection with exponential backoff. It
// blocks until successful or the client is closed.
func (c *Client) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-c.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			c.logger.Info("reconnected")
			return
		}
		c.logger.Warn("reconnect failed", slog.String("error", err.Error()))

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
