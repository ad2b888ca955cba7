package deriv

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
)

func newTestClient() *Client {
	return New(Config{WsURL: "wss://example.test/ws", AppID: "1"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleMessageRoutesCorrelatedResponse(t *testing.T) {
	c := newTestClient()
	ch := make(chan json.RawMessage, 1)
	c.pending[7] = ch

	raw := []byte(`{"req_id":7,"msg_type":"proposal"}`)
	c.handleMessage(raw)

	select {
	case got := <-ch:
		if string(got) != string(raw) {
			t.Errorf("delivered = %s, want %s", got, raw)
		}
	default:
		t.Fatal("correlated response not delivered to waiter")
	}
	if len(c.pending) != 0 {
		t.Errorf("pending entries = %d, want 0 after delivery", len(c.pending))
	}
}

func TestHandleMessageDropsGarbage(t *testing.T) {
	c := newTestClient()
	c.handleMessage([]byte(`{not json`))
	c.handleMessage([]byte(`{"msg_type":"unknown_thing"}`))
}

func TestHandleMessageDispatchesAbandonedStreamPayload(t *testing.T) {
	// A timed-out call leaves no waiter, but a streaming payload carrying
	// that req_id must still reach its handler.
	c := newTestClient()
	var quotes []float64
	c.subs["R_100"] = &tickSub{
		brokerID: "sub-1",
		handlers: map[int]TickHandler{1: func(q float64, _ int64) { quotes = append(quotes, q) }},
	}

	c.handleMessage([]byte(`{"req_id":9,"msg_type":"tick","tick":{"symbol":"R_100","quote":8572.34,"epoch":100,"id":"sub-1"}}`))

	if len(quotes) != 1 || quotes[0] != 8572.34 {
		t.Errorf("quotes = %v, want [8572.34]", quotes)
	}
}

func TestDispatchTickFansOutToAllHandlers(t *testing.T) {
	c := newTestClient()
	var a, b int
	c.subs["R_50"] = &tickSub{
		brokerID: "sub-2",
		handlers: map[int]TickHandler{
			1: func(_ float64, _ int64) { a++ },
			2: func(_ float64, _ int64) { b++ },
		},
	}

	c.dispatchTick([]byte(`{"msg_type":"tick","tick":{"symbol":"R_50","quote":100.5,"epoch":1,"id":"sub-2"}}`))
	c.dispatchTick([]byte(`{"msg_type":"tick","tick":{"symbol":"R_50","quote":100.6,"epoch":2,"id":"sub-2"}}`))

	if a != 2 || b != 2 {
		t.Errorf("handler calls = (%d, %d), want (2, 2)", a, b)
	}
}

func TestDispatchTickIgnoresGhostSubscription(t *testing.T) {
	// No local consumers for the symbol: the tick is dropped and the
	// best-effort forget fails quietly with no connection.
	c := newTestClient()
	c.dispatchTick([]byte(`{"tick":{"symbol":"R_25","quote":1.0,"epoch":1,"id":"stale-sub"}}`))
	c.dispatchTick([]byte(`{"tick":{}}`))
}

func TestDispatchOpenContractRoutesToMonitor(t *testing.T) {
	c := newTestClient()
	var got ContractUpdate
	c.contractSubs[42] = func(u ContractUpdate) { got = u }

	c.dispatchOpenContract([]byte(`{"proposal_open_contract":{"contract_id":42,"is_sold":1,"profit":0.31,"payout":0.66,"buy_price":0.35}}`))

	want := ContractUpdate{ContractID: 42, IsSold: true, Profit: 0.31, Payout: 0.66, BuyPrice: 0.35}
	if got != want {
		t.Errorf("update = %+v, want %+v", got, want)
	}
}

func TestDispatchOpenContractIgnoresUnmonitored(t *testing.T) {
	c := newTestClient()
	c.contractSubs[42] = func(ContractUpdate) { t.Error("handler called for foreign contract") }
	c.dispatchOpenContract([]byte(`{"proposal_open_contract":{"contract_id":7,"is_sold":0}}`))
	c.dispatchOpenContract([]byte(`{"proposal_open_contract":{}}`))
}

func TestFailPendingClosesWaiters(t *testing.T) {
	c := newTestClient()
	ch := make(chan json.RawMessage, 1)
	c.pending[3] = ch

	c.failPending()

	if _, open := <-ch; open {
		t.Error("waiter channel still open after failPending")
	}
	if len(c.pending) != 0 {
		t.Errorf("pending entries = %d, want 0", len(c.pending))
	}
}
