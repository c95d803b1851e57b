package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tonkit/wkbridge"
	"github.com/tonkit/wkbridge/errors"
	"github.com/tonkit/wkbridge/events"
	"github.com/tonkit/wkbridge/wire"
)

// fakeTransport records deliveries and lets tests push messages back
// through the bound sink.
type fakeTransport struct {
	mu         sync.Mutex
	sink       wkbridge.Sink
	delivered  []wire.Call
	failNext   error
	closed     bool
	closeCount int
}

func (f *fakeTransport) Bind(sink wkbridge.Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
}

func (f *fakeTransport) Deliver(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	var call wire.Call
	if err := json.Unmarshal([]byte(text), &call); err != nil {
		return err
	}
	f.delivered = append(f.delivered, call)
	return nil
}

func (f *fakeTransport) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCount++
	return nil
}

func (f *fakeTransport) push(text string) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink.OnMessage(text)
}

func (f *fakeTransport) calls() []wire.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wire.Call, len(f.delivered))
	copy(out, f.delivered)
	return out
}

// respond answers the i-th delivered call with the given result JSON.
func (f *fakeTransport) respond(i int, result string) {
	calls := f.calls()
	f.push(fmt.Sprintf(`{"kind":"response","id":%q,"result":%s}`, calls[i].ID, result))
}

func readyEngine(t *testing.T, opts Options) (*Engine, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	eng := New(tr, opts)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	tr.push(`{"kind":"ready"}`)
	if eng.State() != StateReady {
		t.Fatalf("expected ready, got %s", eng.State())
	}
	return eng, tr
}

func TestCallRoundTrip(t *testing.T) {
	eng, tr := readyEngine(t, Options{})

	done := make(chan struct{})
	var result json.RawMessage
	var callErr error
	go func() {
		defer close(done)
		result, callErr = eng.Call(context.Background(), wire.MethodGetWallets, json.RawMessage(`{}`))
	}()

	waitFor(t, func() bool { return len(tr.calls()) == 1 })
	call := tr.calls()[0]
	if call.Method != wire.MethodGetWallets {
		t.Fatalf("wrong method on wire: %s", call.Method)
	}
	if string(call.Params) != `{}` {
		t.Fatalf("wrong params on wire: %s", call.Params)
	}

	tr.respond(0, `{"items":[]}`)
	<-done

	if callErr != nil {
		t.Fatalf("call failed: %v", callErr)
	}
	if string(result) != `{"items":[]}` {
		t.Fatalf("wrong result: %s", result)
	}
}

func TestConcurrentCallsResolveIndependently(t *testing.T) {
	eng, tr := readyEngine(t, Options{})

	type outcome struct {
		result json.RawMessage
		err    error
	}
	aCh := make(chan outcome, 1)
	bCh := make(chan outcome, 1)

	go func() {
		r, err := eng.Call(context.Background(), wire.MethodGetWallets, json.RawMessage(`{}`))
		aCh <- outcome{r, err}
	}()
	waitFor(t, func() bool { return len(tr.calls()) == 1 })
	go func() {
		r, err := eng.Call(context.Background(), wire.MethodGetWalletState, json.RawMessage(`{"address":"EQabc"}`))
		bCh <- outcome{r, err}
	}()
	waitFor(t, func() bool { return len(tr.calls()) == 2 })

	calls := tr.calls()
	if calls[0].ID == calls[1].ID {
		t.Fatal("correlation ids must be distinct")
	}

	// Answer B first with a remote error, then A with a result.
	tr.push(fmt.Sprintf(`{"kind":"response","id":%q,"error":{"message":"not found","code":404}}`, calls[1].ID))
	tr.respond(0, `{"items":[]}`)

	a := <-aCh
	if a.err != nil || string(a.result) != `{"items":[]}` {
		t.Fatalf("call A got %s, %v", a.result, a.err)
	}
	b := <-bCh
	re, ok := errors.AsRemote(b.err)
	if !ok {
		t.Fatalf("call B expected remote error, got %v", b.err)
	}
	if re.Code == nil || *re.Code != 404 {
		t.Fatalf("call B lost the remote code: %+v", re)
	}
}

func TestCallsQueueUntilReady(t *testing.T) {
	tr := &fakeTransport{}
	eng := New(tr, Options{})
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	done := make(chan error, 2)
	go func() {
		_, err := eng.Call(context.Background(), wire.MethodInit, json.RawMessage(`{"network":"mainnet"}`))
		done <- err
	}()
	go func() {
		_, err := eng.Call(context.Background(), wire.MethodGetWallets, nil)
		done <- err
	}()

	// Nothing reaches the transport while loading.
	time.Sleep(50 * time.Millisecond)
	if len(tr.calls()) != 0 {
		t.Fatalf("calls leaked before ready: %d", len(tr.calls()))
	}

	tr.push(`{"kind":"ready"}`)
	waitFor(t, func() bool { return len(tr.calls()) == 2 })

	for i := range tr.calls() {
		tr.respond(i, `{}`)
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("queued call failed: %v", err)
		}
	}
}

func TestNullResultResolvesCall(t *testing.T) {
	eng, tr := readyEngine(t, Options{})

	done := make(chan struct{})
	var result json.RawMessage
	var callErr error
	go func() {
		defer close(done)
		result, callErr = eng.Call(context.Background(), wire.MethodDisconnectSession, json.RawMessage(`{"id":"s1"}`))
	}()
	waitFor(t, func() bool { return len(tr.calls()) == 1 })

	// Void methods answer with an explicit null result.
	tr.push(fmt.Sprintf(`{"kind":"response","id":%q,"result":null}`, tr.calls()[0].ID))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("null result never resolved the call")
	}
	if callErr != nil {
		t.Fatalf("call failed: %v", callErr)
	}
	if string(result) != "null" {
		t.Fatalf("wrong result: %q", result)
	}
}

func TestQueuedCallRejectedWhenFlushFails(t *testing.T) {
	tr := &fakeTransport{}
	// Deadline disabled: a dropped flush must still not leave the caller
	// waiting forever.
	eng := New(tr, Options{CallTimeout: -1})
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := eng.Call(context.Background(), wire.MethodInit, nil)
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	tr.mu.Lock()
	tr.failNext = fmt.Errorf("interpreter crashed")
	tr.mu.Unlock()
	tr.push(`{"kind":"ready"}`)

	select {
	case err := <-done:
		if !errors.IsKind(err, errors.KindTransport) {
			t.Fatalf("expected transport error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued call left hanging after flush failure")
	}
}

func TestDestroyDrainsPendingCalls(t *testing.T) {
	eng, tr := readyEngine(t, Options{})

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := eng.Call(context.Background(), wire.MethodGetWallets, nil)
			errs <- err
		}()
	}
	waitFor(t, func() bool { return len(tr.calls()) == 3 })

	if err := eng.Destroy(context.Background()); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := <-errs; !errors.IsKind(err, errors.KindDestroyed) {
			t.Fatalf("expected destroyed error, got %v", err)
		}
	}

	// A subsequent call fails fast without touching the transport.
	before := len(tr.calls())
	_, err := eng.Call(context.Background(), wire.MethodGetWallets, nil)
	if !errors.IsKind(err, errors.KindDestroyed) {
		t.Fatalf("expected destroyed error, got %v", err)
	}
	if len(tr.calls()) != before {
		t.Fatal("destroyed call must not reach the transport")
	}
	if !tr.closed {
		t.Fatal("destroy must close the transport")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	eng, tr := readyEngine(t, Options{})
	if err := eng.Destroy(context.Background()); err != nil {
		t.Fatalf("first destroy failed: %v", err)
	}
	if err := eng.Destroy(context.Background()); err != nil {
		t.Fatalf("second destroy failed: %v", err)
	}
	if tr.closeCount != 1 {
		t.Fatalf("transport closed %d times", tr.closeCount)
	}
}

func TestMalformedMessageResilience(t *testing.T) {
	eng, tr := readyEngine(t, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := eng.Call(context.Background(), wire.MethodGetWallets, nil)
		done <- err
	}()
	waitFor(t, func() bool { return len(tr.calls()) == 1 })

	// None of these may crash the pipeline or resolve the pending call.
	tr.push(`this is not json`)
	tr.push(`{"kind":"telemetry","id":"abc"}`)
	tr.push(`{"kind":"response","id":"unknown-id","result":{}}`)

	select {
	case err := <-done:
		t.Fatalf("pending call resolved by garbage: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// A well-formed message afterwards still processes.
	tr.respond(0, `{"ok":true}`)
	if err := <-done; err != nil {
		t.Fatalf("call after garbage failed: %v", err)
	}
}

func TestCallTimeout(t *testing.T) {
	eng, tr := readyEngine(t, Options{CallTimeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := eng.Call(context.Background(), wire.MethodInit, nil)
	elapsed := time.Since(start)

	if !errors.IsKind(err, errors.KindTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed < 100*time.Millisecond || elapsed > time.Second {
		t.Fatalf("timeout fired at %v", elapsed)
	}
	_ = tr
}

func TestTransportFailureSurfacesToCaller(t *testing.T) {
	eng, tr := readyEngine(t, Options{})
	tr.mu.Lock()
	tr.failNext = fmt.Errorf("engine crashed")
	tr.mu.Unlock()

	_, err := eng.Call(context.Background(), wire.MethodGetWallets, nil)
	if !errors.IsKind(err, errors.KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestEventsReachListeners(t *testing.T) {
	eng, tr := readyEngine(t, Options{})

	got := make(chan wire.Event, 1)
	handle := eng.AddListener(events.NewListener(func(ev wire.Event) {
		got <- ev
	}))
	defer handle.Close()

	tr.push(`{"kind":"event","event":{"type":"transactionRequest","data":{"valid_until":1700000000}}}`)

	select {
	case ev := <-got:
		if ev.Type != wire.EventTransactionRequest {
			t.Fatalf("wrong event type: %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("event never dispatched")
	}
}

func TestClosedRegistrationStopsDelivery(t *testing.T) {
	eng, tr := readyEngine(t, Options{})

	var mu sync.Mutex
	count := 0
	handle := eng.AddListener(events.NewListener(func(wire.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}))

	tr.push(`{"kind":"event","event":{"type":"disconnect","data":{}}}`)
	handle.Close()
	handle.Close() // second close is safe
	tr.push(`{"kind":"event","event":{"type":"disconnect","data":{}}}`)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
