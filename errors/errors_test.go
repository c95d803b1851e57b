package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	code := 404
	e := Remote("getWalletState", "not found", &code)
	s := e.Error()
	if !strings.Contains(s, "[call]") {
		t.Fatalf("missing stage in %q", s)
	}
	if !strings.Contains(s, "remote") {
		t.Fatalf("missing kind in %q", s)
	}
	if !strings.Contains(s, "getWalletState") {
		t.Fatalf("missing method in %q", s)
	}
	if !strings.Contains(s, "code 404") {
		t.Fatalf("missing code in %q", s)
	}
}

func TestErrorStringWithCause(t *testing.T) {
	cause := fmt.Errorf("socket closed")
	e := Transport(StageDeliver, "write frame", cause)
	s := e.Error()
	if !strings.Contains(s, "caused by: socket closed") {
		t.Fatalf("missing cause in %q", s)
	}
}

func TestIs(t *testing.T) {
	a := Timeout("init", "deadline elapsed")
	b := Timeout("getWallets", "")
	if !stderrors.Is(a, b) {
		t.Fatal("same stage+kind should match")
	}
	c := Destroyed(StageCall)
	if stderrors.Is(a, c) {
		t.Fatal("different kind should not match")
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	e := Protocol("bad json", cause)
	if stderrors.Unwrap(e) != cause {
		t.Fatal("Unwrap should return cause")
	}
}

func TestIsKind(t *testing.T) {
	e := Timeout("init", "")
	if !IsKind(e, KindTimeout) {
		t.Fatal("expected timeout kind")
	}
	if IsKind(e, KindRemote) {
		t.Fatal("unexpected remote kind")
	}

	wrapped := fmt.Errorf("call failed: %w", e)
	if !IsKind(wrapped, KindTimeout) {
		t.Fatal("IsKind should unwrap")
	}

	if IsKind(nil, KindTimeout) {
		t.Fatal("nil is no kind")
	}
	if IsKind(fmt.Errorf("plain"), KindTimeout) {
		t.Fatal("plain error is no kind")
	}
}

func TestAsRemote(t *testing.T) {
	e := Remote("approveConnect", "rejected by user", nil)
	re, ok := AsRemote(fmt.Errorf("wrap: %w", e))
	if !ok {
		t.Fatal("expected remote error")
	}
	if re.Message != "rejected by user" {
		t.Fatalf("wrong message %q", re.Message)
	}
	if re.Code != nil {
		t.Fatal("expected no code")
	}

	if _, ok := AsRemote(Timeout("x", "")); ok {
		t.Fatal("timeout is not remote")
	}
}

func TestConstructorKinds(t *testing.T) {
	cases := []struct {
		err  *Error
		kind Kind
	}{
		{Destroyed(StageLifecycle), KindDestroyed},
		{InvalidInput(StageEncode, "empty id"), KindInvalidInput},
		{NotReady("script still loading"), KindNotReady},
	}
	for _, c := range cases {
		if !IsKind(c.err, c.kind) {
			t.Fatalf("%v is not kind %s", c.err, c.kind)
		}
	}
}

func TestBuilder(t *testing.T) {
	e := New(StageDeliver, KindTransport).
		Method("init").
		Detail("queue overflow at %d entries", 128).
		Build()
	if e.Stage != StageDeliver || e.Kind != KindTransport {
		t.Fatal("builder lost stage/kind")
	}
	if e.Method != "init" {
		t.Fatal("builder lost method")
	}
	if e.Detail != "queue overflow at 128 entries" {
		t.Fatalf("detail formatting wrong: %q", e.Detail)
	}
}
