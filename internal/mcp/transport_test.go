package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFrameCodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)

	payloads := []string{`{"a":1}`, `{"b":"two"}`, `{}`}
	for _, p := range payloads {
		if err := fw.WriteFrame([]byte(p)); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	r := bufio.NewReader(&buf)
	for _, want := range payloads {
		got, err := ReadFrame(r)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(got) != want {
			t.Errorf("frame = %q, want %q", got, want)
		}
	}
}

func TestReadFrameMissingHeader(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("\r\n{\"a\":1}"))
	_, err := ReadFrame(r)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	tr, w := newFakeWorker()
	defer tr.Close(time.Second)

	w.handle("echo", func(params json.RawMessage) (interface{}, *RPCError) {
		var in map[string]string
		_ = json.Unmarshal(params, &in)
		return map[string]string{"echo": in["input"]}, nil
	})

	var out map[string]string
	err := tr.RoundTrip(context.Background(), "echo", map[string]string{"input": "hello"}, &out)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if out["echo"] != "hello" {
		t.Errorf("echo = %q, want %q", out["echo"], "hello")
	}
}

func TestRoundTripRPCError(t *testing.T) {
	tr, w := newFakeWorker()
	defer tr.Close(time.Second)

	w.handle("boom", func(json.RawMessage) (interface{}, *RPCError) {
		return nil, &RPCError{Code: CodeInternalError, Message: "kaput"}
	})

	err := tr.RoundTrip(context.Background(), "boom", nil, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInternalError {
		t.Fatalf("expected rpc error, got %v", err)
	}
}

func TestRoundTripTimeout(t *testing.T) {
	tr, w := newFakeWorker()
	defer tr.Close(time.Second)

	// No handler for "slow": the fake worker swallows the request.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tr.RoundTrip(ctx, "slow", nil, nil)
	if !IsTimeout(err) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}

	// The expired call must not poison the connection: the pending entry
	// is gone and a fresh round trip still works.
	w.handle("ping", func(json.RawMessage) (interface{}, *RPCError) {
		return map[string]bool{"ok": true}, nil
	})
	var out map[string]bool
	if err := tr.RoundTrip(context.Background(), "ping", nil, &out); err != nil {
		t.Fatalf("RoundTrip after timeout: %v", err)
	}
	if !out["ok"] {
		t.Error("expected ok response after timeout")
	}
}

func TestPendingCallsFailOnExit(t *testing.T) {
	tr, w := newFakeWorker()

	errCh := make(chan error, 1)
	go func() {
		errCh <- tr.RoundTrip(context.Background(), "slow", nil, nil)
	}()

	// Give the request time to land in the pending table, then kill the
	// worker out from under it.
	time.Sleep(20 * time.Millisecond)
	w.die(tr, 1)

	select {
	case err := <-errCh:
		var cerr *ConnectionError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected ConnectionError, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call was not failed on worker exit")
	}

	select {
	case ev := <-tr.Exit():
		if ev.Code != 1 {
			t.Errorf("exit code = %d, want 1", ev.Code)
		}
	case <-time.After(time.Second):
		t.Fatal("no exit event delivered")
	}
}

func TestRoundTripAfterCloseFailsFast(t *testing.T) {
	tr, w := newFakeWorker()
	w.die(tr, 0)

	err := tr.RoundTrip(context.Background(), "echo", nil, nil)
	var cerr *ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}
