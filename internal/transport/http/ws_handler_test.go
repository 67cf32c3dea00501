package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"event-rewards-service/internal/domain"
)

func TestWebSocketStreamsLedgerUpdates(t *testing.T) {
	server, ledger, _ := newTestServer(t)

	u := "ws" + server.URL[len("http"):] + "/ws?participantId=alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the handler a beat to register its subscription.
	time.Sleep(50 * time.Millisecond)

	if _, err := ledger.Credit(context.Background(), "alice", 50, domain.ReasonEventReward, "event:quiz:alice"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := ledger.Credit(context.Background(), "bob", 20, domain.ReasonEventReward, "event:photo:bob"); err != nil {
		t.Fatalf("credit bob: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "ledger" {
		t.Fatalf("expected ledger message, got %q", msg.Type)
	}
	if msg.Payload.ParticipantID != "alice" || msg.Payload.Balance != 50 {
		t.Fatalf("unexpected payload: %+v", msg.Payload)
	}

	// Bob's credit must not reach alice's feed.
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var extra wsMessage
	if err := conn.ReadJSON(&extra); err == nil {
		t.Fatalf("received foreign record: %+v", extra.Payload)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	server, _, _ := newTestServer(t)

	u := "ws" + server.URL[len("http"):] + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatal("expected dial to fail without identity")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestWebSocketAcceptsHeaderIdentity(t *testing.T) {
	server, ledger, _ := newTestServer(t)

	header := http.Header{}
	header.Set(participantHeader, "alice")
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	if _, err := ledger.Credit(context.Background(), "alice", 10, domain.ReasonEventReward, "ref-h"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Payload.Delta != 10 {
		t.Fatalf("unexpected payload: %+v", msg.Payload)
	}
}
