package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"event-rewards-service/internal/app"
	"event-rewards-service/internal/domain"
	"event-rewards-service/internal/infra/memory"
)

func sampleEvents() []domain.Event {
	return []domain.Event{
		{
			ID:       "event-quiz",
			Title:    "Company Quiz",
			Type:     domain.EventTypeQuiz,
			Points:   50,
			IsActive: true,
			Quiz: &domain.Quiz{
				PassThreshold: 50,
				Questions: []domain.Question{
					{ID: "q1", Answers: []domain.Answer{{ID: "q1a1", Correct: true}, {ID: "q1a2"}}},
					{ID: "q2", Answers: []domain.Answer{{ID: "q2a1"}, {ID: "q2a2", Correct: true}}},
				},
			},
		},
		{ID: "event-photo", Title: "Photo Challenge", Type: domain.EventTypePhoto, Points: 20, IsActive: true},
	}
}

func sampleMerch() []domain.Merchandise {
	return []domain.Merchandise{
		{ID: "merch-cap", Name: "Cap", Type: domain.MerchCap, PointsCost: 40, StockQuantity: 3, IsAvailable: true},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.Ledger, *app.Broadcaster) {
	t.Helper()
	events := sampleEvents()
	merch := sampleMerch()

	feed := app.NewBroadcaster()
	catalog := memory.NewCatalog(memory.NewStaticCatalogLoader(events, merch), time.Minute)
	ledger := memory.NewLedger(feed)
	participation := app.NewParticipationService(catalog, memory.NewParticipationStore(), ledger)
	rewards := app.NewRewardsService(catalog, memory.NewInventory(merch), ledger, memory.NewOrderStore())

	handler := NewHandler(participation, rewards, ledger, feed, nil)
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return server, ledger, feed
}

func doJSON(t *testing.T, method, url, participant string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if participant != "" {
		req.Header.Set(participantHeader, participant)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestAPIRequiresParticipantHeader(t *testing.T) {
	server, _, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/events", "", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.StatusCode)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	server, _, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, server.URL+"/healthz", "", nil, nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: status=%d body=%v", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodGet, server.URL+"/readyz", "", nil, nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("readyz: status=%d body=%v", resp.StatusCode, body)
	}
}

func TestQuizFlowEndToEnd(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/events", "alice", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list events: %d", resp.StatusCode)
	}
	if events := body["events"].([]interface{}); len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/events/event-quiz/start", "alice", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: %d %v", resp.StatusCode, body)
	}
	// The started event must not leak correct answers.
	raw, _ := json.Marshal(body["event"])
	if bytes.Contains(raw, []byte(`"correct":true`)) {
		t.Fatalf("start response leaks correctness markers: %s", raw)
	}

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/events/event-quiz/answer", "alice",
		map[string]string{"question_id": "q1", "answer_id": "q1a1"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answer: %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/events/event-quiz/submit-quiz", "alice",
		map[string]interface{}{"answers": map[string]string{"q2": "q2a2"}}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d %v", resp.StatusCode, body)
	}
	result := body["result"].(map[string]interface{})
	if result["scorePercent"].(float64) != 100 || result["passed"] != true {
		t.Fatalf("unexpected result: %v", result)
	}
	if body["balance"].(float64) != 50 {
		t.Fatalf("expected balance 50, got %v", body["balance"])
	}

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/points", "alice", nil, nil)
	if resp.StatusCode != http.StatusOK || body["balance"].(float64) != 50 {
		t.Fatalf("points: status=%d body=%v", resp.StatusCode, body)
	}
	if history := body["history"].([]interface{}); len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/completed-events", "alice", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("completed-events: %d", resp.StatusCode)
	}
	if completed := body["completed"].([]interface{}); len(completed) != 1 {
		t.Fatalf("expected 1 completed event, got %d", len(completed))
	}
}

func TestFeedbackFlowOverHTTP(t *testing.T) {
	server, _, _ := newTestServer(t)

	if resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/events/event-photo/start", "alice", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("start: %d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/events/event-photo/complete", "alice", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/events/event-photo/feedback", "alice",
		map[string]interface{}{"rating": 9}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("rating 9 should be 400, got %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/events/event-photo/feedback", "alice",
		map[string]interface{}{"rating": 5, "comment": "great"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feedback: %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/events/event-photo/feedback/skip", "alice", nil, nil)
	if resp.StatusCode != http.StatusConflict || body["code"] != "INVALID_STATE" {
		t.Fatalf("skip after feedback should conflict, got %d %v", resp.StatusCode, body)
	}
}

func TestPurchaseOverHTTP(t *testing.T) {
	server, ledger, _ := newTestServer(t)
	if _, err := ledger.Credit(context.Background(), "alice", 100, domain.ReasonEventReward, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/merchandise/merch-cap/purchase", "alice",
		map[string]interface{}{"quantity": 1, "delivery_address": "Dorm 5", "phone": "555-1234"},
		map[string]string{"Idempotency-Key": "buy-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("purchase: %d %v", resp.StatusCode, body)
	}
	if body["remaining_points"].(float64) != 60 {
		t.Fatalf("expected 60 remaining, got %v", body["remaining_points"])
	}
	order := body["order"].(map[string]interface{})
	if order["status"] != string(domain.OrderConfirmed) {
		t.Fatalf("unexpected order: %v", order)
	}

	// Replay with the same idempotency key returns the same order.
	resp, replay := doJSON(t, http.MethodPost, server.URL+"/api/merchandise/merch-cap/purchase", "alice",
		map[string]interface{}{"quantity": 1, "delivery_address": "Dorm 5"},
		map[string]string{"Idempotency-Key": "buy-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("replay: %d %v", resp.StatusCode, replay)
	}
	if replay["order"].(map[string]interface{})["id"] != order["id"] {
		t.Fatalf("replay created a second order: %v", replay["order"])
	}
	if replay["remaining_points"].(float64) != 60 {
		t.Fatalf("replay changed balance: %v", replay["remaining_points"])
	}

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/merchandise/merch-cap/purchase", "alice",
		map[string]interface{}{"quantity": 2, "delivery_address": "Dorm 5"}, nil)
	if resp.StatusCode != http.StatusConflict || body["code"] != "INSUFFICIENT_FUNDS" {
		t.Fatalf("expected INSUFFICIENT_FUNDS conflict, got %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/orders", "alice", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("orders: %d", resp.StatusCode)
	}
	if orders := body["orders"].([]interface{}); len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/merchandise/merch-cap", "alice", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get merchandise: %d", resp.StatusCode)
	}
	if body["remainingStock"].(float64) != 2 {
		t.Fatalf("expected remaining stock 2, got %v", body["remainingStock"])
	}
}

func TestErrorMapping(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/events/no-such-event", "alice", nil, nil)
	if resp.StatusCode != http.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/events/event-quiz/submit-quiz", "alice",
		map[string]interface{}{"answers": map[string]string{}}, nil)
	if resp.StatusCode != http.StatusConflict || body["code"] != "INVALID_STATE" {
		t.Fatalf("submit before start should be INVALID_STATE, got %d %v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/events/event-quiz/answer", "alice",
		map[string]string{"question_id": "q1"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing answer_id should be 400, got %d", resp.StatusCode)
	}
}

func TestGetOrderByID(t *testing.T) {
	server, ledger, _ := newTestServer(t)
	if _, err := ledger.Credit(context.Background(), "alice", 100, domain.ReasonEventReward, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/merchandise/merch-cap/purchase", "alice",
		map[string]interface{}{"quantity": 1, "delivery_address": "Dorm 5"},
		map[string]string{"Idempotency-Key": "buy-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("purchase: %d %v", resp.StatusCode, body)
	}
	orderID := body["order"].(map[string]interface{})["id"].(string)

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/orders/"+orderID, "alice", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get order: %d %v", resp.StatusCode, body)
	}
	if got := body["order"].(map[string]interface{}); got["id"] != orderID || got["merchId"] != "merch-cap" {
		t.Fatalf("unexpected order: %v", got)
	}

	// Another participant must not see alice's order.
	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/orders/"+orderID, "bob", nil, nil)
	if resp.StatusCode != http.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for foreign order, got %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/orders/no-such-order", "alice", nil, nil)
	if resp.StatusCode != http.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for unknown id, got %d %v", resp.StatusCode, body)
	}
}
