package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"arbflow/models"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.Handle))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
}

func TestHubBroadcastsScanResults(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)
	defer conn.Close()

	waitForClients(t, hub, 1)

	result := models.ScanResult{
		ScanID: "scan-1",
		Opportunities: []models.Opportunity{
			{BaseCurrency: "BTC", SpreadPercent: 5.13, BuyPair: "BTC/USDT", SellPair: "BTC/EUR"},
		},
		Count:     1,
		Timestamp: "12:30:45",
		Source:    models.SnapshotSourceLive,
	}
	if err := hub.Publish(context.Background(), result); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event struct {
		Event         string               `json:"event"`
		Opportunities []models.Opportunity `json:"opportunities"`
		Count         int                  `json:"count"`
		Timestamp     string               `json:"timestamp"`
	}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}

	if event.Event != "new_opportunities" {
		t.Errorf("event = %q, want new_opportunities", event.Event)
	}
	if event.Count != 1 || len(event.Opportunities) != 1 {
		t.Errorf("unexpected payload: %+v", event)
	}
	if event.Opportunities[0].BaseCurrency != "BTC" {
		t.Errorf("BaseCurrency = %q, want BTC", event.Opportunities[0].BaseCurrency)
	}
}

func TestHubRemovesDisconnectedClients(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)

	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubPublishWithNoClients(t *testing.T) {
	hub := NewHub()
	if err := hub.Publish(context.Background(), models.ScanResult{ScanID: "scan-1"}); err != nil {
		t.Errorf("Publish() with no clients should succeed, got %v", err)
	}
}
