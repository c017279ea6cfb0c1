package eth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWSClient_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Keep connection open
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		// Read subscribe request
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "eth_subscribe" {
			t.Errorf("expected eth_subscribe, got %s", req.Method)
		}

		// Send subscription confirmation
		resp := wsSubscribeResponse{JSONRPC: "2.0", ID: req.ID, Result: "0xcd0c3e8af590364c09d0fa6a1210faf5"}
		if err := c.WriteJSON(resp); err != nil {
			t.Errorf("write response: %v", err)
			return
		}

		// Send a log notification immediately behind the confirmation;
		// the channel must already be registered when it lands.
		notif := wsNotification{
			JSONRPC: "2.0",
			Method:  "eth_subscription",
			Params: &wsNotificationParams{
				Subscription: "0xcd0c3e8af590364c09d0fa6a1210faf5",
				Result: getLogsResult{
					Address:     "0xC36442b4a4522E871399CD717aBDD847Ab11FE88",
					Topics:      []string{"0x3067048beee31b25b2f1681f88dac838c8bba36af25bfb2b7cf7473a5847e35f"},
					Data:        "0x01",
					BlockNumber: "0x112a880",
					TxHash:      "0xaa00000000000000000000000000000000000000000000000000000000000000",
					LogIndex:    "0x0",
				},
			},
		}
		if err := c.WriteJSON(notif); err != nil {
			t.Errorf("write notification: %v", err)
			return
		}

		// Keep connection open
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogFilter{})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case l := <-ch:
		if l.BlockNumber != 18000000 {
			t.Errorf("expected block 18000000, got %d", l.BlockNumber)
		}
		if len(l.Topics) != 1 {
			t.Errorf("expected 1 topic, got %d", len(l.Topics))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for log notification")
	}
}

func TestWSClient_ResubscribesAfterReconnect(t *testing.T) {
	var connCount atomic.Int32
	subscribed := make(chan string, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connCount.Add(1)

		_, msg, err := c.ReadMessage()
		if err != nil {
			c.Close()
			return
		}
		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			c.Close()
			return
		}
		subscribed <- req.Method

		subID := fmt.Sprintf("0x%02x", n)
		if err := c.WriteJSON(wsSubscribeResponse{JSONRPC: "2.0", ID: req.ID, Result: subID}); err != nil {
			c.Close()
			return
		}

		// Drop the first connection right after confirming, forcing the
		// client to reconnect and subscribe again.
		if n == 1 {
			c.Close()
			return
		}

		notif := wsNotification{
			JSONRPC: "2.0",
			Method:  "eth_subscription",
			Params: &wsNotificationParams{
				Subscription: subID,
				Result: getLogsResult{
					Address:     "0xC36442b4a4522E871399CD717aBDD847Ab11FE88",
					Topics:      []string{"0x3067048beee31b25b2f1681f88dac838c8bba36af25bfb2b7cf7473a5847e35f"},
					Data:        "0x01",
					BlockNumber: "0x112a880",
					TxHash:      "0xbb00000000000000000000000000000000000000000000000000000000000000",
					LogIndex:    "0x0",
				},
			},
		}
		if err := c.WriteJSON(notif); err != nil {
			c.Close()
			return
		}

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				c.Close()
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 50 * time.Millisecond
	client, err := NewWSClient(context.Background(), wsURL, &cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogFilter{})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	// The log is only delivered on the second connection, so receiving it
	// proves the subscription survived the reconnect on the same channel.
	select {
	case l := <-ch:
		if l.BlockNumber != 18000000 {
			t.Errorf("expected block 18000000, got %d", l.BlockNumber)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for log after reconnect")
	}

	if got := connCount.Load(); got < 2 {
		t.Errorf("expected at least 2 connections, got %d", got)
	}
	for i := 0; i < 2; i++ {
		select {
		case method := <-subscribed:
			if method != "eth_subscribe" {
				t.Errorf("connection %d: expected eth_subscribe, got %s", i+1, method)
			}
		default:
			t.Errorf("expected 2 subscribe requests, got %d", i)
		}
	}
}

func TestWSClient_CloseIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
