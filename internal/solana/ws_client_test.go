package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
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
			_, _, err := conn.ReadMessage()
			if err != nil {
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

func TestWSClient_SubscribeSignature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}

		if req.Method != "signatureSubscribe" {
			t.Errorf("expected signatureSubscribe, got %s", req.Method)
		}
		if len(req.Params) == 0 || req.Params[0] != "testsig" {
			t.Errorf("unexpected params: %v", req.Params)
		}

		subID := int64(12345)
		if err := c.WriteJSON(wsSubscribeResponse{JSONRPC: "2.0", ID: req.ID, Result: &subID}); err != nil {
			t.Errorf("write response: %v", err)
			return
		}

		// Notification immediately after the confirmation
		notif := wsNotification{
			JSONRPC: "2.0",
			Method:  "signatureNotification",
			Params: &wsNotificationParams{
				Subscription: subID,
				Result: wsNotificationResult{
					Context: &wsContext{Slot: 100},
					Value:   wsSignatureValue{Err: nil},
				},
			},
		}
		if err := c.WriteJSON(notif); err != nil {
			t.Errorf("write notification: %v", err)
			return
		}

		for {
			_, _, err := c.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeSignature(ctx, "testsig")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	select {
	case notif, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before notification")
		}
		if notif.Signature != "testsig" {
			t.Errorf("expected testsig, got %s", notif.Signature)
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
		if notif.Err != nil {
			t.Errorf("expected no error, got %v", notif.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel closed after single notification")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after notification")
	}
}

func TestWSClient_SubscribeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		// Never confirm subscriptions
		for {
			_, _, err := c.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	cfg := DefaultWSConfig()
	cfg.SubscribeTimeout = 100 * time.Millisecond

	client, err := NewWSClient(context.Background(), wsURL, &cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribeSignature(context.Background(), "sig"); err == nil {
		t.Fatal("expected subscription timeout")
	}
}

func TestWSClient_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
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
		t.Errorf("Close: %v", err)
	}

	// Double close should be safe
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}

	if _, err := client.SubscribeSignature(context.Background(), "sig"); err == nil {
		t.Error("expected error subscribing on closed client")
	}
}

func TestWSClient_UnsubscribeSignature(t *testing.T) {
	received := make(chan wsRequest, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		var sub wsRequest
		if err := c.ReadJSON(&sub); err != nil {
			return
		}
		subID := int64(777)
		if err := c.WriteJSON(wsSubscribeResponse{JSONRPC: "2.0", ID: sub.ID, Result: &subID}); err != nil {
			t.Errorf("write response: %v", err)
			return
		}

		var unsub wsRequest
		if err := c.ReadJSON(&unsub); err != nil {
			return
		}
		received <- unsub

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeSignature(ctx, "expiredsig")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}
	if err := client.UnsubscribeSignature(ctx, "expiredsig"); err != nil {
		t.Fatalf("UnsubscribeSignature: %v", err)
	}

	select {
	case req := <-received:
		if req.Method != "signatureUnsubscribe" {
			t.Errorf("expected signatureUnsubscribe, got %s", req.Method)
		}
		// JSON numbers decode as float64
		if len(req.Params) != 1 || req.Params[0] != float64(777) {
			t.Errorf("unexpected params: %v", req.Params)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for unsubscribe request")
	}

	if _, ok := <-ch; ok {
		t.Error("expected channel closed after unsubscribe")
	}

	client.subsMu.Lock()
	left := len(client.subs)
	client.subsMu.Unlock()
	if left != 0 {
		t.Errorf("expected no subscriptions left, got %d", left)
	}

	// A second call is a no-op
	if err := client.UnsubscribeSignature(ctx, "expiredsig"); err != nil {
		t.Errorf("repeat UnsubscribeSignature: %v", err)
	}
}
