package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/busmap-core/internal/infrastructure/config"
)

func newFakeClient(hub *Hub, channels ...string) *WSClient {
	c := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	return c
}

func TestHub_BroadcastToSubscribers(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	subscribed := newFakeClient(hub, EventRecordValueChanged)
	other := newFakeClient(hub, "something.else")
	hub.Register(subscribed)
	hub.Register(other)

	if hub.ClientCount() != 2 {
		t.Fatalf("ClientCount() = %d, want 2", hub.ClientCount())
	}

	hub.Broadcast(EventRecordValueChanged, map[string]any{"record": "relay"})

	select {
	case data := <-subscribed.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != WSTypeEvent || msg.EventType != EventRecordValueChanged {
			t.Errorf("msg = %+v", msg)
		}
	default:
		t.Error("subscribed client got nothing")
	}
	if len(other.send) != 0 {
		t.Error("unsubscribed client got the event")
	}
}

func TestHub_UnregisterClosesOnce(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	c := newFakeClient(hub, EventRecordValueChanged)
	hub.Register(c)

	hub.Unregister(c)
	hub.Unregister(c)

	if _, ok := <-c.send; ok {
		t.Error("send channel still open")
	}
	// Broadcasting to a removed client must not panic.
	c.trySend([]byte("late"))
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	c := newFakeClient(hub)
	hub.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestClient_HandleMessage(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantType string
	}{
		{"ping", `{"type":"ping","id":"1"}`, WSTypePong},
		{"subscribe", `{"type":"subscribe","id":"2","payload":{"channels":["record.value_changed"]}}`, WSTypeResponse},
		{"subscribe without channels", `{"type":"subscribe","id":"3","payload":{}}`, WSTypeError},
		{"unknown type", `{"type":"dance"}`, WSTypeError},
		{"bad json", `{`, WSTypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeClient(NewHub(config.WebSocketConfig{}, testLogger()))
			c.handleMessage([]byte(tt.in))

			var msg WSMessage
			if err := json.Unmarshal(<-c.send, &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if msg.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", msg.Type, tt.wantType)
			}
		})
	}
}

func TestClient_Unsubscribe(t *testing.T) {
	c := newFakeClient(NewHub(config.WebSocketConfig{}, testLogger()), EventRecordValueChanged)
	c.handleMessage([]byte(`{"type":"unsubscribe","payload":{"channels":["record.value_changed"]}}`))
	<-c.send

	if c.isSubscribed(EventRecordValueChanged) {
		t.Error("still subscribed")
	}
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocket_RecordUpdates(t *testing.T) {
	env := newTestEnv(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.srv.hub.Run(ctx)

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	resp.Body.Close()

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{EventRecordValueChanged}},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeResponse || msg.ID != "sub-1" {
		t.Fatalf("subscribe reply = %+v", msg)
	}

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/records/relay", strings.NewReader(`{"value":66}`))
	if err != nil {
		t.Fatal(err)
	}
	put, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT error = %v", err)
	}
	put.Body.Close()
	if put.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", put.StatusCode)
	}

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != EventRecordValueChanged {
		t.Fatalf("event = %+v", msg)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["record"] != "relay" || payload["value"] != float64(66) {
		t.Errorf("payload = %v", payload)
	}
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, "")
	env.srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("Dial() expected error")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
	if resp != nil {
		resp.Body.Close()
	}
}
