package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/bigkaa/capystore/internal/testutil"
)

func newHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(testutil.DiscardLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, r.URL.Query().Get("channel")); err != nil {
			t.Logf("ServeWS: %v", err)
		}
	}))
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, channel string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?channel=" + channel
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

// waitClients ждёт, пока в канале станет want клиентов.
func waitClients(t *testing.T, hub *Hub, channel string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Clients(channel) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("в канале %s %d клиентов, ожидали %d", channel, hub.Clients(channel), want)
}

func TestHub_Broadcast(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, srv := newHubServer(t)
	defer srv.Close()
	defer hub.Close()

	admin := dial(t, srv, "admin_approval")
	defer admin.Close()
	other := dial(t, srv, "other")
	defer other.Close()
	waitClients(t, hub, "admin_approval", 1)
	waitClients(t, hub, "other", 1)

	payload := map[string]string{"_id": "abc"}
	if err := hub.Broadcast(context.Background(), "admin_approval", "approval_update", payload); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	_ = admin.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := admin.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var msg struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if msg.Event != "approval_update" || msg.Data["_id"] != "abc" {
		t.Errorf("получено сообщение %s", data)
	}

	// Клиент другого канала сообщение не получает
	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("клиент другого канала получил сообщение")
	}
}

// TestHub_Disconnect проверяет удаление клиента после отключения.
func TestHub_Disconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, srv := newHubServer(t)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv, "admin_approval")
	waitClients(t, hub, "admin_approval", 1)

	conn.Close()
	waitClients(t, hub, "admin_approval", 0)

	// Рассылка в пустой канал — не ошибка
	if err := hub.Broadcast(context.Background(), "admin_approval", "approval_update", nil); err != nil {
		t.Errorf("Broadcast в пустой канал: %v", err)
	}
}

// TestHub_Close проверяет отключение всех клиентов.
func TestHub_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, srv := newHubServer(t)
	defer srv.Close()

	conn := dial(t, srv, "admin_approval")
	defer conn.Close()
	waitClients(t, hub, "admin_approval", 1)

	hub.Close()
	waitClients(t, hub, "admin_approval", 0)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("ожидалась ошибка чтения после Close")
	}
}
