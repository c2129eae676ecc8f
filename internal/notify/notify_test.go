package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestNotifier(t *testing.T, handler http.HandlerFunc) (*Notifier, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	n := New(Config{BotToken: "tok", ChatID: "123"}, zerolog.Nop())
	n.apiBase = server.URL + "/bot"
	n.httpClient = server.Client()
	return n, server
}

func TestNotify_NotConfiguredIsNoop(t *testing.T) {
	n := New(Config{}, zerolog.Nop())
	if n.IsConfigured() {
		t.Fatal("expected unconfigured notifier")
	}
	if err := n.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify() error = %v, want nil no-op", err)
	}
}

func TestNotify_SendsMessage(t *testing.T) {
	var gotPath string
	n, server := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"ok":true}`))
	})
	defer server.Close()

	if err := n.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if !strings.HasSuffix(gotPath, "/sendMessage") {
		t.Fatalf("unexpected path: %q", gotPath)
	}
}

func TestNotifyOrganized_FormatsMessage(t *testing.T) {
	var gotBody string
	n, server := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Write([]byte(`{"ok":true}`))
	})
	defer server.Close()

	if err := n.NotifyOrganized(context.Background(), "My Show", 1, 1); err != nil {
		t.Fatalf("NotifyOrganized() error = %v", err)
	}
	if !strings.Contains(gotBody, "organized My Show S01E01") {
		t.Fatalf("unexpected body: %q", gotBody)
	}
}

func TestNotify_TelegramErrorPropagates(t *testing.T) {
	n, server := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	})
	defer server.Close()

	err := n.Notify(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("Notify() error = %v, want chat not found", err)
	}
}
