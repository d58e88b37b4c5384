package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type stubNotifier struct {
	name    string
	enabled bool
	err     error
	sent    int
}

func (s *stubNotifier) Send(n *Notification) error { s.sent++; return s.err }
func (s *stubNotifier) Name() string               { return s.name }
func (s *stubNotifier) IsEnabled() bool            { return s.enabled }

func TestManager_FanOutCollectsResults(t *testing.T) {
	ok := &stubNotifier{name: "telegram", enabled: true}
	bad := &stubNotifier{name: "slack", enabled: true, err: errors.New("boom")}
	off := &stubNotifier{name: "discord", enabled: false}

	m := NewManager()
	m.AddNotifier(ok)
	m.AddNotifier(bad)
	m.AddNotifier(off)

	sent, failed := m.Send(&Notification{Kind: KindProximity, Title: "t", Message: "m"})
	if len(sent) != 1 || sent[0] != "telegram" {
		t.Errorf("sent = %v, want [telegram]", sent)
	}
	if len(failed) != 1 || failed["slack"] != "boom" {
		t.Errorf("failed = %v", failed)
	}
	if off.sent != 0 {
		t.Errorf("disabled transport was called")
	}
	// the failing channel must not stop the healthy one
	if ok.sent != 1 {
		t.Errorf("telegram sent %d times, want 1", ok.sent)
	}
}

func TestManager_Enabled(t *testing.T) {
	m := NewManager()
	if m.Enabled() {
		t.Error("empty manager reports enabled")
	}
	m.AddNotifier(&stubNotifier{name: "a", enabled: false})
	if m.Enabled() {
		t.Error("manager with only disabled transports reports enabled")
	}
	m.AddNotifier(&stubNotifier{name: "b", enabled: true})
	if !m.Enabled() {
		t.Error("manager with an enabled transport reports disabled")
	}
}

func TestTelegram_SendsToEveryChatAsHTML(t *testing.T) {
	var calls int32
	var chats []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if !strings.HasPrefix(r.URL.Path, "/bot123:abc/sendMessage") {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		chats = append(chats, body["chat_id"])
		if body["parse_mode"] != "HTML" {
			t.Errorf("parse_mode = %q", body["parse_mode"])
		}
		if !strings.Contains(body["text"], "&lt;ATOM&gt;") {
			t.Errorf("title not HTML-escaped: %q", body["text"])
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier(TelegramConfig{
		BaseURL: srv.URL,
		Token:   "123:abc",
		ChatIDs: []string{"11", "22"},
		Enabled: true,
	})
	if !tn.IsEnabled() {
		t.Fatal("notifier not enabled")
	}
	if err := tn.Send(&Notification{Title: "<ATOM> near B2", Message: "body"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("made %d calls, want one per chat", calls)
	}
	if len(chats) != 2 || chats[0] != "11" || chats[1] != "22" {
		t.Errorf("chats = %v", chats)
	}
}

func TestTelegram_DisabledWithoutCredentials(t *testing.T) {
	tn := NewTelegramNotifier(TelegramConfig{Token: "x", Enabled: true})
	if tn.IsEnabled() {
		t.Error("enabled without chat ids")
	}
	tn = NewTelegramNotifier(TelegramConfig{ChatIDs: []string{"1"}, Enabled: true})
	if tn.IsEnabled() {
		t.Error("enabled without token")
	}
}

func TestSlack_SendPostsWebhook(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sn := NewSlackNotifier(SlackConfig{WebhookURL: srv.URL, Enabled: true})
	if err := sn.Send(&Notification{Title: "BTCUSDT near B1", Message: "price 52000"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(got, "*BTCUSDT near B1*") {
		t.Errorf("payload = %q", got)
	}
}

func TestSlack_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no_service", http.StatusNotFound)
	}))
	defer srv.Close()

	sn := NewSlackNotifier(SlackConfig{WebhookURL: srv.URL, Enabled: true})
	if err := sn.Send(&Notification{Title: "t"}); err == nil {
		t.Error("expected error on 404")
	}
}
