package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBotSenderSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewBotSender("secret-token", srv.URL)
	if err := s.Send(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotPath != "/botsecret-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["chat_id"] != float64(42) || gotBody["text"] != "hello" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestBotSenderReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, 400)
	}))
	defer srv.Close()

	s := NewBotSender("tok", srv.URL)
	if err := s.Send(context.Background(), 1, "hi"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
