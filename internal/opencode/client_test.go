package opencode

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func TestNewClientValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected missing base url error")
	}
	if _, err := New(Config{BaseURL: "not-a-url"}); err == nil {
		t.Fatalf("expected invalid base url error")
	}
	client, err := New(Config{BaseURL: "http://127.0.0.1:4096/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.BaseURL() != "http://127.0.0.1:4096" {
		t.Fatalf("unexpected base url: %q", client.BaseURL())
	}
}

func TestClientSessionLifecycle(t *testing.T) {
	const password = "secret"
	var sendBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("opencode:"+password))
		if r.Header.Get("Authorization") != want {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/global/health":
			writeJSON(w, http.StatusOK, map[string]any{"healthy": true, "version": "1.0.0"})
		case r.Method == http.MethodGet && r.URL.Path == "/session":
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": "ses_a", "title": "desktop", "time": map[string]any{"created": 1700000000000, "updated": 1700000000000}},
				{"id": "ses_b", "title": "other"},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/session":
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			writeJSON(w, http.StatusOK, map[string]any{"id": "ses_new", "title": payload["title"]})
		case r.Method == http.MethodPost && r.URL.Path == "/session/ses_new/message":
			_ = json.NewDecoder(r.Body).Decode(&sendBody)
			writeJSON(w, http.StatusOK, map[string]any{"info": map[string]any{"id": "msg_reply", "role": "assistant"}})
		case r.Method == http.MethodGet && r.URL.Path == "/session/ses_new/message":
			writeJSON(w, http.StatusOK, []map[string]any{
				{
					"info":  map[string]any{"id": "msg_1", "role": "user", "time": map[string]any{"created": 1700000000000}},
					"parts": []map[string]any{{"id": "prt_1", "type": "text", "text": "hello"}},
				},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/session/ses_new/abort":
			writeJSON(w, http.StatusOK, true)
		case r.Method == http.MethodDelete && r.URL.Path == "/session/ses_new":
			writeJSON(w, http.StatusOK, true)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Password: password, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	healthy, err := client.Health(ctx)
	if err != nil || !healthy {
		t.Fatalf("Health: healthy=%v err=%v", healthy, err)
	}
	sessions, err := client.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "ses_a" || !sessions[0].HasTitle("desktop") {
		t.Fatalf("unexpected sessions: %#v", sessions)
	}
	if sessions[0].Time == nil || sessions[0].Time.Created.UnixMilli() != 1700000000000 {
		t.Fatalf("expected parsed session time, got %#v", sessions[0].Time)
	}
	created, err := client.CreateSession(ctx, "desktop")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if created.ID != "ses_new" || created.Title != "desktop" {
		t.Fatalf("unexpected created session: %#v", created)
	}
	if _, err := client.SendMessage(ctx, "ses_new", "hello", "msg_token"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if sendBody["messageID"] != "msg_token" {
		t.Fatalf("expected messageID in body, got %#v", sendBody)
	}
	parts, _ := sendBody["parts"].([]any)
	if len(parts) != 1 {
		t.Fatalf("expected one part, got %#v", sendBody["parts"])
	}
	part, _ := parts[0].(map[string]any)
	if part["type"] != "text" || part["text"] != "hello" {
		t.Fatalf("unexpected part: %#v", part)
	}
	messages, err := client.ListMessages(ctx, "ses_new")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 1 || messages[0].ID() != "msg_1" || messages[0].Text() != "hello" {
		t.Fatalf("unexpected messages: %#v", messages)
	}
	if err := client.AbortSession(ctx, "ses_new"); err != nil {
		t.Fatalf("AbortSession: %v", err)
	}
	if err := client.DeleteSession(ctx, "ses_new"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
}

func TestClientSendMessageOmitsEmptyMessageID(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.SendMessage(context.Background(), "ses_1", "hi", ""); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, ok := body["messageID"]; ok {
		t.Fatalf("expected no messageID, got %#v", body)
	}
	if _, err := client.SendMessage(context.Background(), "ses_1", "   ", ""); err == nil {
		t.Fatalf("expected error for blank text")
	}
	if _, err := client.SendMessage(context.Background(), "", "hi", ""); err == nil {
		t.Fatalf("expected error for missing session id")
	}
}

func TestClientDeleteSessionTreatsNotFoundAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/gone":
			http.Error(w, "session not found", http.StatusNotFound)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.DeleteSession(context.Background(), "gone"); err != nil {
		t.Fatalf("expected 404 delete to succeed, got %v", err)
	}
	err = client.DeleteSession(context.Background(), "broken")
	if err == nil {
		t.Fatalf("expected 500 delete to fail")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T (%v)", err, err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError || reqErr.Method != http.MethodDelete {
		t.Fatalf("unexpected request error: %#v", reqErr)
	}
	if !strings.Contains(reqErr.Error(), "boom") {
		t.Fatalf("expected server message in error, got %q", reqErr.Error())
	}
	if IsNotFound(err) {
		t.Fatalf("500 is not a not-found error")
	}
}

func TestClientWaitForServer(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"healthy": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"healthy": true})
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.WaitForServer(context.Background(), 5, time.Millisecond); err != nil {
		t.Fatalf("WaitForServer: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 health probes, got %d", got)
	}
}

func TestClientWaitForServerGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"healthy": false})
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.WaitForServer(context.Background(), 3, time.Millisecond); err == nil {
		t.Fatalf("expected WaitForServer to fail")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 health probes, got %d", got)
	}
}
