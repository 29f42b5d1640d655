package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/livechat-sdk-go/livechat"
)

func TestBuildRootCmd(t *testing.T) {
	root := buildRootCmd()
	want := map[string]bool{"chat": false, "watch": false, "rooms": false, "history": false, "upload": false, "whoami": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}

	rooms, _, err := root.Find([]string{"rooms", "create"})
	if err != nil || rooms.Name() != "create" {
		t.Fatalf("rooms create not found: %v", err)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Client.URL != "ws://localhost:3001/ws" || cfg.Client.MaxReconnectAttempts != 5 || cfg.Client.TypingTimeout != 3*time.Second {
		t.Fatalf("client = %+v", cfg.Client)
	}
	if cfg.API.BreakerFailures != 5 || cfg.Log.Format != "console" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigLayering(t *testing.T) {
	path := writeFile(t, "livechat.yaml", `
client:
  url: ws://chat.school.test/ws
  reconnect_delay: 2s
  max_reconnect_delay: 20s
api:
  base_url: https://chat.school.test/api
user:
  id: u-7
  name: Lin
log:
  level: debug
`)
	t.Setenv("LIVECHAT_CLIENT_MAX_RECONNECT_ATTEMPTS", "9")
	t.Setenv("LIVECHAT_USER_NAME", "Lin Wei")
	t.Setenv("LIVECHAT_LOG_FORMAT", "json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Client.URL != "ws://chat.school.test/ws" || cfg.Client.ReconnectDelay != 2*time.Second || cfg.Client.MaxReconnectDelay != 20*time.Second {
		t.Fatalf("file layer not applied: %+v", cfg.Client)
	}
	if cfg.Client.MaxReconnectAttempts != 9 || cfg.User.Name != "Lin Wei" || cfg.Log.Format != "json" {
		t.Fatalf("env layer not applied: %+v", cfg)
	}
	if cfg.Client.HandshakeTimeout != 20*time.Second || cfg.Log.Level != "debug" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigRejectsInvalidClient(t *testing.T) {
	path := writeFile(t, "bad.yaml", "client:\n  url: not a url\n")
	_, err := LoadConfig(path)
	if !errors.Is(err, livechat.ErrInvalidConfig) {
		t.Fatalf("err = %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"LIVECHAT_CLIENT_URL":                    "client.url",
		"LIVECHAT_CLIENT_MAX_RECONNECT_ATTEMPTS": "client.max_reconnect_attempts",
		"LIVECHAT_API_BASE_URL":                  "api.base_url",
		"LIVECHAT_CONFIG":                        "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUserIdentity(t *testing.T) {
	cfg := defaultConfig()
	if _, err := cfg.UserIdentity(); err == nil {
		t.Fatal("expected error without user or token")
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u-9", "name": "Noor"}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Client.Token = tok
	u, err := cfg.UserIdentity()
	if err != nil || u.ID != "u-9" || u.Name != "Noor" {
		t.Fatalf("user = %+v, %v", u, err)
	}

	cfg.User = UserConfig{ID: "u-1", Name: "Explicit"}
	if u, _ := cfg.UserIdentity(); u.ID != "u-1" {
		t.Fatalf("explicit user ignored: %+v", u)
	}
}

func TestPrintEvent(t *testing.T) {
	var buf bytes.Buffer
	show := printEvent(&buf, "u-me")

	show(livechat.MessageEvent{Message: livechat.Message{RoomID: "r1", SenderName: "Bob", Content: "hi", Type: livechat.MessageText}})
	show(livechat.MessageEvent{Message: livechat.Message{RoomID: "r1", SenderID: "u2", Type: livechat.MessageImage, Metadata: map[string]any{"url": "https://x/y.png"}}})
	show(livechat.UserEvent{RoomID: "r1", UserID: "u-me", Joined: true})
	show(livechat.UserEvent{RoomID: "r1", UserID: "u3", UserName: "Cy", Joined: false})
	show(livechat.TypingEvent{RoomID: "r1", UserID: "u3", IsTyping: true})
	show(livechat.TypingEvent{RoomID: "r1", UserID: "u3", IsTyping: false})
	show(livechat.StateEvent{OldState: livechat.StateConnected, NewState: livechat.StateDisconnected, Reason: livechat.ReasonTransportClose})

	want := strings.Join([]string{
		"[r1] Bob: hi",
		"[r1] u2 sent image: https://x/y.png",
		"<<< Cy left r1",
		"... u3 is typing in r1",
		"*** connected -> disconnected (transport close)",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Fatalf("output:\n%s\nwant:\n%s", got, want)
	}
}

func TestRoomsListCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rooms" || r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, `{"error":"nope"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"r1","name":"Biology","type":"public","unreadCount":3}]`))
	}))
	defer srv.Close()

	t.Setenv("LIVECHAT_API_BASE_URL", srv.URL+"/api")
	t.Setenv("LIVECHAT_CLIENT_TOKEN", "tok")
	t.Chdir(t.TempDir())

	root := buildRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"rooms", "list"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "Biology") || !strings.Contains(out.String(), "3") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestDetectContentType(t *testing.T) {
	path := writeFile(t, "pic.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	got, err := detectContentType(path)
	if err != nil || got != "image/png" {
		t.Fatalf("detectContentType = %q, %v", got, err)
	}
}
