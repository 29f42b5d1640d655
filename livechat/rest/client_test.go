package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/vovakirdan/livechat-sdk-go/livechat"
	"github.com/vovakirdan/livechat-sdk-go/livechat/state"
)

var (
	_ livechat.Uploader = (*Client)(nil)
	_ state.RoomAPI     = (*Client)(nil)
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rooms", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing token"})
			return
		}
		writeJSON(w, http.StatusOK, []livechat.Room{{ID: "r1", Name: "Biology", Type: livechat.RoomTypePublic, UnreadCount: 2}})
	})
	mux.HandleFunc("POST /rooms", func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "name is required"})
			return
		}
		writeJSON(w, http.StatusCreated, livechat.Room{ID: "r2", Name: req.Name, Type: req.Type, Participants: req.Participants})
	})
	mux.HandleFunc("PATCH /rooms/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req UpdateRoomRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, livechat.Room{ID: r.PathValue("id"), Name: req.Name})
	})
	mux.HandleFunc("DELETE /rooms/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "missing" {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /rooms/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "2" || q.Get("before") != "m9" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad cursor " + r.URL.RawQuery})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"messages": []map[string]any{
				{"id": "m7", "senderId": "bob", "content": "first", "timestamp": "2026-03-01T10:00:00Z"},
				{"id": "m8", "roomId": r.PathValue("id"), "senderId": "bob", "content": "second", "timestamp": "2026-03-01T10:01:00Z"},
			},
			"hasMore": true,
		})
	})
	mux.HandleFunc("POST /uploads", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		writeJSON(w, http.StatusOK, livechat.UploadResult{
			URL:      "https://files.test/" + hdr.Filename,
			FileName: hdr.Filename,
			Size:     int64(len(data)),
			MimeType: hdr.Header.Get("Content-Type"),
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL)
	c.SetToken("tok")
	return srv, c
}

func TestRooms(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	rooms, err := c.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].Name != "Biology" || rooms[0].UnreadCount != 2 {
		t.Fatalf("rooms = %+v", rooms)
	}

	room, err := c.CreateRoom(ctx, "Lab partners", livechat.RoomTypePrivate, []string{"u1", "u2"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.ID != "r2" || room.Type != livechat.RoomTypePrivate || len(room.Participants) != 2 {
		t.Fatalf("room = %+v", room)
	}

	room, err = c.UpdateRoom(ctx, "r2", "Lab partners (A)")
	if err != nil || room.Name != "Lab partners (A)" || room.ID != "r2" {
		t.Fatalf("UpdateRoom = %+v, %v", room, err)
	}

	if err := c.DeleteRoom(ctx, "r2"); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
}

func TestAPIErrors(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	_, err := c.CreateRoom(ctx, "", livechat.RoomTypePublic, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "name is required" {
		t.Fatalf("err = %v", err)
	}

	err = c.DeleteRoom(ctx, "missing")
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Temporary() {
		t.Fatalf("err = %v", err)
	}

	c.SetToken("")
	if _, err := c.ListRooms(ctx); !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}
	if c.BreakerState() != gobreaker.StateClosed {
		t.Fatalf("client errors tripped the breaker: %v", c.BreakerState())
	}
}

func TestGetMessages(t *testing.T) {
	_, c := newTestServer(t)
	page, err := c.GetMessages(context.Background(), "r1", 2, "m9")
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if !page.HasMore || len(page.Messages) != 2 {
		t.Fatalf("page = %+v", page)
	}
	first := page.Messages[0]
	if first.RoomID != "r1" || first.ID != "m7" || !first.Timestamp.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("first = %+v", first)
	}
}

func TestUpload(t *testing.T) {
	_, c := newTestServer(t)
	res, err := c.Upload(context.Background(), "notes.pdf", "application/pdf", strings.NewReader("%PDF-1.7"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := livechat.UploadResult{URL: "https://files.test/notes.pdf", FileName: "notes.pdf", Size: 8, MimeType: "application/pdf"}
	if *res != want {
		t.Fatalf("result = %+v, want %+v", *res, want)
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "maintenance"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBreaker(3, time.Minute))
	ctx := context.Background()
	for i := range 3 {
		_, err := c.ListRooms(ctx)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Temporary() {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if c.BreakerState() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", c.BreakerState())
	}

	_, err := c.ListRooms(ctx)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open state", err)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("server hit %d times, want 3", got)
	}
}
