package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hitoshi/pinflow/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func testPin() *model.PreparedPin {
	return &model.PreparedPin{
		Title:       "🔥 Yoga Mat - Amazon Best Seller!",
		Description: "Non-slip yoga mat.",
		Link:        "https://www.amazon.com/dp/B001/?tag=mytag-20&utm_source=pinterest",
		ImageRef:    "https://images.example.com/prepared.jpg",
		BoardName:   "Amazon Finds",
	}
}

func boardsJSON() string {
	return `{"items": [
		{"id": "111", "name": "Amazon Finds"},
		{"id": "222", "name": "Other Board"}
	]}`
}

func TestClient_Publish_CreatesPin(t *testing.T) {
	var gotPin createPinRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/boards":
			w.Write([]byte(boardsJSON()))
		case "/pins":
			if r.Header.Get("Authorization") != "Bearer test-token" {
				t.Errorf("Authorization = %q, want bearer token", r.Header.Get("Authorization"))
			}
			if err := json.NewDecoder(r.Body).Decode(&gotPin); err != nil {
				t.Errorf("failed to decode pin body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": "pin-1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.Client(), newTestLogger(&bytes.Buffer{}), server.URL, "test-token")

	published, err := client.Publish(context.Background(), testPin())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !published {
		t.Fatal("expected published = true")
	}

	if gotPin.BoardID != "111" {
		t.Errorf("board_id = %q, want resolved board %q", gotPin.BoardID, "111")
	}
	if gotPin.MediaSource.SourceType != "image_url" {
		t.Errorf("source_type = %q, want %q", gotPin.MediaSource.SourceType, "image_url")
	}
	if gotPin.MediaSource.URL != "https://images.example.com/prepared.jpg" {
		t.Errorf("media url = %q, want prepared image", gotPin.MediaSource.URL)
	}
}

func TestClient_Publish_RejectedByAPI_ReturnsFalseNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boards" {
			w.Write([]byte(boardsJSON()))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "invalid media"}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), newTestLogger(&bytes.Buffer{}), server.URL, "test-token")

	published, err := client.Publish(context.Background(), testPin())
	if err != nil {
		t.Fatalf("expected no error for API rejection, got %v", err)
	}
	if published {
		t.Error("expected published = false for rejected pin")
	}
}

func TestClient_Publish_ServerError_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boards" {
			w.Write([]byte(boardsJSON()))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.Client(), newTestLogger(&bytes.Buffer{}), server.URL, "test-token")

	published, err := client.Publish(context.Background(), testPin())
	if err == nil {
		t.Fatal("expected error for server failure, got nil")
	}
	if published {
		t.Error("expected published = false")
	}
}

func TestClient_Publish_UnknownBoard_ReturnsFalseNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boards" {
			w.Write([]byte(`{"items": []}`))
			return
		}
		t.Error("pins endpoint must not be called for unknown board")
	}))
	defer server.Close()

	client := NewClient(server.Client(), newTestLogger(&bytes.Buffer{}), server.URL, "test-token")

	published, err := client.Publish(context.Background(), testPin())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if published {
		t.Error("expected published = false for unknown board")
	}
}

func TestClient_Publish_BoardIDIsCached(t *testing.T) {
	var boardCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/boards":
			boardCalls.Add(1)
			w.Write([]byte(boardsJSON()))
		case "/pins":
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer server.Close()

	client := NewClient(server.Client(), newTestLogger(&bytes.Buffer{}), server.URL, "test-token")

	client.Publish(context.Background(), testPin())
	client.Publish(context.Background(), testPin())

	if boardCalls.Load() != 1 {
		t.Errorf("board list calls = %d, want 1 (cached)", boardCalls.Load())
	}
}

func TestClient_Publish_BoardListFailure_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.Client(), newTestLogger(&bytes.Buffer{}), server.URL, "bad-token")

	_, err := client.Publish(context.Background(), testPin())
	if err == nil {
		t.Fatal("expected error for board list failure, got nil")
	}
}
