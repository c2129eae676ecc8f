package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(server *httptest.Server) *Client {
	return NewClient(Config{BaseURL: server.URL, TimeoutSeconds: 5}, zerolog.Nop())
}

func TestClient_Name(t *testing.T) {
	client := NewClient(Config{}, zerolog.Nop())
	if client.Name() != "anilist" {
		t.Errorf("Name() = %q, want %q", client.Name(), "anilist")
	}
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		resp := pageMediaResponse{}
		resp.Data.Page.Media = []Media{
			{ID: 1, Title: MediaTitle{Romaji: "Some Anime"}, Format: "TV", Status: "RELEASING"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server)
	results, err := client.Search(context.Background(), "Some Anime", 8)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestClient_GetByID_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mediaByIDResponse{})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.GetByID(context.Background(), 99)
	if err != ErrNotFound {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestClient_AiringSchedule_Paging(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := airingScheduleResponse{}
		resp.Data.Page.AiringSchedules = []AiringNode{{Episode: calls, AiringAt: int64(calls)}}
		resp.Data.Page.PageInfo.HasNextPage = calls < 2
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server)
	nodes, err := client.AiringSchedule(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("AiringSchedule() error = %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
}

func TestClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Search(context.Background(), "x", 8)
	if err != ErrRateLimited {
		t.Fatalf("Search() error = %v, want ErrRateLimited", err)
	}
}
