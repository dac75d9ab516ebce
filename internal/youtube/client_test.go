package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const searchPayload = `{
  "items": [
    {"id": {"kind": "youtube#video", "videoId": "vid-1"}},
    {"id": {"kind": "youtube#video", "videoId": "vid-2"}}
  ]
}`

const videosPayload = `{
  "items": [
    {
      "id": "vid-2",
      "snippet": {
        "title": "Second",
        "description": "second video",
        "publishedAt": "2026-02-01T09:30:00Z",
        "channelId": "chan-2",
        "channelTitle": "Channel Two",
        "tags": ["go", "testing"],
        "thumbnails": {
          "default": {"url": "https://img.example.com/2/default.jpg", "width": 120, "height": 90}
        }
      },
      "statistics": {"viewCount": "250", "likeCount": "12", "commentCount": "3"},
      "contentDetails": {"duration": "PT4M13S"}
    },
    {
      "id": "vid-1",
      "snippet": {
        "title": "First",
        "description": "first video",
        "publishedAt": "2026-02-02T10:00:00Z",
        "channelId": "chan-1",
        "channelTitle": "Channel One",
        "thumbnails": {
          "default": {"url": "https://img.example.com/1/default.jpg", "width": 120, "height": 90},
          "high": {"url": "https://img.example.com/1/high.jpg", "width": 480, "height": 360}
        }
      },
      "statistics": {"viewCount": "1000", "likeCount": "50", "commentCount": "7"},
      "contentDetails": {"duration": "PT10M"}
    }
  ]
}`

func apiErrorBody(code int, reason string) string {
	return fmt.Sprintf(`{"error": {"code": %d, "message": "rejected", "errors": [{"domain": "usageLimits", "reason": %q, "message": "rejected"}]}}`, code, reason)
}

func newStubClient(t *testing.T, handler http.HandlerFunc) *SearchClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewSearchClient(100)
	client.Backoff = time.Millisecond
	client.Options = []option.ClientOption{option.WithEndpoint(server.URL)}
	return client
}

func TestSearchClientFetch(t *testing.T) {
	var searchCalls, videoCalls int32
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "/search"):
			atomic.AddInt32(&searchCalls, 1)
			if got := r.URL.Query().Get("q"); got != "golang programming" {
				t.Errorf("unexpected query: %q", got)
			}
			fmt.Fprint(w, searchPayload)
		case strings.Contains(r.URL.Path, "/videos"):
			atomic.AddInt32(&videoCalls, 1)
			ids := r.URL.Query()["id"]
			if len(ids) != 2 || ids[0] != "vid-1" || ids[1] != "vid-2" {
				t.Errorf("unexpected ids: %v", ids)
			}
			fmt.Fprint(w, videosPayload)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	result, err := client.Fetch(context.Background(), "golang programming", 50, "test-key")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if searchCalls != 1 || videoCalls != 1 {
		t.Fatalf("expected 1 search and 1 videos call, got %d/%d", searchCalls, videoCalls)
	}
	if result.Cost != 101 {
		t.Fatalf("expected cost 101, got %d", result.Cost)
	}
	if len(result.Videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(result.Videos))
	}

	// Search order wins over details order.
	first := result.Videos[0]
	if first.VideoID != "vid-1" || result.Videos[1].VideoID != "vid-2" {
		t.Fatalf("expected search order preserved, got %s, %s", first.VideoID, result.Videos[1].VideoID)
	}

	if first.Title != "First" || first.ChannelID != "chan-1" || first.ChannelTitle != "Channel One" {
		t.Fatalf("unexpected snippet fields: %+v", first)
	}
	if first.ViewCount != 1000 || first.LikeCount != 50 || first.CommentCount != 7 {
		t.Fatalf("unexpected statistics: %+v", first)
	}
	if first.Duration != "PT10M" {
		t.Fatalf("unexpected duration: %s", first.Duration)
	}
	if want := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC); !first.PublishedAt.Equal(want) {
		t.Fatalf("unexpected publish time: %v", first.PublishedAt)
	}
	if len(first.Thumbnails) != 2 || first.Thumbnails["high"].Width != 480 {
		t.Fatalf("unexpected thumbnails: %+v", first.Thumbnails)
	}
	if second := result.Videos[1]; len(second.Tags) != 2 || second.Tags[0] != "go" {
		t.Fatalf("unexpected tags: %+v", second.Tags)
	}
}

func TestSearchClientFetchNoResults(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/videos") {
			t.Error("videos endpoint called with no candidate ids")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items": []}`)
	})

	result, err := client.Fetch(context.Background(), "niche query", 50, "test-key")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Videos) != 0 {
		t.Fatalf("expected no videos, got %d", len(result.Videos))
	}
	if result.Cost != 100 {
		t.Fatalf("expected search-only cost 100, got %d", result.Cost)
	}
}

func TestSearchClientFetchQuotaExceeded(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, apiErrorBody(403, "quotaExceeded"))
	})

	result, err := client.Fetch(context.Background(), "q", 50, "test-key")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if result.Cost != 100 {
		t.Fatalf("expected failed search to still report cost 100, got %d", result.Cost)
	}
}

func TestSearchClientFetchInvalidKey(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, apiErrorBody(400, "keyInvalid"))
	})

	if _, err := client.Fetch(context.Background(), "q", 50, "bad-key"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestSearchClientFetchRetriesTransient(t *testing.T) {
	var searchCalls int32
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "/search") {
			if atomic.AddInt32(&searchCalls, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"error": {"code": 500, "message": "backend error"}}`)
				return
			}
			fmt.Fprint(w, `{"items": []}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	if _, err := client.Fetch(context.Background(), "q", 50, "test-key"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if searchCalls != 2 {
		t.Fatalf("expected 2 search attempts, got %d", searchCalls)
	}
}

func TestSearchClientFetchTransientExhaustsRetries(t *testing.T) {
	var searchCalls int32
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&searchCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error": {"code": 503, "message": "unavailable"}}`)
	})

	_, err := client.Fetch(context.Background(), "q", 50, "test-key")
	if err == nil || errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected transient failure, got %v", err)
	}
	if searchCalls != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", searchCalls)
	}
}

func TestSearchClientFetchMalformedSearchItem(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items": [{"id": {"kind": "youtube#channel"}}]}`)
	})

	if _, err := client.Fetch(context.Background(), "q", 50, "test-key"); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "quota reason",
			err:  &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}},
			want: ErrQuotaExceeded,
		},
		{
			name: "daily limit reason",
			err:  &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "dailyLimitExceeded"}}},
			want: ErrQuotaExceeded,
		},
		{
			name: "key invalid reason",
			err:  &googleapi.Error{Code: 400, Errors: []googleapi.ErrorItem{{Reason: "keyInvalid"}}},
			want: ErrInvalidKey,
		},
		{
			name: "forbidden without reason",
			err:  &googleapi.Error{Code: 403},
			want: ErrInvalidKey,
		},
		{
			name: "unauthorized",
			err:  &googleapi.Error{Code: 401},
			want: ErrInvalidKey,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyError(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("classifyError() = %v, want %v", got, tc.want)
			}
		})
	}

	serverErr := &googleapi.Error{Code: 502}
	if got := classifyError(serverErr); !errors.Is(got, serverErr) {
		t.Fatalf("expected 5xx to pass through, got %v", got)
	}
	if !isTransient(serverErr) {
		t.Fatal("expected 5xx to be transient")
	}
	if isTransient(ErrQuotaExceeded) || isTransient(ErrInvalidKey) {
		t.Fatal("quota and key errors must not be retried with the same key")
	}
}
