package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clipworks/evclip/internal/errors"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 5*time.Second)
}

func TestSync(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/sync" {
			t.Errorf("path = %q, want /api/v1/sync", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		json.NewEncoder(w).Encode(SyncResult{
			Events: []Event{{ID: 1, Name: "Berlin Marathon", NormalizedURL: "example.com/berlin"}},
			OrganizerLinks: []OrganizerLink{
				{ID: 7, EventID: 1, NormalizedURL: "organizer.com/berlin"},
			},
		})
	})

	res, err := client.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Name != "Berlin Marathon" {
		t.Errorf("events = %+v", res.Events)
	}
	if len(res.OrganizerLinks) != 1 {
		t.Errorf("links = %+v", res.OrganizerLinks)
	}
}

func TestLookup(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://example.com/berlin" {
			t.Errorf("url param = %q", got)
		}
		json.NewEncoder(w).Encode(LookupResult{
			MatchType: MatchEvent,
			Event:     &Event{ID: 42, Name: "Berlin Marathon"},
		})
	})

	res, err := client.Lookup(context.Background(), "https://example.com/berlin")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if res.MatchType != MatchEvent || res.Event == nil || res.Event.ID != 42 {
		t.Errorf("result = %+v", res)
	}
}

func TestLookup_EmptyMatchTypeDefaultsToNoMatch(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	res, err := client.Lookup(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if res.MatchType != MatchNone {
		t.Errorf("MatchType = %q, want no_match", res.MatchType)
	}
}

func TestUpdateEvent(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %q, want PATCH", r.Method)
		}
		if r.URL.Path != "/api/v1/events/42" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var patch EventPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			t.Fatalf("decode patch: %v", err)
		}
		if patch.Notes == nil || *patch.Notes != "updated" {
			t.Errorf("patch = %+v, want notes set", patch)
		}
		if patch.TagIDs != nil {
			t.Error("unset fields must stay nil in the payload")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	notes := "updated"
	if err := client.UpdateEvent(context.Background(), 42, EventPatch{Notes: &notes}); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}
}

func TestUploadMedia(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/events/42/media" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode upload: %v", err)
		}
		if req.Filename != "shot.png" || req.Image == "" {
			t.Errorf("upload request = %+v", req)
		}
		json.NewEncoder(w).Encode(MediaAsset{
			ID:           9,
			FileURL:      "https://cdn.example.com/9.png",
			ThumbnailURL: "https://cdn.example.com/9_thumb.png",
			Type:         "screenshot",
		})
	})

	var calls []int64
	asset, err := client.UploadMedia(context.Background(), 42, "shot.png", "aW1hZ2VkYXRh",
		func(sent, total int64) { calls = append(calls, sent) })
	if err != nil {
		t.Fatalf("UploadMedia failed: %v", err)
	}
	if asset.ID != 9 || asset.Type != "screenshot" {
		t.Errorf("asset = %+v", asset)
	}
	if len(calls) == 0 {
		t.Error("progress callback never fired")
	}
	for i := 1; i < len(calls); i++ {
		if calls[i] < calls[i-1] {
			t.Error("progress must be monotonic")
		}
	}
}

func TestUploadMedia_Non2xx(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	_, err := client.UploadMedia(context.Background(), 42, "shot.png", "aW1hZ2U=", nil)
	if !errors.Is(err, errors.ErrTransport) {
		t.Errorf("err = %v, want TRANSPORT", err)
	}
}

func TestUploadMedia_OutlivesRequestTimeout(t *testing.T) {
	// The request timeout bounds catalog calls only. An upload slower than
	// it must still complete as long as the caller's context allows.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(MediaAsset{ID: 9, Type: "screenshot"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	asset, err := client.UploadMedia(ctx, 42, "shot.png", "aW1hZ2U=", nil)
	if err != nil {
		t.Fatalf("UploadMedia failed: %v", err)
	}
	if asset.ID != 9 {
		t.Errorf("asset = %+v", asset)
	}
}

func TestUploadMedia_CallerDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.UploadMedia(ctx, 42, "shot.png", "aW1hZ2U=", nil)
	if !errors.Is(err, errors.ErrTransport) {
		t.Fatalf("err = %v, want TRANSPORT", err)
	}
	if got := err.Error(); !strings.Contains(got, "upload timed out") {
		t.Errorf("err = %q, want the timed-out message", got)
	}
}

func TestSync_RequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 50*time.Millisecond)
	_, err := client.Sync(context.Background())
	if !errors.Is(err, errors.ErrTransport) {
		t.Errorf("err = %v, want TRANSPORT", err)
	}
}

func TestUploadMedia_NetworkError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "t", 500*time.Millisecond)
	_, err := client.UploadMedia(context.Background(), 42, "shot.png", "aW1hZ2U=", nil)
	if !errors.Is(err, errors.ErrTransport) {
		t.Errorf("err = %v, want TRANSPORT", err)
	}
}

func TestProgressReader_Monotonic(t *testing.T) {
	var last int64 = -1
	pr := &progressReader{
		r:     &chunkReader{data: make([]byte, 1000), chunk: 64},
		total: 1000,
		progress: func(sent, total int64) {
			if sent <= last {
				t.Errorf("sent %d after %d", sent, last)
			}
			last = sent
		},
	}
	buf := make([]byte, 64)
	for {
		if _, err := pr.Read(buf); err != nil {
			break
		}
	}
	if last != 1000 {
		t.Errorf("final sent = %d, want 1000", last)
	}
}

// chunkReader yields at most chunk bytes per read.
type chunkReader struct {
	data  []byte
	chunk int
	off   int
}

func (c *chunkReader) Read(b []byte) (int, error) {
	if c.off >= len(c.data) {
		return 0, io.EOF
	}
	n := c.chunk
	if n > len(b) {
		n = len(b)
	}
	if n > len(c.data)-c.off {
		n = len(c.data) - c.off
	}
	copy(b, c.data[c.off:c.off+n])
	c.off += n
	return n, nil
}
