package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GScarabel/djvirtu/config"
)

// testConfig loads a minimal configuration pointing the backend at the given
// URL, running it through the normal Load pipeline so defaults apply.
func testConfig(t *testing.T, backendURL string) *config.Config {
	t.Helper()
	raw := fmt.Sprintf(`{"backend": {"url": %q, "serviceKey": "service-key", "anonKey": "anon-key"}}`, backendURL)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestClientNotConfigured(t *testing.T) {
	cfg := testConfig(t, "")
	c := NewClient(cfg, "test-agent")
	ctx := context.Background()

	assert.False(t, c.Configured())
	var rows []struct{}
	assert.ErrorIs(t, c.Select(ctx, Query{Table: "photos"}, &rows), ErrNotConfigured)
	assert.ErrorIs(t, c.Insert(ctx, "photos", map[string]string{}, nil), ErrNotConfigured)
	assert.ErrorIs(t, c.Update(ctx, "photos", []Filter{Eq("id", "1")}, map[string]string{}, nil), ErrNotConfigured)
	assert.ErrorIs(t, c.Delete(ctx, "photos", []Filter{Eq("id", "1")}), ErrNotConfigured)
	assert.ErrorIs(t, c.RPC(ctx, "fn", nil, nil), ErrNotConfigured)
}

func TestSelectBuildsQuery(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id": 1}, {"id": 2}]`)
	}))
	t.Cleanup(server.Close)

	c := NewClient(testConfig(t, server.URL), "test-agent")
	var rows []struct {
		ID int64 `json:"id"`
	}
	err := c.Select(context.Background(), Query{
		Table:   "videos",
		Filters: []Filter{Eq("published", "true")},
		Order:   []Order{{Column: "featured", Desc: true}, {Column: "display_order"}},
		Limit:   6,
	}, &rows)
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1/videos", gotPath)
	assert.Equal(t, []string{"*"}, gotQuery["select"])
	assert.Equal(t, []string{"eq.true"}, gotQuery["published"])
	assert.Equal(t, []string{"featured.desc,display_order.asc"}, gotQuery["order"])
	assert.Equal(t, []string{"6"}, gotQuery["limit"])

	assert.Equal(t, "service-key", gotHeaders.Get("apikey"))
	assert.Equal(t, "Bearer service-key", gotHeaders.Get("Authorization"))
	assert.Equal(t, "test-agent", gotHeaders.Get("User-Agent"))

	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[1].ID)
}

func TestOrderNullsLast(t *testing.T) {
	var gotOrder string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrder = r.URL.Query().Get("order")
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(server.Close)

	c := NewClient(testConfig(t, server.URL), "test-agent")
	var rows []struct{}
	err := c.Select(context.Background(), Query{
		Table: "events",
		Order: []Order{{Column: "date", Desc: true, NullsLast: true}},
	}, &rows)
	require.NoError(t, err)
	assert.Equal(t, "date.desc.nullslast", gotOrder)
}

func TestInFilterEncoding(t *testing.T) {
	f := In("id", []int64{3, 7, 11})
	assert.Equal(t, "id", f.Column)
	assert.Equal(t, "in", f.Op)
	assert.Equal(t, "(3,7,11)", f.Value)
}

func TestInsertPreferHeaders(t *testing.T) {
	var gotPrefer string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefer = r.Header.Get("Prefer")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `[{"id": 9, "title": "created"}]`)
	}))
	t.Cleanup(server.Close)

	c := NewClient(testConfig(t, server.URL), "test-agent")

	t.Run("with representation", func(t *testing.T) {
		var rows []struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		}
		err := c.Insert(context.Background(), "albums", map[string]string{"title": "created"}, &rows)
		require.NoError(t, err)
		assert.Equal(t, "return=representation", gotPrefer)
		assert.Equal(t, "created", gotBody["title"])
		require.Len(t, rows, 1)
		assert.Equal(t, int64(9), rows[0].ID)
	})

	t.Run("fire and forget", func(t *testing.T) {
		err := c.Insert(context.Background(), "albums", map[string]string{"title": "x"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "return=minimal", gotPrefer)
	})
}

func TestUpsertPrefer(t *testing.T) {
	var gotPrefer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefer = r.Header.Get("Prefer")
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(server.Close)

	c := NewClient(testConfig(t, server.URL), "test-agent")
	err := c.Upsert(context.Background(), "settings", []map[string]string{{"key": "a", "value": "1"}})
	require.NoError(t, err)
	assert.Equal(t, "resolution=merge-duplicates,return=minimal", gotPrefer)
}

func TestUnfilteredWritesRefused(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	t.Cleanup(server.Close)

	c := NewClient(testConfig(t, server.URL), "test-agent")
	assert.Error(t, c.Update(context.Background(), "photos", nil, map[string]string{}, nil))
	assert.Error(t, c.Delete(context.Background(), "photos", nil))
	assert.Zero(t, requests, "no request should leave the process")
}

func TestRPC(t *testing.T) {
	var gotPath string
	var gotArgs map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotArgs)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	c := NewClient(testConfig(t, server.URL), "test-agent")
	err := c.RPC(context.Background(), "set_featured_video", map[string]int64{"video_id": 42}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/rest/v1/rpc/set_featured_video", gotPath)
	assert.Equal(t, float64(42), gotArgs["video_id"])
}

func TestErrorMapping(t *testing.T) {
	t.Run("404 is ErrNotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message": "missing"}`, http.StatusNotFound)
		}))
		t.Cleanup(server.Close)

		c := NewClient(testConfig(t, server.URL), "test-agent")
		var rows []struct{}
		err := c.Select(context.Background(), Query{Table: "photos"}, &rows)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("server error carries status and message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message": "database on fire"}`)
		}))
		t.Cleanup(server.Close)

		c := NewClient(testConfig(t, server.URL), "test-agent")
		var rows []struct{}
		err := c.Select(context.Background(), Query{Table: "photos"}, &rows)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.Equal(t, "database on fire", apiErr.Message)
	})

	t.Run("non-json error body kept verbatim", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "upstream timeout")
		}))
		t.Cleanup(server.Close)

		c := NewClient(testConfig(t, server.URL), "test-agent")
		var rows []struct{}
		err := c.Select(context.Background(), Query{Table: "photos"}, &rows)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "upstream timeout", apiErr.Message)
	})
}

func TestAPIErrorString(t *testing.T) {
	assert.Equal(t, "backend returned status 502", (&APIError{Status: 502}).Error())
	assert.Equal(t, "backend returned status 422: nope", (&APIError{Status: 422, Message: "nope"}).Error())
}

func TestContextCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	c := NewClient(testConfig(t, server.URL), "test-agent")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	var rows []struct{}
	err := c.Select(ctx, Query{Table: "photos"}, &rows)
	assert.True(t, errors.Is(err, context.Canceled))
}
