package geo

import (
	"context"
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

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	raw := fmt.Sprintf(`{"geo": {"statesUrl": %q, "municipalitiesUrl": %q}}`,
		server.URL+"/estados", server.URL+"/estados/{uf}/municipios")
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return NewClient(cfg, "test-agent")
}

func TestStates(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/estados", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		fmt.Fprint(w, `[
			{"id": 35, "sigla": "sp", "nome": "São Paulo"},
			{"id": 42, "sigla": "SC", "nome": "Santa Catarina"},
			{"id": 33, "sigla": "RJ", "nome": "Rio de Janeiro"}
		]`)
	}))

	states, err := c.States(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 3)

	// Sorted by name, codes normalized to upper case.
	assert.Equal(t, []string{"Rio de Janeiro", "Santa Catarina", "São Paulo"},
		[]string{states[0].Name, states[1].Name, states[2].Name})
	assert.Equal(t, "SP", states[2].Code)
}

func TestMunicipalities(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `[
			{"id": 4208203, "nome": "Itajaí"},
			{"id": 4202404, "nome": "Balneário Camboriú"}
		]`)
	}))

	cities, err := c.Municipalities(context.Background(), "sc")
	require.NoError(t, err)

	// The {uf} placeholder is filled with the normalized code.
	assert.Equal(t, "/estados/SC/municipios", gotPath)
	require.Len(t, cities, 2)
	assert.Equal(t, "Balneário Camboriú", cities[0].Name)
	assert.Equal(t, "Itajaí", cities[1].Name)
}

func TestMunicipalitiesInvalidUF(t *testing.T) {
	requests := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))

	for _, uf := range []string{"", "S", "SCX", "S1", "12"} {
		_, err := c.Municipalities(context.Background(), uf)
		assert.ErrorIs(t, err, ErrInvalidUF, "uf %q", uf)
	}
	assert.Zero(t, requests, "invalid codes never reach the API")
}

func TestUnexpectedStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tea time", http.StatusTeapot)
	}))

	_, err := c.States(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}
