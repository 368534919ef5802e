// Package geo fetches Brazilian states and municipalities from the public
// IBGE localities API. Admin event forms use it to offer consistent
// city/state pickers; results are fetched per request and never cached.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/GScarabel/djvirtu/config"
)

// ErrInvalidUF is returned for state codes that are not two letters.
var ErrInvalidUF = errors.New("geo: invalid state code")

var ufPattern = regexp.MustCompile(`^[A-Za-z]{2}$`)

// State is one federative unit.
type State struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Municipality is one city within a state.
type Municipality struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Client talks to the localities API. It is read-only and unauthenticated.
type Client struct {
	statesURL         string
	municipalitiesURL string
	http              *http.Client
	userAgent         string
}

// NewClient builds a localities client from the configured endpoints.
func NewClient(cfg *config.Config, userAgent string) *Client {
	return &Client{
		statesURL:         cfg.Geo.StatesURL,
		municipalitiesURL: cfg.Geo.MunicipalitiesURL,
		http:              &http.Client{Timeout: cfg.Geo.Timeout()},
		userAgent:         userAgent,
	}
}

// States lists all states sorted by name.
func (c *Client) States(ctx context.Context) ([]State, error) {
	var rows []struct {
		ID    int64  `json:"id"`
		Sigla string `json:"sigla"`
		Nome  string `json:"nome"`
	}
	if err := c.getJSON(ctx, c.statesURL, &rows); err != nil {
		return nil, fmt.Errorf("fetch states: %w", err)
	}
	out := make([]State, 0, len(rows))
	for _, r := range rows {
		out = append(out, State{ID: r.ID, Code: strings.ToUpper(r.Sigla), Name: r.Nome})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Municipalities lists a state's cities sorted by name. uf is the two-letter
// state code.
func (c *Client) Municipalities(ctx context.Context, uf string) ([]Municipality, error) {
	uf = strings.ToUpper(strings.TrimSpace(uf))
	if !ufPattern.MatchString(uf) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUF, uf)
	}
	endpoint := strings.ReplaceAll(c.municipalitiesURL, "{uf}", url.PathEscape(uf))
	var rows []struct {
		ID   int64  `json:"id"`
		Nome string `json:"nome"`
	}
	if err := c.getJSON(ctx, endpoint, &rows); err != nil {
		return nil, fmt.Errorf("fetch municipalities for %s: %w", uf, err)
	}
	out := make([]Municipality, 0, len(rows))
	for _, r := range rows {
		out = append(out, Municipality{ID: r.ID, Name: r.Nome})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
