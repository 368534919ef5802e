package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/GScarabel/djvirtu/config"
)

// Client issues row-level requests against the hosted database's REST surface.
// Every table read and write in the application goes through this type; it is
// the single place that knows about the wire shape of the hosted service.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
	userAgent  string
	configured bool
}

// Filter restricts a query to rows matching a column predicate.
type Filter struct {
	Column string
	Op     string // "eq" or "in"
	Value  string // encoded value; for "in" a comma-separated list
}

// Eq builds an equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: "eq", Value: value}
}

// In builds a membership filter over the given ids.
func In(column string, ids []int64) Filter {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return Filter{Column: column, Op: "in", Value: "(" + strings.Join(parts, ",") + ")"}
}

// Order describes a sort directive appended to a read query.
type Order struct {
	Column    string
	Desc      bool
	NullsLast bool
}

// Query describes a read against one table.
type Query struct {
	Table   string
	Filters []Filter
	Order   []Order
	Limit   int
}

// NewClient constructs a gateway client. When the backend section of the
// configuration is absent the client is still usable: every call returns
// ErrNotConfigured without touching the network.
func NewClient(cfg *config.Config, userAgent string) *Client {
	return &Client{
		baseURL:    cfg.Backend.URL,
		serviceKey: cfg.Backend.ServiceKey,
		http:       &http.Client{Timeout: cfg.Backend.Timeout()},
		userAgent:  userAgent,
		configured: cfg.Backend.Configured(),
	}
}

// Configured reports whether calls will reach a real backend.
func (c *Client) Configured() bool {
	return c.configured
}

// Select fetches rows matching the query into dest (a pointer to a slice).
func (c *Client) Select(ctx context.Context, q Query, dest any) error {
	if !c.configured {
		return ErrNotConfigured
	}
	values := url.Values{}
	values.Set("select", "*")
	endpoint, err := c.tableURL(q.Table, q.Filters, values)
	if err != nil {
		return err
	}
	applyOrderAndLimit(endpoint, q.Order, q.Limit)
	return c.roundTrip(ctx, http.MethodGet, endpoint, nil, "", dest)
}

// Insert creates one row (or several, when payload is a slice). When dest is
// non-nil the created representation is decoded into it.
func (c *Client) Insert(ctx context.Context, table string, payload, dest any) error {
	if !c.configured {
		return ErrNotConfigured
	}
	endpoint, err := c.tableURL(table, nil, nil)
	if err != nil {
		return err
	}
	prefer := "return=minimal"
	if dest != nil {
		prefer = "return=representation"
	}
	return c.roundTrip(ctx, http.MethodPost, endpoint, payload, prefer, dest)
}

// Upsert creates or replaces rows keyed by the table's conflict target.
func (c *Client) Upsert(ctx context.Context, table string, payload any) error {
	if !c.configured {
		return ErrNotConfigured
	}
	endpoint, err := c.tableURL(table, nil, nil)
	if err != nil {
		return err
	}
	return c.roundTrip(ctx, http.MethodPost, endpoint, payload, "resolution=merge-duplicates,return=minimal", nil)
}

// Update patches all rows matching the filters with the given payload.
func (c *Client) Update(ctx context.Context, table string, filters []Filter, payload, dest any) error {
	if !c.configured {
		return ErrNotConfigured
	}
	if len(filters) == 0 {
		return fmt.Errorf("update %s: refusing to patch without filters", table)
	}
	endpoint, err := c.tableURL(table, filters, nil)
	if err != nil {
		return err
	}
	prefer := "return=minimal"
	if dest != nil {
		prefer = "return=representation"
	}
	return c.roundTrip(ctx, http.MethodPatch, endpoint, payload, prefer, dest)
}

// Delete removes all rows matching the filters.
func (c *Client) Delete(ctx context.Context, table string, filters []Filter) error {
	if !c.configured {
		return ErrNotConfigured
	}
	if len(filters) == 0 {
		return fmt.Errorf("delete %s: refusing to delete without filters", table)
	}
	endpoint, err := c.tableURL(table, filters, nil)
	if err != nil {
		return err
	}
	return c.roundTrip(ctx, http.MethodDelete, endpoint, nil, "return=minimal", nil)
}

// RPC invokes a named database function. Used where a mutation must be a
// single atomic statement rather than a sequence of row writes.
func (c *Client) RPC(ctx context.Context, fn string, args, dest any) error {
	if !c.configured {
		return ErrNotConfigured
	}
	endpoint, err := url.Parse(c.baseURL + "/rest/v1/rpc/" + url.PathEscape(fn))
	if err != nil {
		return fmt.Errorf("rpc %s: %w", fn, err)
	}
	return c.roundTrip(ctx, http.MethodPost, endpoint, args, "", dest)
}

func (c *Client) tableURL(table string, filters []Filter, extra url.Values) (*url.URL, error) {
	endpoint, err := url.Parse(c.baseURL + "/rest/v1/" + url.PathEscape(table))
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", table, err)
	}
	values := url.Values{}
	for key, list := range extra {
		for _, v := range list {
			values.Add(key, v)
		}
	}
	for _, f := range filters {
		values.Add(f.Column, f.Op+"."+f.Value)
	}
	endpoint.RawQuery = values.Encode()
	return endpoint, nil
}

func applyOrderAndLimit(endpoint *url.URL, order []Order, limit int) {
	values := endpoint.Query()
	if len(order) > 0 {
		parts := make([]string, 0, len(order))
		for _, o := range order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			part := o.Column + "." + dir
			if o.NullsLast {
				part += ".nullslast"
			}
			parts = append(parts, part)
		}
		values.Set("order", strings.Join(parts, ","))
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	endpoint.RawQuery = values.Encode()
}

func (c *Client) roundTrip(ctx context.Context, method string, endpoint *url.URL, payload any, prefer string, dest any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, endpoint.Path, ErrNotFound)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %w", method, endpoint.Path, decodeAPIError(resp))
	}
	if dest == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		switch {
		case payload.Message != "":
			apiErr.Message = payload.Message
		case payload.Msg != "":
			apiErr.Message = payload.Msg
		case payload.Error != "":
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
