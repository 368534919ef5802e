package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BackendConfig groups the hosted data/storage/auth service settings.
// The service key stays server-side; it is never exposed to page templates.
type BackendConfig struct {
	URL        string        `json:"url"`
	AnonKey    string        `json:"anonKey"`
	ServiceKey string        `json:"serviceKey"`
	TimeoutSec int           `json:"timeoutSec"`
	timeout    time.Duration `json:"-"`
}

// StorageConfig names the object-store buckets and upload limits.
type StorageConfig struct {
	PhotosBucket string `json:"photosBucket"`
	VideosBucket string `json:"videosBucket"`
	CoversBucket string `json:"coversBucket"`
	MaxUploadMB  int    `json:"maxUploadMb"`
}

// SessionConfig controls admin session cookies and the optional Redis store.
// An empty RedisAddr selects the in-process memory store.
type SessionConfig struct {
	CookieName    string        `json:"cookieName"`
	TTLHours      int           `json:"ttlHours"`
	SecureCookie  bool          `json:"secureCookie"`
	RedisAddr     string        `json:"redisAddr"`
	RedisPassword string        `json:"redisPassword"`
	RedisDB       int           `json:"redisDb"`
	ttl           time.Duration `json:"-"`
}

// GeoConfig points at the public geographic reference API used by admin forms.
// MunicipalitiesURL must contain a {uf} placeholder for the state code.
type GeoConfig struct {
	StatesURL         string        `json:"statesUrl"`
	MunicipalitiesURL string        `json:"municipalitiesUrl"`
	TimeoutSec        int           `json:"timeoutSec"`
	timeout           time.Duration `json:"-"`
}

// PreloadConfig carries the coordinator's prefetch limits and step timings.
type PreloadConfig struct {
	PhotoLimit         int           `json:"photoLimit"`
	VideoLimit         int           `json:"videoLimit"`
	EventLimit         int           `json:"eventLimit"`
	ReadinessTimeoutMS int           `json:"readinessTimeoutMs"`
	WarmTimeoutMS      int           `json:"warmTimeoutMs"`
	SettleMS           int           `json:"settleMs"`
	WarmPhotos         int           `json:"warmPhotos"`
	WarmThumbs         int           `json:"warmThumbs"`
	readinessTimeout   time.Duration `json:"-"`
	warmTimeout        time.Duration `json:"-"`
	settle             time.Duration `json:"-"`
}

// Config encapsulates runtime and build-time options.
type Config struct {
	Live                   bool           `json:"live"`
	Listen                 string         `json:"listen"`
	BaseURL                string         `json:"baseUrl"`
	SiteName               string         `json:"siteName"`
	TemplateDir            string         `json:"templateDir"`
	OutputDir              string         `json:"outputDir"`
	LogLevel               string         `json:"logLevel"`
	EnableTLS              bool           `json:"enableTLS"`
	TLSCert                string         `json:"tlsCert"`
	TLSKey                 string         `json:"tlsKey"`
	TrustedProxies         []string       `json:"trustedProxies"`
	TrustedRemoteAddrLevel int            `json:"trustedRemoteAddrLevel"`
	Backend                BackendConfig  `json:"backend"`
	Storage                StorageConfig  `json:"storage"`
	Session                SessionConfig  `json:"session"`
	Geo                    GeoConfig      `json:"geo"`
	Preload                PreloadConfig  `json:"preload"`
	trustedProxyPrefixes   []netip.Prefix `json:"-"`
}

// Configured reports whether the hosted backend can be reached at all.
// When false every data-consuming component degrades to an empty state.
func (b *BackendConfig) Configured() bool {
	return strings.TrimSpace(b.URL) != "" && strings.TrimSpace(b.ServiceKey) != ""
}

// Timeout returns the effective per-request timeout for backend calls.
func (b *BackendConfig) Timeout() time.Duration {
	return b.timeout
}

// TTL returns the effective session lifetime.
func (s *SessionConfig) TTL() time.Duration {
	return s.ttl
}

// UseRedis reports whether sessions should live in Redis rather than memory.
func (s *SessionConfig) UseRedis() bool {
	return strings.TrimSpace(s.RedisAddr) != ""
}

// Timeout returns the effective per-request timeout for geo API calls.
func (g *GeoConfig) Timeout() time.Duration {
	return g.timeout
}

// ReadinessTimeout bounds the coordinator's initial readiness wait.
func (p *PreloadConfig) ReadinessTimeout() time.Duration {
	return p.readinessTimeout
}

// WarmTimeout bounds each individual image warm-up request.
func (p *PreloadConfig) WarmTimeout() time.Duration {
	return p.warmTimeout
}

// Settle returns the final visual settle delay before 100%.
func (p *PreloadConfig) Settle() time.Duration {
	return p.settle
}

// Load reads configuration from disk and applies sane defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{Live: true}
	if err := json.Unmarshal(bytes, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.OutputDir == "" {
		c.OutputDir = "./dist"
	}
	if c.TemplateDir == "" {
		c.TemplateDir = "./template"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.TrustedRemoteAddrLevel <= 0 {
		c.TrustedRemoteAddrLevel = 1
	}

	c.SiteName = strings.TrimSpace(c.SiteName)
	if c.SiteName == "" {
		c.SiteName = "DJ Virtu"
	}

	c.Backend.URL = strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/")
	c.Backend.AnonKey = strings.TrimSpace(c.Backend.AnonKey)
	c.Backend.ServiceKey = strings.TrimSpace(c.Backend.ServiceKey)
	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = 10
	}
	c.Backend.timeout = time.Duration(c.Backend.TimeoutSec) * time.Second

	if c.Storage.PhotosBucket == "" {
		c.Storage.PhotosBucket = "photos"
	}
	if c.Storage.VideosBucket == "" {
		c.Storage.VideosBucket = "videos"
	}
	if c.Storage.CoversBucket == "" {
		c.Storage.CoversBucket = "covers"
	}
	if c.Storage.MaxUploadMB <= 0 {
		c.Storage.MaxUploadMB = 25
	}

	if c.Session.CookieName == "" {
		c.Session.CookieName = "djvirtu_session"
	}
	if c.Session.TTLHours <= 0 {
		c.Session.TTLHours = 12
	}
	c.Session.RedisAddr = strings.TrimSpace(c.Session.RedisAddr)
	c.Session.ttl = time.Duration(c.Session.TTLHours) * time.Hour

	c.Geo.StatesURL = strings.TrimSpace(c.Geo.StatesURL)
	c.Geo.MunicipalitiesURL = strings.TrimSpace(c.Geo.MunicipalitiesURL)
	if c.Geo.StatesURL == "" {
		c.Geo.StatesURL = "https://servicodados.ibge.gov.br/api/v1/localidades/estados?orderBy=nome"
	}
	if c.Geo.MunicipalitiesURL == "" {
		c.Geo.MunicipalitiesURL = "https://servicodados.ibge.gov.br/api/v1/localidades/estados/{uf}/municipios"
	}
	if c.Geo.TimeoutSec <= 0 {
		c.Geo.TimeoutSec = 10
	}
	c.Geo.timeout = time.Duration(c.Geo.TimeoutSec) * time.Second

	if c.Preload.PhotoLimit <= 0 {
		c.Preload.PhotoLimit = 12
	}
	if c.Preload.VideoLimit <= 0 {
		c.Preload.VideoLimit = 6
	}
	if c.Preload.EventLimit <= 0 {
		c.Preload.EventLimit = 10
	}
	if c.Preload.ReadinessTimeoutMS <= 0 {
		c.Preload.ReadinessTimeoutMS = 2000
	}
	if c.Preload.WarmTimeoutMS <= 0 {
		c.Preload.WarmTimeoutMS = 3000
	}
	if c.Preload.SettleMS <= 0 {
		c.Preload.SettleMS = 300
	}
	if c.Preload.WarmPhotos <= 0 {
		c.Preload.WarmPhotos = 6
	}
	if c.Preload.WarmThumbs <= 0 {
		c.Preload.WarmThumbs = 3
	}
	c.Preload.readinessTimeout = time.Duration(c.Preload.ReadinessTimeoutMS) * time.Millisecond
	c.Preload.warmTimeout = time.Duration(c.Preload.WarmTimeoutMS) * time.Millisecond
	c.Preload.settle = time.Duration(c.Preload.SettleMS) * time.Millisecond

	return c.compileTrustedProxies()
}

func (c *Config) validate() error {
	if c.EnableTLS {
		if c.TLSCert == "" || c.TLSKey == "" {
			return fmt.Errorf("tls enabled but certificates missing")
		}
	}
	if c.Backend.URL != "" {
		if _, err := url.ParseRequestURI(c.Backend.URL); err != nil {
			return fmt.Errorf("invalid backend url: %w", err)
		}
		if c.Backend.ServiceKey == "" {
			return fmt.Errorf("backend url configured without a service key")
		}
	}
	if _, err := url.ParseRequestURI(c.Geo.StatesURL); err != nil {
		return fmt.Errorf("invalid geo states url: %w", err)
	}
	if !strings.Contains(c.Geo.MunicipalitiesURL, "{uf}") {
		return fmt.Errorf("geo municipalities url must contain a {uf} placeholder")
	}
	return nil
}

func (c *Config) compileTrustedProxies() error {
	if c.trustedProxyPrefixes != nil {
		c.trustedProxyPrefixes = c.trustedProxyPrefixes[:0]
	}
	for _, entry := range c.TrustedProxies {
		token := strings.TrimSpace(entry)
		if token == "" {
			continue
		}
		if strings.Contains(token, "/") {
			prefix, err := netip.ParsePrefix(token)
			if err != nil {
				return fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			c.trustedProxyPrefixes = append(c.trustedProxyPrefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(token)
		if err != nil {
			return fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		var prefix netip.Prefix
		if addr.Is4() {
			prefix = netip.PrefixFrom(addr, 32)
		} else {
			prefix = netip.PrefixFrom(addr, 128)
		}
		c.trustedProxyPrefixes = append(c.trustedProxyPrefixes, prefix)
	}
	return nil
}

// IsTrustedProxy reports whether the provided address is within the trusted proxy list.
func (c *Config) IsTrustedProxy(addr netip.Addr) bool {
	for _, prefix := range c.trustedProxyPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// RemoteAddrFromRequest attempts to determine the originating client address.
// It inspects X-Forwarded-For headers and falls back to the direct remote
// address when no trusted proxy information is available.
func (c *Config) RemoteAddrFromRequest(r *http.Request) (netip.Addr, []netip.Addr) {
	chain := c.remoteAddrChain(r)
	if len(chain) == 0 {
		return netip.Addr{}, nil
	}

	allowed := max(c.TrustedRemoteAddrLevel, 0)

	idx := len(chain) - 1
	for idx > 0 {
		current := chain[idx]
		if !c.IsTrustedProxy(current) {
			break
		}
		if allowed == 0 {
			break
		}
		idx--
		allowed--
	}

	return chain[idx], chain
}

func (c *Config) remoteAddrChain(r *http.Request) []netip.Addr {
	chain := make([]netip.Addr, 0, 4)

	header := r.Header.Get("X-Forwarded-For")
	if header != "" {
		parts := strings.Split(header, ",")
		for _, raw := range parts {
			token := strings.TrimSpace(raw)
			if token == "" {
				continue
			}
			if addr, err := netip.ParseAddr(token); err == nil {
				chain = append(chain, addr)
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(host)); err == nil {
		chain = append(chain, addr)
	}
	return chain
}
