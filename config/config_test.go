package config

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadRaw(t *testing.T, raw string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	return Load(path)
}

func mustLoad(t *testing.T, raw string) *Config {
	t.Helper()
	cfg, err := loadRaw(t, raw)
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := mustLoad(t, `{}`)

	assert.True(t, cfg.Live)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "./dist", cfg.OutputDir)
	assert.Equal(t, "./template", cfg.TemplateDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "DJ Virtu", cfg.SiteName)
	assert.Equal(t, 1, cfg.TrustedRemoteAddrLevel)

	assert.False(t, cfg.Backend.Configured())
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout())

	assert.Equal(t, "photos", cfg.Storage.PhotosBucket)
	assert.Equal(t, "videos", cfg.Storage.VideosBucket)
	assert.Equal(t, "covers", cfg.Storage.CoversBucket)
	assert.Equal(t, 25, cfg.Storage.MaxUploadMB)

	assert.Equal(t, "djvirtu_session", cfg.Session.CookieName)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL())
	assert.False(t, cfg.Session.UseRedis())

	assert.Contains(t, cfg.Geo.StatesURL, "ibge.gov.br")
	assert.Contains(t, cfg.Geo.MunicipalitiesURL, "{uf}")

	assert.Equal(t, 12, cfg.Preload.PhotoLimit)
	assert.Equal(t, 6, cfg.Preload.VideoLimit)
	assert.Equal(t, 10, cfg.Preload.EventLimit)
	assert.Equal(t, 2*time.Second, cfg.Preload.ReadinessTimeout())
	assert.Equal(t, 3*time.Second, cfg.Preload.WarmTimeout())
	assert.Equal(t, 300*time.Millisecond, cfg.Preload.Settle())
	assert.Equal(t, 6, cfg.Preload.WarmPhotos)
	assert.Equal(t, 3, cfg.Preload.WarmThumbs)
}

func TestLoadOverrides(t *testing.T) {
	cfg := mustLoad(t, `{
		"live": false,
		"listen": "unix:/run/djvirtu.sock",
		"siteName": "  DJ Virtu Oficial  ",
		"backend": {"url": "https://abc.example.co/", "serviceKey": "sk", "anonKey": "ak", "timeoutSec": 3},
		"session": {"cookieName": "custom", "ttlHours": 2, "redisAddr": "127.0.0.1:6379"},
		"preload": {"photoLimit": 4, "settleMs": 50}
	}`)

	assert.False(t, cfg.Live, "an explicit false survives the live-by-default seed")
	assert.Equal(t, "unix:/run/djvirtu.sock", cfg.Listen)
	assert.Equal(t, "DJ Virtu Oficial", cfg.SiteName)
	assert.Equal(t, "https://abc.example.co", cfg.Backend.URL, "trailing slash is trimmed")
	assert.True(t, cfg.Backend.Configured())
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, "custom", cfg.Session.CookieName)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL())
	assert.True(t, cfg.Session.UseRedis())
	assert.Equal(t, 4, cfg.Preload.PhotoLimit)
	assert.Equal(t, 6, cfg.Preload.VideoLimit, "untouched limits keep their defaults")
	assert.Equal(t, 50*time.Millisecond, cfg.Preload.Settle())
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"malformed json", `{"live":`, "parse config"},
		{"tls without certs", `{"enableTLS": true}`, "certificates missing"},
		{"backend without service key", `{"backend": {"url": "https://abc.example.co"}}`, "service key"},
		{"invalid backend url", `{"backend": {"url": "not a url", "serviceKey": "sk"}}`, "invalid backend url"},
		{"geo url without placeholder", `{"geo": {"municipalitiesUrl": "https://example.com/cities"}}`, "{uf}"},
		{"invalid trusted proxy", `{"trustedProxies": ["999.0.0.1"]}`, "invalid trusted proxy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadRaw(t, tc.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open config")
	})
}

func TestIsTrustedProxy(t *testing.T) {
	cfg := mustLoad(t, `{"trustedProxies": ["192.0.2.10", "10.0.0.0/8", "2001:db8::/32"]}`)

	assert.True(t, cfg.IsTrustedProxy(netip.MustParseAddr("192.0.2.10")))
	assert.False(t, cfg.IsTrustedProxy(netip.MustParseAddr("192.0.2.11")))
	assert.True(t, cfg.IsTrustedProxy(netip.MustParseAddr("10.44.0.7")))
	assert.True(t, cfg.IsTrustedProxy(netip.MustParseAddr("2001:db8::1")))
	assert.False(t, cfg.IsTrustedProxy(netip.MustParseAddr("2001:db9::1")))
}

func TestRemoteAddrFromRequest(t *testing.T) {
	newRequest := func(remoteAddr, xff string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remoteAddr
		if xff != "" {
			r.Header.Set("X-Forwarded-For", xff)
		}
		return r
	}

	t.Run("direct connection", func(t *testing.T) {
		cfg := mustLoad(t, `{}`)
		addr, chain := cfg.RemoteAddrFromRequest(newRequest("203.0.113.7:4711", ""))
		assert.Equal(t, "203.0.113.7", addr.String())
		assert.Len(t, chain, 1)
	})

	t.Run("forwarded header from untrusted peer is ignored", func(t *testing.T) {
		cfg := mustLoad(t, `{}`)
		addr, _ := cfg.RemoteAddrFromRequest(newRequest("203.0.113.7:4711", "198.51.100.9"))
		assert.Equal(t, "203.0.113.7", addr.String())
	})

	t.Run("one trusted hop", func(t *testing.T) {
		cfg := mustLoad(t, `{"trustedProxies": ["192.0.2.1"]}`)
		addr, chain := cfg.RemoteAddrFromRequest(newRequest("192.0.2.1:443", "198.51.100.9"))
		assert.Equal(t, "198.51.100.9", addr.String())
		assert.Len(t, chain, 2)
	})

	t.Run("level bounds how far the chain is walked", func(t *testing.T) {
		req := func() *http.Request {
			return newRequest("192.0.2.1:443", "198.51.100.9, 192.0.2.2")
		}

		one := mustLoad(t, `{"trustedProxies": ["192.0.2.0/24"]}`)
		addr, _ := one.RemoteAddrFromRequest(req())
		assert.Equal(t, "192.0.2.2", addr.String(), "level 1 stops at the first forwarded hop")

		two := mustLoad(t, `{"trustedProxies": ["192.0.2.0/24"], "trustedRemoteAddrLevel": 2}`)
		addr, _ = two.RemoteAddrFromRequest(req())
		assert.Equal(t, "198.51.100.9", addr.String(), "level 2 reaches the client")
	})

	t.Run("garbage tokens are skipped", func(t *testing.T) {
		cfg := mustLoad(t, `{"trustedProxies": ["192.0.2.1"]}`)
		addr, chain := cfg.RemoteAddrFromRequest(newRequest("192.0.2.1:443", "banana, , 198.51.100.9"))
		assert.Equal(t, "198.51.100.9", addr.String())
		assert.Len(t, chain, 2)
	})

	t.Run("portless remote addr", func(t *testing.T) {
		cfg := mustLoad(t, `{}`)
		addr, _ := cfg.RemoteAddrFromRequest(newRequest("203.0.113.7", ""))
		assert.Equal(t, "203.0.113.7", addr.String())
	})

	t.Run("unparsable remote addr", func(t *testing.T) {
		cfg := mustLoad(t, `{}`)
		r := &http.Request{RemoteAddr: "@", Header: http.Header{}}
		addr, chain := cfg.RemoteAddrFromRequest(r)
		assert.False(t, addr.IsValid())
		assert.Empty(t, chain)
	})
}
