package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"golang.org/x/net/publicsuffix"

	"github.com/ibeckermayer/igwarmup/internal/config"
)

// ErrCredentials marks any failure to read or parse session cookies.
var ErrCredentials = errors.New("invalid credentials")

// Cookie is one captured session cookie. A nil Expires means a session cookie.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
	SameSite string
	Expires  *time.Time
}

type cookieJSON struct {
	Name     string          `json:"name,omitempty"`
	Key      string          `json:"key,omitempty"`
	Value    string          `json:"value"`
	Domain   string          `json:"domain,omitempty"`
	Path     string          `json:"path,omitempty"`
	Secure   bool            `json:"secure"`
	HTTPOnly bool            `json:"httpOnly"`
	SameSite string          `json:"sameSite,omitempty"`
	Expires  json.RawMessage `json:"expires,omitempty"`
}

// UnmarshalJSON accepts "name" or "key" for the cookie name and an
// "expires" given as unix seconds or an RFC3339 string. -1 means session.
func (c *Cookie) UnmarshalJSON(data []byte) error {
	var raw cookieJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	name := raw.Name
	if name == "" {
		name = raw.Key
	}
	if name == "" {
		return fmt.Errorf("cookie has neither name nor key")
	}

	expires, err := parseExpires(raw.Expires)
	if err != nil {
		return fmt.Errorf("cookie %q: %w", name, err)
	}

	*c = Cookie{
		Name:     name,
		Value:    raw.Value,
		Domain:   raw.Domain,
		Path:     raw.Path,
		Secure:   raw.Secure,
		HTTPOnly: raw.HTTPOnly,
		SameSite: raw.SameSite,
		Expires:  expires,
	}
	return nil
}

// MarshalJSON writes the same shape UnmarshalJSON accepts, with expires as
// unix seconds.
func (c Cookie) MarshalJSON() ([]byte, error) {
	raw := cookieJSON{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	}
	if c.Expires != nil {
		raw.Expires = json.RawMessage(strconv.FormatInt(c.Expires.Unix(), 10))
	}
	return json.Marshal(raw)
}

func parseExpires(raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		if secs < 0 {
			return nil, nil
		}
		whole, frac := math.Modf(secs)
		t := time.Unix(int64(whole), int64(frac*1e9)).UTC()
		return &t, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("expires must be a number or a string")
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "-1" {
		return nil, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return parseExpires(json.RawMessage(strconv.FormatFloat(n, 'f', -1, 64)))
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("unrecognized expires %q", s)
	}
	t = t.UTC()
	return &t, nil
}

// ParseCookies decodes a JSON array of cookies.
func ParseCookies(data []byte) ([]Cookie, error) {
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentials, err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: no cookies", ErrCredentials)
	}
	return cookies, nil
}

// LoadCookies reads and parses a cookie file.
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: cookie file not found: %s", ErrCredentials, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrCredentials, err)
	}
	cookies, err := ParseCookies(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies from %s: %w", path, err)
	}
	return cookies, nil
}

// SaveCookies writes cookies in the format LoadCookies reads.
func SaveCookies(path string, cookies []Cookie) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// DefaultCookiePath returns where `login` stores captured cookies
func DefaultCookiePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

// BrowserParams converts cookies into CDP parameters for network.SetCookies.
// Cookies without a domain are scoped to the platform's www host.
func BrowserParams(cookies []Cookie, domain string) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if p.Domain == "" {
			p.URL = "https://www." + domain + "/"
		}
		if p.Path == "" {
			p.Path = "/"
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			p.SameSite = network.CookieSameSiteStrict
		case "lax":
			p.SameSite = network.CookieSameSiteLax
		case "none", "no_restriction":
			p.SameSite = network.CookieSameSiteNone
		}
		if c.Expires != nil {
			exp := cdp.TimeSinceEpoch(*c.Expires)
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params
}

// FromBrowser converts cookies read back from a browser.
func FromBrowser(cookies []*network.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite.String(),
		}
		if !c.Session && c.Expires > 0 {
			t := time.Unix(int64(c.Expires), 0).UTC()
			cookie.Expires = &t
		}
		out = append(out, cookie)
	}
	return out
}

// NewJar builds an HTTP cookie jar holding cookies for requests to any host
// under domain.
func NewJar(cookies []Cookie, domain string) (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	byHost := make(map[string][]*http.Cookie)
	for _, c := range cookies {
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			host = domain
		}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if hc.Path == "" {
			hc.Path = "/"
		}
		if c.Expires != nil {
			hc.Expires = *c.Expires
		}
		byHost[host] = append(byHost[host], hc)
	}

	for host, hcs := range byHost {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, hcs)
	}
	return jar, nil
}
