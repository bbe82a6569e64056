// Package browser opens cookie-seeded chromedp sessions with anti-bot-detection measures.
package browser

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/igwarmup/internal/config"
)

// DefaultUserAgent is a realistic Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// HostedEndpoint is the hosted browser service a token is appended to
const HostedEndpoint = "wss://chrome.browserless.io"

// Options returns local allocator options with anti-bot-detection measures.
// Every locally launched browser goes through here.
func Options(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),

		// Keeps navigator.webdriver false
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(DefaultUserAgent),
		chromedp.WindowSize(1920, 1080),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	} else {
		opts = append(opts, chromedp.Flag("start-maximized", true))
	}

	return opts
}

// HostedURL builds the hosted-service endpoint for a token
func HostedURL(token string) string {
	return HostedEndpoint + "?token=" + url.QueryEscape(token)
}

// RemoteURL appends proxy query parameters to a remote endpoint unless it
// already names a proxy or proxying is disabled.
func RemoteURL(endpoint string, proxy config.ProxyConfig) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid remote endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid remote endpoint scheme %q", u.Scheme)
	}
	if !proxy.Enabled || strings.Contains(u.RawQuery, "proxy=") {
		return endpoint, nil
	}

	extra := url.Values{}
	extra.Set("proxy", proxy.Type)
	if proxy.Country != "" {
		extra.Set("proxyCountry", proxy.Country)
	}
	if proxy.Sticky {
		extra.Set("proxySticky", strconv.FormatBool(true))
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + extra.Encode(), nil
}
