package notify

import (
	"fmt"
	"net/url"
	"strings"
)

// NotificationsPath is the backend endpoint serving the notification socket
const NotificationsPath = "/api/v1/chat/ws/notifications"

// URLOptions describes where the notification socket lives
type URLOptions struct {
	// APIURL is the backend REST base; its host is always allowed and the
	// socket base is derived from it when WSURL is empty
	APIURL string
	WSURL  string
	// AllowedHosts extends the built-in allow-list
	AllowedHosts []string
	// Production forces the wss scheme
	Production bool
}

// BuildURL returns the socket URL for a session. The socket host must be on
// the allow-list: localhost, 127.0.0.1, the API host and any configured
// extra hosts.
func BuildURL(opts URLOptions, token, tenant string) (string, error) {
	if token == "" || tenant == "" {
		return "", fmt.Errorf("token and tenant are required")
	}

	api, err := url.Parse(opts.APIURL)
	if err != nil || api.Host == "" {
		return "", fmt.Errorf("invalid API URL %q", opts.APIURL)
	}

	base := api
	if opts.WSURL != "" {
		base, err = url.Parse(opts.WSURL)
		if err != nil || base.Host == "" {
			return "", fmt.Errorf("invalid WebSocket URL %q", opts.WSURL)
		}
	}

	if !hostAllowed(base.Hostname(), api.Hostname(), opts.AllowedHosts) {
		return "", fmt.Errorf("WebSocket host %q is not allowed", base.Hostname())
	}

	scheme := "ws"
	switch base.Scheme {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
	default:
		return "", fmt.Errorf("unsupported WebSocket scheme %q", base.Scheme)
	}
	if opts.Production {
		scheme = "wss"
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     base.Host,
		Path:     NotificationsPath,
		RawQuery: url.Values{"token": {token}, "tenant": {tenant}}.Encode(),
	}
	return u.String(), nil
}

func hostAllowed(host, apiHost string, extra []string) bool {
	host = strings.ToLower(host)
	allowed := append([]string{"localhost", "127.0.0.1", apiHost}, extra...)
	for _, h := range allowed {
		if h != "" && strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

// redact hides the session token when a socket URL is logged
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
