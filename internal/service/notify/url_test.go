package notify

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name    string
		opts    URLOptions
		want    string
		wantErr bool
	}{
		{
			name: "derived from local API",
			opts: URLOptions{APIURL: "http://localhost:8000/api/v1"},
			want: "ws://localhost:8000/api/v1/chat/ws/notifications?tenant=acme&token=tok",
		},
		{
			name: "https API becomes wss",
			opts: URLOptions{APIURL: "https://portal.example.org/api/v1"},
			want: "wss://portal.example.org/api/v1/chat/ws/notifications?tenant=acme&token=tok",
		},
		{
			name: "production forces wss",
			opts: URLOptions{APIURL: "http://127.0.0.1:8000", Production: true},
			want: "wss://127.0.0.1:8000/api/v1/chat/ws/notifications?tenant=acme&token=tok",
		},
		{
			name: "explicit socket host on allow-list",
			opts: URLOptions{APIURL: "https://portal.example.org", WSURL: "wss://ws.example.org", AllowedHosts: []string{"ws.example.org"}},
			want: "wss://ws.example.org/api/v1/chat/ws/notifications?tenant=acme&token=tok",
		},
		{
			name:    "socket host not allowed",
			opts:    URLOptions{APIURL: "https://portal.example.org", WSURL: "wss://evil.example.com"},
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			opts:    URLOptions{APIURL: "ftp://localhost"},
			wantErr: true,
		},
		{
			name:    "missing API URL",
			opts:    URLOptions{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildURL(tt.opts, "tok", "acme")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildURL_RequiresSession(t *testing.T) {
	_, err := BuildURL(URLOptions{APIURL: "http://localhost"}, "", "acme")
	assert.Error(t, err)
	_, err = BuildURL(URLOptions{APIURL: "http://localhost"}, "tok", "")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	raw, err := BuildURL(URLOptions{APIURL: "http://localhost"}, "secret", "acme")
	require.NoError(t, err)

	u, err := url.Parse(redact(raw))
	require.NoError(t, err)
	assert.Equal(t, "REDACTED", u.Query().Get("token"))
	assert.Equal(t, "acme", u.Query().Get("tenant"))
}

func TestBackoff(t *testing.T) {
	var got []int
	for attempt := 1; attempt <= 7; attempt++ {
		got = append(got, int(Backoff(attempt).Seconds()))
	}
	assert.Equal(t, []int{1, 2, 4, 8, 16, 30, 30}, got)
	assert.Equal(t, MaxBackoff, Backoff(100))
}
