package transport

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSockJS(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    sockFrame
		wantErr bool
	}{
		{name: "open", data: "o", want: sockFrame{kind: sockOpen}},
		{name: "heartbeat", data: "h", want: sockFrame{kind: sockHeartbeat}},
		{name: "array", data: `a["a","b\nc"]`, want: sockFrame{kind: sockMessages, messages: []string{"a", "b\nc"}}},
		{name: "single", data: `m"x"`, want: sockFrame{kind: sockMessages, messages: []string{"x"}}},
		{name: "close", data: `c[3000,"Go away!"]`, want: sockFrame{kind: sockClose, code: 3000, reason: "Go away!"}},
		{name: "empty", data: "", wantErr: true},
		{name: "bad array", data: `a[1,2`, wantErr: true},
		{name: "bad close", data: `c[3000]`, wantErr: true},
		{name: "unknown", data: `z`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeSockJS([]byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedFrame))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeSockJS(t *testing.T) {
	data, err := encodeSockJS("SEND\ndestination:/app/x\n\n{}\x00")
	require.NoError(t, err)
	assert.Equal(t, `["SEND\ndestination:/app/x\n\n{}\u0000"]`, string(data))
}

func TestSockJSURL(t *testing.T) {
	got, err := SockJSURL("https://example.com/api/ws/")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^wss://example\.com/api/ws/\d{3}/[0-9a-f]{32}/websocket$`), got)

	other, err := SockJSURL("https://example.com/api/ws")
	require.NoError(t, err)
	assert.NotEqual(t, got, other, "session ids are unique per connection")
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:8080/api/ws", want: "ws://localhost:8080/api/ws"},
		{in: "https://example.com/ws", want: "wss://example.com/ws"},
		{in: "ws://example.com/ws", want: "ws://example.com/ws"},
		{in: "wss://example.com/ws", want: "wss://example.com/ws"},
		{in: "ftp://example.com/ws", wantErr: true},
		{in: "http:///ws", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := WebSocketURL(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
