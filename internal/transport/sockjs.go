package transport

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

type sockFrameKind int

const (
	sockOpen sockFrameKind = iota
	sockHeartbeat
	sockMessages
	sockClose
)

type sockFrame struct {
	kind     sockFrameKind
	messages []string
	code     int
	reason   string
}

// WebSocketURL converts an http(s) or ws(s) endpoint into a ws(s) URL.
func WebSocketURL(endpoint string) (string, error) {
	u, err := toWS(endpoint)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// SockJSURL builds the SockJS websocket transport URL for an endpoint:
// {endpoint}/{server-id}/{session-id}/websocket.
func SockJSURL(endpoint string) (string, error) {
	u, err := toWS(endpoint)
	if err != nil {
		return "", err
	}
	server := fmt.Sprintf("%03d", rand.IntN(1000))
	session := strings.ReplaceAll(uuid.NewString(), "-", "")
	u.Path = strings.TrimRight(u.Path, "/") + "/" + server + "/" + session + "/websocket"
	return u.String(), nil
}

func toWS(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

func decodeSockJS(data []byte) (sockFrame, error) {
	if len(data) == 0 {
		return sockFrame{}, ErrMalformedFrame
	}

	switch data[0] {
	case 'o':
		return sockFrame{kind: sockOpen}, nil
	case 'h':
		return sockFrame{kind: sockHeartbeat}, nil
	case 'a':
		var msgs []string
		if err := json.Unmarshal(data[1:], &msgs); err != nil {
			return sockFrame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return sockFrame{kind: sockMessages, messages: msgs}, nil
	case 'm':
		var msg string
		if err := json.Unmarshal(data[1:], &msg); err != nil {
			return sockFrame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return sockFrame{kind: sockMessages, messages: []string{msg}}, nil
	case 'c':
		var parts []json.RawMessage
		if err := json.Unmarshal(data[1:], &parts); err != nil || len(parts) != 2 {
			return sockFrame{}, fmt.Errorf("%w: bad close frame %q", ErrMalformedFrame, data)
		}
		f := sockFrame{kind: sockClose}
		if err := json.Unmarshal(parts[0], &f.code); err != nil {
			return sockFrame{}, fmt.Errorf("%w: bad close code: %v", ErrMalformedFrame, err)
		}
		if err := json.Unmarshal(parts[1], &f.reason); err != nil {
			return sockFrame{}, fmt.Errorf("%w: bad close reason: %v", ErrMalformedFrame, err)
		}
		return f, nil
	}

	return sockFrame{}, fmt.Errorf("%w: unknown frame type %q", ErrMalformedFrame, data[0])
}

func encodeSockJS(msgs ...string) ([]byte, error) {
	return json.Marshal(msgs)
}
