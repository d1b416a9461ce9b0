package stomp

import (
	"errors"
	"strconv"

	"github.com/go-stomp/stomp/v3/frame"
)

// Frame is a single STOMP frame.
type Frame = frame.Frame

// Commands
const (
	CmdConnect     = "CONNECT"
	CmdStomp       = "STOMP"
	CmdConnected   = "CONNECTED"
	CmdSend        = "SEND"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdAck         = "ACK"
	CmdNack        = "NACK"
	CmdBegin       = "BEGIN"
	CmdCommit      = "COMMIT"
	CmdAbort       = "ABORT"
	CmdDisconnect  = "DISCONNECT"
	CmdMessage     = "MESSAGE"
	CmdReceipt     = "RECEIPT"
	CmdError       = "ERROR"
)

// Headers
const (
	HdrAcceptVersion = "accept-version"
	HdrVersion       = "version"
	HdrHost          = "host"
	HdrHeartBeat     = "heart-beat"
	HdrDestination   = "destination"
	HdrID            = "id"
	HdrAck           = "ack"
	HdrSubscription  = "subscription"
	HdrMessageID     = "message-id"
	HdrContentType   = "content-type"
	HdrContentLength = "content-length"
	HdrReceipt       = "receipt"
	HdrReceiptID     = "receipt-id"
	HdrMessage       = "message"

	// HdrToken carries the session token on CONNECT, the header name the
	// game server's auth interceptor reads.
	HdrToken = "satoken"
)

// Version is the only protocol version the client negotiates.
const Version = "1.2"

// ContentTypeJSON is set on SEND frames with JSON bodies.
const ContentTypeJSON = "application/json;charset=UTF-8"

var (
	ErrMalformedFrame = errors.New("malformed stomp frame")
	ErrUnknownCommand = errors.New("unknown stomp command")
)

var knownCommands = map[string]struct{}{
	CmdConnect: {}, CmdStomp: {}, CmdConnected: {}, CmdSend: {},
	CmdSubscribe: {}, CmdUnsubscribe: {}, CmdAck: {}, CmdNack: {},
	CmdBegin: {}, CmdCommit: {}, CmdAbort: {}, CmdDisconnect: {},
	CmdMessage: {}, CmdReceipt: {}, CmdError: {},
}

// Connect builds a CONNECT frame. Heart-beating is disabled at the STOMP
// level because the transport keeps itself alive. The token header is only
// set when token is non-empty.
func Connect(host, token string) *Frame {
	f := frame.New(CmdConnect,
		HdrAcceptVersion, Version,
		HdrHost, host,
		HdrHeartBeat, "0,0",
	)
	if token != "" {
		f.Header.Add(HdrToken, token)
	}
	return f
}

// Send builds a SEND frame for destination. contentType may be empty.
func Send(destination, contentType string, body []byte) *Frame {
	f := frame.New(CmdSend, HdrDestination, destination)
	if contentType != "" {
		f.Header.Add(HdrContentType, contentType)
	}
	f.Header.Add(HdrContentLength, strconv.Itoa(len(body)))
	f.Body = body
	return f
}

// Subscribe builds a SUBSCRIBE frame with automatic acknowledgement.
func Subscribe(id, destination string) *Frame {
	return frame.New(CmdSubscribe,
		HdrID, id,
		HdrDestination, destination,
		HdrAck, "auto",
	)
}

// Unsubscribe builds an UNSUBSCRIBE frame.
func Unsubscribe(id string) *Frame {
	return frame.New(CmdUnsubscribe, HdrID, id)
}

// Disconnect builds a DISCONNECT frame, requesting a receipt when receipt is
// non-empty.
func Disconnect(receipt string) *Frame {
	f := frame.New(CmdDisconnect)
	if receipt != "" {
		f.Header.Add(HdrReceipt, receipt)
	}
	return f
}

// ErrorMessage returns the human readable part of an ERROR frame: the
// message header, or the body when the header is absent.
func ErrorMessage(f *Frame) string {
	if msg := f.Header.Get(HdrMessage); msg != "" {
		return msg
	}
	return string(f.Body)
}
