// Package stomp encodes and decodes the STOMP 1.2 text frames spoken on top of
// the transport. Framing is delegated to go-stomp's frame package; this
// package adds the command and header vocabulary the client uses and the
// frame builders for CONNECT, SEND, SUBSCRIBE, UNSUBSCRIBE and DISCONNECT.
package stomp
