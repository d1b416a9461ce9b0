// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns one STOMP session at a time over a pluggable transport
//   - Authenticates the session and drives a liveness heartbeat
//   - Reconnects with bounded exponential backoff after abnormal closure
//   - Routes inbound MESSAGE frames to topic subscriptions
//
// Subscriptions belong to the handle they were made on. Callers re-subscribe
// from their onConnect callback, which runs after every successful
// (re)connect.
package connection
