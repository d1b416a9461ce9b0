// Package transport provides the duplex socket the connection manager runs on.
//
// A Factory turns an endpoint URL into a Conn; Conn.Open dials in the
// background and reports progress through a Handler (open, message, close,
// error). The WebSocket implementation can speak plain WebSocket or the
// SockJS websocket transport used by Spring message brokers:
//
//	o                 session open
//	h                 server heartbeat
//	a["m1","m2"]      message batch
//	c[3000,"Go away"] server close
//
// The transport keeps itself alive with WebSocket pings on PingInterval and
// drops the socket when no pong arrives within PongTimeout.
package transport
