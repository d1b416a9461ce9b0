// Package api provides the game server REST client.
//
// Every endpoint answers with an envelope:
//
//	{"code": 200, "message": "success", "data": ...}
//
// A code other than 200 is returned as a *ResponseError; transport-level
// failures (HTTP status >= 400) as an *APIError. Authenticated calls carry
// the session token in the satoken header.
//
// Endpoints:
//   - POST /auth/login, /auth/register, /auth/logout
//   - GET  /auth/me
//   - GET  /room/code/{roomCode}, /room/{roomId}/players, /room/available
package api
