// Package model defines the wire types exchanged with the game server.
//
// Conventions:
//   - Every REST response and every broadcast is wrapped in an Envelope
//   - IDs: int64 database ids; rooms are also addressed by a room code
//   - Timestamps: server-local ISO 8601 strings, kept verbatim
package model
