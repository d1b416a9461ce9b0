// Package poller implements the room snapshot poller.
//
// The poller:
//   - Fetches the room and its seated players over REST on an interval
//   - Runs only while the message bus is down (the gate returns true)
//   - Fetches room and players concurrently
//   - Hands each snapshot to a SnapshotHandler
package poller
