// Package session holds the authoritative recording state consumed by the
// interface layer.
//
// # Overview
//
// A Controller wraps the process supervisor. It turns user commands into
// supervisor calls and supervisor events into state transitions, and it
// derives the elapsed recording time from an injectable clock so pausing
// never advances the timer.
//
// # States
//
//	Idle ──start──▶ Starting ──spawned──▶ Recording ◀──resume/pause──▶ Paused
//	                   │                      │                          │
//	                   └──failed──▶ Error     └───────stop──▶ Stopping ◀─┘
//	                                  │                          │
//	                                  ▼                     terminated
//	                                 Idle ◀──after display── Saved
//
// Saved and Error are transient. Each reverts to Idle on its own after a
// fixed display window unless a new session has started in the meantime.
// An encoder that exits on its own also lands in Saved: the file it wrote
// is treated as a completed recording and the exit code is reported
// alongside it.
//
// # Elapsed time
//
// Elapsed time is accumulated across running spans. While Recording it is
// the accumulated total plus the time since the current span began. Pause,
// Stop and termination fold the current span into the total and freeze it.
//
// # Subscribers
//
// Subscribe returns a channel that receives a Snapshot after every
// transition. Delivery never blocks the controller; a slow subscriber skips
// intermediate snapshots but always holds the newest one.
package session
