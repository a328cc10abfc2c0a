// Package notifications pushes terminal job events to an ntfy topic.
//
// The ntfy transport plugs into the events fan-out and ignores progress
// events; only completed and failed jobs produce a push. When no topic is
// configured NewNtfy returns nil and the daemon simply leaves the transport
// out.
package notifications
