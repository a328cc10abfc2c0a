// Package events fans out job progress to the owning organization.
//
// Events are addressed to one channel per organization (org-<name>) and carry
// the wire names video:progress, video:complete and video:error. A Publisher
// hands each event to every configured Transport: the in-process Hub backing
// the SSE and long-poll endpoints, and optionally NATS. Delivery is best
// effort; transport failures are reported to the caller, which logs and
// discards them.
package events
