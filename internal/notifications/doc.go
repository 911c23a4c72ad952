// Package notifications pushes pipeline events to an operator via ntfy.
//
// Only two events matter in practice: a batch reaching READY and an asset
// entering ERROR after its retries are exhausted. Each can be toggled in the
// [notifications] config section. Without a topic the service is a no-op.
package notifications
