package channel

import "context"

// Channel is an outbound messaging capability. The engine treats each
// implementation as an opaque send(text, destination) primitive.
type Channel interface {
	// Name identifies the channel in logs, metrics, and outcome reports.
	Name() string
	// IsAvailable reports whether the channel can currently deliver.
	// Unavailable channels are skipped silently during dispatch.
	IsAvailable() bool
	// Send delivers text to a single destination.
	Send(ctx context.Context, destination, text string) error
	// BroadcastDestination returns the channel's separate broadcast chat
	// address, empty when none is configured.
	BroadcastDestination() string
}

const (
	NameCloud   = "cloud"
	NameLocal   = "local"
	NameWebhook = "webhook"
)
