package logging

import (
	"context"
)

type contextKey string

const (
	messageIDKey contextKey = "message_id"
	transportKey contextKey = "transport"
)

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, messageIDKey, messageID)
}

func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, transportKey, transport)
}

func GetMessageID(ctx context.Context) string {
	if messageID, ok := ctx.Value(messageIDKey).(string); ok {
		return messageID
	}
	return ""
}

func GetTransport(ctx context.Context) string {
	if transport, ok := ctx.Value(transportKey).(string); ok {
		return transport
	}
	return ""
}

// GetLogFields collects context-carried fields as zap sugared key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 4)

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, "message_id", messageID)
	}

	if transport := GetTransport(ctx); transport != "" {
		fields = append(fields, "transport", transport)
	}

	return fields
}
