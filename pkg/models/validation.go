package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateMessage rejects malformed normalized messages before persistence.
func ValidateMessage(msg *Message) error {
	if msg == nil {
		return &ValidationError{
			Field:   "message",
			Message: "message cannot be nil",
		}
	}

	if msg.MessageID == "" {
		return &ValidationError{
			Field:   "message_id",
			Message: "message ID is required",
		}
	}

	if msg.From.PhoneNumber == "" {
		return &ValidationError{
			Field:   "from.phone_number",
			Message: "sender phone number is required",
		}
	}

	if !ValidContentType(msg.Content.Type) {
		return &ValidationError{
			Field:   "content.type",
			Message: fmt.Sprintf("unknown content type '%s'", msg.Content.Type),
		}
	}

	if msg.Timestamp.IsZero() {
		return &ValidationError{
			Field:   "timestamp",
			Message: "message timestamp is required",
		}
	}

	return nil
}

// ValidateFilter checks structural constraints on a filter definition.
func ValidateFilter(f *Filter) error {
	if f == nil {
		return &ValidationError{Field: "filter", Message: "filter cannot be nil"}
	}

	if f.Name == "" {
		return &ValidationError{Field: "name", Message: "filter name is required"}
	}

	for _, mt := range f.MessageTypes {
		if !ValidContentType(mt) {
			return &ValidationError{
				Field:   "message_types",
				Message: fmt.Sprintf("unknown content type '%s'", mt),
			}
		}
	}

	if f.Actions.SetPriority != "" && !ValidPriority(f.Actions.SetPriority) {
		return &ValidationError{
			Field:   "actions.set_priority",
			Message: fmt.Sprintf("unknown priority '%s'", f.Actions.SetPriority),
		}
	}

	if f.TimeRange != nil {
		for _, d := range f.TimeRange.Days {
			if d < 0 || d > 6 {
				return &ValidationError{
					Field:   "time_range.days",
					Message: fmt.Sprintf("weekday index %d out of range 0-6", d),
				}
			}
		}
	}

	return nil
}
