package command

import (
	"encoding/json"
	"fmt"
	"strings"

	pkgerrors "sentinella/pkg/errors"
	"sentinella/pkg/models"
)

// FieldUpdate is one parsed, typed field assignment ready to apply to a
// filter. Each updatable field has its own variant so parsing failures are
// caught before any store write happens.
type FieldUpdate interface {
	Field() string
	Apply(f *models.Filter)
	// Describe renders the applied value for the confirmation reply.
	Describe() string
}

// ParseFieldUpdate turns a raw field/value pair from the command line into a
// typed update. List-valued fields accept a JSON array; anything that does
// not parse as one is treated as a single-element list, so quoting mistakes
// degrade gracefully instead of erroring.
func ParseFieldUpdate(field, value string) (FieldUpdate, error) {
	switch strings.ToLower(field) {
	case "keywords":
		return keywordsUpdate{values: parseStringList(value)}, nil
	case "authors":
		return authorsUpdate{values: parseAuthorList(value)}, nil
	case "messagetypes", "message_types":
		return messageTypesUpdate{values: parseStringList(value)}, nil
	case "priority":
		if !models.ValidPriority(value) {
			return nil, pkgerrors.ErrValidation.WithDetail("field", field).
				WithDetail("value", value)
		}
		return priorityUpdate{value: value}, nil
	case "important":
		b, err := parseBool(value)
		if err != nil {
			return nil, err
		}
		return importantUpdate{value: b}, nil
	case "archive":
		b, err := parseBool(value)
		if err != nil {
			return nil, err
		}
		return archiveUpdate{value: b}, nil
	case "active":
		b, err := parseBool(value)
		if err != nil {
			return nil, err
		}
		return activeUpdate{value: b}, nil
	}
	return nil, pkgerrors.ErrValidation.WithDetail("field", field)
}

// UpdatableFields lists the field names the interpreter accepts, for help
// text and parsing.
func UpdatableFields() []string {
	return []string{"keywords", "authors", "messagetypes", "priority", "important", "archive", "active"}
}

func isUpdatableField(token string) bool {
	switch strings.ToLower(token) {
	case "keywords", "authors", "messagetypes", "message_types",
		"priority", "important", "archive", "active":
		return true
	}
	return false
}

// parseStringList tries the value as a JSON array first; non-string elements
// are stringified. On any parse failure the whole raw value becomes a
// single-element list.
func parseStringList(value string) []string {
	var raw []interface{}
	if err := json.Unmarshal([]byte(value), &raw); err == nil {
		out := make([]string, 0, len(raw))
		for _, el := range raw {
			out = append(out, fmt.Sprint(el))
		}
		return out
	}
	return []string{value}
}

// parseAuthorList accepts a JSON array of objects ({"phoneNumber","name"}) or
// plain strings; a non-JSON value is treated as a single phone number.
func parseAuthorList(value string) []models.Author {
	var raw []interface{}
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return []models.Author{{PhoneNumber: value}}
	}
	out := make([]models.Author, 0, len(raw))
	for _, el := range raw {
		switch v := el.(type) {
		case string:
			out = append(out, models.Author{PhoneNumber: v})
		case map[string]interface{}:
			a := models.Author{}
			if s, ok := v["phoneNumber"].(string); ok {
				a.PhoneNumber = s
			} else if s, ok := v["phone_number"].(string); ok {
				a.PhoneNumber = s
			}
			if s, ok := v["name"].(string); ok {
				a.Name = s
			}
			out = append(out, a)
		default:
			out = append(out, models.Author{PhoneNumber: fmt.Sprint(v)})
		}
	}
	return out
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "si", "sì", "on":
		return true, nil
	case "false", "no", "off":
		return false, nil
	}
	return false, pkgerrors.ErrValidation.WithDetail("value", value)
}

type keywordsUpdate struct{ values []string }

func (keywordsUpdate) Field() string { return "keywords" }
func (u keywordsUpdate) Apply(f *models.Filter) {
	f.Keywords = u.values
}
func (u keywordsUpdate) Describe() string { return strings.Join(u.values, ", ") }

type authorsUpdate struct{ values []models.Author }

func (authorsUpdate) Field() string { return "authors" }
func (u authorsUpdate) Apply(f *models.Filter) {
	f.Authors = u.values
}
func (u authorsUpdate) Describe() string {
	parts := make([]string, 0, len(u.values))
	for _, a := range u.values {
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", a.Name, a.PhoneNumber))
		} else {
			parts = append(parts, a.PhoneNumber)
		}
	}
	return strings.Join(parts, ", ")
}

type messageTypesUpdate struct{ values []string }

func (messageTypesUpdate) Field() string { return "messageTypes" }
func (u messageTypesUpdate) Apply(f *models.Filter) {
	types := make([]models.ContentType, 0, len(u.values))
	for _, v := range u.values {
		types = append(types, models.ContentType(strings.ToLower(v)))
	}
	f.MessageTypes = types
}
func (u messageTypesUpdate) Describe() string { return strings.Join(u.values, ", ") }

type priorityUpdate struct{ value string }

func (priorityUpdate) Field() string { return "priority" }
func (u priorityUpdate) Apply(f *models.Filter) {
	f.Actions.SetPriority = u.value
}
func (u priorityUpdate) Describe() string { return u.value }

type importantUpdate struct{ value bool }

func (importantUpdate) Field() string { return "important" }
func (u importantUpdate) Apply(f *models.Filter) {
	f.Actions.MarkAsImportant = u.value
}
func (u importantUpdate) Describe() string { return fmt.Sprint(u.value) }

type archiveUpdate struct{ value bool }

func (archiveUpdate) Field() string { return "archive" }
func (u archiveUpdate) Apply(f *models.Filter) {
	f.Actions.Archive = u.value
}
func (u archiveUpdate) Describe() string { return fmt.Sprint(u.value) }

type activeUpdate struct{ value bool }

func (activeUpdate) Field() string { return "active" }
func (u activeUpdate) Apply(f *models.Filter) {
	f.Enabled = u.value
}
func (u activeUpdate) Describe() string { return fmt.Sprint(u.value) }
