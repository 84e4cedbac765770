package models

import "time"

// MessageStatus tracks a message through its processing lifecycle.
// Transitions only move forward: received -> processed | filtered -> archived.
type MessageStatus string

const (
	StatusReceived  MessageStatus = "received"
	StatusProcessed MessageStatus = "processed"
	StatusFiltered  MessageStatus = "filtered"
	StatusArchived  MessageStatus = "archived"
)

// ContentType is the closed set of message content types accepted from transports.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentDocument ContentType = "document"
	ContentAudio    ContentType = "audio"
	ContentVideo    ContentType = "video"
	ContentLocation ContentType = "location"
	ContentContact  ContentType = "contact"
	ContentSticker  ContentType = "sticker"
)

// Priority levels assigned to messages by filter actions or operators.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	SourceCloud   = "cloud"
	SourceLocal   = "local"
	SourceWebhook = "webhook"
)

type Sender struct {
	PhoneNumber string `json:"phone_number" bson:"phone_number"`
	Name        string `json:"name,omitempty" bson:"name,omitempty"`
	ProfileName string `json:"profile_name,omitempty" bson:"profile_name,omitempty"`
}

type Recipient struct {
	PhoneNumber string `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
}

type Media struct {
	URL      string `json:"url,omitempty" bson:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty" bson:"mime_type,omitempty"`
	FileName string `json:"file_name,omitempty" bson:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty" bson:"file_size,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
	Name      string  `json:"name,omitempty" bson:"name,omitempty"`
	Address   string  `json:"address,omitempty" bson:"address,omitempty"`
}

type Content struct {
	Type     ContentType `json:"type" bson:"type"`
	Text     string      `json:"text,omitempty" bson:"text,omitempty"`
	Media    *Media      `json:"media,omitempty" bson:"media,omitempty"`
	Location *Location   `json:"location,omitempty" bson:"location,omitempty"`
}

// GroupInfo identifies the originating group chat for group-sourced messages.
type GroupInfo struct {
	ID   string `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

type MessageMetadata struct {
	IsImportant bool       `json:"is_important" bson:"is_important"`
	Priority    string     `json:"priority" bson:"priority"`
	Tags        []string   `json:"tags,omitempty" bson:"tags,omitempty"`
	Notes       string     `json:"notes,omitempty" bson:"notes,omitempty"`
	Source      string     `json:"source,omitempty" bson:"source,omitempty"`
	Group       *GroupInfo `json:"group,omitempty" bson:"group,omitempty"`
}

// Message is a normalized inbound chat event. After initial persistence by a
// transport, status and metadata are written only by the engine; the Revision
// field backs conflict detection on concurrent saves.
type Message struct {
	ID        string          `json:"id" bson:"_id,omitempty"`
	MessageID string          `json:"message_id" bson:"message_id"`
	From      Sender          `json:"from" bson:"from"`
	To        Recipient       `json:"to,omitempty" bson:"to,omitempty"`
	Content   Content         `json:"content" bson:"content"`
	Timestamp time.Time       `json:"timestamp" bson:"timestamp"`
	Status    MessageStatus   `json:"status" bson:"status"`
	Metadata  MessageMetadata `json:"metadata" bson:"metadata"`
	Revision  int64           `json:"-" bson:"revision"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" bson:"updated_at"`
}

// AddTag unions a tag into the tag set. Re-applying the same tag is a no-op.
func (m *Message) AddTag(tag string) {
	for _, t := range m.Metadata.Tags {
		if t == tag {
			return
		}
	}
	m.Metadata.Tags = append(m.Metadata.Tags, tag)
}

// HasText reports whether the message carries usable text content.
func (m *Message) HasText() bool {
	return m.Content.Text != ""
}

// CanTransition reports whether moving to the given status respects the
// forward-only state machine. Archived is reachable only from filtered.
func (m *Message) CanTransition(to MessageStatus) bool {
	switch m.Status {
	case StatusReceived:
		return to == StatusProcessed || to == StatusFiltered
	case StatusFiltered:
		return to == StatusArchived
	default:
		return false
	}
}

func ValidContentType(t ContentType) bool {
	switch t {
	case ContentText, ContentImage, ContentDocument, ContentAudio,
		ContentVideo, ContentLocation, ContentContact, ContentSticker:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
