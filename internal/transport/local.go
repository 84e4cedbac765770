package transport

import (
	"context"
	"strings"
	"time"

	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"sentinella/internal/channel"
	"sentinella/internal/config"
	"sentinella/internal/engine"
	"sentinella/internal/logger"
	pkgerrors "sentinella/pkg/errors"
	"sentinella/pkg/logging"
	"sentinella/pkg/models"
)

const localProcessTimeout = 30 * time.Second

// LocalTransport feeds messages from the browser-session client into the
// engine. Group chats are gated by the configured allow-list unless
// groups_all opts everything in.
type LocalTransport struct {
	engine  *engine.Engine
	channel *channel.LocalChannel
	cfg     config.LocalChannelConfig
	logger  logger.Logger
}

func NewLocalTransport(eng *engine.Engine, ch *channel.LocalChannel, cfg config.LocalChannelConfig, log logger.Logger) *LocalTransport {
	return &LocalTransport{
		engine:  eng,
		channel: ch,
		cfg:     cfg,
		logger:  log,
	}
}

// Start registers the event handler and connects the session. Inbound events
// are handled on the client's dispatch goroutine with a per-message timeout.
func (t *LocalTransport) Start(ctx context.Context) error {
	client := t.channel.Client()
	if client == nil {
		return nil
	}

	client.AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			t.handleMessage(msg)
		}
	})

	return t.channel.Connect(ctx)
}

func (t *LocalTransport) Stop() {
	t.channel.Disconnect()
}

func (t *LocalTransport) handleMessage(evt *events.Message) {
	if evt.Info.IsFromMe {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), localProcessTimeout)
	defer cancel()
	ctx = logging.WithTransport(ctx, models.SourceLocal)

	var group *models.GroupInfo
	if evt.Info.Chat.Server == types.GroupServer {
		group = t.groupInfo(evt.Info.Chat)
		if !t.groupAllowed(group) {
			return
		}
	}

	msg, ok := normalizeLocalMessage(evt, group)
	if !ok {
		t.logger.DebugwCtx(ctx, "skipping unsupported local event",
			"message_id", evt.Info.ID)
		return
	}

	if msg.HasText() && t.engine.IsCommand(msg.Content.Text) {
		res := t.engine.HandleAdminCommand(ctx, msg)
		t.logger.InfowCtx(ctx, "admin command handled",
			"success", res.Success, "sender", msg.From.PhoneNumber)
		return
	}

	if _, err := t.engine.Process(ctx, msg); err != nil && !pkgerrors.IsDuplicate(err) {
		t.logger.ErrorwCtx(ctx, "failed to process local message",
			"message_id", msg.MessageID, "error", err)
	}
}

func (t *LocalTransport) groupInfo(chat types.JID) *models.GroupInfo {
	info := &models.GroupInfo{ID: chat.String()}
	if gi, err := t.channel.Client().GetGroupInfo(chat); err == nil {
		info.Name = gi.GroupName.Name
	} else {
		t.logger.Warnw("failed to resolve group name", "group", chat.String(), "error", err)
	}
	return info
}

// groupAllowed checks the group against the allow-list by JID or by name,
// case-insensitive on names.
func (t *LocalTransport) groupAllowed(group *models.GroupInfo) bool {
	if t.cfg.GroupsAll {
		return true
	}
	if group == nil {
		return false
	}
	for _, entry := range t.cfg.GroupsList {
		if entry == group.ID || strings.EqualFold(entry, group.Name) {
			return true
		}
	}
	return false
}

func normalizeLocalMessage(evt *events.Message, group *models.GroupInfo) (*models.Message, bool) {
	content, ok := localContent(evt.Message)
	if !ok {
		return nil, false
	}

	return &models.Message{
		MessageID: evt.Info.ID,
		From: models.Sender{
			PhoneNumber: evt.Info.Sender.User,
			Name:        evt.Info.PushName,
			ProfileName: evt.Info.PushName,
		},
		Content:   content,
		Timestamp: evt.Info.Timestamp.UTC(),
		Status:    models.StatusReceived,
		Metadata: models.MessageMetadata{
			Priority: models.PriorityMedium,
			Source:   models.SourceLocal,
			Group:    group,
		},
	}, true
}

func localContent(msg *waProto.Message) (models.Content, bool) {
	if msg == nil {
		return models.Content{}, false
	}

	switch {
	case msg.GetConversation() != "":
		return models.Content{Type: models.ContentText, Text: msg.GetConversation()}, true
	case msg.GetExtendedTextMessage().GetText() != "":
		return models.Content{Type: models.ContentText, Text: msg.GetExtendedTextMessage().GetText()}, true
	case msg.GetImageMessage() != nil:
		img := msg.GetImageMessage()
		return models.Content{
			Type:  models.ContentImage,
			Text:  img.GetCaption(),
			Media: &models.Media{MimeType: img.GetMimetype(), FileSize: int64(img.GetFileLength())},
		}, true
	case msg.GetDocumentMessage() != nil:
		doc := msg.GetDocumentMessage()
		return models.Content{
			Type:  models.ContentDocument,
			Text:  doc.GetCaption(),
			Media: &models.Media{MimeType: doc.GetMimetype(), FileName: doc.GetFileName(), FileSize: int64(doc.GetFileLength())},
		}, true
	case msg.GetAudioMessage() != nil:
		audio := msg.GetAudioMessage()
		return models.Content{
			Type:  models.ContentAudio,
			Media: &models.Media{MimeType: audio.GetMimetype(), FileSize: int64(audio.GetFileLength())},
		}, true
	case msg.GetVideoMessage() != nil:
		video := msg.GetVideoMessage()
		return models.Content{
			Type:  models.ContentVideo,
			Text:  video.GetCaption(),
			Media: &models.Media{MimeType: video.GetMimetype(), FileSize: int64(video.GetFileLength())},
		}, true
	case msg.GetStickerMessage() != nil:
		sticker := msg.GetStickerMessage()
		return models.Content{
			Type:  models.ContentSticker,
			Media: &models.Media{MimeType: sticker.GetMimetype()},
		}, true
	case msg.GetLocationMessage() != nil:
		loc := msg.GetLocationMessage()
		return models.Content{
			Type: models.ContentLocation,
			Location: &models.Location{
				Latitude:  loc.GetDegreesLatitude(),
				Longitude: loc.GetDegreesLongitude(),
				Name:      loc.GetName(),
				Address:   loc.GetAddress(),
			},
		}, true
	case msg.GetContactMessage() != nil:
		contact := msg.GetContactMessage()
		return models.Content{
			Type: models.ContentContact,
			Text: contact.GetDisplayName(),
		}, true
	}
	return models.Content{}, false
}
