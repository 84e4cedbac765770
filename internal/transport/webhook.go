package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sentinella/internal/config"
	"sentinella/internal/engine"
	"sentinella/internal/logger"
	pkgerrors "sentinella/pkg/errors"
	"sentinella/pkg/logging"
	"sentinella/pkg/models"
)

// WebhookHandler receives inbound traffic from the hosted messaging API. The
// provider redelivers on non-200 responses, so intake always acknowledges
// and failures are handled internally.
type WebhookHandler struct {
	engine *engine.Engine
	cfg    config.CloudChannelConfig
	logger logger.Logger
}

func NewWebhookHandler(eng *engine.Engine, cfg config.CloudChannelConfig, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		engine: eng,
		cfg:    cfg,
		logger: log,
	}
}

func (h *WebhookHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/webhook", h.Verify)
	router.POST("/webhook", h.Receive)
}

// Verify answers the provider's subscription handshake: echo the challenge
// when mode and token match, reject otherwise.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.cfg.VerifyToken {
		h.logger.Infow("webhook subscription verified")
		c.String(http.StatusOK, challenge)
		return
	}

	h.logger.Warnw("webhook verification rejected", "mode", mode)
	c.Status(http.StatusForbidden)
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload cloudWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warnw("unparseable webhook payload", "error", err)
		c.String(http.StatusOK, "EVENT_RECEIVED")
		return
	}

	ctx := logging.WithTransport(c.Request.Context(), models.SourceCloud)

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := contactNames(change.Value.Contacts)
			for _, raw := range change.Value.Messages {
				msg, ok := normalizeCloudMessage(raw, names)
				if !ok {
					h.logger.DebugwCtx(ctx, "skipping unsupported inbound type",
						"type", raw.Type, "message_id", raw.ID)
					continue
				}

				if msg.HasText() && h.engine.IsCommand(msg.Content.Text) {
					res := h.engine.HandleAdminCommand(ctx, msg)
					h.logger.InfowCtx(ctx, "admin command handled",
						"success", res.Success, "sender", msg.From.PhoneNumber)
					continue
				}

				if _, err := h.engine.Process(ctx, msg); err != nil {
					if pkgerrors.IsDuplicate(err) {
						continue
					}
					h.logger.ErrorwCtx(ctx, "failed to process webhook message",
						"message_id", msg.MessageID, "error", err)
				}
			}
		}
	}

	c.String(http.StatusOK, "EVENT_RECEIVED")
}

type cloudWebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []cloudContact        `json:"contacts"`
				Messages []cloudInboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type cloudContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type cloudText struct {
	Body string `json:"body"`
}

type cloudMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

type cloudInboundMessage struct {
	From      string      `json:"from"`
	ID        string      `json:"id"`
	Timestamp string      `json:"timestamp"`
	Type      string      `json:"type"`
	Text      *cloudText  `json:"text"`
	Image     *cloudMedia `json:"image"`
	Document  *cloudMedia `json:"document"`
	Audio     *cloudMedia `json:"audio"`
	Video     *cloudMedia `json:"video"`
	Sticker   *cloudMedia `json:"sticker"`
	Location  *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Address   string  `json:"address"`
	} `json:"location"`
}

func contactNames(contacts []cloudContact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.Profile.Name != "" {
			names[c.WaID] = c.Profile.Name
		}
	}
	return names
}

// normalizeCloudMessage maps a provider message onto the internal model.
// Unrecognized content types are reported as not ok and skipped upstream.
func normalizeCloudMessage(raw cloudInboundMessage, names map[string]string) (*models.Message, bool) {
	content, ok := cloudContent(raw)
	if !ok {
		return nil, false
	}

	ts := time.Now().UTC()
	if secs, err := strconv.ParseInt(raw.Timestamp, 10, 64); err == nil {
		ts = time.Unix(secs, 0).UTC()
	}

	return &models.Message{
		MessageID: raw.ID,
		From: models.Sender{
			PhoneNumber: raw.From,
			Name:        names[raw.From],
			ProfileName: names[raw.From],
		},
		Content:   content,
		Timestamp: ts,
		Status:    models.StatusReceived,
		Metadata: models.MessageMetadata{
			Priority: models.PriorityMedium,
			Source:   models.SourceCloud,
		},
	}, true
}

func cloudContent(raw cloudInboundMessage) (models.Content, bool) {
	switch raw.Type {
	case "text":
		var body string
		if raw.Text != nil {
			body = raw.Text.Body
		}
		return models.Content{Type: models.ContentText, Text: body}, true
	case "image":
		return mediaContent(models.ContentImage, raw.Image), true
	case "document":
		return mediaContent(models.ContentDocument, raw.Document), true
	case "audio":
		return mediaContent(models.ContentAudio, raw.Audio), true
	case "video":
		return mediaContent(models.ContentVideo, raw.Video), true
	case "sticker":
		return mediaContent(models.ContentSticker, raw.Sticker), true
	case "location":
		content := models.Content{Type: models.ContentLocation}
		if raw.Location != nil {
			content.Location = &models.Location{
				Latitude:  raw.Location.Latitude,
				Longitude: raw.Location.Longitude,
				Name:      raw.Location.Name,
				Address:   raw.Location.Address,
			}
		}
		return content, true
	case "contacts":
		return models.Content{Type: models.ContentContact}, true
	}
	return models.Content{}, false
}

func mediaContent(t models.ContentType, media *cloudMedia) models.Content {
	content := models.Content{Type: t}
	if media == nil {
		return content
	}
	content.Text = media.Caption
	content.Media = &models.Media{
		MimeType: media.MimeType,
		FileName: media.Filename,
	}
	return content
}
