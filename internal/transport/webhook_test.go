package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinella/internal/config"
	"sentinella/internal/logger"
	"sentinella/pkg/models"
)

func verifyRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewWebhookHandler(nil, config.CloudChannelConfig{VerifyToken: token}, logger.NopLogger())
	router.GET("/webhook", h.Verify)
	return router
}

func TestVerify_EchoesChallengeOnTokenMatch(t *testing.T) {
	router := verifyRouter("segreto")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=segreto&hub.challenge=12345", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", w.Body.String())
}

func TestVerify_RejectsWrongToken(t *testing.T) {
	router := verifyRouter("segreto")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=sbagliato&hub.challenge=12345", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVerify_RejectsWrongMode(t *testing.T) {
	router := verifyRouter("segreto")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=unsubscribe&hub.verify_token=segreto&hub.challenge=12345", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNormalizeCloudMessage_Text(t *testing.T) {
	raw := cloudInboundMessage{
		From:      "391234567890",
		ID:        "wamid.1",
		Timestamp: "1710153000",
		Type:      "text",
		Text:      &cloudText{Body: "ciao a tutti"},
	}
	names := map[string]string{"391234567890": "Mario Rossi"}

	msg, ok := normalizeCloudMessage(raw, names)
	require.True(t, ok)

	assert.Equal(t, "wamid.1", msg.MessageID)
	assert.Equal(t, "391234567890", msg.From.PhoneNumber)
	assert.Equal(t, "Mario Rossi", msg.From.Name)
	assert.Equal(t, models.ContentText, msg.Content.Type)
	assert.Equal(t, "ciao a tutti", msg.Content.Text)
	assert.Equal(t, time.Unix(1710153000, 0).UTC(), msg.Timestamp)
	assert.Equal(t, models.StatusReceived, msg.Status)
	assert.Equal(t, models.SourceCloud, msg.Metadata.Source)
	assert.Equal(t, models.PriorityMedium, msg.Metadata.Priority)
}

func TestNormalizeCloudMessage_MediaCaptionBecomesText(t *testing.T) {
	raw := cloudInboundMessage{
		From:      "39111",
		ID:        "wamid.2",
		Timestamp: "1710153000",
		Type:      "image",
		Image:     &cloudMedia{MimeType: "image/jpeg", Caption: "guarda qui"},
	}

	msg, ok := normalizeCloudMessage(raw, nil)
	require.True(t, ok)

	assert.Equal(t, models.ContentImage, msg.Content.Type)
	assert.Equal(t, "guarda qui", msg.Content.Text)
	require.NotNil(t, msg.Content.Media)
	assert.Equal(t, "image/jpeg", msg.Content.Media.MimeType)
}

func TestNormalizeCloudMessage_Location(t *testing.T) {
	raw := cloudInboundMessage{
		From:      "39111",
		ID:        "wamid.3",
		Timestamp: "1710153000",
		Type:      "location",
	}
	raw.Location = &struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Address   string  `json:"address"`
	}{Latitude: 43.77, Longitude: 11.25, Name: "Firenze"}

	msg, ok := normalizeCloudMessage(raw, nil)
	require.True(t, ok)
	require.NotNil(t, msg.Content.Location)
	assert.Equal(t, 43.77, msg.Content.Location.Latitude)
	assert.Equal(t, "Firenze", msg.Content.Location.Name)
}

func TestNormalizeCloudMessage_UnsupportedTypeSkipped(t *testing.T) {
	raw := cloudInboundMessage{
		From:      "39111",
		ID:        "wamid.4",
		Timestamp: "1710153000",
		Type:      "reaction",
	}

	_, ok := normalizeCloudMessage(raw, nil)
	assert.False(t, ok)
}

func TestNormalizeCloudMessage_BadTimestampFallsBackToNow(t *testing.T) {
	raw := cloudInboundMessage{
		From:      "39111",
		ID:        "wamid.5",
		Timestamp: "not-a-number",
		Type:      "text",
		Text:      &cloudText{Body: "ciao"},
	}

	before := time.Now().UTC()
	msg, ok := normalizeCloudMessage(raw, nil)
	require.True(t, ok)
	assert.False(t, msg.Timestamp.Before(before.Add(-time.Second)))
}
