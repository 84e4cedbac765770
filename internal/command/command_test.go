package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinella/internal/channel"
	"sentinella/internal/logger"
	"sentinella/internal/store"
	pkgerrors "sentinella/pkg/errors"
	"sentinella/pkg/models"
)

type stubFilterRepo struct {
	mu      sync.Mutex
	filters map[string]*models.Filter
	saved   []models.Filter
	findErr error
	saveErr error
}

func newStubFilterRepo(filters ...*models.Filter) *stubFilterRepo {
	r := &stubFilterRepo{filters: make(map[string]*models.Filter)}
	for _, f := range filters {
		r.filters[f.Name] = f
	}
	return r
}

func (r *stubFilterRepo) FindEnabled(ctx context.Context) ([]models.Filter, error) {
	return r.List(ctx)
}

func (r *stubFilterRepo) FindByName(ctx context.Context, name string) (*models.Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	if f, ok := r.filters[name]; ok {
		copied := *f
		return &copied, nil
	}
	return nil, nil
}

func (r *stubFilterRepo) List(ctx context.Context) ([]models.Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Filter
	for _, f := range r.filters {
		out = append(out, *f)
	}
	return out, nil
}

func (r *stubFilterRepo) Get(ctx context.Context, id string) (*models.Filter, error) {
	return nil, pkgerrors.ErrNotFound
}

func (r *stubFilterRepo) Create(ctx context.Context, filter *models.Filter) error {
	return nil
}

func (r *stubFilterRepo) Save(ctx context.Context, filter *models.Filter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, *filter)
	copied := *filter
	r.filters[filter.Name] = &copied
	return nil
}

func (r *stubFilterRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return nil
}

func (r *stubFilterRepo) RecordMatch(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (r *stubFilterRepo) Delete(ctx context.Context, id string) error {
	return nil
}

var _ store.FilterRepository = (*stubFilterRepo)(nil)

type stubRefresher struct {
	calls int
}

func (s *stubRefresher) Refresh(ctx context.Context) error {
	s.calls++
	return nil
}

type stubChannel struct {
	mu   sync.Mutex
	name string
	sent []string
}

func (c *stubChannel) Name() string                 { return c.name }
func (c *stubChannel) IsAvailable() bool            { return true }
func (c *stubChannel) BroadcastDestination() string { return "" }

func (c *stubChannel) Send(ctx context.Context, destination, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func commandMessage(phone, text string) *models.Message {
	return &models.Message{
		MessageID: "cmd-1",
		From:      models.Sender{PhoneNumber: phone},
		Content:   models.Content{Type: models.ContentText, Text: text},
		Timestamp: time.Now().UTC(),
		Status:    models.StatusReceived,
		Metadata:  models.MessageMetadata{Source: models.SourceCloud},
	}
}

func newTestInterpreter(repo *stubFilterRepo, refresher *stubRefresher, ch *stubChannel) *Interpreter {
	return NewInterpreter(repo, refresher, []channel.Channel{ch}, []string{"+39 333 1234567"}, logger.NopLogger())
}

func TestSplitUpdateCommand(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantName  string
		wantField string
		wantValue string
		wantOK    bool
	}{
		{
			name:      "single word filter name",
			input:     "aggiorna filtro Urgenti priority high",
			wantName:  "Urgenti",
			wantField: "priority",
			wantValue: "high",
			wantOK:    true,
		},
		{
			name:      "multi word filter name",
			input:     "aggiorna filtro Messaggi Urgenti priority high",
			wantName:  "Messaggi Urgenti",
			wantField: "priority",
			wantValue: "high",
			wantOK:    true,
		},
		{
			name:      "json array value with spaces",
			input:     `aggiorna filtro Messaggi Urgenti keywords ["urgente", "asap"]`,
			wantName:  "Messaggi Urgenti",
			wantField: "keywords",
			wantValue: `["urgente", "asap"]`,
			wantOK:    true,
		},
		{
			name:      "english verb",
			input:     "update filter Work active false",
			wantName:  "Work",
			wantField: "active",
			wantValue: "false",
			wantOK:    true,
		},
		{
			name:   "missing value",
			input:  "aggiorna filtro Urgenti priority",
			wantOK: false,
		},
		{
			name:   "missing field",
			input:  "aggiorna filtro Urgenti",
			wantOK: false,
		},
		{
			name:   "no name before field",
			input:  "aggiorna filtro priority high",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, field, value, ok := splitUpdateCommand(tt.input)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantField, field)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestParseFieldUpdate_Keywords(t *testing.T) {
	upd, err := ParseFieldUpdate("keywords", `["urgente","asap"]`)
	require.NoError(t, err)

	f := &models.Filter{}
	upd.Apply(f)
	assert.Equal(t, []string{"urgente", "asap"}, f.Keywords)
}

func TestParseFieldUpdate_KeywordsFallbackOnBadJSON(t *testing.T) {
	upd, err := ParseFieldUpdate("keywords", `[unterminated`)
	require.NoError(t, err)

	f := &models.Filter{}
	upd.Apply(f)
	assert.Equal(t, []string{`[unterminated`}, f.Keywords)
}

func TestParseFieldUpdate_Authors(t *testing.T) {
	upd, err := ParseFieldUpdate("authors", `[{"phoneNumber":"39111","name":"Mario"},"39222"]`)
	require.NoError(t, err)

	f := &models.Filter{}
	upd.Apply(f)
	require.Len(t, f.Authors, 2)
	assert.Equal(t, models.Author{PhoneNumber: "39111", Name: "Mario"}, f.Authors[0])
	assert.Equal(t, models.Author{PhoneNumber: "39222"}, f.Authors[1])
}

func TestParseFieldUpdate_AuthorsScalarFallback(t *testing.T) {
	upd, err := ParseFieldUpdate("authors", "39333")
	require.NoError(t, err)

	f := &models.Filter{}
	upd.Apply(f)
	assert.Equal(t, []models.Author{{PhoneNumber: "39333"}}, f.Authors)
}

func TestParseFieldUpdate_Booleans(t *testing.T) {
	upd, err := ParseFieldUpdate("active", "false")
	require.NoError(t, err)
	f := &models.Filter{Enabled: true}
	upd.Apply(f)
	assert.False(t, f.Enabled)

	_, err = ParseFieldUpdate("important", "maybe")
	assert.Error(t, err)
}

func TestParseFieldUpdate_InvalidPriorityRejected(t *testing.T) {
	_, err := ParseFieldUpdate("priority", "extreme")
	assert.Error(t, err)
}

func TestParseFieldUpdate_UnknownFieldRejected(t *testing.T) {
	_, err := ParseFieldUpdate("colore", "rosso")
	assert.Error(t, err)
}

func TestHandle_UnauthorizedSenderRefused(t *testing.T) {
	repo := newStubFilterRepo(&models.Filter{ID: "f1", Name: "Urgenti", Enabled: true})
	refresher := &stubRefresher{}
	ch := &stubChannel{name: channel.NameCloud}
	interp := newTestInterpreter(repo, refresher, ch)

	msg := commandMessage("39999999999", "aggiorna filtro Urgenti priority high")
	res := interp.Handle(context.Background(), msg)

	assert.False(t, res.Success)
	assert.Empty(t, repo.saved)
	// refusal is still relayed to the sender
	require.Len(t, ch.sent, 1)
	assert.Contains(t, ch.sent[0], "autorizzato")
}

func TestHandle_AuthorizationIgnoresNumberFormatting(t *testing.T) {
	repo := newStubFilterRepo()
	refresher := &stubRefresher{}
	ch := &stubChannel{name: channel.NameCloud}
	interp := newTestInterpreter(repo, refresher, ch)

	// allow-list holds "+39 333 1234567"; sender arrives without formatting
	msg := commandMessage("393331234567", "help")
	res := interp.Handle(context.Background(), msg)

	assert.True(t, res.Success)
}

func TestHandle_UpdateFilterPriority(t *testing.T) {
	repo := newStubFilterRepo(&models.Filter{ID: "f1", Name: "Messaggi Urgenti", Enabled: true})
	refresher := &stubRefresher{}
	ch := &stubChannel{name: channel.NameCloud}
	interp := newTestInterpreter(repo, refresher, ch)

	msg := commandMessage("393331234567", "aggiorna filtro Messaggi Urgenti priority high")
	res := interp.Handle(context.Background(), msg)

	require.True(t, res.Success)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, "high", repo.saved[0].Actions.SetPriority)
	assert.Equal(t, 1, refresher.calls)
	require.Len(t, ch.sent, 1)
	assert.Contains(t, ch.sent[0], "Messaggi Urgenti")
}

func TestHandle_UpdateUnknownFilter(t *testing.T) {
	repo := newStubFilterRepo()
	refresher := &stubRefresher{}
	ch := &stubChannel{name: channel.NameCloud}
	interp := newTestInterpreter(repo, refresher, ch)

	msg := commandMessage("393331234567", "aggiorna filtro Fantasma priority high")
	res := interp.Handle(context.Background(), msg)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "non trovato")
	assert.Zero(t, refresher.calls)
}

func TestHandle_ListFilters(t *testing.T) {
	repo := newStubFilterRepo(
		&models.Filter{ID: "f1", Name: "Urgenti", Enabled: true, Stats: models.FilterStats{Matches: 3}},
		&models.Filter{ID: "f2", Name: "Lavoro", Enabled: false},
	)
	refresher := &stubRefresher{}
	ch := &stubChannel{name: channel.NameCloud}
	interp := newTestInterpreter(repo, refresher, ch)

	msg := commandMessage("393331234567", "lista filtri")
	res := interp.Handle(context.Background(), msg)

	require.True(t, res.Success)
	assert.Contains(t, res.Message, "Urgenti")
	assert.Contains(t, res.Message, "Lavoro")
}

func TestHandle_UnrecognizedCommand(t *testing.T) {
	repo := newStubFilterRepo()
	refresher := &stubRefresher{}
	ch := &stubChannel{name: channel.NameCloud}
	interp := newTestInterpreter(repo, refresher, ch)

	msg := commandMessage("393331234567", "cancella tutto")
	res := interp.Handle(context.Background(), msg)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "non riconosciuto")
}

func TestRecognizes(t *testing.T) {
	interp := newTestInterpreter(newStubFilterRepo(), &stubRefresher{}, &stubChannel{name: channel.NameCloud})

	assert.True(t, interp.Recognizes("help"))
	assert.True(t, interp.Recognizes("  Lista Filtri "))
	assert.True(t, interp.Recognizes("aggiorna filtro X priority high"))
	assert.True(t, interp.Recognizes("update filter X active true"))
	assert.False(t, interp.Recognizes("un messaggio qualunque"))
	assert.False(t, interp.Recognizes(""))
}
