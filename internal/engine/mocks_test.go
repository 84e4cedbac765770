package engine

import (
	"context"
	"sync"
	"time"

	"sentinella/internal/logger"
	"sentinella/internal/store"
	pkgerrors "sentinella/pkg/errors"
	"sentinella/pkg/models"
)

func testLogger() logger.Logger {
	return logger.NopLogger()
}

type fakeFilterRepo struct {
	mu         sync.Mutex
	filters    []models.Filter
	findErr    error
	matchCalls []string
	recordErr  error
}

func (r *fakeFilterRepo) FindEnabled(ctx context.Context) ([]models.Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []models.Filter
	for _, f := range r.filters {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFilterRepo) FindByName(ctx context.Context, name string) (*models.Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.filters {
		if r.filters[i].Name == name {
			f := r.filters[i]
			return &f, nil
		}
	}
	return nil, nil
}

func (r *fakeFilterRepo) List(ctx context.Context) ([]models.Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Filter, len(r.filters))
	copy(out, r.filters)
	return out, nil
}

func (r *fakeFilterRepo) Get(ctx context.Context, id string) (*models.Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.filters {
		if r.filters[i].ID == id {
			f := r.filters[i]
			return &f, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (r *fakeFilterRepo) Create(ctx context.Context, filter *models.Filter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.filters {
		if f.Name == filter.Name {
			return pkgerrors.ErrDuplicate
		}
	}
	r.filters = append(r.filters, *filter)
	return nil
}

func (r *fakeFilterRepo) Save(ctx context.Context, filter *models.Filter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.filters {
		if r.filters[i].ID == filter.ID {
			r.filters[i] = *filter
			return nil
		}
	}
	return pkgerrors.ErrNotFound
}

func (r *fakeFilterRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return nil
}

func (r *fakeFilterRepo) RecordMatch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchCalls = append(r.matchCalls, id)
	return r.recordErr
}

func (r *fakeFilterRepo) Delete(ctx context.Context, id string) error {
	return nil
}

var _ store.FilterRepository = (*fakeFilterRepo)(nil)

type fakeMessageRepo struct {
	mu        sync.Mutex
	created   []models.Message
	saved     []models.Message
	createErr error
	saveErr   error
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, m := range r.created {
		if m.MessageID == msg.MessageID {
			return pkgerrors.ErrDuplicate
		}
	}
	if msg.Status == "" {
		msg.Status = models.StatusReceived
	}
	if msg.Metadata.Priority == "" {
		msg.Metadata.Priority = models.PriorityMedium
	}
	r.created = append(r.created, *msg)
	return nil
}

func (r *fakeMessageRepo) Save(ctx context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	msg.Revision++
	r.saved = append(r.saved, *msg)
	return nil
}

func (r *fakeMessageRepo) Get(ctx context.Context, id string) (*models.Message, error) {
	return nil, pkgerrors.ErrNotFound
}

func (r *fakeMessageRepo) List(ctx context.Context, q store.MessageQuery) ([]models.Message, int64, error) {
	return nil, 0, nil
}

func (r *fakeMessageRepo) UpdateMetadata(ctx context.Context, id string, fields map[string]interface{}) (*models.Message, error) {
	return nil, pkgerrors.ErrNotFound
}

func (r *fakeMessageRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (r *fakeMessageRepo) lastSaved() *models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return nil
	}
	m := r.saved[len(r.saved)-1]
	return &m
}

var _ store.MessageRepository = (*fakeMessageRepo)(nil)

type sentEntry struct {
	destination string
	text        string
}

type fakeChannel struct {
	mu        sync.Mutex
	name      string
	available bool
	broadcast string
	sendErr   error
	sent      []sentEntry
}

func (c *fakeChannel) Name() string                 { return c.name }
func (c *fakeChannel) IsAvailable() bool            { return c.available }
func (c *fakeChannel) BroadcastDestination() string { return c.broadcast }

func (c *fakeChannel) Send(ctx context.Context, destination, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, sentEntry{destination: destination, text: text})
	return nil
}

func (c *fakeChannel) sentTo(destination string) []sentEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentEntry
	for _, s := range c.sent {
		if s.destination == destination {
			out = append(out, s)
		}
	}
	return out
}

type fakeSuppressor struct {
	suppress bool
	calls    int
}

func (s *fakeSuppressor) ShouldSuppress(ctx context.Context, filter *models.Filter, msg *models.Message) bool {
	s.calls++
	return s.suppress && filter.UniqueText.Enabled
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.OutcomeEvent
	err    error
}

func (p *fakePublisher) PublishOutcome(ctx context.Context, event models.OutcomeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func textMessage(id, phone, name, text string) *models.Message {
	return &models.Message{
		MessageID: id,
		From:      models.Sender{PhoneNumber: phone, Name: name},
		Content:   models.Content{Type: models.ContentText, Text: text},
		Timestamp: time.Date(2024, 3, 11, 10, 30, 0, 0, time.UTC),
		Status:    models.StatusReceived,
		Metadata:  models.MessageMetadata{Priority: models.PriorityMedium, Source: models.SourceCloud},
	}
}
