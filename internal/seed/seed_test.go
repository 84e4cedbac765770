package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinella/internal/logger"
	pkgerrors "sentinella/pkg/errors"
	"sentinella/pkg/models"
)

type memFilterRepo struct {
	filters map[string]models.Filter
	created []string
}

func newMemFilterRepo() *memFilterRepo {
	return &memFilterRepo{filters: make(map[string]models.Filter)}
}

func (r *memFilterRepo) FindEnabled(ctx context.Context) ([]models.Filter, error) { return nil, nil }

func (r *memFilterRepo) FindByName(ctx context.Context, name string) (*models.Filter, error) {
	if f, ok := r.filters[name]; ok {
		return &f, nil
	}
	return nil, nil
}

func (r *memFilterRepo) List(ctx context.Context) ([]models.Filter, error) { return nil, nil }

func (r *memFilterRepo) Get(ctx context.Context, id string) (*models.Filter, error) {
	return nil, pkgerrors.ErrNotFound
}

func (r *memFilterRepo) Create(ctx context.Context, filter *models.Filter) error {
	r.filters[filter.Name] = *filter
	r.created = append(r.created, filter.Name)
	return nil
}

func (r *memFilterRepo) Save(ctx context.Context, filter *models.Filter) error { return nil }

func (r *memFilterRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return nil
}

func (r *memFilterRepo) RecordMatch(ctx context.Context, id string, at time.Time) error { return nil }

func (r *memFilterRepo) Delete(ctx context.Context, id string) error { return nil }

func TestApply_DefaultsCreateBothSeedFilters(t *testing.T) {
	repo := newMemFilterRepo()

	require.NoError(t, Apply(context.Background(), repo, "", logger.NopLogger()))

	assert.ElementsMatch(t, []string{"Messaggi Urgenti", "Messaggi di Lavoro"}, repo.created)
	urgenti := repo.filters["Messaggi Urgenti"]
	assert.True(t, urgenti.Enabled)
	assert.Contains(t, urgenti.Keywords, "urgente")
	assert.Equal(t, models.PriorityUrgent, urgenti.Actions.SetPriority)
}

func TestApply_SkipsExistingFilters(t *testing.T) {
	repo := newMemFilterRepo()
	repo.filters["Messaggi Urgenti"] = models.Filter{
		ID:   "f1",
		Name: "Messaggi Urgenti",
		// operator disabled it, a restart must not resurrect it
		Enabled: false,
	}

	require.NoError(t, Apply(context.Background(), repo, "", logger.NopLogger()))

	assert.Equal(t, []string{"Messaggi di Lavoro"}, repo.created)
	assert.False(t, repo.filters["Messaggi Urgenti"].Enabled)
}

func TestApply_CustomSeedJSON(t *testing.T) {
	repo := newMemFilterRepo()
	seedJSON := `[{"name":"Solo Foto","message_types":["image"],"enabled":true,"actions":{"add_tags":["foto"]}}]`

	require.NoError(t, Apply(context.Background(), repo, seedJSON, logger.NopLogger()))

	assert.Equal(t, []string{"Solo Foto"}, repo.created)
	assert.Equal(t, []models.ContentType{models.ContentImage}, repo.filters["Solo Foto"].MessageTypes)
}

func TestApply_InvalidJSONRejected(t *testing.T) {
	repo := newMemFilterRepo()

	err := Apply(context.Background(), repo, `{not json`, logger.NopLogger())
	require.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestApply_InvalidFilterRejected(t *testing.T) {
	repo := newMemFilterRepo()

	err := Apply(context.Background(), repo, `[{"name":""}]`, logger.NopLogger())
	require.Error(t, err)
	assert.Empty(t, repo.created)
}
