package seed

import (
	"context"
	"encoding/json"
	"fmt"

	"sentinella/internal/logger"
	"sentinella/internal/store"
	"sentinella/pkg/models"
)

// defaultFilters ships with every fresh deployment so the pipeline does
// something useful before any operator configures rules.
const defaultFilters = `[
  {
    "name": "Messaggi Urgenti",
    "description": "Intercetta messaggi con parole chiave urgenti",
    "keywords": ["urgente", "emergenza", "importante", "asap", "subito"],
    "keyword_match_mode": "ANY",
    "enabled": true,
    "actions": {
      "mark_as_important": true,
      "set_priority": "urgent",
      "add_tags": ["urgente"]
    }
  },
  {
    "name": "Messaggi di Lavoro",
    "description": "Raggruppa i messaggi di lavoro",
    "keywords": ["riunione", "meeting", "progetto", "scadenza", "cliente"],
    "keyword_match_mode": "ANY",
    "enabled": true,
    "actions": {
      "set_priority": "high",
      "add_tags": ["lavoro"]
    }
  }
]`

// Apply creates the configured seed filters, skipping any name that already
// exists so operator edits to a seeded filter survive restarts. An empty
// seedJSON falls back to the built-in defaults.
func Apply(ctx context.Context, repo store.FilterRepository, seedJSON string, log logger.Logger) error {
	if seedJSON == "" {
		seedJSON = defaultFilters
	}

	var filters []models.Filter
	if err := json.Unmarshal([]byte(seedJSON), &filters); err != nil {
		return fmt.Errorf("invalid seed filter definitions: %w", err)
	}

	for i := range filters {
		f := &filters[i]
		if err := models.ValidateFilter(f); err != nil {
			return fmt.Errorf("invalid seed filter %q: %w", f.Name, err)
		}

		existing, err := repo.FindByName(ctx, f.Name)
		if err != nil {
			return fmt.Errorf("checking seed filter %q: %w", f.Name, err)
		}
		if existing != nil {
			log.Debugw("seed filter already present, skipping", "filter", f.Name)
			continue
		}

		if err := repo.Create(ctx, f); err != nil {
			return fmt.Errorf("creating seed filter %q: %w", f.Name, err)
		}
		log.Infow("seed filter created", "filter", f.Name)
	}
	return nil
}
