package adapter

import (
	"context"
	"fmt"

	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/interaction"
	"github.com/dustin/showfinder/internal/personalization"
	"github.com/dustin/showfinder/internal/recommendation"
	"github.com/google/uuid"
)

// InteractionHistory adapts interaction.Repository and catalog.Repository to
// recommendation.HistorySource
type InteractionHistory struct {
	interactions interaction.Repository
	catalog      catalog.Repository
}

// NewInteractionHistory creates a new adapter
func NewInteractionHistory(interactions interaction.Repository, shows catalog.Repository) recommendation.HistorySource {
	return &InteractionHistory{
		interactions: interactions,
		catalog:      shows,
	}
}

// History keeps the repository's oldest-first order and leaves Vector nil for
// shows that have no main embedding
func (a *InteractionHistory) History(ctx context.Context, userID uuid.UUID) ([]personalization.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := a.interactions.History(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	if len(rows) == 0 {
		return []personalization.Interaction{}, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ShowID)
	}

	vectors, err := a.catalog.FindMainVectors(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load show vectors: %w", err)
	}

	history := make([]personalization.Interaction, 0, len(rows))
	for _, row := range rows {
		history = append(history, personalization.Interaction{
			ShowID: row.ShowID,
			Rating: row.Level(),
			Vector: vectors[row.ShowID],
		})
	}
	return history, nil
}
