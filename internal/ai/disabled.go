package ai

import (
	"context"

	"github.com/twax-curation-api/internal/models"
)

// Disabled stands in for Client when no API key is configured. Every call
// fails with ErrDisabled so ingestion degrades instead of stalling.
type Disabled struct{}

func (Disabled) Score(ctx context.Context, title, content string) (*models.Score, error) {
	return nil, ErrDisabled
}

func (Disabled) DraftPost(ctx context.Context, title, content, feedback string) (*models.Draft, error) {
	return nil, ErrDisabled
}

func (Disabled) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, ErrDisabled
}
