package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/twax-curation-api/internal/models"
)

// MaxImportCandidates bounds a single uploaded batch
const MaxImportCandidates = 1000

// ImportStream decodes an uploaded batch and ingests it. ndjson input keeps
// going past malformed lines, which are reported as rejected; a json array
// must decode as a whole.
func (s *ingestService) ImportStream(ctx context.Context, r io.Reader, format string) (*models.BatchSummary, error) {
	start := time.Now()

	var (
		candidates []models.Candidate
		rejected   []models.LineError
		err        error
	)
	switch strings.ToLower(format) {
	case FormatNDJSON:
		candidates, rejected, err = decodeNDJSON(ctx, r)
	case FormatJSON, "":
		candidates, err = decodeJSONArray(r)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", models.ErrInvalidInput, format)
	}
	if err != nil {
		return nil, err
	}
	if len(candidates)+len(rejected) > MaxImportCandidates {
		return nil, fmt.Errorf("%w: batch exceeds %d candidates", models.ErrInvalidInput, MaxImportCandidates)
	}

	s.log.Info().
		Str("format", format).
		Int("candidates", len(candidates)).
		Int("rejected", len(rejected)).
		Msg("Starting batch import")

	summary, err := s.IngestBatch(ctx, candidates)
	if err != nil {
		return nil, err
	}
	summary.Fetched += len(rejected)
	summary.Errors += len(rejected)
	summary.Rejected = rejected
	summary.DurationMs = time.Since(start).Milliseconds()
	return summary, nil
}

func decodeNDJSON(ctx context.Context, r io.Reader) ([]models.Candidate, []models.LineError, error) {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var candidates []models.Candidate
	var rejected []models.LineError
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// Respect context cancellation for long uploads
		if lineNum%100 == 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			default:
			}
		}

		var c models.Candidate
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			rejected = append(rejected, models.LineError{
				Line:    lineNum,
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		candidates = append(candidates, c)

		if len(candidates)+len(rejected) > MaxImportCandidates {
			return nil, nil, fmt.Errorf("%w: batch exceeds %d candidates", models.ErrInvalidInput, MaxImportCandidates)
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, nil, fmt.Errorf("%w: line %d is too long", models.ErrInvalidInput, lineNum+1)
		}
		return nil, nil, err
	}
	return candidates, rejected, nil
}

func decodeJSONArray(r io.Reader) ([]models.Candidate, error) {
	var candidates []models.Candidate
	if err := json.NewDecoder(r).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("%w: body must be a JSON array of candidates: %w", models.ErrInvalidInput, err)
	}
	return candidates, nil
}
