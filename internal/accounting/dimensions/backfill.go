package dimensions

import (
	"context"
	"errors"
	"log/slog"
)

// BackfillOptions controls a historical dimension backfill pass.
type BackfillOptions struct {
	ChunkSize   int
	JournalType string
}

// BackfillResult aggregates per-row outcomes of one pass.
type BackfillResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Backfiller walks historical lines missing dimensions in id-keyset chunks.
type Backfiller struct {
	repo     Repository
	resolver *Resolver
	logger   *slog.Logger
}

func NewBackfiller(repo Repository, resolver *Resolver, logger *slog.Logger) *Backfiller {
	return &Backfiller{repo: repo, resolver: resolver, logger: logger}
}

// Run resolves and rewrites dimensions chunk by chunk. A row that cannot be
// resolved is skipped; a row that errors is counted and logged, never fatal.
func (b *Backfiller) Run(ctx context.Context, opts BackfillOptions) (BackfillResult, error) {
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = 500
	}
	var result BackfillResult
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		refs, err := b.repo.MissingDimensionLines(ctx, afterID, chunk, opts.JournalType)
		if err != nil {
			return result, err
		}
		if len(refs) == 0 {
			return result, nil
		}
		for _, ref := range refs {
			afterID = ref.LineID
			dims, err := b.resolver.Resolve(ctx, ref.Hints)
			if err != nil {
				if errors.Is(err, ErrUnresolvable) {
					result.Skipped++
					continue
				}
				result.Failed++
				b.logger.Warn("dimension backfill row failed",
					slog.Int64("line_id", ref.LineID), slog.Any("error", err))
				continue
			}
			if err := b.repo.UpdateLineDimensions(ctx, ref.LineID, dims); err != nil {
				result.Failed++
				b.logger.Warn("dimension backfill update failed",
					slog.Int64("line_id", ref.LineID), slog.Any("error", err))
				continue
			}
			result.Updated++
		}
		if len(refs) < chunk {
			return result, nil
		}
	}
}
