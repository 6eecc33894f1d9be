// internal/database/room.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

// FindMatch loads one match row for the room layer. Unlike GetMatch it
// returns the typed record rather than an HTTP envelope; a missing row is
// (nil, nil), not an error.
func (s *Store) FindMatch(ctx context.Context, matchID int64) (*models.Match, error) {
	m, err := scanMatch(s.Pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM matches WHERE id = $1`, matchColumns), matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading match %d: %w", matchID, err)
	}
	return m, nil
}

// UpdateMatchSnapshot replaces a match's full state and stamps the new
// revision, but only if the stored revision still equals expectedRevision.
// The returned bool reports whether the guarded write took effect; a false
// return with nil error means another writer got there first.
func (s *Store) UpdateMatchSnapshot(ctx context.Context, matchID int64, next *models.Match, revision, expectedRevision int64) (bool, error) {
	var applied bool
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		tag, e := tx.Exec(ctx, `
			UPDATE matches SET
				date = $1, location = $2, types = $3, opponent = $4,
				jersey_color_home = $5, jersey_color_opp = $6,
				result_home = $7, result_opp = $8, first_server = $9,
				players = $10, temp_numbers = $11, finalized_sets = $12,
				is_swapped = $13, deleted = $14, revision = $15, updated_at = NOW()
			WHERE id = $16 AND revision = $17
		`, next.Date, next.Location, next.Types, next.Opponent,
			next.JerseyColorHome, next.JerseyColorOpp,
			next.ResultHome, next.ResultOpp, next.FirstServer,
			next.Players, next.TempNumbers, next.FinalizedSets,
			next.IsSwapped, next.Deleted, revision,
			matchID, expectedRevision)
		if e != nil {
			return e
		}
		applied = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("writing snapshot for match %d: %w", matchID, err)
	}
	return applied, nil
}
