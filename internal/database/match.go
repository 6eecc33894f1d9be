// internal/database/match.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

// matchColumns is the scan order used by every match SELECT.
const matchColumns = `id, date, location, types, opponent, jersey_color_home, jersey_color_opp,
	result_home, result_opp, first_server, players, temp_numbers, finalized_sets,
	is_swapped, deleted, revision, created_at, updated_at`

func scanMatch(row pgx.Row) (*models.Match, error) {
	var m models.Match
	err := row.Scan(
		&m.ID, &m.Date, &m.Location, &m.Types, &m.Opponent,
		&m.JerseyColorHome, &m.JerseyColorOpp,
		&m.ResultHome, &m.ResultOpp, &m.FirstServer,
		&m.Players, &m.TempNumbers, &m.FinalizedSets,
		&m.IsSwapped, &m.Deleted, &m.Revision,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) execTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.Pool, pgx.TxOptions{}, fn)
}

// execUpdate runs a single-column match UPDATE inside its own
// transaction and maps the outcome to the usual text/error envelope.
func (s *Store) execUpdate(ctx context.Context, query string, args []any, okMsg, errPrefix string) models.Result {
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, query, args...)
		return e
	})
	if err != nil {
		return models.ErrorResult(500, errPrefix+": "+err.Error())
	}
	return models.TextResult(200, okMsg)
}

// CreateMatch inserts a new match row and reports the assigned id.
func (s *Store) CreateMatch(ctx context.Context, m models.Match) models.Result {
	resultHome := 0.0
	if m.ResultHome != nil {
		resultHome = *m.ResultHome
	}
	resultOpp := 0.0
	if m.ResultOpp != nil {
		resultOpp = *m.ResultOpp
	}

	var newID int64
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO matches (date, location, types, opponent, jersey_color_home, jersey_color_opp,
				result_home, result_opp, first_server, players, finalized_sets, is_swapped)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id
		`, m.Date, m.Location, m.Types, m.Opponent, m.JerseyColorHome, m.JerseyColorOpp,
			resultHome, resultOpp, m.FirstServer, m.Players, m.FinalizedSets, m.IsSwapped,
		).Scan(&newID)
	})
	if err != nil {
		return models.ErrorResult(500, "Error creating match: "+err.Error())
	}
	return models.SuccessResult(201, map[string]any{"id": newID})
}

func (s *Store) SetMatchLocation(ctx context.Context, matchID int64, location *string) models.Result {
	return s.execUpdate(ctx,
		`UPDATE matches SET location = $1, updated_at = NOW() WHERE id = $2`,
		[]any{location, matchID},
		"Location updated successfully", "Error updating location")
}

func (s *Store) SetMatchDate(ctx context.Context, matchID int64, date *string) models.Result {
	return s.execUpdate(ctx,
		`UPDATE matches SET date = $1, updated_at = NOW() WHERE id = $2`,
		[]any{date, matchID},
		"Date updated successfully", "Error updating date")
}

func (s *Store) SetMatchOpponent(ctx context.Context, matchID int64, opponent *string) models.Result {
	return s.execUpdate(ctx,
		`UPDATE matches SET opponent = $1, updated_at = NOW() WHERE id = $2`,
		[]any{opponent, matchID},
		"Opponent name updated successfully", "Error updating opponent name")
}

func (s *Store) SetMatchTypes(ctx context.Context, matchID int64, types *string) models.Result {
	return s.execUpdate(ctx,
		`UPDATE matches SET types = $1, updated_at = NOW() WHERE id = $2`,
		[]any{types, matchID},
		"Type updated successfully", "Error updating type")
}

func (s *Store) SetMatchResult(ctx context.Context, matchID int64, resultHome, resultOpp *float64) models.Result {
	return s.execUpdate(ctx,
		`UPDATE matches SET result_home = $1, result_opp = $2, updated_at = NOW() WHERE id = $3`,
		[]any{resultHome, resultOpp, matchID},
		"Result updated successfully", "Error updating result")
}

func (s *Store) SetMatchPlayers(ctx context.Context, matchID int64, players *string) models.Result {
	return s.execUpdate(ctx,
		`UPDATE matches SET players = $1, updated_at = NOW() WHERE id = $2`,
		[]any{players, matchID},
		"Players updated successfully", "Error updating players")
}

func (s *Store) SetMatchHomeColor(ctx context.Context, matchID int64, color *string) models.Result {
	return s.execUpdate(ctx,
		`UPDATE matches SET jersey_color_home = $1, updated_at = NOW() WHERE id = $2`,
		[]any{color, matchID},
		"Home jersey color updated successfully", "Error updating home jersey color")
}

func (s *Store) SetMatchOppColor(ctx context.Context, matchID int64, color *string) models.Result {
	return s.execUpdate(ctx,
		`UPDATE matches SET jersey_color_opp = $1, updated_at = NOW() WHERE id = $2`,
		[]any{color, matchID},
		"Opponent jersey color updated successfully", "Error updating opponent jersey color")
}

func (s *Store) SetMatchFirstServer(ctx context.Context, matchID int64, firstServer *string) models.Result {
	return s.execUpdate(ctx,
		`UPDATE matches SET first_server = $1, updated_at = NOW() WHERE id = $2`,
		[]any{firstServer, matchID},
		"First server updated successfully", "Error updating first server")
}

func (s *Store) SetMatchDeleted(ctx context.Context, matchID int64, deleted int) models.Result {
	return s.execUpdate(ctx,
		`UPDATE matches SET deleted = $1, updated_at = NOW() WHERE id = $2`,
		[]any{deleted, matchID},
		"Deleted flag updated successfully", "Error updating deleted flag")
}

func (s *Store) SetMatchSwapped(ctx context.Context, matchID int64, swapped int) models.Result {
	return s.execUpdate(ctx,
		`UPDATE matches SET is_swapped = $1, updated_at = NOW() WHERE id = $2`,
		[]any{swapped, matchID},
		"Swap flag updated successfully", "Error updating swap flag")
}

// UpsertMatchPlayer merges one roster delta into the players column, and into
// the temp_numbers column when the delta carries a temporary number. Read and
// write happen in one transaction so interleaved deltas from different
// connections cannot clobber each other.
func (s *Store) UpsertMatchPlayer(ctx context.Context, matchID int64, delta models.RosterEntry) models.Result {
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		var players, tempNumbers *string
		if err := tx.QueryRow(ctx,
			`SELECT players, temp_numbers FROM matches WHERE id = $1 FOR UPDATE`, matchID,
		).Scan(&players, &tempNumbers); err != nil {
			return err
		}
		nextPlayers := applyRosterDelta(players, delta)
		nextTemps := tempNumbers
		if delta.TempNumber != nil {
			merged := applyTempNumberDelta(tempNumbers, models.TempNumberEntry{PlayerID: delta.PlayerID, TempNumber: delta.TempNumber})
			nextTemps = &merged
		}
		_, err := tx.Exec(ctx,
			`UPDATE matches SET players = $1, temp_numbers = $2, updated_at = NOW() WHERE id = $3`,
			nextPlayers, nextTemps, matchID)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrorResult(404, "Match not found")
		}
		return models.ErrorResult(500, "Error updating match player: "+err.Error())
	}
	return models.TextResult(200, "Match player updated successfully")
}

// RemoveMatchPlayer drops a player from the roster and clears any temporary
// number assigned to them.
func (s *Store) RemoveMatchPlayer(ctx context.Context, matchID, playerID int64) models.Result {
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		var players, tempNumbers *string
		if err := tx.QueryRow(ctx,
			`SELECT players, temp_numbers FROM matches WHERE id = $1 FOR UPDATE`, matchID,
		).Scan(&players, &tempNumbers); err != nil {
			return err
		}
		nextPlayers := removeRosterEntry(players, playerID)
		nextTemps := removeTempNumberEntry(tempNumbers, playerID)
		_, err := tx.Exec(ctx,
			`UPDATE matches SET players = $1, temp_numbers = $2, updated_at = NOW() WHERE id = $3`,
			nextPlayers, nextTemps, matchID)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrorResult(404, "Match not found")
		}
		return models.ErrorResult(500, "Error removing match player: "+err.Error())
	}
	return models.TextResult(200, "Match player removed successfully")
}

// UpsertTempNumber merges one temporary jersey number assignment.
func (s *Store) UpsertTempNumber(ctx context.Context, matchID int64, delta models.TempNumberEntry) models.Result {
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		var tempNumbers *string
		if err := tx.QueryRow(ctx,
			`SELECT temp_numbers FROM matches WHERE id = $1 FOR UPDATE`, matchID,
		).Scan(&tempNumbers); err != nil {
			return err
		}
		next := applyTempNumberDelta(tempNumbers, delta)
		_, err := tx.Exec(ctx,
			`UPDATE matches SET temp_numbers = $1, updated_at = NOW() WHERE id = $2`, next, matchID)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrorResult(404, "Match not found")
		}
		return models.ErrorResult(500, "Error updating temp number: "+err.Error())
	}
	return models.TextResult(200, "Temp number updated successfully")
}

// RemoveTempNumber clears a player's temporary jersey number.
func (s *Store) RemoveTempNumber(ctx context.Context, matchID, playerID int64) models.Result {
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		var tempNumbers *string
		if err := tx.QueryRow(ctx,
			`SELECT temp_numbers FROM matches WHERE id = $1 FOR UPDATE`, matchID,
		).Scan(&tempNumbers); err != nil {
			return err
		}
		next := removeTempNumberEntry(tempNumbers, playerID)
		_, err := tx.Exec(ctx,
			`UPDATE matches SET temp_numbers = $1, updated_at = NOW() WHERE id = $2`, next, matchID)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrorResult(404, "Match not found")
		}
		return models.ErrorResult(500, "Error removing temp number: "+err.Error())
	}
	return models.TextResult(200, "Temp number removed successfully")
}

// GetMatch returns one match record, or a 404 envelope.
func (s *Store) GetMatch(ctx context.Context, matchID int64) models.Result {
	m, err := scanMatch(s.Pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM matches WHERE id = $1`, matchColumns), matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.JSONResult(404, map[string]any{"error": "Not Found"})
		}
		return models.ErrorResult(500, "Error fetching match: "+err.Error())
	}
	return models.JSONResult(200, m)
}

// GetMatches returns every match record.
func (s *Store) GetMatches(ctx context.Context) models.Result {
	rows, err := s.Pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM matches ORDER BY id`, matchColumns))
	if err != nil {
		return models.ErrorResult(500, "Error fetching matches: "+err.Error())
	}
	defer rows.Close()

	matches := []*models.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return models.ErrorResult(500, "Error fetching matches: "+err.Error())
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return models.ErrorResult(500, "Error fetching matches: "+err.Error())
	}
	return models.JSONResult(200, matches)
}

// DeleteMatch removes a match and its sets.
func (s *Store) DeleteMatch(ctx context.Context, matchID int64) models.Result {
	var deleted int64
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		if _, e := tx.Exec(ctx, `DELETE FROM sets WHERE match_id = $1`, matchID); e != nil {
			return e
		}
		tag, e := tx.Exec(ctx, `DELETE FROM matches WHERE id = $1`, matchID)
		if e != nil {
			return e
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return models.ErrorResult(500, "Error deleting match: "+err.Error())
	}
	if deleted == 0 {
		return models.ErrorResult(404, "Match not found")
	}
	return models.TextResult(200, "Match deleted successfully")
}

// GetMatchTempNumbers reads the temp_numbers column on its own; the broadcast
// composer re-reads it when a full roster replace goes out.
func (s *Store) GetMatchTempNumbers(ctx context.Context, matchID int64) (*string, bool, error) {
	var tempNumbers *string
	err := s.Pool.QueryRow(ctx,
		`SELECT temp_numbers FROM matches WHERE id = $1`, matchID).Scan(&tempNumbers)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetching temp_numbers for match %d: %w", matchID, err)
	}
	return tempNumbers, true, nil
}
