// internal/database/set.go
package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

// ErrSetNotFound distinguishes a missing set row from a storage failure so
// operations can answer 404 instead of 500.
var ErrSetNotFound = errors.New("set not found")

const setColumns = `id, match_id, set_number, home_score, opp_score,
	home_timeout_1, home_timeout_2, opp_timeout_1, opp_timeout_2, timeout_started_at`

func scanSet(row pgx.Row) (*models.Set, error) {
	var st models.Set
	err := row.Scan(
		&st.ID, &st.MatchID, &st.SetNumber, &st.HomeScore, &st.OppScore,
		&st.HomeTimeout1, &st.HomeTimeout2, &st.OppTimeout1, &st.OppTimeout2,
		&st.TimeoutStartedAt,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// setContext is the parent-match information looked up before each set write
// so replies and broadcasts can name the match and set number.
type setContext struct {
	MatchID   int64
	SetNumber int
}

func lookupSet(ctx context.Context, tx pgx.Tx, setID int64) (setContext, error) {
	var sc setContext
	err := tx.QueryRow(ctx,
		`SELECT match_id, set_number FROM sets WHERE id = $1`, setID,
	).Scan(&sc.MatchID, &sc.SetNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return sc, ErrSetNotFound
	}
	return sc, err
}

// CreateSet inserts a set row. Scores and timeout flags arrive already
// normalized from the dispatcher.
func (s *Store) CreateSet(ctx context.Context, in models.Set) models.Result {
	if in.MatchID <= 0 || in.SetNumber < 1 || in.SetNumber > 5 {
		return models.ErrorResult(400, "Invalid match or set identifier")
	}

	var newID int64
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO sets (match_id, set_number, home_score, opp_score,
				home_timeout_1, home_timeout_2, opp_timeout_1, opp_timeout_2, timeout_started_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`, in.MatchID, in.SetNumber, in.HomeScore, in.OppScore,
			in.HomeTimeout1, in.HomeTimeout2, in.OppTimeout1, in.OppTimeout2, in.TimeoutStartedAt,
		).Scan(&newID)
	})
	if err != nil {
		return models.ErrorResult(500, "Error creating set: "+err.Error())
	}

	return models.SuccessResult(201, map[string]any{
		"id":        newID,
		"matchId":   in.MatchID,
		"setNumber": in.SetNumber,
		"homeScore": in.HomeScore,
		"oppScore":  in.OppScore,
		"homeTimeouts": map[string]int{
			"1": in.HomeTimeout1,
			"2": in.HomeTimeout2,
		},
		"oppTimeouts": map[string]int{
			"1": in.OppTimeout1,
			"2": in.OppTimeout2,
		},
	})
}

func (s *Store) updateScore(ctx context.Context, setID int64, column string, score *float64, payloadKey string) models.Result {
	var sc setContext
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		var e error
		if sc, e = lookupSet(ctx, tx, setID); e != nil {
			return e
		}
		_, e = tx.Exec(ctx, `UPDATE sets SET `+column+` = $1 WHERE id = $2`, score, setID)
		return e
	})
	if err != nil {
		if errors.Is(err, ErrSetNotFound) {
			return models.ErrorResult(404, "Set not found")
		}
		return models.ErrorResult(500, "Error updating score: "+err.Error())
	}
	return models.SuccessResult(200, map[string]any{
		"matchId":   sc.MatchID,
		"setNumber": sc.SetNumber,
		payloadKey:  score,
	})
}

// SetHomeScore writes the home score of a set.
func (s *Store) SetHomeScore(ctx context.Context, setID int64, score *float64) models.Result {
	return s.updateScore(ctx, setID, "home_score", score, "homeScore")
}

// SetOppScore writes the opponent score of a set.
func (s *Store) SetOppScore(ctx context.Context, setID int64, score *float64) models.Result {
	return s.updateScore(ctx, setID, "opp_score", score, "oppScore")
}

func timeoutColumn(home bool, timeoutNumber int) string {
	if home {
		if timeoutNumber == 2 {
			return "home_timeout_2"
		}
		return "home_timeout_1"
	}
	if timeoutNumber == 2 {
		return "opp_timeout_2"
	}
	return "opp_timeout_1"
}

func (s *Store) updateTimeout(ctx context.Context, setID int64, home bool, timeoutNumber, value int, startedAt *string, errPrefix string) models.Result {
	column := timeoutColumn(home, timeoutNumber)
	var sc setContext
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		var e error
		if sc, e = lookupSet(ctx, tx, setID); e != nil {
			return e
		}
		_, e = tx.Exec(ctx,
			`UPDATE sets SET `+column+` = $1, timeout_started_at = $2 WHERE id = $3`,
			value, startedAt, setID)
		return e
	})
	if err != nil {
		if errors.Is(err, ErrSetNotFound) {
			return models.ErrorResult(404, "Set not found")
		}
		return models.ErrorResult(500, errPrefix+": "+err.Error())
	}
	return models.SuccessResult(200, map[string]any{
		"matchId":       sc.MatchID,
		"setNumber":     sc.SetNumber,
		"timeoutNumber": timeoutNumber,
		"value":         value,
	})
}

// SetHomeTimeout raises or clears one of the two home timeout flags.
func (s *Store) SetHomeTimeout(ctx context.Context, setID int64, timeoutNumber, value int, startedAt *string) models.Result {
	return s.updateTimeout(ctx, setID, true, timeoutNumber, value, startedAt, "Error updating home timeout")
}

// SetOppTimeout raises or clears one of the two opponent timeout flags.
func (s *Store) SetOppTimeout(ctx context.Context, setID int64, timeoutNumber, value int, startedAt *string) models.Result {
	return s.updateTimeout(ctx, setID, false, timeoutNumber, value, startedAt, "Error updating opponent timeout")
}

// SetIsFinal writes the match's finalized-sets map. Finalization lives on the
// matches row because it drives the derived win counts for the whole match.
func (s *Store) SetIsFinal(ctx context.Context, matchID int64, finalizedSets *string) models.Result {
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx,
			`UPDATE matches SET finalized_sets = $1, updated_at = NOW() WHERE id = $2`,
			finalizedSets, matchID)
		return e
	})
	if err != nil {
		return models.ErrorResult(500, "Error updating finalized sets: "+err.Error())
	}

	var raw any
	if finalizedSets != nil {
		raw = *finalizedSets
	}
	return models.SuccessResult(200, map[string]any{
		"matchId":       matchID,
		"setNumber":     nil,
		"finalizedSets": models.ParseFinalizedSets(raw),
	})
}

// GetSet returns one set record, or a 200 with a null body.
func (s *Store) GetSet(ctx context.Context, setID int64) models.Result {
	st, err := scanSet(s.Pool.QueryRow(ctx,
		`SELECT `+setColumns+` FROM sets WHERE id = $1`, setID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.JSONResult(200, nil)
		}
		return models.ErrorResult(500, "Error fetching set: "+err.Error())
	}
	return models.JSONResult(200, st)
}

// GetSets returns all sets, optionally scoped to one match.
func (s *Store) GetSets(ctx context.Context, matchID *int64) models.Result {
	query := `SELECT ` + setColumns + ` FROM sets`
	args := []any{}
	if matchID != nil {
		query += ` WHERE match_id = $1`
		args = append(args, *matchID)
	}
	query += ` ORDER BY match_id, set_number`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return models.ErrorResult(500, "Error fetching sets: "+err.Error())
	}
	defer rows.Close()

	sets := []*models.Set{}
	for rows.Next() {
		st, err := scanSet(rows)
		if err != nil {
			return models.ErrorResult(500, "Error fetching sets: "+err.Error())
		}
		sets = append(sets, st)
	}
	if err := rows.Err(); err != nil {
		return models.ErrorResult(500, "Error fetching sets: "+err.Error())
	}
	return models.JSONResult(200, sets)
}

// DeleteSet removes one set row.
func (s *Store) DeleteSet(ctx context.Context, setID int64) models.Result {
	var sc setContext
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		var e error
		if sc, e = lookupSet(ctx, tx, setID); e != nil {
			return e
		}
		_, e = tx.Exec(ctx, `DELETE FROM sets WHERE id = $1`, setID)
		return e
	})
	if err != nil {
		if errors.Is(err, ErrSetNotFound) {
			return models.ErrorResult(404, "Set not found")
		}
		return models.ErrorResult(500, "Error deleting set: "+err.Error())
	}
	return models.SuccessResult(200, map[string]any{
		"matchId":   sc.MatchID,
		"setNumber": sc.SetNumber,
		"id":        setID,
		"deleted":   true,
	})
}
