// internal/database/player.go
package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

// CreatePlayer inserts a player row and reports the assigned id.
func (s *Store) CreatePlayer(ctx context.Context, number, lastName, initial *string) models.Result {
	if initial == nil {
		empty := ""
		initial = &empty
	}
	var newID int64
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO players (number, last_name, initial)
			VALUES ($1, $2, $3)
			RETURNING id
		`, number, lastName, initial).Scan(&newID)
	})
	if err != nil {
		return models.ErrorResult(500, "Error creating player: "+err.Error())
	}
	return models.SuccessResult(201, map[string]any{"id": newID})
}

func (s *Store) SetPlayerLastName(ctx context.Context, playerID int64, lastName *string) models.Result {
	return s.execUpdate(ctx,
		`UPDATE players SET last_name = $1 WHERE id = $2`,
		[]any{lastName, playerID},
		"Last name updated successfully", "Error updating last name")
}

func (s *Store) SetPlayerInitial(ctx context.Context, playerID int64, initial *string) models.Result {
	return s.execUpdate(ctx,
		`UPDATE players SET initial = $1 WHERE id = $2`,
		[]any{initial, playerID},
		"Initial/First name updated successfully", "Error updating initial/first name")
}

func (s *Store) SetPlayerNumber(ctx context.Context, playerID int64, number *string) models.Result {
	return s.execUpdate(ctx,
		`UPDATE players SET number = $1 WHERE id = $2`,
		[]any{number, playerID},
		"Player number updated successfully", "Error updating player number")
}

// GetPlayer returns one player record, or a 200 with a null body when the id
// no longer resolves; roster references to deleted players degrade instead of
// erroring.
func (s *Store) GetPlayer(ctx context.Context, playerID int64) models.Result {
	var p models.Player
	err := s.Pool.QueryRow(ctx,
		`SELECT id, number, last_name, initial FROM players WHERE id = $1`, playerID,
	).Scan(&p.ID, &p.Number, &p.LastName, &p.Initial)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.JSONResult(200, nil)
		}
		return models.ErrorResult(500, "Error fetching player: "+err.Error())
	}
	return models.JSONResult(200, &p)
}

// GetPlayers returns every player record.
func (s *Store) GetPlayers(ctx context.Context) models.Result {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, number, last_name, initial FROM players ORDER BY id`)
	if err != nil {
		return models.ErrorResult(500, "Error fetching players: "+err.Error())
	}
	defer rows.Close()

	players := []*models.Player{}
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.Number, &p.LastName, &p.Initial); err != nil {
			return models.ErrorResult(500, "Error fetching players: "+err.Error())
		}
		players = append(players, &p)
	}
	if err := rows.Err(); err != nil {
		return models.ErrorResult(500, "Error fetching players: "+err.Error())
	}
	return models.JSONResult(200, players)
}

// DeletePlayer removes a player row. Match rosters keep their references.
func (s *Store) DeletePlayer(ctx context.Context, playerID int64) models.Result {
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, `DELETE FROM players WHERE id = $1`, playerID)
		return e
	})
	if err != nil {
		return models.ErrorResult(500, "Error deleting player: "+err.Error())
	}
	return models.TextResult(200, "Player deleted successfully")
}
