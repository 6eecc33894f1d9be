// internal/database/roster_test.go
package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

func boolp(v bool) *bool { return &v }

func floatp(v float64) *float64 { return &v }

func strp(s string) *string { return &s }

func TestApplyRosterDeltaInsertsAndUpdates(t *testing.T) {
	// Insert into an empty column.
	column := applyRosterDelta(nil, models.RosterEntry{PlayerID: 1, Appeared: boolp(true)})
	assert.JSONEq(t, `[{"player_id":1,"appeared":true}]`, column)

	// Update merges fields, leaving absent ones untouched.
	column = applyRosterDelta(&column, models.RosterEntry{PlayerID: 1, TempNumber: floatp(22)})
	assert.JSONEq(t, `[{"player_id":1,"appeared":true,"temp_number":22}]`, column)

	// A second player appends.
	column = applyRosterDelta(&column, models.RosterEntry{PlayerID: 2})
	assert.JSONEq(t, `[{"player_id":1,"appeared":true,"temp_number":22},{"player_id":2}]`, column)
}

func TestApplyRosterDeltaToleratesGarbageColumn(t *testing.T) {
	column := applyRosterDelta(strp("not json"), models.RosterEntry{PlayerID: 3})
	assert.JSONEq(t, `[{"player_id":3}]`, column)
}

func TestRemoveRosterEntry(t *testing.T) {
	column := `[{"player_id":1},{"player_id":2}]`
	assert.JSONEq(t, `[{"player_id":2}]`, removeRosterEntry(&column, 1))

	// Removing an absent player is a no-op.
	assert.JSONEq(t, column, removeRosterEntry(&column, 9))
}

func TestApplyTempNumberDelta(t *testing.T) {
	column := applyTempNumberDelta(nil, models.TempNumberEntry{PlayerID: 1, TempNumber: floatp(14)})
	assert.JSONEq(t, `[{"player_id":1,"temp_number":14}]`, column)

	// Null clears the assignment but keeps the entry.
	column = applyTempNumberDelta(&column, models.TempNumberEntry{PlayerID: 1})
	assert.JSONEq(t, `[{"player_id":1,"temp_number":null}]`, column)
}

func TestRemoveTempNumberEntry(t *testing.T) {
	column := `[{"player_id":1,"temp_number":14},{"player_id":2,"temp_number":30}]`
	assert.JSONEq(t, `[{"player_id":2,"temp_number":30}]`, removeTempNumberEntry(&column, 1))
}
