package models

// Player is a roster player. Jersey numbers are stored as text so leading
// zeros survive round trips.
type Player struct {
	ID       int64   `json:"id"`
	Number   *string `json:"number"`
	LastName *string `json:"last_name"`
	Initial  *string `json:"initial"`
}
