package models

// Set is one set of a match. Timeout flags are 0/1 integers; the start
// timestamp is only present while a timeout flag is raised (the dispatcher's
// normalization enforces that convention, not the storage layer).
type Set struct {
	ID               int64    `json:"id"`
	MatchID          int64    `json:"match_id"`
	SetNumber        int      `json:"set_number"`
	HomeScore        *float64 `json:"home_score"`
	OppScore         *float64 `json:"opp_score"`
	HomeTimeout1     int      `json:"home_timeout_1"`
	HomeTimeout2     int      `json:"home_timeout_2"`
	OppTimeout1      int      `json:"opp_timeout_1"`
	OppTimeout2      int      `json:"opp_timeout_2"`
	TimeoutStartedAt *string  `json:"timeout_started_at"`
}
