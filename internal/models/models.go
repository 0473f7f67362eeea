package models

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Match is the persistent record of one bumper match.
type Match struct {
	ID          string         `db:"id" json:"id"`
	Token       string         `db:"token" json:"token"`
	PlayerAID   string         `db:"player_a_id" json:"player_a_id"`
	PlayerBID   sql.NullString `db:"player_b_id" json:"player_b_id,omitempty"`
	Private     bool           `db:"private" json:"private"`
	Status      string         `db:"status" json:"status"`
	WinnerID    sql.NullString `db:"winner_id" json:"winner_id,omitempty"`
	WinType     sql.NullString `db:"win_type" json:"win_type,omitempty"`
	ShotCount   int            `db:"shot_count" json:"shot_count"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	StartedAt   sql.NullTime   `db:"started_at" json:"started_at,omitempty"`
	CompletedAt sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
	ExpiresAt   time.Time      `db:"expires_at" json:"expires_at"`
}

// ShotRecord is one resolved shot. ShotData holds the shot descriptor and
// Eliminated the ids of the balls it knocked out, both as JSONB.
type ShotRecord struct {
	ID         int64          `db:"id" json:"id"`
	MatchID    string         `db:"match_id" json:"match_id"`
	ShotNumber int            `db:"shot_number" json:"shot_number"`
	PlayerID   string         `db:"player_id" json:"player_id"`
	Faction    string         `db:"faction" json:"faction"`
	ShotData   types.JSONText `db:"shot_data" json:"shot_data"`
	Ticks      int            `db:"ticks" json:"ticks"`
	EventCount int            `db:"event_count" json:"event_count"`
	Eliminated types.JSONText `db:"eliminated" json:"eliminated"`
	ScoreA     int            `db:"score_a" json:"score_a"`
	ScoreB     int            `db:"score_b" json:"score_b"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
