package server

import "time"

const (
	phaseLobby        = "lobby"
	phasePreCountdown = "precountdown"
	phaseActive       = "active"
	phaseJudging      = "judging"
	phaseResults      = "results"
)

// PlayerInfo is the per-player data a room tracks.
type PlayerInfo struct {
	Nickname string
	Avatar   string
}

// Submission is one player's drawing for the current round. Immutable once
// appended; the whole slice is dropped when the next round starts.
type Submission struct {
	PlayerID    string
	Nickname    string
	Image       []byte
	SubmittedAt time.Time
}

// Room is one isolated game session. All mutation happens inside
// Store.UpdateRoom, which serializes access.
type Room struct {
	Code          string
	HostID        string
	Players       map[string]PlayerInfo
	Phase         string
	Prompt        Prompt
	Submissions   []Submission
	RoundDeadline time.Time

	// Generation increments on every startGame/nextRound. A judging response
	// carrying an older generation is discarded.
	Generation int

	DBID      uint
	RoundDBID uint
	CreatedAt time.Time
}

func (r *Room) hasSubmitted(playerID string) bool {
	for i := range r.Submissions {
		if r.Submissions[i].PlayerID == playerID {
			return true
		}
	}
	return false
}

// ScoreEntry mirrors the scorer's per-image result shape.
type ScoreEntry struct {
	ImageIndex int     `json:"image_index"`
	PlayerID   string  `json:"player_id"`
	Nickname   string  `json:"player_name"`
	Score      float64 `json:"score"`
}

// RoundResult is produced once per round, broadcast and not retained.
type RoundResult struct {
	Prompt      string       `json:"prompt"`
	WinnerID    string       `json:"winner_id"`
	WinnerIndex int          `json:"winner_index"`
	Scores      []ScoreEntry `json:"scores"`
	IsFallback  bool         `json:"is_fallback"`
	Error       string       `json:"error,omitempty"`
}

// RoomSummary is the listing shape for the index endpoint.
type RoomSummary struct {
	Code    string `json:"room_code"`
	Phase   string `json:"phase"`
	Players int    `json:"players"`
}
