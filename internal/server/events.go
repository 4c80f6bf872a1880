package server

// wsEvent is the envelope for every outbound frame.
type wsEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type playerEntry struct {
	PlayerID string `json:"player_id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
}

type playerListPayload struct {
	RoomCode string        `json:"room_code"`
	Players  []playerEntry `json:"players"`
	HostID   string        `json:"host_id"`
}

type roomClosedPayload struct {
	RoomCode string `json:"room_code"`
}

type preCountdownPayload struct {
	Count    int    `json:"count"`
	Prompt   string `json:"prompt"`
	Category string `json:"category"`
	PromptID string `json:"prompt_id"`
	Duration int    `json:"duration"`
}

type roundStartPayload struct {
	Duration int    `json:"duration"`
	Prompt   string `json:"prompt"`
	PromptID string `json:"prompt_id"`
	Category string `json:"category"`
}

type countdownPayload struct {
	TimeLeft int `json:"time_left"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// EventPayload is the jsonb body written to the audit log.
type EventPayload struct {
	RoomCode   string `json:"room_code,omitempty"`
	PlayerID   string `json:"player_id,omitempty"`
	Nickname   string `json:"nickname,omitempty"`
	Generation int    `json:"generation,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
	PromptID   string `json:"prompt_id,omitempty"`
	Category   string `json:"category,omitempty"`
	WinnerID   string `json:"winner_id,omitempty"`
	IsFallback bool   `json:"is_fallback,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Players    int    `json:"players,omitempty"`
}
