package server

import "errors"

// Room and round errors are connection-scoped: they go back to the caller and
// never crash the process or touch other rooms. Judging failures are not in
// this list; they fold into the fallback RoundResult instead.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrDuplicateRoom       = errors.New("room code already in use")
	ErrUnauthorized        = errors.New("only the host may do that")
	ErrDuplicateSubmission = errors.New("player already submitted this round")
	ErrRoundNotActive      = errors.New("round is not active")
	ErrLobbyFull           = errors.New("room is full")
)

// errorKind maps an error to the machine-readable kind sent to clients.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrDuplicateRoom):
		return "duplicate_room"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrDuplicateSubmission):
		return "duplicate_submission"
	case errors.Is(err, ErrRoundNotActive):
		return "round_not_active"
	case errors.Is(err, ErrLobbyFull):
		return "lobby_full"
	default:
		return "internal"
	}
}

// errStaleRound marks a judging or timer callback that lost the generation
// race. Internal only, never surfaced to clients.
var errStaleRound = errors.New("round superseded")
