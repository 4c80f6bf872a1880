package server

import "sort"

// Lifecycle operations. Each one mutates through the store, builds its
// broadcast payload under the same lock so the payload reflects the mutation
// that triggered it, then notifies subscribers.

// createRoom mints a room code (retrying collisions) and a player id for the
// host, who is the only one allowed to start rounds. The room closes for
// everyone if the host ever leaves.
func (s *Server) createRoom(nickname string) (*Room, string) {
	hostID := newPlayerID()
	room := s.store.CreateRoom(hostID, nickname)
	s.log.Info().Str("room_code", room.Code).Str("host_id", hostID).Str("nickname", nickname).Msg("room created")
	s.persistRoomCreated(room, nickname)
	return room, hostID
}

func (s *Server) joinRoom(code, playerID, nickname string) error {
	room, err := s.store.AddPlayer(code, playerID, nickname, s.cfg.MaxRoomPlayers)
	if err != nil {
		return err
	}
	s.log.Info().Str("room_code", code).Str("player_id", playerID).Str("nickname", nickname).Msg("player joined")
	s.persistEvent(room, "player_joined", EventPayload{
		RoomCode: code,
		PlayerID: playerID,
		Nickname: nickname,
	})
	s.broadcastPlayerList(code)
	return nil
}

// leaveRoom handles both explicit leave and disconnect cleanup for one room.
// Host departure destroys the room. A non-host departure mid-round shrinks
// the expected-submission denominator, so completion is re-checked: when the
// departing player was the last hold-out, judging starts now instead of at
// the deadline.
func (s *Server) leaveRoom(code, playerID string) error {
	room, closed, err := s.store.RemovePlayer(code, playerID)
	if err != nil {
		return err
	}
	if closed {
		s.closeRoom(room, "host_left")
		return nil
	}
	s.log.Info().Str("room_code", code).Str("player_id", playerID).Msg("player left")
	s.persistEvent(room, "player_left", EventPayload{RoomCode: code, PlayerID: playerID})
	s.broadcastPlayerList(code)

	var (
		gen      int
		complete bool
	)
	if _, err := s.store.UpdateRoom(code, func(r *Room) error {
		gen = r.Generation
		complete = r.Phase == phaseActive && len(r.Players) > 0 && len(r.Submissions) >= len(r.Players)
		return nil
	}); err != nil {
		return nil
	}
	if complete {
		s.triggerJudging(code, gen, "all-submitted")
	}
	return nil
}

// disconnect sweeps every room the player is in. A well-behaved client is in
// at most one, but cleanup does not assume that.
func (s *Server) disconnect(playerID string) {
	for _, code := range s.store.RoomsWithPlayer(playerID) {
		if err := s.leaveRoom(code, playerID); err != nil {
			s.log.Warn().Err(err).Str("room_code", code).Str("player_id", playerID).Msg("disconnect cleanup failed")
		}
	}
}

func (s *Server) closeRoom(room *Room, reason string) {
	s.cancelRoundDriver(room.Code)
	s.log.Info().Str("room_code", room.Code).Str("reason", reason).Msg("room closed")
	s.persistRoomClosed(room, reason)
	s.ws.Broadcast(room.Code, wsEvent{Event: "room-closed", Data: roomClosedPayload{RoomCode: room.Code}})
	s.ws.CloseRoom(room.Code)
}

func (s *Server) broadcastPlayerList(code string) {
	var payload playerListPayload
	if _, err := s.store.UpdateRoom(code, func(r *Room) error {
		payload = playerListSnapshot(r)
		return nil
	}); err != nil {
		return
	}
	s.ws.Broadcast(code, wsEvent{Event: "player-list", Data: payload})
}

func playerListSnapshot(r *Room) playerListPayload {
	players := make([]playerEntry, 0, len(r.Players))
	for id, info := range r.Players {
		players = append(players, playerEntry{
			PlayerID: id,
			Nickname: info.Nickname,
			Avatar:   info.Avatar,
		})
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].PlayerID < players[j].PlayerID
	})
	return playerListPayload{
		RoomCode: r.Code,
		Players:  players,
		HostID:   r.HostID,
	}
}

// roomSnapshot is the first frame a websocket client receives and the GET
// room body.
func (s *Server) roomSnapshot(code string) (map[string]any, bool) {
	var snapshot map[string]any
	if _, err := s.store.UpdateRoom(code, func(r *Room) error {
		players := playerListSnapshot(r)
		snapshot = map[string]any{
			"room_code":   r.Code,
			"phase":       r.Phase,
			"host_id":     r.HostID,
			"players":     players.Players,
			"submissions": len(r.Submissions),
		}
		if r.Phase == phaseActive || r.Phase == phaseJudging {
			snapshot["prompt"] = r.Prompt.Text
			snapshot["prompt_id"] = r.Prompt.ID
			snapshot["category"] = r.Prompt.Category
		}
		if r.Phase == phaseActive {
			remaining := r.RoundDeadline.Sub(s.clock.Now())
			if remaining < 0 {
				remaining = 0
			}
			snapshot["time_left"] = int(remaining.Seconds())
		}
		return nil
	}); err != nil {
		return nil, false
	}
	return snapshot, true
}
