package server

import (
	"encoding/json"
	"errors"
	"time"

	"sketchdown/internal/db"

	"github.com/jackc/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// The audit log is strictly write-behind history: a nil db disables it and
// nothing here feeds back into live room state. Failures are logged and
// swallowed so a broken database can never stall a game.

func (s *Server) persistRoomCreated(room *Room, hostNickname string) {
	if s.db == nil {
		return
	}
	record := db.Room{
		Code:     room.Code,
		HostName: hostNickname,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		if !isUniqueViolation(err) {
			s.log.Warn().Err(err).Str("room_code", room.Code).Msg("failed to persist room")
			return
		}
	}
	_, _ = s.store.UpdateRoom(room.Code, func(r *Room) error {
		r.DBID = record.ID
		return nil
	})
	s.persistEvent(room, "room_created", EventPayload{
		RoomCode: room.Code,
		Nickname: hostNickname,
	})
}

func (s *Server) persistRoundStarted(room *Room, generation int, prompt Prompt) {
	if s.db == nil {
		return
	}
	dbid := s.roomDBID(room.Code)
	if dbid == 0 {
		return
	}
	record := db.Round{
		RoomID:     dbid,
		Generation: generation,
		PromptID:   prompt.ID,
		Prompt:     prompt.Text,
		Category:   prompt.Category,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		s.log.Warn().Err(err).Str("room_code", room.Code).Int("generation", generation).Msg("failed to persist round")
		return
	}
	_, _ = s.store.UpdateRoom(room.Code, func(r *Room) error {
		r.RoundDBID = record.ID
		return nil
	})
	s.persistEvent(room, "round_started", EventPayload{
		RoomCode:   room.Code,
		Generation: generation,
		Prompt:     prompt.Text,
		PromptID:   prompt.ID,
		Category:   prompt.Category,
	})
}

func (s *Server) persistRoundResult(room *Room, generation int, result RoundResult) {
	if s.db == nil {
		return
	}
	dbid := s.roomDBID(room.Code)
	if dbid == 0 {
		return
	}
	winnerName := ""
	for _, score := range result.Scores {
		if score.PlayerID == result.WinnerID {
			winnerName = score.Nickname
			break
		}
	}
	if err := s.db.Model(&db.Round{}).
		Where("room_id = ? AND generation = ?", dbid, generation).
		Updates(map[string]any{
			"winner_name": winnerName,
			"is_fallback": result.IsFallback,
		}).Error; err != nil {
		s.log.Warn().Err(err).Str("room_code", room.Code).Int("generation", generation).Msg("failed to persist result")
	}
	s.persistEvent(room, "round_result", EventPayload{
		RoomCode:   room.Code,
		Generation: generation,
		Prompt:     result.Prompt,
		WinnerID:   result.WinnerID,
		IsFallback: result.IsFallback,
	})
}

func (s *Server) persistRoomClosed(room *Room, reason string) {
	if s.db == nil {
		return
	}
	dbid := room.DBID
	if dbid == 0 {
		return
	}
	now := time.Now().UTC()
	if err := s.db.Model(&db.Room{}).
		Where("id = ?", dbid).
		Update("closed_at", &now).Error; err != nil {
		s.log.Warn().Err(err).Str("room_code", room.Code).Msg("failed to persist room close")
	}
	s.persistRecord(dbid, "room_closed", EventPayload{
		RoomCode: room.Code,
		Reason:   reason,
	})
}

func (s *Server) persistEvent(room *Room, eventType string, payload EventPayload) {
	if s.db == nil {
		return
	}
	dbid := s.roomDBID(room.Code)
	if dbid == 0 {
		return
	}
	s.persistRecord(dbid, eventType, payload)
}

func (s *Server) persistRecord(roomDBID uint, eventType string, payload EventPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	record := db.Event{
		RoomID:  roomDBID,
		Type:    eventType,
		Payload: datatypes.JSON(body),
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.log.Warn().Err(err).Str("event_type", eventType).Msg("failed to persist event")
	}
}

func (s *Server) roomDBID(code string) uint {
	var dbid uint
	if _, err := s.store.UpdateRoom(code, func(r *Room) error {
		dbid = r.DBID
		return nil
	}); err != nil {
		return 0
	}
	return dbid
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
