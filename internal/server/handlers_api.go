package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	Nickname string `json:"nickname" binding:"required,nickname"`
}

type joinRoomRequest struct {
	Nickname string `json:"nickname" binding:"required,nickname"`
	PlayerID string `json:"player_id"`
}

type leaveRoomRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

type startGameRequest struct {
	PlayerID        string `json:"player_id" binding:"required"`
	DurationSeconds int    `json:"duration_seconds"`
}

type submitDrawingRequest struct {
	PlayerID  string `json:"player_id" binding:"required"`
	ImageData string `json:"image_data" binding:"required"`
}

type nextRoundRequest struct {
	PlayerID        string `json:"player_id"`
	DurationSeconds int    `json:"duration_seconds"`
}

type judgeRoundRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

var nicknameMessages = bindMessages{
	"Nickname": {
		"required": "nickname is required",
		"nickname": "nickname is invalid",
	},
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if !bindJSON(c, &req, nicknameMessages, "invalid request") {
		return
	}
	nickname, err := validateNickname(req.Nickname)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "bad_request", "error": err.Error()})
		return
	}
	room, hostID := s.createRoom(nickname)
	c.JSON(http.StatusCreated, gin.H{
		"room_code": room.Code,
		"player_id": hostID,
	})
}

func (s *Server) handleListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": s.store.ListRoomSummaries()})
}

func (s *Server) handleGetRoom(c *gin.Context) {
	snapshot, ok := s.roomSnapshot(c.Param("code"))
	if !ok {
		writeAPIError(c, ErrRoomNotFound)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleJoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if !bindJSON(c, &req, nicknameMessages, "invalid request") {
		return
	}
	nickname, err := validateNickname(req.Nickname)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "bad_request", "error": err.Error()})
		return
	}
	playerID := req.PlayerID
	if playerID == "" {
		playerID = newPlayerID()
	}
	if err := s.joinRoom(c.Param("code"), playerID, nickname); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player_id": playerID})
}

func (s *Server) handleLeaveRoom(c *gin.Context) {
	var req leaveRoomRequest
	if !bindJSON(c, &req, nil, "player_id is required") {
		return
	}
	if err := s.leaveRoom(c.Param("code"), req.PlayerID); err != nil {
		writeAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStartGame(c *gin.Context) {
	var req startGameRequest
	if !bindJSON(c, &req, nil, "player_id is required") {
		return
	}
	if err := s.startGame(c.Param("code"), req.PlayerID, s.roundDuration(req.DurationSeconds)); err != nil {
		writeAPIError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) handleSubmitDrawing(c *gin.Context) {
	var req submitDrawingRequest
	if !bindJSON(c, &req, nil, "player_id and image_data are required") {
		return
	}
	image, err := normalizeDrawing(req.ImageData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "bad_request", "error": err.Error()})
		return
	}
	if err := s.submitDrawing(c.Param("code"), req.PlayerID, image); err != nil {
		writeAPIError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) handleNextRound(c *gin.Context) {
	var req nextRoundRequest
	if !bindJSON(c, &req, nil, "invalid request") {
		return
	}
	if err := s.nextRound(c.Param("code"), s.roundDuration(req.DurationSeconds)); err != nil {
		writeAPIError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) handleJudgeRound(c *gin.Context) {
	var req judgeRoundRequest
	if !bindJSON(c, &req, nil, "player_id is required") {
		return
	}
	if err := s.judgeRound(c.Param("code"), req.PlayerID); err != nil {
		writeAPIError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// writeAPIError maps the error taxonomy onto HTTP statuses. Errors stay
// scoped to the caller; nothing here broadcasts.
func writeAPIError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrDuplicateRoom):
		status = http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ErrRoundNotActive):
		status = http.StatusConflict
	case errors.Is(err, ErrLobbyFull):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{
		"kind":  errorKind(err),
		"error": err.Error(),
	})
}
