package server

import (
	"sync"
	"time"

	"sketchdown/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Server struct {
	store   *Store
	db      *gorm.DB
	ws      *wsHub
	cfg     config.Config
	clock   clockwork.Clock
	judge   *judgeClient
	prompts *promptList
	log     zerolog.Logger

	driversMu sync.Mutex
	drivers   map[string]chan struct{}
}

func New(conn *gorm.DB, cfg config.Config, clock clockwork.Clock, logger zerolog.Logger) *Server {
	prompts, err := loadPrompts(cfg.PromptsPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.PromptsPath).Msg("prompt file unusable, using built-in prompts")
		prompts = &promptList{prompts: builtinPrompts}
	}
	return &Server{
		store:   NewStore(),
		db:      conn,
		ws:      newWSHub(),
		cfg:     cfg,
		clock:   clock,
		judge:   newJudgeClient(cfg.AIServerURL, time.Duration(cfg.JudgeTimeoutSeconds)*time.Second, logger),
		prompts: prompts,
		log:     logger,
		drivers: make(map[string]chan struct{}),
	}
}

func (s *Server) Router() *gin.Engine {
	registerValidators()
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	api := router.Group("/api")
	api.POST("/rooms", s.handleCreateRoom)
	api.GET("/rooms", s.handleListRooms)
	api.GET("/rooms/:code", s.handleGetRoom)
	api.POST("/rooms/:code/join", s.handleJoinRoom)
	api.POST("/rooms/:code/leave", s.handleLeaveRoom)
	api.POST("/rooms/:code/start", s.handleStartGame)
	api.POST("/rooms/:code/submissions", s.handleSubmitDrawing)
	api.POST("/rooms/:code/next-round", s.handleNextRound)
	api.POST("/rooms/:code/judge", s.handleJudgeRound)

	router.GET("/ws/rooms/:code", s.handleWebsocket)
	return router
}
