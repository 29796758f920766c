package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safeguard/internal/config"
	"safeguard/internal/handler"
	"safeguard/internal/middleware"
	"safeguard/internal/orchestrator"
	"safeguard/internal/repository"
)

type Server struct {
	router *gin.Engine
	cfg    *config.Config
	logger *zap.Logger
}

func NewServer(cfg *config.Config, orch *orchestrator.Orchestrator, flagRepo repository.FlagRepository, logger *zap.Logger) *Server {
	router := gin.Default()

	s := &Server{
		router: router,
		cfg:    cfg,
		logger: logger,
	}

	s.setupRoutes(orch, flagRepo)

	return s
}

func (s *Server) setupRoutes(orch *orchestrator.Orchestrator, flagRepo repository.FlagRepository) {
	safetyHandler := handler.NewSafetyHandler(orch, s.logger)
	flagHandler := handler.NewFlagHandler(flagRepo, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Pipeline entry point, invoked by the chat service
	s.router.POST("/api/safety/check", safetyHandler.CheckMessage)

	// Review API, guarded by service tokens
	review := s.router.Group("/api")
	review.Use(middleware.AuthMiddleware([]byte(s.cfg.JWTSecret), s.logger))
	{
		review.GET("/flags", flagHandler.GetAllFlags)
		review.GET("/flags/:id", flagHandler.GetFlagByID)
		review.PATCH("/flags/:id/status", flagHandler.UpdateFlagStatus)
	}
}

func (s *Server) Run(addr string) {
	s.logger.Info("Server starting", zap.String("addr", addr))
	if err := s.router.Run(addr); err != nil {
		s.logger.Fatal("Server failed to start", zap.Error(err))
	}
}
