package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pulse-chat/config"
	"pulse-chat/internal/handler"
	"pulse-chat/internal/middleware"
	"pulse-chat/internal/transport/httpdto"
	"pulse-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Server is the agent's local HTTP surface: REST for commands and queries,
// one websocket endpoint for pushes.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Calls         *handler.CallHandler
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Uploads       *handler.UploadHandler
	Socket        *WebSocketHandler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/ws", handlers.Socket.Handle)

	v1 := s.engine.Group("/v1")
	{
		v1.GET("/conversations", handlers.Conversations.List)
		v1.POST("/conversations", handlers.Conversations.CreateOrGet)
		v1.GET("/conversations/:id/messages", handlers.Messages.List)
		v1.POST("/conversations/:id/seen", handlers.Messages.MarkSeen)
		v1.POST("/messages", handlers.Messages.Send)
		v1.POST("/uploads", handlers.Uploads.Upload)

		v1.POST("/calls", handlers.Calls.Start)
		v1.GET("/calls/active", handlers.Calls.Active)
		v1.POST("/calls/:id/accept", handlers.Calls.Accept)
		v1.POST("/calls/:id/reject", handlers.Calls.Reject)
		v1.POST("/calls/end", handlers.Calls.End)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the agent on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the agent: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Agent is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the agent: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Agent stopped gracefully")
	}

	return nil
}
