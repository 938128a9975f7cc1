package main

import (
	"context"
	"log"

	"github.com/google/uuid"

	"pulse-chat/config"
	"pulse-chat/internal/calls"
	"pulse-chat/internal/chat"
	"pulse-chat/internal/domain/call"
	"pulse-chat/internal/feed"
	"pulse-chat/internal/handler"
	"pulse-chat/internal/media"
	"pulse-chat/internal/repository"
	"pulse-chat/internal/rtc"
	"pulse-chat/internal/server"
	"pulse-chat/pkg/database"
	"pulse-chat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)

	selfID, err := uuid.Parse(cfg.SelfUserID)
	if err != nil {
		log.Fatalf("SELF_USER_ID must be a valid uuid: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	broker := feed.NewRedisBroker(cfg.RedisHost+":"+cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB, l)

	callRepo := repository.NewCallRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	convRepo := repository.NewConversationRepository(db)
	userRepo := repository.NewUserRepository(db)

	pion, err := rtc.NewPion(cfg.StunURL)
	if err != nil {
		log.Fatalf("Failed to initialize webrtc: %v", err)
	}

	hub := server.NewHub(l)
	go hub.Run(ctx)

	signaler, err := calls.NewSignaler(ctx, selfID, callRepo, userRepo, pion, pion, broker, l, calls.Handlers{
		OnIncoming: func(inc calls.IncomingCall) {
			hub.Broadcast("call.incoming", inc)
		},
		OnRemoteTrack: func(t rtc.RemoteTrack) {
			hub.Broadcast("call.track", map[string]string{"id": t.ID(), "kind": t.Kind()})
		},
		OnEnded: func(c call.Call) {
			hub.Broadcast("call.ended", c)
		},
	})
	if err != nil {
		log.Fatalf("Failed to start call signaler: %v", err)
	}
	defer signaler.Close(ctx)

	synchronizer := chat.NewSynchronizer(msgRepo, broker, l)
	roster := chat.NewRoster(convRepo, msgRepo, userRepo, broker, l)

	rosterSub, err := roster.Watch(ctx, selfID, func() {
		hub.Broadcast("roster.changed", nil)
	})
	if err != nil {
		log.Fatalf("Failed to watch roster: %v", err)
	}
	defer rosterSub.Close()

	// Per-conversation message events go to the UI as-is; the UI refetches
	// the conversations it has open.
	msgSub, err := broker.Subscribe(ctx, feed.TableMessages, nil, nil, func(_ context.Context, ev feed.Event) {
		hub.Broadcast("messages.changed", ev)
	})
	if err != nil {
		log.Fatalf("Failed to watch messages: %v", err)
	}
	defer msgSub.Close()

	blobStore, err := media.NewS3Store(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize media store: %v", err)
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Calls:         handler.NewCallHandler(signaler, callRepo),
		Conversations: handler.NewConversationHandler(roster, selfID),
		Messages:      handler.NewMessageHandler(synchronizer, selfID),
		Uploads:       handler.NewUploadHandler(blobStore, selfID),
		Socket:        server.NewWebSocketHandler(hub, l),
	})

	if err := srv.Start(); err != nil {
		log.Fatalf("Agent exited with error: %v", err)
	}
}
