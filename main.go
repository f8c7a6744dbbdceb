package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"mingle-chat/internal/auth"
	"mingle-chat/internal/config"
	"mingle-chat/internal/db"
	"mingle-chat/internal/handlers"
	"mingle-chat/internal/logging"
	"mingle-chat/internal/observability"
	"mingle-chat/internal/pipeline"
	"mingle-chat/internal/presence"
	"mingle-chat/internal/repositories"
	"mingle-chat/internal/ws"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.Env)

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}

	shutdownTracer, err := observability.InitTracer(context.Background(), cfg.OTLPEndpoint, "mingle-chat")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracer")
	}
	defer shutdownTracer(context.Background())

	publisher := observability.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)

	authenticator := auth.NewJWTAuthenticator(cfg.JWTSecret)

	userRepo := repositories.NewUserRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	groupMessageRepo := repositories.NewGroupMessageRepo(database)
	presenceRepo := repositories.NewPresenceRepo(database)

	pipe := pipeline.New(messageRepo, groupMessageRepo)
	tracker := presence.NewTracker(presenceRepo)

	registry := ws.NewRegistry()
	hub := ws.NewHub(registry)

	directWS := ws.NewDirectWSHandler(hub, registry, userRepo, pipe, tracker, authenticator)
	groupWS := ws.NewGroupWSHandler(hub, registry, userRepo, groupRepo, pipe, tracker, authenticator)

	chatHandler := handlers.NewChatHandler(userRepo, pipe)
	groupHandler := handlers.NewGroupHandler(groupRepo, pipe)
	presenceHandler := handlers.NewPresenceHandler(userRepo, tracker)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("mingle-chat"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := auth.Middleware(authenticator)

	router.GET("/chats/:user_id/messages", authMiddleware, chatHandler.GetConversation)
	router.GET("/chats/:user_id/unread", authMiddleware, chatHandler.GetUnreadCount)
	router.POST("/chats/:user_id/read", authMiddleware, chatHandler.MarkConversationRead)

	router.GET("/groups", authMiddleware, groupHandler.ListGroups)
	router.GET("/groups/:slug/messages", authMiddleware, groupHandler.GetGroupMessages)

	router.GET("/users/:user_id/presence", authMiddleware, presenceHandler.GetPresence)

	router.GET("/ws/chats/:user_id", directWS.Handle)
	router.GET("/ws/groups/:slug", groupWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.DebugRoutes {
		router.GET("/debug/rooms", func(c *gin.Context) {
			c.JSON(http.StatusOK, hub.Snapshot())
		})
	}

	log.Info().Str("port", cfg.Port).Msg("mingle-chat listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
