package internal

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"pickup-games/internal/notify"
	"pickup-games/internal/participation"
	"pickup-games/internal/storage/sqlstore"
)

// Deps are the collaborators the HTTP API is built from.
type Deps struct {
	Store       *sqlstore.Store
	Engine      *participation.Engine
	Inbox       *notify.Inbox
	Hub         *notify.Hub
	Auth        AuthConfig
	CORSOrigins []string
	Logger      *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	registerValidators()
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(d.Logger))
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	db, engine, auth := d.Store, d.Engine, Auth(d.Store, d.Auth)

	api := r.Group("/api")
	{
		api.POST("/auth/register", Register(db, d.Auth))
		api.POST("/auth/login", Login(db, d.Auth))
		api.POST("/auth/logout", Logout(d.Auth))
		api.GET("/me", auth, Me(db))

		// games
		api.GET("/games", ListGames(db))
		api.GET("/games/:id", GetGame(db))
		api.GET("/games/:id/participants", ListParticipants(db))
		api.POST("/games", auth, CreateGame(db))
		api.DELETE("/games/:id", auth, DeleteGame(db, engine))

		// participation
		api.POST("/games/:id/participants", auth, JoinGame(engine))
		api.POST("/games/:id/withdraw", auth, Withdraw(engine))
		api.POST("/games/:id/participants/remove", auth, RemoveParticipants(engine))
		api.POST("/participants/:id/approve", auth, ApproveParticipant(engine))
		api.POST("/participants/:id/decline", auth, DeclineParticipant(engine))
		api.DELETE("/participants/:id", auth, RemoveParticipant(engine))
		api.POST("/participants/:id/attendance", auth, RecordAttendance(engine))

		api.GET("/my/games", auth, MyGames(db))
		api.GET("/my/participations", auth, MyParticipations(db))

		// notifications
		api.GET("/notifications", auth, ListNotifications(d.Inbox))
		api.GET("/notifications/count", auth, UnreadCount(d.Inbox))
		api.POST("/notifications/:id/read", auth, MarkNotificationRead(d.Inbox))
		api.GET("/ws/notifications", auth, NotificationSocket(d.Hub))

		// admin
		admin := api.Group("/admin", auth, RequireAdmin())
		{
			admin.GET("/users", AdminUsers(db, d.Auth))
			admin.DELETE("/users/:id", AdminDeleteUser(db))
			admin.GET("/logs", AdminLogs(db))
		}
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
