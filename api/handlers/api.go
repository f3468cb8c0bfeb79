package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Rohith-Das/Med360-sub001/api"
	"github.com/Rohith-Das/Med360-sub001/cache"
	"github.com/Rohith-Das/Med360-sub001/chat"
	"github.com/Rohith-Das/Med360-sub001/config"
	"github.com/Rohith-Das/Med360-sub001/databases"
	"github.com/Rohith-Das/Med360-sub001/models"
	"github.com/Rohith-Das/Med360-sub001/notifications"
	"github.com/Rohith-Das/Med360-sub001/realtime"
	"github.com/Rohith-Das/Med360-sub001/video"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Hub      *realtime.Hub
	Cache    cache.Cache
	Chat     *chat.Service
	Video    *video.Service
	Notify   *notifications.Dispatcher
	dbHelper databases.DatabaseHelper
}

// DB exposes the database helper for wiring done outside the router,
// such as the scheduler in main.
func (a *App) DB() databases.DatabaseHelper {
	return a.dbHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	auth := api.Auth{Config: &a.Config}

	bestEffort := cache.NewBestEffort(a.Cache)
	typing := realtime.NewTypingRegistry(a.Hub, realtime.DefaultTypingTTL)

	a.Notify = &notifications.Dispatcher{
		Store:     databases.NewNotificationDatabase(a.dbHelper),
		Broadcast: a.Hub,
		Presence:  a.Hub,
		Mailer:    notifications.NewSendGridMailer(),
	}
	a.Chat = &chat.Service{
		Rooms:        databases.NewChatRoomDatabase(a.dbHelper),
		Messages:     databases.NewChatMessageDatabase(a.dbHelper),
		Appointments: databases.NewAppointmentDatabase(a.dbHelper),
		Broadcast:    a.Hub,
		Presence:     a.Hub,
		Cache:        bestEffort,
	}
	a.Video = &video.Service{
		Sessions:     databases.NewVideoSessionDatabase(a.dbHelper),
		Appointments: databases.NewAppointmentDatabase(a.dbHelper),
		Cache:        bestEffort,
		Broadcast:    a.Hub,
		Presence:     a.Hub,
		Notifier:     a.Notify,
	}

	c := Chat{Chat: a.Chat}
	v := Video{Video: a.Video}
	n := Notification{Dispatcher: a.Notify}
	p := Presence{Hub: a.Hub}
	gw := &Gateway{Auth: auth, Hub: a.Hub, Chat: a.Chat, Video: a.Video, Typing: typing}
	cloudinaryHandler := CloudinaryHandler{
		APISecret:    a.Config.CloudinarySecret,
		UploadPreset: a.Config.CloudinaryPreset,
	}

	r := mux.NewRouter()

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	r.HandleFunc("/ws", gw.ServeWS)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/chat/rooms", auth.Middleware(http.HandlerFunc(c.CreateRoomHandler))).Methods("POST")
	apiCreate.Handle("/chat/rooms/user/{user_id}", auth.Middleware(http.HandlerFunc(c.RoomsByUserIDHandler))).Methods("GET")
	apiCreate.Handle("/chat/rooms/{room_id}/messages", auth.Middleware(http.HandlerFunc(c.RoomMessagesHandler))).Methods("GET")
	apiCreate.Handle("/chat/rooms/{room_id}/read", auth.Middleware(http.HandlerFunc(c.MarkRoomReadHandler))).Methods("PUT")

	apiCreate.Handle("/video/sessions", auth.Middleware(http.HandlerFunc(v.InitiateSessionHandler))).Methods("POST")
	apiCreate.Handle("/video/sessions/{room_id}/join", auth.Middleware(http.HandlerFunc(v.JoinSessionHandler))).Methods("POST")
	apiCreate.Handle("/video/sessions/{room_id}/end", auth.Middleware(http.HandlerFunc(v.EndSessionHandler))).Methods("POST")
	apiCreate.Handle("/video/sessions/{room_id}", auth.Middleware(http.HandlerFunc(v.SessionByRoomIDHandler))).Methods("GET")

	apiCreate.Handle("/notifications", auth.Middleware(http.HandlerFunc(n.DispatchHandler))).Methods("POST")
	apiCreate.Handle("/notifications/user/{user_id}/read-all", auth.Middleware(http.HandlerFunc(n.MarkAllNotificationsReadHandler))).Methods("PUT")
	apiCreate.Handle("/notifications/{notification_id}/read", auth.Middleware(http.HandlerFunc(n.MarkNotificationReadHandler))).Methods("PUT")
	apiCreate.Handle("/notifications/{user_id}", auth.Middleware(http.HandlerFunc(n.NotificationsByUserIDHandler))).Methods("GET")

	apiCreate.Handle("/presence/{user_id}", auth.Middleware(http.HandlerFunc(p.PresenceByUserIDHandler))).Methods("GET")

	apiCreate.Handle("/generate-signature", auth.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("med360-realtime has connected to the database")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := databases.NewChatRoomDatabase(a.dbHelper).EnsureIndexes(ctx); err != nil {
		// the duplicate-insert recovery in chat depends on this index
		zap.S().With(err).Error("failed to create chat room indexes")
		return err
	}

	if a.Config.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(a.Config.RedisURL)
		if err != nil {
			// the cache is an accelerator, run degraded rather than kill the pod
			zap.S().With(err).Warn("failed to connect to redis, running without cache")
		} else {
			a.Cache = redisCache
			zap.S().Info("med360-realtime has connected to redis")
		}
	}

	a.Hub = realtime.NewHub()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func getPage(Page int, r *http.Request) int {
	if r.URL.Query().Get("page") == "" {
		zap.S().Warnf("page not set, using default of %v", Page)
	} else {
		var err error
		Page, err = strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			zap.S().Errorf(fmt.Sprintf("error parsing page number: %v", err))
		}
		if Page < 0 {
			zap.S().Warnf(fmt.Sprintf("cannot process page number less than 1. Got: %v", Page))
			return 0
		}
	}
	return Page
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
