package server

import (
	"log/slog"
	"net/http"

	"sharedlist-sync-server/internal/config"
	"sharedlist-sync-server/internal/handler"
	"sharedlist-sync-server/internal/middleware"
	"sharedlist-sync-server/internal/notify"
	"sharedlist-sync-server/internal/ratelimit"
	"sharedlist-sync-server/internal/repository"
	"sharedlist-sync-server/internal/service"
	"sharedlist-sync-server/internal/websocket"

	"github.com/gorilla/mux"
)

// Deps are the backends a router is built on. A nil Limiter turns admission
// control off.
type Deps struct {
	Config    *config.Config
	Repos     *repository.Repositories
	Limiter   *ratelimit.Limiter
	Notifier  notify.Notifier
	WSManager *websocket.Manager
	Logger    *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config

	listService := service.NewListService(d.Repos.Lists)
	itemService := service.NewItemService(d.Repos.Items, d.Notifier, cfg.Database.MaxItems)
	syncService := service.NewSyncService(d.Repos.Items)
	pushService := service.NewPushService(d.Repos.Subscriptions)
	statsService := service.NewStatsService(d.Repos.Stats)

	var quota service.Pinger
	if d.Limiter != nil {
		quota = d.Limiter
	}
	healthService := service.NewHealthService(d.Repos.Health, quota)

	listHandler := handler.NewListHandler(listService, d.Logger)
	itemHandler := handler.NewItemHandler(itemService, syncService, d.Logger)
	pushHandler := handler.NewPushHandler(pushService, d.Logger)
	statsHandler := handler.NewStatsHandler(statsService, healthService, d.Logger)
	wsHandler := handler.NewWebSocketHandler(d.WSManager, listService,
		cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, d.Logger)

	identified := middleware.RequireClientID()
	admit := func(rules []ratelimit.Rule) func(http.Handler) http.Handler {
		if d.Limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.AdmissionMiddleware(d.Limiter, cfg.RateLimit.TrustProxyHeaders, d.Logger, rules...)
	}
	mutating := func(h http.HandlerFunc, rules []ratelimit.Rule) http.Handler {
		return identified(admit(rules)(h))
	}

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(d.Logger))
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/v1").Subrouter()

	api.Handle("/lists", mutating(listHandler.Create, ratelimit.CreateListRules)).Methods("POST", "OPTIONS")
	api.HandleFunc("/lists/{id}", listHandler.Get).Methods("GET", "OPTIONS")
	api.Handle("/lists/{id}", mutating(listHandler.Delete, ratelimit.DeleteListRules)).Methods("DELETE", "OPTIONS")

	api.Handle("/lists/{id}/items", mutating(itemHandler.Create, ratelimit.WriteItemRules)).Methods("POST", "OPTIONS")
	api.HandleFunc("/lists/{id}/items", itemHandler.List).Methods("GET", "OPTIONS")
	api.Handle("/lists/{id}/items/{item_id}", mutating(itemHandler.Update, ratelimit.WriteItemRules)).Methods("PUT", "OPTIONS")
	api.Handle("/lists/{id}/items/{item_id}", mutating(itemHandler.Delete, ratelimit.WriteItemRules)).Methods("DELETE", "OPTIONS")

	api.Handle("/lists/{id}/push/ios/subscribe", identified(http.HandlerFunc(pushHandler.SubscribeIOS))).Methods("POST", "OPTIONS")
	api.Handle("/lists/{id}/push/ios/subscribe", identified(http.HandlerFunc(pushHandler.UnsubscribeIOS))).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/lists/{id}/ws", wsHandler.HandleConnection).Methods("GET")

	api.HandleFunc("/stats/usage", statsHandler.Usage).Methods("GET", "OPTIONS")

	r.HandleFunc("/healthz", statsHandler.Healthz).Methods("GET")

	return r
}
