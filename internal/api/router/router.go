package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/cartoncaps-assistant/internal/conversation"
	httpmiddleware "github.com/wolfman30/cartoncaps-assistant/internal/http/middleware"
	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

const (
	chatPath   = "/api/v1/carton_caps/chat"
	uiPrefix   = "/ui"
	uiIndexURL = uiPrefix + "/index.html"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	ChatHandler    *conversation.Handler
	ChatWebSocket  http.Handler
	AdminHandler   *conversation.AdminHandler
	AdminJWTSecret string
	MetricsHandler http.Handler
	StaticDir      string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))

	r.Get("/health", cfg.ChatHandler.Health)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, uiIndexURL, http.StatusTemporaryRedirect)
	})
	if cfg.StaticDir != "" {
		fileServer := http.StripPrefix(uiPrefix+"/", http.FileServer(http.Dir(cfg.StaticDir)))
		r.Handle(uiPrefix+"/*", fileServer)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Compression buffers responses, which breaks the websocket hijack, so it
	// is scoped to the JSON endpoint only.
	limit := httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)
	r.With(limit, middleware.Compress(5)).Post(chatPath, cfg.ChatHandler.Chat)
	if cfg.ChatWebSocket != nil {
		r.With(limit).Get(chatPath+"/ws", cfg.ChatWebSocket.ServeHTTP)
	}

	if cfg.AdminJWTSecret != "" && cfg.AdminHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			admin.Get("/users/{userID}", cfg.AdminHandler.GetUser)
			admin.Get("/users/{userID}/conversations", cfg.AdminHandler.GetConversations)
			admin.Get("/sessions/{sessionID}", cfg.AdminHandler.GetSession)
		})
	}

	return r
}
