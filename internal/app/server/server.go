package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"qrdine/internal/app/server/handlers"
	"qrdine/internal/core/services"
	"qrdine/pkg/middleware"

	"github.com/gorilla/mux"
)

type Server struct {
	router   *mux.Router
	srv      *http.Server
	log      *slog.Logger
	app      string
	tokenSvc *services.TokenService

	wsHandler       *handlers.WSHandler
	orderHandler    *handlers.OrderHandler
	noticeHandler   *handlers.NotificationHandler
	presenceHandler *handlers.PresenceHandler
}

type Handlers struct {
	WS            *handlers.WSHandler
	Orders        *handlers.OrderHandler
	Notifications *handlers.NotificationHandler
	Presence      *handlers.PresenceHandler
}

func NewServer(
	log *slog.Logger,
	app string,
	addr string,
	tokenSvc *services.TokenService,
	h Handlers,
) *Server {
	s := &Server{
		router:          mux.NewRouter(),
		log:             log,
		app:             app,
		tokenSvc:        tokenSvc,
		wsHandler:       h.WS,
		orderHandler:    h.Orders,
		noticeHandler:   h.Notifications,
		presenceHandler: h.Presence,
	}
	s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// no WriteTimeout: it would cut long-lived websocket sessions
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	// 1. Initialize Middleware
	s.router.Use(middleware.TracerMiddleware(s.app), middleware.RequestLogger(s.log))
	auth := middleware.AuthMiddleware(s.tokenSvc)

	// 2. Public Routes
	s.router.HandleFunc("/healthz", handlers.Healthz).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.wsHandler.Handler).Methods(http.MethodGet)
	s.router.HandleFunc("/api/orders", s.orderHandler.Create).Methods(http.MethodPost)

	// 3. Staff Routes
	staff := s.router.PathPrefix("/api").Subrouter()
	staff.Use(auth)
	staff.HandleFunc("/orders/{id}/status", s.orderHandler.UpdateStatus).Methods(http.MethodPatch)
	staff.HandleFunc("/orders/{id}/items/{itemId}/status", s.orderHandler.UpdateItemStatus).Methods(http.MethodPatch)
	staff.HandleFunc("/notifications", s.noticeHandler.Create).Methods(http.MethodPost)
	staff.HandleFunc("/presence/{type}/{id}", s.presenceHandler.Get).Methods(http.MethodGet)
}

// Start serves until ctx is done, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
