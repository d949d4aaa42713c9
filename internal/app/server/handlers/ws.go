package handlers

import (
	"context"
	"net/http"
	"qrdine/internal/app/server/ws"
	"qrdine/internal/core/domain"
	"qrdine/internal/core/services"
	"qrdine/pkg/logging"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type WSHandler struct {
	session  services.ISessionService
	opts     ws.Options
	upgrader websocket.Upgrader
}

// NewWSHandler accepts any origin when allowedOrigins is empty.
func NewWSHandler(session services.ISessionService, opts ws.Options, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		session: session,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - ws upgrade failed", logging.Err(err))
		return
	}
	// the session outlives the upgrade request
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	connID := uuid.NewString()
	log = log.With(logging.Conn(connID))
	socket := ws.NewWebSocket(ctx, log, conn, s.opts)
	client := ws.NewClient(ctx, socket, connID)
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		s.session.HandleHeartbeat(hbCtx, connID)
	}()
	defer func() {
		// a touch racing the presence cleanup would resurrect the entry
		stopHeartbeat()
		<-hbDone
		s.session.HandleDisconnect(ctx, client)
		client.Close()
		cancel()
		log.InfoContext(ctx, "ws handler - ws closed")
	}()

	initial := initialRooms(r)
	rooms := s.session.HandleConnect(ctx, client, initial...)
	span.SetAttributes(
		attribute.String("ws.conn_id", connID),
		attribute.StringSlice("ws.rooms", rooms),
	)
	log.InfoContext(ctx, "ws handler - ws connection established", "rooms", rooms)

	// frames from one connection are handled in arrival order
	socket.ReadLoop(func(data []byte) {
		_ = s.session.HandleMessage(ctx, connID, data)
	})
}

// initialRooms reads customerId and tableId from the connect query. Placeholder
// table ids left by unrendered QR templates are ignored.
func initialRooms(r *http.Request) []domain.Audience {
	q := r.URL.Query()
	var out []domain.Audience
	if id := q.Get("customerId"); id != "" {
		out = append(out, domain.ForCustomer(id))
	}
	if id := q.Get("tableId"); !domain.IsPlaceholderTableID(id) {
		out = append(out, domain.ForTable(id))
	}
	return out
}
