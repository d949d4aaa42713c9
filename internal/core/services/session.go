package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"qrdine/internal/core/contracts"
	"qrdine/internal/core/domain"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ISessionService interface {
	// HandleConnect registers the connection and joins its initial rooms.
	HandleConnect(ctx context.Context, c contracts.Client, initial ...domain.Audience) []string
	// HandleMessage dispatches one inbound frame to its typed handler.
	HandleMessage(ctx context.Context, connID string, raw []byte) error
	// HandleHeartbeat keeps presence fresh until ctx is done.
	HandleHeartbeat(ctx context.Context, connID string)
	// HandleDisconnect releases every membership of the connection.
	HandleDisconnect(ctx context.Context, c contracts.Client)
}

type SessionConfig struct {
	HeartbeatInterval time.Duration
	PresenceTTL       time.Duration
}

type messageHandler func(ctx context.Context, connID string, data json.RawMessage) error

type SessionService struct {
	registry contracts.Registry
	presence contracts.PresenceStore
	cfg      SessionConfig
	handlers map[string]messageHandler
	log      *slog.Logger
}

// NewSessionService accepts a nil presence store; presence is then not mirrored.
func NewSessionService(
	log *slog.Logger,
	registry contracts.Registry,
	presence contracts.PresenceStore,
	cfg SessionConfig,
) *SessionService {
	s := &SessionService{
		log:      log,
		registry: registry,
		presence: presence,
		cfg:      cfg,
	}
	s.handlers = map[string]messageHandler{
		domain.MessageJoin:  s.onJoin,
		domain.MessageLeave: s.onLeave,
	}
	for _, kind := range []domain.AudienceKind{
		domain.AudienceKitchen,
		domain.AudienceOrder,
		domain.AudienceTable,
		domain.AudienceCustomer,
		domain.AudienceAdmin,
	} {
		s.handlers[domain.MessageJoin+":"+string(kind)] = s.onJoinKind(kind)
		s.handlers[domain.MessageLeave+":"+string(kind)] = s.onLeaveKind(kind)
	}
	return s
}

var _ ISessionService = (*SessionService)(nil)

func (s *SessionService) HandleConnect(ctx context.Context, c contracts.Client, initial ...domain.Audience) []string {
	ctx, span := tracer.Start(ctx, "SessionService.HandleConnect", trace.WithAttributes(
		attribute.String("conn_id", c.ID()),
	))
	defer span.End()
	s.registry.Register(c)
	rooms := make([]string, 0, len(initial))
	for _, a := range initial {
		group, err := s.join(ctx, c.ID(), a)
		if err != nil {
			span.RecordError(err)
			s.log.WarnContext(ctx, "session - handle connect - initial room rejected", "conn_id", c.ID(), "err", err)
			continue
		}
		rooms = append(rooms, group)
	}
	s.reply(ctx, c.ID(), domain.EventSession, domain.SessionInfo{ConnectionID: c.ID(), Rooms: rooms})
	s.log.InfoContext(ctx, "session - handle connect - registered", "conn_id", c.ID(), "rooms", rooms)
	return rooms
}

func (s *SessionService) HandleMessage(ctx context.Context, connID string, raw []byte) error {
	ctx, span := tracer.Start(ctx, "SessionService.HandleMessage", trace.WithAttributes(
		attribute.String("conn_id", connID),
		attribute.Int("payload_size", len(raw)),
	))
	defer span.End()
	var msg domain.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		span.RecordError(err)
		s.log.WarnContext(ctx, "session - handle message - wrong format", "conn_id", connID, "err", err)
		s.replyError(ctx, connID, "bad_message", "message must be {\"event\": string, \"data\": any}")
		return err
	}
	span.SetAttributes(attribute.String("event", msg.Event))
	h, ok := s.handlers[msg.Event]
	if !ok {
		err := fmt.Errorf("unknown event %q", msg.Event)
		span.RecordError(err)
		s.log.WarnContext(ctx, "session - handle message - unknown event", "conn_id", connID, "event", msg.Event)
		s.replyError(ctx, connID, "unknown_event", err.Error())
		return err
	}
	if err := h(ctx, connID, msg.Data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		if errors.Is(err, domain.ErrInvalidAudience) {
			s.log.WarnContext(ctx, "session - handle message - invalid audience", "conn_id", connID, "event", msg.Event, "err", err)
			s.replyError(ctx, connID, "invalid_room", err.Error())
		} else {
			s.log.ErrorContext(ctx, "session - handle message - handler failed", "conn_id", connID, "event", msg.Event, "err", err)
		}
		return err
	}
	return nil
}

// JoinRoom resolves the audience, joins its group and acks the connection.
func (s *SessionService) JoinRoom(ctx context.Context, connID string, a domain.Audience) (string, error) {
	group, err := s.join(ctx, connID, a)
	if err != nil {
		return "", err
	}
	s.reply(ctx, connID, domain.EventJoined, domain.JoinAck{Room: group, Message: "Joined " + group})
	s.log.InfoContext(ctx, "session - join room - joined", "conn_id", connID, "group", group)
	return group, nil
}

// LeaveRoom leaves the audience's group. No ack is sent.
func (s *SessionService) LeaveRoom(ctx context.Context, connID string, a domain.Audience) (string, error) {
	group, err := domain.Resolve(a)
	if err != nil {
		return "", err
	}
	s.registry.Leave(connID, group)
	if s.presence != nil {
		if err := s.presence.Remove(ctx, group, connID); err != nil {
			s.log.ErrorContext(ctx, "session - leave room - presence remove failed", "conn_id", connID, "group", group, "err", err)
		}
	}
	s.log.InfoContext(ctx, "session - leave room - left", "conn_id", connID, "group", group)
	return group, nil
}

func (s *SessionService) HandleHeartbeat(ctx context.Context, connID string) {
	if s.presence == nil || s.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("session - handle heartbeat - stopped", "conn_id", connID)
			return
		case <-ticker.C:
			for _, group := range s.registry.GroupsOf(connID) {
				if err := s.presence.Touch(ctx, group, connID, s.cfg.PresenceTTL); err != nil {
					s.log.ErrorContext(ctx, "session - handle heartbeat - presence touch failed", "conn_id", connID, "group", group, "err", err)
				}
			}
		}
	}
}

func (s *SessionService) HandleDisconnect(ctx context.Context, c contracts.Client) {
	// Membership goes first and all at once; presence cleanup is best effort.
	left := s.registry.DropConnection(c.ID())
	s.registry.Unregister(c)
	s.log.InfoContext(ctx, "session - handle disconnect - dropped", "conn_id", c.ID(), "groups", left)
	if s.presence == nil || len(left) == 0 {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	for _, group := range left {
		if err := s.presence.Remove(cleanupCtx, group, c.ID()); err != nil {
			s.log.ErrorContext(ctx, "session - handle disconnect - presence remove failed", "conn_id", c.ID(), "group", group, "err", err)
		}
	}
}

func (s *SessionService) onJoin(ctx context.Context, connID string, data json.RawMessage) error {
	a, err := decodeRoom(data)
	if err != nil {
		return err
	}
	_, err = s.JoinRoom(ctx, connID, a)
	return err
}

func (s *SessionService) onLeave(ctx context.Context, connID string, data json.RawMessage) error {
	a, err := decodeRoom(data)
	if err != nil {
		return err
	}
	_, err = s.LeaveRoom(ctx, connID, a)
	return err
}

// onJoinKind serves "join:<kind>" frames whose data is just the id.
func (s *SessionService) onJoinKind(kind domain.AudienceKind) messageHandler {
	return func(ctx context.Context, connID string, data json.RawMessage) error {
		a, err := domain.NewAudience(string(kind), rawRoomID(data))
		if err != nil {
			return err
		}
		_, err = s.JoinRoom(ctx, connID, a)
		return err
	}
}

func (s *SessionService) onLeaveKind(kind domain.AudienceKind) messageHandler {
	return func(ctx context.Context, connID string, data json.RawMessage) error {
		a, err := domain.NewAudience(string(kind), rawRoomID(data))
		if err != nil {
			return err
		}
		_, err = s.LeaveRoom(ctx, connID, a)
		return err
	}
}

func (s *SessionService) join(ctx context.Context, connID string, a domain.Audience) (string, error) {
	group, err := domain.Resolve(a)
	if err != nil {
		return "", err
	}
	s.registry.Join(connID, group)
	if s.presence != nil {
		if err := s.presence.Touch(ctx, group, connID, s.cfg.PresenceTTL); err != nil {
			s.log.ErrorContext(ctx, "session - join - presence touch failed", "conn_id", connID, "group", group, "err", err)
		}
	}
	return group, nil
}

func (s *SessionService) reply(ctx context.Context, connID string, kind domain.EventKind, payload any) {
	data, err := json.Marshal(domain.Envelope{Event: kind, Payload: payload, EmittedAt: time.Now().UTC()})
	if err != nil {
		s.log.ErrorContext(ctx, "session - reply - marshal failed", "conn_id", connID, "event", kind, "err", err)
		return
	}
	if err := s.registry.Emit(ctx, connID, data); err != nil {
		s.log.WarnContext(ctx, "session - reply - emit dropped", "conn_id", connID, "event", kind, "err", err)
	}
}

func (s *SessionService) replyError(ctx context.Context, connID, code, msg string) {
	s.reply(ctx, connID, domain.EventError, domain.ErrorMessage{Code: code, Message: msg})
}

func decodeRoom(data json.RawMessage) (domain.Audience, error) {
	var req domain.RoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		var aerr *domain.AudienceError
		if errors.As(err, &aerr) {
			return domain.Audience{}, err
		}
		return domain.Audience{}, &domain.AudienceError{Reason: "room must be {type, id} or \"{type}_{id}\""}
	}
	return req.Audience()
}

// rawRoomID accepts "42", 42 or {"id": "42"}.
func rawRoomID(data json.RawMessage) string {
	var req struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &req); err == nil && len(req.ID) > 0 {
		return domain.RawID(req.ID)
	}
	return domain.RawID(data)
}
