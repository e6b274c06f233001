package adaptor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/dto/response"
	"bus-booking/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
	wsSendBuffer     = 16
	wsReleaseTimeout = 5 * time.Second
)

// Server message types.
const (
	MessageSnapshot = "snapshot"
	MessageDiff     = "diff"
	MessageResult   = "result"
	MessageError    = "error"
)

// Client actions.
const (
	ActionAcquire = "acquire"
	ActionRenew   = "renew"
	ActionRelease = "release"
)

type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Status    *bool  `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Errors    any    `json:"errors,omitempty"`
}

type ClientMessage struct {
	Action     string   `json:"action"`
	RequestID  string   `json:"request_id"`
	SeatIDs    []string `json:"seat_ids"`
	TTLSeconds int      `json:"ttl_seconds"`
}

// SeatFeed hands out diff subscriptions; *usecase.NotificationHub implements it.
type SeatFeed interface {
	Subscribe(ctx context.Context, tripID string) (*usecase.Subscription, error)
}

// SeatMapSocket streams a trip's seat map over a websocket: one snapshot, then
// diffs in order. Clients holding a token may acquire, renew and release
// seats on the same socket; the token's holds are released when it closes.
type SeatMapSocket struct {
	feed        SeatFeed
	trips       usecase.TripService
	reservation usecase.ReservationService
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

func NewSeatMapSocket(feed SeatFeed, trips usecase.TripService, reservation usecase.ReservationService, allowedOrigins []string, log *zap.Logger) *SeatMapSocket {
	return &SeatMapSocket{
		feed:        feed,
		trips:       trips,
		reservation: reservation,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log.With(zap.String("handler", "seatmap_ws")),
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// Serve handles GET /api/trips/{id}/seatmap/ws
func (h *SeatMapSocket) Serve(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")
	topology, err := h.trips.Topology(r.Context(), tripID)
	if err != nil {
		handleServiceError(w, h.log, err, "open seat map stream")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		h.log.Warn("Websocket upgrade failed", zap.Error(err), zap.String("trip_id", tripID))
		return
	}

	s := &wsSession{
		socket:   h,
		conn:     conn,
		tripID:   tripID,
		token:    holderToken(r),
		topology: topology,
		send:     make(chan ServerMessage, wsSendBuffer),
		log:      h.log.With(zap.String("trip_id", tripID)),
	}
	s.run(r.Context())
}

type wsSession struct {
	socket   *SeatMapSocket
	conn     *websocket.Conn
	tripID   string
	token    string
	topology *entity.SeatTopology
	send     chan ServerMessage
	log      *zap.Logger
}

func (s *wsSession) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.log.Debug("Seat map stream opened", zap.Bool("with_token", s.token != ""))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		s.readLoop(ctx)
	}()

	if err := s.writeLoop(ctx); err != nil && ctx.Err() == nil {
		s.log.Info("Seat map stream ended", zap.Error(err))
	}
	cancel()
	s.conn.Close()
	wg.Wait()

	s.releaseHolds(parent)
	s.log.Debug("Seat map stream closed")
}

// releaseHolds frees what the token still holds once its connection is gone.
func (s *wsSession) releaseHolds(parent context.Context) {
	if s.token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), wsReleaseTimeout)
	defer cancel()

	released, err := s.socket.reservation.ReleaseAll(ctx, s.tripID, s.token)
	if err != nil {
		s.log.Warn("Failed to release holds on disconnect", zap.Error(err))
		return
	}
	if len(released.SeatIDs) > 0 {
		s.log.Info("Holds released on disconnect", zap.Strings("seat_ids", released.SeatIDs))
	}
}

func (s *wsSession) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(wsMaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Websocket read failed", zap.Error(err))
			}
			return
		}

		result := s.handle(ctx, msg)
		select {
		case s.send <- result:
		case <-ctx.Done():
			return
		}
	}
}

func (s *wsSession) handle(ctx context.Context, msg ClientMessage) ServerMessage {
	var (
		data any
		err  error
	)
	reservation := s.socket.reservation
	ttl := time.Duration(msg.TTLSeconds) * time.Second

	switch {
	case s.token == "":
		err = fmt.Errorf("%w: connect with a holder_token to modify seats", usecase.ErrInvalidRequest)
	case msg.Action == ActionAcquire:
		data, err = reservation.Acquire(ctx, s.tripID, msg.SeatIDs, s.token, ttl)
	case msg.Action == ActionRenew:
		data, err = reservation.Renew(ctx, s.tripID, msg.SeatIDs, s.token, ttl)
	case msg.Action == ActionRelease && len(msg.SeatIDs) == 0:
		data, err = reservation.ReleaseAll(ctx, s.tripID, s.token)
	case msg.Action == ActionRelease:
		data, err = reservation.Release(ctx, s.tripID, msg.SeatIDs, s.token)
	default:
		err = fmt.Errorf("%w: unknown action %q", usecase.ErrInvalidRequest, msg.Action)
	}

	result := ServerMessage{Type: MessageResult, RequestID: msg.RequestID, Action: msg.Action}
	ok := err == nil
	result.Status = &ok
	if ok {
		result.Message = "success"
		result.Data = data
		return result
	}

	code, failure := errorStatus(err)
	if failure == nil {
		failure = &Failure{Code: strings.ReplaceAll(strings.ToLower(http.StatusText(code)), " ", "_")}
	}
	result.Errors = failure
	result.Message = err.Error()
	if code == http.StatusInternalServerError {
		s.log.Error("Seat action failed", zap.Error(err), zap.String("action", msg.Action))
		result.Message = "Internal server error"
	}
	return result
}

func (s *wsSession) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	sub, err := s.subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.closeWith(websocket.CloseNormalClosure, "")
			return nil

		case ev, ok := <-sub.Events():
			if ok {
				if err := s.write(ServerMessage{Type: MessageDiff, Data: response.NewSeatDiff(ev, s.token)}); err != nil {
					return err
				}
				continue
			}
			if ctx.Err() != nil {
				s.closeWith(websocket.CloseNormalClosure, "")
				return nil
			}
			reason := sub.Err()
			if !errors.Is(reason, usecase.ErrStreamResync) {
				s.write(ServerMessage{Type: MessageError, Message: reason.Error()})
				s.closeWith(websocket.CloseTryAgainLater, reason.Error())
				return reason
			}
			// Upstream lost diffs; start over from a fresh snapshot.
			if sub, err = s.subscribe(ctx); err != nil {
				return err
			}

		case msg := <-s.send:
			if err := s.write(msg); err != nil {
				return err
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// subscribe opens a subscription and writes its snapshot.
func (s *wsSession) subscribe(ctx context.Context) (*usecase.Subscription, error) {
	sub, err := s.socket.feed.Subscribe(ctx, s.tripID)
	if err != nil {
		s.write(ServerMessage{Type: MessageError, Message: err.Error()})
		return nil, err
	}

	snap := sub.Snapshot()
	err = s.write(ServerMessage{Type: MessageSnapshot, Data: &response.SeatMapResponse{
		TripID:   s.tripID,
		Version:  snap.Version,
		Topology: s.topology,
		States:   response.NewSeatStates(snap.Within(s.topology), s.token),
	}})
	if err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}

func (s *wsSession) write(msg ServerMessage) error {
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(msg)
}

func (s *wsSession) closeWith(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
