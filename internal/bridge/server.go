package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/usherbot/usherbot/internal/meeting"
)

// EventPublisher receives events once the roster reflects them.
type EventPublisher interface {
	PublishEvent(ev *meeting.Event)
}

// Server receives platform events from the driver.
type Server struct {
	roster *meeting.Roster
	events EventPublisher
	token  string
	now    func() time.Time
}

func NewServer(roster *meeting.Roster, events EventPublisher, token string) *Server {
	return &Server{roster: roster, events: events, token: token, now: time.Now}
}

type eventPayload struct {
	Type        meeting.EventType   `json:"type"`
	Participant meeting.Participant `json:"participant"`
	Chat        *chatPayload        `json:"chat,omitempty"`
	TraceID     string              `json:"traceId,omitempty"`
}

type chatPayload struct {
	From      meeting.Participant `json:"from"`
	To        string              `json:"to"`
	Text      string              `json:"text"`
	IsPrivate bool                `json:"isPrivate"`
}

var knownEvents = map[meeting.EventType]bool{
	meeting.EventJoinedWaitingRoom: true,
	meeting.EventLeftWaitingRoom:   true,
	meeting.EventJoinedMeeting:     true,
	meeting.EventLeftMeeting:       true,
	meeting.EventUpdated:           true,
	meeting.EventChatMessage:       true,
}

// Handler returns the HTTP routes of the event receiver.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/events", s.handleEvent)
	mux.HandleFunc("/roster", s.handleRoster)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	slog.Info("Listening for driver events", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !verifyBearer(r, s.token) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req eventPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if !knownEvents[req.Type] {
		http.Error(w, "unknown event type", http.StatusBadRequest)
		return
	}

	ev := meeting.Event{Type: req.Type, Participant: req.Participant, TraceID: req.TraceID, At: s.now()}
	if ev.TraceID == "" {
		ev.TraceID = uuid.NewString()
	}
	if req.Type == meeting.EventChatMessage {
		if req.Chat == nil || strings.TrimSpace(req.Chat.Text) == "" {
			http.Error(w, "chat required", http.StatusBadRequest)
			return
		}
		from := req.Chat.From
		if known, ok := s.roster.ByID(from.ID); ok {
			from = known
		}
		ev.Chat = &meeting.ChatMessage{
			From:      from,
			To:        meeting.Recipient(req.Chat.To),
			Text:      req.Chat.Text,
			IsPrivate: req.Chat.IsPrivate,
		}
	} else {
		if strings.TrimSpace(req.Participant.ID) == "" {
			http.Error(w, "participant.id required", http.StatusBadRequest)
			return
		}
		s.roster.Apply(ev)
		if stored, ok := s.roster.ByID(ev.Participant.ID); ok {
			ev.Participant = stored
		}
	}

	slog.Debug("Driver event", "type", ev.Type, "participant", ev.Participant.Name, "trace_id", ev.TraceID)
	s.events.PublishEvent(&ev)
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "traceId": ev.TraceID})
}

// handleRoster replaces the whole roster, typically right after the driver
// joins the meeting.
func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	if !verifyBearer(r, s.token) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.roster.Snapshot())
		return
	case http.MethodPost:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var ps []meeting.Participant
	if err := json.NewDecoder(r.Body).Decode(&ps); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.roster.Replace(ps, s.now())
	slog.Info("Roster replaced", "participants", s.roster.Len())
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "participants": s.roster.Len()})
}

func verifyBearer(r *http.Request, expected string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return true
	}
	got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	return got == expected
}
