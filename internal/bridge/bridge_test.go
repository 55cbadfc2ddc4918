package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/usherbot/usherbot/internal/meeting"
)

type capturedAction struct {
	path string
	auth string
	body actionRequest
}

func newDriver(t *testing.T, status int) (*httptest.Server, *[]capturedAction) {
	t.Helper()
	var got []capturedAction
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body actionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode action body: %v", err)
		}
		got = append(got, capturedAction{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
		w.WriteHeader(status)
		_, _ = w.Write([]byte("driver says no"))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestClientActions(t *testing.T) {
	srv, got := newDriver(t, http.StatusOK)
	c := NewClient(srv.URL+"/", "secret", time.Second)
	ctx := context.Background()
	p := meeting.Participant{ID: "p1", Name: "Ann"}

	calls := []func() error{
		func() error { return c.Admit(ctx, p) },
		func() error { return c.Promote(ctx, p, meeting.RoleCoHost) },
		func() error { return c.Rename(ctx, p, "Annie") },
		func() error { return c.Send(ctx, meeting.Everyone, "hello") },
		func() error { return c.Leave(ctx, true) },
		func() error { return c.ReclaimHost(ctx) },
		func() error { return c.Play(ctx, "bootup") },
	}
	for i, call := range calls {
		if err := call(); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	wantPaths := []string{"/actions/admit", "/actions/promote", "/actions/rename", "/actions/send",
		"/actions/leave", "/actions/reclaim-host", "/actions/play"}
	if len(*got) != len(wantPaths) {
		t.Fatalf("got %d requests, want %d", len(*got), len(wantPaths))
	}
	for i, a := range *got {
		if a.path != wantPaths[i] {
			t.Errorf("request %d path = %q, want %q", i, a.path, wantPaths[i])
		}
		if a.auth != "Bearer secret" {
			t.Errorf("request %d auth = %q", i, a.auth)
		}
	}
	if b := (*got)[1].body; b.ParticipantID != "p1" || b.Role != "cohost" {
		t.Errorf("promote body = %+v", b)
	}
	if b := (*got)[2].body; b.NewName != "Annie" {
		t.Errorf("rename body = %+v", b)
	}
	if b := (*got)[3].body; b.To != "everyone" || b.Text != "hello" {
		t.Errorf("send body = %+v", b)
	}
	if b := (*got)[4].body; !b.EndForAll {
		t.Errorf("leave body = %+v", b)
	}
}

func TestClientStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusConflict, ErrRejected},
		{http.StatusUnprocessableEntity, ErrRejected},
		{http.StatusGone, meeting.ErrClosed},
	}
	for _, tc := range cases {
		srv, _ := newDriver(t, tc.status)
		err := NewClient(srv.URL, "", time.Second).Mute(context.Background(), meeting.Participant{ID: "x"})
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
	}

	srv, _ := newDriver(t, http.StatusInternalServerError)
	err := NewClient(srv.URL, "", time.Second).Unmute(context.Background(), meeting.Participant{ID: "x"})
	if err == nil || errors.Is(err, ErrRejected) || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("unexpected error for 500: %v", err)
	}
}

func TestClientRejectsBadURL(t *testing.T) {
	if err := NewClient("ftp://driver", "", 0).Speak(context.Background(), "hi"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

type recordingBus struct{ events []*meeting.Event }

func (b *recordingBus) PublishEvent(ev *meeting.Event) { b.events = append(b.events, ev) }

func newTestServer(token string) (*Server, *meeting.Roster, *recordingBus, http.Handler) {
	roster := meeting.NewRoster()
	b := &recordingBus{}
	s := NewServer(roster, b, token)
	s.now = func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }
	return s, roster, b, s.Handler()
}

func post(h http.Handler, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServerAppliesParticipantEvents(t *testing.T) {
	_, roster, b, h := newTestServer("")

	rec := post(h, "/events", "", `{"type":"participant.joined_waiting_room","participant":{"id":"p1","name":"Guest"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	p, ok := roster.ByID("p1")
	if !ok || p.Status != meeting.StatusWaiting || p.WaitingSince.IsZero() {
		t.Fatalf("roster entry = %+v, %v", p, ok)
	}
	if len(b.events) != 1 || b.events[0].Participant.Status != meeting.StatusWaiting || b.events[0].TraceID == "" {
		t.Fatalf("published = %+v", b.events)
	}

	post(h, "/events", "", `{"type":"participant.left_waiting_room","participant":{"id":"p1"}}`)
	if roster.Len() != 0 {
		t.Errorf("participant not removed")
	}
}

func TestServerChatEventUsesRoster(t *testing.T) {
	_, roster, b, h := newTestServer("")
	roster.Upsert(meeting.Participant{ID: "p1", Name: "Ann Admin", Status: meeting.StatusAttending})

	rec := post(h, "/events", "", `{"type":"chat.message","chat":{"from":{"id":"p1"},"to":"self","text":"/topic","isPrivate":true}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	msg := b.events[0].Chat
	if msg == nil || msg.From.Name != "Ann Admin" || msg.To != "self" || !msg.IsPrivate {
		t.Fatalf("chat = %+v", msg)
	}
}

func TestServerRejectsBadRequests(t *testing.T) {
	_, _, b, h := newTestServer("tok")

	if rec := post(h, "/events", "", `{"type":"chat.message"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status %d", rec.Code)
	}
	if rec := post(h, "/events", "tok", `{"type":"participant.exploded","participant":{"id":"x"}}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type: status %d", rec.Code)
	}
	if rec := post(h, "/events", "tok", `{"type":"participant.updated","participant":{}}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing id: status %d", rec.Code)
	}
	if rec := post(h, "/events", "tok", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status %d", rec.Code)
	}
	if len(b.events) != 0 {
		t.Errorf("rejected requests published events: %+v", b.events)
	}
}

func TestServerReplacesRoster(t *testing.T) {
	_, roster, _, h := newTestServer("")
	roster.Upsert(meeting.Participant{ID: "old", Name: "Gone"})

	rec := post(h, "/roster", "", `[{"id":"self","name":"UsherBot","isSelf":true,"status":"attending"},{"id":"w","name":"Walt","status":"waiting"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if roster.Len() != 2 {
		t.Fatalf("roster len = %d", roster.Len())
	}
	if _, ok := roster.Self(); !ok {
		t.Error("self missing")
	}
	if w, _ := roster.ByID("w"); w.WaitingSince.IsZero() {
		t.Error("waiting participant has no waiting time")
	}
}

func TestServerKeepsWaitingTimeAcrossUpdates(t *testing.T) {
	s, roster, _, h := newTestServer("")
	joined := time.Date(2026, 5, 4, 8, 55, 0, 0, time.UTC)
	roster.Upsert(meeting.Participant{ID: "w", Name: "Walt", Status: meeting.StatusWaiting, WaitingSince: joined})

	rec := post(h, "/events", "", `{"type":"participant.updated","participant":{"id":"w","name":"Walt (iPhone)"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if w, _ := roster.ByID("w"); w.Status != meeting.StatusWaiting || !w.WaitingSince.Equal(joined) {
		t.Fatalf("after update = %+v", w)
	}

	s.now = func() time.Time { return joined.Add(time.Hour) }
	rec = post(h, "/roster", "", `[{"id":"w","name":"Walt","status":"waiting"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if w, _ := roster.ByID("w"); !w.WaitingSince.Equal(joined) {
		t.Fatalf("after replace waitingSince = %v", w.WaitingSince)
	}
}
