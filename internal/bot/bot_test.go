package bot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/usherbot/usherbot/internal/automation"
	"github.com/usherbot/usherbot/internal/bus"
	"github.com/usherbot/usherbot/internal/config"
	"github.com/usherbot/usherbot/internal/meeting"
	"github.com/usherbot/usherbot/internal/meeting/meetingtest"
	"github.com/usherbot/usherbot/internal/remote"
	"github.com/usherbot/usherbot/internal/responder"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.Local)

type memSettings struct {
	mu   sync.Mutex
	vals map[string]string
}

func (m *memSettings) SetSetting(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	return nil
}

func (m *memSettings) get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vals[key]
}

type fixture struct {
	bot      *Bot
	rec      *meetingtest.Recorder
	bus      *bus.MessageBus
	settings *memSettings
	cmdFile  string
	cfgFile  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	users := filepath.Join(dir, "good_users.txt")
	require.NoError(t, os.WriteFile(users, []byte("Ann Admin^\nKnown Kim\n"), 0o600))

	cfg := config.DefaultConfig()
	cfg.Paths.DataDir = dir
	cfg.Paths.KnownUsers = users
	cfg.Paths.CommandFile = filepath.Join(dir, "command_file.txt")
	cfg.Paths.ResponderFile = filepath.Join(dir, "responders.yaml")
	cfg.Bot.GreetingPause = 0
	cfg.Responders.Default = nil

	f := &fixture{
		rec:      meetingtest.New(),
		bus:      bus.NewMessageBus(),
		settings: &memSettings{vals: map[string]string{}},
		cmdFile:  cfg.Paths.CommandFile,
		cfgFile:  filepath.Join(dir, "config.json"),
	}
	f.rec.Roster.Upsert(meeting.Participant{ID: "self", Name: "UsherBot", IsSelf: true, IsHost: true, Status: meeting.StatusAttending})
	f.bot = New(Options{
		Config:     cfg,
		ConfigPath: f.cfgFile,
		Roster:     f.rec.Roster,
		Controller: f.rec,
		Speaker:    f.rec,
		Bus:        f.bus,
		Sources:    []remote.Source{remote.NewFileSource(cfg.Paths.CommandFile)},
		Responders: responder.NewRegistry(),
		Settings:   f.settings,
		Now:        func() time.Time { return t0 },
	})
	f.bot.Start(context.Background())
	t.Cleanup(f.bot.Stop)
	return f
}

func (f *fixture) command(t *testing.T, directives ...string) {
	t.Helper()
	require.NoError(t, remote.WriteFile(f.cmdFile, directives))
}

func TestTickAppliesModeDirectives(t *testing.T) {
	f := newFixture(t)
	f.command(t, "lockdown:on", "debug:on")

	f.bot.Tick(context.Background(), 1)

	flags := f.bot.Modes().Flags()
	require.True(t, flags.NoneOf(automation.LockdownMask))
	require.True(t, f.bot.Modes().Debug())
	require.Equal(t, flags.String(), f.settings.get("automation"))
	_, err := os.Stat(f.cmdFile)
	require.True(t, os.IsNotExist(err))
}

func TestModeNoticeCarriesAllModes(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got *bus.Notice
	)
	f.bus.Subscribe(func(n *bus.Notice) {
		if n.Kind != bus.NoticeMode {
			return
		}
		mu.Lock()
		got = n
		mu.Unlock()
	})
	go func() { _ = f.bus.DispatchNotices(ctx) }()

	f.command(t, "pause:on")
	f.bot.Tick(context.Background(), 1)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "pause", got.Subject)
	require.Equal(t, "on", got.Text)
	require.Equal(t, true, got.Metadata[automation.ModePause])
	require.Equal(t, false, got.Metadata[automation.ModeDebug])
	require.Len(t, got.Metadata, len(automation.ModeNames)+1)
}

func TestTickPausedSkipsAdmission(t *testing.T) {
	f := newFixture(t)
	f.rec.Roster.Upsert(meeting.Participant{ID: "k", Name: "Known Kim", Status: meeting.StatusWaiting, WaitingSince: t0})
	f.command(t, "pause:on")

	f.bot.Tick(context.Background(), 1)
	require.Empty(t, f.rec.Calls("admit"))

	f.command(t, "pause:off")
	f.bot.Tick(context.Background(), 2)
	require.Len(t, f.rec.Calls("admit"), 1)
}

func TestTickIgnoresUnknownDirective(t *testing.T) {
	f := newFixture(t)
	before := f.bot.Modes().Flags()
	require.NoError(t, os.WriteFile(f.cmdFile, []byte("bogus\ncitadel:on\n"), 0o600))

	f.bot.Tick(context.Background(), 1)

	require.NotEqual(t, before, f.bot.Modes().Flags())
	require.True(t, f.bot.Modes().Flags().NoneOf(automation.CitadelMask))
	require.False(t, f.bot.Scheduler().ShuttingDown())
}

func TestExitPassesHostBeforeLeaving(t *testing.T) {
	f := newFixture(t)
	f.rec.Roster.Upsert(meeting.Participant{ID: "a", Name: "Ann Admin", IsCoHost: true, Status: meeting.StatusAttending})
	f.command(t, "exit")

	f.bot.Tick(context.Background(), 1)

	promotes := f.rec.Calls("promote")
	require.Len(t, promotes, 1)
	require.Equal(t, "a", promotes[0].Target)
	require.Equal(t, string(meeting.RoleHost), promotes[0].Arg)
	leaves := f.rec.Calls("leave")
	require.Len(t, leaves, 1)
	require.Equal(t, "false", leaves[0].Arg)
	require.True(t, f.bot.Scheduler().ShuttingDown())
}

func TestExitWithoutCoHostEndsMeeting(t *testing.T) {
	f := newFixture(t)
	f.command(t, "exit")

	f.bot.Tick(context.Background(), 1)

	leaves := f.rec.Calls("leave")
	require.Len(t, leaves, 1)
	require.Equal(t, "true", leaves[0].Arg)
}

func TestExitFailedHandOffEndsMeeting(t *testing.T) {
	f := newFixture(t)
	f.rec.Roster.Upsert(meeting.Participant{ID: "a", Name: "Ann Admin", IsCoHost: true, Status: meeting.StatusAttending})
	f.rec.Fail("promote", nil)

	require.NoError(t, f.bot.LeaveMeeting(context.Background(), false))
	require.Equal(t, "true", f.rec.Calls("leave")[0].Arg)
}

func TestLeaveWhenNotHostSkipsHandOff(t *testing.T) {
	f := newFixture(t)
	f.rec.Roster.Update("self", func(p *meeting.Participant) { p.IsHost = false })

	require.NoError(t, f.bot.LeaveMeeting(context.Background(), false))
	require.Empty(t, f.rec.Calls("promote"))
	require.Equal(t, "false", f.rec.Calls("leave")[0].Arg)
}

func TestKillEndsMeetingForAll(t *testing.T) {
	f := newFixture(t)
	f.rec.Roster.Upsert(meeting.Participant{ID: "a", Name: "Ann Admin", IsCoHost: true, Status: meeting.StatusAttending})
	f.command(t, "kill")

	f.bot.Tick(context.Background(), 1)

	require.Empty(t, f.rec.Calls("promote"))
	require.Equal(t, "true", f.rec.Calls("leave")[0].Arg)
	require.True(t, f.bot.Scheduler().ShuttingDown())
}

func TestMeetingClosedShutsDown(t *testing.T) {
	f := newFixture(t)
	f.rec.Roster.Update("self", func(p *meeting.Participant) { p.IsHost = false })
	f.rec.Fail("reclaim_host", meeting.ErrClosed)

	f.bot.Tick(context.Background(), 1)

	require.True(t, f.bot.ctl.Closed())
	require.True(t, f.bot.Scheduler().ShuttingDown())
}

func TestHandleEventAdmitsKnownFromWaitingRoom(t *testing.T) {
	f := newFixture(t)
	p := meeting.Participant{ID: "k", Name: "Known Kim", Status: meeting.StatusWaiting, WaitingSince: t0}
	f.rec.Roster.Upsert(p)

	f.bot.HandleEvent(context.Background(), &meeting.Event{Type: meeting.EventJoinedWaitingRoom, Participant: p})

	require.Len(t, f.rec.Calls("admit"), 1)
}

func TestHandleEventPromotesAdminOnJoin(t *testing.T) {
	f := newFixture(t)
	p := meeting.Participant{ID: "a", Name: "Ann Admin", Status: meeting.StatusAttending, IsVideoOn: true}
	f.rec.Roster.Upsert(p)

	f.bot.HandleEvent(context.Background(), &meeting.Event{Type: meeting.EventJoinedMeeting, Participant: p})

	promotes := f.rec.Calls("promote")
	require.Len(t, promotes, 1)
	require.Equal(t, string(meeting.RoleCoHost), promotes[0].Arg)
}

func TestHandleEventPausedStillHandlesChat(t *testing.T) {
	f := newFixture(t)
	_, err := f.bot.Modes().SetMode(automation.ModePause, true)
	require.NoError(t, err)
	ann := meeting.Participant{ID: "a", Name: "Ann Admin", Status: meeting.StatusAttending, IsVideoOn: true}
	f.rec.Roster.Upsert(ann)

	f.bot.HandleEvent(context.Background(), &meeting.Event{Type: meeting.EventJoinedMeeting, Participant: ann})
	require.Empty(t, f.rec.Calls("promote"))

	f.bot.HandleEvent(context.Background(), &meeting.Event{
		Type: meeting.EventChatMessage,
		Chat: &meeting.ChatMessage{From: ann, To: meeting.To(mustSelf(t, f)), Text: "/passive on", IsPrivate: true},
	})
	require.Equal(t, automation.None, f.bot.Modes().Flags())
	require.NotEmpty(t, f.rec.SentTo(meeting.To(ann)))
}

func TestConsumeEventsDispatchesFromBus(t *testing.T) {
	f := newFixture(t)
	p := meeting.Participant{ID: "k", Name: "Known Kim", Status: meeting.StatusWaiting, WaitingSince: t0}
	f.rec.Roster.Upsert(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.bot.ConsumeEvents(ctx)
		close(done)
	}()
	f.bus.PublishEvent(&meeting.Event{Type: meeting.EventJoinedWaitingRoom, Participant: p})

	require.Eventually(t, func() bool { return len(f.rec.Calls("admit")) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestTickReloadsConfig(t *testing.T) {
	f := newFixture(t)
	cfg := f.bot.Config()
	body := `{
  "paths": {"dataDir": "` + filepath.ToSlash(cfg.Paths.DataDir) + `", "knownUsers": "` + filepath.ToSlash(cfg.Paths.KnownUsers) + `"},
  "bot": {"name": "Usher Two", "paused": true},
  "admission": {"waitingRoomAnnouncementMessage": "Please hold"},
  "responders": {"default": []}
}`
	require.NoError(t, os.WriteFile(f.cfgFile, []byte(body), 0o600))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(f.cfgFile, later, later))

	f.bot.Tick(context.Background(), 1)

	require.Equal(t, "Usher Two", f.bot.Config().Bot.Name)
	require.True(t, f.bot.Modes().Paused())
	require.Equal(t, "Please hold", f.bot.Session().Chat.WaitingMessage())
}

func TestRunStopsOnShutdown(t *testing.T) {
	f := newFixture(t)
	f.command(t, "kill")

	errCh := make(chan error, 1)
	go func() { errCh <- f.bot.Run(context.Background()) }()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop")
	}
	require.Len(t, f.rec.Calls("leave"), 1)
}

func mustSelf(t *testing.T, f *fixture) meeting.Participant {
	t.Helper()
	self, ok := f.rec.Roster.Self()
	require.True(t, ok)
	return self
}
