// Package config provides configuration types and loading for usherbot.
package config

import (
	"time"

	"github.com/usherbot/usherbot/internal/automation"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Bot, Admission, Chat, Scheduler, Bridge, Remote,
// Responders, Provider, Mail, Notify.
type Config struct {
	Paths      PathsConfig      `json:"paths"`
	Bot        BotConfig        `json:"bot"`
	Admission  AdmissionConfig  `json:"admission"`
	Chat       ChatConfig       `json:"chat"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Bridge     BridgeConfig     `json:"bridge"`
	Remote     RemoteConfig     `json:"remote"`
	Responders ResponderConfig  `json:"responders"`
	Provider   ProviderConfig   `json:"provider"`
	Mail       MailConfig       `json:"mail"`
	Notify     NotifyConfig     `json:"notify"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings. Relative file names are
// resolved against DataDir.
type PathsConfig struct {
	DataDir       string `json:"dataDir" envconfig:"DATA_DIR" validate:"required"`
	KnownUsers    string `json:"knownUsers" envconfig:"KNOWN_USERS"`
	CommandFile   string `json:"commandFile" envconfig:"COMMAND_FILE"`
	AuditDB       string `json:"auditDb" envconfig:"AUDIT_DB"`
	LockFile      string `json:"lockFile" envconfig:"LOCK_FILE"`
	ResponderFile string `json:"responderManifest" envconfig:"RESPONDER_MANIFEST"`
}

// ---------------------------------------------------------------------------
// Bot – identity and automation switches
// ---------------------------------------------------------------------------

// BotConfig holds the bot identity and its starting automation state.
type BotConfig struct {
	Name       string           `json:"name" envconfig:"NAME" validate:"required"`
	Automation automation.Flags `json:"automation" envconfig:"AUTOMATION"`
	Debug      bool             `json:"debug" envconfig:"DEBUG"`
	Paused     bool             `json:"paused" envconfig:"PAUSED"`
	// GreetingPause separates the startup sound from the spoken greeting.
	GreetingPause time.Duration `json:"greetingPause" envconfig:"GREETING_PAUSE" validate:"gte=0"`
	StartupSound  string        `json:"startupSound" envconfig:"STARTUP_SOUND"`
}

// ---------------------------------------------------------------------------
// Admission – waiting room policy
// ---------------------------------------------------------------------------

// AdmissionConfig holds throttle intervals and the waiting-room announcement.
type AdmissionConfig struct {
	UnknownParticipantWaitSecs       int    `json:"unknownParticipantWaitSecs" envconfig:"UNKNOWN_WAIT_SECS" validate:"gte=0"`
	UnknownParticipantThrottleSecs   int    `json:"unknownParticipantThrottleSecs" envconfig:"UNKNOWN_THROTTLE_SECS" validate:"gte=0"`
	WaitingRoomAnnouncementMessage   string `json:"waitingRoomAnnouncementMessage" envconfig:"WAITING_ROOM_MESSAGE"`
	WaitingRoomAnnouncementDelaySecs int    `json:"waitingRoomAnnouncementDelaySecs" envconfig:"WAITING_ROOM_DELAY_SECS" validate:"gte=0"`
}

func (a AdmissionConfig) UnknownWait() time.Duration {
	return time.Duration(a.UnknownParticipantWaitSecs) * time.Second
}

func (a AdmissionConfig) UnknownThrottle() time.Duration {
	return time.Duration(a.UnknownParticipantThrottleSecs) * time.Second
}

func (a AdmissionConfig) AnnouncementDelay() time.Duration {
	return time.Duration(a.WaitingRoomAnnouncementDelaySecs) * time.Second
}

// ---------------------------------------------------------------------------
// Chat – command tables and canned responses
// ---------------------------------------------------------------------------

// EmailCommand is one entry of the email command table. Subject and Body
// may contain {0}, filled from the command argument after the address.
type EmailCommand struct {
	ArgsExample string `json:"argsExample"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// ChatConfig holds the chat command tables. Keys containing "|" are
// expanded into one entry per alternative when loaded.
type ChatConfig struct {
	BroadcastCommands             map[string]string       `json:"broadcastCommands"`
	BroadcastCommandGuardTimeSecs int                     `json:"broadcastCommandGuardTimeSecs" envconfig:"BROADCAST_GUARD_SECS"`
	EmailCommands                 map[string]EmailCommand `json:"emailCommands"`
	OneTimeHiSequences            map[string]string       `json:"oneTimeHiSequences"`
	SmallTalkSequences            map[string]string       `json:"smallTalkSequences"`
	RandomTalk                    []string                `json:"randomTalk"`
	TopicKeywords                 []string                `json:"topicKeywords"`
}

func (c ChatConfig) BroadcastGuard() time.Duration {
	return time.Duration(c.BroadcastCommandGuardTimeSecs) * time.Second
}

// ---------------------------------------------------------------------------
// Scheduler – orchestration tick
// ---------------------------------------------------------------------------

// SchedulerConfig configures the orchestration loop.
type SchedulerConfig struct {
	TickInterval time.Duration `json:"tickInterval" envconfig:"TICK_INTERVAL" validate:"gt=0"`
}

// ---------------------------------------------------------------------------
// Bridge – external meeting driver
// ---------------------------------------------------------------------------

// BridgeConfig points at the external process driving the meeting client.
type BridgeConfig struct {
	DriverURL  string        `json:"driverUrl" envconfig:"DRIVER_URL" validate:"omitempty,url"`
	ListenAddr string        `json:"listenAddr" envconfig:"LISTEN_ADDR"`
	AuthToken  string        `json:"authToken" envconfig:"AUTH_TOKEN"`
	Timeout    time.Duration `json:"timeout" envconfig:"TIMEOUT"`
}

// ---------------------------------------------------------------------------
// Remote – out-of-band directives
// ---------------------------------------------------------------------------

// RemoteConfig configures remote command sources besides the command file.
type RemoteConfig struct {
	Kafka KafkaConfig `json:"kafka"`
}

// KafkaConfig configures the Kafka command topic.
type KafkaConfig struct {
	Enabled bool     `json:"enabled" envconfig:"ENABLED"`
	Brokers []string `json:"brokers" envconfig:"BROKERS"`
	Topic   string   `json:"topic" envconfig:"TOPIC"`
	GroupID string   `json:"groupId" envconfig:"GROUP_ID"`
}

// ---------------------------------------------------------------------------
// Responders and provider – conversational fallback
// ---------------------------------------------------------------------------

// ResponderConfig lists responders used when no manifest file exists.
type ResponderConfig struct {
	Default []string `json:"default" envconfig:"DEFAULT"`
}

// ProviderConfig configures the OpenAI-compatible endpoint used by the llm
// responder.
type ProviderConfig struct {
	APIKey       string        `json:"apiKey" envconfig:"API_KEY"`
	APIBase      string        `json:"apiBase" envconfig:"API_BASE"`
	Model        string        `json:"model" envconfig:"MODEL"`
	MaxTokens    int           `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature  float64       `json:"temperature" envconfig:"TEMPERATURE"`
	SystemPrompt string        `json:"systemPrompt" envconfig:"SYSTEM_PROMPT"`
	Timeout      time.Duration `json:"timeout" envconfig:"TIMEOUT"`
}

// ---------------------------------------------------------------------------
// Mail and notify – outbound side channels
// ---------------------------------------------------------------------------

// MailConfig configures SMTP delivery for email commands.
type MailConfig struct {
	Host     string `json:"host" envconfig:"HOST"`
	Port     int    `json:"port" envconfig:"PORT"`
	Username string `json:"username" envconfig:"USERNAME"`
	Password string `json:"password" envconfig:"PASSWORD"`
	From     string `json:"from" envconfig:"FROM" validate:"omitempty,email"`
}

// NotifyConfig configures operator notifications.
type NotifyConfig struct {
	SlackWebhookURL string `json:"slackWebhookUrl" envconfig:"SLACK_WEBHOOK_URL" validate:"omitempty,url"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:       "~/.usherbot",
			KnownUsers:    "good_users.txt",
			CommandFile:   "command_file.txt",
			AuditDB:       "audit.db",
			LockFile:      "usherbot.lock",
			ResponderFile: "responders.yaml",
		},
		Bot: BotConfig{
			Name:          "UsherBot",
			Automation:    automation.All,
			GreetingPause: 3 * time.Second,
			StartupSound:  "bootup",
		},
		Admission: AdmissionConfig{
			UnknownParticipantWaitSecs:       30,
			UnknownParticipantThrottleSecs:   15,
			WaitingRoomAnnouncementDelaySecs: 60,
		},
		Chat: ChatConfig{
			BroadcastCommands:             map[string]string{},
			BroadcastCommandGuardTimeSecs: 300,
			EmailCommands:                 map[string]EmailCommand{},
			OneTimeHiSequences:            map[string]string{},
			SmallTalkSequences:            map[string]string{},
			TopicKeywords:                 []string{"topic", "reading"},
		},
		Scheduler: SchedulerConfig{
			TickInterval: 5 * time.Second,
		},
		Bridge: BridgeConfig{
			ListenAddr: "127.0.0.1:18795",
			Timeout:    10 * time.Second,
		},
		Remote: RemoteConfig{
			Kafka: KafkaConfig{
				Topic:   "usherbot.commands",
				GroupID: "usherbot",
			},
		},
		Responders: ResponderConfig{
			Default: []string{"llm", "smalltalk"},
		},
		Provider: ProviderConfig{
			APIBase:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   256,
			Temperature: 0.7,
			SystemPrompt: "You are a friendly usher in an online meeting. " +
				"Answer in one or two short sentences.",
			Timeout: 20 * time.Second,
		},
		Mail: MailConfig{
			Port: 587,
		},
	}
}
