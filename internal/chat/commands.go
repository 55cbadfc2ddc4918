package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/usherbot/usherbot/internal/automation"
	"github.com/usherbot/usherbot/internal/bus"
	"github.com/usherbot/usherbot/internal/config"
	"github.com/usherbot/usherbot/internal/meeting"
	"github.com/usherbot/usherbot/internal/policy"
	"github.com/usherbot/usherbot/internal/session"
	"github.com/usherbot/usherbot/internal/textutil"
)

const renameSeparator = " to "

var validate = validator.New()

// knownCommands are the built-in commands besides the configured tables.
var knownCommands = map[string]bool{
	"topic": true, "citadel": true, "lockdown": true, "passive": true,
	"waitmsg": true, "rename": true, "speaker": true, "speak": true,
	"say": true, "play": true, "admit": true, "cohost": true,
	"promote": true, "demote": true, "mute": true, "unmute": true,
}

// request is one parsed command.
type request struct {
	cfg     *config.Config
	from    meeting.Participant
	replyTo meeting.Recipient
	cmd     string
	arg     string
	now     time.Time
}

// parseCommand splits "/cmd rest" into the lowercased command name and
// its trimmed argument.
func parseCommand(text string) (cmd, arg string) {
	text = strings.TrimPrefix(strings.TrimSpace(text), CommandPrefix)
	cmd, arg, _ = strings.Cut(text, " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

func (in *Interpreter) command(ctx context.Context, cfg *config.Config, from meeting.Participant, replyTo meeting.Recipient, direct bool, text string, now time.Time) {
	cmd, arg := parseCommand(text)
	traceID := uuid.NewString()
	decision := in.deps.Policy.Evaluate(policy.Context{
		Sender:  from.Name,
		Command: cmd,
		Tier:    policy.TierFor(cmd, arg),
		Direct:  direct,
		TraceID: traceID,
	})
	if !decision.Allow {
		slog.Warn("Ignoring command from non-admin", "command", text, "from", from.Name, "reason", decision.Reason)
		return
	}
	slog.Info("Running command", "command", cmd, "arg", arg, "from", from.Name, "trace_id", traceID)
	if in.deps.Notices != nil {
		in.deps.Notices.PublishNotice(&bus.Notice{
			Kind:     bus.NoticeCommand,
			TraceID:  traceID,
			Subject:  from.Name,
			Text:     strings.TrimSpace(CommandPrefix + cmd + " " + arg),
			Metadata: map[string]any{"reason": decision.Reason},
		})
	}

	in.dispatch(ctx, request{cfg: cfg, from: from, replyTo: replyTo, cmd: cmd, arg: arg, now: now})
}

func (in *Interpreter) dispatch(ctx context.Context, r request) {
	if msg, ok := r.cfg.Chat.BroadcastCommands[r.cmd]; ok {
		in.broadcast(ctx, r, msg)
		return
	}
	if r.cmd == "topic" {
		in.topicCommand(ctx, r)
		return
	}
	if r.arg == "" {
		return
	}
	if email, ok := r.cfg.Chat.EmailCommands[r.cmd]; ok {
		in.emailCommand(ctx, r, email)
		return
	}

	switch r.cmd {
	case automation.ModeCitadel, automation.ModeLockdown, automation.ModePassive:
		in.modeCommand(ctx, r)
		return
	case "waitmsg":
		in.waitmsgCommand(ctx, r)
		return
	case "speaker":
		if strings.EqualFold(r.arg, "off") {
			in.reply(ctx, r, "Speaker mode is not yet implemented")
			return
		}
	case "say", "speak":
		in.send(ctx, meeting.Everyone, r.arg)
		if r.cmd == "speak" {
			in.say(ctx, r.arg)
		}
		return
	case "play":
		in.reply(ctx, r, fmt.Sprintf("Playing: '%s'", r.arg))
		if in.deps.Speaker != nil {
			if err := in.deps.Speaker.Play(ctx, r.arg); err != nil {
				slog.Warn("Play failed", "sound", r.arg, "error", err)
			}
		}
		return
	}

	if !knownCommands[r.cmd] {
		in.reply(ctx, r, fmt.Sprintf("Sorry, I don't know the command '%s'", r.cmd))
		return
	}

	targetName, newName := r.arg, ""
	if r.cmd == "rename" {
		parts := strings.Split(r.arg, renameSeparator)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			in.reply(ctx, r, fmt.Sprintf("Please use the format: /%s Old Name to New Name\nExample: /%s iPad User to John Doe", r.cmd, r.cmd))
			return
		}
		targetName, newName = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}

	target, ok := in.resolveTarget(ctx, r, targetName)
	if !ok {
		return
	}
	if newName != "" {
		in.renameCommand(ctx, r, target, newName)
		return
	}
	in.targetCommand(ctx, r, target)
}

// reply answers the sender of the command.
func (in *Interpreter) reply(ctx context.Context, r request, text string) {
	in.send(ctx, meeting.To(r.from), text)
}

func (in *Interpreter) broadcast(ctx context.Context, r request, msg string) {
	result, release := in.deps.Session.Chat.ClaimBroadcast(r.cmd, r.cfg.Chat.BroadcastGuard(), r.now)
	switch result {
	case session.GuardAlreadySent:
		in.reply(ctx, r, r.cmd+": This broadcast message was already sent.")
		return
	case session.GuardTooSoon:
		in.reply(ctx, r, r.cmd+": This broadcast message was already sent recently. Please try again later.")
		return
	}
	if !in.send(ctx, meeting.Everyone, msg) {
		release()
	}
}

func (in *Interpreter) topicCommand(ctx context.Context, r request) {
	if r.arg == "" {
		in.SendTopic(ctx, r.cfg, r.replyTo, r.from, true, r.now)
		return
	}

	sub, rest, _ := strings.Cut(r.arg, " ")
	sub = strings.ToLower(strings.TrimPrefix(sub, CommandPrefix))
	rest = strings.TrimSpace(rest)

	if sub == "force" && rest == "" {
		in.send(ctx, r.replyTo, "Please use the format: /topic force New Topic")
		return
	}

	var (
		reply     string
		broadcast bool
	)
	in.deps.Session.Chat.UpdateTopic(func(current string) string {
		switch {
		case sub == "force":
			reply, broadcast = "Topic forced to: "+rest, true
			return rest
		case sub == "clear" || sub == "off":
			if current == "" {
				reply = "The topic has not been set; There is nothing to clear"
				return current
			}
			reply = "Topic cleared"
			return ""
		case strings.EqualFold(current, r.arg):
			reply = "The topic is already set to: " + r.arg
			return current
		case current == "":
			reply, broadcast = "Topic set to: "+r.arg, true
			return r.arg
		default:
			reply = "Topic is already set; Use /topic force to change it"
			return current
		}
	})

	in.send(ctx, r.replyTo, reply)
	if broadcast {
		in.send(ctx, meeting.Everyone, in.GetTopic(true, r.now))
	}
}

func (in *Interpreter) emailCommand(ctx context.Context, r request, email config.EmailCommand) {
	address, extra, _ := strings.Cut(r.arg, " ")
	extra = strings.TrimSpace(extra)
	subject, body := email.Subject, email.Body

	usage := fmt.Sprintf("Error: The format of the command is incorrect; Correct example: /%s %s", r.cmd, email.ArgsExample)
	if err := validate.Var(address, "required,email"); err != nil {
		in.reply(ctx, r, usage)
		return
	}
	if strings.Contains(subject, "{0}") || strings.Contains(body, "{0}") {
		if extra == "" {
			in.reply(ctx, r, usage)
			return
		}
		subject = strings.ReplaceAll(subject, "{0}", extra)
		body = strings.ReplaceAll(body, "{0}", extra)
	}

	if in.deps.Mailer == nil {
		slog.Warn("Email command without a mailer", "command", r.cmd)
		in.reply(ctx, r, fmt.Sprintf("%s: Failed to send email to %s", r.cmd, address))
		return
	}
	if err := in.deps.Mailer.SendEmail(ctx, subject, body, address); err != nil {
		slog.Warn("Send email failed", "command", r.cmd, "to", address, "error", err)
		in.reply(ctx, r, fmt.Sprintf("%s: Failed to send email to %s", r.cmd, address))
		return
	}
	in.reply(ctx, r, fmt.Sprintf("%s: Successfully sent email to %s", r.cmd, address))
}

func (in *Interpreter) modeCommand(ctx context.Context, r request) {
	state := strings.ToLower(r.arg)
	if state != "on" && state != "off" {
		in.reply(ctx, r, fmt.Sprintf("Sorry, the '%s' command requires either on or off as a parameter", r.cmd))
		return
	}
	changed, err := in.deps.Modes.SetMode(r.cmd, state == "on")
	if err != nil {
		slog.Error("Set mode failed", "mode", r.cmd, "error", err)
		return
	}
	if changed {
		in.reply(ctx, r, fmt.Sprintf("%s mode has been changed to %s", textutil.TitleCase(r.cmd), state))
	} else {
		in.reply(ctx, r, fmt.Sprintf("%s mode is already %s", textutil.TitleCase(r.cmd), state))
	}
}

func (in *Interpreter) waitmsgCommand(ctx context.Context, r request) {
	chat := in.deps.Session.Chat
	switch strings.ToLower(r.arg) {
	case "off":
		if chat.SetWaitingMessage("") {
			in.reply(ctx, r, "Waiting room message has been turned off")
		} else {
			in.reply(ctx, r, "Waiting room message is already off")
		}
	case "get":
		if msg := chat.WaitingMessage(); msg != "" {
			in.reply(ctx, r, "Waiting room message is set to:\n"+msg)
		} else {
			in.reply(ctx, r, "Waiting room message is off")
		}
	default:
		if chat.SetWaitingMessage(r.arg) {
			in.reply(ctx, r, "Waiting room message has set to:\n"+r.arg)
		} else {
			in.reply(ctx, r, "Waiting room message is already set to:\n"+r.arg)
		}
	}
}

// resolveTarget finds the named participant, replying to the sender when
// the lookup fails or names the bot.
func (in *Interpreter) resolveTarget(ctx context.Context, r request, name string) (meeting.Participant, bool) {
	var (
		target meeting.Participant
		err    error
	)
	if strings.EqualFold(name, "me") {
		var ok bool
		if target, ok = in.deps.Participants.ByID(r.from.ID); !ok {
			target, err = in.deps.Participants.ByName(r.from.Name)
		}
		name = r.from.Name
	} else {
		target, err = in.deps.Participants.ByName(name)
	}

	switch {
	case errors.Is(err, meeting.ErrAmbiguousParticipant):
		in.reply(ctx, r, fmt.Sprintf("Sorry, there is more than one participant here named '%s'. I'm not sure which one you mean...", name))
		return target, false
	case err != nil:
		in.reply(ctx, r, fmt.Sprintf("Sorry, I don't see anyone named here named '%s'. Remember, Case Matters!", name))
		return target, false
	case target.IsSelf:
		in.reply(ctx, r, "U Can't Touch This\n* MC Hammer Music *\nhttps://youtu.be/otCpCn0l4Wo")
		return target, false
	}
	return target, true
}

func (in *Interpreter) renameCommand(ctx context.Context, r request, target meeting.Participant, newName string) {
	if target.ID == r.from.ID {
		in.reply(ctx, r, "Why don't you just rename yourself?")
		return
	}
	if err := in.deps.Controller.Rename(ctx, target, newName); err != nil {
		slog.Info("Rename failed", "participant", target.Name, "new_name", newName, "error", err)
		in.reply(ctx, r, fmt.Sprintf("Failed to rename '%s' to '%s'", target.Name, newName))
		return
	}
	in.reply(ctx, r, fmt.Sprintf("Successfully renamed '%s' to '%s'", target.Name, newName))
}

func (in *Interpreter) targetCommand(ctx context.Context, r request, target meeting.Participant) {
	ctl := in.deps.Controller

	if r.cmd == "admit" {
		if target.Status != meeting.StatusWaiting {
			in.reply(ctx, r, fmt.Sprintf("Sorry, '%s' is not in the waiting room", target.Name))
			return
		}
		in.report(ctx, r, ctl.Admit(ctx, target), "admitted", "admit", target.Name)
		return
	}

	if target.Status != meeting.StatusAttending {
		in.reply(ctx, r, fmt.Sprintf("Sorry, '%s' is not attending", target.Name))
		return
	}

	switch r.cmd {
	case "cohost", "promote":
		if target.IsPrivileged() {
			in.reply(ctx, r, fmt.Sprintf("Sorry, '%s' is already Host or Co-Host so cannot be promoted", target.Name))
			return
		}
		if !target.IsVideoOn {
			in.reply(ctx, r, fmt.Sprintf("Sorry, I'm not allowed to Co-Host '%s' because their video is off", target.Name))
			return
		}
		in.report(ctx, r, ctl.Promote(ctx, target, meeting.RoleCoHost), "promoted", "promote", target.Name)
	case "demote":
		if !target.IsCoHost {
			in.reply(ctx, r, fmt.Sprintf("Sorry, '%s' isn't Co-Host so they cannot be demoted", target.Name))
			return
		}
		in.report(ctx, r, ctl.Demote(ctx, target), "demoted", "demote", target.Name)
	case "mute":
		in.report(ctx, r, ctl.Mute(ctx, target), "muted", "mute", target.Name)
	case "unmute":
		in.report(ctx, r, ctl.Unmute(ctx, target), "asked to unmute", "ask to unmute", target.Name)
	case "speaker":
		in.reply(ctx, r, "Speaker mode is not yet implemented")
	}
}

func (in *Interpreter) report(ctx context.Context, r request, err error, done, verb, name string) {
	if err != nil {
		slog.Info("Command action failed", "command", r.cmd, "participant", name, "error", err)
		in.reply(ctx, r, fmt.Sprintf("Failed to %s '%s'", verb, name))
		return
	}
	in.reply(ctx, r, fmt.Sprintf("Successfully %s '%s'", done, name))
}
