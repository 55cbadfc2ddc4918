package remote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/usherbot/usherbot/internal/automation"
)

func TestParseDirective(t *testing.T) {
	cases := []struct {
		line string
		want Directive
	}{
		{"citadel:on", Directive{Kind: KindMode, Mode: automation.ModeCitadel, On: true, Raw: "citadel:on"}},
		{"  lockdown:off ", Directive{Kind: KindMode, Mode: automation.ModeLockdown, Raw: "lockdown:off"}},
		{"debug:on", Directive{Kind: KindMode, Mode: automation.ModeDebug, On: true, Raw: "debug:on"}},
		{"pause:off", Directive{Kind: KindMode, Mode: automation.ModePause, Raw: "pause:off"}},
		{"passive:on", Directive{Kind: KindMode, Mode: automation.ModePassive, On: true, Raw: "passive:on"}},
		{"exit", Directive{Kind: KindExit, Raw: "exit"}},
		{"kill", Directive{Kind: KindKill, Raw: "kill"}},
	}
	for _, tc := range cases {
		got, err := ParseDirective(tc.line)
		if err != nil {
			t.Fatalf("ParseDirective(%q): %v", tc.line, err)
		}
		if got != tc.want {
			t.Errorf("ParseDirective(%q) = %+v, want %+v", tc.line, got, tc.want)
		}
	}
}

func TestParseDirectiveRejects(t *testing.T) {
	for _, line := range []string{"Citadel:on", "citadel", "citadel:yes", "EXIT", "reboot", "", "pause:on:off"} {
		if _, err := ParseDirective(line); !errors.Is(err, ErrUnknownDirective) {
			t.Errorf("ParseDirective(%q) error = %v, want ErrUnknownDirective", line, err)
		}
	}
}

func TestFileSourceDrainsAndDeletes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command_file.txt")
	src := NewFileSource(path)

	lines, err := src.Drain(context.Background())
	if err != nil || lines != nil {
		t.Fatalf("missing file: got %v, %v", lines, err)
	}

	if err := os.WriteFile(path, []byte("pause:on\n\n bogus \nexit\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	lines, err = src.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if want := []string{"pause:on", "bogus", "exit"}; !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %v, want %v", lines, want)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("command file not deleted: %v", err)
	}
}

func TestFileSourceDeletesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command_file.txt")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	lines, err := NewFileSource(path).Drain(context.Background())
	if err != nil || len(lines) != 0 {
		t.Fatalf("got %v, %v", lines, err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("empty command file not deleted: %v", err)
	}
}

func TestWriteFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "command_file.txt")
	if err := WriteFile(path, []string{"citadel:on"}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WriteFile(path, []string{" debug:off", "exit"}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "citadel:on\ndebug:off\nexit\n"; got != want {
		t.Errorf("file = %q, want %q", got, want)
	}

	if err := WriteFile(path, []string{"exit", "nonsense"}); !errors.Is(err, ErrUnknownDirective) {
		t.Errorf("expected ErrUnknownDirective, got %v", err)
	}
	if err := WriteFile(path, nil); err == nil {
		t.Error("expected error for empty directive list")
	}
}

func TestKafkaSourceBuffersLines(t *testing.T) {
	k := NewKafkaSource([]string{"localhost:9092"}, "usherbot.commands", "test")
	k.push("pause:on\n\nexit")
	k.push("kill")

	lines, err := k.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"pause:on", "exit", "kill"}; !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %v, want %v", lines, want)
	}
	if lines, _ := k.Drain(context.Background()); len(lines) != 0 {
		t.Errorf("expected empty second drain, got %v", lines)
	}
	if err := k.Close(); err != nil {
		t.Errorf("Close before Start: %v", err)
	}
}

func TestKafkaSourceRequiresBrokers(t *testing.T) {
	if err := NewKafkaSource(nil, "t", "g").Start(context.Background()); err == nil {
		t.Error("expected error without brokers")
	}
}
