package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSource drains the plain-text command file. The file is deleted after
// every read, whether or not it held any directives.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string { return "file:" + f.path }

// Drain returns the non-blank lines of the command file and removes it.
// A missing file yields no lines and no error.
func (f *FileSource) Drain(_ context.Context) ([]string, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open command file: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	scanErr := scanner.Err()
	file.Close()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return lines, fmt.Errorf("remove command file: %w", err)
	}
	if scanErr != nil {
		return lines, fmt.Errorf("read command file: %w", scanErr)
	}
	return lines, nil
}

// WriteFile validates directives and appends them to the command file.
func WriteFile(path string, directives []string) error {
	lines, err := validate(directives)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create command dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open command file: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return fmt.Errorf("write command file: %w", err)
	}
	return nil
}

func validate(directives []string) ([]string, error) {
	if len(directives) == 0 {
		return nil, errors.New("no directives given")
	}
	out := make([]string, 0, len(directives))
	for _, d := range directives {
		parsed, err := ParseDirective(d)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed.Raw)
	}
	return out, nil
}
