package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// CommandConverter runs an external conversion command as
// `<command> <args...> <sourcePath> <destPath>` and decodes the Result JSON
// it prints to stdout.
type CommandConverter struct {
	command []string
	logger  *slog.Logger
}

// NewCommandConverter creates a converter backed by the given command line.
func NewCommandConverter(command []string, logger *slog.Logger) (*CommandConverter, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("no converter command configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandConverter{command: command, logger: logger}, nil
}

// Convert invokes the external command and parses its output.
func (c *CommandConverter) Convert(ctx context.Context, sourcePath, destPath string) (*Result, error) {
	args := append(append([]string{}, c.command[1:]...), sourcePath, destPath)
	cmd := exec.CommandContext(ctx, c.command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("running converter", "command", c.command[0], "source", sourcePath, "dest", destPath)

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("converter failed: %s: %w", detail, err)
		}
		return nil, fmt.Errorf("converter failed: %w", err)
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("parse converter output: %w", err)
	}
	return &result, nil
}
