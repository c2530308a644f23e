package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"stockrelay/internal/core/domain"
	"strings"

	"github.com/rs/zerolog/log"
)

// The checker prints a pretty-printed JSON array. The wrapping bracket lines are cut by width and the array is
// rebuilt around what is left.
const (
	leadingTrim  = 2
	trailingTrim = 3
)

var DefaultCommand = []string{
	"npx", "ikea-availability-checker", "stock", "--store=560", "--reporter", "json", "40431564", "90341151",
}

// InvocationError reports a failed or unparsable run of the inventory command.
type InvocationError struct {
	Command []string
	Output  string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("inventory command %q: %v", strings.Join(e.Command, " "), e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

func IsInvocationError(err error) bool {
	var invocationErr *InvocationError
	return errors.As(err, &invocationErr)
}

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

type CommandChecker struct {
	command []string
	run     runner
}

func NewCommandChecker(command []string) (*CommandChecker, error) {
	if len(command) == 0 {
		return nil, errors.New("inventory command is empty")
	}

	return &CommandChecker{command: command, run: runCommand}, nil
}

func (c *CommandChecker) Check(ctx context.Context) ([]domain.Product, error) {
	log.Debug().Strs("command", c.command).Msg("running inventory command")

	out, err := c.run(ctx, c.command[0], c.command[1:]...)
	if err != nil {
		return nil, &InvocationError{
			Command: c.command,
			Output:  string(out),
			Err:     fmt.Errorf("%w: %w", domain.ErrInvocationFailed, err),
		}
	}

	products, err := ParseOutput(out)
	if err != nil {
		return nil, &InvocationError{Command: c.command, Output: string(out), Err: err}
	}

	log.Debug().Int("products", len(products)).Msg("inventory command finished")

	return products, nil
}

// ParseOutput rebuilds the JSON array from the raw checker output and decodes it.
func ParseOutput(out []byte) ([]domain.Product, error) {
	raw := string(out)
	if len(raw) < leadingTrim+trailingTrim {
		return nil, fmt.Errorf("%w: output too short (%d bytes)", domain.ErrMalformedOutput, len(raw))
	}

	wrapped := "[\n" + raw[leadingTrim:len(raw)-trailingTrim] + "]"

	var products []domain.Product
	if err := json.Unmarshal([]byte(wrapped), &products); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedOutput, err)
	}

	return products, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Error().Bytes("stderr", exitErr.Stderr).Int("exitCode", exitErr.ExitCode()).
				Msg("inventory command failed")
		}
		return out, err
	}

	return out, nil
}
