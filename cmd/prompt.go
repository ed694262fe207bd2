// -- cmd/prompt.go --
package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// prompter asks the user for the values a run is missing.
type prompter interface {
	Prompt(label string) (string, error)
	PromptPassword(label string) (string, error)
	Close() error
}

// errPromptAborted is returned when the user interrupts a prompt.
var errPromptAborted = errors.New("input aborted")

type readlinePrompter struct {
	rl *readline.Instance
}

func newReadlinePrompter() (prompter, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open terminal: %w", err)
	}
	return &readlinePrompter{rl: rl}, nil
}

func (p *readlinePrompter) Prompt(label string) (string, error) {
	p.rl.SetPrompt(label)
	line, err := p.rl.Readline()
	if err != nil {
		return "", promptError(err)
	}
	return strings.TrimSpace(line), nil
}

// PromptPassword reads without echo. The value is not trimmed.
func (p *readlinePrompter) PromptPassword(label string) (string, error) {
	pw, err := p.rl.ReadPassword(label)
	if err != nil {
		return "", promptError(err)
	}
	return string(pw), nil
}

func (p *readlinePrompter) Close() error {
	return p.rl.Close()
}

func promptError(err error) error {
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return errPromptAborted
	}
	return err
}

// askYesNo reads a y/N answer; anything but y/yes is no.
func askYesNo(p prompter, question string) (bool, error) {
	ans, err := p.Prompt(question + " (y/N): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(ans) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
