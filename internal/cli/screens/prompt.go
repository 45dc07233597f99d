package screens

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// Prompter collects input for the screens
type Prompter interface {
	Text(label, def string) (string, error)
	Secret(label string) (string, error)
	Confirm(label string) (bool, error)
	Printf(format string, args ...any)
}

// TerminalPrompter prompts on the controlling terminal
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompter prompts on stdin and writes to stdout
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stdout}
}

// Interactive reports whether stdin is a terminal (not piped)
func (p *TerminalPrompter) Interactive() bool {
	return term.IsTerminal(int(p.In.Fd()))
}

func (p *TerminalPrompter) Text(label, def string) (string, error) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: true,
	}
	value, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(value), nil
}

func (p *TerminalPrompter) Secret(label string) (string, error) {
	fmt.Fprintf(p.Out, "%s: ", label)
	secret, err := term.ReadPassword(int(p.In.Fd()))
	fmt.Fprintln(p.Out) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return string(secret), nil
}

func (p *TerminalPrompter) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *TerminalPrompter) Printf(format string, args ...any) {
	fmt.Fprintf(p.Out, format, args...)
}
