package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrAborted is returned when the operator declines a confirmation prompt.
var ErrAborted = errors.New("aborted at confirmation prompt")

const (
	createPrompt = "You are about to CREATE the above checks in Pingdom. --dump-generated-checks for more details: do you want to proceed?: (y|n):"
	deletePrompt = "You are about to DELETE the above checks in Pingdom: do you want to proceed?: (y|n):"
)

// Prompter asks the operator one question and returns the raw answer.
type Prompter interface {
	Ask(question string) (string, error)
}

// LinePrompter writes the question to Out and reads one line from In.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter builds a prompter over terminal streams.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Ask prints question after a blank-line gap and reads the answer line.
// An empty input at EOF is returned as an empty answer.
func (p *LinePrompter) Ask(question string) (string, error) {
	if _, err := fmt.Fprint(p.out, "\n\n"+question); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read prompt answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// autoConfirm answers yes to every question.
type autoConfirm struct{}

func (autoConfirm) Ask(string) (string, error) { return "y", nil }

// confirmed reports whether the answer proceeds; only "y" does, case-insensitively.
func confirmed(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}
