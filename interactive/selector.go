package interactive

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/goliatone/go-spladmin/core"
)

// Selector is the terminal-backed core.Selector. Outside a terminal it
// degrades to the pass-through behavior so scripted runs never hang on a
// prompt.
type Selector struct {
	runProgram func(tea.Model) (tea.Model, error)
	isTerminal func() bool
}

type SelectorOption func(*Selector)

// WithProgramRunner substitutes the bubbletea program loop, used by tests
// to drive models without a tty.
func WithProgramRunner(run func(tea.Model) (tea.Model, error)) SelectorOption {
	return func(s *Selector) {
		if run != nil {
			s.runProgram = run
		}
	}
}

func NewSelector(opts ...SelectorOption) *Selector {
	selector := &Selector{
		runProgram: func(model tea.Model) (tea.Model, error) {
			return tea.NewProgram(model).Run()
		},
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(selector)
		}
	}
	return selector
}

func (s *Selector) Select(ctx context.Context, prompt string, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !s.isTerminal() {
		return candidates, nil
	}

	final, err := s.runProgram(newSelectModel(prompt, candidates))
	if err != nil {
		return nil, fmt.Errorf("interactive: selection prompt failed: %w", err)
	}
	model, ok := final.(selectModel)
	if !ok {
		return nil, fmt.Errorf("interactive: unexpected selection model %T", final)
	}
	if model.aborted {
		return nil, core.ErrSelectionAborted
	}
	return model.selected(), nil
}

func (s *Selector) Confirm(ctx context.Context, prompt string, fallback bool) (bool, error) {
	if ctx != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}
	if !s.isTerminal() {
		return fallback, nil
	}

	final, err := s.runProgram(newConfirmModel(prompt, fallback))
	if err != nil {
		return false, fmt.Errorf("interactive: confirmation prompt failed: %w", err)
	}
	model, ok := final.(confirmModel)
	if !ok {
		return false, fmt.Errorf("interactive: unexpected confirmation model %T", final)
	}
	if model.aborted {
		return false, core.ErrSelectionAborted
	}
	return model.answer, nil
}

var _ core.Selector = (*Selector)(nil)
