// Package interactive implements the terminal prompts guarding sync
// actions: multi-select candidate narrowing and yes/no confirmation.
package interactive

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle   = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	checkedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	abortedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpSeparator = dimStyle.Render(" · ")
)

// selectModel is the multi-select prompt. Space toggles, "a" flips all,
// enter accepts the checked set, escape aborts the whole selection.
type selectModel struct {
	prompt     string
	candidates []string
	checked    []bool
	cursor     int
	accepted   bool
	aborted    bool
}

func newSelectModel(prompt string, candidates []string) selectModel {
	checked := make([]bool, len(candidates))
	// everything starts checked: the non-interactive behavior is the
	// default and unchecking is the exception
	for index := range checked {
		checked[index] = true
	}
	return selectModel{
		prompt:     prompt,
		candidates: candidates,
		checked:    checked,
	}
}

func (m selectModel) Init() tea.Cmd {
	return nil
}

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.candidates)-1 {
			m.cursor++
		}
	case " ":
		if len(m.checked) > 0 {
			m.checked[m.cursor] = !m.checked[m.cursor]
		}
	case "a":
		all := true
		for _, isChecked := range m.checked {
			if !isChecked {
				all = false
				break
			}
		}
		for index := range m.checked {
			m.checked[index] = !all
		}
	case "enter":
		m.accepted = true
		return m, tea.Quit
	case "esc", "ctrl+c", "q":
		m.aborted = true
		return m, tea.Quit
	}
	return m, nil
}

func (m selectModel) View() string {
	var view strings.Builder
	view.WriteString(promptStyle.Render(m.prompt))
	view.WriteString("\n")
	for index, candidate := range m.candidates {
		cursor := "  "
		if index == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		check := "[ ]"
		if m.checked[index] {
			check = checkedStyle.Render("[x]")
		}
		fmt.Fprintf(&view, "%s%s %s\n", cursor, check, candidate)
	}
	view.WriteString(dimStyle.Render("space toggle") + helpSeparator +
		dimStyle.Render("a all") + helpSeparator +
		dimStyle.Render("enter accept") + helpSeparator +
		dimStyle.Render("esc abort"))
	view.WriteString("\n")
	return view.String()
}

// selected returns the checked candidates in their original order.
func (m selectModel) selected() []string {
	out := make([]string, 0, len(m.candidates))
	for index, candidate := range m.candidates {
		if m.checked[index] {
			out = append(out, candidate)
		}
	}
	return out
}

// confirmModel is the yes/no prompt. "y"/"n" answer directly; enter takes
// the highlighted answer; escape aborts.
type confirmModel struct {
	prompt   string
	answer   bool
	answered bool
	aborted  bool
}

func newConfirmModel(prompt string, fallback bool) confirmModel {
	return confirmModel{prompt: prompt, answer: fallback}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "y", "Y":
		m.answer = true
		m.answered = true
		return m, tea.Quit
	case "n", "N":
		m.answer = false
		m.answered = true
		return m, tea.Quit
	case "left", "right", "tab", "h", "l":
		m.answer = !m.answer
	case "enter":
		m.answered = true
		return m, tea.Quit
	case "esc", "ctrl+c", "q":
		m.aborted = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	yes := "  yes  "
	no := "  no  "
	if m.answer {
		yes = checkedStyle.Render("> yes <")
	} else {
		no = abortedStyle.Render("> no <")
	}
	return promptStyle.Render(m.prompt) + "\n" + yes + " " + no + "\n" +
		dimStyle.Render("y/n answer · enter accept · esc abort") + "\n"
}
