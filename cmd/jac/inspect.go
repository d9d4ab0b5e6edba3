package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wippyai/jac"
	"github.com/wippyai/jac/jacrt"
	"github.com/wippyai/jac/translate"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	interpretedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFD166"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	matchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444"))
)

const (
	listWidth     = 32
	chromeHeight  = 6
	defaultWidth  = 100
	defaultHeight = 30
)

func (c *cli) inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Browse the functions of a bytecode container interactively",
		Long: "inspect opens a terminal UI listing every function next to its listing.\n" +
			"When standard output is not a terminal it prints the disasm listing instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd)
			if err != nil {
				return err
			}
			a, err := c.compile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if !isTerminal(cmd.OutOrStdout()) {
				return jac.Disassemble(cmd.OutOrStdout(), a.Translation)
			}
			run := func(ctx context.Context) (jacrt.Value, error) {
				return c.run(ctx, args[0], opts)
			}
			p := tea.NewProgram(newInspectModel(args[0], a, run), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	addCompileFlags(cmd.Flags())
	return cmd
}

type runFunc func(ctx context.Context) (jacrt.Value, error)

type inspectModel struct {
	err       error
	artifact  *jac.Artifact
	run       runFunc
	filename  string
	query     string
	result    string
	listing   viewport.Model
	search    textinput.Model
	selected  int
	width     int
	searching bool
	running   bool
}

type runResultMsg struct {
	err    error
	result jacrt.Value
}

func newInspectModel(filename string, a *jac.Artifact, run runFunc) *inspectModel {
	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "opcode or name"
	search.Width = 30

	m := &inspectModel{
		artifact: a,
		run:      run,
		filename: filename,
		search:   search,
		width:    defaultWidth,
		listing:  viewport.New(defaultWidth-listWidth-4, defaultHeight-chromeHeight),
	}
	m.refresh()
	return m
}

func (m *inspectModel) Init() tea.Cmd {
	return nil
}

func (m *inspectModel) funcs() []*translate.FunctionTranslation {
	return m.artifact.Translation.Funcs
}

// refresh renders the selected function into the listing pane and
// highlights the lines matching the current query.
func (m *inspectModel) refresh() {
	var b strings.Builder
	jac.DisassembleFunc(&b, m.artifact.Translation, m.funcs()[m.selected])
	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	first := -1
	if m.query != "" {
		for i, line := range lines {
			if strings.Contains(line, m.query) {
				lines[i] = matchStyle.Render(line)
				if first < 0 {
					first = i
				}
			}
		}
	}
	m.listing.SetContent(strings.Join(lines, "\n"))
	if first >= 0 {
		m.listing.SetYOffset(first)
	} else {
		m.listing.GotoTop()
	}
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.listing.Width = max(msg.Width-listWidth-4, 20)
		m.listing.Height = max(msg.Height-chromeHeight, 5)
		return m, nil

	case runResultMsg:
		m.running = false
		m.err = msg.err
		m.result = ""
		if msg.err == nil {
			m.result = msg.result.String()
		}
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refresh()
			}
			return m, nil

		case "down", "j":
			if m.selected < len(m.funcs())-1 {
				m.selected++
				m.refresh()
			}
			return m, nil

		case "/":
			m.searching = true
			m.search.SetValue(m.query)
			return m, m.search.Focus()

		case "r":
			if m.run == nil || m.running {
				return m, nil
			}
			m.running = true
			return m, m.runModule

		case "esc":
			if m.query != "" {
				m.query = ""
				m.refresh()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.listing, cmd = m.listing.Update(msg)
	return m, cmd
}

func (m *inspectModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		m.query = m.search.Value()
		m.refresh()
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *inspectModel) runModule() tea.Msg {
	v, err := m.run(context.Background())
	return runResultMsg{result: v, err: err}
}

func (m *inspectModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("jac inspect"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	var list strings.Builder
	for i, f := range m.funcs() {
		line := fmt.Sprintf("%s %s", f.Index, funcName(f))
		style := funcStyle
		if !f.Compiled() {
			style = interpretedStyle
			line += " *"
		}
		if i == m.selected {
			list.WriteString(selectedStyle.Render("> " + line))
		} else {
			list.WriteString("  " + style.Render(line))
		}
		list.WriteString("\n")
	}

	left := paneStyle.Width(listWidth).Render(strings.TrimRight(list.String(), "\n"))
	right := paneStyle.Render(m.listing.View())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")

	switch {
	case m.searching:
		b.WriteString(m.search.View())
	case m.running:
		b.WriteString("Running...")
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.result != "":
		b.WriteString("Result: " + resultStyle.Render(m.result))
	default:
		b.WriteString(helpStyle.Render("↑/↓ select • pgup/pgdn scroll • / search • r run • q quit"))
	}
	return b.String()
}
