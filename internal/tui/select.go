// Package tui holds the interactive terminal chooser used when a series name
// did not resolve and providers suggested corrections.
package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	listWidth  = 64
	listHeight = 12
	minWidth   = 30
)

// runProgram is replaced in tests to feed key presses without a terminal.
var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

// SelectionAction is what the user did in the chooser.
type SelectionAction int

const (
	ActionNone     SelectionAction = iota
	ActionSelected                 // a candidate was picked
	ActionSkipped                  // keep the original query unresolved
	ActionStopped                  // stop the whole command
)

// SelectionResult is the outcome of SelectCandidate.
type SelectionResult struct {
	Action    SelectionAction
	Selection string
}

type candidateItem struct {
	name     string
	rank     int
	distance int
}

func (i candidateItem) FilterValue() string { return i.name }

func (i candidateItem) hint() string {
	switch i.distance {
	case 0:
		return "exact match"
	case 1:
		return "1 edit away"
	default:
		return fmt.Sprintf("%d edits away", i.distance)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Faint(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
)

// candidateDelegate renders one candidate per line.
type candidateDelegate struct{}

func (candidateDelegate) Height() int                         { return 1 }
func (candidateDelegate) Spacing() int                        { return 0 }
func (candidateDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (candidateDelegate) Render(w io.Writer, m list.Model, idx int, item list.Item) {
	c, ok := item.(candidateItem)
	if !ok {
		return
	}

	hint := c.hint()
	name := truncate(c.name, m.Width()-len(hint)-8)
	line := fmt.Sprintf("%2d. %s", c.rank, name)
	if idx == m.Index() {
		_, _ = fmt.Fprint(w, cursorStyle.Render("> "+line)+"  "+hintStyle.Render(hint))
		return
	}
	_, _ = fmt.Fprint(w, nameStyle.Render("  "+line)+"  "+hintStyle.Render(hint))
}

type model struct {
	list   list.Model
	query  string
	items  []candidateItem
	result SelectionResult
}

func newModel(query string, items []candidateItem) *model {
	listItems := make([]list.Item, len(items))
	for i, item := range items {
		listItems[i] = item
	}

	l := list.New(listItems, candidateDelegate{}, listWidth, listHeight)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return &model{list: l, query: query, items: items}
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "enter":
			if c, ok := m.list.SelectedItem().(candidateItem); ok {
				return m.finish(SelectionResult{Action: ActionSelected, Selection: c.name})
			}
		case "s", "esc":
			return m.finish(SelectionResult{Action: ActionSkipped})
		case "q", "ctrl+c":
			return m.finish(SelectionResult{Action: ActionStopped})
		}
		// 1-9 pick a candidate directly.
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(m.items) {
			return m.finish(SelectionResult{Action: ActionSelected, Selection: m.items[n-1].name})
		}
	case tea.WindowSizeMsg:
		m.list.SetSize(clamp(listWidth, msg.Width-2, minWidth), clamp(listHeight, msg.Height-5, 3))
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) finish(res SelectionResult) (tea.Model, tea.Cmd) {
	m.result = res
	return m, tea.Quit
}

func (m *model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(fmt.Sprintf("No series found for %q. Did you mean:", m.query)),
		m.list.View(),
		helpStyle.Render("up/down move  enter or 1-9 pick  s skip  q stop"),
	)
}

// SelectCandidate asks the user to pick one of the suggested series names.
// Candidates keep their order; blanks and case-insensitive duplicates are
// dropped. With nothing to choose from it skips without opening the UI.
func SelectCandidate(query string, candidates []string) (SelectionResult, error) {
	items := candidateItems(query, candidates)
	if len(items) == 0 {
		return SelectionResult{Action: ActionSkipped}, nil
	}

	final, err := runProgram(newModel(query, items))
	if err != nil {
		return SelectionResult{}, err
	}
	m, ok := final.(*model)
	if !ok {
		return SelectionResult{}, fmt.Errorf("unexpected chooser model %T", final)
	}
	return m.result, nil
}

func candidateItems(query string, candidates []string) []candidateItem {
	q := strings.ToLower(strings.TrimSpace(query))
	seen := make(map[string]bool, len(candidates))
	items := make([]candidateItem, 0, len(candidates))
	for _, c := range candidates {
		name := strings.Join(strings.Fields(c), " ")
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, candidateItem{
			name:     name,
			rank:     len(items) + 1,
			distance: fuzzy.LevenshteinDistance(q, key),
		})
	}
	return items
}

func truncate(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

// clamp returns want limited to avail (when known) but never below floor.
func clamp(want, avail, floor int) int {
	if avail > 0 && avail < want {
		want = avail
	}
	return max(want, floor)
}
