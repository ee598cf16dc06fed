package cli

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/crateplan/crateplan/pkg/crate"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// FeatureListModel - Interactive feature selection
// =============================================================================

// FeatureListModel is the bubbletea model for interactive feature selection.
// Features are toggled with space and confirmed with enter.
type FeatureListModel struct {
	Root     string
	Features []string
	Checked  map[int]bool
	Cursor   int
	Done     bool
	Canceled bool
}

// NewFeatureListModel creates a feature list model with the given features
// pre-checked.
func NewFeatureListModel(root string, features, checked []string) FeatureListModel {
	m := FeatureListModel{
		Root:     root,
		Features: features,
		Checked:  make(map[int]bool),
	}
	for i, f := range features {
		for _, c := range checked {
			if f == c {
				m.Checked[i] = true
			}
		}
	}
	return m
}

func (m FeatureListModel) Init() tea.Cmd {
	return nil
}

func (m FeatureListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Canceled = true
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Features)-1 {
				m.Cursor++
			}
		case " ":
			m.Checked[m.Cursor] = !m.Checked[m.Cursor]
		case "a":
			for i := range m.Features {
				m.Checked[i] = true
			}
		case "n":
			m.Checked = make(map[int]bool)
		case "enter":
			m.Done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m FeatureListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Features: " + m.Root))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  a all  n none  ⏎ confirm  q quit"))
	b.WriteString("\n\n")

	for i, f := range m.Features {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		check := "[ ]"
		if m.Checked[i] {
			check = "[" + StyleSuccess.Render("x") + "]"
		}

		line := fmt.Sprintf("%s%s %s", cursor, check, f)
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else if m.Checked[i] {
			b.WriteString(listNormalStyle.Render(line))
		} else {
			b.WriteString(listDimStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d selected]", len(m.selected()), len(m.Features))))

	return b.String()
}

// selected returns the checked feature names in declaration order.
func (m FeatureListModel) selected() []string {
	var out []string
	for i, f := range m.Features {
		if m.Checked[i] {
			out = append(out, f)
		}
	}
	return out
}

// =============================================================================
// Picker Entry Point
// =============================================================================

// pickFeatures runs the interactive feature picker for the root package and
// returns the chosen feature list. The features passed in are pre-checked.
// Canceling the picker keeps the original selection.
func pickFeatures(g crate.Graph, root crate.ID, preselected []string) ([]string, error) {
	c, ok := g.Crate(root)
	if !ok {
		return nil, fmt.Errorf("package %s not found in graph", root)
	}
	if len(c.Features) == 0 {
		printInfo("%s declares no features", c.Name)
		return preselected, nil
	}

	names := make([]string, 0, len(c.Features))
	for name := range c.Features {
		names = append(names, name)
	}
	sort.Strings(names)

	final, err := tea.NewProgram(NewFeatureListModel(c.Name, names, preselected)).Run()
	if err != nil {
		return nil, fmt.Errorf("feature picker: %w", err)
	}

	m := final.(FeatureListModel)
	if m.Canceled {
		return preselected, nil
	}
	return m.selected(), nil
}
