package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tonkit/wkbridge/bridge"
	"github.com/tonkit/wkbridge/events"
	"github.com/tonkit/wkbridge/wire"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	methodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// maxEventLines bounds the event pane.
const maxEventLines = 8

type modelState int

const (
	stateSelectMethod modelState = iota
	stateInputParams
	stateShowResult
)

type consoleModel struct {
	engine   *bridge.Engine
	methods  []wire.Method
	selected int
	state    modelState

	paramsInput textinput.Model
	result      string
	err         error

	eventCh  chan wire.Event
	eventLog []string
	reg      *bridge.Registration
}

func newConsoleModel(engine *bridge.Engine) *consoleModel {
	ti := textinput.New()
	ti.Placeholder = `{"key": "value"} or empty`
	ti.Prompt = "params: "
	ti.Width = 60

	m := &consoleModel{
		engine:      engine,
		methods:     wire.Methods(),
		paramsInput: ti,
		eventCh:     make(chan wire.Event, 16),
	}
	m.reg = engine.AddListener(events.NewListener(func(ev wire.Event) {
		select {
		case m.eventCh <- ev:
		default:
		}
	}))
	return m
}

type callResultMsg struct {
	err    error
	result string
}

type eventMsg wire.Event

func (m *consoleModel) Init() tea.Cmd {
	return m.waitForEvent
}

func (m *consoleModel) waitForEvent() tea.Msg {
	return eventMsg(<-m.eventCh)
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputParams && msg.String() == "q" {
				break // let the input field have the character
			}
			m.reg.Close()
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectMethod && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectMethod && m.selected < len(m.methods)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectMethod:
				m.paramsInput.SetValue("")
				m.paramsInput.Focus()
				m.state = stateInputParams
			case stateInputParams:
				m.paramsInput.Blur()
				return m, m.callMethod
			case stateShowResult:
				m.state = stateSelectMethod
				m.result = ""
				m.err = nil
			}

		case "esc":
			switch m.state {
			case stateInputParams:
				m.paramsInput.Blur()
				m.state = stateSelectMethod
			case stateShowResult:
				m.state = stateSelectMethod
				m.result = ""
				m.err = nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult

	case eventMsg:
		line := fmt.Sprintf("%s %s", msg.Type, string(msg.Data))
		m.eventLog = append(m.eventLog, line)
		if len(m.eventLog) > maxEventLines {
			m.eventLog = m.eventLog[len(m.eventLog)-maxEventLines:]
		}
		return m, m.waitForEvent
	}

	if m.state == stateInputParams {
		var cmd tea.Cmd
		m.paramsInput, cmd = m.paramsInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *consoleModel) callMethod() tea.Msg {
	method := m.methods[m.selected]

	var params json.RawMessage
	if v := strings.TrimSpace(m.paramsInput.Value()); v != "" {
		params = json.RawMessage(v)
	}

	result, err := m.engine.Call(context.Background(), method, params)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: string(result)}
}

func (m *consoleModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("WalletKit Bridge"))
	b.WriteString(fmt.Sprintf("  state: %s\n\n", m.engine.State()))

	switch m.state {
	case stateSelectMethod:
		b.WriteString("Select a method to call:\n\n")
		for i, method := range m.methods {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + string(method)))
			} else {
				b.WriteString(cursor + methodStyle.Render(string(method)))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputParams:
		b.WriteString(fmt.Sprintf("Calling %s\n\n", methodStyle.Render(string(m.methods[m.selected]))))
		b.WriteString(m.paramsInput.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter call • esc back"))

	case stateShowResult:
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", methodStyle.Render(string(m.methods[m.selected]))))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	if len(m.eventLog) > 0 {
		b.WriteString("\n\nEvents:\n")
		for _, line := range m.eventLog {
			b.WriteString(eventStyle.Render("  " + line))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func runInteractive(engine *bridge.Engine) error {
	p := tea.NewProgram(newConsoleModel(engine), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
