// Package tui implements the interactive chat interface: type a question,
// get a grounded answer, browse the supporting evidence.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"schemeadvisor/internal/answer"
)

// AdvisorPort is the TUI-facing subset of the answer composer.
type AdvisorPort interface {
	Answer(ctx context.Context, question string) (answer.Answer, error)
}

type answerMsg struct {
	question string
	answer   answer.Answer
	err      error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	advisor   AdvisorPort
	input     textinput.Model
	viewport  viewport.Model
	answer    answer.Answer
	hasAnswer bool
	summary   string
	status    string
	cursor    int
	ready     bool
	waiting   bool
	lastQuery string
}

// New creates a chat model; summary describes the loaded corpus.
func New(advisor AdvisorPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about a scheme and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{advisor: advisor, input: ti, viewport: vp, summary: summary, status: "Ready. Ask a question."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around answer and query boxes
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case answerMsg:
		m.waiting = false
		if msg.err != nil && !msg.answer.Degraded {
			m.status = "Error: " + msg.err.Error()
			m.hasAnswer = false
		} else {
			m.answer = msg.answer
			m.hasAnswer = true
			m.cursor = 0
			m.lastQuery = msg.question
			switch {
			case msg.err != nil:
				m.status = "Degraded answer: " + msg.err.Error()
			case msg.answer.NotFound:
				m.status = fmt.Sprintf("No grounded answer for %q", msg.question)
			default:
				m.status = fmt.Sprintf("Answer for %q", msg.question)
			}
		}
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.waiting = true
				m.status = "Thinking..."
				m.input.SetValue("")
				return m, m.ask(q)
			}
		case "down":
			if m.hasAnswer && len(m.answer.Passages) > 0 {
				m.cursor = (m.cursor + 1) % len(m.answer.Passages)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if m.hasAnswer && len(m.answer.Passages) > 0 {
				m.cursor = (m.cursor - 1 + len(m.answer.Passages)) % len(m.answer.Passages)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	advisor := m.advisor
	return func() tea.Msg {
		ans, err := advisor.Answer(context.Background(), question)
		return answerMsg{question: question, answer: ans, err: err}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Scheme Advisor")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	body := answerBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if !m.hasAnswer {
		return "No answer yet."
	}
	var sb strings.Builder
	sb.WriteString(m.answer.Text)
	if len(m.answer.Links) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(lipgloss.NewStyle().Bold(true).Render("Apply here:"))
		for _, sc := range m.answer.Links {
			sb.WriteString(fmt.Sprintf("\n- %s: %s", sc.Name, sc.ApplyLink))
		}
	}
	if len(m.answer.Passages) > 0 {
		p := m.answer.Passages[m.cursor]
		title := fmt.Sprintf("Evidence %d/%d  [%s | page %d]  score=%.3f",
			m.cursor+1, len(m.answer.Passages), p.FileName, p.Page, p.Score)
		sb.WriteString("\n\n")
		sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(title))
		sb.WriteString("\n")
		sb.WriteString(highlightBestSentence(p.Text, m.lastQuery))
	}
	return sb.String()
}

var (
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
