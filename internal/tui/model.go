package tui

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/domain"
	"ragchat/internal/session"
)

// ChatPort is the TUI-facing subset of a conversation session.
type ChatPort interface {
	Submit(question string) error
	Snapshot() session.Snapshot
	Updates() <-chan struct{}
}

// Options carries the static text around the conversation.
type Options struct {
	Title           string
	Summary         string
	SampleQuestions []string
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	chat        ChatPort
	opts        Options
	input       textinput.Model
	viewport    viewport.Model
	status      string
	nextSample  int
	showSources bool
	ready       bool
}

type updateMsg struct{}

type closedMsg struct{}

// New creates a new TUI model instance.
func New(chat ChatPort, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	status := "Ready. Enter to ask, ctrl+o to show sources, esc to quit."
	if len(opts.SampleQuestions) > 0 {
		status = "Ready. Enter to ask, tab for a sample question, ctrl+o to show sources, esc to quit."
	}
	return Model{chat: chat, opts: opts, input: ti, viewport: viewport.New(0, 0), status: status}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.chat.Updates()))
}

// waitForUpdate blocks on the session's notification channel.
func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return closedMsg{}
		}
		return updateMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + 1 + qh + 1 // header, summary, progress, input, status
		m.viewport.Width = max(20, msg.Width-transcriptBoxStyle.GetHorizontalFrameSize())
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil
	case updateMsg:
		m.refresh()
		return m, waitForUpdate(m.chat.Updates())
	case closedMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit(), nil
		case tea.KeyTab:
			if len(m.opts.SampleQuestions) > 0 {
				m.input.SetValue(m.opts.SampleQuestions[m.nextSample%len(m.opts.SampleQuestions)])
				m.input.CursorEnd()
				m.nextSample++
			}
			return m, nil
		case tea.KeyCtrlO:
			m.showSources = !m.showSources
			m.refresh()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() Model {
	q := strings.TrimSpace(m.input.Value())
	if q == "" {
		return m
	}
	switch err := m.chat.Submit(q); {
	case err == nil:
		m.input.Reset()
		m.status = "Question sent."
	case errors.Is(err, domain.ErrSessionBusy):
		m.status = "Still working on the previous question."
	default:
		m.status = "Error: " + err.Error()
	}
	m.refresh()
	return m
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript(m.chat.Snapshot()))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	snap := m.chat.Snapshot()
	header := headerStyle.Render(m.opts.Title)
	summary := summaryStyle.MaxHeight(1).Render(m.opts.Summary)
	progress := progressStyle.Render(snap.Progress)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + transcript + "\n" + progress + "\n" + input + "\n" + status
}

func (m Model) renderTranscript(snap session.Snapshot) string {
	if len(snap.Turns) == 0 {
		return "No questions yet."
	}
	width := max(20, m.viewport.Width)
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	lastQuestion := ""
	for _, t := range snap.Turns {
		switch {
		case t.Role == domain.RoleUser:
			lastQuestion = t.Text
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(wrap.Render(t.Text))
		case t.Failed:
			b.WriteString(failedStyle.Render(wrap.Render("Assistant: " + t.Text)))
		default:
			b.WriteString(assistantStyle.Render("Assistant: "))
			b.WriteString(wrap.Render(t.Text))
			if len(t.Sources) > 0 {
				b.WriteString("\n")
				b.WriteString(sourceStyle.Render(wrap.Render(sourceLine(t.Sources))))
				if m.showSources {
					for _, s := range t.Sources {
						b.WriteString("\n")
						b.WriteString(sourceStyle.Render(fmt.Sprintf("[%d] score=%.3f", s.Rank, s.Score)))
						b.WriteString("\n")
						b.WriteString(wrap.Render(highlightBestSentence(s.Text, lastQuestion)))
					}
				}
			}
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func sourceLine(sources []domain.Match) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		label := fmt.Sprintf("#%d passage %d (%.2f)", s.Rank, s.PassageID, s.Score)
		if start, end := s.Metadata["start"], s.Metadata["end"]; start != "" && end != "" {
			label = fmt.Sprintf("#%d chars %s-%s (%.2f)", s.Rank, start, end, s.Score)
		}
		parts[i] = label
	}
	return "Sources: " + strings.Join(parts, ", ")
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	summaryStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	progressStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Italic(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	failedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)

	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// highlightBestSentence marks the sentence sharing the most words with the question.
func highlightBestSentence(text, question string) string {
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	q := wordSet(question)
	best, bestScore := -1, 0
	for i, s := range sentences {
		if score := overlap(q, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = strings.TrimSpace(s)
		if i == best {
			out[i] = highlightStyle.Render(out[i])
		}
	}
	return strings.Join(out, " ")
}

func wordSet(s string) map[string]struct{} {
	m := map[string]struct{}{}
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		m[w] = struct{}{}
	}
	return m
}

func overlap(q map[string]struct{}, sentence string) int {
	n := 0
	for w := range wordSet(sentence) {
		if _, ok := q[w]; ok {
			n++
		}
	}
	return n
}
