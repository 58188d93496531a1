package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/session"
)

type fakeChat struct {
	submitted []string
	err       error
	snap      session.Snapshot
	updates   chan struct{}
}

func newFakeChat() *fakeChat { return &fakeChat{updates: make(chan struct{}, 1)} }

func (f *fakeChat) Submit(q string) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, q)
	f.snap.Turns = append(f.snap.Turns, domain.Turn{Role: domain.RoleUser, Text: q})
	return nil
}

func (f *fakeChat) Snapshot() session.Snapshot { return f.snap }

func (f *fakeChat) Updates() <-chan struct{} { return f.updates }

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

func TestSubmitQuestion(t *testing.T) {
	chat := newFakeChat()
	m := sized(t, New(chat, Options{Title: "Moby Dick"}))
	m = typeText(m, "Who is Ahab?")
	m, _ = press(m, tea.KeyEnter)

	assert.Equal(t, []string{"Who is Ahab?"}, chat.submitted)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "Who is Ahab?")
	assert.Contains(t, m.View(), "Moby Dick")
}

func TestSubmitWhileBusy(t *testing.T) {
	chat := newFakeChat()
	chat.err = domain.ErrSessionBusy
	m := sized(t, New(chat, Options{}))
	m = typeText(m, "again")
	m, _ = press(m, tea.KeyEnter)

	assert.Equal(t, "again", m.input.Value())
	assert.Contains(t, m.status, "Still working")
}

func TestTabInsertsSampleQuestions(t *testing.T) {
	m := sized(t, New(newFakeChat(), Options{SampleQuestions: []string{"one?", "two?"}}))
	m, _ = press(m, tea.KeyTab)
	assert.Equal(t, "one?", m.input.Value())
	m, _ = press(m, tea.KeyTab)
	assert.Equal(t, "two?", m.input.Value())
	m, _ = press(m, tea.KeyTab)
	assert.Equal(t, "one?", m.input.Value())
}

func TestUpdateMsgRendersAnswerAndSources(t *testing.T) {
	chat := newFakeChat()
	m := sized(t, New(chat, Options{}))
	chat.snap = session.Snapshot{Turns: []domain.Turn{
		{Role: domain.RoleUser, Text: "Which way did the whale swim?"},
		{Role: domain.RoleAssistant, Text: "North.", Sources: []domain.Match{
			{PassageID: 0, Rank: 1, Score: 0.9, Text: "The whale swam north. It was Monday.",
				Metadata: map[string]string{"start": "0", "end": "36"}},
		}},
	}}
	next, cmd := m.Update(updateMsg{})
	m = next.(Model)
	require.NotNil(t, cmd)

	view := m.viewport.View()
	assert.Contains(t, view, "North.")
	assert.Contains(t, view, "chars 0-36")
	assert.NotContains(t, view, "It was Monday.")

	m, _ = press(m, tea.KeyCtrlO)
	assert.True(t, m.showSources)
	assert.Contains(t, m.viewport.View(), "It was Monday.")
}

func TestProgressShownWhileAwaiting(t *testing.T) {
	chat := newFakeChat()
	chat.snap = session.Snapshot{State: session.StateAwaiting, Progress: session.Progress(2)}
	m := sized(t, New(chat, Options{}))
	assert.Contains(t, m.View(), "Analyzing your question..")
}

func TestFailedTurnRendered(t *testing.T) {
	chat := newFakeChat()
	chat.snap = session.Snapshot{Turns: []domain.Turn{
		{Role: domain.RoleUser, Text: "q"},
		{Role: domain.RoleAssistant, Text: "could not reach the model", Failed: true},
	}}
	m := sized(t, New(chat, Options{}))
	assert.Contains(t, m.viewport.View(), "could not reach the model")
}

func TestClosedSessionQuits(t *testing.T) {
	m := New(newFakeChat(), Options{})
	_, cmd := m.Update(closedMsg{})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestWaitForUpdate(t *testing.T) {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	assert.IsType(t, updateMsg{}, waitForUpdate(ch)())
	close(ch)
	assert.IsType(t, closedMsg{}, waitForUpdate(ch)())
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("It was Monday. The whale swam north.", "where did the whale swim north")
	assert.True(t, strings.HasPrefix(out, "It was Monday."))
	assert.Contains(t, out, "The whale swam north.")
	assert.Equal(t, "plain", highlightBestSentence("plain", "q"))
}
