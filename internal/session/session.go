// Package session runs conversations: each question is answered on a
// background goroutine while the caller keeps rendering progress.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

type State int

const (
	StateIdle State = iota
	StateAwaiting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting answer"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DefaultTick is how often the progress indicator advances.
const DefaultTick = 400 * time.Millisecond

const progressLabel = "Analyzing your question"

// dots grows to four and shrinks back, one step per tick.
var dots = [8]int{0, 1, 2, 3, 4, 3, 2, 1}

// Progress renders the indicator for a tick count.
func Progress(frame int) string {
	if frame < 0 {
		frame = 0
	}
	return progressLabel + strings.Repeat(".", dots[frame%len(dots)])
}

type Options struct {
	// Timeout bounds a single answer; zero means no limit.
	Timeout time.Duration
	Tick    time.Duration
}

// Snapshot is a copy of the session's visible state.
type Snapshot struct {
	ID       string
	State    State
	Turns    []domain.Turn
	Progress string
}

type Session struct {
	id       string
	answerer domain.Answerer
	opts     Options
	now      func() time.Time

	mu      sync.Mutex
	state   State
	turns   []domain.Turn
	frame   int
	cancel  context.CancelFunc
	updates chan struct{}
}

func New(id string, answerer domain.Answerer, opts Options) *Session {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	return &Session{
		id:       id,
		answerer: answerer,
		opts:     opts,
		now:      time.Now,
		updates:  make(chan struct{}, 1),
	}
}

func (s *Session) ID() string { return s.id }

// Updates signals that the snapshot changed. Signals coalesce; the channel is
// closed when the session closes.
func (s *Session) Updates() <-chan struct{} { return s.updates }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:    s.id,
		State: s.state,
		Turns: append([]domain.Turn(nil), s.turns...),
	}
	if s.state == StateAwaiting {
		snap.Progress = Progress(s.frame)
	}
	return snap
}

// Submit records the question and starts answering it in the background. It
// returns as soon as the user turn is appended.
func (s *Session) Submit(question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return domain.ErrSessionClosed
	case StateAwaiting:
		s.mu.Unlock()
		return domain.ErrSessionBusy
	}
	history := append([]domain.Turn(nil), s.turns...)
	s.turns = append(s.turns, domain.Turn{Role: domain.RoleUser, Text: question, Time: s.now()})
	s.state = StateAwaiting
	s.frame = 0

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	s.cancel = cancel
	s.notifyLocked()
	s.mu.Unlock()

	go s.answer(ctx, cancel, question, history)
	return nil
}

func (s *Session) answer(ctx context.Context, cancel context.CancelFunc, question string, history []domain.Turn) {
	defer cancel()
	done := make(chan struct{})
	go s.animate(done)

	start := s.now()
	ans, err := s.answerer.Answer(ctx, question, history)
	close(done)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		logger.Debug("session %s: discarding answer that finished after close", s.id)
		return
	}
	turn := domain.Turn{Role: domain.RoleAssistant, Time: s.now()}
	if err != nil {
		logger.Warn("session %s: answer failed after %s: %v", s.id, s.now().Sub(start).Round(time.Millisecond), err)
		turn.Text = FailureNotice(err)
		turn.Failed = true
	} else {
		turn.Text = ans.Text
		turn.Sources = ans.Sources
	}
	s.turns = append(s.turns, turn)
	s.state = StateIdle
	s.cancel = nil
	s.notifyLocked()
}

func (s *Session) animate(done <-chan struct{}) {
	t := time.NewTicker(s.opts.Tick)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			s.mu.Lock()
			if s.state == StateAwaiting {
				s.frame++
				s.notifyLocked()
			}
			s.mu.Unlock()
		}
	}
}

// Close cancels any in-flight answer. A result arriving later is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	close(s.updates)
}

func (s *Session) notifyLocked() {
	if s.state == StateClosed {
		return
	}
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// FailureNotice turns an answering error into a message for the reader.
func FailureNotice(err error) string {
	switch {
	case errors.Is(err, domain.ErrIndexNotReady):
		return "No document has been indexed yet, so there is nothing to search. Index a document and ask again."
	case errors.Is(err, domain.ErrEmbeddingService):
		return "I couldn't reach the embedding service to search the document. Please try again in a moment."
	case errors.Is(err, domain.ErrGenerationService):
		return "I couldn't get an answer from the language model. Please try again in a moment."
	case errors.Is(err, domain.ErrPromptTooLarge):
		return "That question is too long to answer with the current settings. Try a shorter question."
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "The index was built with a different embedding model. Re-index the document and ask again."
	case errors.Is(err, context.DeadlineExceeded):
		return "Answering took too long and was stopped. Please try again."
	}
	return "Something went wrong while answering: " + err.Error()
}
