package quiz_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"groupquiz/internal/event"
	"groupquiz/internal/gateway"
	"groupquiz/internal/quiz"
)

// Test fixtures shared by the engine, registry and session tests: an
// in-memory gateway that records every send, and a hand-cranked scheduler
// so timer expiry is deterministic.

const (
	groupA = "group-100"
	groupB = "group-200"
	owner  = "owner-1"
	alice  = "alice-1"
	bob    = "bob-2"
	carol  = "carol-3"
)

type sent struct {
	target  string
	payload any
}

type fakeGateway struct {
	mu         sync.Mutex
	group      []sent
	private    []sent
	restricted map[string]bool
	names      map[string]string
	sendErr    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		restricted: make(map[string]bool),
		names:      make(map[string]string),
	}
}

func (g *fakeGateway) SendToGroup(_ context.Context, groupID string, payload any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sendErr != nil {
		return g.sendErr
	}
	g.group = append(g.group, sent{groupID, payload})
	return nil
}

func (g *fakeGateway) SendToPrivate(_ context.Context, userID string, payload any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sendErr != nil {
		return g.sendErr
	}
	g.private = append(g.private, sent{userID, payload})
	return nil
}

func (g *fakeGateway) SetGroupRestricted(_ context.Context, groupID string, restricted bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sendErr != nil {
		return g.sendErr
	}
	g.restricted[groupID] = restricted
	return nil
}

func (g *fakeGateway) ResolveDisplayName(_ context.Context, userID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	name, ok := g.names[userID]
	return name, ok
}

func (g *fakeGateway) groupPayloads(groupID string) []any {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []any
	for _, s := range g.group {
		if s.target == groupID {
			out = append(out, s.payload)
		}
	}
	return out
}

func (g *fakeGateway) privatePayloads(userID string) []any {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []any
	for _, s := range g.private {
		if s.target == userID {
			out = append(out, s.payload)
		}
	}
	return out
}

func (g *fakeGateway) isRestricted(groupID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.restricted[groupID]
}

// lastOfType returns the most recent payload of type T, failing the test
// when none was sent.
func lastOfType[T any](t *testing.T, payloads []any) T {
	t.Helper()

	var (
		found bool
		out   T
	)
	for _, p := range payloads {
		if v, ok := p.(T); ok {
			out, found = v, true
		}
	}
	require.Truef(t, found, "no payload of type %T in %v", out, payloads)
	return out
}

func countOfType[T any](payloads []any) int {
	n := 0
	for _, p := range payloads {
		if _, ok := p.(T); ok {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
}

type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Unix(1700000000, 0)}
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeScheduler) After(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ft := &fakeTimer{at: s.now.Add(d), fn: fn}
	s.timers = append(s.timers, ft)

	return func() {
		s.mu.Lock()
		ft.stopped = true
		s.mu.Unlock()
	}
}

// advance moves the clock and fires every due timer, outside the
// scheduler lock so callbacks may schedule again.
func (s *fakeScheduler) advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)

	var due []*fakeTimer
	for _, ft := range s.timers {
		if !ft.stopped && !ft.at.After(s.now) {
			ft.stopped = true
			due = append(due, ft)
		}
	}
	s.mu.Unlock()

	for _, ft := range due {
		ft.fn()
	}
}

type harness struct {
	engine *quiz.Engine
	gw     *fakeGateway
	sched  *fakeScheduler
	eb     *event.Bus
}

func makeEngine(t *testing.T, opts ...func(*quiz.Config)) *harness {
	gw := newFakeGateway()
	sched := newFakeScheduler()
	eb := event.NewBus()
	t.Cleanup(eb.Stop)

	c := quiz.Config{
		Gateway:   gw,
		EventBus:  eb,
		Scheduler: sched,
		Settings: quiz.Settings{
			JoinWindow:          30 * time.Second,
			DefaultQuestionTime: 20 * time.Second,
			MinQuestionTime:     5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(&c)
	}

	return &harness{
		engine: quiz.NewEngine(c),
		gw:     gw,
		sched:  sched,
		eb:     eb,
	}
}

// cmd delivers a group message; the fixed owner identity is treated as a
// group admin.
func (h *harness) cmd(senderID, text string) {
	h.cmdIn(groupA, senderID, text)
}

func (h *harness) cmdIn(groupID, senderID, text string) {
	h.engine.HandleGroupCommand(context.Background(), gateway.GroupCommand{
		GroupID:          groupID,
		SenderID:         senderID,
		IsOwnerCandidate: senderID == owner,
		RawText:          text,
	})
}

func (h *harness) answer(senderID, text string) {
	h.engine.HandlePrivateMessage(context.Background(), gateway.PrivateMessage{
		SenderID: senderID,
		RawText:  text,
	})
}

// setupQuiz creates a one-question quiz in groupID: 4 options, correct
// option 2, 10 second limit.
func (h *harness) setupQuiz(groupID string) {
	h.cmdIn(groupID, owner, "create-quiz")
	h.cmdIn(groupID, owner, "add-question|Capital of France?|Rome,Paris,Berlin,Madrid|2|10")
}

// startQuiz opens the join window, joins the given players and closes join.
func (h *harness) startQuiz(groupID string, players ...string) {
	h.cmdIn(groupID, owner, "start-quiz")
	for _, p := range players {
		h.cmdIn(groupID, p, "join")
	}
	h.cmdIn(groupID, owner, "close-join")
}
