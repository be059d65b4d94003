package quiz

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"groupquiz/internal/domain"
	"groupquiz/internal/errors"
	"groupquiz/internal/event"
	"groupquiz/internal/gateway"
	"groupquiz/internal/schedule"
)

// Settings bound the timing behavior of every session.
type Settings struct {
	JoinWindow          time.Duration
	DefaultQuestionTime time.Duration
	MinQuestionTime     time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.JoinWindow <= 0 {
		s.JoinWindow = time.Minute
	}
	if s.DefaultQuestionTime <= 0 {
		s.DefaultQuestionTime = 30 * time.Second
	}
	if s.MinQuestionTime <= 0 {
		s.MinQuestionTime = 5 * time.Second
	}
	return s
}

type sessionDeps struct {
	gw         gateway.Gateway
	eb         *event.Bus
	sched      schedule.Scheduler
	settings   Settings
	onTerminal func(groupID string)
}

// Session owns the full lifecycle of one quiz in one group: the question
// bank, the player registry, the currently open round and the pending
// phase timer. Every transition, whether command-driven or timer-driven,
// runs under the session mutex.
type Session struct {
	id      string
	groupID string
	ownerID string

	deps sessionDeps

	mu        sync.Mutex
	state     domain.State
	questions []domain.Question
	players   map[string]*domain.Player
	joinOrder []string
	current   int
	round     *round

	// gen invalidates pending timers: a callback scheduled under an older
	// generation is a no-op.
	gen         uint64
	cancelTimer func()
}

// round is the transient state of an open question.
type round struct {
	questionIndex int
	startTime     time.Time
	timeLimit     time.Duration
	answered      map[string]struct{}
	order         []string
}

func newSession(groupID, ownerID string, deps sessionDeps) *Session {
	deps.settings = deps.settings.withDefaults()

	return &Session{
		id:      uuid.New().String(),
		groupID: groupID,
		ownerID: ownerID,
		deps:    deps,
		state:   domain.StateIdle,
		players: make(map[string]*domain.Player),
		current: -1,
	}
}

func (s *Session) ID() string      { return s.id }
func (s *Session) GroupID() string { return s.groupID }
func (s *Session) OwnerID() string { return s.ownerID }

func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddQuestion appends a question to the bank. The bank is append-only and
// only mutable before the join phase opens. The time limit is clamped to
// the configured minimum and defaulted when absent.
func (s *Session) AddQuestion(_ context.Context, q domain.Question) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateIdle {
		return 0, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("questions can only be added before the quiz starts (state=%s)", s.state))
	}

	if q.TimeLimitSeconds <= 0 {
		q.TimeLimitSeconds = int(s.deps.settings.DefaultQuestionTime / time.Second)
	}
	if min := int(s.deps.settings.MinQuestionTime / time.Second); q.TimeLimitSeconds < min {
		q.TimeLimitSeconds = min
	}

	s.questions = append(s.questions, q)
	return len(s.questions), nil
}

// Start opens the join window: Idle -> Join. The group is locked to
// non-admin posting best-effort, and a join-window expiry timer is armed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateIdle {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("quiz already started (state=%s)", s.state))
	}
	if len(s.questions) == 0 {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot start a quiz with no questions"))
	}

	s.state = domain.StateJoin
	s.players = make(map[string]*domain.Player)
	s.joinOrder = nil

	s.scheduleLocked(s.deps.settings.JoinWindow, s.joinExpiry)
	s.restrictGroup(ctx, true)

	s.sendGroup(ctx, domain.JoinOpened{
		GroupID:           s.groupID,
		JoinWindowSeconds: int(s.deps.settings.JoinWindow / time.Second),
		QuestionCount:     len(s.questions),
	})
	s.deps.eb.Publish(ctx, domain.EventJoinOpened{GroupID: s.groupID, SessionID: s.id})

	return nil
}

// Join registers the sender as a player. Joining twice is a reported no-op.
func (s *Session) Join(ctx context.Context, userID string) (alreadyJoined bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateJoin {
		return false, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("join is not open (state=%s)", s.state))
	}

	if _, ok := s.players[userID]; ok {
		return true, nil
	}

	s.addPlayerLocked(ctx, userID)
	return false, nil
}

// ForceAddPlayer lets the owner register an identity in any phase before
// the session terminates. Adding a present player is a no-op.
func (s *Session) ForceAddPlayer(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("quiz is over (state=%s)", s.state))
	}

	if _, ok := s.players[userID]; ok {
		return nil
	}

	s.addPlayerLocked(ctx, userID)
	return nil
}

func (s *Session) addPlayerLocked(ctx context.Context, userID string) {
	name, ok := s.deps.gw.ResolveDisplayName(ctx, userID)
	if !ok || name == "" {
		name = normalizeIdentity(userID)
	}

	s.players[userID] = &domain.Player{
		ID:          userID,
		DisplayName: name,
		Answers:     make(map[int]domain.Answer),
	}
	s.joinOrder = append(s.joinOrder, userID)

	s.sendGroup(ctx, domain.PlayerJoined{
		GroupID:     s.groupID,
		PlayerID:    userID,
		DisplayName: name,
		PlayerCount: len(s.players),
	})
	s.deps.eb.Publish(ctx, domain.EventPlayerJoined{GroupID: s.groupID, PlayerID: userID})
}

// CloseJoin ends the join phase early: Join -> Running.
func (s *Session) CloseJoin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateJoin {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("join phase is not open (state=%s)", s.state))
	}

	s.invalidateTimerLocked()
	s.startRunningLocked(ctx)
	return nil
}

// joinExpiry is the join-window deadline. With zero players the session is
// cancelled and removed instead of entering Running.
func (s *Session) joinExpiry(gen uint64) {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != domain.StateJoin {
		return
	}

	if len(s.players) == 0 {
		s.cancelLocked(ctx, "nobody joined")
		return
	}

	s.startRunningLocked(ctx)
}

func (s *Session) startRunningLocked(ctx context.Context) {
	// The room stays locked through the Running phase so group chatter does
	// not interleave with question broadcasts; it is unlocked on Finished
	// or Cancelled.
	s.state = domain.StateRunning

	s.sendGroup(ctx, domain.QuizStarted{
		GroupID:       s.groupID,
		PlayerCount:   len(s.players),
		QuestionCount: len(s.questions),
	})
	s.deps.eb.Publish(ctx, domain.EventQuizStarted{
		GroupID:     s.groupID,
		SessionID:   s.id,
		PlayerCount: len(s.players),
	})
}

// GoToQuestion opens question n (1-based). It is rejected while a round is
// still open, and questions cannot be replayed: the index must advance.
func (s *Session) GoToQuestion(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateRunning {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("quiz is not running (state=%s)", s.state))
	}
	if s.round != nil {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("question %d is still open", s.round.questionIndex+1))
	}

	idx := n - 1
	if idx < 0 || idx >= len(s.questions) {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("question number must be between 1 and %d", len(s.questions)))
	}
	if idx <= s.current {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("question %d has already been played", n))
	}

	q := s.questions[idx]
	limit := time.Duration(q.TimeLimitSeconds) * time.Second

	s.current = idx
	s.round = &round{
		questionIndex: idx,
		startTime:     s.deps.sched.Now(),
		timeLimit:     limit,
		answered:      make(map[string]struct{}),
	}
	s.scheduleLocked(limit, s.roundExpiry)

	s.sendGroup(ctx, domain.QuestionOpened{
		GroupID:          s.groupID,
		QuestionNumber:   n,
		QuestionCount:    len(s.questions),
		Text:             q.Text,
		Options:          q.Options,
		TimeLimitSeconds: q.TimeLimitSeconds,
	})
	s.deps.eb.Publish(ctx, domain.EventQuestionOpened{GroupID: s.groupID, QuestionIndex: idx})

	return nil
}

// SubmitAnswer records a private answer for the open round. The first valid
// answer wins; an invalid option leaves the player free to retry until the
// round expires.
func (s *Session) SubmitAnswer(_ context.Context, userID, rawText string) (questionNumber int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateRunning || s.round == nil {
		return 0, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no active question for you"))
	}

	p, ok := s.players[userID]
	if !ok {
		return 0, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no active question for you"))
	}

	if _, done := s.round.answered[userID]; done {
		return 0, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("you already answered this question"))
	}

	q := s.questions[s.round.questionIndex]
	opt, perr := strconv.Atoi(strings.TrimSpace(rawText))
	if perr != nil || opt < 1 || opt > len(q.Options) {
		return 0, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("answer with a number between 1 and %d", len(q.Options)))
	}

	elapsed := s.deps.sched.Now().Sub(s.round.startTime)
	if elapsed < 0 {
		elapsed = 0
	}

	p.Answers[s.round.questionIndex] = domain.Answer{
		ChosenOption:  opt,
		ElapsedMillis: elapsed.Milliseconds(),
	}
	s.round.answered[userID] = struct{}{}
	s.round.order = append(s.round.order, userID)

	return s.round.questionIndex + 1, nil
}

// roundExpiry fires at the round's wall-clock deadline regardless of how
// many players have answered.
func (s *Session) roundExpiry(gen uint64) {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != domain.StateRunning || s.round == nil {
		return
	}

	s.closeRoundLocked(ctx)
}

// closeRoundLocked scores every recorded answer, fixes the awarded points,
// emits the RoundResult and, after the last question, finishes the session.
func (s *Session) closeRoundLocked(ctx context.Context) {
	r := s.round
	q := s.questions[r.questionIndex]
	limitMillis := r.timeLimit.Milliseconds()
	last := r.questionIndex == len(s.questions)-1

	answers := make([]domain.RoundAnswer, 0, len(s.players))
	for _, userID := range r.order {
		p := s.players[userID]
		a := p.Answers[r.questionIndex]

		correct := a.ChosenOption == q.CorrectOption
		if correct {
			a.PointsAwarded = scorePoints(a.ElapsedMillis, limitMillis)
		}
		p.Answers[r.questionIndex] = a
		p.Score += a.PointsAwarded

		answers = append(answers, domain.RoundAnswer{
			PlayerID:      userID,
			DisplayName:   p.DisplayName,
			ChosenOption:  a.ChosenOption,
			Correct:       correct,
			PointsAwarded: a.PointsAwarded,
		})
	}

	for _, userID := range s.joinOrder {
		if _, done := r.answered[userID]; done {
			continue
		}
		answers = append(answers, domain.RoundAnswer{
			PlayerID:    userID,
			DisplayName: s.players[userID].DisplayName,
		})
	}

	s.round = nil

	result := domain.RoundResult{
		GroupID:       s.groupID,
		QuestionIndex: r.questionIndex,
		CorrectOption: q.CorrectOption,
		LastQuestion:  last,
		Answers:       answers,
		Leaderboard:   s.leaderboardLocked(),
	}

	s.sendGroup(ctx, result)
	s.deps.eb.Publish(ctx, domain.EventRoundClosed{Result: result})

	if last {
		s.finishLocked(ctx)
	}
}

func (s *Session) finishLocked(ctx context.Context) {
	s.invalidateTimerLocked()
	s.state = domain.StateFinished
	s.restrictGroup(ctx, false)

	lb := s.leaderboardLocked()
	s.sendGroup(ctx, domain.QuizFinished{GroupID: s.groupID, Leaderboard: lb})
	s.deps.eb.Publish(ctx, domain.EventQuizFinished{
		GroupID:     s.groupID,
		SessionID:   s.id,
		Leaderboard: lb,
	})

	s.deps.onTerminal(s.groupID)
}

// Cancel aborts the session from any non-terminal phase.
func (s *Session) Cancel(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("quiz is over (state=%s)", s.state))
	}

	s.cancelLocked(ctx, reason)
	return nil
}

func (s *Session) cancelLocked(ctx context.Context, reason string) {
	s.invalidateTimerLocked()
	s.state = domain.StateCancelled
	s.round = nil
	s.restrictGroup(ctx, false)

	s.sendGroup(ctx, domain.QuizCancelled{GroupID: s.groupID, Reason: reason})
	s.deps.eb.Publish(ctx, domain.EventQuizCancelled{
		GroupID:   s.groupID,
		SessionID: s.id,
		Reason:    reason,
	})

	s.deps.onTerminal(s.groupID)
}

// Status reports a snapshot for the owner's status command.
func (s *Session) Status() domain.QuizStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.QuizStatus{
		GroupID:         s.groupID,
		State:           s.state.String(),
		PlayerCount:     len(s.players),
		QuestionCount:   len(s.questions),
		CurrentQuestion: s.current + 1,
		RoundOpen:       s.round != nil,
	}
}

// Leaderboard returns the current standings: score descending, ties broken
// by join order.
func (s *Session) Leaderboard() domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaderboardLocked()
}

func (s *Session) leaderboardLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(s.joinOrder))
	for _, userID := range s.joinOrder {
		p := s.players[userID]
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	return domain.Leaderboard{GroupID: s.groupID, Entries: entries}
}

type awaitStatus int

const (
	awaitNone awaitStatus = iota
	awaitOpen
	awaitAnswered
)

// awaitingAnswer tells the registry whether this session has an open round
// waiting on userID, and when that round started.
func (s *Session) awaitingAnswer(userID string) (time.Time, awaitStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateRunning || s.round == nil {
		return time.Time{}, awaitNone
	}
	if _, ok := s.players[userID]; !ok {
		return time.Time{}, awaitNone
	}
	if _, done := s.round.answered[userID]; done {
		return s.round.startTime, awaitAnswered
	}

	return s.round.startTime, awaitOpen
}

// scheduleLocked arms the phase timer under a fresh generation; any timer
// still pending from an older generation becomes a no-op.
func (s *Session) scheduleLocked(d time.Duration, fn func(gen uint64)) {
	s.invalidateTimerLocked()
	gen := s.gen
	s.cancelTimer = s.deps.sched.After(d, func() { fn(gen) })
}

func (s *Session) invalidateTimerLocked() {
	s.gen++
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
}

func (s *Session) sendGroup(ctx context.Context, payload any) {
	if err := s.deps.gw.SendToGroup(ctx, s.groupID, payload); err != nil {
		slog.ErrorContext(ctx, "quiz: send to group failed",
			"group", s.groupID,
			"error", err,
		)
	}
}

func (s *Session) restrictGroup(ctx context.Context, restricted bool) {
	if err := s.deps.gw.SetGroupRestricted(ctx, s.groupID, restricted); err != nil {
		slog.ErrorContext(ctx, "quiz: restrict group failed",
			"group", s.groupID,
			"restricted", restricted,
			"error", err,
		)
	}
}

// normalizeIdentity derives a readable fallback name from a transport
// identity such as "31612345678@c.us".
func normalizeIdentity(userID string) string {
	if i := strings.IndexByte(userID, '@'); i > 0 {
		return userID[:i]
	}
	return userID
}
