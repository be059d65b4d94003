package domain

// State is the lifecycle phase of a quiz session.
type State int

const (
	StateIdle State = iota
	StateJoin
	StateRunning
	StateFinished
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoin:
		return "join"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled
}

// Question is a single multiple-choice question. CorrectOption is a 1-based
// index into Options.
type Question struct {
	Text             string
	Options          []string
	CorrectOption    int
	TimeLimitSeconds int
}

// Answer is a player's recorded answer for one question. It is immutable
// once recorded; PointsAwarded is fixed at round closure and never
// recomputed.
type Answer struct {
	ChosenOption  int
	ElapsedMillis int64
	PointsAwarded int
}

// Player is a registered quiz participant. Score is non-negative and
// monotonically non-decreasing for the lifetime of the session.
type Player struct {
	ID          string
	DisplayName string
	Score       int
	Answers     map[int]Answer
}

// RoundAnswer is one entry of a RoundResult. ChosenOption is 0 when the
// player did not answer the round.
type RoundAnswer struct {
	PlayerID      string
	DisplayName   string
	ChosenOption  int
	Correct       bool
	PointsAwarded int
}

// RoundResult is the structured outcome of a closed round, handed to the
// messaging collaborator for rendering. Answers are ordered by arrival;
// players who never answered follow in join order.
type RoundResult struct {
	GroupID       string
	QuestionIndex int
	CorrectOption int
	LastQuestion  bool
	Answers       []RoundAnswer
	Leaderboard   Leaderboard
}

// Leaderboard lists players sorted by score in descending order, ties broken
// by original join order.
type Leaderboard struct {
	GroupID string
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	PlayerID    string
	DisplayName string
	Score       int
}
