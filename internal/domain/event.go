package domain

const (
	EventNameJoinOpened     = "quiz.join_opened"
	EventNamePlayerJoined   = "quiz.player_joined"
	EventNameQuizStarted    = "quiz.started"
	EventNameQuestionOpened = "quiz.question_opened"
	EventNameRoundClosed    = "quiz.round_closed"
	EventNameQuizFinished   = "quiz.finished"
	EventNameQuizCancelled  = "quiz.cancelled"
)

type EventJoinOpened struct {
	GroupID   string
	SessionID string
}

func (EventJoinOpened) Name() string { return EventNameJoinOpened }

type EventPlayerJoined struct {
	GroupID  string
	PlayerID string
}

func (EventPlayerJoined) Name() string { return EventNamePlayerJoined }

type EventQuizStarted struct {
	GroupID     string
	SessionID   string
	PlayerCount int
}

func (EventQuizStarted) Name() string { return EventNameQuizStarted }

type EventQuestionOpened struct {
	GroupID       string
	QuestionIndex int
}

func (EventQuestionOpened) Name() string { return EventNameQuestionOpened }

type EventRoundClosed struct {
	Result RoundResult
}

func (EventRoundClosed) Name() string { return EventNameRoundClosed }

type EventQuizFinished struct {
	GroupID     string
	SessionID   string
	Leaderboard Leaderboard
}

func (EventQuizFinished) Name() string { return EventNameQuizFinished }

type EventQuizCancelled struct {
	GroupID   string
	SessionID string
	Reason    string
}

func (EventQuizCancelled) Name() string { return EventNameQuizCancelled }
