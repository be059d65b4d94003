package domain

// Outbound payloads handed to the messaging collaborator. Rendering is the
// collaborator's job; the engine only produces structured data. A payload
// never carries the correct option of a question that is still open.

type JoinOpened struct {
	GroupID           string `json:"group_id"`
	JoinWindowSeconds int    `json:"join_window_seconds"`
	QuestionCount     int    `json:"question_count"`
}

type PlayerJoined struct {
	GroupID     string `json:"group_id"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	PlayerCount int    `json:"player_count"`
}

type QuizStarted struct {
	GroupID       string `json:"group_id"`
	PlayerCount   int    `json:"player_count"`
	QuestionCount int    `json:"question_count"`
}

type QuestionOpened struct {
	GroupID          string   `json:"group_id"`
	QuestionNumber   int      `json:"question_number"`
	QuestionCount    int      `json:"question_count"`
	Text             string   `json:"text"`
	Options          []string `json:"options"`
	TimeLimitSeconds int      `json:"time_limit_seconds"`
}

type QuizFinished struct {
	GroupID     string      `json:"group_id"`
	Leaderboard Leaderboard `json:"leaderboard"`
}

type QuizCancelled struct {
	GroupID string `json:"group_id"`
	Reason  string `json:"reason"`
}

// Notice is a short structured reply to a single sender: command
// acknowledgements, validation errors, benign "nothing for you" hints.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QuizStatus answers the owner's status command.
type QuizStatus struct {
	GroupID         string `json:"group_id"`
	State           string `json:"state"`
	PlayerCount     int    `json:"player_count"`
	QuestionCount   int    `json:"question_count"`
	CurrentQuestion int    `json:"current_question"`
	RoundOpen       bool   `json:"round_open"`
}

// AnswerReceived acknowledges a recorded private answer.
type AnswerReceived struct {
	QuestionNumber int `json:"question_number"`
}
