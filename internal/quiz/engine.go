package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"groupquiz/internal/domain"
	"groupquiz/internal/errors"
	"groupquiz/internal/event"
	"groupquiz/internal/gateway"
	"groupquiz/internal/schedule"
	"groupquiz/internal/telemetry"
)

// Command surface of the text protocol. Everything except join is
// owner-only; create-quiz additionally requires the sender to be a group
// admin per the transport.
const (
	cmdCreateQuiz   = "create-quiz"
	cmdAddQuestion  = "add-question"
	cmdStartQuiz    = "start-quiz"
	cmdCloseJoin    = "close-join"
	cmdGoToQuestion = "go-to-question"
	cmdAddPlayer    = "add-player"
	cmdCancelQuiz   = "cancel-quiz"
	cmdStatus       = "status"
	cmdJoin         = "join"
)

type Config struct {
	Gateway   gateway.Gateway
	EventBus  *event.Bus
	Scheduler schedule.Scheduler
	Settings  Settings
}

// Engine dispatches inbound messages onto quiz sessions. It implements
// gateway.Inbound.
type Engine struct {
	gw  gateway.Gateway
	eb  *event.Bus
	reg *Registry
}

func NewEngine(c Config) *Engine {
	e := &Engine{
		gw: c.Gateway,
		eb: c.EventBus,
	}

	deps := sessionDeps{
		gw:         c.Gateway,
		eb:         c.EventBus,
		sched:      c.Scheduler,
		settings:   c.Settings.withDefaults(),
		onTerminal: func(groupID string) { e.reg.Remove(groupID) },
	}
	e.reg = newRegistry(func(groupID, ownerID string) *Session {
		return newSession(groupID, ownerID, deps)
	})

	return e
}

// HandleGroupCommand processes a message posted in a group chat. Text that
// is not part of the command surface is ignored; recognized commands reply
// to the group with either their result or a structured error notice.
func (e *Engine) HandleGroupCommand(ctx context.Context, cmd gateway.GroupCommand) {
	reply, err := e.groupCommand(ctx, cmd)
	if err != nil {
		reply = noticeFromError(err)
	}
	if reply == nil {
		return
	}

	if err := e.gw.SendToGroup(ctx, cmd.GroupID, reply); err != nil {
		slog.ErrorContext(ctx, "quiz: send to group failed",
			"group", cmd.GroupID,
			"error", err,
		)
	}
}

func (e *Engine) groupCommand(ctx context.Context, cmd gateway.GroupCommand) (any, error) {
	raw := strings.TrimSpace(cmd.RawText)

	switch {
	case raw == cmdCreateQuiz:
		if !cmd.IsOwnerCandidate {
			return nil, errors.New(errors.CodePermissionDenied,
				errors.WithMessagef("only a group admin can create a quiz"))
		}
		if _, created := e.reg.GetOrCreate(cmd.GroupID, cmd.SenderID); !created {
			return nil, errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("a quiz is already set up in this group"))
		}
		return domain.Notice{Code: "quiz_created", Message: "quiz created, add questions with " + cmdAddQuestion}, nil

	case strings.HasPrefix(raw, cmdAddQuestion+"|"):
		s, err := e.ownerSession(cmd.GroupID, cmd.SenderID)
		if err != nil {
			return nil, err
		}
		q, err := parseQuestion(raw)
		if err != nil {
			return nil, err
		}
		n, err := s.AddQuestion(ctx, q)
		if err != nil {
			return nil, err
		}
		return domain.Notice{Code: "question_added", Message: fmt.Sprintf("question %d added", n)}, nil

	case raw == cmdStartQuiz:
		s, err := e.ownerSession(cmd.GroupID, cmd.SenderID)
		if err != nil {
			return nil, err
		}
		return nil, s.Start(ctx)

	case raw == cmdCloseJoin:
		s, err := e.ownerSession(cmd.GroupID, cmd.SenderID)
		if err != nil {
			return nil, err
		}
		return nil, s.CloseJoin(ctx)

	case raw == cmdGoToQuestion || strings.HasPrefix(raw, cmdGoToQuestion+" "):
		s, err := e.ownerSession(cmd.GroupID, cmd.SenderID)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(raw, cmdGoToQuestion)))
		if err != nil {
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("usage: %s <question number>", cmdGoToQuestion))
		}
		return nil, s.GoToQuestion(ctx, n)

	case raw == cmdAddPlayer || strings.HasPrefix(raw, cmdAddPlayer+" "):
		s, err := e.ownerSession(cmd.GroupID, cmd.SenderID)
		if err != nil {
			return nil, err
		}
		target := ""
		if len(cmd.MentionedIDs) > 0 {
			target = cmd.MentionedIDs[0]
		} else if fields := strings.Fields(raw); len(fields) > 1 {
			target = fields[1]
		}
		if target == "" {
			return nil, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("usage: %s <player>", cmdAddPlayer))
		}
		if err := s.ForceAddPlayer(ctx, target); err != nil {
			return nil, err
		}
		return nil, nil

	case raw == cmdCancelQuiz:
		s, err := e.ownerSession(cmd.GroupID, cmd.SenderID)
		if err != nil {
			return nil, err
		}
		return nil, s.Cancel(ctx, "cancelled by the quiz owner")

	case raw == cmdStatus:
		s, err := e.ownerSession(cmd.GroupID, cmd.SenderID)
		if err != nil {
			return nil, err
		}
		return s.Status(), nil

	case raw == cmdJoin:
		s, ok := e.reg.Get(cmd.GroupID)
		if !ok {
			return nil, errors.New(errors.CodeNotFound,
				errors.WithMessagef("there is no quiz in this group"))
		}
		already, err := s.Join(ctx, cmd.SenderID)
		if err != nil {
			return nil, err
		}
		if already {
			return domain.Notice{Code: "already_joined", Message: "you have already joined"}, nil
		}
		return nil, nil

	default:
		// Group chatter; not ours.
		return nil, nil
	}
}

// HandlePrivateMessage routes a one-to-one message as an answer to the
// session currently awaiting one from the sender.
func (e *Engine) HandlePrivateMessage(ctx context.Context, msg gateway.PrivateMessage) {
	s, err := e.reg.RoutePrivateAnswer(msg.SenderID)
	if err != nil {
		if errors.IsCode(err, errors.CodeAlreadyExists) {
			telemetry.AnswersTotal.WithLabelValues("duplicate").Inc()
		} else {
			telemetry.AnswersTotal.WithLabelValues("unrouted").Inc()
		}
		e.sendPrivate(ctx, msg.SenderID, noticeFromError(err))
		return
	}

	n, err := s.SubmitAnswer(ctx, msg.SenderID, msg.RawText)
	if err != nil {
		telemetry.AnswersTotal.WithLabelValues("rejected").Inc()
		e.sendPrivate(ctx, msg.SenderID, noticeFromError(err))
		return
	}

	telemetry.AnswersTotal.WithLabelValues("accepted").Inc()
	e.sendPrivate(ctx, msg.SenderID, domain.AnswerReceived{QuestionNumber: n})
}

// CancelAll aborts every live session; used on shutdown.
func (e *Engine) CancelAll(ctx context.Context, reason string) {
	for _, s := range e.reg.All() {
		if err := s.Cancel(ctx, reason); err != nil {
			slog.ErrorContext(ctx, "quiz: cancel session failed",
				"group", s.GroupID(),
				"error", err,
			)
		}
	}
}

func (e *Engine) ownerSession(groupID, senderID string) (*Session, error) {
	s, ok := e.reg.Get(groupID)
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("there is no quiz in this group"))
	}
	if s.OwnerID() != senderID {
		return nil, errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("only the quiz owner can do that"))
	}
	return s, nil
}

func (e *Engine) sendPrivate(ctx context.Context, userID string, payload any) {
	if err := e.gw.SendToPrivate(ctx, userID, payload); err != nil {
		slog.ErrorContext(ctx, "quiz: send to private failed",
			"user", userID,
			"error", err,
		)
	}
}

func noticeFromError(err error) domain.Notice {
	e := errors.Convert(err)
	return domain.Notice{Code: e.Code.String(), Message: e.Message}
}

// parseQuestion parses "add-question|<text>|<opt1,opt2,...>|<correct>|<seconds>".
// The seconds field may be empty; the session applies the default.
func parseQuestion(raw string) (domain.Question, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 5 {
		return domain.Question{}, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("usage: %s|<text>|<opt1,opt2,...>|<correct>|<seconds>", cmdAddQuestion))
	}

	text := strings.TrimSpace(parts[1])
	if text == "" {
		return domain.Question{}, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("question text must not be empty"))
	}

	var options []string
	for _, o := range strings.Split(parts[2], ",") {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}
	if len(options) < 2 {
		return domain.Question{}, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("a question needs at least 2 options"))
	}

	correct, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil || correct < 1 || correct > len(options) {
		return domain.Question{}, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("correct option must be between 1 and %d", len(options)))
	}

	seconds := 0
	if v := strings.TrimSpace(parts[4]); v != "" {
		seconds, err = strconv.Atoi(v)
		if err != nil || seconds < 0 {
			return domain.Question{}, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("time limit must be a number of seconds"))
		}
	}

	return domain.Question{
		Text:             text,
		Options:          options,
		CorrectOption:    correct,
		TimeLimitSeconds: seconds,
	}, nil
}
