// Package telegram bridges Telegram group chats to the quiz engine. Group
// and user identities are decimal chat IDs.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"groupquiz/internal/domain"
	"groupquiz/internal/gateway"
)

type Config struct {
	Token string
	Debug bool
}

type Adapter struct {
	bot *tgbotapi.BotAPI
}

func New(c Config) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	bot.Debug = c.Debug

	return &Adapter{bot: bot}, nil
}

// Run consumes updates and feeds them to the engine until ctx is
// cancelled. Each update is handled on its own goroutine so one slow
// session never blocks the update stream.
func (a *Adapter) Run(ctx context.Context, inbound gateway.Inbound) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := a.bot.GetUpdatesChan(u)

	slog.InfoContext(ctx, fmt.Sprintf("telegram: logged in as @%s", a.bot.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			a.handleUpdate(ctx, inbound, upd)
		}
	}
}

func (a *Adapter) handleUpdate(ctx context.Context, inbound gateway.Inbound, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}

	switch {
	case msg.Chat.IsGroup() || msg.Chat.IsSuperGroup():
		cmd := gateway.GroupCommand{
			GroupID:          strconv.FormatInt(msg.Chat.ID, 10),
			SenderID:         strconv.FormatInt(msg.From.ID, 10),
			IsOwnerCandidate: a.isAdmin(msg.Chat.ID, msg.From.ID),
			RawText:          msg.Text,
			MentionedIDs:     mentionedIDs(msg),
		}
		go inbound.HandleGroupCommand(ctx, cmd)

	case msg.Chat.IsPrivate():
		pm := gateway.PrivateMessage{
			SenderID: strconv.FormatInt(msg.From.ID, 10),
			RawText:  msg.Text,
		}
		go inbound.HandlePrivateMessage(ctx, pm)
	}
}

func (a *Adapter) isAdmin(chatID, userID int64) bool {
	member, err := a.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		return false
	}

	return member.IsCreator() || member.IsAdministrator()
}

func mentionedIDs(msg *tgbotapi.Message) []string {
	var ids []string
	for _, e := range msg.Entities {
		if e.Type == "text_mention" && e.User != nil {
			ids = append(ids, strconv.FormatInt(e.User.ID, 10))
		}
	}
	return ids
}

func (a *Adapter) SendToGroup(_ context.Context, groupID string, payload any) error {
	return a.send(groupID, payload)
}

func (a *Adapter) SendToPrivate(_ context.Context, userID string, payload any) error {
	return a.send(userID, payload)
}

func (a *Adapter) send(chat string, payload any) error {
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %v", chat, err)
	}

	if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, render(payload))); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

func (a *Adapter) SetGroupRestricted(_ context.Context, groupID string, restricted bool) error {
	chatID, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %v", groupID, err)
	}

	open := !restricted
	_, err = a.bot.Request(tgbotapi.SetChatPermissionsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages:       open,
			CanSendMediaMessages:  open,
			CanSendPolls:          open,
			CanSendOtherMessages:  open,
			CanAddWebPagePreviews: open,
		},
	})
	if err != nil {
		return fmt.Errorf("telegram: set permissions: %w", err)
	}
	return nil
}

func (a *Adapter) ResolveDisplayName(_ context.Context, userID string) (string, bool) {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return "", false
	}

	chat, err := a.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return "", false
	}

	name := strings.TrimSpace(strings.TrimSpace(chat.FirstName) + " " + strings.TrimSpace(chat.LastName))
	if name == "" {
		name = chat.UserName
	}
	return name, name != ""
}

// render turns a structured payload into plain chat text.
func render(payload any) string {
	switch p := payload.(type) {
	case domain.JoinOpened:
		return fmt.Sprintf("Quiz starting with %d questions! Send \"join\" within %d seconds to play.",
			p.QuestionCount, p.JoinWindowSeconds)

	case domain.PlayerJoined:
		return fmt.Sprintf("%s joined (%d playing).", p.DisplayName, p.PlayerCount)

	case domain.QuizStarted:
		return fmt.Sprintf("Join is closed. %d players, %d questions. Answers go by private message!",
			p.PlayerCount, p.QuestionCount)

	case domain.QuestionOpened:
		var b strings.Builder
		fmt.Fprintf(&b, "Question %d/%d (%ds): %s\n", p.QuestionNumber, p.QuestionCount, p.TimeLimitSeconds, p.Text)
		for i, o := range p.Options {
			fmt.Fprintf(&b, "%d. %s\n", i+1, o)
		}
		return b.String()

	case domain.RoundResult:
		var b strings.Builder
		fmt.Fprintf(&b, "Time! The answer was option %d.\n", p.CorrectOption)
		for _, a := range p.Answers {
			switch {
			case a.ChosenOption == 0:
				fmt.Fprintf(&b, "%s: no answer\n", a.DisplayName)
			case a.Correct:
				fmt.Fprintf(&b, "%s: +%d\n", a.DisplayName, a.PointsAwarded)
			default:
				fmt.Fprintf(&b, "%s: wrong\n", a.DisplayName)
			}
		}
		b.WriteString(renderLeaderboard(p.Leaderboard))
		return b.String()

	case domain.QuizFinished:
		return "Quiz over! Final standings:\n" + renderLeaderboard(p.Leaderboard)

	case domain.QuizCancelled:
		return "Quiz cancelled: " + p.Reason

	case domain.AnswerReceived:
		return fmt.Sprintf("Answer to question %d locked in.", p.QuestionNumber)

	case domain.QuizStatus:
		return fmt.Sprintf("Quiz is %s: %d players, question %d of %d.",
			p.State, p.PlayerCount, p.CurrentQuestion, p.QuestionCount)

	case domain.Notice:
		return p.Message

	default:
		return fmt.Sprintf("%v", payload)
	}
}

func renderLeaderboard(l domain.Leaderboard) string {
	var b strings.Builder
	b.WriteString("Standings:\n")
	for i, e := range l.Entries {
		fmt.Fprintf(&b, "%d. %s: %d\n", i+1, e.DisplayName, e.Score)
	}
	return b.String()
}
