package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"groupquiz/internal/domain"
	"groupquiz/internal/event"
	"groupquiz/internal/notify"
)

func setup(t *testing.T) (*notify.Publisher, *event.Bus, *redis.Client) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	eb := event.NewBus()
	t.Cleanup(eb.Stop)

	p := notify.NewPublisher(notify.Config{
		EventBus: eb,
		Redis:    client,
		Prefix:   "quiz",
	})

	return p, eb, client
}

func receive(t *testing.T, ch <-chan *redis.Message) (string, notify.Notification) {
	t.Helper()

	select {
	case msg := <-ch:
		var n notify.Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		return msg.Channel, n
	case <-time.After(3 * time.Second):
		t.Fatal("no notification received")
		return "", notify.Notification{}
	}
}

func TestPublishRoundResult(t *testing.T) {
	p, _, client := setup(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "quiz:group:g1", "quiz:player:p1")
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	result := domain.RoundResult{
		GroupID:       "g1",
		QuestionIndex: 0,
		CorrectOption: 2,
		Answers: []domain.RoundAnswer{
			{PlayerID: "p1", DisplayName: "Alice", ChosenOption: 2, Correct: true, PointsAwarded: 85},
		},
	}
	require.NoError(t, p.PublishRoundResult(ctx, result))

	got := make(map[string]notify.Notification, 2)
	for i := 0; i < 2; i++ {
		channel, n := receive(t, sub.Channel())
		require.Equal(t, domain.EventNameRoundClosed, n.Event)
		got[channel] = n
	}

	// The group channel carries the full result, the player channel only
	// that player's own line.
	raw, err := json.Marshal(got["quiz:group:g1"].Data)
	require.NoError(t, err)
	var decoded domain.RoundResult
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, result, decoded)

	raw, err = json.Marshal(got["quiz:player:p1"].Data)
	require.NoError(t, err)
	var line domain.RoundAnswer
	require.NoError(t, json.Unmarshal(raw, &line))
	require.Equal(t, result.Answers[0], line)
}

func TestPublishLeaderboard(t *testing.T) {
	p, _, client := setup(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "quiz:group:g1")
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	lb := domain.Leaderboard{
		GroupID: "g1",
		Entries: []domain.LeaderboardEntry{
			{PlayerID: "p1", DisplayName: "Alice", Score: 180},
			{PlayerID: "p2", DisplayName: "Bob", Score: 95},
		},
	}
	require.NoError(t, p.PublishLeaderboard(ctx, "g1", lb))

	_, n := receive(t, sub.Channel())
	require.Equal(t, domain.EventNameQuizFinished, n.Event)

	raw, err := json.Marshal(n.Data)
	require.NoError(t, err)

	var decoded domain.Leaderboard
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, lb, decoded)
}

// The publisher is driven by the event bus in production; an engine event
// must end up on the wire without any direct call.
func TestPublisher_SubscribedToBus(t *testing.T) {
	_, eb, client := setup(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "quiz:group:g2")
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	eb.Publish(ctx, domain.EventQuizFinished{
		GroupID:     "g2",
		SessionID:   "s-1",
		Leaderboard: domain.Leaderboard{GroupID: "g2"},
	})

	_, n := receive(t, sub.Channel())
	require.Equal(t, domain.EventNameQuizFinished, n.Event)
}
