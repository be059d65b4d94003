package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"groupquiz/internal/domain"
	"groupquiz/internal/event"
)

const maxConcurrent = 100

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Publisher mirrors round results and final leaderboards onto redis
// pub/sub channels for out-of-band consumers (dashboards, log tooling).
// Delivery is fire-and-forget: a failed publish is logged by the event bus
// and never reaches the quiz engine.
type Publisher struct {
	redis  redis.UniversalClient
	prefix string
}

func NewPublisher(c Config) *Publisher {
	p := &Publisher{
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	c.EventBus.Subscribe(domain.EventNameRoundClosed, func(ctx context.Context, e event.Event) error {
		return p.PublishRoundResult(ctx, e.(domain.EventRoundClosed).Result)
	})
	c.EventBus.Subscribe(domain.EventNameQuizFinished, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventQuizFinished)
		return p.PublishLeaderboard(ctx, ev.GroupID, ev.Leaderboard)
	})

	return p
}

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishRoundResult publishes the full result on the group channel and a
// per-player copy of each player's own line.
func (p *Publisher) PublishRoundResult(ctx context.Context, r domain.RoundResult) error {
	if err := p.publish(ctx, p.groupChannel(r.GroupID), domain.EventNameRoundClosed, r); err != nil {
		return err
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, a := range r.Answers {
		eg.Go(func() error {
			return p.publish(ctx, p.playerChannel(a.PlayerID), domain.EventNameRoundClosed, a)
		})
	}

	return eg.Wait()
}

func (p *Publisher) PublishLeaderboard(ctx context.Context, groupID string, l domain.Leaderboard) error {
	return p.publish(ctx, p.groupChannel(groupID), domain.EventNameQuizFinished, l)
}

func (p *Publisher) publish(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %v", event, err)
	}

	return p.redis.Publish(ctx, channel, b).Err()
}

func (p *Publisher) groupChannel(groupID string) string {
	return fmt.Sprintf("%s:group:%s", p.prefix, groupID)
}

func (p *Publisher) playerChannel(playerID string) string {
	return fmt.Sprintf("%s:player:%s", p.prefix, playerID)
}
