package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"groupquiz/internal/event"
)

type namedEvent string

func (e namedEvent) Name() string { return string(e) }

type subscriber struct {
	name        string
	subscribeTo []string
}

func TestBus_PublishSubscribe(t *testing.T) {
	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a subscriber only receives events it subscribed to": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						namedEvent("quiz.round_closed"),
						namedEvent("quiz.finished"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"quiz.round_closed"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{namedEvent("quiz.round_closed")}, out.received["s1"])
			},
		},

		"every publish of a name is delivered": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						namedEvent("quiz.round_closed"),
						namedEvent("quiz.round_closed"),
						namedEvent("quiz.round_closed"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"quiz.round_closed"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Len(t, out.received["s1"], 3)
			},
		},

		"an event fans out to all subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						namedEvent("quiz.finished"),
					},
					subscribers: []subscriber{
						{
							name:        "telemetry",
							subscribeTo: []string{"quiz.finished"},
						},
						{
							name:        "notify",
							subscribeTo: []string{"quiz.finished", "quiz.round_closed"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{namedEvent("quiz.finished")}, out.received["telemetry"])
				assert.ElementsMatch(t, []event.Event{namedEvent("quiz.finished")}, out.received["notify"])
			},
		},

		"an event with no subscribers is dropped": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						namedEvent("quiz.cancelled"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"quiz.finished"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Empty(t, out.received["s1"])
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus()
			for _, s := range in.subscribers {
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

// TestBus_HandlerFailureIsolated verifies that a panicking or failing
// handler never breaks delivery to its peers or the publisher.
func TestBus_HandlerFailureIsolated(t *testing.T) {
	b := event.NewBus()

	b.Subscribe("quiz.round_closed", func(ctx context.Context, e event.Event) error {
		panic("boom")
	})
	b.Subscribe("quiz.round_closed", func(ctx context.Context, e event.Event) error {
		return errors.New("handler failed")
	})

	var (
		mu       sync.Mutex
		received int
	)
	b.Subscribe("quiz.round_closed", func(ctx context.Context, e event.Event) error {
		mu.Lock()
		received++
		mu.Unlock()
		return nil
	})

	b.Publish(context.Background(), namedEvent("quiz.round_closed"))
	b.Publish(context.Background(), namedEvent("quiz.round_closed"))
	b.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, received)
}
