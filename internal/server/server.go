package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"groupquiz/internal/event"
	"groupquiz/internal/gateway"
	"groupquiz/internal/notify"
	"groupquiz/internal/quiz"
	"groupquiz/internal/schedule"
	"groupquiz/internal/telemetry"
	"groupquiz/internal/transport/telegram"
	"groupquiz/internal/transport/ws"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Quiz struct {
		JoinWindowSeconds      int
		DefaultQuestionSeconds int
		MinQuestionSeconds     int
	}

	Redis struct {
		Notify struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Gateway struct {
		Mode string // "telegram" or "websocket"

		Telegram struct {
			Token string
			Debug bool
		}

		Websocket struct {
			URL string
		}
	}
}

// runnableGateway is a transport adapter that both implements the outbound
// gateway contract and pumps inbound messages into the engine.
type runnableGateway interface {
	gateway.Gateway
	Run(ctx context.Context, inbound gateway.Inbound) error
}

type Server struct {
	c Config

	eb     *event.Bus
	engine *quiz.Engine
	gw     runnableGateway

	infra struct {
		redis redis.UniversalClient
	}

	http *http.Server
}

func Init(ctx context.Context, c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()
	telemetry.ObserveBus(s.eb)

	if err := s.initRedis(ctx); err != nil {
		return nil, fmt.Errorf("server: init redis: %w", err)
	}

	if err := s.initGateway(ctx); err != nil {
		return nil, fmt.Errorf("server: init gateway: %w", err)
	}

	s.engine = quiz.NewEngine(quiz.Config{
		Gateway:   s.gw,
		EventBus:  s.eb,
		Scheduler: schedule.New(),
		Settings: quiz.Settings{
			JoinWindow:          time.Duration(c.Quiz.JoinWindowSeconds) * time.Second,
			DefaultQuestionTime: time.Duration(c.Quiz.DefaultQuestionSeconds) * time.Second,
			MinQuestionTime:     time.Duration(c.Quiz.MinQuestionSeconds) * time.Second,
		},
	})

	s.initHTTP()
	return s, nil
}

// initRedis connects the notify mirror. Redis is optional: with no addrs
// configured the mirror is simply not wired.
func (s *Server) initRedis(ctx context.Context) error {
	if len(s.c.Redis.Notify.Addrs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Notify.Addrs,
		Password: s.c.Redis.Notify.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	notify.NewPublisher(notify.Config{
		EventBus: s.eb,
		Redis:    r,
		Prefix:   s.c.Redis.Notify.Prefix,
	})

	return nil
}

func (s *Server) initGateway(ctx context.Context) error {
	switch s.c.Gateway.Mode {
	case "telegram":
		gw, err := telegram.New(telegram.Config{
			Token: s.c.Gateway.Telegram.Token,
			Debug: s.c.Gateway.Telegram.Debug,
		})
		if err != nil {
			return err
		}
		s.gw = gw
		return nil

	case "websocket":
		gw, err := ws.Dial(ctx, ws.Config{URL: s.c.Gateway.Websocket.URL})
		if err != nil {
			return err
		}
		s.gw = gw
		return nil

	default:
		return fmt.Errorf("unknown gateway mode %q", s.c.Gateway.Mode)
	}
}

func (s *Server) initHTTP() {
	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Start runs the gateway pump and the ops HTTP server until ctx is
// cancelled or either fails.
func (s *Server) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gateway %s running", s.c.Gateway.Mode))
		err := s.gw.Run(ctx, s.engine)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: ops HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Shutdown aborts live sessions, drains the event bus and closes infra.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.engine.CancelAll(ctx, "the quiz server is shutting down")
	s.eb.Stop()

	if s.infra.redis != nil {
		if err := s.infra.redis.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
