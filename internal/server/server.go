package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/quotient/internal/api"
	"github.com/victornm/quotient/internal/event"
	"github.com/victornm/quotient/internal/feed"
	"github.com/victornm/quotient/internal/group"
	"github.com/victornm/quotient/internal/identity"
	"github.com/victornm/quotient/internal/leaderboard"
	"github.com/victornm/quotient/internal/logging"
	"github.com/victornm/quotient/internal/quiz"
	"github.com/victornm/quotient/internal/quote"
	"github.com/victornm/quotient/internal/score"
	"github.com/victornm/quotient/internal/session"
	"github.com/victornm/quotient/internal/store"
	"github.com/victornm/quotient/internal/telemetry"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	HTTP struct {
		Port int32 `mapstructure:"port"`
		// PublicURL is where the web app is served. Invite links and WebSocket origins use it.
		PublicURL    string `mapstructure:"public_url"`
		SecureCookie bool   `mapstructure:"secure_cookie"`
	} `mapstructure:"http"`

	GRPC struct {
		Port int32 `mapstructure:"port"`
	} `mapstructure:"grpc"`

	Storage struct {
		Driver      string `mapstructure:"driver"`
		PostgresURL string `mapstructure:"postgres_url"`
	} `mapstructure:"storage"`

	Redis struct {
		Addrs  []string `mapstructure:"addrs"`
		Pass   string   `mapstructure:"pass"`
		Prefix string   `mapstructure:"prefix"`
	} `mapstructure:"redis"`

	Identity struct {
		Endpoint string        `mapstructure:"endpoint"`
		Project  string        `mapstructure:"project"`
		APIKey   string        `mapstructure:"api_key"`
		Timeout  time.Duration `mapstructure:"timeout"`
		NameTTL  time.Duration `mapstructure:"name_ttl"`
	} `mapstructure:"identity"`

	Quiz struct {
		AttemptTTL   time.Duration `mapstructure:"attempt_ttl"`
		MaxQuestions int           `mapstructure:"max_questions"`
	} `mapstructure:"quiz"`

	Leaderboard struct {
		PublishInterval time.Duration `mapstructure:"publish_interval"`
	} `mapstructure:"leaderboard"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		File   struct {
			Enabled    bool   `mapstructure:"enabled"`
			Path       string `mapstructure:"path"`
			MaxSizeMB  int    `mapstructure:"max_size_mb"`
			MaxBackups int    `mapstructure:"max_backups"`
			MaxAgeDays int    `mapstructure:"max_age_days"`
			Compress   bool   `mapstructure:"compress"`
		} `mapstructure:"file"`
	} `mapstructure:"log"`
}

// DefaultConfig runs against a local Redis with the in-memory store.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.HTTP.PublicURL = "http://localhost:8080"
	c.GRPC.Port = 8081
	c.Storage.Driver = StorageMemory
	c.Redis.Addrs = []string{"localhost:6379"}
	c.Redis.Prefix = "quotient"
	c.Identity.Endpoint = "https://cloud.appwrite.io/v1"
	c.Identity.Timeout = 10 * time.Second
	c.Identity.NameTTL = 10 * time.Minute
	c.Quiz.AttemptTTL = 2 * time.Hour
	c.Quiz.MaxQuestions = quiz.MaxQuestions
	c.Leaderboard.PublishInterval = 200 * time.Millisecond
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Log.File.MaxSizeMB = 100
	c.Log.File.MaxBackups = 3
	c.Log.File.MaxAgeDays = 28
	return c
}

// Logging returns the logger settings of c.
func (c Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		File: logging.FileConfig{
			Enabled:    c.Log.File.Enabled,
			Path:       c.Log.File.Path,
			MaxSizeMB:  c.Log.File.MaxSizeMB,
			MaxBackups: c.Log.File.MaxBackups,
			MaxAgeDays: c.Log.File.MaxAgeDays,
			Compress:   c.Log.File.Compress,
		},
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
		store    store.Store
	}

	service struct {
		identity    *identity.Client
		names       *identity.Directory
		groups      *group.Service
		quotes      *quote.Service
		score       *score.Service
		session     *session.Service
		leaderboard *leaderboard.Service
	}

	api    *api.API
	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

func Init(ctx context.Context, c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(ctx); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra(ctx context.Context) error {
	if err := s.initRedis(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initStore(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	return nil
}

func (s *Server) initRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})
	s.infra.redis = r

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	return r.Ping(ctx).Err()
}

func (s *Server) initStore(ctx context.Context) error {
	switch s.c.Storage.Driver {
	case StorageMemory, "":
		slog.WarnContext(ctx, "server: using in-memory store, data is lost on restart")
		s.infra.store = store.NewMemory()
		return nil

	case StoragePostgres:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(s.c.Storage.PostgresURL)
		if err != nil {
			return err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return err
		}
		s.infra.postgres = db

		if err := db.Ping(ctx); err != nil {
			return err
		}

		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		s.infra.store = pg
		return nil

	default:
		return fmt.Errorf("unknown driver %q", s.c.Storage.Driver)
	}
}

func (s *Server) initService() {
	s.service.identity = identity.NewClient(identity.Config{
		Endpoint: s.c.Identity.Endpoint,
		Project:  s.c.Identity.Project,
		APIKey:   s.c.Identity.APIKey,
		Timeout:  s.c.Identity.Timeout,
	})

	s.service.names = identity.NewDirectory(identity.DirectoryConfig{
		Users:  s.service.identity,
		Redis:  s.infra.redis,
		Prefix: s.c.Redis.Prefix,
		TTL:    s.c.Identity.NameTTL,
	})

	s.service.groups = group.NewService(group.Config{
		EventBus: s.eb,
		Store:    s.infra.store,
	})

	s.service.quotes = quote.NewService(quote.Config{
		EventBus: s.eb,
		Store:    s.infra.store,
		Groups:   s.service.groups,
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		Store:    s.infra.store,
	})

	s.service.session = session.NewService(session.Config{
		Redis:       s.infra.redis,
		Prefix:      s.c.Redis.Prefix,
		Quotes:      s.service.quotes,
		Score:       s.service.score,
		AttemptTTL:  s.c.Quiz.AttemptTTL,
		QuizOptions: []quiz.Option{quiz.WithMaxQuestions(s.c.Quiz.MaxQuestions)},
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus:        s.eb,
		Score:           s.service.score,
		Names:           s.service.names,
		Redis:           s.infra.redis,
		Prefix:          s.c.Redis.Prefix,
		PublishInterval: s.c.Leaderboard.PublishInterval,
	})
}

func (s *Server) initAPI() {
	s.api = api.New(api.Config{
		EventBus:     s.eb,
		Identity:     s.service.identity,
		Groups:       s.service.groups,
		Quotes:       s.service.quotes,
		Sessions:     s.service.session,
		Leaderboard:  s.service.leaderboard,
		Feed:         feed.New(feed.Config{Redis: s.infra.redis, Prefix: s.c.Redis.Prefix}),
		PublicURL:    s.c.HTTP.PublicURL,
		SecureCookie: s.c.HTTP.SecureCookie,
	})

	e := gin.New()
	e.Use(gin.Recovery(), api.Logger())
	e.GET("/healthz", api.Healthz)
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	s.api.Register(e)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.grpc = grpc.NewServer(telemetry.GRPCServerOptions(slog.Default())...)
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)
}

// Start serves HTTP and gRPC until Shutdown or a listener fails.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		return fmt.Errorf("grpc server: listen: %w", err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return eg.Wait()
}

// Shutdown stops accepting requests, lets in-flight ones and pending events finish, then closes clients.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()

	// Hijacked WebSocket connections are not covered by http.Server.Shutdown.
	s.api.Close()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()
	s.closeInfra()

	slog.InfoContext(ctx, "server: shutdown completed")
}

func (s *Server) closeInfra() {
	if s.infra.redis != nil {
		if err := s.infra.redis.Close(); err != nil {
			slog.Error("server: close redis failed", "error", err)
		}
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}
}
