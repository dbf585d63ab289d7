package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/darigo/apiserver/config"
	"github.com/darigo/apiserver/internal/auth"
	"github.com/darigo/apiserver/internal/db"
	"github.com/darigo/apiserver/internal/handlers"
	"github.com/darigo/apiserver/internal/metrics"
	"github.com/darigo/apiserver/internal/mq"
	"github.com/darigo/apiserver/internal/ratelimit"
	"github.com/darigo/apiserver/internal/services"
	"github.com/darigo/apiserver/internal/storage"
	"github.com/darigo/apiserver/internal/store"
	"github.com/darigo/apiserver/internal/store/memstore"
	"github.com/darigo/apiserver/internal/store/mongostore"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// Server wraps the HTTP server, router and the backends it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *zap.Logger
	closers    []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// repositories is the data store selected by DB_DRIVER.
type repositories struct {
	users      services.UserRepository
	properties services.PropertyRepository
	ping       func(ctx context.Context) error
}

// New wires every component from cfg. It refuses to start when the
// configuration is unsafe.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger}

	repos, err := s.openRepositories(ctx, cfg)
	if err != nil {
		s.closeAll()
		return nil, err
	}

	codec, err := auth.NewCodec(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		s.closeAll()
		return nil, err
	}
	resolver := auth.NewResolver(codec, repos.users)
	policy := auth.NewPolicy(repos.users)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	userService := services.NewUserService(repos.users, repos.properties, codec, logger.Named("users"))
	userService.SetBcryptCost(cfg.BcryptCost)
	propertyService := services.NewPropertyService(repos.properties, repos.users, logger.Named("properties"))
	statsService := services.NewStatsService(repos.users, repos.properties)

	media, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.closeAll()
		return nil, fmt.Errorf("open media storage: %w", err)
	}
	var objects handlers.ObjectOpener
	if media != nil {
		s.addCloser("storage", media.Close)
		userService.SetMediaStore(media)
		propertyService.SetMediaStore(media)
		objects = media
		logger.Info("media storage enabled", zap.String("backend", cfg.Storage.Backend), zap.String("bucket", media.Bucket()))
	}

	bus, err := mq.Open(ctx, cfg.MQ, logger.Named("mq"))
	if err != nil {
		s.closeAll()
		return nil, fmt.Errorf("open event bus: %w", err)
	}
	if bus != nil {
		s.addCloser("mq", bus.Close)
		var events services.EventPublisher = bus
		if m != nil {
			events = m.InstrumentPublisher(bus)
		}
		userService.SetEventPublisher(events)
		propertyService.SetEventPublisher(events)
		logger.Info("event bus enabled", zap.String("backend", cfg.MQ.Backend))
	}

	limiter, err := s.openLimiter(ctx, cfg)
	if err != nil {
		s.closeAll()
		return nil, err
	}

	authn := handlers.NewAuthenticator(resolver, policy, m, logger.Named("auth"))
	authHandler := handlers.NewAuthHandler(userService, resolver, logger.Named("auth"))
	propertyHandler := handlers.NewPropertyHandler(propertyService, m, logger.Named("properties"), cfg.Storage.MaxUploadSize)
	userHandler := handlers.NewUserHandler(userService, statsService, logger.Named("users"), cfg.Storage.MaxUploadSize)
	adminHandler := handlers.NewAdminHandler(userService, propertyService, statsService, m, logger.Named("admin"))
	uploadHandler := handlers.NewUploadHandler(objects, logger.Named("uploads"))
	healthHandler := handlers.NewHealthHandler(cfg.DBDriver, repos.ping, logger)

	apiLimit := ratelimit.Requests(limiter, ratelimit.Rule{
		Name:   "api",
		Max:    cfg.RateLimit.APIRequests,
		Window: cfg.RateLimit.Window,
	}, logger)
	authFailureLimit := ratelimit.Failures(limiter, ratelimit.Rule{
		Name:   "auth",
		Max:    cfg.RateLimit.AuthFailures,
		Window: cfg.RateLimit.Window,
	}, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.RequestLogger(logger.Named("http")),
	)
	if m != nil {
		router.Use(m.Middleware)
		router.Handle("/metrics", m.Handler())
	}
	router.Get("/healthz", handlers.Healthz)
	router.Route("/uploads", func(r chi.Router) {
		handlers.UploadRouter(r, uploadHandler)
	})
	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout), apiLimit)
		r.Get("/health", healthHandler.Health)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler, authn, authFailureLimit)
		})
		r.Route("/properties", func(r chi.Router) {
			handlers.PropertyRouter(r, propertyHandler, authn)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, userHandler, authn)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, adminHandler, authn)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 3001
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	switch cfg.DBDriver {
	case "postgres":
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return repositories{}, fmt.Errorf("open postgres: %w", err)
		}
		s.addCloser("postgres", conn.Close)
		return repositories{
			users:      store.NewUserRepository(conn),
			properties: store.NewPropertyRepository(conn),
			ping:       conn.PingContext,
		}, nil
	case "mongo":
		client, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return repositories{}, err
		}
		s.addCloser("mongo", func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return client.Disconnect(closeCtx)
		})
		database := client.Database(cfg.Mongo.Database)
		if err := mongostore.EnsureIndexes(ctx, database); err != nil {
			return repositories{}, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return repositories{
			users:      mongostore.NewUserRepository(database),
			properties: mongostore.NewPropertyRepository(database),
			ping: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
		}, nil
	case "memory":
		s.logger.Warn("using the in-memory store; data is lost on restart")
		return repositories{
			users:      memstore.NewUserRepository(),
			properties: memstore.NewPropertyRepository(),
		}, nil
	default:
		return repositories{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// openLimiter prefers Redis so limits hold across replicas.
func (s *Server) openLimiter(ctx context.Context, cfg config.Config) (ratelimit.Limiter, error) {
	if cfg.Redis.Addr == "" {
		return ratelimit.NewMemoryLimiter(), nil
	}
	client, err := ratelimit.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	s.addCloser("redis", client.Close)
	return ratelimit.NewRedisLimiter(client), nil
}

func (s *Server) addCloser(name string, fn func() error) {
	s.closers = append(s.closers, namedCloser{name: name, close: fn})
}

// closeAll releases backends in reverse order of opening.
func (s *Server) closeAll() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.close(); err != nil {
			s.logger.Warn("close failed", zap.String("backend", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes every backend.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	httpErr := s.httpServer.Shutdown(ctx)
	return errors.Join(httpErr, s.closeAll())
}
