package ledger

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kantinpay/kantin/internal/calendar"
	"github.com/kantinpay/kantin/internal/middleware"
	"github.com/kantinpay/kantin/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"
)

// App is the main application, it contains all the components of the ledger
// service and is responsible for starting and stopping them.
type App struct {
	srv     *http.Server
	wg      *sync.WaitGroup
	Addr    string
	logger  *slog.Logger
	config  *Config
	store   store.Store
	service *Service
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "ledger"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

// Service is available once Start has returned.
func (a *App) Service() *Service {
	return a.service
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	loc, err := calendar.LoadLocation(a.config.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", a.config.Timezone, err)
	}
	calendar.SetDefaultLocation(loc)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := OpenStore(ctx, a.config, a.logger)
	if err != nil {
		return err
	}
	a.store = st

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(reg)

	registry := NewRegistry(st, Clock{Location: loc}, a.logger, metrics)
	if err := registry.Load(ctx); err != nil {
		st.Close()
		return err
	}
	a.service = NewService(registry, NewSlot(), a.logger, metrics)

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger))
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	api := NewAPI(a.service, a.logger)
	api.AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if a.config.StaticDir != "" {
		router.Handle("/*", http.FileServer(http.Dir(a.config.StaticDir)))
	}

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		st.Close()
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr), slog.Int("cards", registry.Len()))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

// Shutdown stops the HTTP server, flushes the cards and closes the store.
func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.logger.Error("shutting down http server", "err", err)
		}
	}

	a.wg.Wait()

	if a.service != nil {
		if err := a.service.Registry().Flush(ctx); err != nil {
			a.logger.Error("flushing cards", "err", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("closing store", "err", err)
		}
	}

	a.logger.Info("app stopped")
}

// OpenStore builds the durable store selected by config.StoreBackend.
func OpenStore(ctx context.Context, config *Config, logger *slog.Logger) (store.Store, error) {
	switch config.StoreBackend {
	case "file", "":
		s, err := store.NewFileStore(config.DataFile)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		logger.Info("using file store", slog.String("path", s.Path()))
		return s, nil
	case "pg":
		if config.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for pg backend")
		}
		db, err := store.OpenPG(ctx, config.DBDSN)
		if err != nil {
			return nil, err
		}
		s := store.NewPGStore(db)
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		logger.Info("using postgres store")
		return s, nil
	case "redis":
		if len(config.RedisAddrs) == 0 {
			return nil, fmt.Errorf("REDIS_ADDR is required for redis backend")
		}
		s := store.NewRedisStore(store.NewRedisClient(config.RedisAddrs, config.RedisPassword), config.RedisKey)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("using redis store", slog.String("key", config.RedisKey))
		return s, nil
	case "mem":
		logger.Warn("using in-memory store; cards are lost on restart")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND=%s", config.StoreBackend)
	}
}
