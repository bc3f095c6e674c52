package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/terminfinder/pkg/config"
	"github.com/diagnosis/terminfinder/pkg/database"
	"github.com/diagnosis/terminfinder/pkg/events"
	"github.com/diagnosis/terminfinder/pkg/logger"
	mw "github.com/diagnosis/terminfinder/pkg/middleware"
	"github.com/diagnosis/terminfinder/pkg/ratelimit"
	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/diagnosis/terminfinder/services/appointments/internal/handlers"
	"github.com/diagnosis/terminfinder/services/appointments/internal/repository"
	"github.com/diagnosis/terminfinder/services/appointments/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.SetDefault(logger.New(os.Stdout, cfg.Log.Level))

	ctx := context.Background()

	// Open store
	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "driver", cfg.Store.Driver)
		os.Exit(1)
	}
	defer st.close()

	// Connect to event bus
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.Enabled {
		p, err := events.NewNATSPublisher(cfg.NATS.URL, "appointments")
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		publisher = p
	}
	defer publisher.Close()

	// Throttle password verification
	var verifyLimit func(http.Handler) http.Handler
	if cfg.Redis.Enabled {
		rdb, err := ratelimit.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		limiter := ratelimit.NewRedisLimiter(rdb, "verify", cfg.RateLimit.VerifyAttempts, cfg.RateLimit.VerifyWindow)
		verifyLimit = ratelimit.Middleware(limiter, handlers.VerifyRateLimitKeys)
	}

	// Initialize services
	guard := service.NewPasswordGuard(st.repo, nil)
	svc := service.NewAppointmentService(st.repo, guard, publisher)

	// Initialize handlers
	h := handlers.New(svc, cfg.Auth, verifyLimit)

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("appointments"))
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handlers.PasswordHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.Health(st.ping))

	r.Mount("/v1", h.Routes())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down appointments service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Appointments service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting appointments service", "port", cfg.Server.Port, "store", cfg.Store.Driver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Appointments service error", "error", err)
		os.Exit(1)
	}
	<-done
}

// store is the opened persistence backend. ping is nil for the memory
// driver.
type store struct {
	repo  repository.Repository
	ping  func(ctx context.Context) error
	close func()
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	if cfg.Store.Driver == "memory" {
		repo := repository.NewMemoryRepository()
		if cfg.Store.SeedCustomerID != "" {
			id, err := uuid.Parse(cfg.Store.SeedCustomerID)
			if err != nil {
				return nil, fmt.Errorf("invalid SEED_CUSTOMER_ID: %w", err)
			}
			repo.AddCustomer(domain.Customer{ID: id, Name: "local", Status: domain.CustomerStarted})
			logger.Info("Seeded customer", "customer_id", id)
		}
		return &store{repo: repo, close: func() {}}, nil
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &store{
		repo:  repository.NewPostgresRepository(pool),
		ping:  pool.Ping,
		close: pool.Close,
	}, nil
}
