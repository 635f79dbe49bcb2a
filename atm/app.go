package atm

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"

	"github.com/alovak/atm-playground/atm/models"
	"github.com/alovak/atm-playground/bank"
	"github.com/alovak/atm-playground/cardprovider"
	card8583 "github.com/alovak/atm-playground/cardprovider/iso8583"
	"github.com/alovak/atm-playground/depot"
	"github.com/alovak/atm-playground/internal/expiry"
	"github.com/alovak/atm-playground/internal/middleware"
)

// App is the main application, it contains all the components of the cash
// machine and is responsible for starting and stopping them.
type App struct {
	srv               *http.Server
	wg                *sync.WaitGroup
	Addr              string
	ISO8583ServerAddr string
	logger            *slog.Logger
	config            *Config

	// closers run in reverse order on shutdown
	closers   []func()
	stopSweep context.CancelFunc
	ready     []func(ctx context.Context) error
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "atm"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger))

	ledger, err := a.setupBank(router)
	if err != nil {
		a.close()
		return err
	}

	cards, err := a.setupCards(router)
	if err != nil {
		a.close()
		return err
	}

	cash, err := a.setupDepot()
	if err != nil {
		a.close()
		return err
	}

	machine := NewMachine(a.logger, cards, ledger, cash, DefaultCatalogue().WithMaxAmount(a.config.MaxWithdrawal))
	NewAPI(machine, cash).AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, check := range a.ready {
			if err := check(ctx); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		a.close()
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler: router,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

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

// setupBank returns the remote bank client when BankURL is set, otherwise an
// in-process ledger whose API is mounted on the router.
func (a *App) setupBank(router chi.Router) (Bank, error) {
	if a.config.BankURL != "" {
		a.logger.Info("using remote bank", slog.String("url", a.config.BankURL))
		return bank.NewClient(a.config.BankURL, &http.Client{Timeout: 10 * time.Second}), nil
	}

	var repository *bank.Repository
	switch a.config.RepoBackend {
	case "pg":
		if a.config.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for pg backend")
		}
		db, err := sql.Open("postgres", a.config.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		a.closers = append(a.closers, func() { db.Close() })
		repository = bank.NewPGRepository(db)
	case "mem", "":
		repository = bank.NewRepository()
	default:
		return nil, fmt.Errorf("unsupported REPO_BACKEND=%s", a.config.RepoBackend)
	}
	a.ready = append(a.ready, repository.Ping)

	ledger := bank.NewLedger(a.logger, repository)
	bank.NewAPI(ledger).AppendRoutes(router)

	if a.config.StaleTransactionAge > 0 {
		a.startSweeper(ledger, a.config.StaleTransactionAge)
	}

	return ledger, nil
}

// startSweeper aborts ledger transactions left open by a crashed withdrawal.
func (a *App) startSweeper(ledger *bank.Ledger, maxAge time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopSweep = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ticker := time.NewTicker(maxAge)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := ledger.AbortStale(ctx, maxAge)
				if err != nil {
					a.logger.Error("aborting stale transactions", "err", err)
					continue
				}
				if n > 0 {
					a.logger.Info("stale transactions aborted", slog.Int("count", n))
				}
			}
		}
	}()
}

// setupCards starts the card provider behind its ISO 8583 server and returns
// a connected client.
func (a *App) setupCards(router chi.Router) (CardProvider, error) {
	policy := expiry.DefaultPolicy()
	if a.config.ExpiryTZ != "" {
		loc, err := time.LoadLocation(a.config.ExpiryTZ)
		if err != nil {
			a.logger.Info("invalid ExpiryTZ; using default UTC", slog.String("tz", a.config.ExpiryTZ), slog.Any("err", err))
		} else {
			policy.Location = loc
		}
	}
	for product, years := range a.config.ProductYears {
		policy.ProductYears[product] = years
	}

	pvv, closePVV, err := newPVVProvider(a.config)
	if err != nil {
		return nil, fmt.Errorf("creating pvv provider: %w", err)
	}
	a.closers = append(a.closers, closePVV)

	service := cardprovider.NewService(a.logger, cardprovider.NewRepository(), pvv, cardprovider.Config{
		BINPrefix:      a.config.BINPrefix,
		CardProduct:    a.config.CardProduct,
		MaxPINAttempts: a.config.MaxPINAttempts,
		PANHashKey:     []byte(a.config.PANHashKey),
		Expiry:         policy,
	})
	cardprovider.NewAPI(service).AppendRoutes(router)

	iso8583Server := card8583.NewServer(a.logger, a.config.ISO8583Addr, service)
	if err := iso8583Server.Start(); err != nil {
		return nil, fmt.Errorf("starting iso8583 server: %w", err)
	}
	a.ISO8583ServerAddr = iso8583Server.Addr
	a.closers = append(a.closers, func() {
		if err := iso8583Server.Close(); err != nil {
			a.logger.Error("closing iso8583 server", "err", err)
		}
	})

	client := card8583.NewClient(a.logger, iso8583Server.Addr)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connecting iso8583 client: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			a.logger.Error("closing iso8583 client", "err", err)
		}
	})

	return client, nil
}

func (a *App) setupDepot() (*depot.Depot, error) {
	var store depot.Store = depot.NewMemoryStore()

	if a.config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: a.config.RedisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}

		a.closers = append(a.closers, func() { client.Close() })
		a.ready = append(a.ready, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		store = depot.NewRedisStore(client, a.config.RedisKey)
	}

	cash := depot.New(a.logger, store)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, entry := range a.config.Stock {
		note := models.Banknote{Currency: models.Currency(entry.Currency), Value: entry.Value}
		if err := cash.Load(ctx, note, entry.Count); err != nil {
			return nil, fmt.Errorf("loading %s: %w", note, err)
		}
	}

	return cash, nil
}

func (a *App) close() {
	if a.stopSweep != nil {
		a.stopSweep()
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	if a.srv != nil {
		a.srv.Shutdown(context.Background())
	}

	a.close()

	a.wg.Wait()

	a.logger.Info("app stopped")
}
