package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BatmanBruc/bat-bot-leecher/internal/config"
	"github.com/BatmanBruc/bat-bot-leecher/internal/entitlement"
	"github.com/BatmanBruc/bat-bot-leecher/internal/fetcher"
	"github.com/BatmanBruc/bat-bot-leecher/internal/handlers"
	"github.com/BatmanBruc/bat-bot-leecher/internal/keylock"
	"github.com/BatmanBruc/bat-bot-leecher/internal/logging"
	"github.com/BatmanBruc/bat-bot-leecher/internal/metrics"
	"github.com/BatmanBruc/bat-bot-leecher/internal/middleware"
	"github.com/BatmanBruc/bat-bot-leecher/internal/payment"
	"github.com/BatmanBruc/bat-bot-leecher/internal/scheduler"
	"github.com/BatmanBruc/bat-bot-leecher/internal/shortener"
	"github.com/BatmanBruc/bat-bot-leecher/internal/token"
	"github.com/BatmanBruc/bat-bot-leecher/store"
	"github.com/BatmanBruc/bat-bot-leecher/types"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "leecher",
	Short:         "Telegram share-link downloader with quota, verification and premium access",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply Postgres migrations",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}
		return store.Migrate(cmd.Context(), cfg.PostgresDSN, direction)
	},
}

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Print the configured plan catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		catalog, err := cfg.Catalog()
		if err != nil {
			return err
		}
		for _, p := range catalog.List() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s %4dh  ₹%-4d %s\n", p.Key, p.Hours, p.Price, p.Name)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "leecher %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "env file loaded before the process environment")
	rootCmd.AddCommand(serveCmd, migrateCmd, plansCmd, versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

// openStore returns the configured backend and its close function.
func openStore(ctx context.Context, cfg *config.Config) (types.StateStore, func(), error) {
	switch cfg.StoreBackend {
	case "redis":
		rdb, err := store.NewRedisClient(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return store.NewRedisStateStore(rdb, cfg.StoreTTLHours), func() { _ = rdb.Close() }, nil
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return pg, pg.Close, nil
	default:
		log.Warn().Msg("Using the in-memory store; state is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.BotToken == "" {
		return errors.New("BOT_TOKEN is not set")
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	b, err := bot.New(
		cfg.BotToken,
		bot.WithHTTPClient(50*time.Second, &http.Client{Timeout: 10 * time.Minute}),
	)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	link, err := verificationLink(ctx, cfg, b)
	if err != nil {
		return err
	}
	sc, err := cfg.ShortenerConfig()
	if err != nil {
		return err
	}
	short, err := shortener.New(sc)
	if err != nil {
		return err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}

	locks := keylock.New()
	tokens := token.NewService(st, locks, short, token.Config{
		ValidityHours: cfg.TokenValidityHours,
		Link:          link,
	})
	payments := payment.NewService(st, locks, catalog, payment.UPI{PayeeName: cfg.Payment.PayeeName}, payment.Config{
		Payee: cfg.Payment.UPIID,
		TTL:   cfg.Payment.TTL,
	})
	operators := cfg.OperatorIDs()
	if len(operators) == 0 {
		log.Warn().Msg("No OWNER_ID or ADMIN_IDS set; payments cannot be confirmed")
	}
	access := entitlement.NewService(st, locks, tokens, payments, entitlement.NewOperators(operators...), entitlement.Config{
		FreeQuota:    cfg.FreeDownloads,
		PendingLimit: cfg.PendingPaymentLimit,
	})

	downloads := scheduler.NewScheduler(
		fetcher.NewTeraBox(fetcher.Config{Cookie: cfg.Download.Cookie}),
		access,
		b,
		scheduler.Config{
			Workers:        cfg.Workers,
			QueueSize:      cfg.QueueSize,
			MaxFileSize:    cfg.Download.MaxFileSize,
			PremiumMaxSize: cfg.Download.PremiumMaxSize,
			SaveChannel:    cfg.Download.SaveChannel,
		},
	)

	h := handlers.NewHandlers(access, tokens, payments, downloads, handlers.Options{
		UPIID:          cfg.Payment.UPIID,
		PaymentTTL:     cfg.Payment.TTL,
		PaymentChannel: cfg.PaymentChannel,
		ShortenerName:  shortenerName(sc),
	})

	middlewares := middleware.NewMessageAnalyzer(st)
	handlerChain := middleware.RecoverMiddleware(
		middlewares.IdentifyUserMiddleware(
			middlewares.AnalyzeMessageMiddleware(
				h.MainHandler,
			),
		),
	)

	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, handlerChain)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, handlerChain)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return downloads.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.MetricsAddr)
		})
	}
	g.Go(func() error {
		log.Info().Str("store", cfg.StoreBackend).Str("shortener", string(sc.Provider)).Msg("Bot started. Press Ctrl+C to stop.")
		b.Start(gctx)
		return nil
	})
	return g.Wait()
}

// verificationLink prefers VERIFY_BASE_URL, then a deep link to the bot.
func verificationLink(ctx context.Context, cfg *config.Config, b *bot.Bot) (token.LinkBuilder, error) {
	if base := strings.TrimSpace(cfg.VerifyBaseURL); base != "" {
		return token.QueryLink(base), nil
	}
	username := strings.TrimPrefix(strings.TrimSpace(cfg.BotUsername), "@")
	if username == "" {
		me, err := b.GetMe(ctx)
		if err != nil {
			return nil, fmt.Errorf("get bot identity: %w", err)
		}
		username = me.Username
	}
	return token.DeepLink(username), nil
}

func shortenerName(sc shortener.Config) string {
	if sc.Provider == shortener.ProviderNone {
		return ""
	}
	if sc.BaseURL != "" {
		if _, rest, ok := strings.Cut(sc.BaseURL, "//"); ok {
			host, _, _ := strings.Cut(rest, "/")
			return host
		}
	}
	return string(sc.Provider)
}
