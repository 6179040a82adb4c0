package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Inverseit/crm-whatsapp-service/internal/api"
	"github.com/Inverseit/crm-whatsapp-service/internal/contact"
	"github.com/Inverseit/crm-whatsapp-service/internal/events"
	"github.com/Inverseit/crm-whatsapp-service/internal/flow"
	"github.com/Inverseit/crm-whatsapp-service/internal/genai"
	"github.com/Inverseit/crm-whatsapp-service/internal/messaging"
	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/Inverseit/crm-whatsapp-service/internal/notify"
	"github.com/Inverseit/crm-whatsapp-service/internal/store"
	"github.com/Inverseit/crm-whatsapp-service/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for salonbot state data
	DefaultStateDir = "/var/lib/salonbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "salonbot.db"
	// DefaultGreetingTemplate is the WhatsApp Business template for greetings
	DefaultGreetingTemplate = "greeting"
	// shutdownTimeout bounds the graceful HTTP shutdown
	shutdownTimeout = 15 * time.Second
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("salonbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("salonbot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseDSN      string
	StateDir         string
	OpenAIKey        string
	OpenAIModel      string
	APIAddr          string
	DefaultRegion    string
	WhatsAppProvider string
	WhatsAppAPIURL   string
	WhatsAppAPIKey   string
	WhatsAppPhoneID  string
	WhatsAppVerify   string
	GreetingTemplate string
	TemplateLanguage string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
	TelegramToken    string
	BackendURL       string
	AuthEmail        string
	AuthPassword     string
	AMQPURL          string
	AMQPExchange     string
}

// Flags holds command line flag values
type Flags struct {
	config  Config
	dbDSN   *string
	apiAddr *string
	model   *string
	region  *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseDSN:      os.Getenv("SALONBOT_DB_DSN"),
		StateDir:         util.GetEnvOrDefault("SALONBOT_STATE_DIR", DefaultStateDir),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		APIAddr:          util.GetEnvOrDefault("API_ADDR", api.DefaultAddr),
		DefaultRegion:    util.GetEnvOrDefault("DEFAULT_REGION", contact.DefaultRegion),
		WhatsAppProvider: util.GetEnvOrDefault("WHATSAPP_PROVIDER", "cloud"),
		WhatsAppAPIURL:   os.Getenv("WHATSAPP_API_URL"),
		WhatsAppAPIKey:   os.Getenv("WHATSAPP_API_KEY"),
		WhatsAppPhoneID:  os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		WhatsAppVerify:   os.Getenv("WHATSAPP_VERIFY_TOKEN"),
		GreetingTemplate: util.GetEnvOrDefault("WHATSAPP_GREETING_TEMPLATE", DefaultGreetingTemplate),
		TemplateLanguage: os.Getenv("WHATSAPP_TEMPLATE_LANGUAGE"),
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_WHATSAPP_FROM"),
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		BackendURL:       os.Getenv("BACKEND_URL"),
		AuthEmail:        os.Getenv("AUTH_EMAIL"),
		AuthPassword:     os.Getenv("AUTH_PASSWORD"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		AMQPExchange:     os.Getenv("AMQP_EXCHANGE"),
	}

	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
	}
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"DB_DSN_SET", config.DatabaseDSN != "",
		"STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"WHATSAPP_PROVIDER", config.WhatsAppProvider,
		"TELEGRAM_CONFIGURED", config.TelegramToken != "",
		"BACKEND_CONFIGURED", config.BackendURL != "",
		"AMQP_CONFIGURED", config.AMQPURL != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		config:  config,
		dbDSN:   flag.String("db-dsn", config.DatabaseDSN, "database DSN (postgres URL or SQLite path)"),
		apiAddr: flag.String("addr", config.APIAddr, "API listen address"),
		model:   flag.String("model", config.OpenAIModel, "OpenAI chat model"),
		region:  flag.String("region", config.DefaultRegion, "default phone number region"),
	}
	flag.Parse()
	return flags
}

func run(flags Flags) error {
	config := flags.config

	st, err := openStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	gaClient, err := genai.NewClient(genai.WithAPIKey(config.OpenAIKey), genai.WithModel(*flags.model))
	if err != nil {
		return err
	}

	contacts := contact.NewNormalizer(*flags.region)
	notifiers, cleanup := buildNotifiers(config)
	defer cleanup()

	finalizer := flow.NewFinalizer(st, notifiers...)
	engine := flow.NewEngine(st, contacts, flow.NewPromptBuilder(), flow.NewExtractor(gaClient),
		flow.NewAssembler(contacts), finalizer, config.GreetingTemplate)

	registry, verifier, err := buildTransports(config)
	if err != nil {
		return err
	}

	server := api.NewServer(engine, registry, st, verifier, api.WithAddr(*flags.apiAddr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	return <-errCh
}

func openStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Info("opening postgres store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Info("opening sqlite store", "path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildTransports wires the configured platform transports into a registry.
// The generic channel is always available; WhatsApp and Telegram only when
// their credentials are set.
func buildTransports(config Config) (*messaging.Registry, api.WebhookVerifier, error) {
	registry := messaging.NewRegistry()
	registry.Register(models.PlatformGeneric, messaging.NewConsoleService())

	var verifier api.WebhookVerifier
	switch config.WhatsAppProvider {
	case "twilio":
		if config.TwilioSID != "" {
			svc, err := messaging.NewTwilioService(config.TwilioSID, config.TwilioToken, config.TwilioFrom)
			if err != nil {
				return nil, nil, err
			}
			registry.Register(models.PlatformWhatsApp, svc)
		}
	default:
		if config.WhatsAppAPIKey != "" {
			var opts []messaging.CloudOption
			if config.WhatsAppAPIURL != "" {
				opts = append(opts, messaging.WithCloudAPIBase(config.WhatsAppAPIURL))
			}
			if config.TemplateLanguage != "" {
				opts = append(opts, messaging.WithTemplateLanguage(config.TemplateLanguage))
			}
			svc, err := messaging.NewCloudService(config.WhatsAppAPIKey, config.WhatsAppPhoneID, config.WhatsAppVerify, opts...)
			if err != nil {
				return nil, nil, err
			}
			registry.Register(models.PlatformWhatsApp, svc)
			verifier = svc
		}
	}

	if config.TelegramToken != "" {
		svc, err := messaging.NewTelegramService(config.TelegramToken)
		if err != nil {
			return nil, nil, err
		}
		registry.Register(models.PlatformTelegram, svc)
	}
	return registry, verifier, nil
}

// buildNotifiers assembles the optional booking notifiers. Missing
// configuration disables a notifier instead of failing startup.
func buildNotifiers(config Config) ([]flow.Notifier, func()) {
	var notifiers []flow.Notifier
	cleanup := func() {}

	if config.BackendURL != "" {
		c, err := notify.NewClient(config.BackendURL, config.AuthEmail, config.AuthPassword)
		if err != nil {
			slog.Warn("backend notifier disabled", "error", err)
		} else {
			notifiers = append(notifiers, c)
		}
	}

	if config.AMQPURL != "" {
		var opts []events.Option
		if config.AMQPExchange != "" {
			opts = append(opts, events.WithExchange(config.AMQPExchange))
		}
		pub, err := events.NewPublisher(config.AMQPURL, opts...)
		if err != nil {
			slog.Warn("event publisher disabled", "error", err)
		} else {
			notifiers = append(notifiers, pub)
			cleanup = func() {
				if err := pub.Close(); err != nil {
					slog.Warn("failed to close event publisher", "error", err)
				}
			}
		}
	}
	return notifiers, cleanup
}
