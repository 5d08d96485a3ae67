package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/qacraft/testplanbot/internal/api"
	"github.com/qacraft/testplanbot/internal/awsauth"
	"github.com/qacraft/testplanbot/internal/flow"
	"github.com/qacraft/testplanbot/internal/genai"
	"github.com/qacraft/testplanbot/internal/messaging"
	"github.com/qacraft/testplanbot/internal/secrets"
	"github.com/qacraft/testplanbot/internal/sheets"
	"github.com/qacraft/testplanbot/internal/store"
)

// Default configuration constants
const (
	// DefaultCredentialsFile is the default path of the encrypted credential bundle
	DefaultCredentialsFile = "slack_google_credentials.enc"
	// DefaultTemplateSheetID is the spreadsheet duplicated for each test plan
	DefaultTemplateSheetID = "1hALS2c3KUdb3A6tGYaOZAe_WlV9Km241mDwsTE30rso"
	// DefaultRoleARN is the role assumed for model invocations
	DefaultRoleARN = "arn:aws:iam::511738828901:role/test-plan-creator"
	// DefaultExternalID is the external id presented during role assumption
	DefaultExternalID = "test-plan-creator"
	// DefaultAPIAddr is the listen address of the webhook server
	DefaultAPIAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := loadCredentials(flags)
	if err != nil {
		slog.Error("Failed to load credentials", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	sheetClient, err := sheets.NewClient(ctx, creds.GoogleServiceAccountInfo)
	if err != nil {
		slog.Error("Failed to initialize sheet client", "error", err)
		os.Exit(1)
	}

	model, issuer, err := buildModelBackend(ctx, flags)
	if err != nil {
		slog.Error("Failed to initialize model backend", "error", err)
		os.Exit(1)
	}

	messenger := messaging.NewSlackService(creds.SlackBotToken)
	planner := flow.NewPlanner(issuer, model, sheetClient, messenger, *flags.templateSheetID)
	intake := flow.NewIntakeFlow(st, messenger, planner)
	server := api.NewServer(intake, creds.SlackSigningSecret, api.WithAddr(*flags.apiAddr))

	slog.Info("Bootstrapping Test Plan Creator",
		"api_addr", *flags.apiAddr,
		"model_backend", *flags.modelBackend,
		"db_driver", *flags.dbDriver)
	if err := server.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("Test Plan Creator failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Test Plan Creator exited successfully")
}

// Config holds environment configuration
type Config struct {
	CredentialsFile string
	SecretKey       string
	SlackBotToken   string
	SlackSigningKey string
	DbDriver        string
	DatabaseURL     string
	APIAddr         string
	TemplateSheetID string
	RoleARN         string
	ExternalID      string
	AWSRegion       string
	BedrockModelID  string
	ModelBackend    string
	OpenAIKey       string
}

// Flags holds command line flag values
type Flags struct {
	credentialsFile *string
	dbDriver        *string
	dbDSN           *string
	apiAddr         *string
	templateSheetID *string
	roleARN         *string
	externalID      *string
	awsRegion       *string
	bedrockModelID  *string
	modelBackend    *string
	openaiKey       *string
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
		CredentialsFile: os.Getenv("CREDENTIALS_FILE"),
		SecretKey:       os.Getenv("TEST_CASE_CREATION_SECRET_KEY"),
		SlackBotToken:   os.Getenv("SLACK_BOT_TOKEN"),
		SlackSigningKey: os.Getenv("SLACK_SIGNING_SECRET"),
		DbDriver:        os.Getenv("DB_DRIVER"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		APIAddr:         os.Getenv("API_ADDR"),
		TemplateSheetID: os.Getenv("TEMPLATE_SHEET_ID"),
		RoleARN:         os.Getenv("ROLE_ARN"),
		ExternalID:      os.Getenv("EXTERNAL_ID"),
		AWSRegion:       os.Getenv("AWS_REGION"),
		BedrockModelID:  os.Getenv("BEDROCK_MODEL_ID"),
		ModelBackend:    os.Getenv("MODEL_BACKEND"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
	}

	if config.CredentialsFile == "" {
		config.CredentialsFile = DefaultCredentialsFile
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	if config.TemplateSheetID == "" {
		config.TemplateSheetID = DefaultTemplateSheetID
	}
	if config.RoleARN == "" {
		config.RoleARN = DefaultRoleARN
	}
	if config.ExternalID == "" {
		config.ExternalID = DefaultExternalID
	}
	if config.AWSRegion == "" {
		config.AWSRegion = genai.DefaultBedrockRegion
	}
	if config.BedrockModelID == "" {
		config.BedrockModelID = genai.DefaultBedrockModelID
	}
	if config.ModelBackend == "" {
		config.ModelBackend = "bedrock"
	}

	slog.Debug("environment variables loaded",
		"CREDENTIALS_FILE", config.CredentialsFile,
		"SECRET_KEY_SET", config.SecretKey != "",
		"SLACK_BOT_TOKEN_SET", config.SlackBotToken != "",
		"SLACK_SIGNING_SECRET_SET", config.SlackSigningKey != "",
		"DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"API_ADDR", config.APIAddr,
		"TEMPLATE_SHEET_ID", config.TemplateSheetID,
		"MODEL_BACKEND", config.ModelBackend,
		"BEDROCK_MODEL_ID", config.BedrockModelID)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		credentialsFile: flag.String("credentials-file", config.CredentialsFile, "path to the encrypted credential bundle (overrides $CREDENTIALS_FILE)"),
		dbDriver:        flag.String("db-driver", config.DbDriver, "conversation store driver: sqlite3, postgres, or memory (overrides $DB_DRIVER)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "conversation store DSN (overrides $DATABASE_URL)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "webhook server address (overrides $API_ADDR)"),
		templateSheetID: flag.String("template-sheet-id", config.TemplateSheetID, "spreadsheet duplicated per test plan (overrides $TEMPLATE_SHEET_ID)"),
		roleARN:         flag.String("role-arn", config.RoleARN, "role assumed for model invocations (overrides $ROLE_ARN)"),
		externalID:      flag.String("external-id", config.ExternalID, "external id for role assumption (overrides $EXTERNAL_ID)"),
		awsRegion:       flag.String("aws-region", config.AWSRegion, "region of the model endpoint (overrides $AWS_REGION)"),
		bedrockModelID:  flag.String("bedrock-model-id", config.BedrockModelID, "Bedrock model identifier (overrides $BEDROCK_MODEL_ID)"),
		modelBackend:    flag.String("model-backend", config.ModelBackend, "model backend: bedrock or openai (overrides $MODEL_BACKEND)"),
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"credentialsFile", *flags.credentialsFile,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"modelBackend", *flags.modelBackend)

	return flags
}

// loadCredentials decrypts the credential bundle, falling back to plain
// environment variables when no secret key is configured.
func loadCredentials(flags Flags) (*secrets.Credentials, error) {
	key := os.Getenv("TEST_CASE_CREATION_SECRET_KEY")
	if key != "" {
		creds, err := secrets.DecryptFile(*flags.credentialsFile, key)
		if err != nil {
			return nil, err
		}
		slog.Info("Credentials loaded from encrypted bundle", "path", *flags.credentialsFile)
		return creds, nil
	}

	slog.Warn("TEST_CASE_CREATION_SECRET_KEY not set, reading credentials from environment")
	creds := &secrets.Credentials{
		SlackBotToken:      os.Getenv("SLACK_BOT_TOKEN"),
		SlackSigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
	}
	if path := os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		creds.GoogleServiceAccountInfo = data
	}
	return creds, nil
}

// buildStore selects the conversation store backend from configuration.
func buildStore(flags Flags) (store.Store, error) {
	switch *flags.dbDriver {
	case "postgres":
		slog.Debug("Using Postgres conversation store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	case "sqlite3":
		slog.Debug("Using SQLite conversation store", "path", *flags.dbDSN)
		return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	default:
		slog.Debug("Using in-memory conversation store")
		return store.NewInMemoryStore(), nil
	}
}

// buildModelBackend assembles the model client and the credential issuer
// feeding it.
func buildModelBackend(ctx context.Context, flags Flags) (genai.ClientInterface, flow.CredentialIssuer, error) {
	switch *flags.modelBackend {
	case "openai":
		client, err := genai.NewOpenAIClient(*flags.openaiKey)
		if err != nil {
			return nil, nil, err
		}
		return client, &awsauth.StaticIssuer{}, nil
	default:
		assumer, err := awsauth.NewAssumer(ctx, *flags.roleARN, *flags.externalID, *flags.awsRegion)
		if err != nil {
			return nil, nil, err
		}
		return genai.NewBedrockClient(*flags.bedrockModelID, *flags.awsRegion), assumer, nil
	}
}
