package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/eventpass/internal/domain"
	"github.com/ignite/eventpass/internal/sheets"
)

// ErrInvalid marks configuration errors. They are fatal: the process exits
// instead of retrying.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig       `yaml:"server"`
	Sheet    SheetConfig        `yaml:"sheet"`
	Columns  domain.ColumnNames `yaml:"columns"`
	Polling  PollingConfig      `yaml:"polling"`
	Identity IdentityConfig     `yaml:"identity"`
	Storage  StorageConfig      `yaml:"storage"`
	Assets   AssetsConfig       `yaml:"assets"`
	Email    EmailConfig        `yaml:"email"`
	Ticket   TicketConfig       `yaml:"ticket"`
	Redis    RedisConfig        `yaml:"redis"`
	ErrLog   ErrLogConfig       `yaml:"errlog"`
	Log      LogConfig          `yaml:"log"`
}

// ServerConfig holds the status HTTP server configuration
type ServerConfig struct {
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
	Enabled bool   `yaml:"enabled"`
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SheetConfig locates the registrant spreadsheet and the credentials used to
// read and write it.
type SheetConfig struct {
	Link            string `yaml:"link"`
	Name            string `yaml:"name"`
	Range           string `yaml:"range"`
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsJSON string `yaml:"-"`
	BaseURL         string `yaml:"base_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxRetries      int    `yaml:"max_retries"`
}

// DataRange returns the A1 range read every cycle.
func (c SheetConfig) DataRange() string {
	if c.Range != "" {
		return c.Range
	}
	return sheets.DefaultRange(c.Name)
}

// Timeout returns the configured timeout as a duration
func (c SheetConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Credentials returns the service account key, preferring inline JSON.
func (c SheetConfig) Credentials() ([]byte, error) {
	if c.CredentialsJSON != "" {
		return []byte(c.CredentialsJSON), nil
	}
	data, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading google credentials: %v", ErrInvalid, err)
	}
	return data, nil
}

// PollingConfig holds polling configuration
type PollingConfig struct {
	IntervalSeconds        int `yaml:"interval_seconds"`
	ErrorBackoffMultiplier int `yaml:"error_backoff_multiplier"`
}

// Interval returns the polling interval as a duration
func (c PollingConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ErrorBackoff returns the sleep after a cycle-level failure.
func (c PollingConfig) ErrorBackoff() time.Duration {
	return c.Interval() * time.Duration(c.ErrorBackoffMultiplier)
}

// IdentityConfig controls attendee identity resolution.
type IdentityConfig struct {
	// ReuseRowAttendeeID re-inserts a store record under the id already on
	// the row when the identity lookup misses, instead of minting a new one.
	ReuseRowAttendeeID bool `yaml:"reuse_row_attendee_id"`
}

// StorageConfig selects and configures the attendee store
type StorageConfig struct {
	Backend         string `yaml:"backend"` // "postgres", "dynamodb" or "mongo"
	DatabaseURL     string `yaml:"database_url"`
	DynamoDBTable   string `yaml:"dynamodb_table"`
	AWSRegion       string `yaml:"aws_region"`
	AWSProfile      string `yaml:"aws_profile"`
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
}

// AssetsConfig configures where generated QR codes and tickets are published
type AssetsConfig struct {
	Backend       string `yaml:"backend"` // "s3", "drive" or "none"
	S3Bucket      string `yaml:"s3_bucket"`
	AWSRegion     string `yaml:"aws_region"`
	QRFolder      string `yaml:"qr_folder"`
	TicketsFolder string `yaml:"tickets_folder"`
	DriveBaseURL  string `yaml:"drive_base_url"`
	TempDir       string `yaml:"temp_dir"`
}

// EmailConfig holds ticket delivery configuration
type EmailConfig struct {
	Backend        string `yaml:"backend"` // "ses" or "smtp"
	Sender         string `yaml:"sender"`
	SenderName     string `yaml:"sender_name"`
	Subject        string `yaml:"subject"`
	MessagePath    string `yaml:"message_path"`
	SMTPHost       string `yaml:"smtp_host"`
	SMTPPort       int    `yaml:"smtp_port"`
	SMTPPassword   string `yaml:"-"`
	SESRegion      string `yaml:"ses_region"`
	SESAccessKey   string `yaml:"-"`
	SESSecretKey   string `yaml:"-"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c EmailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TicketConfig describes the ticket template and where the name and QR code
// are placed on it.
type TicketConfig struct {
	TemplatePath string `yaml:"template_path"`
	FontPath     string `yaml:"font_path"`
	FontSize     int    `yaml:"font_size"`
	NameY        int    `yaml:"name_y"`
	QRY          int    `yaml:"qr_y"`
	QRSize       int    `yaml:"qr_size"`
	TextColor    string `yaml:"text_color"` // hex, e.g. "#000000"
}

// RedisConfig enables the shared run lease and error log.
type RedisConfig struct {
	URL             string `yaml:"url"`
	LeaseKey        string `yaml:"lease_key"`
	LeaseTTLSeconds int    `yaml:"lease_ttl_seconds"`
}

// LeaseTTL returns the lease TTL as a duration
func (c RedisConfig) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

// ErrLogConfig bounds the recent-error log
type ErrLogConfig struct {
	Capacity int    `yaml:"capacity"`
	RedisKey string `yaml:"redis_key"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether email addresses are masked in logs (default true).
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	defaults := domain.DefaultColumnNames()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Sheet.Name == "" {
		cfg.Sheet.Name = "Form_Responses_1"
	}
	if cfg.Sheet.BaseURL == "" {
		cfg.Sheet.BaseURL = "https://sheets.googleapis.com/v4"
	}
	if cfg.Sheet.TimeoutSeconds == 0 {
		cfg.Sheet.TimeoutSeconds = 30
	}
	if cfg.Sheet.MaxRetries == 0 {
		cfg.Sheet.MaxRetries = 3
	}
	if cfg.Columns.Name == "" {
		cfg.Columns.Name = defaults.Name
	}
	if cfg.Columns.Email == "" {
		cfg.Columns.Email = defaults.Email
	}
	if cfg.Columns.TicketStatus == "" {
		cfg.Columns.TicketStatus = defaults.TicketStatus
	}
	if cfg.Columns.EmailStatus == "" {
		cfg.Columns.EmailStatus = defaults.EmailStatus
	}
	if cfg.Polling.IntervalSeconds == 0 {
		cfg.Polling.IntervalSeconds = 30
	}
	if cfg.Polling.ErrorBackoffMultiplier == 0 {
		cfg.Polling.ErrorBackoffMultiplier = 2
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "postgres"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Storage.DynamoDBTable == "" {
		cfg.Storage.DynamoDBTable = "eventpass-attendees"
	}
	if cfg.Storage.MongoCollection == "" {
		cfg.Storage.MongoCollection = "attendees"
	}
	if cfg.Assets.Backend == "" {
		cfg.Assets.Backend = "s3"
	}
	if cfg.Assets.AWSRegion == "" {
		cfg.Assets.AWSRegion = cfg.Storage.AWSRegion
	}
	if cfg.Assets.QRFolder == "" {
		cfg.Assets.QRFolder = "qr-codes"
	}
	if cfg.Assets.TicketsFolder == "" {
		cfg.Assets.TicketsFolder = "tickets"
	}
	if cfg.Assets.DriveBaseURL == "" {
		cfg.Assets.DriveBaseURL = "https://www.googleapis.com/upload/drive/v3"
	}
	if cfg.Email.Backend == "" {
		cfg.Email.Backend = "ses"
	}
	if cfg.Email.Subject == "" {
		cfg.Email.Subject = "Your Event E-Ticket is Here!"
	}
	if cfg.Email.SMTPHost == "" {
		cfg.Email.SMTPHost = "smtp.gmail.com"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 465
	}
	if cfg.Email.SESRegion == "" {
		cfg.Email.SESRegion = "us-east-1"
	}
	if cfg.Email.TimeoutSeconds == 0 {
		cfg.Email.TimeoutSeconds = 30
	}
	if cfg.Ticket.FontSize == 0 {
		cfg.Ticket.FontSize = 60
	}
	if cfg.Ticket.NameY == 0 {
		cfg.Ticket.NameY = 750
	}
	if cfg.Ticket.QRY == 0 {
		cfg.Ticket.QRY = 950
	}
	if cfg.Ticket.QRSize == 0 {
		cfg.Ticket.QRSize = 350
	}
	if cfg.Ticket.TextColor == "" {
		cfg.Ticket.TextColor = "#000000"
	}
	if cfg.Redis.LeaseKey == "" {
		cfg.Redis.LeaseKey = "eventpass:poller"
	}
	if cfg.Redis.LeaseTTLSeconds == 0 {
		cfg.Redis.LeaseTTLSeconds = 300
	}
	if cfg.ErrLog.Capacity == 0 {
		cfg.ErrLog.Capacity = 100
	}
	if cfg.ErrLog.RedisKey == "" {
		cfg.ErrLog.RedisKey = "eventpass:errors"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	var cfg *Config
	if _, err := os.Stat(path); err == nil {
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = &Config{}
		cfg.applyDefaults()
	}

	setString := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setInt := func(env string, dst *int) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("MAIN_SHEET_LINK", &cfg.Sheet.Link)
	setString("MAIN_SHEET_NAME", &cfg.Sheet.Name)
	setString("GOOGLE_SERVICE_ACCOUNT_FILE", &cfg.Sheet.CredentialsFile)
	setString("GOOGLE_SERVICE_ACCOUNT_JSON", &cfg.Sheet.CredentialsJSON)

	setString("COL_NAME", &cfg.Columns.Name)
	setString("COL_EMAIL", &cfg.Columns.Email)
	setString("COL_TICKET_STATUS", &cfg.Columns.TicketStatus)
	setString("COL_EMAIL_STATUS", &cfg.Columns.EmailStatus)
	setInt("POLLING_INTERVAL_SECONDS", &cfg.Polling.IntervalSeconds)

	setString("STORAGE_BACKEND", &cfg.Storage.Backend)
	setString("DATABASE_URL", &cfg.Storage.DatabaseURL)
	setString("MONGO_URI", &cfg.Storage.MongoURI)
	setString("MONGO_DB_NAME", &cfg.Storage.MongoDatabase)
	setString("MONGO_COLLECTION_NAME", &cfg.Storage.MongoCollection)
	setString("DYNAMODB_TABLE", &cfg.Storage.DynamoDBTable)

	setString("ASSETS_BACKEND", &cfg.Assets.Backend)
	setString("ASSETS_S3_BUCKET", &cfg.Assets.S3Bucket)
	setString("TICKETS_FOLDER_ID", &cfg.Assets.TicketsFolder)
	setString("QR_CODES_FOLDER_ID", &cfg.Assets.QRFolder)

	setString("EMAIL_BACKEND", &cfg.Email.Backend)
	setString("SENDER_EMAIL", &cfg.Email.Sender)
	setString("SENDER_APP_PASSWORD", &cfg.Email.SMTPPassword)
	setString("EMAIL_MESSAGE_PATH", &cfg.Email.MessagePath)
	setString("AWS_SES_ACCESS_KEY", &cfg.Email.SESAccessKey)
	setString("AWS_SES_SECRET_KEY", &cfg.Email.SESSecretKey)
	setString("AWS_SES_REGION", &cfg.Email.SESRegion)

	setString("TICKET_TEMPLATE_EMPTY_PATH", &cfg.Ticket.TemplatePath)
	setString("FONT_PATH", &cfg.Ticket.FontPath)

	setString("REDIS_URL", &cfg.Redis.URL)
	setString("LOG_LEVEL", &cfg.Log.Level)

	return cfg, nil
}

// Validate reports the first configuration error. Every returned error
// wraps ErrInvalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if c.Sheet.Link == "" {
		return invalid("sheet.link (MAIN_SHEET_LINK) is required")
	}
	if c.Sheet.CredentialsJSON == "" && c.Sheet.CredentialsFile == "" {
		return invalid("google service account credentials are required")
	}
	if c.Polling.IntervalSeconds < 0 {
		return invalid("polling.interval_seconds must not be negative")
	}

	switch c.Storage.Backend {
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return invalid("storage.database_url (DATABASE_URL) is required for postgres")
		}
	case "dynamodb":
		if c.Storage.DynamoDBTable == "" {
			return invalid("storage.dynamodb_table is required for dynamodb")
		}
	case "mongo":
		if c.Storage.MongoURI == "" || c.Storage.MongoDatabase == "" {
			return invalid("storage.mongo_uri and storage.mongo_database are required for mongo")
		}
	default:
		return invalid("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Assets.Backend {
	case "s3":
		if c.Assets.S3Bucket == "" {
			return invalid("assets.s3_bucket is required for s3")
		}
	case "drive", "none":
	default:
		return invalid("unknown assets backend %q", c.Assets.Backend)
	}

	if c.Email.Sender == "" {
		return invalid("email.sender (SENDER_EMAIL) is required")
	}
	if c.Email.MessagePath == "" {
		return invalid("email.message_path (EMAIL_MESSAGE_PATH) is required")
	}
	switch c.Email.Backend {
	case "ses":
	case "smtp":
		if c.Email.SMTPPassword == "" {
			return invalid("SENDER_APP_PASSWORD is required for smtp")
		}
	default:
		return invalid("unknown email backend %q", c.Email.Backend)
	}

	// The lease is renewed before every row, so it must outlast one row's
	// sheet and email calls, and comfortably outlast a poll interval.
	if c.Redis.URL != "" {
		ttl := c.Redis.LeaseTTL()
		if ttl < 2*c.Polling.Interval() {
			return invalid("redis.lease_ttl_seconds (%d) must be at least twice polling.interval_seconds (%d)",
				c.Redis.LeaseTTLSeconds, c.Polling.IntervalSeconds)
		}
		if rowBudget := c.Sheet.Timeout() + c.Email.Timeout(); ttl <= rowBudget {
			return invalid("redis.lease_ttl_seconds (%d) must exceed the sheet and email timeouts combined (%s)",
				c.Redis.LeaseTTLSeconds, rowBudget)
		}
	}

	if c.Ticket.TemplatePath == "" {
		return invalid("ticket.template_path (TICKET_TEMPLATE_EMPTY_PATH) is required")
	}
	return nil
}
