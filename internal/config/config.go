package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	DBAdapter  string
	SQLiteFile string
	JwtSecret  string
	AdminKey   string
	LogLevel   string

	// Token lifetimes per role
	UserTokenTTL  time.Duration
	BrandTokenTTL time.Duration
	AdminTokenTTL time.Duration

	// OTP settings
	OTPTTL            time.Duration
	OTPResendCooldown time.Duration
	OTPIssueLimit     int

	// Mailer settings
	MailerMode   string // smtp or log
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	// Redis (optional, enables the OTP issue throttle)
	RedisAddr     string
	RedisPassword string

	// Uploads
	UploadDir string

	AllowedOrigins []string

	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

func New() (*Config, error) {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	c := &Config{
		Port:       getenv("PORT", "8080"),
		DBAdapter:  getenv("DB_ADAPTER", "postgres"),
		SQLiteFile: getenv("SQLITE_FILE", "./data/thrift.db"),
		JwtSecret:  getenv("JWT_SECRET", "change-me"),
		AdminKey:   getenv("ADMIN_SECRET_KEY", ""),
		LogLevel:   getenv("LOG_LEVEL", "info"),

		MailerMode:   getenv("MAILER_MODE", "log"),
		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", "465"),
		SMTPUser:     getenv("SMTP_USER", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		MailFrom:     getenv("MAIL_FROM", getenv("SMTP_USER", "")),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		UploadDir: getenv("UPLOAD_DIR", "./uploads/brand-logos"),

		PostgresDSN:      getenv("POSTGRES_DSN", ""),
		PostgresHost:     getenv("POSTGRES_HOST", getenv("DB_HOST", "localhost")),
		PostgresPort:     getenv("POSTGRES_PORT", getenv("DB_PORT", "5432")),
		PostgresUser:     getenv("POSTGRES_USER", getenv("DB_USER", "thrift")),
		PostgresPassword: getenv("POSTGRES_PASSWORD", getenv("DB_PASSWORD", "thriftpass")),
		PostgresDB:       getenv("POSTGRES_DB", getenv("DB_NAME", "thrift")),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", getenv("DB_SSLMODE", "disable")),
	}

	var err error
	if c.UserTokenTTL, err = getenvDuration("USER_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if c.BrandTokenTTL, err = getenvDuration("BRAND_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if c.AdminTokenTTL, err = getenvDuration("ADMIN_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if c.OTPTTL, err = getenvDuration("OTP_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if c.OTPResendCooldown, err = getenvDuration("OTP_RESEND_COOLDOWN", 60*time.Second); err != nil {
		return nil, err
	}

	c.OTPIssueLimit = 5
	if v := os.Getenv("OTP_ISSUE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid OTP_ISSUE_LIMIT: %q", v)
		}
		c.OTPIssueLimit = n
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	if c.DBAdapter == "postgres" {
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	}

	if c.DBAdapter == "sqlite" && c.SQLiteFile == "" {
		return nil, errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
	}

	if c.MailerMode != "smtp" && c.MailerMode != "log" {
		return nil, fmt.Errorf("unsupported MAILER_MODE: %s (supported: smtp, log)", c.MailerMode)
	}
	if c.MailerMode == "smtp" && (c.SMTPHost == "" || c.SMTPUser == "") {
		return nil, errors.New("SMTP_HOST and SMTP_USER must be set when MAILER_MODE=smtp")
	}

	env := strings.ToLower(getenv("ENV", ""))
	if env == "production" || env == "prod" {
		if c.JwtSecret == "" || c.JwtSecret == "change-me" {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		if c.AdminKey == "" {
			return nil, errors.New("ADMIN_SECRET_KEY must be set in production")
		}
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return c, nil
}
