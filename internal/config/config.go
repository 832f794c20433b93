package config

import (
	"errors"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Session   SessionConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
	OIDC      OIDCConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Database      string
	Schema        string
	SSLMode       string
	MigrationsDir string
	Seed          bool
}

// DSN returns the connection string for the pgx driver with credentials escaped
func (c DatabaseConfig) DSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}, "search_path": {c.Schema}}.Encode(),
	}
	return dsn.String()
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type JWTConfig struct {
	Secret        string
	Issuer        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

type SessionConfig struct {
	CookieName string
	TTL        int // in hours
	Secure     bool
}

type CatalogConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

type RateLimitConfig struct {
	Requests int
	Window   int // in seconds
}

type OIDCConfig struct {
	Issuer       string
	ClientID     string
	RedirectURIs []string
	CodeTTL      int // in seconds
}

type AdminConfig struct {
	Email    string
	Password string
}

// AccessTTL returns the access token lifetime
func (c JWTConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessExpiry) * time.Minute
}

// RefreshTTL returns the refresh token lifetime
func (c JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshExpiry) * 24 * time.Hour
}

// Lifetime returns how long a storefront session lasts
func (c SessionConfig) Lifetime() time.Duration {
	return time.Duration(c.TTL) * time.Hour
}

// WindowDuration returns the length of one rate limit window
func (c RateLimitConfig) WindowDuration() time.Duration {
	return time.Duration(c.Window) * time.Second
}

func Load() *Config {
	// Populate the process environment first so AutomaticEnv sees it as well
	_ = godotenv.Load(".env")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MIGRATIONS_DIR", "migrations")
	viper.SetDefault("DB_SEED", false)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ISSUER", "gamestore")
	viper.SetDefault("JWT_ACCESS_EXPIRY", 15)
	viper.SetDefault("JWT_REFRESH_EXPIRY", 7)
	viper.SetDefault("SESSION_COOKIE_NAME", "gamestore_session")
	viper.SetDefault("SESSION_TTL", 24)
	viper.SetDefault("SESSION_SECURE", false)
	viper.SetDefault("CATALOG_DEFAULT_PAGE_SIZE", 10)
	viper.SetDefault("CATALOG_MAX_PAGE_SIZE", 50)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW", 60)
	viper.SetDefault("OIDC_ISSUER", "http://localhost:8080")
	viper.SetDefault("OIDC_CLIENT_ID", "storefront")
	viper.SetDefault("OIDC_REDIRECT_URIS", "http://localhost:3000/signin-oidc")
	viper.SetDefault("OIDC_CODE_TTL", 300)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:          viper.GetString("DB_HOST"),
			Port:          viper.GetString("DB_PORT"),
			User:          viper.GetString("DB_USER"),
			Password:      viper.GetString("DB_PASSWORD"),
			Database:      viper.GetString("DB_DATABASE"),
			Schema:        viper.GetString("DB_SCHEMA"),
			SSLMode:       viper.GetString("DB_SSLMODE"),
			MigrationsDir: viper.GetString("DB_MIGRATIONS_DIR"),
			Seed:          viper.GetBool("DB_SEED"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			Issuer:        viper.GetString("JWT_ISSUER"),
			AccessExpiry:  viper.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: viper.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Session: SessionConfig{
			CookieName: viper.GetString("SESSION_COOKIE_NAME"),
			TTL:        viper.GetInt("SESSION_TTL"),
			Secure:     viper.GetBool("SESSION_SECURE"),
		},
		Catalog: CatalogConfig{
			DefaultPageSize: viper.GetInt("CATALOG_DEFAULT_PAGE_SIZE"),
			MaxPageSize:     viper.GetInt("CATALOG_MAX_PAGE_SIZE"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   viper.GetInt("RATE_LIMIT_WINDOW"),
		},
		OIDC: OIDCConfig{
			Issuer:       viper.GetString("OIDC_ISSUER"),
			ClientID:     viper.GetString("OIDC_CLIENT_ID"),
			RedirectURIs: splitList(viper.GetString("OIDC_REDIRECT_URIS")),
			CodeTTL:      viper.GetInt("OIDC_CODE_TTL"),
		},
		Admin: AdminConfig{
			Email:    viper.GetString("ADMIN_EMAIL"),
			Password: viper.GetString("ADMIN_PASSWORD"),
		},
	}
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWT.AccessExpiry <= 0 || c.JWT.RefreshExpiry <= 0 {
		errs = append(errs, errors.New("JWT expiries must be positive"))
	}
	if c.Catalog.MaxPageSize < 1 {
		errs = append(errs, errors.New("CATALOG_MAX_PAGE_SIZE must be at least 1"))
	}
	if c.Catalog.DefaultPageSize < 1 || c.Catalog.DefaultPageSize > c.Catalog.MaxPageSize {
		errs = append(errs, errors.New("CATALOG_DEFAULT_PAGE_SIZE must be between 1 and CATALOG_MAX_PAGE_SIZE"))
	}
	if c.RateLimit.Requests < 1 || c.RateLimit.Window < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
