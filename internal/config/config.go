package config

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sethvargo/go-envconfig"
)

const minSecretLength = 32

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	JWT      JWTConfig      `env:",prefix=JWT_"`
	Google   GoogleConfig   `env:",prefix=GOOGLE_"`
	Apple    AppleConfig    `env:",prefix=APPLE_"`
	Session  SessionConfig  `env:",prefix=SESSION_"`
	Kafka    KafkaConfig    `env:",prefix=KAFKA_"`
	Security SecurityConfig `env:",prefix="`
	CORS     CORSConfig     `env:",prefix=CORS_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host        string `env:"HOST,default=localhost"`
	Port        string `env:"PORT,default=5432"`
	User        string `env:"USER,default=clavis"`
	Password    string `env:"PASSWORD,default=clavis_password"`
	DBName      string `env:"DB,default=clavis_auth"`
	SSLMode     string `env:"SSLMODE,default=disable"`
	AutoMigrate bool   `env:"AUTO_MIGRATE,default=true"`
}

type RedisConfig struct {
	Host      string `env:"HOST,default=localhost"`
	Port      string `env:"PORT,default=6379"`
	Password  string `env:"PASSWORD,default="`
	DB        int    `env:"DB,default=0"`
	KeyPrefix string `env:"KEY_PREFIX,default=clavis"`
}

type JWTConfig struct {
	Secret             string   `env:"SECRET,required"`
	PreviousSecrets    []string `env:"PREVIOUS_SECRETS"`
	AccessTokenExpiry  Duration `env:"ACCESS_TOKEN_EXPIRY,default=60m"`
	RefreshTokenExpiry Duration `env:"REFRESH_TOKEN_EXPIRY,default=7d"`
}

type GoogleConfig struct {
	ClientIDs       []string `env:"CLIENT_IDS,required"`
	ClientSecret    string   `env:"CLIENT_SECRET"`
	RedirectURL     string   `env:"REDIRECT_URL,default=http://localhost:8080/api/v1/auth/google/callback"`
	CertsURL        string   `env:"CERTS_URL,default=https://www.googleapis.com/oauth2/v3/certs"`
	Issuers         []string `env:"ISSUERS,default=accounts.google.com,https://accounts.google.com"`
	ExchangeTimeout Duration `env:"EXCHANGE_TIMEOUT,default=10s"`
	KeysCacheTTL    Duration `env:"KEYS_CACHE_TTL,default=1h"`
}

type AppleConfig struct {
	ClientIDs    []string `env:"CLIENT_IDS"`
	KeysURL      string   `env:"KEYS_URL,default=https://appleid.apple.com/auth/keys"`
	Issuer       string   `env:"ISSUER,default=https://appleid.apple.com"`
	KeysCacheTTL Duration `env:"KEYS_CACHE_TTL,default=1h"`
}

type SessionConfig struct {
	RevokeAllOnLogout bool     `env:"REVOKE_ALL_ON_LOGOUT,default=false"`
	DevLoginEnabled   bool     `env:"DEV_LOGIN_ENABLED,default=false"`
	OAuthStateTTL     Duration `env:"OAUTH_STATE_TTL,default=10m"`
}

type KafkaConfig struct {
	Brokers []string `env:"BROKERS"`
	Topic   string   `env:"TOPIC,default=auth.events"`
}

type SecurityConfig struct {
	BCryptCost        int      `env:"BCRYPT_COST,default=12"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// URL returns PostgreSQL connection URL, used by the migrator
func (p PostgresConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Host + ":" + p.Port,
		Path:     p.DBName,
		RawQuery: "sslmode=" + p.SSLMode,
	}
	return u.String()
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Enabled reports whether Apple Sign-In is configured
func (a AppleConfig) Enabled() bool {
	return len(a.ClientIDs) > 0
}

// Enabled reports whether events are published to Kafka
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var config Config

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &config,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if len(c.JWT.Secret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters long", minSecretLength)
	}

	for i, secret := range c.JWT.PreviousSecrets {
		if len(secret) < minSecretLength {
			return fmt.Errorf("JWT_PREVIOUS_SECRETS[%d] must be at least %d characters long", i, minSecretLength)
		}
	}

	if c.JWT.AccessTokenExpiry.Duration <= 0 || c.JWT.RefreshTokenExpiry.Duration <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}

	if c.Google.ExchangeTimeout.Duration <= 0 {
		return fmt.Errorf("GOOGLE_EXCHANGE_TIMEOUT must be positive")
	}

	if c.Session.DevLoginEnabled && c.IsProduction() {
		return fmt.Errorf("SESSION_DEV_LOGIN_ENABLED cannot be set in production")
	}

	return nil
}

// ToolConfig is the subset of configuration used by operator tooling
type ToolConfig struct {
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Security SecurityConfig `env:",prefix="`
}

// LoadTool loads the tooling configuration from environment variables
func LoadTool(ctx context.Context) (*ToolConfig, error) {
	return loadTool(ctx, envconfig.OsLookuper())
}

func loadTool(ctx context.Context, lookuper envconfig.Lookuper) (*ToolConfig, error) {
	var config ToolConfig

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &config,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return &config, nil
}
