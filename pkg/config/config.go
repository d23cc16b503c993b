package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Lookup        LookupConfig
	Rebrickable   RebrickableConfig
	BrickLink     BrickLinkConfig
	Import        ImportConfig
	Enrich        EnrichConfig
	Backup        BackupConfig
	Cron          CronConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BLOCKSHELF_APP_ENV" required:"true"`
	Port         string `envconfig:"BLOCKSHELF_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BLOCKSHELF_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BLOCKSHELF_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BLOCKSHELF_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BLOCKSHELF_DB_DSN"`
	Driver string `envconfig:"BLOCKSHELF_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BLOCKSHELF_DB_HOST"`
	LegacyPort     int    `envconfig:"BLOCKSHELF_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BLOCKSHELF_DB_USER"`
	LegacyPassword string `envconfig:"BLOCKSHELF_DB_PASSWORD"`
	LegacyName     string `envconfig:"BLOCKSHELF_DB_NAME"`
	LegacySSLMode  string `envconfig:"BLOCKSHELF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BLOCKSHELF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BLOCKSHELF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BLOCKSHELF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BLOCKSHELF_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BLOCKSHELF_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BLOCKSHELF_REDIS_ADDR"`
	Password     string        `envconfig:"BLOCKSHELF_REDIS_PASSWORD"`
	DB           int           `envconfig:"BLOCKSHELF_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BLOCKSHELF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BLOCKSHELF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BLOCKSHELF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BLOCKSHELF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BLOCKSHELF_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BLOCKSHELF_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BLOCKSHELF_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BLOCKSHELF_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the access token lifetime configured in minutes.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BLOCKSHELF_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BLOCKSHELF_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BLOCKSHELF_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BLOCKSHELF_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BLOCKSHELF_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"BLOCKSHELF_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"BLOCKSHELF_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"BLOCKSHELF_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"BLOCKSHELF_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"BLOCKSHELF_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"BLOCKSHELF_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// LookupConfig controls the part lookup pipeline: per-caller rate limits and
// how long resolved results stay cached.
type LookupConfig struct {
	Window      time.Duration `envconfig:"BLOCKSHELF_LOOKUP_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit   int           `envconfig:"BLOCKSHELF_LOOKUP_RATE_LIMIT_USER" default:"60"`
	IPLimit     int           `envconfig:"BLOCKSHELF_LOOKUP_RATE_LIMIT_IP" default:"120"`
	HitTTL      time.Duration `envconfig:"BLOCKSHELF_LOOKUP_CACHE_HIT_TTL" default:"24h"`
	MissTTL     time.Duration `envconfig:"BLOCKSHELF_LOOKUP_CACHE_MISS_TTL" default:"5m"`
	HTTPTimeout time.Duration `envconfig:"BLOCKSHELF_LOOKUP_HTTP_TIMEOUT" default:"10s"`
}

type RebrickableConfig struct {
	APIKey  string `envconfig:"BLOCKSHELF_REBRICKABLE_API_KEY"`
	BaseURL string `envconfig:"BLOCKSHELF_REBRICKABLE_BASE_URL" default:"https://rebrickable.com/api/v3"`
}

type BrickLinkConfig struct {
	Enabled bool   `envconfig:"BLOCKSHELF_BRICKLINK_FALLBACK" default:"true"`
	BaseURL string `envconfig:"BLOCKSHELF_BRICKLINK_BASE_URL" default:"https://www.bricklink.com"`
}

type ImportConfig struct {
	MaxUploadMB      int `envconfig:"BLOCKSHELF_IMPORT_MAX_UPLOAD_MB" default:"50"`
	MaxRows          int `envconfig:"BLOCKSHELF_IMPORT_MAX_ROWS" default:"10000"`
	BootstrapMaxRows int `envconfig:"BLOCKSHELF_BOOTSTRAP_MAX_ROWS" default:"1000000"`
}

type EnrichConfig struct {
	BatchSize int `envconfig:"BLOCKSHELF_ENRICH_BATCH_SIZE" default:"25"`
}

type BackupConfig struct {
	Dir       string `envconfig:"BLOCKSHELF_BACKUP_DIR" default:"backups"`
	Retention int    `envconfig:"BLOCKSHELF_BACKUP_RETENTION" default:"10"`
}

type CronConfig struct {
	PurgeRevokedInterval time.Duration `envconfig:"BLOCKSHELF_CRON_PURGE_REVOKED_INTERVAL" default:"1h"`
	BackupInterval       time.Duration `envconfig:"BLOCKSHELF_CRON_BACKUP_INTERVAL" default:"24h"`
	LockTTL              time.Duration `envconfig:"BLOCKSHELF_CRON_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BLOCKSHELF_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BLOCKSHELF_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
