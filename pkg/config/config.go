package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix scopes every environment variable read by Load.
	EnvPrefix = "CRMBRIDGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CRMBRIDGE_DB_DSN"
	EnvDBHost = "CRMBRIDGE_DB_HOST"
	EnvDBUser = "CRMBRIDGE_DB_USER"
	EnvDBName = "CRMBRIDGE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	CRM     CRMConfig
	ERP     ERPConfig
	Sync    SyncConfig
	Reports ReportsConfig
	Notify  NotifyConfig
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
	Env          string `envconfig:"CRMBRIDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"CRMBRIDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CRMBRIDGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CRMBRIDGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CRMBRIDGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CRMBRIDGE_DB_DSN"`
	Driver string `envconfig:"CRMBRIDGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CRMBRIDGE_DB_HOST"`
	LegacyPort     int    `envconfig:"CRMBRIDGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CRMBRIDGE_DB_USER"`
	LegacyPassword string `envconfig:"CRMBRIDGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CRMBRIDGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CRMBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRMBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRMBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRMBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRMBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"CRMBRIDGE_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CRMBRIDGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CRMBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"CRMBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRMBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRMBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRMBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRMBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRMBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRMBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CRMConfig points at the CRM's inbound REST webhook endpoint.
type CRMConfig struct {
	WebhookURL    string        `envconfig:"CRMBRIDGE_CRM_WEBHOOK_URL" required:"true"`
	Timeout       time.Duration `envconfig:"CRMBRIDGE_CRM_TIMEOUT" default:"30s"`
	OrderField    string        `envconfig:"CRMBRIDGE_CRM_ORDER_FIELD" default:"UF_ERP_ORDER_ID"`
	PaymentField  string        `envconfig:"CRMBRIDGE_CRM_PAYMENT_FIELD" default:"UF_CHANNEL_PAYMENT"`
	PaymentMarker string        `envconfig:"CRMBRIDGE_CRM_PAYMENT_MARKER" default:"kaspi"`
}

// ERPConfig points at the ERP's HTTP integration service.
type ERPConfig struct {
	BaseURL     string        `envconfig:"CRMBRIDGE_ERP_BASE_URL" required:"true"`
	ServicePath string        `envconfig:"CRMBRIDGE_ERP_SERVICE_PATH" default:"/hs/crm-integration"`
	Username    string        `envconfig:"CRMBRIDGE_ERP_USERNAME" required:"true"`
	Password    string        `envconfig:"CRMBRIDGE_ERP_PASSWORD" required:"true"`
	Timeout     time.Duration `envconfig:"CRMBRIDGE_ERP_TIMEOUT" default:"60s"`

	OrganizationRef string `envconfig:"CRMBRIDGE_ERP_ORGANIZATION_REF" required:"true"`
	WarehouseRef    string `envconfig:"CRMBRIDGE_ERP_WAREHOUSE_REF" required:"true"`
	CurrencyRef     string `envconfig:"CRMBRIDGE_ERP_CURRENCY_REF" required:"true"`

	DefaultCounterpartyRef string `envconfig:"CRMBRIDGE_ERP_DEFAULT_COUNTERPARTY_REF" required:"true"`
	DefaultTaxRateRef      string `envconfig:"CRMBRIDGE_ERP_DEFAULT_TAX_RATE_REF" required:"true"`

	BalancePageSize int `envconfig:"CRMBRIDGE_ERP_BALANCE_PAGE_SIZE" default:"200"`
}

// SyncConfig drives the scheduled reconciliation and the translation workers.
type SyncConfig struct {
	ScheduleHour   int `envconfig:"CRMBRIDGE_SYNC_SCHEDULE_HOUR" default:"0"`
	ScheduleMinute int `envconfig:"CRMBRIDGE_SYNC_SCHEDULE_MINUTE" default:"0"`

	WorkerCount int `envconfig:"CRMBRIDGE_SYNC_WORKER_COUNT" default:"4"`
	QueueDepth  int `envconfig:"CRMBRIDGE_SYNC_QUEUE_DEPTH" default:"64"`

	LockTTL time.Duration `envconfig:"CRMBRIDGE_SYNC_LOCK_TTL" default:"30m"`
}

// FireTime returns the configured time-of-day for the reconciliation run,
// clamped to a valid clock value.
func (s SyncConfig) FireTime() (hour, minute int) {
	hour = s.ScheduleHour
	minute = s.ScheduleMinute
	if hour < 0 || hour > 23 {
		hour = 0
	}
	if minute < 0 || minute > 59 {
		minute = 0
	}
	return hour, minute
}

type ReportsConfig struct {
	APIKey  string        `envconfig:"CRMBRIDGE_REPORTS_API_KEY"`
	Model   string        `envconfig:"CRMBRIDGE_REPORTS_MODEL" default:"openai/gpt-oss-120b"`
	BaseURL string        `envconfig:"CRMBRIDGE_REPORTS_BASE_URL" default:"https://openrouter.ai/api/v1"`
	Timeout time.Duration `envconfig:"CRMBRIDGE_REPORTS_TIMEOUT" default:"60s"`
}

type NotifyConfig struct {
	BotToken string        `envconfig:"CRMBRIDGE_NOTIFY_BOT_TOKEN"`
	ChatID   string        `envconfig:"CRMBRIDGE_NOTIFY_CHAT_ID"`
	BaseURL  string        `envconfig:"CRMBRIDGE_NOTIFY_BASE_URL" default:"https://api.telegram.org"`
	Timeout  time.Duration `envconfig:"CRMBRIDGE_NOTIFY_TIMEOUT" default:"30s"`
}

// Enabled reports whether the chat notification channel is configured.
func (n NotifyConfig) Enabled() bool {
	return strings.TrimSpace(n.BotToken) != "" && strings.TrimSpace(n.ChatID) != ""
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
