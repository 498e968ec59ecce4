package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	GoogleAPI GoogleAPIConfig `mapstructure:"google_api"`
	Matrix    MatrixConfig    `mapstructure:"matrix"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	DBName        string `mapstructure:"name"`
	SSLMode       string `mapstructure:"ssl_mode"`
	RunMigrations bool   `mapstructure:"run_migrations"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// GoogleCredential is one OAuth client able to act on the platform calendar.
type GoogleCredential struct {
	Name         string `mapstructure:"name"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
}

func (c GoogleCredential) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

type GoogleAPIConfig struct {
	CalendarID  string           `mapstructure:"calendar_id"`
	TimeZone    string           `mapstructure:"time_zone"`
	CallTimeout time.Duration    `mapstructure:"call_timeout"`
	Primary     GoogleCredential `mapstructure:"primary"`
	Secondary   GoogleCredential `mapstructure:"secondary"`
}

// Credentials returns the configured credentials in failover order.
func (g GoogleAPIConfig) Credentials() []GoogleCredential {
	creds := make([]GoogleCredential, 0, 2)
	for _, c := range []GoogleCredential{g.Primary, g.Secondary} {
		if c.Configured() {
			creds = append(creds, c)
		}
	}
	return creds
}

type MatrixConfig struct {
	HomeserverURL string `mapstructure:"homeserver_url"`
	UserID        string `mapstructure:"user_id"`
	AccessToken   string `mapstructure:"access_token"`
	Domain        string `mapstructure:"domain"`
}

func (m MatrixConfig) Enabled() bool {
	return m.HomeserverURL != "" && m.AccessToken != ""
}

type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

type SchedulerConfig struct {
	ReminderSpec      string        `mapstructure:"reminder_spec"`
	ReminderLead      time.Duration `mapstructure:"reminder_lead"`
	WorkerConcurrency int           `mapstructure:"worker_concurrency"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	mu       sync.RWMutex
	instance *Config
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7070)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "classroom")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.run_migrations", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")

	v.SetDefault("google_api.calendar_id", "primary")
	v.SetDefault("google_api.time_zone", "Asia/Kolkata")
	v.SetDefault("google_api.call_timeout", "15s")
	for _, name := range []string{"primary", "secondary"} {
		v.SetDefault("google_api."+name+".name", name)
		v.SetDefault("google_api."+name+".client_id", "")
		v.SetDefault("google_api."+name+".client_secret", "")
		v.SetDefault("google_api."+name+".refresh_token", "")
	}

	v.SetDefault("matrix.homeserver_url", "")
	v.SetDefault("matrix.user_id", "")
	v.SetDefault("matrix.access_token", "")
	v.SetDefault("matrix.domain", "")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")

	v.SetDefault("scheduler.reminder_spec", "@every 1m")
	v.SetDefault("scheduler.reminder_lead", "15m")
	v.SetDefault("scheduler.worker_concurrency", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads .env (when present) and APP_* environment variables.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return nil, fmt.Errorf("config: load %s: %w", path, err)
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if _, err := time.LoadLocation(cfg.GoogleAPI.TimeZone); err != nil {
		return nil, fmt.Errorf("config: invalid google_api.time_zone %q: %w", cfg.GoogleAPI.TimeZone, err)
	}

	mu.Lock()
	instance = &cfg
	mu.Unlock()

	return &cfg, nil
}

func Get() *Config {
	cfg, ok := GetSafe()
	if !ok {
		panic("config: not loaded")
	}
	return cfg
}

func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}
