package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	StoreBackend string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MongoURI      string
	MongoDatabase string

	ProviderBaseURL string
	PageDelay       time.Duration
	RequestTimeout  time.Duration
	MaxRetries      int

	CSVOutputPath string
	MetricsAddr   string

	LogLevel    string
	LogEncoding string
}

var defaults = map[string]any{
	"STORE_BACKEND": "postgres",

	"POSTGRES_HOST":     "localhost",
	"POSTGRES_PORT":     "5432",
	"POSTGRES_USER":     "realestate",
	"POSTGRES_PASSWORD": "realestate",
	"POSTGRES_DB":       "realestate",
	"POSTGRES_SSLMODE":  "disable",

	"MONGO_URI": "mongodb://localhost:27017",
	"MONGO_DB":  "realestate",

	"PROVIDER_BASE_URL":   "https://www.imoveis-sc.com.br",
	"PAGE_DELAY_MS":       300,
	"REQUEST_TIMEOUT_SEC": 10,
	"MAX_RETRIES":         5,

	"CSV_OUTPUT_PATH": "",
	"METRICS_ADDR":    "",

	"LOG_LEVEL":    "info",
	"LOG_ENCODING": "console",
}

// Load reads the .env file, the optional YAML config file and the
// environment, and returns a populated Config. Environment variables win
// over the file, the file wins over defaults.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", configFile, err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		StoreBackend: v.GetString("STORE_BACKEND"),

		PostgresHost:     v.GetString("POSTGRES_HOST"),
		PostgresPort:     v.GetString("POSTGRES_PORT"),
		PostgresUser:     v.GetString("POSTGRES_USER"),
		PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:       v.GetString("POSTGRES_DB"),
		PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),

		MongoURI:      v.GetString("MONGO_URI"),
		MongoDatabase: v.GetString("MONGO_DB"),

		ProviderBaseURL: v.GetString("PROVIDER_BASE_URL"),
		PageDelay:       time.Duration(v.GetInt("PAGE_DELAY_MS")) * time.Millisecond,
		RequestTimeout:  time.Duration(v.GetInt("REQUEST_TIMEOUT_SEC")) * time.Second,
		MaxRetries:      v.GetInt("MAX_RETRIES"),

		CSVOutputPath: v.GetString("CSV_OUTPUT_PATH"),
		MetricsAddr:   v.GetString("METRICS_ADDR"),

		LogLevel:    v.GetString("LOG_LEVEL"),
		LogEncoding: v.GetString("LOG_ENCODING"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
