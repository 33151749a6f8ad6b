package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Email    EmailConfig    `yaml:"email"`
	Agent    AgentConfig    `yaml:"stayscout"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	DealsFoundTopic    string `yaml:"deals_found_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type EmailConfig struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Sender     string `yaml:"sender"`
	Password   string `yaml:"password"` // app password для Gmail/Outlook
	Recipient  string `yaml:"recipient"`
}

type AgentConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	SwaggerPath string `yaml:"swagger_path"`

	// Каналы уведомлений: "email", "kafka" (можно оба).
	Notifiers []string `yaml:"notifiers"`

	// Площадки: "booking", "fake". Пустой список — только fake.
	Sources        []string `yaml:"sources"`
	BookingBaseURL string   `yaml:"booking_base_url"`
	MaxResults     int      `yaml:"max_results_per_search"`

	SearchIntervalHours       int `yaml:"search_interval_hours"`
	PriceAlertIntervalMinutes int `yaml:"price_alert_interval_minutes"`
	CleanupIntervalDays       int `yaml:"cleanup_interval_days"`
	HeartbeatEnabled          *bool `yaml:"heartbeat_enabled"`

	SchedulerGranularitySeconds int `yaml:"scheduler_granularity_seconds"`

	NewWindowHours        int     `yaml:"new_window_hours"`
	PriceDropThresholdPct float64 `yaml:"price_drop_threshold_pct"`
	RetentionDays         int     `yaml:"retention_days"`
	PassTimeoutSeconds    int     `yaml:"pass_timeout_seconds"`
	FetchRatePerMinute    int     `yaml:"fetch_rate_per_minute"`
	StatsCacheTTLSeconds  int     `yaml:"stats_cache_ttl_seconds"`

	Criteria CriteriaConfig `yaml:"search_criteria"`
}

type CriteriaConfig struct {
	Destination   string   `yaml:"destination"`
	CheckIn       string   `yaml:"check_in"`  // YYYY-MM-DD; пусто = now+30d
	CheckOut      string   `yaml:"check_out"` // YYYY-MM-DD; пусто = check_in+2d
	Guests        int      `yaml:"guests"`
	MaxPrice      float64  `yaml:"max_price"`
	Currency      string   `yaml:"currency"`
	PropertyTypes []string `yaml:"property_types"`
	MinRating     float64  `yaml:"min_rating"`
}

func (c CriteriaConfig) Dates(now time.Time) (checkIn, checkOut time.Time, err error) {
	if c.CheckIn != "" {
		checkIn, err = time.Parse("2006-01-02", c.CheckIn)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse check_in: %w", err)
		}
	} else {
		checkIn = now.AddDate(0, 0, 30)
	}
	if c.CheckOut != "" {
		checkOut, err = time.Parse("2006-01-02", c.CheckOut)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse check_out: %w", err)
		}
	} else {
		checkOut = checkIn.AddDate(0, 0, 2)
	}
	return checkIn, checkOut, nil
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
