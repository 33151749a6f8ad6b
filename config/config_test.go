package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "stayscout"
kafka:
  host: "localhost"
  port: 9092
  deals_found_topic_name: "deals.found"
redis:
  host: "localhost"
  port: 6379
email:
  smtp_server: "smtp.gmail.com"
  smtp_port: 587
  sender: "agent@example.com"
  recipient: "me@example.com"
stayscout:
  http_addr: ":8080"
  notifiers: ["email", "kafka"]
  sources: ["booking"]
  search_interval_hours: 6
  price_alert_interval_minutes: 30
  cleanup_interval_days: 1
  price_drop_threshold_pct: 10
  search_criteria:
    destination: "București, România"
    guests: 2
    max_price: 500
    currency: "RON"
    min_rating: 7.0
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "deals.found", cfg.Kafka.DealsFoundTopic)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.Agent.HTTPAddr)
	require.Equal(t, []string{"email", "kafka"}, cfg.Agent.Notifiers)
	require.Equal(t, "București, România", cfg.Agent.Criteria.Destination)
	require.Equal(t, 10.0, cfg.Agent.PriceDropThresholdPct)
}

func TestDatabaseConfig_ConnString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Username: "u", Password: "p", DBName: "stays"}
	require.Equal(t, "postgres://u:p@db:5432/stays?sslmode=disable", d.ConnString())
}

func TestCriteriaConfig_Dates(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	in, out, err := CriteriaConfig{}.Dates(now)
	require.NoError(t, err)
	require.Equal(t, now.AddDate(0, 0, 30), in)
	require.Equal(t, in.AddDate(0, 0, 2), out)

	in, out, err = CriteriaConfig{CheckIn: "2026-09-20", CheckOut: "2026-09-25"}.Dates(now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC), in)
	require.Equal(t, time.Date(2026, 9, 25, 0, 0, 0, 0, time.UTC), out)

	_, _, err = CriteriaConfig{CheckIn: "garbage"}.Dates(now)
	require.Error(t, err)
}
