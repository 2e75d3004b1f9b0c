package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	ServerPort  string
	Environment string

	RedisURL           string
	RedisSentinelAddrs []string // Sentinel addresses (comma separated)
	RedisMasterName    string   // Sentinel master name

	KafkaBrokers  string
	KafkaUsername string
	KafkaPassword string
	KafkaCACert   string
	KafkaTopic    string

	AgentAPIURL  string
	AgentAPIKey  string
	AgentID      string
	AgentTimeout time.Duration

	WhatsAppPhone string // Recipient of the share link, never user supplied
	ShareLinkBase string

	SampleMode bool // Initial state of the sample-data toggle for new sessions

	RestaurantTimezone string
	MinLeadMinutes     int           // Minimum minutes between now and arrival
	MinArrivalRefresh  time.Duration // How often the order view gets a fresh minimum

	SessionTTL    time.Duration
	SessionCookie string

	BackgroundImageURL string
	LogoURL            string
}

func Load() *Config {
	// Same lookup order as hosted Redis add-ons: REDIS_URL, REDISCLOUD_URL, then parts
	redisURL := getEnv("REDIS_URL", "")
	if redisURL == "" {
		redisURL = getEnv("REDISCLOUD_URL", "")
	}
	if redisURL == "" {
		redisHost := getEnv("REDISHOST", "")
		redisPort := getEnv("REDISPORT", "6379")
		redisPassword := getEnv("REDISPASSWORD", "")
		redisDB := getEnv("REDISDB", "0")

		if redisHost != "" {
			if redisPassword != "" {
				redisURL = fmt.Sprintf("redis://:%s@%s:%s/%s", redisPassword, redisHost, redisPort, redisDB)
			} else {
				redisURL = fmt.Sprintf("redis://%s:%s/%s", redisHost, redisPort, redisDB)
			}
		}
	}

	var sentinelAddrs []string
	if raw := getEnv("REDIS_SENTINEL_ADDRS", ""); raw != "" {
		for _, addr := range strings.Split(raw, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				sentinelAddrs = append(sentinelAddrs, addr)
			}
		}
	}

	return &Config{
		ServerPort:         getEnv("PORT", "8080"),
		Environment:        getEnv("ENV", "development"),
		RedisURL:           redisURL,
		RedisSentinelAddrs: sentinelAddrs,
		RedisMasterName:    getEnv("REDIS_MASTER_NAME", "mymaster"),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		KafkaUsername:      getEnv("KAFKA_USERNAME", ""),
		KafkaPassword:      getEnv("KAFKA_PASSWORD", ""),
		KafkaCACert:        getEnv("KAFKA_CA_CERT", ""),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "nidar-preorders"),
		AgentAPIURL:        getEnv("AGENT_API_URL", "http://localhost:3000/api/agent"),
		AgentAPIKey:        getEnv("AGENT_API_KEY", ""),
		AgentID:            getEnv("AGENT_ID", "699ba20ff7b4833211504832"),
		AgentTimeout:       getEnvDuration("AGENT_TIMEOUT", 60*time.Second),
		WhatsAppPhone:      getEnv("WHATSAPP_PHONE", "919876543210"),
		ShareLinkBase:      getEnv("SHARE_LINK_BASE", "whatsapp://send"),
		SampleMode:         getEnvBool("SAMPLE_MODE", false),
		RestaurantTimezone: getEnv("RESTAURANT_TIMEZONE", "Asia/Kolkata"),
		MinLeadMinutes:     getEnvInt("MIN_LEAD_MINUTES", 25),
		MinArrivalRefresh:  getEnvDuration("MIN_ARRIVAL_REFRESH", time.Minute),
		SessionTTL:         getEnvDuration("SESSION_TTL", 2*time.Hour),
		SessionCookie:      getEnv("SESSION_COOKIE", "nidar_session"),
		BackgroundImageURL: getEnv("BACKGROUND_IMAGE_URL", "https://asset.lyzr.app/H53A0z20"),
		LogoURL:            getEnv("LOGO_URL", "https://asset.lyzr.app/pGb7L6O7"),
	}
}

// IsProduction reports whether logs should be structured JSON instead of console output.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Location resolves the restaurant time zone. Arrival times are wall-clock times there.
func (c *Config) Location() *time.Location {
	if c.RestaurantTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.RestaurantTimezone)
	if err != nil {
		log.Warn().Err(err).Msgf("⚠️ Unknown RESTAURANT_TIMEZONE %q, falling back to UTC", c.RestaurantTimezone)
		return time.UTC
	}
	return loc
}

// MinLead is MinLeadMinutes as a duration.
func (c *Config) MinLead() time.Duration {
	return time.Duration(c.MinLeadMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
