package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all configurable server and match parameters.
type Config struct {
	Port        int    `json:"port"`
	DatabaseURL string `json:"database_url"`

	// JWTSecret signs and validates HS256 tokens (guest sessions). When
	// AuthJWKSURL is set, tokens are validated against that JWKS instead and
	// JWTSecret is used only for issuing guest tokens.
	JWTSecret          string `json:"jwt_secret"`
	AuthJWKSURL        string `json:"auth_jwks_url"`
	AuthIssuer         string `json:"auth_issuer"`
	GuestTokenTTLHours int    `json:"guest_token_ttl_hours"`

	TotalRounds        int `json:"total_rounds"`
	RoundTimeoutSec    int `json:"round_timeout_sec"`
	VSBannerMS         int `json:"vs_banner_ms"`
	InterRoundMS       int `json:"inter_round_ms"`
	PreFinalizeMS      int `json:"pre_finalize_ms"`
	EmojiLimitPerMatch int `json:"emoji_limit_per_match"`
	AbandonTimeoutSec  int `json:"abandon_timeout_sec"`

	WinDelta     int `json:"win_delta"`
	LossDelta    int `json:"loss_delta"`
	DrawDelta    int `json:"draw_delta"`
	RatingFloor  int `json:"rating_floor"`
	LevelDivisor int `json:"level_divisor"`

	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaTopic   string   `json:"kafka_topic"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Port:               8080,
		GuestTokenTTLHours: 72,
		TotalRounds:        5,
		RoundTimeoutSec:    15,
		VSBannerMS:         3000,
		InterRoundMS:       3000,
		PreFinalizeMS:      2000,
		EmojiLimitPerMatch: 5,
		AbandonTimeoutSec:  30,
		WinDelta:           20,
		LossDelta:          15,
		DrawDelta:          0,
		RatingFloor:        0,
		LevelDivisor:       200,
		KafkaTopic:         "quiz-duel-events",
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	// Try to load from config.json
	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.json: %v", err)
		}
	}

	// Environment variable overrides
	overrideInt(&cfg.Port, "PORT")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.JWTSecret, "JWT_SECRET")
	overrideString(&cfg.AuthJWKSURL, "AUTH_JWKS_URL")
	overrideString(&cfg.AuthIssuer, "AUTH_ISSUER")
	overrideInt(&cfg.GuestTokenTTLHours, "GUEST_TOKEN_TTL_HOURS")
	overrideInt(&cfg.TotalRounds, "TOTAL_ROUNDS")
	overrideInt(&cfg.RoundTimeoutSec, "ROUND_TIMEOUT_SEC")
	overrideInt(&cfg.VSBannerMS, "VS_BANNER_MS")
	overrideInt(&cfg.InterRoundMS, "INTER_ROUND_MS")
	overrideInt(&cfg.PreFinalizeMS, "PRE_FINALIZE_MS")
	overrideInt(&cfg.EmojiLimitPerMatch, "EMOJI_LIMIT_PER_MATCH")
	overrideInt(&cfg.AbandonTimeoutSec, "ABANDON_TIMEOUT_SEC")
	overrideInt(&cfg.WinDelta, "WIN_DELTA")
	overrideInt(&cfg.LossDelta, "LOSS_DELTA")
	overrideInt(&cfg.DrawDelta, "DRAW_DELTA")
	overrideInt(&cfg.RatingFloor, "RATING_FLOOR")
	overrideInt(&cfg.LevelDivisor, "LEVEL_DIVISOR")
	overrideStringSlice(&cfg.KafkaBrokers, "KAFKA_BROKERS")
	overrideString(&cfg.KafkaTopic, "KAFKA_TOPIC")

	return cfg
}

// RoundTimeoutSeconds returns the round deadline as float seconds for latency math.
func (c *Config) RoundTimeoutSeconds() float64 {
	return float64(c.RoundTimeoutSec)
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// overrideStringSlice parses a comma-separated env value (e.g. KAFKA_BROKERS).
func overrideStringSlice(field *[]string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*field = out
	}
}
