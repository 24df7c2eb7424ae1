package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port       string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	JWTSecret  string

	// Session runtime
	SessionDataDir string

	// Integrity policy
	TabHiddenAction           string // terminate | countAndPunish
	FocusLossAction           string // disabled | terminateAfterGrace
	DevtoolsAction            string // terminate | ignore
	ResizeAction              string // terminate | ignore
	PunishmentThreshold       int
	PunishmentDurationSeconds int
	FocusLossGraceSeconds     int
	ViolationDebounceMs       int

	// Proctor dashboard access (bcrypt hash of the shared key)
	ProctorKeyHash string

	// AI grading collaborator; empty disables grading
	GradingAPIURL string

	// Demo seed
	SeedExamTitle           string
	SeedExamDurationMinutes int
}

func Load() *Config {
	return &Config{
		Port:       getenv("PORT", "8080"),
		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: getenv("DB_PASSWORD", "postgres"),
		DBName:     getenv("DB_NAME", "exam_session_db"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),
		JWTSecret:  getenv("JWT_SECRET", "supersecret_change_me"),

		SessionDataDir: getenv("SESSION_DATA_DIR", "./data/sessions"),

		TabHiddenAction:           getenv("TAB_HIDDEN_ACTION", "terminate"),
		FocusLossAction:           getenv("FOCUS_LOSS_ACTION", "disabled"),
		DevtoolsAction:            getenv("DEVTOOLS_ACTION", "terminate"),
		ResizeAction:              getenv("RESIZE_ACTION", "ignore"),
		PunishmentThreshold:       getenvInt("PUNISHMENT_THRESHOLD", 5),
		PunishmentDurationSeconds: getenvInt("PUNISHMENT_DURATION_SECONDS", 30),
		FocusLossGraceSeconds:     getenvInt("FOCUS_LOSS_GRACE_SECONDS", 3),
		ViolationDebounceMs:       getenvInt("VIOLATION_DEBOUNCE_MS", 100),

		ProctorKeyHash: getenv("PROCTOR_KEY_HASH", ""),

		GradingAPIURL: getenv("GRADING_API_URL", ""),

		SeedExamTitle:           getenv("SEED_EXAM_TITLE", "Demo Exam"),
		SeedExamDurationMinutes: getenvInt("SEED_EXAM_DURATION_MINUTES", 60),
	}
}

func (c *Config) PunishmentDuration() time.Duration {
	return time.Duration(c.PunishmentDurationSeconds) * time.Second
}

func (c *Config) FocusLossGrace() time.Duration {
	return time.Duration(c.FocusLossGraceSeconds) * time.Second
}

func (c *Config) ViolationDebounce() time.Duration {
	return time.Duration(c.ViolationDebounceMs) * time.Millisecond
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
