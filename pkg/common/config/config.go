package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Remote FHIR server
	FHIRBaseURL        string
	FHIRTimeout        time.Duration
	FHIRTokenURL       string
	FHIRClientID       string
	FHIRClientSecret   string
	FHIRScopes         []string
	FHIRObservationFan int

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	PatientCacheTTL time.Duration

	// Kafka
	KafkaBrokers   []string
	SyncEventTopic string
	OrphanDLQTopic string

	// Normalizer
	NormalizerRulesPath string
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		FHIRBaseURL:        getEnv("FHIR_BASE_URL", "https://hapi.fhir.org/baseR5"),
		FHIRTimeout:        getDuration("FHIR_TIMEOUT", 30*time.Second),
		FHIRTokenURL:       getEnv("FHIR_TOKEN_URL", ""),
		FHIRClientID:       getEnv("FHIR_CLIENT_ID", ""),
		FHIRClientSecret:   getEnv("FHIR_CLIENT_SECRET", ""),
		FHIRScopes:         getStringSliceEnv("FHIR_SCOPES", []string{"system/*.read"}),
		FHIRObservationFan: getIntEnv("FHIR_OBSERVATION_FANOUT", 5),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "fhirsync"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "fhirsync123"),
		PostgresDB:       getEnv("POSTGRES_DB", "fhirsync"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:       getEnv("REDIS_HOST", "localhost"),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getIntEnv("REDIS_DB", 0),
		PatientCacheTTL: getDuration("PATIENT_CACHE_TTL", 5*time.Minute),

		KafkaBrokers:   getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		SyncEventTopic: getEnv("SYNC_EVENT_TOPIC", "fhir-sync-events"),
		OrphanDLQTopic: getEnv("ORPHAN_DLQ_TOPIC", ""),

		NormalizerRulesPath: getEnv("NORMALIZER_RULES_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
