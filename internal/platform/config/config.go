package config

import (
	"os"
	"strings"
	"time"
)

// Kafka captures durable-log connection settings shared by both services.
type Kafka struct {
	Brokers         []string
	EventTopic      string
	DeadLetterTopic string
	ConsumerGroup   string
}

// UserService holds configuration for the identity-owning service.
type UserService struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	TokenTTL      time.Duration
	Kafka         Kafka
}

// Journal holds configuration for the journal service.
type Journal struct {
	Addr           string
	DatabaseURL    string
	JWTSigningKey  string
	ProcessTimeout time.Duration
	Kafka          Kafka
}

func kafkaFromEnv() Kafka {
	brokers := os.Getenv("CHRONICLE_KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}
	topic := os.Getenv("CHRONICLE_EVENT_TOPIC")
	if topic == "" {
		topic = "user-events"
	}
	group := os.Getenv("CHRONICLE_CONSUMER_GROUP")
	if group == "" {
		group = "journal-group"
	}
	return Kafka{
		Brokers:         strings.Split(brokers, ","),
		EventTopic:      topic,
		DeadLetterTopic: topic + ".dlq",
		ConsumerGroup:   group,
	}
}

// UserServiceFromEnv builds the user service config from environment
// variables so main stays lean.
func UserServiceFromEnv() UserService {
	addr := os.Getenv("CHRONICLE_USERD_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	ttl := 1 * time.Hour
	if raw := os.Getenv("CHRONICLE_TOKEN_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			ttl = parsed
		}
	}
	return UserService{
		Addr:          addr,
		DatabaseURL:   os.Getenv("CHRONICLE_USERD_DATABASE_URL"),
		JWTSigningKey: os.Getenv("CHRONICLE_JWT_SIGNING_KEY"),
		TokenTTL:      ttl,
		Kafka:         kafkaFromEnv(),
	}
}

// JournalFromEnv builds the journal service config from environment variables.
func JournalFromEnv() Journal {
	addr := os.Getenv("CHRONICLE_JOURNALD_ADDR")
	if addr == "" {
		addr = ":8081"
	}
	timeout := 30 * time.Second
	if raw := os.Getenv("CHRONICLE_PROCESS_TIMEOUT"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			timeout = parsed
		}
	}
	return Journal{
		Addr:           addr,
		DatabaseURL:    os.Getenv("CHRONICLE_JOURNALD_DATABASE_URL"),
		JWTSigningKey:  os.Getenv("CHRONICLE_JWT_SIGNING_KEY"),
		ProcessTimeout: timeout,
		Kafka:          kafkaFromEnv(),
	}
}
