package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	Environment string

	// Firebase / Firestore
	FirebaseCredentialsPath string
	FirebaseProjectID       string
	AppID                   string // raiz das coleções: artifacts/{AppID}/public/data

	// Workers
	ReminderWorkerInterval int // minutos
	TokenSweepInterval     int // horas
	EnablePush             bool

	// Fallback por email para o Equipo Directivo
	EnableEmailFallback bool
	DirectorEmails      []string

	// SMTP
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromName  string
	SMTPFromEmail string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️  Info: Ficheiro .env não encontrado ou não pôde ser carregado. Lendo variáveis de ambiente do sistema.")
	}

	return &Config{
		// Server
		Port:        getEnvWithDefault("PORT", "8080"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),

		// Firebase
		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		AppID:                   getEnvWithDefault("APP_ID", "escuela-app-prod"),

		// Workers
		ReminderWorkerInterval: getEnvInt("REMINDER_WORKER_INTERVAL", 5),
		TokenSweepInterval:     getEnvInt("TOKEN_SWEEP_INTERVAL", 24),
		EnablePush:             getEnvBool("ENABLE_PUSH", true),

		// Email fallback
		EnableEmailFallback: getEnvBool("ENABLE_EMAIL_FALLBACK", false),
		DirectorEmails:      getEnvList("DIRECTOR_EMAILS"),

		// SMTP
		SMTPHost:      getEnvWithDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:  getEnvWithDefault("SMTP_FROM_NAME", "Escuela Digital"),
		SMTPFromEmail: os.Getenv("SMTP_FROM_EMAIL"),
	}, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate valida se todas as configurações obrigatórias estão presentes
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required")
	}

	if c.FirebaseCredentialsPath == "" {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}

	if c.EnableEmailFallback && (c.SMTPUsername == "" || c.SMTPPassword == "") {
		log.Println("⚠️  Email fallback habilitado mas credenciais SMTP não configuradas")
	}

	return nil
}
