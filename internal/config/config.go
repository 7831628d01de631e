package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// Auth
	JWTSecret string

	// Firebase
	FirebaseCredentialsPath string

	// Lifecycle engine
	SweepIntervalSeconds      int  // varredura automática de status (segundos)
	GracePeriodMinutes        int  // tolerância antes de marcar Missed
	AdherenceToleranceMinutes int  // janela para considerar "no horário"
	StrictStatusTransitions   bool // rejeitar transições manuais fora de Pending

	// Notifications
	NotificationIntervalMinutes int // intervalo do dispatcher
	NotificationLeadMinutes     int // janela de antecedência do lembrete
	EnablePushNotifications     bool
	EnableEmailFallback         bool

	// Adherence reports
	AdherenceReportIntervalHours int

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

		// Database
		DatabaseURL: os.Getenv("DATABASE_URL"),

		// Auth
		JWTSecret: getEnvWithDefault("JWT_SECRET", "your_jwt_secret"),

		// Firebase
		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),

		// Lifecycle engine
		SweepIntervalSeconds:      getEnvInt("SWEEP_INTERVAL_SECONDS", 60),
		GracePeriodMinutes:        getEnvInt("GRACE_PERIOD_MINUTES", 60),
		AdherenceToleranceMinutes: getEnvInt("ADHERENCE_TOLERANCE_MINUTES", 15),
		StrictStatusTransitions:   getEnvBool("STRICT_STATUS_TRANSITIONS", false),

		// Notifications
		NotificationIntervalMinutes: getEnvInt("NOTIFICATION_INTERVAL_MINUTES", 5),
		NotificationLeadMinutes:     getEnvInt("NOTIFICATION_LEAD_MINUTES", 15),
		EnablePushNotifications:     getEnvBool("ENABLE_PUSH_NOTIFICATIONS", true),
		EnableEmailFallback:         getEnvBool("ENABLE_EMAIL_FALLBACK", true),

		// Adherence reports
		AdherenceReportIntervalHours: getEnvInt("ADHERENCE_REPORT_INTERVAL_HOURS", 24),

		// SMTP
		SMTPHost:      getEnvWithDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:  getEnvWithDefault("SMTP_FROM_NAME", "PillNow"),
		SMTPFromEmail: getEnvWithDefault("SMTP_FROM_EMAIL", "no-reply@pillnow.app"),
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

// Validate valida se todas as configurações obrigatórias estão presentes
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.EnablePushNotifications && c.FirebaseCredentialsPath == "" {
		log.Println("⚠️  Push habilitado mas FIREBASE_CREDENTIALS_PATH não configurado")
	}

	if c.EnableEmailFallback && (c.SMTPUsername == "" || c.SMTPPassword == "") {
		log.Println("⚠️  Email fallback habilitado mas credenciais SMTP não configuradas")
	}

	return nil
}
