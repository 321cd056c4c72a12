package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// AppConfig reúne toda a configuração do processo, carregada do ambiente
// (com suporte a .env em desenvolvimento).
type AppConfig struct {
	Port                string
	GinMode             string
	JWTSecret           string
	DatabasePath        string
	FirestoreProjectID  string
	FirestoreDatabaseID string
}

// Load lê o .env (se existir) e monta a configuração a partir do ambiente.
func Load() *AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("Arquivo .env não encontrado, usando apenas variáveis de ambiente.")
	}

	jwtSecret := getEnv("JWT_SECRET", "uma_chave_secreta_muito_forte_e_dificil_de_adivinhar")
	if jwtSecret == "uma_chave_secreta_muito_forte_e_dificil_de_adivinhar" {
		log.Println("AVISO: usando JWT_SECRET padrão inseguro. Defina JWT_SECRET em produção.")
	}

	return &AppConfig{
		Port:                getEnv("PORT", "8080"),
		GinMode:             getEnv("GIN_MODE", "release"),
		JWTSecret:           jwtSecret,
		DatabasePath:        getEnv("DB_PATH", "./jdcredvip.db"),
		FirestoreProjectID:  getEnv("FIRESTORE_PROJECT_ID", "jdcredvip-crm"),
		FirestoreDatabaseID: getEnv("FIRESTORE_DATABASE_ID", "(default)"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
