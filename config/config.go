package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	DBURL       string
	SecretKey   string
	Environment string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		ServerPort:  os.Getenv("SERVER_PORT"),
		DBURL:       os.Getenv("DB_URL"),
		SecretKey:   os.Getenv("SECRET_KEY"),
		Environment: os.Getenv("ENV"),
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.DBURL == "" {
		return nil, fmt.Errorf("DB_URL is required but not set")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required but not set")
	}

	return cfg, nil
}
