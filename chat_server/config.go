package main

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	RoomCode    string
	Port        string
	MaxClients  int
	MaxPerIP    int
	LogDir      string
	IPLogDir    string
	StaticDir   string
	AuditDBFile string
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, raw, fallback)
		return fallback
	}
	return n
}

func LoadConfig() Config {
	return Config{
		RoomCode:    envString("ROOM_CODE", "1234"),
		Port:        envString("PORT", "3000"),
		MaxClients:  envInt("MAX_CLIENTS", 30),
		MaxPerIP:    envInt("MAX_CONNECTIONS_PER_IP", 1),
		LogDir:      envString("CHAT_LOG_DIR", "./chat_logs"),
		IPLogDir:    envString("CHAT_IP_LOG_DIR", "./.IP_tmp_logs"),
		StaticDir:   envString("CHAT_STATIC_DIR", "./public"),
		AuditDBFile: os.Getenv("CHAT_AUDIT_DB"),
	}
}
