package main

import (
	"context"
	"lanchat/db"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateLimitErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
}

func main() {
	_ = godotenv.Load()

	cfg := LoadConfig()
	startedAt := time.Now()

	chatLog := multiLogger{NewCSVChatLogger(cfg.LogDir, startedAt)}
	if cfg.AuditDBFile != "" {
		auditDB, err := db.InitSQLite(cfg.AuditDBFile)
		if err != nil {
			log.Println("Error opening audit database:", err)
		} else {
			defer db.CloseDB(auditDB)
			sqliteLog, err := NewSQLiteChatLogger(auditDB)
			if err != nil {
				log.Println("Error ensuring audit schema:", err)
			} else {
				chatLog = append(chatLog, sqliteLog)
			}
		}
	}
	quotaLog := NewQuotaLog(cfg.IPLogDir, cfg.MaxPerIP, startedAt)

	room := NewRoom(cfg.RoomCode, cfg.MaxClients, cfg.MaxPerIP)
	server := NewChatServer(cfg, room, chatLog, quotaLog)

	r := gin.Default()

	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{Rate: time.Second, Limit: 150})
	r.Use(ratelimit.RateLimiter(store, &ratelimit.Options{ErrorHandler: rateLimitErrorHandler, KeyFunc: keyFunc}))
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/ws", server.HandleSocket)

	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticDir, "index.html"))
	})
	r.Static("/public", cfg.StaticDir)

	httpServer := &http.Server{Addr: "0.0.0.0:" + cfg.Port, Handler: r}

	go func() {
		log.Printf("LAN chat server running on port %s", cfg.Port)
		log.Printf("ROOM_CODE = %s", cfg.RoomCode)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down chat server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("chat server forced shutdown: %v", err)
	}
}
