package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ChatLogger is the audit sink the relay writes through. Implementations
// are best effort: a failed write degrades logging, never chat.
type ChatLogger interface {
	LogChat(timeStr, nickname, userID, text string)
}

type multiLogger []ChatLogger

func (m multiLogger) LogChat(timeStr, nickname, userID, text string) {
	for _, l := range m {
		l.LogChat(timeStr, nickname, userID, text)
	}
}

func formatNowForFilename(now time.Time) string {
	return now.Format("20060102_150405")
}

func formatTimeHHMMSS(t time.Time) string {
	return t.Format("15:04:05")
}

// csvEscape always wraps the field in quotes and doubles internal quotes.
func csvEscape(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CSVChatLogger appends one row per accepted chat message to a file
// created fresh at process start. A failed initialization leaves the
// logger disabled for the process lifetime.
type CSVChatLogger struct {
	path string
}

func NewCSVChatLogger(dir string, now time.Time) *CSVChatLogger {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Println("Failed to initialize CSV log:", err)
		log.Println("Chat will continue but messages will NOT be logged.")
		return &CSVChatLogger{}
	}
	path := filepath.Join(dir, formatNowForFilename(now)+"_log.csv")
	if err := os.WriteFile(path, []byte("time,nickname,user_id,text\n"), 0o644); err != nil {
		log.Println("Failed to initialize CSV log:", err)
		log.Println("Chat will continue but messages will NOT be logged.")
		return &CSVChatLogger{}
	}
	log.Println("CSV log initialized:", path)
	return &CSVChatLogger{path: path}
}

func (l *CSVChatLogger) LogChat(timeStr, nickname, userID, text string) {
	if l.path == "" {
		return
	}
	line := csvEscape(timeStr) + "," + csvEscape(nickname) + "," + csvEscape(userID) + "," + csvEscape(text) + "\n"
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Println("Failed to write to CSV log:", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		log.Println("Failed to write to CSV log:", err)
	}
}

// SQLiteChatLogger mirrors the audit trail into a chat_log table when an
// audit database is configured.
type SQLiteChatLogger struct {
	db *sql.DB
}

func NewSQLiteChatLogger(database *sql.DB) (*SQLiteChatLogger, error) {
	_, err := database.Exec(`CREATE TABLE IF NOT EXISTS chat_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time TEXT NOT NULL,
		nickname TEXT NOT NULL,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("chat_log schema exec failed: %w", err)
	}
	return &SQLiteChatLogger{db: database}, nil
}

func (l *SQLiteChatLogger) LogChat(timeStr, nickname, userID, text string) {
	_, err := l.db.Exec(
		`INSERT INTO chat_log (time, nickname, user_id, text) VALUES (?, ?, ?, ?)`,
		timeStr, nickname, userID, text,
	)
	if err != nil {
		log.Println("Failed to write chat_log row:", err)
	}
}

// QuotaLog persists the live address table, fully rewritten on every
// quota change. Like the CSV sink it disables itself when the log
// directory cannot be prepared.
type QuotaLog struct {
	path string
}

func NewQuotaLog(dir string, maxPerIP int, now time.Time) *QuotaLog {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Println("Failed to initialize IP log:", err)
		return &QuotaLog{}
	}
	path := filepath.Join(dir, formatNowForFilename(now)+"_ip.log")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		log.Println("Failed to initialize IP log:", err)
		return &QuotaLog{}
	}
	log.Printf("IP tracking initialized: %s (max %d per IP)", path, maxPerIP)
	return &QuotaLog{path: path}
}

func (q *QuotaLog) WriteCounts(counts map[string]int) {
	if q.path == "" {
		return
	}
	addrs := make([]string, 0, len(counts))
	for addr, count := range counts {
		if count > 0 {
			addrs = append(addrs, addr)
		}
	}
	sort.Strings(addrs)

	var b strings.Builder
	for _, addr := range addrs {
		fmt.Fprintf(&b, "%s,%d\n", addr, counts[addr])
	}
	if err := os.WriteFile(q.path, []byte(b.String()), 0o644); err != nil {
		log.Println("[IP Limit] Failed to update IP log:", err)
	}
}
