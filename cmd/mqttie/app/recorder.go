package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alfrunes/mqttie/v5/client"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	uuid "github.com/satori/go.uuid"
)

const (
	recorderPingTimeout = 5 * time.Second

	schemaMessages = `CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	topic        TEXT NOT NULL,
	payload      BLOB NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	received_at  INTEGER NOT NULL
)`
	insertMessage = `INSERT INTO messages
	(id, topic, payload, content_type, received_at) VALUES (?, ?, ?, ?, ?)`
)

// Recorder stores received application messages in a SQLite database.
type Recorder struct {
	db *sql.DB
}

// OpenRecorder opens or creates the database at path.
func OpenRecorder(ctx context.Context, path string) (*Recorder, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Serialize writers on the single file.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, recorderPingTimeout)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err = db.ExecContext(ctx, schemaMessages); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record inserts msg with the time it was received.
func (r *Recorder) Record(
	ctx context.Context,
	msg client.Message,
	receivedAt time.Time,
) error {
	payload := msg.Payload
	if payload == nil {
		payload = []byte{}
	}
	_, err := r.db.ExecContext(ctx, insertMessage,
		uuid.NewV4().String(),
		msg.Topic,
		payload,
		msg.ContentType,
		receivedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// Count returns the number of recorded messages for topic.
func (r *Recorder) Count(ctx context.Context, topic string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE topic = ?`, topic).Scan(&n)
	return n, err
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
