package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/StageEngine/internal/config"
)

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Instance  string                 `json:"instance"`
	MatchID   *string                `json:"match_id,omitempty"`
}

// Client stores match events for one engine instance.
type Client struct {
	db       *sql.DB
	instance string
}

// DSN builds a connection string from PG* environment variables.
// The password honours the *_FILE convention.
func DSN() (string, error) {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "stageengine")
	dbname := getEnv("PGDATABASE", "stageengine")
	password, err := config.ResolveSecret("PGPASSWORD")
	if err != nil {
		return "", err
	}

	if password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname), nil
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname), nil
}

// New opens and pings the database and makes sure the events table exists.
func New(instance string) (*Client, error) {
	connStr, err := DSN()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve postgres credentials: %w", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:       db,
		instance: instance,
	}

	if err := client.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create events table: %w", err)
	}

	return client, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS match_events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			instance   TEXT NOT NULL,
			match_id   TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_match_events_ts ON match_events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_match_events_match_id ON match_events(match_id);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event. It satisfies events.Sink.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, matchID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	var matchPtr *string
	if matchID != "" {
		matchPtr = &matchID
	}

	query := `
		INSERT INTO match_events (ts, level, event, msg, fields, instance, match_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, c.instance, matchPtr)
	return err
}

// Query returns the last limit events of one match, newest first.
func (c *Client) Query(matchID string, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `
		SELECT event_id, ts, level, event, msg, fields, instance, match_id
		FROM match_events
		WHERE instance = $1 AND match_id = $2
		ORDER BY ts DESC, event_id DESC
		LIMIT $3
	`
	rows, err := c.db.Query(query, c.instance, matchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, match sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.Instance, &match); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if match.Valid {
			e.MatchID = &match.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		out = append(out, e)
	}

	return out, rows.Err()
}

// Ping checks that the database is reachable.
func (c *Client) Ping() error {
	return c.db.Ping()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
