package provenance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"contextiq/internal/config"
)

type ChunkRecord struct {
	bun.BaseModel `bun:"table:chunk_provenance,alias:cp"`
	ID            int64     `bun:"id,pk,autoincrement"`
	SessionID     string    `bun:"session_id,notnull"`
	Document      string    `bun:"document,notnull"`
	ChunkID       string    `bun:"chunk_id,notnull"`
	Position      int       `bun:"position,notnull"`
	Preview       string    `bun:"preview"`
	RecordedAt    time.Time `bun:"recorded_at,notnull,default:current_timestamp"`
}

// Postgres appends provenance rows to the chunk_provenance table.
type Postgres struct {
	db *bun.DB
}

func NewPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*Postgres, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &Postgres{db: db}, nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the configured driver. pgdriver is the default; "pq" goes
// through database/sql with lib/pq.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Driver == config.DriverPq {
		return sql.Open("postgres", cfg.DSN)
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*ChunkRecord)(nil)).IfNotExists().Exec(ctx)
	return err
}

func toRecords(entries []Entry) []ChunkRecord {
	records := make([]ChunkRecord, len(entries))
	for i, e := range entries {
		records[i] = ChunkRecord{
			SessionID:  e.SessionID,
			Document:   e.Document,
			ChunkID:    e.ChunkID,
			Position:   e.Position,
			Preview:    e.Preview,
			RecordedAt: e.RecordedAt,
		}
	}
	return records
}

func (p *Postgres) Record(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	records := toRecords(entries)
	if _, err := p.db.NewInsert().Model(&records).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert provenance: %w", err)
	}
	log.Debug().Int("rows", len(records)).Msg("Stored provenance")
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
