package repo

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

// Run is one finished grid request. Property tables are not kept.
type Run struct {
	ID        uuid.UUID `json:"id"`
	Endpoint  string    `json:"endpoint"`
	Fluid     string    `json:"fluid"`
	NX        int       `json:"nx"`
	NY        int       `json:"ny"`
	Points    int       `json:"points"`
	Failed    int       `json:"failed"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	SaveRun(ctx context.Context, run Run) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
}

const schema = `CREATE TABLE IF NOT EXISTS runs (
	id         UUID PRIMARY KEY,
	endpoint   TEXT NOT NULL,
	fluid      TEXT NOT NULL,
	nx         INTEGER NOT NULL,
	ny         INTEGER NOT NULL,
	points     INTEGER NOT NULL,
	failed     INTEGER NOT NULL,
	format     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

type PostgresRunRepository struct {
	db *sql.DB
}

func NewPostgresRunDB(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

func (r *PostgresRunRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *PostgresRunRepository) SaveRun(ctx context.Context, run Run) error {
	query := "INSERT INTO runs (id, endpoint, fluid, nx, ny, points, failed, format, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)"
	_, err := r.db.ExecContext(ctx, query, run.ID, run.Endpoint, run.Fluid, run.NX, run.NY, run.Points, run.Failed, run.Format, run.CreatedAt)
	return err
}

func (r *PostgresRunRepository) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT id, endpoint, fluid, nx, ny, points, failed, format, created_at FROM runs ORDER BY created_at DESC LIMIT $1"
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Endpoint, &run.Fluid, &run.NX, &run.NY, &run.Points, &run.Failed, &run.Format, &run.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// MemoryRunRepository keeps the last Capacity runs in process.
type MemoryRunRepository struct {
	Capacity int

	mu   sync.Mutex
	runs []Run
}

func NewMemoryRunDB(capacity int) *MemoryRunRepository {
	return &MemoryRunRepository{Capacity: capacity}
}

func (r *MemoryRunRepository) SaveRun(_ context.Context, run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	if r.Capacity > 0 && len(r.runs) > r.Capacity {
		r.runs = r.runs[len(r.runs)-r.Capacity:]
	}
	return nil
}

func (r *MemoryRunRepository) RecentRuns(_ context.Context, limit int) ([]Run, error) {
	r.mu.Lock()
	out := make([]Run, len(r.runs))
	copy(out, r.runs)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// normalizeDSN requires TLS unless the DSN already says otherwise.
func normalizeDSN(connStr string) string {
	if strings.Contains(connStr, "sslmode=") {
		return connStr
	}
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		if strings.Contains(connStr, "?") {
			return connStr + "&sslmode=require"
		}
		return connStr + "?sslmode=require"
	}
	return connStr + " sslmode=require"
}

// InitDB opens the run database, retrying the first ping with exponential
// backoff for up to window.
func InitDB(ctx context.Context, connStr string, window time.Duration, logger log.FieldLogger) (*sql.DB, error) {
	db, err := sql.Open("postgres", normalizeDSN(connStr))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = window
	err = backoff.RetryNotify(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return db.PingContext(pingCtx)
		},
		b,
		func(err error, d time.Duration) {
			logger.WithError(err).Warnf("run database not ready, retrying in %v", d)
		},
	)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
