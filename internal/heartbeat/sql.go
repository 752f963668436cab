package heartbeat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/leslieo2/go-healthchecks/internal/config"
	"github.com/leslieo2/go-healthchecks/internal/constants"
)

// SQLStore implements Store on SQLite (pure Go) or PostgreSQL.
type SQLStore struct {
	db             *sql.DB
	driver         string
	defaultTimeout time.Duration
	clock          Clock
}

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clock Clock) Option {
	return func(s *SQLStore) { s.clock = clock }
}

// Open connects to the configured database. defaultTimeout is used for
// monitors registered without any timeout.
func Open(cfg config.StorageConfig, defaultTimeout time.Duration, opts ...Option) (*SQLStore, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case constants.StorageDriverSQLite:
		db, err = openSQLite(cfg.DSN)
	case constants.StorageDriverPostgres:
		db, err = openPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if defaultTimeout <= 0 {
		defaultTimeout = constants.DefaultHeartbeatTimeout
	}

	s := &SQLStore{
		db:             db,
		driver:         cfg.Driver,
		defaultTimeout: defaultTimeout,
		clock:          RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if !strings.HasPrefix(path, ":memory:") && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dir, err)
			}
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	return db, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// DB exposes the underlying handle for the database check.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping runs a trivial query against the database.
func (s *SQLStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping %s: %w", s.driver, err)
	}
	if one != 1 {
		return fmt.Errorf("ping %s: unexpected result %d", s.driver, one)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != constants.StorageDriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

// Migrate applies every pending migration.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.exec(ctx, migrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		stmts := m.sqlite
		if s.driver == constants.StorageDriverPostgres {
			stmts = m.postgres
		}
		for _, stmt := range strings.Split(stmts, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := s.exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
		if _, err := s.exec(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// PendingMigrations returns how many migrations have not been applied.
func (s *SQLStore) PendingMigrations(ctx context.Context) (int, error) {
	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}
	pending := 0
	for _, m := range migrations {
		if !applied[m.version] {
			pending++
		}
	}
	return pending, nil
}

func (s *SQLStore) appliedVersions(ctx context.Context) (map[int]bool, error) {
	if _, err := s.exec(ctx, migrationsTable); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Update bumps last_beat for name, creating the monitor if it does not
// exist. When two callers race to create the same monitor the unique
// constraint rejects the second insert, which then retries as an update.
func (s *SQLStore) Update(ctx context.Context, name string, opts UpdateOptions) error {
	if name == "" || name == AllKey {
		return fmt.Errorf("invalid heartbeat name %q", name)
	}
	now := s.clock.Now().UnixNano()

	updated, err := s.touch(ctx, name, now, opts.Timeout)
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = opts.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	_, insertErr := s.exec(ctx,
		`INSERT INTO heartbeat_monitors (id, name, enabled, timeout_ns, last_beat_ns) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), name, true, int64(timeout), now,
	)
	if insertErr == nil {
		return nil
	}

	updated, err = s.touch(ctx, name, now, opts.Timeout)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("register heartbeat %q: %w", name, insertErr)
	}
	return nil
}

func (s *SQLStore) touch(ctx context.Context, name string, now int64, timeout time.Duration) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if timeout > 0 {
		res, err = s.exec(ctx, `UPDATE heartbeat_monitors SET last_beat_ns = ?, timeout_ns = ? WHERE name = ?`, now, int64(timeout), name)
	} else {
		res, err = s.exec(ctx, `UPDATE heartbeat_monitors SET last_beat_ns = ? WHERE name = ?`, now, name)
	}
	if err != nil {
		return false, fmt.Errorf("update heartbeat %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update heartbeat %q: %w", name, err)
	}
	return n > 0, nil
}

const selectMonitors = `SELECT id, name, enabled, timeout_ns, last_beat_ns FROM heartbeat_monitors`

func (s *SQLStore) query(ctx context.Context, onlyEnabled bool) ([]Monitor, error) {
	query := selectMonitors
	var args []any
	if onlyEnabled {
		query += ` WHERE enabled = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list heartbeats: %w", err)
	}
	defer rows.Close()

	var monitors []Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, *m)
	}
	return monitors, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMonitor(row scanner) (*Monitor, error) {
	var (
		m         Monitor
		timeoutNs int64
		lastBeat  sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Enabled, &timeoutNs, &lastBeat); err != nil {
		return nil, err
	}
	m.Timeout = time.Duration(timeoutNs)
	if lastBeat.Valid {
		t := time.Unix(0, lastBeat.Int64).UTC()
		m.LastBeat = &t
	}
	return &m, nil
}

// List returns every monitor ordered by name.
func (s *SQLStore) List(ctx context.Context) ([]Monitor, error) {
	return s.query(ctx, false)
}

// Get returns the monitor called name or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, name string) (*Monitor, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectMonitors+` WHERE name = ?`), name)
	m, err := scanMonitor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get heartbeat %q: %w", name, err)
	}
	return m, nil
}

// SetEnabled toggles whether a monitor takes part in the heartbeat checks.
func (s *SQLStore) SetEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := s.exec(ctx, `UPDATE heartbeat_monitors SET enabled = ? WHERE name = ?`, enabled, name)
	if err != nil {
		return fmt.Errorf("set enabled on %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// ExpiredNames lists monitors whose last beat is older than their timeout.
func (s *SQLStore) ExpiredNames(ctx context.Context, onlyEnabled bool) ([]string, error) {
	monitors, err := s.query(ctx, onlyEnabled)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	names := []string{}
	for _, m := range monitors {
		if m.IsExpired(now) {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// StatusByName maps each monitor to whether it is still alive. The AllKey
// entry is the AND of every status and is true when there are no monitors.
func (s *SQLStore) StatusByName(ctx context.Context, onlyEnabled bool) (map[string]bool, error) {
	monitors, err := s.query(ctx, onlyEnabled)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	statuses := make(map[string]bool, len(monitors)+1)
	all := true
	for _, m := range monitors {
		alive := !m.IsExpired(now)
		statuses[m.Name] = alive
		all = all && alive
	}
	statuses[AllKey] = all
	return statuses, nil
}

// AllKey is the synthetic entry summarising every heartbeat status.
const AllKey = constants.AllHeartbeatsKey
