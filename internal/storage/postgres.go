package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/gallery"
	"github.com/your-org/attend/internal/models"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Staff ---

func (s *PostgresStore) GetStaff(ctx context.Context, userID string) (*models.Staff, error) {
	st := &models.Staff{}
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, name FROM staff WHERE user_id = $1`, userID,
	).Scan(&st.UserID, &st.Name)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get staff: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) ListStaff(ctx context.Context) ([]models.Staff, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, name, embedding IS NOT NULL FROM staff ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var staff []models.Staff
	for rows.Next() {
		var st models.Staff
		if err := rows.Scan(&st.UserID, &st.Name, &st.Enrolled); err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		staff = append(staff, st)
	}
	return staff, nil
}

// CreateStaff registers an identity, updating the display name if the
// identity already exists.
func (s *PostgresStore) CreateStaff(ctx context.Context, userID, name string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO staff (user_id, name) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name`,
		userID, name)
	if err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

// UpsertStaffEmbedding stores the reference embedding for an identity.
// The staff row must already exist; enrollment never invents identities.
func (s *PostgresStore) UpsertStaffEmbedding(ctx context.Context, userID string, embedding []float32) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE staff SET embedding = $1, enrolled_at = now() WHERE user_id = $2`,
		pgvector.NewVector(embedding), userID)
	if err != nil {
		return fmt.Errorf("upsert staff embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("staff %s: %w", userID, ErrNotFound)
	}
	return nil
}

// LoadGalleryEntries returns the reference embedding of every enrolled
// identity in user_id order. Rows without an embedding are skipped since
// those identities can never be matched.
func (s *PostgresStore) LoadGalleryEntries(ctx context.Context) ([]gallery.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, embedding FROM staff WHERE embedding IS NOT NULL ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("load gallery entries: %w", err)
	}
	defer rows.Close()

	var entries []gallery.Entry
	for rows.Next() {
		var userID string
		var vec pgvector.Vector
		if err := rows.Scan(&userID, &vec); err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}
		entries = append(entries, gallery.Entry{UserID: userID, Embedding: vec.Slice()})
	}
	return entries, nil
}

// --- Pending set (validation table) ---

// InsertPending creates a pending record for an accepted sighting and
// returns its id. Ids are assigned by a sequence, so they are unique and
// monotonically increasing across the process lifetime and restarts.
func (s *PostgresStore) InsertPending(ctx context.Context, userID string, at time.Time, snapshotKey string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO validation (user_id, date, time, snapshot_key)
		 VALUES ($1, $2::date, $3::time, $4) RETURNING id`,
		userID, at.Format(dateLayout), at.Format(timeLayout), snapshotKey,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert pending: %w", err)
	}
	return id, nil
}

// ListPending returns the pending set joined with staff names, ordered by id.
func (s *PostgresStore) ListPending(ctx context.Context) ([]models.PendingRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT v.id, v.user_id, s.name,
		        to_char(v.date, 'YYYY-MM-DD'), to_char(v.time, 'HH24:MI:SS'),
		        v.snapshot_key
		 FROM validation v
		 JOIN staff s ON s.user_id = v.user_id
		 ORDER BY v.id`)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingRecord
	for rows.Next() {
		var p models.PendingRecord
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Date, &p.Time, &p.SnapshotKey); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, nil
}

// GetPendingSnapshotKey returns the audit snapshot key of one pending record.
func (s *PostgresStore) GetPendingSnapshotKey(ctx context.Context, id int64) (string, error) {
	var key string
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot_key FROM validation WHERE id = $1`, id,
	).Scan(&key)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get pending snapshot: %w", err)
	}
	return key, nil
}

// DecidePending commits a reviewer decision: it removes the pending record
// and appends the ledger row in one transaction, so a reader never observes
// both or neither. The DELETE..RETURNING claims the record; a concurrent
// duplicate decision loses that race, gets zero rows and ErrNotFound.
// Any failure rolls the whole unit back.
func (s *PostgresStore) DecidePending(ctx context.Context, id int64, status string) (*models.AttendanceRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin decide: %w", err)
	}
	defer tx.Rollback(ctx)

	rec := &models.AttendanceRecord{Status: status}
	err = tx.QueryRow(ctx,
		`DELETE FROM validation WHERE id = $1
		 RETURNING user_id, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI:SS'), snapshot_key`,
		id,
	).Scan(&rec.UserID, &rec.Date, &rec.Time, &rec.SnapshotKey)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("claim pending %d: %w", id, err)
	}

	rec.ValidatedTime = time.Now().Format(timeLayout)

	_, err = tx.Exec(ctx,
		`INSERT INTO attendance (user_id, date, time, status, validated_time, snapshot_key)
		 VALUES ($1, $2::date, $3::time, $4, $5::time, $6)`,
		rec.UserID, rec.Date, rec.Time, rec.Status, rec.ValidatedTime, rec.SnapshotKey)
	if err != nil {
		return nil, fmt.Errorf("append attendance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit decide: %w", err)
	}
	return rec, nil
}

// --- Attendance ledger ---

// ListAttendance returns committed records joined with staff names.
// userID and date filter when non-empty.
func (s *PostgresStore) ListAttendance(ctx context.Context, userID, date string) ([]models.AttendanceRecord, error) {
	query := `SELECT a.user_id, s.name,
	                 to_char(a.date, 'YYYY-MM-DD'), to_char(a.time, 'HH24:MI:SS'),
	                 a.status, to_char(a.validated_time, 'HH24:MI:SS'), a.snapshot_key
	          FROM attendance a
	          JOIN staff s ON s.user_id = a.user_id`

	var args []interface{}
	argIdx := 1
	where := ""
	if userID != "" {
		where += fmt.Sprintf(" AND a.user_id = $%d", argIdx)
		args = append(args, userID)
		argIdx++
	}
	if date != "" {
		where += fmt.Sprintf(" AND a.date = $%d::date", argIdx)
		args = append(args, date)
		argIdx++
	}
	if where != "" {
		query += " WHERE" + where[4:]
	}
	query += " ORDER BY a.date, a.time"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var r models.AttendanceRecord
		if err := rows.Scan(&r.UserID, &r.Name, &r.Date, &r.Time,
			&r.Status, &r.ValidatedTime, &r.SnapshotKey); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, r)
	}
	return records, nil
}
