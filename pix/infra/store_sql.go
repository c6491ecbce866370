package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pix-lifecycle/pix/domain"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// SQLStore implementa domain.Store sobre database/sql.
//
// As queries são escritas com "?" e reescritas para $n no Postgres. No SQLite
// os instantes ficam em INTEGER (unix millis) para ordenar e comparar certo;
// no Postgres em TIMESTAMPTZ.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

type SQLStoreOption func(*SQLStore)

func WithSQLClock(now func() time.Time) SQLStoreOption {
	return func(s *SQLStore) { s.now = now }
}

func NewSQLStore(db *sql.DB, dialect Dialect, opts ...SQLStoreOption) *SQLStore {
	s := &SQLStore{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const pixColumns = "id, owner, token, amount, status, created_at, expires_at, paid_at"

func (s *SQLStore) Create(ctx context.Context, n domain.NewPix) (domain.Pix, error) {
	n, err := prepareNewPix(n, s.now)
	if err != nil {
		return domain.Pix{}, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO pixes (owner, token, amount, status, created_at, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		n.Owner,
		n.Token,
		n.Amount,
		string(domain.StatusGenerated),
		s.timeArg(n.CreatedAt),
		s.timeArg(n.ExpiresAt),
		s.timeArg(n.CreatedAt),
	).Scan(&id)
	if err != nil {
		if s.isUniqueViolation(err) {
			return domain.Pix{}, domain.ErrDuplicateToken
		}
		return domain.Pix{}, fmt.Errorf("insert pix: %w", err)
	}

	return domain.Pix{
		ID:        id,
		Owner:     n.Owner,
		Token:     n.Token,
		Amount:    n.Amount,
		Status:    domain.StatusGenerated,
		CreatedAt: n.CreatedAt,
		ExpiresAt: n.ExpiresAt,
	}, nil
}

func (s *SQLStore) FindByToken(ctx context.Context, token string) (domain.Pix, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+pixColumns+" FROM pixes WHERE token = ?"), token)
	p, err := s.scanPix(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Pix{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Pix{}, fmt.Errorf("find pix by token: %w", err)
	}
	return p, nil
}

func (s *SQLStore) ListByOwner(ctx context.Context, owner string, req domain.PageRequest) (domain.Page, error) {
	req = req.Normalize()
	page := domain.Page{Page: req.Page, PageSize: req.PageSize, Items: []domain.Pix{}}

	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM pixes WHERE owner = ?"), owner).Scan(&page.Total); err != nil {
		return domain.Page{}, fmt.Errorf("count pix by owner: %w", err)
	}
	if page.Total == 0 {
		return page, nil
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT "+pixColumns+" FROM pixes WHERE owner = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"),
		owner, req.PageSize, req.Offset())
	if err != nil {
		return domain.Page{}, fmt.Errorf("list pix by owner: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := s.scanPix(rows)
		if err != nil {
			return domain.Page{}, fmt.Errorf("scan pix: %w", err)
		}
		page.Items = append(page.Items, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Page{}, fmt.Errorf("list pix by owner: %w", err)
	}
	return page, nil
}

func (s *SQLStore) CountByStatus(ctx context.Context, status domain.Status, owner string) (int64, error) {
	query := "SELECT COUNT(*) FROM pixes WHERE status = ?"
	args := []any{string(status)}
	if owner != "" {
		query += " AND owner = ?"
		args = append(args, owner)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pix by status: %w", err)
	}
	return n, nil
}

// ApplyTransition faz o compare-and-swap no próprio UPDATE: o WHERE status = From
// garante que só uma escrita concorrente acerta a linha.
func (s *SQLStore) ApplyTransition(ctx context.Context, t domain.Transition) error {
	if err := t.Validate(); err != nil {
		return err
	}

	var paidAt any
	if t.PaidAt != nil {
		paidAt = s.timeArg(*t.PaidAt)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(
		"UPDATE pixes SET status = ?, paid_at = ?, updated_at = ? WHERE id = ? AND status = ?"),
		string(t.To), paidAt, s.timeArg(s.now()), t.PixID, string(t.From))
	if err != nil {
		return fmt.Errorf("apply pix transition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply pix transition: %w", err)
	}
	if n == 1 {
		return nil
	}

	// nenhuma linha: ou o Pix não existe ou outro resolvedor chegou antes
	var one int
	err = s.db.QueryRowContext(ctx, s.rebind("SELECT 1 FROM pixes WHERE id = ?"), t.PixID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("apply pix transition: %w", err)
	}
	return domain.ErrConflict
}

func (s *SQLStore) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Pix, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT "+pixColumns+" FROM pixes WHERE status = ? AND expires_at <= ? ORDER BY expires_at ASC LIMIT ?"),
		string(domain.StatusGenerated), s.timeArg(before), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pix: %w", err)
	}
	defer rows.Close()

	var out []domain.Pix
	for rows.Next() {
		p, err := s.scanPix(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pix: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanPix(row rowScanner) (domain.Pix, error) {
	var (
		p      domain.Pix
		status string
	)

	if s.dialect == SQLite {
		var created, expires int64
		var paid sql.NullInt64
		if err := row.Scan(&p.ID, &p.Owner, &p.Token, &p.Amount, &status, &created, &expires, &paid); err != nil {
			return domain.Pix{}, err
		}
		p.CreatedAt = fromMillis(created)
		p.ExpiresAt = fromMillis(expires)
		if paid.Valid {
			t := fromMillis(paid.Int64)
			p.PaidAt = &t
		}
	} else {
		var paid sql.NullTime
		if err := row.Scan(&p.ID, &p.Owner, &p.Token, &p.Amount, &status, &p.CreatedAt, &p.ExpiresAt, &paid); err != nil {
			return domain.Pix{}, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.ExpiresAt = p.ExpiresAt.UTC()
		if paid.Valid {
			t := paid.Time.UTC()
			p.PaidAt = &t
		}
	}

	st, ok := domain.ParseStatus(status)
	if !ok {
		return domain.Pix{}, fmt.Errorf("unknown pix status %q", status)
	}
	p.Status = st
	return p, nil
}

func (s *SQLStore) timeArg(t time.Time) any {
	if s.dialect == SQLite {
		return toMillis(t)
	}
	return t.UTC()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// rebind troca "?" por $1, $2... no Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

var (
	_ domain.Store       = (*SQLStore)(nil)
	_ domain.StaleLister = (*SQLStore)(nil)
)
