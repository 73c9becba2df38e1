package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/guest-reconciler/internal/domain"
)

// GuestRepo persists canonical guest identities.
type GuestRepo struct{ db *sql.DB }

// NewGuestRepo creates a Postgres-backed guest repository.
func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{db: db} }

const guestColumns = `id, COALESCE(legacy_id, ''), COALESCE(email, ''), full_name,
	first_name, last_name, companion_name, phone, country, notes, stats,
	profile_type, created_at, updated_at`

// FindByLegacyID returns the guest carrying the external legacy id.
func (r *GuestRepo) FindByLegacyID(ctx context.Context, legacyID string) (*domain.GuestIdentity, error) {
	return r.findOne(ctx, "find guest by legacy id",
		`SELECT `+guestColumns+` FROM guests WHERE legacy_id = $1`, legacyID)
}

// FindByEmail matches email case-insensitively.
func (r *GuestRepo) FindByEmail(ctx context.Context, email string) (*domain.GuestIdentity, error) {
	return r.findOne(ctx, "find guest by email",
		`SELECT `+guestColumns+` FROM guests WHERE lower(email) = lower($1)
		ORDER BY created_at, id LIMIT 1`, email)
}

// FindByFullName matches the full name case-insensitively. When several
// guests share a name the oldest wins.
func (r *GuestRepo) FindByFullName(ctx context.Context, fullName string) (*domain.GuestIdentity, error) {
	return r.findOne(ctx, "find guest by name",
		`SELECT `+guestColumns+` FROM guests WHERE lower(full_name) = lower($1)
		ORDER BY created_at, id LIMIT 1`, fullName)
}

// Get returns a guest by id.
func (r *GuestRepo) Get(ctx context.Context, id string) (*domain.GuestIdentity, error) {
	return r.findOne(ctx, "get guest",
		`SELECT `+guestColumns+` FROM guests WHERE id = $1`, id)
}

// Create inserts a new guest. Empty legacy ids and emails are stored as NULL
// so the partial unique indexes ignore them.
func (r *GuestRepo) Create(ctx context.Context, g *domain.GuestIdentity) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.ProfileType == "" {
		g.ProfileType = domain.ProfileGuest
	}
	stats, err := json.Marshal(domain.NonEmptyStats(g.Stats))
	if err != nil {
		return fmt.Errorf("encode guest stats: %w", err)
	}
	err = conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO guests (id, legacy_id, email, full_name, first_name, last_name,
			companion_name, phone, country, notes, stats, profile_type, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING created_at, updated_at
	`, g.ID, g.LegacyID, g.Email, g.FullName, g.FirstName, g.LastName,
		g.CompanionName, g.Phone, g.Country, g.Notes, string(stats), g.ProfileType,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return classify("create guest", err)
	}
	return nil
}

// Update applies the non-empty fields of patch to guest id. The legacy id is
// never written; stats merge key by key.
func (r *GuestRepo) Update(ctx context.Context, id string, patch *domain.GuestIdentity) (*domain.GuestIdentity, error) {
	stats, err := json.Marshal(domain.NonEmptyStats(patch.Stats))
	if err != nil {
		return nil, fmt.Errorf("encode guest stats: %w", err)
	}
	row := conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE guests SET
			email          = COALESCE(NULLIF($2, ''), email),
			full_name      = COALESCE(NULLIF($3, ''), full_name),
			first_name     = COALESCE(NULLIF($4, ''), first_name),
			last_name      = COALESCE(NULLIF($5, ''), last_name),
			companion_name = COALESCE(NULLIF($6, ''), companion_name),
			phone          = COALESCE(NULLIF($7, ''), phone),
			country        = COALESCE(NULLIF($8, ''), country),
			notes          = COALESCE(NULLIF($9, ''), notes),
			stats          = COALESCE(stats, '{}'::jsonb) || $10::jsonb,
			profile_type   = COALESCE(NULLIF($11, ''), profile_type),
			updated_at     = NOW()
		WHERE id = $1
		RETURNING `+guestColumns,
		id, patch.Email, patch.FullName, patch.FirstName, patch.LastName,
		patch.CompanionName, patch.Phone, patch.Country, patch.Notes, string(stats), string(patch.ProfileType),
	)
	g, err := scanGuest(row)
	if err != nil {
		return nil, classify("update guest", err)
	}
	return g, nil
}

// Count returns the number of guests.
func (r *GuestRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM guests`).Scan(&n); err != nil {
		return 0, classify("count guests", err)
	}
	return n, nil
}

func (r *GuestRepo) findOne(ctx context.Context, op, query string, arg string) (*domain.GuestIdentity, error) {
	g, err := scanGuest(conn(ctx, r.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, classify(op, err)
	}
	return g, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGuest(row rowScanner) (*domain.GuestIdentity, error) {
	var (
		g     domain.GuestIdentity
		stats []byte
	)
	if err := row.Scan(&g.ID, &g.LegacyID, &g.Email, &g.FullName, &g.FirstName, &g.LastName,
		&g.CompanionName, &g.Phone, &g.Country, &g.Notes, &stats, &g.ProfileType,
		&g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &g.Stats); err != nil {
			return nil, fmt.Errorf("decode guest stats: %w", err)
		}
	}
	return &g, nil
}
