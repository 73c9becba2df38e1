package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/lib/pq"
)

// VendorRepo persists vendors and repoints their dependent records during
// merges. Merge methods expect to run inside TxManager.WithinTx.
type VendorRepo struct{ db *sql.DB }

// NewVendorRepo creates a Postgres-backed vendor repository.
func NewVendorRepo(db *sql.DB) *VendorRepo { return &VendorRepo{db: db} }

const vendorColumns = `id, name, type, email, phone, is_active, COALESCE(legacy_id, ''), color_tag, created_at, updated_at`

// Roster returns every vendor not yet merged, with usage counts, most used
// first.
func (r *VendorRepo) Roster(ctx context.Context) ([]domain.VendorUsage, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, name, type, email, phone, is_active, legacy_id, color_tag, created_at, updated_at,
			transfers, products, users
		FROM (
			SELECT v.id, v.name, v.type, v.email, v.phone, v.is_active, COALESCE(v.legacy_id, '') AS legacy_id,
				v.color_tag, v.created_at, v.updated_at,
				(SELECT COUNT(*) FROM transfers t WHERE t.vendor_id = v.id) AS transfers,
				(SELECT COUNT(*) FROM vendor_products p WHERE p.vendor_id = v.id) AS products,
				(SELECT COUNT(*) FROM vendor_users u WHERE u.vendor_id = v.id) AS users
			FROM vendors v
			WHERE rtrim(v.name) NOT LIKE '%[MERGED]'
		) roster
		ORDER BY transfers + products + users DESC, name
	`)
	if err != nil {
		return nil, classify("vendor roster", err)
	}
	defer rows.Close()

	var out []domain.VendorUsage
	for rows.Next() {
		var u domain.VendorUsage
		v := &u.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Type, &v.Email, &v.Phone, &v.IsActive, &v.LegacyID,
			&v.ColorTag, &v.CreatedAt, &v.UpdatedAt, &u.Transfers, &u.Products, &u.Users); err != nil {
			return nil, fmt.Errorf("scan vendor usage: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("vendor roster", err)
	}
	return out, nil
}

// LockVendors loads and row-locks the given vendors. Missing ids are simply
// absent from the result.
func (r *VendorRepo) LockVendors(ctx context.Context, ids []string) ([]domain.VendorIdentity, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, classify("lock vendors", err)
	}
	defer rows.Close()

	var out []domain.VendorIdentity
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("lock vendors", err)
	}
	return out, nil
}

// RepointTransfers moves every transfer of the duplicates to the master.
func (r *VendorRepo) RepointTransfers(ctx context.Context, masterID string, duplicateIDs []string) (int, error) {
	return r.repoint(ctx, "repoint transfers",
		`UPDATE transfers SET vendor_id = $1 WHERE vendor_id = ANY($2)`, masterID, duplicateIDs)
}

// RepointProducts moves every vendor product of the duplicates to the master.
func (r *VendorRepo) RepointProducts(ctx context.Context, masterID string, duplicateIDs []string) (int, error) {
	return r.repoint(ctx, "repoint vendor products",
		`UPDATE vendor_products SET vendor_id = $1 WHERE vendor_id = ANY($2)`, masterID, duplicateIDs)
}

func (r *VendorRepo) repoint(ctx context.Context, op, query, masterID string, duplicateIDs []string) (int, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, query, masterID, pq.Array(duplicateIDs))
	if err != nil {
		return 0, classify(op, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListUsers row-locks and returns the users of the given vendors, ordered
// by vendor then id.
func (r *VendorRepo) ListUsers(ctx context.Context, vendorIDs []string) ([]domain.VendorUser, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, vendor_id, email, name, is_active
		FROM vendor_users WHERE vendor_id = ANY($1)
		ORDER BY vendor_id, id FOR UPDATE
	`, pq.Array(vendorIDs))
	if err != nil {
		return nil, classify("list vendor users", err)
	}
	defer rows.Close()

	var out []domain.VendorUser
	for rows.Next() {
		var u domain.VendorUser
		if err := rows.Scan(&u.ID, &u.VendorID, &u.Email, &u.Name, &u.IsActive); err != nil {
			return nil, fmt.Errorf("scan vendor user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list vendor users", err)
	}
	return out, nil
}

// MoveUser repoints a vendor user to vendorID, deactivating it in the same
// statement when deactivate is set.
func (r *VendorRepo) MoveUser(ctx context.Context, userID, vendorID string, deactivate bool) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE vendor_users
		SET vendor_id = $2, is_active = is_active AND NOT $3
		WHERE id = $1
	`, userID, vendorID, deactivate)
	if err != nil {
		return classify("move vendor user", err)
	}
	return nil
}

// Deactivate marks the vendors inactive and suffixes their names with the
// merge marker. Already merged vendors are left alone.
func (r *VendorRepo) Deactivate(ctx context.Context, ids []string) (int, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE vendors
		SET is_active = false, name = name || ' `+domain.MergedMarker+`', updated_at = NOW()
		WHERE id = ANY($1) AND rtrim(name) NOT LIKE '%[MERGED]'
	`, pq.Array(ids))
	if err != nil {
		return 0, classify("deactivate vendors", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RecordMerge writes one vendor_merges audit row.
func (r *VendorRepo) RecordMerge(ctx context.Context, masterID, duplicateID, reason string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO vendor_merges (id, master_id, duplicate_id, reason, merged_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, uuid.New().String(), masterID, duplicateID, reason)
	if err != nil {
		return classify("record vendor merge", err)
	}
	return nil
}

// Upsert inserts a vendor or updates an existing one. Merged vendors are
// never touched; upserting one returns a conflict.
func (r *VendorRepo) Upsert(ctx context.Context, v *domain.VendorIdentity) (*domain.VendorIdentity, error) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	row := conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO vendors (id, name, type, email, phone, is_active, legacy_id, color_tag, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name       = EXCLUDED.name,
			type       = EXCLUDED.type,
			email      = EXCLUDED.email,
			phone      = EXCLUDED.phone,
			is_active  = EXCLUDED.is_active,
			color_tag  = EXCLUDED.color_tag,
			updated_at = NOW()
		WHERE rtrim(vendors.name) NOT LIKE '%[MERGED]'
		RETURNING `+vendorColumns,
		v.ID, v.Name, v.Type, v.Email, v.Phone, v.IsActive, v.LegacyID, v.ColorTag,
	)
	saved, err := scanVendor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ConflictError("upsert vendor", "vendor %s has been merged and cannot be edited", v.ID)
	}
	if err != nil {
		return nil, classify("upsert vendor", err)
	}
	return saved, nil
}

// Get returns a vendor by id.
func (r *VendorRepo) Get(ctx context.Context, id string) (*domain.VendorIdentity, error) {
	v, err := scanVendor(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get vendor", err)
	}
	return v, nil
}

func scanVendor(row rowScanner) (*domain.VendorIdentity, error) {
	var v domain.VendorIdentity
	if err := row.Scan(&v.ID, &v.Name, &v.Type, &v.Email, &v.Phone, &v.IsActive, &v.LegacyID,
		&v.ColorTag, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}
