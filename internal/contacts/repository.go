package contacts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for contacts.
type Repository interface {
	// Upsert inserts a contact or, when (list_id, phone) already exists,
	// refreshes the name on the existing row. Import path (scenario: the
	// same phone re-imported into a list must not raise a duplicate-key
	// violation).
	Upsert(ctx context.Context, c Contact) (Contact, error)

	GetByID(ctx context.Context, tenantID, contactID string) (Contact, error)

	// ListByList returns a list's contacts in stable (created_at, id) order
	// so campaign job offsets are deterministic.
	ListByList(ctx context.Context, tenantID, listID string) ([]Contact, error)

	// MarkCalling moves a contact to calling and stamps last_call_id.
	MarkCalling(ctx context.Context, tenantID, contactID, externalCallID string) error

	// SetStatus sets a contact's status by id (job-failure path).
	SetStatus(ctx context.Context, tenantID, contactID string, status ContactStatus) error

	// SetStatusByCall updates the contact matched by (phone, last_call_id).
	// ok=false means no contact matched; callers treat that as a logged
	// no-op, not an error.
	SetStatusByCall(ctx context.Context, tenantID, phone, externalCallID string, status ContactStatus) (ok bool, err error)
}

var (
	ErrNotFound        = errors.New("contacts: not found")
	ErrInvalidArgument = errors.New("contacts: invalid argument")
)

// SQLRepository is the Postgres-backed Repository.
//
// Assumed table:
// - contacts (id, tenant_id, list_id, phone, name, status, retry_count,
//   last_call_id, created_at, updated_at)
//   with UNIQUE(list_id, phone)
type SQLRepository struct {
	db    *sql.DB
	clock func() time.Time
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db, clock: time.Now}
}

const contactColumns = `id, tenant_id, list_id, phone, name, status, retry_count, last_call_id, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (Contact, error) {
	var c Contact
	err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.ListID,
		&c.Phone,
		&c.Name,
		&c.Status,
		&c.RetryCount,
		&c.LastCallID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *SQLRepository) Upsert(ctx context.Context, c Contact) (Contact, error) {
	if c.TenantID == "" || c.ListID == "" || c.Phone == "" {
		return Contact{}, ErrInvalidArgument
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = ContactStatusPending
	}

	const q = `
INSERT INTO contacts (
  id, tenant_id, list_id, phone, name, status, retry_count, last_call_id, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,0,'',$7,$7
)
ON CONFLICT (list_id, phone)
DO UPDATE SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE contacts.name END,
              updated_at = EXCLUDED.updated_at
RETURNING ` + contactColumns
	return scanContact(r.db.QueryRowContext(ctx, q,
		c.ID, c.TenantID, c.ListID, c.Phone, c.Name, c.Status, r.clock().UTC(),
	))
}

func (r *SQLRepository) GetByID(ctx context.Context, tenantID, contactID string) (Contact, error) {
	const q = `
SELECT ` + contactColumns + `
FROM contacts
WHERE tenant_id = $1 AND id = $2
`
	c, err := scanContact(r.db.QueryRowContext(ctx, q, tenantID, contactID))
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (r *SQLRepository) ListByList(ctx context.Context, tenantID, listID string) ([]Contact, error) {
	const q = `
SELECT ` + contactColumns + `
FROM contacts
WHERE tenant_id = $1 AND list_id = $2
ORDER BY created_at, id
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLRepository) MarkCalling(ctx context.Context, tenantID, contactID, externalCallID string) error {
	const q = `
UPDATE contacts
SET status = $3, last_call_id = $4, updated_at = $5
WHERE tenant_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q, tenantID, contactID, ContactStatusCalling, externalCallID, r.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) SetStatus(ctx context.Context, tenantID, contactID string, status ContactStatus) error {
	const q = `
UPDATE contacts
SET status = $3, updated_at = $4
WHERE tenant_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q, tenantID, contactID, status, r.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) SetStatusByCall(ctx context.Context, tenantID, phone, externalCallID string, status ContactStatus) (bool, error) {
	if tenantID == "" || phone == "" || externalCallID == "" {
		return false, ErrInvalidArgument
	}
	const q = `
UPDATE contacts
SET status = $4, updated_at = $5
WHERE tenant_id = $1 AND phone = $2 AND last_call_id = $3
`
	res, err := r.db.ExecContext(ctx, q, tenantID, phone, externalCallID, status, r.clock().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
