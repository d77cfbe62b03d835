package repo

import (
	"context"
	"database/sql"
	"time"

	"consulaire/internal/domain"
)

// Reference records (organizations, services, profiles) are upserted lazily:
// the lifecycle engine only needs them to exist for display enrichment.

func (r Repo) EnsureOrganization(ctx context.Context, tx *sql.Tx, org domain.Organization) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO organizations(id,name,country_code,created_at) VALUES (?,?,?,?)`,
		org.ID, org.Name, nullable(org.CountryCode), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r Repo) GetOrganization(ctx context.Context, id string) (domain.Organization, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, name, COALESCE(country_code,'') FROM organizations WHERE id=?`, id)
	var org domain.Organization
	err := row.Scan(&org.ID, &org.Name, &org.CountryCode)
	if err == sql.ErrNoRows {
		return domain.Organization{}, ErrNotFound
	}
	return org, err
}

func (r Repo) EnsureService(ctx context.Context, tx *sql.Tx, svc domain.ConsularService) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO consular_services(id,name,category,created_at) VALUES (?,?,?,?)`,
		svc.ID, svc.Name, nullable(svc.Category), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r Repo) GetService(ctx context.Context, id string) (domain.ConsularService, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, name, COALESCE(category,'') FROM consular_services WHERE id=?`, id)
	var svc domain.ConsularService
	err := row.Scan(&svc.ID, &svc.Name, &svc.Category)
	if err == sql.ErrNoRows {
		return domain.ConsularService{}, ErrNotFound
	}
	return svc, err
}

func (r Repo) EnsureProfile(ctx context.Context, tx *sql.Tx, p domain.Profile) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO profiles(id,full_name,contact,created_at) VALUES (?,?,?,?)`,
		p.ID, p.FullName, nullable(p.Contact), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r Repo) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, full_name, COALESCE(contact,'') FROM profiles WHERE id=?`, id)
	var p domain.Profile
	err := row.Scan(&p.ID, &p.FullName, &p.Contact)
	if err == sql.ErrNoRows {
		return domain.Profile{}, ErrNotFound
	}
	return p, err
}
