package templates

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// Template - One version of a named remediation template. Versions only
// ever grow; updating a template inserts a new row.
type Template struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS remediation_templates (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	version INT NOT NULL,
	body TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (name, version)
)`

func NewStore(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open template store connection")
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to template store")
	}
	if _, err = db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ensure template store schema")
	}
	return &Store{db: db}, nil
}

func (store *Store) Close() error {
	return store.db.Close()
}

// CreateVersion - Inserts the next version of the named template
func (store *Store) CreateVersion(name string, body string) (Template, error) {
	template := Template{Name: name, Body: body}
	err := store.db.QueryRow(
		`INSERT INTO remediation_templates (name, version, body)
		 VALUES ($1, COALESCE((SELECT MAX(version) FROM remediation_templates WHERE name = $1), 0) + 1, $2)
		 RETURNING id, version, created_at`,
		name, body,
	).Scan(&template.ID, &template.Version, &template.CreatedAt)
	if err != nil {
		return Template{}, errors.Wrap(err, "failed to create template version")
	}
	return template, nil
}

// GetLatest - The highest version of the named template
func (store *Store) GetLatest(name string) (Template, error) {
	template := Template{}
	err := store.db.QueryRow(
		`SELECT id, name, version, body, created_at FROM remediation_templates
		 WHERE name = $1 ORDER BY version DESC LIMIT 1`,
		name,
	).Scan(&template.ID, &template.Name, &template.Version, &template.Body, &template.CreatedAt)
	if err == sql.ErrNoRows {
		return Template{}, errors.Errorf("template %q not found", name)
	}
	if err != nil {
		return Template{}, errors.Wrap(err, "failed to load template")
	}
	return template, nil
}

// ListVersions - All versions of the named template, newest first
func (store *Store) ListVersions(name string) ([]Template, error) {
	rows, err := store.db.Query(
		`SELECT id, name, version, body, created_at FROM remediation_templates
		 WHERE name = $1 ORDER BY version DESC`,
		name,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list template versions")
	}
	defer rows.Close()

	var result []Template
	for rows.Next() {
		template := Template{}
		if err := rows.Scan(&template.ID, &template.Name, &template.Version, &template.Body, &template.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan template row")
		}
		result = append(result, template)
	}
	return result, rows.Err()
}

// Delete - Removes all versions of the named template
func (store *Store) Delete(name string) error {
	_, err := store.db.Exec(`DELETE FROM remediation_templates WHERE name = $1`, name)
	return errors.Wrap(err, "failed to delete template")
}
