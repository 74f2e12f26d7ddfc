package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/svcroute/domain/service"
	"github.com/artpar/svcroute/ports"
	"github.com/bytedance/sonic"
)

// ServiceStore implements ports.ServiceStore using SQLite. Definitions are
// stored as JSON documents keyed by service name.
type ServiceStore struct {
	db *DB
}

// NewServiceStore creates a new SQLite service store.
func NewServiceStore(db *DB) *ServiceStore {
	return &ServiceStore{db: db}
}

// List returns all stored definitions ordered by name.
func (s *ServiceStore) List(ctx context.Context) ([]service.Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, definition
		FROM services
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []service.Definition
	for rows.Next() {
		var name, doc string
		if err := rows.Scan(&name, &doc); err != nil {
			return nil, err
		}
		def, err := decodeDefinition(name, doc)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// Get retrieves a definition by service name.
func (s *ServiceStore) Get(ctx context.Context, name string) (service.Definition, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT definition FROM services WHERE name = ?
	`, name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return service.Definition{}, ports.ErrNotFound
	}
	if err != nil {
		return service.Definition{}, err
	}
	return decodeDefinition(name, doc)
}

// Save creates or replaces a definition.
func (s *ServiceStore) Save(ctx context.Context, def service.Definition) error {
	if def.Name == "" {
		return errors.New("service name is required")
	}
	doc, err := sonic.ConfigStd.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode service %s: %w", def.Name, err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO services (name, base_path, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			base_path = excluded.base_path,
			definition = excluded.definition,
			updated_at = excluded.updated_at
	`, def.Name, def.BasePath, string(doc), now, now)
	return err
}

// Delete removes a definition.
func (s *ServiceStore) Delete(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM services WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func decodeDefinition(name, doc string) (service.Definition, error) {
	var def service.Definition
	if err := sonic.ConfigStd.Unmarshal([]byte(doc), &def); err != nil {
		return service.Definition{}, fmt.Errorf("decode service %s: %w", name, err)
	}
	return def, nil
}

var _ ports.ServiceStore = (*ServiceStore)(nil)
