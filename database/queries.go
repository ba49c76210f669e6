package database

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is an interface that both sql.DB and sql.Tx implement.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries provides table-aware database operations.
type Queries struct {
	db        DBTX
	tableName string
}

// NewQueries creates a new Queries instance with the given table name prefix.
func NewQueries(db DBTX, tableName string) *Queries {
	return &Queries{
		db:        db,
		tableName: tableName,
	}
}

var (
	listBackendsSQL = `
SELECT service_id, backend_id, weight, available, overloaded, updated_at
FROM %s_backends
WHERE service_id = $1
ORDER BY backend_id ASC;`

	getBackendSQL = `
SELECT service_id, backend_id, weight, available, overloaded, updated_at
FROM %s_backends
WHERE service_id = $1 AND backend_id = $2;`

	upsertBackendSQL = `
INSERT INTO %s_backends (service_id, backend_id, weight, available, overloaded, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (service_id, backend_id)
DO UPDATE SET
    weight = EXCLUDED.weight,
    available = EXCLUDED.available,
    overloaded = EXCLUDED.overloaded,
    updated_at = NOW();`

	deleteBackendSQL = `
DELETE FROM %s_backends
WHERE service_id = $1 AND backend_id = $2;`

	listServicesSQL = `
SELECT DISTINCT service_id
FROM %s_backends
ORDER BY service_id ASC;`
)

// ListBackends returns all backends for a service, ordered by backend ID.
func (q *Queries) ListBackends(ctx context.Context, serviceID string) ([]*BackendRecord, error) {
	var (
		query     = fmt.Sprintf(listBackendsSQL, q.tableName)
		rows, err = q.db.QueryContext(ctx, query, serviceID)
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list backends: %w", err)
	}
	defer rows.Close()

	var backends []*BackendRecord
	for rows.Next() {
		var backend BackendRecord
		if err := rows.Scan(&backend.ServiceID, &backend.BackendID, &backend.Weight,
			&backend.Available, &backend.Overloaded, &backend.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backend: %w", err)
		}
		backends = append(backends, &backend)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return backends, nil
}

// GetBackend retrieves a single backend, or nil if not found.
func (q *Queries) GetBackend(ctx context.Context, serviceID, backendID string) (*BackendRecord, error) {
	var (
		query   = fmt.Sprintf(getBackendSQL, q.tableName)
		backend BackendRecord
		err     = q.db.QueryRowContext(ctx, query, serviceID, backendID).Scan(
			&backend.ServiceID, &backend.BackendID, &backend.Weight,
			&backend.Available, &backend.Overloaded, &backend.UpdatedAt,
		)
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backend: %w", err)
	}

	return &backend, nil
}

// UpsertBackend inserts or updates a backend.
func (q *Queries) UpsertBackend(ctx context.Context, backend *BackendRecord) error {
	var query = fmt.Sprintf(upsertBackendSQL, q.tableName)
	_, err := q.db.ExecContext(ctx, query,
		backend.ServiceID, backend.BackendID, backend.Weight,
		backend.Available, backend.Overloaded,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert backend: %w", err)
	}
	return nil
}

// DeleteBackend removes a backend from a service.
func (q *Queries) DeleteBackend(ctx context.Context, serviceID, backendID string) error {
	var query = fmt.Sprintf(deleteBackendSQL, q.tableName)
	_, err := q.db.ExecContext(ctx, query, serviceID, backendID)
	if err != nil {
		return fmt.Errorf("failed to delete backend: %w", err)
	}
	return nil
}

// ListServices returns the IDs of all services with at least one backend.
func (q *Queries) ListServices(ctx context.Context) ([]string, error) {
	var (
		query     = fmt.Sprintf(listServicesSQL, q.tableName)
		rows, err = q.db.QueryContext(ctx, query)
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []string
	for rows.Next() {
		var serviceID string
		if err := rows.Scan(&serviceID); err != nil {
			return nil, fmt.Errorf("failed to scan service ID: %w", err)
		}
		services = append(services, serviceID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return services, nil
}
