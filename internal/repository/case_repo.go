package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"case-console/internal/database"
	"case-console/internal/model"
	"case-console/pkg/apierror"
)

type CaseRepository struct {
	pool *pgxpool.Pool
}

func NewCaseRepository(pool *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{pool: pool}
}

const caseColumns = `id, title, service_type, image_key, location_tag, description, position, created_at, updated_at`

func scanCase(row pgx.Row) (model.Case, error) {
	var c model.Case
	var serviceType string
	err := row.Scan(&c.ID, &c.Title, &serviceType, &c.ImageKey, &c.LocationTag, &c.Description,
		&c.Position, &c.CreatedAt, &c.UpdatedAt)
	c.ServiceType = model.ServiceType(serviceType)
	return c, err
}

func (r *CaseRepository) List(ctx context.Context) ([]model.Case, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+caseColumns+` FROM cases ORDER BY position, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	cases := make([]model.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (r *CaseRepository) FindByID(ctx context.Context, id string) (model.Case, error) {
	c, err := scanCase(r.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Case{}, model.ErrCaseNotFound
	}
	if err != nil {
		return model.Case{}, fmt.Errorf("find case: %w", err)
	}
	return c, nil
}

// Create appends c after the current last position and returns the stored row.
func (r *CaseRepository) Create(ctx context.Context, c model.Case) (model.Case, error) {
	now := time.Now().UTC()
	created, err := scanCase(r.pool.QueryRow(ctx,
		`INSERT INTO cases (id, title, service_type, image_key, location_tag, description, position, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, (SELECT COALESCE(MAX(position) + 1, 0) FROM cases), $7, $7)
		 RETURNING `+caseColumns,
		c.ID, c.Title, string(c.ServiceType), c.ImageKey, c.LocationTag, c.Description, now))
	if err != nil {
		return model.Case{}, fmt.Errorf("create case: %w", err)
	}
	return created, nil
}

// Delete removes the row and returns it so the caller can release its image.
func (r *CaseRepository) Delete(ctx context.Context, id string) (model.Case, error) {
	deleted, err := scanCase(r.pool.QueryRow(ctx,
		`DELETE FROM cases WHERE id = $1 RETURNING `+caseColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Case{}, model.ErrCaseNotFound
	}
	if err != nil {
		return model.Case{}, fmt.Errorf("delete case: %w", err)
	}
	return deleted, nil
}

// Reorder rewrites every position so that ids[i] ranks i. ids must be an
// exact permutation of the stored ids at commit time.
func (r *CaseRepository) Reorder(ctx context.Context, ids []string) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id FROM cases FOR UPDATE`)
		if err != nil {
			return fmt.Errorf("lock cases: %w", err)
		}
		current, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("collect case ids: %w", err)
		}

		if err := validateOrder(current, ids); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE cases
			 SET position = ord.idx - 1, updated_at = now()
			 FROM unnest($1::uuid[]) WITH ORDINALITY AS ord(id, idx)
			 WHERE cases.id = ord.id AND cases.position <> ord.idx - 1`, ids)
		if err != nil {
			return fmt.Errorf("update positions: %w", err)
		}
		return nil
	})
}

func validateOrder(current []string, proposed []string) error {
	seen := make(map[string]struct{}, len(proposed))
	for _, id := range proposed {
		if _, dup := seen[id]; dup {
			return apierror.New("BAD_REQUEST", "duplicate id in order", id, http.StatusBadRequest)
		}
		seen[id] = struct{}{}
	}

	if len(current) != len(proposed) {
		return fmt.Errorf("%w: expected %d ids, got %d", model.ErrOrderConflict, len(current), len(proposed))
	}

	for _, id := range current {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("%w: missing id %s", model.ErrOrderConflict, id)
		}
	}

	return nil
}
