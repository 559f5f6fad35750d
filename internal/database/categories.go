package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listCategories = `
SELECT id, name, image_url, sort_order, is_active, created_at
FROM categories
WHERE is_active = TRUE
ORDER BY sort_order, name
`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ImageURL, &c.SortOrder, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const getCategory = `
SELECT id, name, image_url, sort_order, is_active, created_at
FROM categories
WHERE id = $1 AND is_active = TRUE
`

func (q *Queries) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	row := q.db.QueryRow(ctx, getCategory, id)
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.ImageURL, &c.SortOrder, &c.IsActive, &c.CreatedAt)
	return c, err
}

const createCategory = `
INSERT INTO categories (name, image_url, sort_order)
VALUES ($1, $2, $3)
RETURNING id, name, image_url, sort_order, is_active, created_at
`

type CreateCategoryParams struct {
	Name      string
	ImageURL  pgtype.Text
	SortOrder int32
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory, arg.Name, arg.ImageURL, arg.SortOrder)
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.ImageURL, &c.SortOrder, &c.IsActive, &c.CreatedAt)
	return c, err
}

const updateCategory = `
UPDATE categories
SET name = $2, image_url = $3, sort_order = $4
WHERE id = $1 AND is_active = TRUE
RETURNING id, name, image_url, sort_order, is_active, created_at
`

type UpdateCategoryParams struct {
	ID        uuid.UUID
	Name      string
	ImageURL  pgtype.Text
	SortOrder int32
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, updateCategory, arg.ID, arg.Name, arg.ImageURL, arg.SortOrder)
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.ImageURL, &c.SortOrder, &c.IsActive, &c.CreatedAt)
	return c, err
}

const softDeleteCategory = `
UPDATE categories
SET is_active = FALSE
WHERE id = $1 AND is_active = TRUE
RETURNING id
`

func (q *Queries) SoftDeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteCategory, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}
