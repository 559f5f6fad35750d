package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listMenuItems = `
SELECT id, category_id, name, description, price, image_url, is_available, created_at
FROM menu_items
WHERE is_available = TRUE
  AND ($1::uuid IS NULL OR category_id = $1)
ORDER BY name
`

func (q *Queries) ListMenuItems(ctx context.Context, categoryID pgtype.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.ImageURL, &m.IsAvailable, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const getMenuItem = `
SELECT id, category_id, name, description, price, image_url, is_available, created_at
FROM menu_items
WHERE id = $1
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, id)
	var m MenuItem
	err := row.Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.ImageURL, &m.IsAvailable, &m.CreatedAt)
	return m, err
}

const createMenuItem = `
INSERT INTO menu_items (category_id, name, description, price, image_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, category_id, name, description, price, image_url, is_available, created_at
`

type CreateMenuItemParams struct {
	CategoryID  uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	ImageURL    pgtype.Text
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem, arg.CategoryID, arg.Name, arg.Description, arg.Price, arg.ImageURL)
	var m MenuItem
	err := row.Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.ImageURL, &m.IsAvailable, &m.CreatedAt)
	return m, err
}

const updateMenuItem = `
UPDATE menu_items
SET name = $2, description = $3, price = $4, image_url = $5, is_available = $6
WHERE id = $1
RETURNING id, category_id, name, description, price, image_url, is_available, created_at
`

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	ImageURL    pgtype.Text
	IsAvailable bool
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem, arg.ID, arg.Name, arg.Description, arg.Price, arg.ImageURL, arg.IsAvailable)
	var m MenuItem
	err := row.Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price, &m.ImageURL, &m.IsAvailable, &m.CreatedAt)
	return m, err
}

const deleteMenuItem = `
DELETE FROM menu_items
WHERE id = $1
RETURNING id
`

func (q *Queries) DeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteMenuItem, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}
