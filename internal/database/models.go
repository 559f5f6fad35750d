package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	Username       string
	FullName       string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
}

type Category struct {
	ID        uuid.UUID
	Name      string
	ImageURL  pgtype.Text
	SortOrder int32
	IsActive  bool
	CreatedAt time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	ImageURL    pgtype.Text
	IsAvailable bool
	CreatedAt   time.Time
}

type Order struct {
	ID          uuid.UUID
	OrderNumber int32
	Status      string
	TotalAmount pgtype.Numeric
	PlacedBy    uuid.UUID
	// WaiterName is populated by the read queries (users join); write
	// queries leave it empty.
	WaiterName string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	Price      pgtype.Numeric
	Quantity   int32
	Note       pgtype.Text
	Done       bool
	Position   int32
}

type Payment struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	Method     string
	Amount     pgtype.Numeric
	ReceivedBy uuid.UUID
	CreatedAt  time.Time
}
