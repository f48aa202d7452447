package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the canonical identity record. One row per email; the unique
// index is what keeps two concurrent first-time OAuth sign-ins from
// racing into two records. PasswordHash is nil for OAuth-only accounts.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"   json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"   json:"email"`
	PasswordHash *string   `json:"-"`
	Name         string    `json:"name,omitempty"`
	Image        string    `json:"image,omitempty"`
	Role         string    `gorm:"not null;default:user"  json:"role"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Product struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name        string  `gorm:"not null"                  json:"name"`
	Description string  `gorm:"not null"                  json:"description"`
	Price       float64 `gorm:"not null"                  json:"price"`
	Count       uint    `json:"count"`
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey"                  json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"    json:"user_id"`
	ProductID uint      `gorm:"not null"                    json:"product_id"`
	Quantity  uint      `gorm:"default:1;check:quantity>0"  json:"quantity"`
}

type Order struct {
	ID        uint      `gorm:"primaryKey"                json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"  json:"user_id"`
	CreatedAt int64     `gorm:"not null"                  json:"created_at"`
	Total     float64   `gorm:"not null"                  json:"total"`
	Status    string    `gorm:"not null"                  json:"status"`
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey"                  json:"id"`
	OrderID   uint    `gorm:"index;not null"              json:"order_id"`
	ProductID uint    `gorm:"not null"                    json:"product_id"`
	Quantity  uint    `gorm:"default:1;check:quantity>0"  json:"quantity"`
	Price     float64 `gorm:"not null"                    json:"price"`
}

// DeliveryPoint is one courier position sample for an order in transit.
type DeliveryPoint struct {
	ID         uint      `gorm:"primaryKey"      json:"id"`
	OrderID    uint      `gorm:"index;not null"  json:"order_id"`
	Lat        float64   `gorm:"not null"        json:"lat"`
	Lng        float64   `gorm:"not null"        json:"lng"`
	RecordedAt time.Time `gorm:"not null"        json:"recorded_at"`
}

// All lists every persisted model, in migration order.
func All() []any {
	return []any{&User{}, &Product{}, &CartItem{}, &Order{}, &OrderItem{}, &DeliveryPoint{}}
}
