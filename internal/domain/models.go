// Package domain defines the persistence models for orders, restaurants,
// food items, and drivers. These types are mapped with GORM and form the
// core data layer of the delivery backend.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a placed order and its full lifecycle from PENDING to a
// terminal status. Orders are never deleted; they only reach DELIVERED or
// CANCELLED.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OrderNumber: human-readable unique number (ORD-<timestamp>-<rand>).
//   - UserID / RestaurantID: id-based associations, owned by storage
//     (no embedded object graphs).
//   - DriverID: nil until a driver is assigned at READY.
//   - ItemsJSON: the ordered line items with unit prices frozen at creation
//     time, serialized as JSON.
//   - Status: current lifecycle state (see status.go for the legal edges).
//   - Amount: server-computed total, decimal with 2 fractional digits.
//   - Version: optimistic concurrency token; every status transition must
//     check-and-increment it.
//   - PreparedAt / DeliveredAt: stamped when the order reaches READY and
//     DELIVERED respectively.
type Order struct {
	ID           string          `json:"id"            gorm:"type:char(36);primaryKey"`
	OrderNumber  string          `json:"order_number"  gorm:"type:varchar(32);not null;uniqueIndex:ux_orders_number"`
	UserID       string          `json:"user_id"       gorm:"type:varchar(64);not null;index:idx_orders_user"`
	RestaurantID string          `json:"restaurant_id" gorm:"type:char(36);not null;index:idx_orders_restaurant"`
	DriverID     *string         `json:"driver_id,omitempty" gorm:"type:char(36);index:idx_orders_driver"`
	ItemsJSON    string          `json:"items_json"    gorm:"type:text;not null"`
	Status       OrderStatus     `json:"status"        gorm:"type:varchar(20);not null;index"`
	Address      string          `json:"address"       gorm:"type:varchar(255);not null"`
	Latitude     float64         `json:"latitude"      gorm:"not null"`
	Longitude    float64         `json:"longitude"     gorm:"not null"`
	Amount       decimal.Decimal `json:"amount"        gorm:"type:decimal(19,2);not null"`
	Version      int64           `json:"-"             gorm:"not null;default:0"`
	CreatedAt    time.Time       `json:"created_at"`
	PreparedAt   *time.Time      `json:"prepared_at,omitempty"`
	DeliveredAt  *time.Time      `json:"delivered_at,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// OrderItem is a single line item as frozen into Order.ItemsJSON at creation
// time. UnitPrice is the catalog price captured when the order was placed, so
// later catalog changes never alter a stored total.
type OrderItem struct {
	FoodItemID string          `json:"food_item_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// FoodItem is a catalog entry owned by a restaurant. Items are soft-deleted
// via the Deleted flag (the row is kept so historical orders stay resolvable)
// and can be toggled unavailable without removal.
type FoodItem struct {
	ID           string          `json:"id"            gorm:"type:char(36);primaryKey"`
	RestaurantID string          `json:"restaurant_id" gorm:"type:char(36);not null;index:idx_items_restaurant"`
	Name         string          `json:"name"          gorm:"type:varchar(255);not null"`
	Description  string          `json:"description"   gorm:"type:text"`
	ImgURL       string          `json:"img_url"       gorm:"type:varchar(512)"`
	Price        decimal.Decimal `json:"price"         gorm:"type:decimal(19,2);not null"`
	Available    bool            `json:"available"     gorm:"not null;default:true"`
	Deleted      bool            `json:"-"             gorm:"not null;default:false"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName returns the database table name for FoodItem.
func (FoodItem) TableName() string { return "food_items" }

// Restaurant is the profile of a participating restaurant. Open gates order
// creation: a closed restaurant rejects new orders before pricing runs.
type Restaurant struct {
	ID          string    `json:"id"            gorm:"type:char(36);primaryKey"`
	OwnerUserID string    `json:"owner_user_id" gorm:"type:varchar(64);not null;index"`
	Name        string    `json:"name"          gorm:"type:varchar(255);not null"`
	City        string    `json:"city"          gorm:"type:varchar(128)"`
	State       string    `json:"state"         gorm:"type:varchar(64)"`
	ZipCode     string    `json:"zip_code"      gorm:"type:varchar(16)"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	OpeningTime string    `json:"opening_time"  gorm:"type:varchar(8)"`
	ClosingTime string    `json:"closing_time"  gorm:"type:varchar(8)"`
	ImgURL      string    `json:"img_url"       gorm:"type:varchar(512)"`
	Open        bool      `json:"open"          gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Restaurant.
func (Restaurant) TableName() string { return "restaurants" }

// Driver is a delivery driver. Availability and live location live in the
// cache layer with short TTLs; the row only holds the durable profile.
type Driver struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	Name          string    `json:"name"           gorm:"type:varchar(255);not null"`
	Phone         string    `json:"phone"          gorm:"type:varchar(32)"`
	VehicleNumber string    `json:"vehicle_number" gorm:"type:varchar(32)"`
	Available     bool      `json:"available"      gorm:"not null;default:true"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for Driver.
func (Driver) TableName() string { return "drivers" }
