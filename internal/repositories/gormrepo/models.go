package gormrepo

import (
	"time"

	"gorm.io/gorm"
)

type cartRecord struct {
	ID        string `gorm:"primaryKey;size:32"`
	OwnerKey  string `gorm:"size:128;uniqueIndex"`
	Kind      string `gorm:"size:16"`
	Currency  string `gorm:"size:3"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []cartItemRecord `gorm:"foreignKey:CartID;references:ID"`
}

func (cartRecord) TableName() string { return "carts" }

type cartItemRecord struct {
	ID        string  `gorm:"primaryKey;size:32"`
	CartID    string  `gorm:"size:32;index"`
	ProductID string  `gorm:"size:32;index"`
	VariantID *string `gorm:"size:32"`
	SKU       string  `gorm:"size:64"`
	Quantity  int
	UnitPrice int64
	Currency  string `gorm:"size:3"`
	AddedAt   time.Time
	UpdatedAt *time.Time
}

func (cartItemRecord) TableName() string { return "cart_items" }

type productRecord struct {
	ID               string `gorm:"primaryKey;size:32"`
	Name             string `gorm:"size:255"`
	SKU              string `gorm:"size:64;uniqueIndex"`
	BasePrice        int64
	Currency         string `gorm:"size:3"`
	MinOrderQuantity int
	Stock            int
	LowStockLevel    int
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Variants []productVariantRecord `gorm:"foreignKey:ProductID;references:ID"`
	Tiers    []bulkPricingTierRecord `gorm:"foreignKey:ProductID;references:ID"`
}

func (productRecord) TableName() string { return "products" }

type productVariantRecord struct {
	ID         string `gorm:"primaryKey;size:32"`
	ProductID  string `gorm:"size:32;index"`
	SKU        string `gorm:"size:64;uniqueIndex"`
	Price      int64
	Stock      int
	Attributes string `gorm:"type:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (productVariantRecord) TableName() string { return "product_variants" }

type bulkPricingTierRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ProductID   string `gorm:"size:32;index"`
	MinQuantity int
	Price       int64
}

func (bulkPricingTierRecord) TableName() string { return "bulk_pricing_tiers" }

// Migrate creates or updates the schema for every table this package owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&cartRecord{},
		&cartItemRecord{},
		&productRecord{},
		&productVariantRecord{},
		&bulkPricingTierRecord{},
	)
}
