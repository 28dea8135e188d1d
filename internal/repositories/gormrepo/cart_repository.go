package gormrepo

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/repositories"
)

// CartRepository persists carts and items in MySQL via gorm.
type CartRepository struct {
	db    *gorm.DB
	clock func() time.Time
	newID func() string

	currency string
}

// NewCartRepository builds a CartRepository. Carts created on demand carry the
// given default currency.
func NewCartRepository(db *gorm.DB, currency string) (*CartRepository, error) {
	if db == nil {
		return nil, errors.New("gormrepo: db is required")
	}
	if currency == "" {
		currency = "USD"
	}
	return &CartRepository{
		db:       db,
		clock:    func() time.Time { return time.Now().UTC() },
		newID:    func() string { return ulid.Make().String() },
		currency: currency,
	}, nil
}

var _ repositories.CartRepository = (*CartRepository)(nil)

func (r *CartRepository) GetCart(ctx context.Context, ownerKey string, kind domain.CartKind) (domain.Cart, error) {
	const op = "CartRepository.GetCart"
	var rec cartRecord
	err := r.db.WithContext(ctx).Preload("Items").Where("owner_key = ?", ownerKey).First(&rec).Error
	if err == nil {
		return cartFromRecord(rec), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Cart{}, storeErr(op, err)
	}

	now := r.clock()
	rec = cartRecord{
		ID:        r.newID(),
		OwnerKey:  ownerKey,
		Kind:      string(kind),
		Currency:  r.currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		// A concurrent create for the same owner key hit the unique index
		// first; its row is the cart.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.FindCart(ctx, ownerKey)
		}
		return domain.Cart{}, storeErr(op, err)
	}
	return cartFromRecord(rec), nil
}

func (r *CartRepository) FindCart(ctx context.Context, ownerKey string) (domain.Cart, error) {
	const op = "CartRepository.FindCart"
	var rec cartRecord
	err := r.db.WithContext(ctx).Preload("Items").Where("owner_key = ?", ownerKey).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Cart{}, repositories.NewStoreError(repositories.ErrorNotFound, op, "cart not found", err)
		}
		return domain.Cart{}, storeErr(op, err)
	}
	return cartFromRecord(rec), nil
}

// UpsertItem coalesces into an existing line for the same product+variant or
// inserts a new line, inside one transaction, and returns the refreshed cart.
func (r *CartRepository) UpsertItem(ctx context.Context, ownerKey string, item domain.CartItem) (domain.Cart, error) {
	const op = "CartRepository.UpsertItem"
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart cartRecord
		if err := tx.Where("owner_key = ?", ownerKey).First(&cart).Error; err != nil {
			return err
		}

		now := r.clock()
		query := tx.Where("cart_id = ? AND product_id = ?", cart.ID, item.ProductID)
		if item.VariantID != nil {
			query = query.Where("variant_id = ?", *item.VariantID)
		} else {
			query = query.Where("variant_id IS NULL")
		}
		var existing cartItemRecord
		err := query.First(&existing).Error
		switch {
		case err == nil:
			updates := map[string]any{
				"quantity":   existing.Quantity + item.Quantity,
				"unit_price": item.UnitPrice,
				"updated_at": now,
			}
			if err := tx.Model(&cartItemRecord{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec := cartItemRecord{
				ID:        item.ID,
				CartID:    cart.ID,
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				SKU:       item.SKU,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				Currency:  item.Currency,
				AddedAt:   item.AddedAt,
			}
			if rec.ID == "" {
				rec.ID = r.newID()
			}
			if rec.AddedAt.IsZero() {
				rec.AddedAt = now
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		default:
			return err
		}

		return tx.Model(&cartRecord{}).Where("id = ?", cart.ID).Update("updated_at", now).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Cart{}, repositories.NewStoreError(repositories.ErrorNotFound, op, "cart not found", err)
		}
		return domain.Cart{}, storeErr(op, err)
	}
	return r.FindCart(ctx, ownerKey)
}

func (r *CartRepository) UpdateItemQuantity(ctx context.Context, ownerKey, itemID string, quantity int, unitPrice int64, now time.Time) (domain.Cart, error) {
	const op = "CartRepository.UpdateItemQuantity"
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cartID, err := r.cartIDForOwner(tx, ownerKey)
		if err != nil {
			return err
		}
		res := tx.Model(&cartItemRecord{}).
			Where("id = ? AND cart_id = ?", itemID, cartID).
			Updates(map[string]any{"quantity": quantity, "unit_price": unitPrice, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&cartRecord{}).Where("id = ?", cartID).Update("updated_at", now).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Cart{}, repositories.NewStoreError(repositories.ErrorNotFound, op, "cart item not found", err)
		}
		return domain.Cart{}, storeErr(op, err)
	}
	return r.FindCart(ctx, ownerKey)
}

func (r *CartRepository) DeleteItem(ctx context.Context, ownerKey, itemID string) (domain.Cart, error) {
	const op = "CartRepository.DeleteItem"
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cartID, err := r.cartIDForOwner(tx, ownerKey)
		if err != nil {
			return err
		}
		res := tx.Where("id = ? AND cart_id = ?", itemID, cartID).Delete(&cartItemRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&cartRecord{}).Where("id = ?", cartID).Update("updated_at", r.clock()).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Cart{}, repositories.NewStoreError(repositories.ErrorNotFound, op, "cart item not found", err)
		}
		return domain.Cart{}, storeErr(op, err)
	}
	return r.FindCart(ctx, ownerKey)
}

func (r *CartRepository) ClearCart(ctx context.Context, ownerKey string) (domain.Cart, error) {
	const op = "CartRepository.ClearCart"
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cartID, err := r.cartIDForOwner(tx, ownerKey)
		if err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", cartID).Delete(&cartItemRecord{}).Error; err != nil {
			return err
		}
		return tx.Model(&cartRecord{}).Where("id = ?", cartID).Update("updated_at", r.clock()).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Cart{}, repositories.NewStoreError(repositories.ErrorNotFound, op, "cart not found", err)
		}
		return domain.Cart{}, storeErr(op, err)
	}
	return r.FindCart(ctx, ownerKey)
}

func (r *CartRepository) cartIDForOwner(tx *gorm.DB, ownerKey string) (string, error) {
	var cart cartRecord
	if err := tx.Select("id").Where("owner_key = ?", ownerKey).First(&cart).Error; err != nil {
		return "", err
	}
	return cart.ID, nil
}

func storeErr(op string, err error) *repositories.StoreError {
	code := repositories.ErrorUnavailable
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		code = repositories.ErrorConflict
	}
	return repositories.NewStoreError(code, op, err.Error(), err)
}
