package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/millbrook-supply/api/internal/domain"
	"github.com/millbrook-supply/api/internal/platform/pagination"
	"github.com/millbrook-supply/api/internal/repositories"
)

// CatalogRepository reads products, variants, and tiers, and applies the one
// write this core performs against catalog rows: guarded stock updates.
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository builds a CatalogRepository.
func NewCatalogRepository(db *gorm.DB) (*CatalogRepository, error) {
	if db == nil {
		return nil, errors.New("gormrepo: db is required")
	}
	return &CatalogRepository{db: db}, nil
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	const op = "CatalogRepository.GetProduct"
	var rec productRecord
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Preload("Tiers").
		Where("id = ?", productID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Product{}, repositories.NewStoreError(repositories.ErrorNotFound, op, "product not found", err)
		}
		return domain.Product{}, storeErr(op, err)
	}
	return productFromRecord(rec), nil
}

func (r *CatalogRepository) GetVariant(ctx context.Context, variantID string) (domain.ProductVariant, error) {
	const op = "CatalogRepository.GetVariant"
	var rec productVariantRecord
	err := r.db.WithContext(ctx).Where("id = ?", variantID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ProductVariant{}, repositories.NewStoreError(repositories.ErrorNotFound, op, "variant not found", err)
		}
		return domain.ProductVariant{}, storeErr(op, err)
	}
	return variantFromRecord(rec), nil
}

// AdjustProductStock applies a signed delta with a floor guard in the UPDATE
// itself, so concurrent subtractions can never drive the column negative.
func (r *CatalogRepository) AdjustProductStock(ctx context.Context, productID string, delta int, now time.Time) (int, error) {
	const op = "CatalogRepository.AdjustProductStock"
	return r.adjustStock(ctx, op, &productRecord{}, productID, delta, now)
}

// AdjustVariantStock behaves like AdjustProductStock for a variant row.
func (r *CatalogRepository) AdjustVariantStock(ctx context.Context, variantID string, delta int, now time.Time) (int, error) {
	const op = "CatalogRepository.AdjustVariantStock"
	return r.adjustStock(ctx, op, &productVariantRecord{}, variantID, delta, now)
}

func (r *CatalogRepository) adjustStock(ctx context.Context, op string, model any, id string, delta int, now time.Time) (int, error) {
	var level int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(model).Where("id = ?", id)
		if delta < 0 {
			query = query.Where("stock >= ?", -delta)
		}
		res := query.Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", delta),
			"updated_at": now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Either the row does not exist or the floor guard refused the
			// subtraction; a follow-up read distinguishes the two.
			var exists int64
			if err := tx.Model(model).Where("id = ?", id).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return gorm.ErrRecordNotFound
			}
			return errStockFloor
		}
		return tx.Model(model).Select("stock").Where("id = ?", id).Scan(&level).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return 0, repositories.NewStoreError(repositories.ErrorNotFound, op, "row not found", err)
		case errors.Is(err, errStockFloor):
			return 0, repositories.NewStoreError(repositories.ErrorConflict, op,
				fmt.Sprintf("stock cannot go below zero (delta %d)", delta), err)
		default:
			return 0, storeErr(op, err)
		}
	}
	return level, nil
}

var errStockFloor = errors.New("stock floor violated")

// ListLowStock pages products whose stock sits at or below the threshold. A
// negative threshold compares each product against its own low_stock_level.
func (r *CatalogRepository) ListLowStock(ctx context.Context, threshold int, page domain.Pagination) (domain.CursorPage[domain.StockSnapshot], error) {
	const op = "CatalogRepository.ListLowStock"

	params := pagination.Params{PageSize: page.PageSize, PageToken: page.PageToken}.Clamp()
	cursor, err := pagination.DecodeToken(params.PageToken)
	if err != nil {
		return domain.CursorPage[domain.StockSnapshot]{},
			repositories.NewStoreError(repositories.ErrorUnknown, op, "invalid page token", err)
	}
	size := params.PageSize
	offset := cursor.Offset

	query := r.db.WithContext(ctx).Model(&productRecord{})
	if threshold < 0 {
		query = query.Where("stock <= low_stock_level")
	} else {
		query = query.Where("stock <= ?", threshold)
	}

	var recs []productRecord
	if err := query.Order("stock ASC, id ASC").Offset(offset).Limit(size + 1).Find(&recs).Error; err != nil {
		return domain.CursorPage[domain.StockSnapshot]{}, storeErr(op, err)
	}

	var out domain.CursorPage[domain.StockSnapshot]
	if len(recs) > size {
		recs = recs[:size]
		out.NextPageToken = pagination.EncodeToken(pagination.Cursor{Offset: offset + size})
	}
	for _, rec := range recs {
		limit := rec.LowStockLevel
		if threshold >= 0 {
			limit = threshold
		}
		out.Items = append(out.Items, domain.StockSnapshot{
			ProductID:  rec.ID,
			SKU:        rec.SKU,
			Stock:      rec.Stock,
			Threshold:  limit,
			LowStock:   rec.Stock <= limit,
			AdjustedAt: rec.UpdatedAt,
		})
	}
	return out, nil
}
