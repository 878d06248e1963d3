package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/merchantlabs/backoffice/internal/audit"
	"github.com/merchantlabs/backoffice/internal/domain/catalog"
)

// ProductModel is the database DTO with gorm tags.
type ProductModel struct {
	ID          int64  `gorm:"primaryKey"`
	SKU         string `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`
	PriceCents  int64  `gorm:"not null"`
	Currency    string `gorm:"type:varchar(3);not null"`
	Stock       int    `gorm:"not null;default:0"`
	Active      bool   `gorm:"not null;default:true"`

	audit.Meta

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProductModel) TableName() string {
	return "products"
}

func (m *ProductModel) AuditResource() (string, string) {
	return "product", strconv.FormatInt(m.ID, 10)
}

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*catalog.Product, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

// FindByIDTx reads within the caller's transaction.
func (r *ProductRepository) FindByIDTx(ctx context.Context, tx *gorm.DB, id int64) (*catalog.Product, error) {
	if tx == nil {
		tx = r.db
	}
	var model ProductModel
	if err := tx.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return productToDomain(model), nil
}

func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	var model ProductModel
	if err := r.db.WithContext(ctx).First(&model, "sku = ?", sku).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return productToDomain(model), nil
}

func (r *ProductRepository) List(ctx context.Context, limit, offset int) ([]*catalog.Product, error) {
	var models []ProductModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]*catalog.Product, 0, len(models))
	for _, m := range models {
		out = append(out, productToDomain(m))
	}
	return out, nil
}

func (r *ProductRepository) Create(ctx context.Context, entity *catalog.Product) error {
	return r.CreateTx(ctx, r.db, entity)
}

func (r *ProductRepository) CreateTx(ctx context.Context, tx *gorm.DB, entity *catalog.Product) error {
	if tx == nil {
		tx = r.db
	}
	model := productToModel(entity)
	if err := tx.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	entity.CreatedBy = model.CreatedBy
	entity.ModifiedBy = model.ModifiedBy
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, entity *catalog.Product) error {
	return r.UpdateTx(ctx, r.db, entity)
}

func (r *ProductRepository) UpdateTx(ctx context.Context, tx *gorm.DB, entity *catalog.Product) error {
	if tx == nil {
		tx = r.db
	}
	model := productToModel(entity)
	err := tx.WithContext(ctx).
		Model(&model).
		Select("*").
		Omit("id", "created_at", "created_by").
		Updates(&model).Error
	if err != nil {
		return err
	}
	entity.Version = model.Version
	entity.ModifiedBy = model.ModifiedBy
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&ProductModel{ID: id}).Error
}

func productToDomain(m ProductModel) *catalog.Product {
	return &catalog.Product{
		ID:          m.ID,
		SKU:         m.SKU,
		Name:        m.Name,
		Description: m.Description,
		PriceCents:  m.PriceCents,
		Currency:    m.Currency,
		Stock:       m.Stock,
		Active:      m.Active,
		CreatedBy:   m.CreatedBy,
		ModifiedBy:  m.ModifiedBy,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func productToModel(e *catalog.Product) ProductModel {
	return ProductModel{
		ID:          e.ID,
		SKU:         e.SKU,
		Name:        e.Name,
		Description: e.Description,
		PriceCents:  e.PriceCents,
		Currency:    e.Currency,
		Stock:       e.Stock,
		Active:      e.Active,
		Meta: audit.Meta{
			CreatedBy:  e.CreatedBy,
			ModifiedBy: e.ModifiedBy,
			Version:    e.Version,
		},
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
