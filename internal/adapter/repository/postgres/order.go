package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/merchantlabs/backoffice/internal/audit"
	"github.com/merchantlabs/backoffice/internal/domain/order"
)

// OrderModel is the database DTO with gorm tags.
type OrderModel struct {
	ID         int64  `gorm:"primaryKey"`
	CustomerID int64  `gorm:"not null;index"`
	Status     string `gorm:"type:varchar(20);not null"`
	Currency   string `gorm:"type:varchar(3);not null"`
	TotalCents int64  `gorm:"not null"`

	Lines []OrderLineModel `gorm:"foreignKey:OrderID"`

	audit.Meta

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

func (m *OrderModel) AuditResource() (string, string) {
	return "order", strconv.FormatInt(m.ID, 10)
}

type OrderLineModel struct {
	ID             int64  `gorm:"primaryKey"`
	OrderID        int64  `gorm:"not null;index"`
	ProductID      int64  `gorm:"not null"`
	SKU            string `gorm:"type:varchar(64);not null"`
	Quantity       int    `gorm:"not null"`
	UnitPriceCents int64  `gorm:"not null"`
}

func (OrderLineModel) TableName() string {
	return "order_lines"
}

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Lines").First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return orderToDomain(model), nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]*order.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]*order.Order, 0, len(models))
	for _, m := range models {
		out = append(out, orderToDomain(m))
	}
	return out, nil
}

func (r *OrderRepository) Create(ctx context.Context, entity *order.Order) error {
	return r.CreateTx(ctx, r.db, entity)
}

// CreateTx inserts the order and its lines within the caller's transaction.
func (r *OrderRepository) CreateTx(ctx context.Context, tx *gorm.DB, entity *order.Order) error {
	if tx == nil {
		tx = r.db
	}
	model := orderToModel(entity)
	if err := tx.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	entity.CreatedBy = model.CreatedBy
	entity.ModifiedBy = model.ModifiedBy
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, entity *order.Order) error {
	return r.UpdateTx(ctx, r.db, entity)
}

// UpdateTx persists changes to the order row; lines are immutable.
func (r *OrderRepository) UpdateTx(ctx context.Context, tx *gorm.DB, entity *order.Order) error {
	if tx == nil {
		tx = r.db
	}
	model := orderToModel(entity)
	err := tx.WithContext(ctx).
		Model(&model).
		Select("*").
		Omit(clause.Associations, "id", "created_at", "created_by").
		Updates(&model).Error
	if err != nil {
		return err
	}
	entity.Version = model.Version
	entity.ModifiedBy = model.ModifiedBy
	return nil
}

func orderToDomain(m OrderModel) *order.Order {
	lines := make([]order.Line, 0, len(m.Lines))
	for _, l := range m.Lines {
		lines = append(lines, order.Line{
			ID:             l.ID,
			ProductID:      l.ProductID,
			SKU:            l.SKU,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		})
	}

	return &order.Order{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Status:     order.Status(m.Status),
		Currency:   m.Currency,
		TotalCents: m.TotalCents,
		Lines:      lines,
		CreatedBy:  m.CreatedBy,
		ModifiedBy: m.ModifiedBy,
		Version:    m.Version,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func orderToModel(e *order.Order) OrderModel {
	lines := make([]OrderLineModel, 0, len(e.Lines))
	for _, l := range e.Lines {
		lines = append(lines, OrderLineModel{
			ID:             l.ID,
			OrderID:        e.ID,
			ProductID:      l.ProductID,
			SKU:            l.SKU,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		})
	}

	return OrderModel{
		ID:         e.ID,
		CustomerID: e.CustomerID,
		Status:     string(e.Status),
		Currency:   e.Currency,
		TotalCents: e.TotalCents,
		Lines:      lines,
		Meta: audit.Meta{
			CreatedBy:  e.CreatedBy,
			ModifiedBy: e.ModifiedBy,
			Version:    e.Version,
		},
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
