package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/merchantlabs/backoffice/internal/audit"
	"github.com/merchantlabs/backoffice/internal/domain/identity"
)

// UserModel is the database DTO with gorm tags. User rows are only audited
// once an actor context exists; registration noise stays out of the trail.
type UserModel struct {
	ID           int64  `gorm:"primaryKey"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	DisplayName  string `gorm:"type:varchar(255)"`
	Role         string `gorm:"type:varchar(20);not null"`

	audit.Meta

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) AuditResource() (string, string) {
	return "user", strconv.FormatInt(m.ID, 10)
}

type RefreshTokenModel struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"not null;index"`
	Token     string `gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt time.Time
	RevokedAt *time.Time

	audit.Meta

	CreatedAt time.Time
}

func (RefreshTokenModel) TableName() string {
	return "refresh_tokens"
}

func (m *RefreshTokenModel) AuditResource() (string, string) {
	return "refresh_token", strconv.FormatInt(m.ID, 10)
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindUserByID(ctx context.Context, id int64) (*identity.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return userToDomain(model), nil
}

func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).First(&model, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return userToDomain(model), nil
}

func (r *UserRepository) CreateUser(ctx context.Context, u *identity.User) error {
	model := userToModel(u)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *UserRepository) UpdateUser(ctx context.Context, u *identity.User) error {
	model := userToModel(u)
	return r.db.WithContext(ctx).
		Model(&model).
		Select("*").
		Omit("id", "created_at", "created_by").
		Updates(&model).Error
}

func (r *UserRepository) CreateRefreshToken(ctx context.Context, t *identity.RefreshToken) error {
	model := RefreshTokenModel{
		ID:        t.ID,
		UserID:    t.UserID,
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
		RevokedAt: t.RevokedAt,
		CreatedAt: t.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*identity.RefreshToken, error) {
	var model RefreshTokenModel
	if err := r.db.WithContext(ctx).First(&model, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity.RefreshToken{
		ID:        model.ID,
		UserID:    model.UserID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		RevokedAt: model.RevokedAt,
		CreatedAt: model.CreatedAt,
	}, nil
}

func (r *UserRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&RefreshTokenModel{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Update("revoked_at", now).Error
}

func userToDomain(m UserModel) *identity.User {
	return &identity.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		DisplayName:  m.DisplayName,
		Role:         identity.Role(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func userToModel(u *identity.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		DisplayName:  u.DisplayName,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
