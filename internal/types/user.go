package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Email    string `gorm:"column:email;not null;index:idx_user_email,unique" json:"email"`
	Password string `gorm:"column:password;not null" json:"-"`
	Name     string `gorm:"column:name" json:"name"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (User) TableName() string { return "user" }

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type UserToken struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	UserID       uuid.UUID `gorm:"type:uuid;not null;index:idx_user_token_user" json:"user_id"`
	RefreshToken string    `gorm:"column:refresh_token;not null;index:idx_user_token_refresh,unique" json:"-"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null" json:"expires_at"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (UserToken) TableName() string { return "user_token" }

func (t *UserToken) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
