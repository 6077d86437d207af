package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID               int       `gorm:"primary_key" json:"id"`
	Name             string    `gorm:"not null;size:100" json:"name"`
	Email            string    `gorm:"not null;uniqueIndex;size:150" json:"email"`
	PasswordHash     string    `gorm:"not null;size:100" json:"-"`
	Role             string    `gorm:"not null;size:20;default:'user'" json:"role"`
	PlanType         string    `gorm:"not null;size:20;default:'free'" json:"plan_type"`
	CreditsRemaining int       `gorm:"not null;default:0" json:"credits_remaining"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	CreditTransactions []*CreditTransaction `json:"-"`
	Documents          []*Document          `json:"-"`
	Templates          []*Template          `json:"-"`
}

type NewUser struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (input NewUser) MapInput() (*User, error) {
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	return &User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hashed),
		Role:         "user",
		PlanType:     "free",
	}, nil
}

func (u *User) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(&u).Error
}

func GetUser(ctx context.Context, id int) (*User, error) {
	var result User
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("user", id)
	}
	return &result, nil
}

func GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var result User
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("email = ?", email).First(&result).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}
