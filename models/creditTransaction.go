package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
)

// CreditTransaction is one ledger entry against a user's credit balance.
// Amount is negative for deductions and positive for additions/refunds.
// Balances before/after are denormalized so the ledger audits itself.
type CreditTransaction struct {
	ID            int       `gorm:"primary_key" json:"id"`
	UserId        int       `gorm:"not null;index" json:"user_id"`
	Amount        int       `gorm:"not null" json:"amount"`
	BalanceBefore int       `gorm:"not null" json:"balance_before"`
	BalanceAfter  int       `gorm:"not null" json:"balance_after"`
	Description   string    `gorm:"not null;size:255" json:"description"`
	ReferenceType string    `gorm:"size:50;index:idx_credit_ref,priority:1" json:"reference_type"`
	ReferenceId   int       `gorm:"index:idx_credit_ref,priority:2" json:"reference_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func GetCreditTransactions(ctx context.Context, userId int, limit int) ([]*CreditTransaction, error) {
	var results []*CreditTransaction
	db := config.GetDB()
	q := db.WithContext(ctx).Where("user_id = ?", userId).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetDocumentCreditTransactions lists charge/refund entries tied to one
// document, oldest first.
func GetDocumentCreditTransactions(ctx context.Context, documentId int) ([]*CreditTransaction, error) {
	var results []*CreditTransaction
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("reference_id = ? AND reference_type IN (?)", documentId,
			[]string{CreditReferenceDocument, CreditReferenceDocumentRefund}).
		Order("created_at ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
