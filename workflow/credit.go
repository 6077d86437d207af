package workflow

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
)

// DefaultOCRCost is how many credits one processing attempt charges.
const DefaultOCRCost = 1

// CheckUserCredits verifies the user can afford a processing attempt
// without charging anything.
func CheckUserCredits(ctx context.Context, userId, requiredAmount int) error {
	user, err := models.GetUser(ctx, userId)
	if err != nil {
		return err
	}
	if user.CreditsRemaining < requiredAmount {
		return utils.NewValidationError("insufficient credits: required %d, available %d", requiredAmount, user.CreditsRemaining)
	}
	return nil
}

// DeductCreditsForOCR charges one processing attempt against the user's
// balance inside tx and records the charge with before/after balances. The
// balance row is locked so concurrent attempts cannot overdraw.
func DeductCreditsForOCR(tx *gorm.DB, ctx context.Context, userId int, document *models.Document) error {
	var user models.User
	if err := tx.WithContext(ctx).Clauses(forUpdateClause()).First(&user, userId).Error; err != nil {
		return err
	}

	if user.CreditsRemaining < DefaultOCRCost {
		return utils.NewValidationError("insufficient credits: required %d, available %d", DefaultOCRCost, user.CreditsRemaining)
	}

	balanceBefore := user.CreditsRemaining
	balanceAfter := balanceBefore - DefaultOCRCost

	charge := &models.CreditTransaction{
		UserId:        userId,
		Amount:        -DefaultOCRCost,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Description:   fmt.Sprintf("OCR processing for document: %s", document.OriginalFilename),
		ReferenceType: models.CreditReferenceDocument,
		ReferenceId:   document.ID,
	}
	if err := tx.WithContext(ctx).Create(charge).Error; err != nil {
		return err
	}

	return tx.WithContext(ctx).Model(&user).Update("credits_remaining", balanceAfter).Error
}

// RefundCreditsForFailedOCR reverses the charge for a failed attempt. The
// refund mirrors the latest deduction on the document that has not already
// been refunded, so repeated failed attempts refund once each and a second
// refund call for the same attempt is a no-op.
func RefundCreditsForFailedOCR(tx *gorm.DB, ctx context.Context, userId int, document *models.Document) error {
	var deductions, refunds int64
	if err := tx.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("user_id = ? AND reference_type = ? AND reference_id = ? AND amount < 0",
			userId, models.CreditReferenceDocument, document.ID).
		Count(&deductions).Error; err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("user_id = ? AND reference_type = ? AND reference_id = ?",
			userId, models.CreditReferenceDocumentRefund, document.ID).
		Count(&refunds).Error; err != nil {
		return err
	}
	if refunds >= deductions {
		return nil
	}

	var charge models.CreditTransaction
	if err := tx.WithContext(ctx).
		Where("user_id = ? AND reference_type = ? AND reference_id = ? AND amount < 0",
			userId, models.CreditReferenceDocument, document.ID).
		Order("created_at DESC, id DESC").
		First(&charge).Error; err != nil {
		return err
	}

	var user models.User
	if err := tx.WithContext(ctx).Clauses(forUpdateClause()).First(&user, userId).Error; err != nil {
		return err
	}

	refundAmount := -charge.Amount
	balanceBefore := user.CreditsRemaining
	balanceAfter := balanceBefore + refundAmount

	refund := &models.CreditTransaction{
		UserId:        userId,
		Amount:        refundAmount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Description:   fmt.Sprintf("Refund for failed OCR processing: %s", document.OriginalFilename),
		ReferenceType: models.CreditReferenceDocumentRefund,
		ReferenceId:   document.ID,
	}
	if err := tx.WithContext(ctx).Create(refund).Error; err != nil {
		return err
	}

	return tx.WithContext(ctx).Model(&user).Update("credits_remaining", balanceAfter).Error
}

// AddCreditsToUser tops up a user's balance, e.g. on plan purchase or a
// manual support action.
func AddCreditsToUser(ctx context.Context, userId, amount int, description string) error {
	if amount <= 0 {
		return utils.NewValidationError("amount must be positive")
	}
	if description == "" {
		description = "Manual credit addition"
	}

	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.WithContext(ctx).Clauses(forUpdateClause()).First(&user, userId).Error; err != nil {
			return err
		}

		balanceBefore := user.CreditsRemaining
		balanceAfter := balanceBefore + amount

		txn := &models.CreditTransaction{
			UserId:        userId,
			Amount:        amount,
			BalanceBefore: balanceBefore,
			BalanceAfter:  balanceAfter,
			Description:   description,
			ReferenceType: models.CreditReferenceManualAddition,
		}
		if err := tx.WithContext(ctx).Create(txn).Error; err != nil {
			return err
		}

		return tx.WithContext(ctx).Model(&user).Update("credits_remaining", balanceAfter).Error
	})
}
