package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
)

// AcquireDocumentProcessingLock serializes processing per document across
// instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the processing transaction.
func AcquireDocumentProcessingLock(tx *gorm.DB, documentId int) error {
	lockName := fmt.Sprintf("ocr:%d", documentId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return utils.NewValidationError("document %d is already being processed", documentId)
	}
	return nil
}

func ReleaseDocumentProcessingLock(tx *gorm.DB, documentId int) {
	lockName := fmt.Sprintf("ocr:%d", documentId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

// ObtainRedisProcessingLock is a best-effort fast-fail front of the
// advisory lock. A held lock rejects the request immediately; when Redis
// is down processing continues and the advisory lock alone serializes.
func ObtainRedisProcessingLock(ctx context.Context, documentId int) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, fmt.Sprintf("lock:ocr:%d", documentId), 60*time.Second, nil)
	if err == redislock.ErrNotObtained {
		return nil, utils.NewValidationError("document %d is already being processed", documentId)
	}
	if err != nil {
		return nil, nil
	}
	return lock, nil
}

func forUpdateClause() clause.Expression {
	return clause.Locking{Strength: "UPDATE"}
}
