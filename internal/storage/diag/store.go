// Package diag 持久化探测诊断记录。
//
// 探测的超时和错误不会向上传播，这里是它们唯一的落地位置，
// 供运维排查"为什么某个邮箱没被发现"。
package diag

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sharedmail/backend/internal/domain"
)

// ProbeRecord 单次探测的持久化记录。
type ProbeRecord struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RunID          string    `json:"runId" gorm:"type:varchar(36);index"`
	Identity       string    `json:"identity" gorm:"type:varchar(255);index"`
	CandidateID    string    `json:"candidateId" gorm:"type:varchar(36)"`
	CandidateEmail string    `json:"candidateEmail" gorm:"type:varchar(255)"`
	Strategy       string    `json:"strategy" gorm:"type:varchar(32)"`
	Granted        bool      `json:"granted"`
	Error          string    `json:"error,omitempty" gorm:"type:text"`
	ElapsedMS      int64     `json:"elapsedMs"`
	CreatedAt      time.Time `json:"createdAt" gorm:"index"`
}

// TableName 指定表名
func (ProbeRecord) TableName() string {
	return "probe_records"
}

// Store 基于嵌入式 SQLite 的诊断存储。
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewStore 打开（必要时创建）诊断数据库。
func NewStore(path string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open diagnostics database: %w", err)
	}

	if err := db.AutoMigrate(&ProbeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate diagnostics database: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Record 落地一次发现运行的全部探测结果。
//
// 尽力而为：写入失败只记日志，不影响发现流程。
func (s *Store) Record(ctx context.Context, runID, identity string, outcomes []domain.ProbeOutcome) {
	if len(outcomes) == 0 {
		return
	}

	records := make([]ProbeRecord, 0, len(outcomes))
	now := time.Now().UTC()
	for _, o := range outcomes {
		records = append(records, ProbeRecord{
			ID:             uuid.NewString(),
			RunID:          runID,
			Identity:       identity,
			CandidateID:    o.CandidateID,
			CandidateEmail: o.CandidateEmail,
			Strategy:       string(o.Strategy),
			Granted:        o.Granted,
			Error:          o.Err,
			ElapsedMS:      o.Elapsed.Milliseconds(),
			CreatedAt:      now,
		})
	}

	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		s.log.Warn("failed to persist probe diagnostics",
			zap.String("run_id", runID),
			zap.Int("records", len(records)),
			zap.Error(err),
		)
	}
}

// ListByIdentity 按身份查询最近的探测记录。
func (s *Store) ListByIdentity(ctx context.Context, identity string, limit int) ([]ProbeRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	var records []ProbeRecord
	err := s.db.WithContext(ctx).
		Where("identity = ?", identity).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query probe diagnostics: %w", err)
	}
	return records, nil
}

// Purge 删除早于保留期的记录，返回删除数量。
func (s *Store) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&ProbeRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge probe diagnostics: %w", result.Error)
	}
	return result.RowsAffected, nil
}
