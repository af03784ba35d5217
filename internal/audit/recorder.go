package audit

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder persists the attribute side channel emitted by every mutating
// command. Recording is best-effort: a failed write never fails the command.
type Recorder interface {
	Record(ctx context.Context, method, caller string, attrs map[string]string)
}

// GormRecorder appends events to an audit table.
type GormRecorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormRecorder(db *gorm.DB, logger *zap.Logger) (*GormRecorder, error) {
	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, err
	}
	return &GormRecorder{db: db, logger: logger}, nil
}

func (r *GormRecorder) Record(ctx context.Context, method, caller string, attrs map[string]string) {
	payload, err := json.Marshal(attrs)
	if err != nil {
		r.logger.Warn("audit: encode attributes", zap.String("method", method), zap.Error(err))
		return
	}
	event := Event{
		Method:     method,
		Caller:     caller,
		Attributes: string(payload),
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		r.logger.Warn("audit: record event", zap.String("method", method), zap.Error(err))
	}
}

// NopRecorder discards events. Used when no audit database is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, string, map[string]string) {}
