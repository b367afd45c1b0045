package eventbus

import (
	"context"
	"time"

	"wpguard/internal/platform/storage"
	"wpguard/internal/utils"
)

// HistoryRecorder persists every changelog:checked event as a check record
// and trims each plugin's history to Keep rows.
type HistoryRecorder struct {
	repo   *storage.HistoryRepository
	keep   int
	logger *utils.Logger
}

func NewHistoryRecorder(repo *storage.HistoryRepository, keep int, logger *utils.Logger) *HistoryRecorder {
	return &HistoryRecorder{repo: repo, keep: keep, logger: logger}
}

// Attach subscribes the recorder to bus.
func (r *HistoryRecorder) Attach(bus *AsyncEventBus) error {
	return bus.Subscribe(EventChangelogChecked, r.Record)
}

// Record 写入一条检查记录
func (r *HistoryRecorder) Record(data CheckEventData) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec := &storage.CheckRecord{
		Slug:       data.Slug,
		Status:     data.Status,
		Failure:    data.Failure,
		ReadmeLine: data.ReadmeLine,
		PageLine:   data.PageLine,
		Alerted:    data.Alerted,
		Detail:     data.Detail,
		CheckedAt:  data.CheckedAt,
	}
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = time.Now()
	}
	if err := r.repo.Append(ctx, rec); err != nil {
		r.logger.ErrorTag("Storage", "保存检查记录失败: slug=%s err=%v", data.Slug, err)
		return
	}
	if r.keep > 0 {
		if _, err := r.repo.Prune(ctx, data.Slug, r.keep); err != nil {
			r.logger.WarnTag("Storage", "清理检查记录失败: slug=%s err=%v", data.Slug, err)
		}
	}
}
