package eventbus

import "time"

// 事件类型定义
const (
	// 上传校验事件
	EventUploadApproved = "upload:approved"
	EventUploadRejected = "upload:rejected"

	// 更新日志检查事件
	EventChangelogChecked = "changelog:checked"
	EventChangelogAlerted = "changelog:alerted"

	// 关注列表事件
	EventWatchlistToggled = "watchlist:toggled"
)

// UploadEventData describes one examined upload.
type UploadEventData struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// CheckEventData is published once per plugin per check pass.
type CheckEventData struct {
	RunID      string    `json:"run_id"`
	Slug       string    `json:"slug"`
	Status     string    `json:"status"`
	Failure    string    `json:"failure,omitempty"`
	ReadmeLine string    `json:"readme_line,omitempty"`
	PageLine   string    `json:"page_line,omitempty"`
	Alerted    bool      `json:"alerted"`
	Detail     string    `json:"detail,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

type AlertEventData struct {
	Slug    string `json:"slug"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Err     string `json:"error,omitempty"`
}

type WatchlistEventData struct {
	Plugin   string `json:"plugin"`
	Watching bool   `json:"watching"`
}
