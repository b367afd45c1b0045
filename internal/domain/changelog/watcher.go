package changelog

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wpguard/internal/domain/eventbus"
	"wpguard/internal/domain/mail"
	"wpguard/internal/domain/watchlist"
	"wpguard/internal/platform/config"
	"wpguard/internal/platform/errors"
	"wpguard/internal/platform/metrics"
	"wpguard/internal/utils"
)

// Settings are the tunables of a check pass.
type Settings struct {
	PageURL      string
	ValidatorURL string
	ReadmePath   string
	CompareLines int
	Concurrency  int
	Timeout      time.Duration
	AlertAddress string
}

// SettingsFrom 从配置构建检查参数
func SettingsFrom(cfg config.ChangelogConfig) Settings {
	return Settings{
		PageURL:      cfg.PageURL,
		ValidatorURL: cfg.ValidatorURL,
		ReadmePath:   cfg.ReadmePath,
		CompareLines: cfg.CompareLines,
		Concurrency:  cfg.Concurrency,
		Timeout:      cfg.Timeout,
		AlertAddress: cfg.AlertAddress,
	}
}

// Options wires the collaborators of a Watcher. Store, Fetcher and Notifier
// are required.
type Options struct {
	Store    watchlist.Store
	Fetcher  Fetcher
	Notifier mail.Notifier
	Logger   *utils.Logger
	Metrics  metrics.Metrics
	Events   eventbus.Publisher
	Now      func() time.Time
}

// Watcher compares each watched plugin's readme changelog with its public
// changelog page and alerts on divergence.
type Watcher struct {
	settings Settings
	store    watchlist.Store
	fetcher  Fetcher
	notifier mail.Notifier
	logger   *utils.Logger
	metrics  metrics.Metrics
	events   eventbus.Publisher
	now      func() time.Time
}

// NewWatcher 创建更新日志检查器
func NewWatcher(settings Settings, opts Options) (*Watcher, error) {
	const op = "changelog.new"
	switch {
	case opts.Store == nil:
		return nil, errors.New(errors.KindChangelog, op, "watch list store is required")
	case opts.Fetcher == nil:
		return nil, errors.New(errors.KindChangelog, op, "fetcher is required")
	case opts.Notifier == nil:
		return nil, errors.New(errors.KindChangelog, op, "notifier is required")
	}
	if settings.CompareLines <= 0 {
		settings.CompareLines = config.DefaultCompareLines
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 1
	}

	w := &Watcher{
		settings: settings,
		store:    opts.Store,
		fetcher:  opts.Fetcher,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		events:   opts.Events,
		now:      opts.Now,
	}
	if w.metrics == nil {
		w.metrics = metrics.Noop{}
	}
	if w.events == nil {
		w.events = eventbus.Nop{}
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w, nil
}

// NormalizeSlug maps a plugin file identifier such as "akismet/akismet.php"
// to its directory slug. Identifiers without a directory are returned as is.
func NormalizeSlug(id string) string {
	id = strings.TrimSpace(id)
	if strings.Index(id, "/") > 0 {
		return path.Dir(id)
	}
	return id
}

// Watching returns the raw watch list.
func (w *Watcher) Watching(ctx context.Context) ([]string, error) {
	list, err := w.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.KindWatchlist, "changelog.watching", "读取关注列表失败", err)
	}
	return list, nil
}

// ToggleWatch flips the membership of id in the watch list and reports
// whether it is watched afterwards.
func (w *Watcher) ToggleWatch(ctx context.Context, id string) (bool, error) {
	const op = "changelog.toggle"
	id = utils.SanitizeTextField(id)
	if id == "" {
		return false, errors.Wrap(errors.KindWatchlist, op, "plugin identifier is empty", ErrEmptyIdentifier)
	}

	watching, err := w.store.Toggle(ctx, id)
	if err != nil {
		return false, errors.Wrap(errors.KindWatchlist, op, "切换关注状态失败", err)
	}

	action := "unwatch"
	if watching {
		action = "watch"
	}
	w.metrics.IncWatchlistToggle(action)
	w.events.Publish(eventbus.EventWatchlistToggled, eventbus.WatchlistEventData{Plugin: id, Watching: watching})
	w.logger.InfoTag("Changelog", "%s %s", action, id)
	return watching, nil
}

// CheckAll runs one pass over the whole watch list.
func (w *Watcher) CheckAll(ctx context.Context) (*Report, error) {
	list, err := w.Watching(ctx)
	if err != nil {
		return nil, err
	}
	return w.CheckSlugs(ctx, list), nil
}

// CheckSlugs checks the given identifiers with bounded concurrency. Results
// keep the order of first appearance after normalisation.
func (w *Watcher) CheckSlugs(ctx context.Context, ids []string) *Report {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: w.now(),
	}

	slugs := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		slug := NormalizeSlug(id)
		if slug == "" {
			continue
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		slugs = append(slugs, slug)
	}

	w.logger.InfoTag("Changelog", "开始检查 run=%s plugins=%d concurrency=%d", report.RunID, len(slugs), w.settings.Concurrency)

	results := make([]Result, len(slugs))
	var g errgroup.Group
	g.SetLimit(w.settings.Concurrency)
	for i, slug := range slugs {
		i, slug := i, slug
		g.Go(func() error {
			results[i] = w.check(ctx, report.RunID, slug)
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	report.FinishedAt = w.now()
	report.tally()

	w.logger.InfoTag("Changelog", "检查完成 run=%s match=%d mismatch=%d failed=%d (%s)",
		report.RunID, report.Matched, report.Mismatched, report.Failed, report.FinishedAt.Sub(report.StartedAt))
	return report
}

// CheckOne checks a single plugin outside of a pass.
func (w *Watcher) CheckOne(ctx context.Context, slug string) Result {
	return w.check(ctx, uuid.NewString(), NormalizeSlug(slug))
}

func (w *Watcher) check(ctx context.Context, runID, slug string) Result {
	started := w.now()
	res := Result{
		Slug:      slug,
		PageURL:   w.pageURL(slug),
		CheckedAt: started,
	}

	readme, page, err := w.snapshots(ctx, slug, res.PageURL)
	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Failure = Classify(err)
		res.Error = err.Error()
		w.logger.WarnTag("Changelog", "检查 %s 失败: failure=%s err=%v", slug, res.Failure, err)
	case Equal(readme, page):
		res.Status = StatusMatch
		res.ReadmeLines, res.PageLines = readme, page
		w.logger.DebugTag("Changelog", "%s 一致", slug)
	default:
		res.Status = StatusMismatch
		res.ReadmeLines, res.PageLines = readme, page
		w.logger.InfoTag("Changelog", "%s 不一致: svn=%q page=%q", slug, FirstLine(readme), FirstLine(page))
		w.alert(ctx, &res)
	}

	res.Duration = w.now().Sub(started)
	w.metrics.IncChangelogCheck(string(res.Status), string(res.Failure))
	w.events.Publish(eventbus.EventChangelogChecked, eventbus.CheckEventData{
		RunID:      runID,
		Slug:       res.Slug,
		Status:     string(res.Status),
		Failure:    string(res.Failure),
		ReadmeLine: FirstLine(res.ReadmeLines),
		PageLine:   FirstLine(res.PageLines),
		Alerted:    res.Alerted,
		Detail:     detail(res),
		CheckedAt:  res.CheckedAt,
	})
	return res
}

// snapshots fetches both documents concurrently under the per-task deadline.
func (w *Watcher) snapshots(ctx context.Context, slug, pageURL string) (readme, page []string, err error) {
	if w.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.settings.Timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := w.fetcher.Page(gctx, pageURL)
		if err != nil {
			return fmt.Errorf("fetch changelog page: %w", err)
		}
		page, err = Snapshot(doc, PageMarker, w.settings.CompareLines)
		if err != nil {
			return fmt.Errorf("changelog page: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		doc, err := w.fetcher.RenderReadme(gctx, w.settings.ValidatorURL, w.readmeURL(slug))
		if err != nil {
			return fmt.Errorf("render readme: %w", err)
		}
		readme, err = Snapshot(doc, ReadmeMarker, w.settings.CompareLines)
		if err != nil {
			return fmt.Errorf("readme: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		// a deadline hit while the errgroup was still running surfaces as the
		// sibling's cancellation, so prefer the parent's verdict.
		if ctxErr := ctx.Err(); ctxErr != nil && !stderrors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, nil, err
	}
	return readme, page, nil
}

func (w *Watcher) alert(ctx context.Context, res *Result) {
	to := strings.TrimSpace(w.settings.AlertAddress)
	msg := BuildAlert(to, res.Slug, res.PageURL, res.ReadmeLines, res.PageLines)

	if to == "" {
		res.AlertError = "alert address is not configured"
		w.metrics.IncChangelogAlert("skipped")
		w.logger.WarnTag("Changelog", "%s 不一致但未配置告警地址", res.Slug)
		return
	}

	sendCtx := ctx
	if w.settings.Timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, w.settings.Timeout)
		defer cancel()
	}

	evt := eventbus.AlertEventData{Slug: res.Slug, To: to, Subject: msg.Subject}
	if err := w.notifier.Send(sendCtx, msg); err != nil {
		res.AlertError = err.Error()
		evt.Err = res.AlertError
		w.metrics.IncChangelogAlert("failed")
		w.logger.ErrorTag("Changelog", "发送 %s 告警失败: %v", res.Slug, err)
	} else {
		res.Alerted = true
		w.metrics.IncChangelogAlert("sent")
		w.logger.InfoTag("Changelog", "已发送 %s 告警至 %s", res.Slug, to)
	}
	w.events.Publish(eventbus.EventChangelogAlerted, evt)
}

func (w *Watcher) pageURL(slug string) string {
	return fmt.Sprintf(w.settings.PageURL, url.PathEscape(slug))
}

func (w *Watcher) readmeURL(slug string) string {
	return fmt.Sprintf(w.settings.ReadmePath, url.PathEscape(slug))
}

// Classify maps a check error to its failure class. Anything that is neither
// a missing marker nor a deadline counts as a network failure.
func Classify(err error) Failure {
	if err == nil {
		return FailureNone
	}
	if stderrors.Is(err, ErrMarkerNotFound) {
		return FailureMarkerNotFound
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return FailureTimeout
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureNetwork
}

func detail(res Result) string {
	switch {
	case res.Error != "":
		return res.Error
	case res.AlertError != "":
		return "alert: " + res.AlertError
	default:
		return ""
	}
}
