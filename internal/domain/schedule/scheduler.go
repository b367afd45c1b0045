package schedule

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"wpguard/internal/domain/changelog"
	"wpguard/internal/platform/errors"
	"wpguard/internal/utils"
)

// ErrBusy is returned by RunNow while another pass is in progress.
var ErrBusy = stderrors.New("a check pass is already running")

// Checker runs one full changelog pass.
type Checker interface {
	CheckAll(ctx context.Context) (*changelog.Report, error)
}

// RunStatus 表示一次定时检查的状态
type RunStatus string

const (
	RunStatusIdle     RunStatus = "idle"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run describes the latest pass started by the scheduler or RunNow.
type Run struct {
	ID         string            `json:"id,omitempty"`
	Status     RunStatus         `json:"status"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
	Error      string            `json:"error,omitempty"`
	Report     *changelog.Report `json:"report,omitempty"`
}

// Scheduler triggers CheckAll on a cron spec. Ticks that arrive while a pass
// is still running are skipped.
type Scheduler struct {
	spec    string
	checker Checker
	logger  *utils.Logger

	cron *cron.Cron
	job  cron.Job

	mu      sync.Mutex
	entry   cron.EntryID
	running bool
	skipped int
	last    Run
	ctx     context.Context
	cancel  context.CancelFunc
}

// Parser accepts five-field specs and descriptors such as @daily or @every 1h.
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New 创建定时检查调度器
func New(spec string, checker Checker, logger *utils.Logger) (*Scheduler, error) {
	const op = "schedule.new"
	if checker == nil {
		return nil, errors.New(errors.KindChangelog, op, "checker is required")
	}
	if _, err := Parser.Parse(spec); err != nil {
		return nil, errors.Wrap(errors.KindConfig, op, "无法解析定时规则: "+spec, err)
	}

	clog := cronLogger{logger: logger}
	s := &Scheduler{
		spec:    spec,
		checker: checker,
		logger:  logger,
		cron:    cron.New(cron.WithParser(Parser), cron.WithLogger(clog)),
		last:    Run{Status: RunStatusIdle},
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.job = cron.NewChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)).Then(cron.FuncJob(s.tick))
	return s, nil
}

// Start registers the job and starts the cron loop. Calling Start on a
// started scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry != 0 {
		return nil
	}
	// a previous Stop cancelled the pass context
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	id, err := s.cron.AddJob(s.spec, s.job)
	if err != nil {
		return errors.Wrap(errors.KindConfig, "schedule.start", "注册定时任务失败", err)
	}
	s.entry = id
	s.cron.Start()
	s.logger.InfoTag("Schedule", "已注册更新日志检查 spec=%s next=%s", s.spec, s.cron.Entry(id).Next.Format(time.RFC3339))
	return nil
}

// Stop deregisters the job, cancels a running pass and waits for it to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.InfoTag("Schedule", "定时检查已注销")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the scheduler and blocks until ctx is done, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

// Next returns the next activation time, or zero when not started.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// Last returns the most recent run.
func (s *Scheduler) Last() Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Skipped counts passes refused because another was in progress.
func (s *Scheduler) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// RunNow runs a pass synchronously unless one is already in progress.
func (s *Scheduler) RunNow(ctx context.Context) (*changelog.Report, error) {
	if !s.begin() {
		return nil, ErrBusy
	}
	report, err := s.checker.CheckAll(ctx)
	s.finish(report, err)
	return report, err
}

// Trigger runs the scheduled job once through the same wrapper chain as a
// cron tick.
func (s *Scheduler) Trigger() {
	s.job.Run()
}

func (s *Scheduler) tick() {
	if !s.begin() {
		return
	}
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	report, err := s.checker.CheckAll(ctx)
	s.finish(report, err)
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.skipped++
		s.logger.WarnTag("Schedule", "上一轮检查仍在运行，跳过本次触发")
		return false
	}
	s.running = true
	s.last = Run{Status: RunStatusRunning, StartedAt: time.Now()}
	return true
}

func (s *Scheduler) finish(report *changelog.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.last.FinishedAt = time.Now()
	s.last.Report = report
	if report != nil {
		s.last.ID = report.RunID
	}
	if err != nil {
		s.last.Status = RunStatusFailed
		s.last.Error = err.Error()
		s.logger.ErrorTag("Schedule", "定时检查失败: %v", err)
		return
	}
	s.last.Status = RunStatusComplete
}

// cronLogger adapts utils.Logger to cron.Logger.
type cronLogger struct {
	logger *utils.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.DebugTag("Cron", "%s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.ErrorTag("Cron", "%s: %v %v", msg, err, keysAndValues)
}
