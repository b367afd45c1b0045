package admin

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wpguard/internal/domain/auth"
	"wpguard/internal/domain/changelog"
	"wpguard/internal/domain/schedule"
	"wpguard/internal/domain/watchlist"
	"wpguard/internal/platform/errors"
	"wpguard/internal/platform/storage"
	httptransport "wpguard/internal/transport/http"
	"wpguard/internal/utils"
)

// WatchAction is the nonce action guarding the watch toggle.
const WatchAction = "plugin-changelog-watch"

// Watcher is the changelog surface used by the admin endpoints.
type Watcher interface {
	ToggleWatch(ctx context.Context, id string) (bool, error)
	Watching(ctx context.Context) ([]string, error)
	CheckOne(ctx context.Context, slug string) changelog.Result
}

// Runner starts a full pass, refusing while another is in progress.
type Runner interface {
	RunNow(ctx context.Context) (*changelog.Report, error)
}

// History reads persisted check records.
type History interface {
	Recent(ctx context.Context, slug string, limit int) ([]storage.CheckRecord, error)
}

// Nonces issues and consumes one-time action tokens.
type Nonces interface {
	Issue(action string) (string, time.Time, error)
	Consume(token, action string) error
}

// Dependencies 管理接口依赖
type Dependencies struct {
	Watcher      Watcher
	Runner       Runner
	History      History
	Nonces       Nonces
	AdminToken   string
	HistoryLimit int
	Logger       *utils.Logger
}

// Service 管理接口的HTTP传输层实现
type Service struct {
	deps Dependencies
}

// NewService 创建管理服务
func NewService(deps Dependencies) (*Service, error) {
	const op = "admin.new"
	switch {
	case deps.Watcher == nil:
		return nil, errors.New(errors.KindTransport, op, "watcher is required")
	case deps.Runner == nil:
		return nil, errors.New(errors.KindTransport, op, "runner is required")
	case deps.Nonces == nil:
		return nil, errors.New(errors.KindTransport, op, "nonce issuer is required")
	case deps.AdminToken == "":
		return nil, errors.New(errors.KindTransport, op, "admin token is required")
	}
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = 50
	}
	return &Service{deps: deps}, nil
}

// Register 注册管理相关的HTTP路由
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	adminGroup := router.Group("/admin")
	adminGroup.Use(s.sameOriginMiddleware(), s.authMiddleware())
	{
		adminGroup.GET("/nonce", s.handleNonce)
		adminGroup.POST("/watch", s.handleWatch)
		adminGroup.GET("/plugins", s.handlePlugins)
		adminGroup.POST("/check", s.handleCheck)
		adminGroup.GET("/history", s.handleHistory)
	}

	s.deps.Logger.InfoTag("HTTP", "管理接口路由注册完成")
	return nil
}

// authMiddleware 认证中间件
func (s *Service) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.CheckBearer(c.GetHeader("Authorization"), s.deps.AdminToken) {
			s.deps.Logger.WarnTag("HTTP", "管理接口认证失败 %s %s", c.Request.Method, c.Request.URL.Path)
			httptransport.AbortError(c, http.StatusUnauthorized, "无效的管理令牌")
			return
		}
		c.Next()
	}
}

// sameOriginMiddleware refuses browser requests sent from another origin.
// Requests without an Origin header (curl, the CLI) pass through.
func (s *Service) sameOriginMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		u, err := url.Parse(origin)
		if err != nil || !strings.EqualFold(u.Host, c.Request.Host) {
			s.deps.Logger.WarnTag("HTTP", "拒绝跨域管理请求 origin=%s host=%s", origin, c.Request.Host)
			httptransport.AbortError(c, http.StatusForbidden, "管理接口仅允许同源访问")
			return
		}
		c.Next()
	}
}

// NonceResponse is returned by GET /admin/nonce.
type NonceResponse struct {
	Nonce     string    `json:"nonce"`
	Action    string    `json:"action"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Service) handleNonce(c *gin.Context) {
	token, expires, err := s.deps.Nonces.Issue(WatchAction)
	if stderrors.Is(err, auth.ErrNonceCapacity) {
		s.deps.Logger.WarnTag("HTTP", "nonce 缓存已满，暂停签发")
		httptransport.RespondError(c, http.StatusServiceUnavailable, nonceMessage(err), nil)
		return
	}
	if err != nil {
		s.deps.Logger.ErrorTag("HTTP", "签发 nonce 失败: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "签发 nonce 失败", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, NonceResponse{Nonce: token, Action: WatchAction, ExpiresAt: expires}, "")
}

// handleWatch toggles a plugin and answers with the bare JSON label the row
// action link should show next.
func (s *Service) handleWatch(c *gin.Context) {
	if err := s.deps.Nonces.Consume(c.PostForm("_nonce"), WatchAction); err != nil {
		s.deps.Logger.WarnTag("HTTP", "nonce 校验失败: %v", err)
		status := http.StatusForbidden
		if stderrors.Is(err, auth.ErrNonceCapacity) {
			status = http.StatusServiceUnavailable
		}
		httptransport.RespondError(c, status, nonceMessage(err), nil)
		return
	}

	plugin := strings.TrimSpace(c.PostForm("plugin"))
	if plugin == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "缺少 plugin 参数", nil)
		return
	}

	watching, err := s.deps.Watcher.ToggleWatch(c.Request.Context(), plugin)
	if err != nil {
		status := http.StatusInternalServerError
		if stderrors.Is(err, changelog.ErrEmptyIdentifier) {
			status = http.StatusBadRequest
		}
		s.deps.Logger.ErrorTag("HTTP", "切换关注失败: %v", err)
		httptransport.RespondError(c, status, "切换关注失败", nil)
		return
	}

	// PureJSON keeps the label markup unescaped.
	c.PureJSON(http.StatusOK, watchlist.Label(watching))
}

func nonceMessage(err error) string {
	switch {
	case stderrors.Is(err, auth.ErrNonceReused):
		return "nonce 已被使用"
	case stderrors.Is(err, auth.ErrNonceAction):
		return "nonce 与操作不匹配"
	case stderrors.Is(err, auth.ErrNonceCapacity):
		return "nonce 过多，请稍后再试"
	default:
		return "nonce 无效或已过期"
	}
}

// PluginRow is one watched plugin in GET /admin/plugins.
type PluginRow struct {
	Plugin     string `json:"plugin"`
	Slug       string `json:"slug"`
	Watching   bool   `json:"watching"`
	Label      string `json:"label"`
	ActionLink string `json:"action_link"`
}

func (s *Service) handlePlugins(c *gin.Context) {
	list, err := s.deps.Watcher.Watching(c.Request.Context())
	if err != nil {
		s.deps.Logger.ErrorTag("HTTP", "读取关注列表失败: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "读取关注列表失败", nil)
		return
	}

	rows := make([]PluginRow, 0, len(list))
	for _, plugin := range list {
		rows = append(rows, PluginRow{
			Plugin:     plugin,
			Slug:       changelog.NormalizeSlug(plugin),
			Watching:   true,
			Label:      watchlist.Label(true),
			ActionLink: watchlist.ActionLink(plugin, true),
		})
	}
	httptransport.RespondSuccess(c, http.StatusOK, rows, "")
}

// handleCheck runs a full pass, or a single plugin when "slug" is given.
func (s *Service) handleCheck(c *gin.Context) {
	if slug := strings.TrimSpace(c.PostForm("slug")); slug != "" {
		res := s.deps.Watcher.CheckOne(c.Request.Context(), slug)
		httptransport.RespondSuccess(c, http.StatusOK, res, string(res.Status))
		return
	}

	report, err := s.deps.Runner.RunNow(c.Request.Context())
	switch {
	case stderrors.Is(err, schedule.ErrBusy):
		httptransport.RespondError(c, http.StatusConflict, "检查正在进行中", nil)
	case err != nil:
		s.deps.Logger.ErrorTag("HTTP", "立即检查失败: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "检查失败", nil)
	default:
		httptransport.RespondSuccess(c, http.StatusOK, report, "")
	}
}

func (s *Service) handleHistory(c *gin.Context) {
	if s.deps.History == nil {
		httptransport.RespondError(c, http.StatusNotImplemented, "未启用检查历史", nil)
		return
	}

	limit := s.deps.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httptransport.RespondError(c, http.StatusBadRequest, "limit 必须为正整数", nil)
			return
		}
		if n < limit {
			limit = n
		}
	}

	records, err := s.deps.History.Recent(c.Request.Context(), changelog.NormalizeSlug(c.Query("slug")), limit)
	if err != nil {
		s.deps.Logger.ErrorTag("HTTP", "读取检查历史失败: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "读取检查历史失败", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, records, "")
}
