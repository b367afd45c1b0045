package httptransport

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"wpguard/internal/platform/config"
	"wpguard/internal/platform/errors"
	"wpguard/internal/platform/metrics"
	"wpguard/internal/utils"
)

// Options configures the HTTP router builder.
type Options struct {
	Config     *config.Config
	Logger     *utils.Logger
	Metrics    metrics.HTTPMetrics
	StaticRoot string
}

// Router bundles together the gin engine and common route groups.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with logging, recovery, CORS
// and request metrics.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, errors.New(errors.KindTransport, "http.build", "http router requires config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.DefaultLogger
	}
	observer := opts.Metrics
	if observer == nil {
		observer = metrics.Noop{}
	}

	if strings.EqualFold(opts.Config.Log.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(logger))
	engine.Use(metricsMiddleware(observer))

	_ = engine.SetTrustedProxies(nil)

	if origins := opts.Config.Web.AllowedOrigins; len(origins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{
				"Origin",
				"Content-Type",
				"Authorization",
			},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	staticRoot := opts.StaticRoot
	if staticRoot == "" {
		staticRoot = opts.Config.Web.StaticDir
	}
	if info, err := os.Stat(staticRoot); err == nil && info.IsDir() {
		engine.Use(static.Serve("/", static.LocalFile(staticRoot, true)))
	} else {
		logger.WarnTag("HTTP", "静态目录 %s 不存在，跳过管理页面", staticRoot)
	}

	return &Router{
		Engine: engine,
		API:    engine.Group("/api"),
	}, nil
}

func loggingMiddleware(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		if logger != nil {
			logger.Info(
				"[HTTP] %s %s -> %d (%s)",
				c.Request.Method,
				c.Request.URL.Path,
				status,
				duration,
			)
		}
	}
}

// metricsMiddleware records one observation per request, labelled with the
// route template rather than the raw path.
func metricsMiddleware(observer metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observer.ObserveRequest(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}

// MetricsHandler mounts h on GET /metrics.
func (r *Router) MetricsHandler(h http.Handler) {
	r.Engine.GET("/metrics", gin.WrapH(h))
}
