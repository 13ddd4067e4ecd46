// Package web assembles the Antarex panel: the gin engine with its session
// cookie, templates and routes, the background jobs and the listener.
package web

import (
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/antarex-ai/dashboard/config"
	"github.com/antarex-ai/dashboard/database"
	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/util/common"
	"github.com/antarex-ai/dashboard/util/crypto"
	"github.com/antarex-ai/dashboard/util/metrics"
	"github.com/antarex-ai/dashboard/util/random"
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/controller"
	"github.com/antarex-ai/dashboard/web/job"
	"github.com/antarex-ai/dashboard/web/locale"
	"github.com/antarex-ai/dashboard/web/middleware"
	"github.com/antarex-ai/dashboard/web/network"
	"github.com/antarex-ai/dashboard/web/service"
	"github.com/antarex-ai/dashboard/web/session"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

//go:embed assets
var assetsFS embed.FS

//go:embed html/*
var htmlFS embed.FS

//go:embed translation/*
var i18nFS embed.FS

var startTime = time.Now()

type wrapAssetsFS struct {
	embed.FS
}

func (f *wrapAssetsFS) Open(name string) (fs.File, error) {
	file, err := f.FS.Open("assets/" + name)
	if err != nil {
		return nil, err
	}
	return &wrapAssetsFile{File: file}, nil
}

type wrapAssetsFile struct {
	fs.File
}

func (f *wrapAssetsFile) Stat() (fs.FileInfo, error) {
	info, err := f.File.Stat()
	if err != nil {
		return nil, err
	}
	return &wrapAssetsFileInfo{FileInfo: info}, nil
}

// wrapAssetsFileInfo pins ModTime so embedded assets get a stable
// Last-Modified.
type wrapAssetsFileInfo struct {
	fs.FileInfo
}

func (f *wrapAssetsFileInfo) ModTime() time.Time {
	return startTime
}

// Server is the panel's web server together with its scheduled jobs.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	index *controller.IndexController
	panel *controller.PanelController
	api   *controller.APIController

	client   *backend.Client
	gens     *session.Generations
	records  session.Records
	health   *service.HealthService
	alerts   *service.AlertService
	loc      *time.Location
	basePath string

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{ctx: ctx, cancel: cancel}
}

// init builds the process-wide pieces from the configuration.
func (s *Server) init() error {
	loc, err := config.GetTimeLocation()
	if err != nil {
		return err
	}
	client, err := backend.NewClient(backend.Options{
		BaseURL:   config.GetBackendURL(),
		Timeout:   config.GetBackendTimeout(),
		UserAgent: config.GetName() + "/" + config.GetVersion(),
	})
	if err != nil {
		return err
	}
	if err := locale.InitLocalizer(i18nFS); err != nil {
		return err
	}

	s.loc = loc
	s.client = client
	s.gens = session.NewGenerations()
	if db := database.GetDB(); db != nil {
		s.records = session.NewGormRecords(db)
	} else {
		logger.Warning("database is not open, sessions end when the panel restarts")
		s.records = session.NewMemoryRecords(sessionMaxAge())
	}
	s.health = service.NewHealthService(client)
	s.alerts = service.NewAlertService(loc)
	s.basePath = config.GetBasePath()
	return nil
}

// getHtmlFiles lists the templates under web/html on disk. Used only in
// debug mode, so templates can be edited without a rebuild.
func (s *Server) getHtmlFiles() ([]string, error) {
	files := make([]string, 0)
	dir, _ := os.Getwd()
	err := fs.WalkDir(os.DirFS(dir), "web/html", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Server) getHtmlTemplate(funcMap template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(htmlFS, "html/*.html")
}

func (s *Server) funcMap() template.FuncMap {
	return template.FuncMap{
		"i18n":       locale.Localize,
		"languages":  locale.Languages,
		"pathEscape": url.PathEscape,
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.In(s.loc).Format("2006-01-02 15:04")
		},
		"verdictClass": func(v backend.Verdict) string {
			switch v {
			case backend.VerdictRealAttack:
				return "danger"
			case backend.VerdictLegitTraffic:
				return "success"
			case backend.VerdictSuspicious:
				return "warning"
			}
			return "muted"
		},
	}
}

// sessionStore creates the signed and encrypted cookie store. Without a
// configured secret, sessions do not survive a restart.
func (s *Server) sessionStore() (sessions.Store, error) {
	secret := config.GetSessionSecret()
	if secret == "" {
		logger.Warning("ANTAREX_SESSION_SECRET is not set, sessions end when the panel restarts")
		secret = random.Seq(64)
	}
	hashKey, blockKey, err := crypto.CookieKeys(secret)
	if err != nil {
		return nil, err
	}
	store := cookie.NewStore(hashKey, blockKey)
	store.Options(sessions.Options{
		Path:     s.basePath,
		MaxAge:   int(sessionMaxAge().Seconds()),
		HttpOnly: true,
		Secure:   config.GetCertFile() != "" && config.GetKeyFile() != "",
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

func sessionMaxAge() time.Duration {
	return time.Duration(config.GetSessionMaxAge()) * time.Minute
}

// initRouter registers middleware, templates, static assets and controllers.
func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()
	basePath := s.basePath

	// Downloads are already compressed PDFs and the CSV streams through.
	engine.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{basePath + "api/export/", basePath + "metrics"}),
		gzip.WithExcludedPathsRegexs([]string{`/api/alerts/[^/]+/download$`}),
	))

	store, err := s.sessionStore()
	if err != nil {
		return nil, err
	}
	engine.Use(sessions.Sessions(config.GetCookieName(), store))
	engine.Use(func(c *gin.Context) {
		c.Set("base_path", basePath)
		c.Next()
	})
	engine.Use(session.Middleware(s.gens, s.records))
	engine.Use(locale.LocalizerMiddleware())
	engine.Use(middleware.AuditMiddleware())

	funcMap := s.funcMap()
	engine.SetFuncMap(funcMap)
	if config.IsDebug() {
		files, err := s.getHtmlFiles()
		if err != nil {
			return nil, err
		}
		engine.LoadHTMLFiles(files...)
		engine.StaticFS(basePath+"assets", http.FS(os.DirFS("web/assets")))
	} else {
		tpl, err := s.getHtmlTemplate(funcMap)
		if err != nil {
			return nil, err
		}
		engine.SetHTMLTemplate(tpl)
		engine.StaticFS(basePath+"assets", http.FS(&wrapAssetsFS{FS: assetsFS}))
	}

	engine.Use(middleware.RedirectMiddleware(basePath))

	g := engine.Group(basePath)
	s.index = controller.NewIndexController(g, s.client)
	s.panel = controller.NewPanelController(g, s.client, s.alerts)
	s.api = controller.NewAPIController(g, s.client, s.alerts)

	g.GET("/healthz", s.healthz)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))

	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusNotFound)
	})

	return engine, nil
}

// healthz reports the panel as alive together with the last backend probe.
func (s *Server) healthz(c *gin.Context) {
	resp := gin.H{"ok": true, "version": config.GetVersion(), "backend": nil}
	if st, ok := s.health.Status(); ok {
		resp["backend"] = st
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) startTask() {
	healthJob := job.NewBackendHealthJob(s.ctx, s.health, config.GetBackendTimeout())
	if _, err := s.cron.AddJob(config.GetHealthCron(), healthJob); err != nil {
		logger.Warning("Add backend health job failed:", err)
	}
	// Probe once right away so /healthz has an answer before the first tick.
	go healthJob.Run()

	if database.GetDB() != nil {
		if _, err := s.cron.AddJob("@daily", job.NewAuditCleanupJob(config.GetAuditRetentionDays())); err != nil {
			logger.Warning("Add audit cleanup job failed:", err)
		}
	}
	if pruner, ok := s.records.(job.SessionPruner); ok {
		if _, err := s.cron.AddJob("@hourly", job.NewSessionCleanupJob(pruner, sessionMaxAge())); err != nil {
			logger.Warning("Add session cleanup job failed:", err)
		}
	}
}

// Start initializes and starts the web server.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	if err = s.init(); err != nil {
		return err
	}
	s.cron = cron.New(cron.WithLocation(s.loc), cron.WithChain(cron.Recover(cron.DiscardLogger)))
	s.cron.Start()

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	certFile := config.GetCertFile()
	keyFile := config.GetKeyFile()
	listenAddr := net.JoinHostPort(config.GetListen(), strconv.Itoa(config.GetPort()))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	if certFile != "" || keyFile != "" {
		if cert, err := tls.LoadX509KeyPair(certFile, keyFile); err == nil {
			cfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
			listener = network.NewAutoHttpsListener(listener)
			listener = tls.NewListener(listener, cfg)
			logger.Info("Web server running HTTPS on", listener.Addr())
		} else {
			logger.Error("Error loading certificates:", err)
			logger.Info("Web server running HTTP on", listener.Addr())
		}
	} else {
		logger.Info("Web server running HTTP on", listener.Addr())
	}
	logger.Infof("Using Antarex API at %s", s.client.BaseURL())

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Web server stopped:", err)
		}
	}()

	s.startTask()
	return nil
}

// Stop shuts the server down and stops the jobs.
func (s *Server) Stop() error {
	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	var err1, err2 error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		// Shutdown has usually closed it already.
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			err2 = err
		}
	}
	return common.Combine(err1, err2)
}
