// Package server exposes papers, summaries and user data over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/researchtldr/internal/auth"
	"github.com/ryosukesatoh/researchtldr/internal/pipeline"
	"github.com/ryosukesatoh/researchtldr/internal/store"
)

// Store is the persistence the API reads and writes.
type Store interface {
	RecentPapers(ctx context.Context, limit int) ([]store.Paper, error)
	PaperByID(ctx context.Context, id uint) (*store.Paper, error)
	AddBookmark(ctx context.Context, sub string, paperID uint) error
	RemoveBookmark(ctx context.Context, sub string, paperID uint) error
	BookmarkCount(ctx context.Context, sub string, paperID uint) (int64, error)
	BookmarkedPapers(ctx context.Context, sub string) ([]store.Paper, error)
	Vote(ctx context.Context, sub string, paperID uint, value int) (int64, error)
	Score(ctx context.Context, paperID uint) (int64, error)
	Settings(ctx context.Context, sub string) (map[string]any, error)
	SaveSettings(ctx context.Context, sub string, prefs map[string]any) error
}

// BatchRunner runs one summarization batch.
type BatchRunner interface {
	Run(ctx context.Context) (*pipeline.BatchReport, error)
}

// Ingester pulls recent arXiv submissions into the store.
type Ingester interface {
	Run(ctx context.Context) (int, error)
}

// ReportSource supplies the most recent batch report.
type ReportSource interface {
	Latest() *pipeline.BatchReport
}

type Options struct {
	Store    Store
	Auth     *auth.Manager
	Runner   BatchRunner
	Ingester Ingester
	Reports  ReportSource
	Logger   *zap.Logger
}

type Server struct {
	store    Store
	auth     *auth.Manager
	runner   BatchRunner
	ingester Ingester
	reports  ReportSource
	logger   *zap.Logger
	router   *gin.Engine
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		store:    opts.Store,
		auth:     opts.Auth,
		runner:   opts.Runner,
		ingester: opts.Ingester,
		reports:  opts.Reports,
		logger:   opts.Logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/logout", s.logout)

	api := r.Group("/api")
	authed := requireAuth(s.auth)
	optional := optionalAuth(s.auth)

	api.GET("/me", optional, s.me)

	api.GET("/papers", s.listPapers)
	api.GET("/papers/:id", s.getPaper)
	api.GET("/papers/:id/bookmarks", optional, s.bookmarkCount)
	api.POST("/papers/:id/bookmark", authed, s.addBookmark)
	api.DELETE("/papers/:id/bookmark", authed, s.removeBookmark)
	api.GET("/papers/:id/score", s.score)
	api.POST("/papers/:id/vote", authed, s.vote)

	api.GET("/bookmarks", authed, s.listBookmarks)
	api.GET("/user/settings", authed, s.getSettings)
	api.POST("/user/settings", authed, s.saveSettings)

	api.POST("/arxiv/daily", authed, s.ingest)
	api.POST("/summaries/run", authed, s.runBatch)
	api.GET("/summaries/latest", s.latestReport)

	r.NoRoute(func(c *gin.Context) { notFound(c, "not found") })
	return r
}
