package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ryosukesatoh/researchtldr/internal/runner"
	"github.com/ryosukesatoh/researchtldr/internal/store"
)

const (
	defaultPaperLimit = 50
	maxPaperLimit     = 200
)

func (s *Server) health(c *gin.Context) {
	ok(c, gin.H{"message": "ResearchTLDR backend is alive!"})
}

func (s *Server) me(c *gin.Context) {
	claims := currentClaims(c)
	if claims == nil {
		ok(c, gin.H{"logged_in": false, "user": nil})
		return
	}
	ok(c, gin.H{"logged_in": true, "user": gin.H{
		"sub":     claims.Subject,
		"email":   claims.Email,
		"name":    claims.Name,
		"picture": claims.Picture,
	}})
}

func (s *Server) logout(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	ok(c, gin.H{"ok": true})
}

func (s *Server) listPapers(c *gin.Context) {
	limit := defaultPaperLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxPaperLimit)
	}
	papers, err := s.store.RecentPapers(c.Request.Context(), limit)
	if err != nil {
		internalError(c, err)
		return
	}
	list(c, papers)
}

// paperID parses the :id path parameter, aborting with 400 when invalid.
func paperID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid paper id")
		return 0, false
	}
	return uint(id), true
}

// storeError maps store errors onto responses.
func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		notFound(c, "paper not found")
	case errors.Is(err, store.ErrInvalidVote):
		badRequest(c, err.Error())
	default:
		internalError(c, err)
	}
}

func (s *Server) getPaper(c *gin.Context) {
	id, valid := paperID(c)
	if !valid {
		return
	}
	paper, err := s.store.PaperByID(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	ok(c, paper)
}

func (s *Server) bookmarkCount(c *gin.Context) {
	id, valid := paperID(c)
	if !valid {
		return
	}
	sub := currentSub(c)
	if sub == "" {
		ok(c, gin.H{"count": 0})
		return
	}
	n, err := s.store.BookmarkCount(c.Request.Context(), sub, id)
	if err != nil {
		storeError(c, err)
		return
	}
	ok(c, gin.H{"count": n})
}

func (s *Server) addBookmark(c *gin.Context) {
	id, valid := paperID(c)
	if !valid {
		return
	}
	if err := s.store.AddBookmark(c.Request.Context(), currentSub(c), id); err != nil {
		storeError(c, err)
		return
	}
	ok(c, gin.H{"ok": true})
}

func (s *Server) removeBookmark(c *gin.Context) {
	id, valid := paperID(c)
	if !valid {
		return
	}
	if err := s.store.RemoveBookmark(c.Request.Context(), currentSub(c), id); err != nil {
		storeError(c, err)
		return
	}
	ok(c, gin.H{"ok": true})
}

func (s *Server) listBookmarks(c *gin.Context) {
	papers, err := s.store.BookmarkedPapers(c.Request.Context(), currentSub(c))
	if err != nil {
		internalError(c, err)
		return
	}
	list(c, papers)
}

func (s *Server) score(c *gin.Context) {
	id, valid := paperID(c)
	if !valid {
		return
	}
	score, err := s.store.Score(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	ok(c, gin.H{"score": score})
}

type voteRequest struct {
	Value *int `json:"value"`
}

func (s *Server) vote(c *gin.Context) {
	id, valid := paperID(c)
	if !valid {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		badRequest(c, "body must be {\"value\": -1|0|1}")
		return
	}
	if *req.Value < -1 || *req.Value > 1 {
		badRequest(c, "value must be -1, 0 or 1")
		return
	}
	score, err := s.store.Vote(c.Request.Context(), currentSub(c), id, *req.Value)
	if err != nil {
		storeError(c, err)
		return
	}
	ok(c, gin.H{"score": score})
}

func (s *Server) getSettings(c *gin.Context) {
	prefs, err := s.store.Settings(c.Request.Context(), currentSub(c))
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, gin.H{"prefs": prefs})
}

type settingsRequest struct {
	Prefs json.RawMessage `json:"prefs"`
}

func (s *Server) saveSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	raw := bytes.TrimSpace(req.Prefs)
	if len(raw) == 0 || raw[0] != '{' {
		badRequest(c, "prefs must be an object")
		return
	}
	var prefs map[string]any
	if err := json.Unmarshal(raw, &prefs); err != nil {
		badRequest(c, "prefs must be an object")
		return
	}
	if err := s.store.SaveSettings(c.Request.Context(), currentSub(c), prefs); err != nil {
		internalError(c, err)
		return
	}
	ok(c, gin.H{"ok": true, "prefs": prefs})
}

func (s *Server) ingest(c *gin.Context) {
	if s.ingester == nil {
		abort(c, http.StatusServiceUnavailable, "ingest is not configured")
		return
	}
	n, err := s.ingester.Run(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, gin.H{"stored": n})
}

func (s *Server) runBatch(c *gin.Context) {
	if s.runner == nil {
		abort(c, http.StatusServiceUnavailable, "summarization is not configured")
		return
	}
	report, err := s.runner.Run(c.Request.Context())
	if errors.Is(err, runner.ErrBatchInProgress) {
		conflict(c, err.Error())
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, report)
}

func (s *Server) latestReport(c *gin.Context) {
	var report any
	if s.reports != nil {
		if r := s.reports.Latest(); r != nil {
			report = r
		}
	}
	if report == nil {
		notFound(c, "no batch report yet")
		return
	}
	ok(c, report)
}
