package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"daygrid/internal/config"
	"daygrid/internal/layout"
	appLog "daygrid/internal/log"
	"daygrid/internal/model"
)

const (
	dateLayout    = "2006-01-02"
	eventsTTL     = 30 * time.Second
	maxPxPerHour  = 1000
	maxCachedDays = 32
)

// DayLoader supplies one day's raw events.
type DayLoader interface {
	Day(ctx context.Context, day time.Time) ([]model.CalendarEvent, error)
	Location() *time.Location
}

// Server exposes merged events and computed layouts over HTTP.
type Server struct {
	cfg    *config.Config
	loader DayLoader
	opts   layout.Options
	mux    *http.ServeMux
	now    func() time.Time

	// Raw events per day. Layouts are recomputed per request since the
	// engine is cheap and px_per_hour may vary.
	eventsMu sync.RWMutex
	events   map[string]*dayCache
}

// dayCache holds a day's raw events and when they were loaded.
type dayCache struct {
	events    []model.CalendarEvent
	updatedAt time.Time
}

// NewServer constructs a Server.
func NewServer(cfg *config.Config, loader DayLoader) *Server {
	s := &Server{
		cfg:    cfg,
		loader: loader,
		opts:   cfg.LayoutOptions(),
		mux:    http.NewServeMux(),
		now:    time.Now,
		events: make(map[string]*dayCache),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="daygrid", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/layout", s.handleLayout)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON shape of /api/events.
type eventsResponse struct {
	Date     string              `json:"date"`
	TimeZone string              `json:"timezone"`
	Merged   []model.MergedEvent `json:"merged"`
}

// positionedDTO adds CSS lengths for renderers that want them verbatim.
type positionedDTO struct {
	model.PositionedEvent
	CSSLeft  string `json:"css_left"`
	CSSWidth string `json:"css_width"`
}

// layoutResponse is the JSON shape of /api/layout.
type layoutResponse struct {
	Date       string          `json:"date"`
	TimeZone   string          `json:"timezone"`
	PxPerHour  float64         `json:"px_per_hour"`
	Clusters   int             `json:"clusters"`
	Positioned []positionedDTO `json:"positioned"`
}

// handleEvents returns the day's events after cross-source merging.
//
// GET /api/events?date=2025-03-04
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	day, ok := s.parseDay(w, r)
	if !ok {
		return
	}
	events, err := s.dayEvents(r.Context(), day)
	if err != nil {
		appLog.Error("api events: load failed", err, "date", day.Format(dateLayout))
		writeError(w, http.StatusBadGateway, "failed to load events")
		return
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Date:     day.Format(dateLayout),
		TimeZone: day.Location().String(),
		Merged:   layout.Merge(events, s.opts.MergeThreshold),
	})
}

// handleLayout returns the positioned layout for a day.
//
// GET /api/layout?date=2025-03-04&px_per_hour=48
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	day, ok := s.parseDay(w, r)
	if !ok {
		return
	}

	opts := s.opts
	if v := r.URL.Query().Get("px_per_hour"); v != "" {
		px, err := strconv.ParseFloat(v, 64)
		if err != nil || px <= 0 || px > maxPxPerHour {
			writeError(w, http.StatusBadRequest, "px_per_hour must be a number in (0, 1000]")
			return
		}
		opts.PxPerHour = px
	}

	events, err := s.dayEvents(r.Context(), day)
	if err != nil {
		appLog.Error("api layout: load failed", err, "date", day.Format(dateLayout))
		writeError(w, http.StatusBadGateway, "failed to load events")
		return
	}

	opts.Day = day
	res := layout.Compute(events, opts)

	dtos := make([]positionedDTO, 0, len(res.Positioned))
	for _, p := range res.Positioned {
		dtos = append(dtos, positionedDTO{PositionedEvent: p, CSSLeft: p.CSSLeft(), CSSWidth: p.CSSWidth()})
	}

	writeJSON(w, http.StatusOK, layoutResponse{
		Date:       day.Format(dateLayout),
		TimeZone:   day.Location().String(),
		PxPerHour:  opts.PxPerHour,
		Clusters:   res.Clusters,
		Positioned: dtos,
	})
}

// parseDay reads ?date=YYYY-MM-DD in the display zone, defaulting to today.
func (s *Server) parseDay(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("date")
	if v == "" {
		return s.Today(), true
	}
	day, err := time.ParseInLocation(dateLayout, v, s.loader.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}

// dayEvents returns cached events for day, loading them when stale.
func (s *Server) dayEvents(ctx context.Context, day time.Time) ([]model.CalendarEvent, error) {
	key := day.Format(dateLayout)

	s.eventsMu.RLock()
	dc := s.events[key]
	s.eventsMu.RUnlock()
	if dc != nil && s.now().Sub(dc.updatedAt) < eventsTTL {
		return dc.events, nil
	}

	return s.Refresh(ctx, day)
}

// Refresh reloads day's events and replaces the cached copy.
func (s *Server) Refresh(ctx context.Context, day time.Time) ([]model.CalendarEvent, error) {
	events, err := s.loader.Day(ctx, day)
	if err != nil {
		return nil, err
	}

	key := day.Format(dateLayout)
	s.eventsMu.Lock()
	if len(s.events) >= maxCachedDays {
		s.events = make(map[string]*dayCache)
	}
	s.events[key] = &dayCache{events: events, updatedAt: s.now()}
	s.eventsMu.Unlock()

	appLog.Debug("day cache refreshed", "date", key, "events", len(events))
	return events, nil
}

// Today returns midnight of the current day in the display zone.
func (s *Server) Today() time.Time {
	loc := s.loader.Location()
	now := s.now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
