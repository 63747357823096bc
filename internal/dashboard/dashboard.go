// Package dashboard builds the current-week view shown on the home page.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/hybridathlete/internal/calendar"
	"github.com/claude/hybridathlete/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Reader is the read-only persistence the dashboard needs.
type Reader interface {
	QuerySessions(ctx context.Context, userID uuid.UUID, start, end models.Date) ([]models.Session, error)
	HasTrainingBlock(ctx context.Context, userID uuid.UUID) (bool, error)
}

// DayView is one column of the week.
type DayView struct {
	Label      string           `json:"label"`
	Date       models.Date      `json:"date"`
	DayOfMonth int              `json:"day_of_month"`
	Today      bool             `json:"today"`
	Sessions   []models.Session `json:"sessions"`
}

// View is the dashboard payload. When HasBlock is false the client offers to
// generate a training block.
type View struct {
	Monday   models.Date `json:"monday"`
	Sunday   models.Date `json:"sunday"`
	Title    string      `json:"title"`
	Days     []DayView   `json:"days"`
	HasBlock bool        `json:"has_block"`
	Empty    bool        `json:"empty"`
}

var dayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Service caches one week view per user until invalidated or the week rolls over.
type Service struct {
	repo Reader
	log  *slog.Logger
	now  func() time.Time

	mu    sync.Mutex
	cache map[uuid.UUID]cached
	// epoch counts invalidations per user; a build stores its view only if
	// no invalidation happened while it was reading.
	epoch map[uuid.UUID]uint64
}

type cached struct {
	today models.Date
	view  View
}

// New creates a Service reading from repo.
func New(repo Reader, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		log:   log,
		now:   time.Now,
		cache: make(map[uuid.UUID]cached),
		epoch: make(map[uuid.UUID]uint64),
	}
}

// Week returns the view of the week containing today.
func (s *Service) Week(ctx context.Context, userID uuid.UUID) (View, error) {
	now := s.now()
	today := models.DateOf(now)

	s.mu.Lock()
	c, ok := s.cache[userID]
	epoch := s.epoch[userID]
	s.mu.Unlock()
	if ok && c.today == today {
		return c.view, nil
	}

	monday, sunday := calendar.WeekRange(now)

	var (
		sessions []models.Session
		hasBlock bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = s.repo.QuerySessions(gctx, userID, monday, sunday)
		if err != nil {
			return fmt.Errorf("querying sessions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		hasBlock, err = s.repo.HasTrainingBlock(gctx, userID)
		if err != nil {
			return fmt.Errorf("checking training block: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	view := build(now, sessions, hasBlock)
	s.log.Debug("dashboard built", "user_id", userID, "monday", monday, "sessions", len(sessions))

	s.mu.Lock()
	if s.epoch[userID] == epoch {
		s.cache[userID] = cached{today: today, view: view}
	}
	s.mu.Unlock()
	return view, nil
}

// Invalidate drops the cached view for userID.
func (s *Service) Invalidate(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, userID)
	s.epoch[userID]++
}

func build(now time.Time, sessions []models.Session, hasBlock bool) View {
	week := calendar.BucketWeek(now, sessions)
	today := models.DateOf(now)
	monday := calendar.MondayOf(now)
	sunday := monday.AddDate(0, 0, 6)

	v := View{
		Monday:   week.Monday,
		Sunday:   week.Sunday,
		Title:    monday.Format("2 January") + " - " + sunday.Format("2 January 2006"),
		Days:     make([]DayView, len(week.Days)),
		HasBlock: hasBlock,
		Empty:    week.Count() == 0,
	}
	for i, d := range week.Days {
		v.Days[i] = DayView{
			Label:      dayLabels[i],
			Date:       d.Date,
			DayOfMonth: monday.AddDate(0, 0, i).Day(),
			Today:      d.Date == today,
			Sessions:   d.Records,
		}
	}
	return v
}
