package utils

import (
	"context"
	"fmt"
	"log"
	"time"

	"courseportal/models/course"

	"github.com/robfig/cron/v3"
)

// logScheduler logs scheduler events with timestamp
func logScheduler(format string, args ...any) {
	log.Printf("[SCHEDULER %s] %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
}

// CourseLister lists every course.
type CourseLister interface {
	All(ctx context.Context) ([]course.Course, error)
}

// EnrollmentCounter counts enrollments per course.
type EnrollmentCounter interface {
	CountsByCourseIDs(ctx context.Context, courseIDs []string) (map[string]int64, error)
	PendingCounts(ctx context.Context, courseIDs []string) (map[string]int64, error)
}

// TokenPurger removes expired token revocations.
type TokenPurger interface {
	PurgeRevoked(ctx context.Context, before time.Time) (int64, error)
}

// AuditReport is the outcome of one capacity audit run.
type AuditReport struct {
	Checked int
	// OverCapacity lists courses with more APPROVED enrollments than seats.
	OverCapacity []string
	// StalePending lists courses that already started with requests still PENDING.
	StalePending []string
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron        *cron.Cron
	courses     CourseLister
	enrollments EnrollmentCounter
	tokens      TokenPurger
	now         func() time.Time
}

func NewScheduler(courses CourseLister, enrollments EnrollmentCounter, tokens TokenPurger) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	return &Scheduler{cron: c, courses: courses, enrollments: enrollments, tokens: tokens, now: time.Now}
}

// Start registers the jobs on their schedules and starts the cron loop.
// An empty spec disables that job.
func (s *Scheduler) Start(auditSpec, cleanupSpec string) error {
	logScheduler("Initializing schedulers...")

	if auditSpec != "" {
		_, err := s.cron.AddFunc(auditSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := s.AuditCapacity(ctx); err != nil {
				logScheduler("capacity audit failed: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("audit schedule %q: %w", auditSpec, err)
		}
		logScheduler("capacity audit scheduled %q", auditSpec)
	}

	if cleanupSpec != "" {
		_, err := s.cron.AddFunc(cleanupSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := s.PurgeTokens(ctx); err != nil {
				logScheduler("token cleanup failed: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("token cleanup schedule %q: %w", cleanupSpec, err)
		}
		logScheduler("token cleanup scheduled %q", cleanupSpec)
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logScheduler("stopped")
}

// AuditCapacity compares the APPROVED count of every course with its
// capacity. Findings are logged; nothing is modified.
func (s *Scheduler) AuditCapacity(ctx context.Context) (AuditReport, error) {
	all, err := s.courses.All(ctx)
	if err != nil {
		return AuditReport{}, err
	}
	ids := make([]string, len(all))
	for i, c := range all {
		ids[i] = c.ID
	}

	approved, err := s.enrollments.CountsByCourseIDs(ctx, ids)
	if err != nil {
		return AuditReport{}, err
	}
	pending, err := s.enrollments.PendingCounts(ctx, ids)
	if err != nil {
		return AuditReport{}, err
	}

	today := StartOfDay(s.now())
	report := AuditReport{Checked: len(all)}
	for _, c := range all {
		if n := approved[c.ID]; n > int64(c.Capacity) {
			report.OverCapacity = append(report.OverCapacity, c.ID)
			logScheduler("course %s has %d approved enrollments for %d seats", c.ID, n, c.Capacity)
		}
		if n := pending[c.ID]; n > 0 && time.Time(c.StartDate).Before(today) {
			report.StalePending = append(report.StalePending, c.ID)
			logScheduler("course %s started on %s with %d pending requests", c.ID, time.Time(c.StartDate).Format(time.DateOnly), n)
		}
	}
	logScheduler("capacity audit checked %d courses", report.Checked)
	return report, nil
}

// PurgeTokens drops token revocations that have expired.
func (s *Scheduler) PurgeTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.PurgeRevoked(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logScheduler("purged %d expired token revocations", n)
	}
	return n, nil
}
