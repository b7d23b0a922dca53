package model

import (
	"strings"
	"time"

	"ai-course-studio/internal/domain"

	"github.com/google/uuid"
)

// SubscriptionRecord is the per-user entitlement state: a tier plus the usage
// counters of the current period.
type SubscriptionRecord struct {
	ID                     string    `json:"id"`
	UserID                 string    `json:"user_id"`
	ProviderSubscriptionID string    `json:"provider_subscription_id,omitempty"`
	Tier                   Tier      `json:"tier"`
	CoursesUsed            int64     `json:"courses_used"`
	QuizzesUsed            int64     `json:"quizzes_used"`
	LessonsUsed            int64     `json:"lessons_used"`
	TokensUsed             int64     `json:"tokens_used"`
	Active                 bool      `json:"active"`
	PeriodStart            time.Time `json:"period_start"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// NewSubscriptionRecord builds the default free-tier record for a user.
func NewSubscriptionRecord(userID string, now time.Time) (*SubscriptionRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	now = StorageTime(now)
	return &SubscriptionRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		Tier:        TierFree,
		Active:      true,
		PeriodStart: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Used returns the counter of r.
func (s *SubscriptionRecord) Used(r Resource) int64 {
	switch r {
	case ResourceCourses:
		return s.CoursesUsed
	case ResourceQuizzes:
		return s.QuizzesUsed
	case ResourceLessons:
		return s.LessonsUsed
	case ResourceTokens:
		return s.TokensUsed
	}
	return 0
}

func (s *SubscriptionRecord) Limits() TierLimits { return LimitsFor(s.Tier) }

// Allows reports whether the record can take usage on top of its counters.
func (s *SubscriptionRecord) Allows(u Usage) bool {
	l := s.Limits()
	for _, r := range Resources {
		if n := u.Of(r); n > 0 && !l.Allows(r, s.Used(r), n) {
			return false
		}
	}
	return true
}

// Apply adds usage to the counters. Callers check Allows first.
func (s *SubscriptionRecord) Apply(u Usage, now time.Time) {
	s.CoursesUsed += u.Courses
	s.QuizzesUsed += u.Quizzes
	s.LessonsUsed += u.Lessons
	s.TokensUsed += u.Tokens
	s.UpdatedAt = StorageTime(now)
}

// Reset zeroes the counters and starts a new period at now.
func (s *SubscriptionRecord) Reset(now time.Time) {
	now = StorageTime(now)
	s.CoursesUsed, s.QuizzesUsed, s.LessonsUsed, s.TokensUsed = 0, 0, 0, 0
	s.PeriodStart = now
	s.UpdatedAt = now
}

// StorageTime normalizes t to the precision the store keeps (UTC, microseconds),
// so a timestamp read back compares equal to the one written.
func StorageTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Usage is an amount to charge against one record, per resource.
type Usage struct {
	Courses int64
	Quizzes int64
	Lessons int64
	Tokens  int64
}

// UsageOf builds a single-resource usage.
func UsageOf(r Resource, amount int64) Usage {
	var u Usage
	switch r {
	case ResourceCourses:
		u.Courses = amount
	case ResourceQuizzes:
		u.Quizzes = amount
	case ResourceLessons:
		u.Lessons = amount
	case ResourceTokens:
		u.Tokens = amount
	}
	return u
}

func (u Usage) Of(r Resource) int64 {
	switch r {
	case ResourceCourses:
		return u.Courses
	case ResourceQuizzes:
		return u.Quizzes
	case ResourceLessons:
		return u.Lessons
	case ResourceTokens:
		return u.Tokens
	}
	return 0
}

func (u Usage) Add(o Usage) Usage {
	return Usage{
		Courses: u.Courses + o.Courses,
		Quizzes: u.Quizzes + o.Quizzes,
		Lessons: u.Lessons + o.Lessons,
		Tokens:  u.Tokens + o.Tokens,
	}
}

// Validate rejects negative amounts and empty usage.
func (u Usage) Validate() error {
	if u.Courses < 0 || u.Quizzes < 0 || u.Lessons < 0 || u.Tokens < 0 {
		return domain.ErrInvalidArgument
	}
	if u == (Usage{}) {
		return domain.ErrInvalidArgument
	}
	return nil
}

// Exceeded returns the first resource of u the record cannot take, as a QuotaError.
func (s *SubscriptionRecord) Exceeded(u Usage) *domain.QuotaError {
	l := s.Limits()
	for _, r := range Resources {
		n := u.Of(r)
		if n > 0 && !l.Allows(r, s.Used(r), n) {
			return &domain.QuotaError{Resource: string(r), Limit: l.Limit(r), Used: s.Used(r), Requested: n}
		}
	}
	return nil
}
