package model

import (
	"strings"

	"ai-course-studio/internal/domain"
)

type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// Resource is a rationed unit of consumption.
type Resource string

const (
	ResourceCourses Resource = "courses"
	ResourceQuizzes Resource = "quizzes"
	ResourceLessons Resource = "lessons"
	ResourceTokens  Resource = "tokens"
)

// Resources lists every rationed resource in a stable order.
var Resources = []Resource{ResourceCourses, ResourceQuizzes, ResourceLessons, ResourceTokens}

// Unlimited marks a resource without a ceiling.
const Unlimited int64 = -1

// TierLimits holds the per-period ceiling of every resource for one tier,
// plus the feature flags the tier unlocks.
type TierLimits struct {
	Courses int64 `json:"courses"`
	Quizzes int64 `json:"quizzes"`
	Lessons int64 `json:"lessons"`
	Tokens  int64 `json:"tokens"`

	TeamSharing       bool `json:"team_sharing"`
	CustomBranding    bool `json:"custom_branding"`
	AdvancedAnalytics bool `json:"advanced_analytics"`
	ResponseTimeHours int  `json:"response_time_hours"`
}

// limits is the only limit table in the codebase.
var limits = map[Tier]TierLimits{
	TierFree: {
		Courses: 5, Quizzes: 10, Lessons: 15, Tokens: 5000,
		ResponseTimeHours: 48,
	},
	TierBasic: {
		Courses: 15, Quizzes: 30, Lessons: 45, Tokens: 15000,
		TeamSharing: true, ResponseTimeHours: 24,
	},
	TierPro: {
		Courses: 100, Quizzes: 300, Lessons: 500, Tokens: Unlimited,
		TeamSharing: true, CustomBranding: true, AdvancedAnalytics: true, ResponseTimeHours: 12,
	},
}

// LimitsFor returns the limits of a tier. Unknown tiers get the free limits.
func LimitsFor(t Tier) TierLimits {
	if l, ok := limits[t]; ok {
		return l
	}
	return limits[TierFree]
}

// Limit returns the ceiling of r, or Unlimited.
func (l TierLimits) Limit(r Resource) int64 {
	switch r {
	case ResourceCourses:
		return l.Courses
	case ResourceQuizzes:
		return l.Quizzes
	case ResourceLessons:
		return l.Lessons
	case ResourceTokens:
		return l.Tokens
	}
	return 0
}

// Allows reports whether used+amount stays within the ceiling of r.
func (l TierLimits) Allows(r Resource, used, amount int64) bool {
	max := l.Limit(r)
	if max == Unlimited {
		return true
	}
	return used+amount <= max
}

func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierFree, TierBasic, TierPro:
		return t, nil
	}
	return "", domain.ErrInvalidArgument
}

func ParseResource(s string) (Resource, error) {
	switch r := Resource(strings.ToLower(strings.TrimSpace(s))); r {
	case ResourceCourses, ResourceQuizzes, ResourceLessons, ResourceTokens:
		return r, nil
	}
	return "", domain.ErrInvalidArgument
}
