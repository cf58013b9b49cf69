package models

import (
	"time"

	"github.com/google/uuid"
)

// OnboardingStatus is the five-state lifecycle a user moves through
// before chat access is granted.
type OnboardingStatus string

const (
	StatusURLPending         OnboardingStatus = "linkedin_url_pending"
	StatusScrapingInProgress OnboardingStatus = "scraping_in_progress"
	StatusAnalysisInProgress OnboardingStatus = "analysis_in_progress"
	StatusReady              OnboardingStatus = "ready"
	StatusError              OnboardingStatus = "error"
)

// legalTransitions enumerates every permitted status edge. Ready is terminal;
// only the error state permits a user-initiated retry back into scraping.
var legalTransitions = map[OnboardingStatus][]OnboardingStatus{
	StatusURLPending:         {StatusScrapingInProgress},
	StatusScrapingInProgress: {StatusAnalysisInProgress, StatusError},
	StatusAnalysisInProgress: {StatusReady, StatusError},
	StatusError:              {StatusScrapingInProgress},
}

// CanTransition reports whether moving from s to next is a legal status change.
func (s OnboardingStatus) CanTransition(next OnboardingStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the five known statuses.
func (s OnboardingStatus) Valid() bool {
	switch s {
	case StatusURLPending, StatusScrapingInProgress, StatusAnalysisInProgress, StatusReady, StatusError:
		return true
	}
	return false
}

// User represents an application user
type User struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey;column:id"`
	Email           string           `gorm:"type:varchar(255);uniqueIndex;column:email"`
	DisplayName     string           `gorm:"type:varchar(255);column:display_name"`
	LinkedInURL     string           `gorm:"type:varchar(512);column:linkedin_url"`
	OnboardingState OnboardingStatus `gorm:"type:varchar(32);not null;default:'linkedin_url_pending';column:onboarding_state"`
	OnboardingError string           `gorm:"type:text;column:onboarding_error"`
	CreatedAt       time.Time        `gorm:"not null;column:created_at"`
	UpdatedAt       time.Time        `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "pe_users"
}
