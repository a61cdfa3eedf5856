package models

import "time"

// UserRecord is the owning user's record in the store. Only the onboarding
// projection is mutated by the sync loop, as a side effect of terminal
// transitions.
type UserRecord struct {
	ID         string               `json:"id"`
	Email      string               `json:"email,omitempty"`
	Onboarding OnboardingProjection `json:"onboarding"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// OnboardingProjection is the user's view of their contract's indexing state
type OnboardingProjection struct {
	ContinuousSyncEnabled bool    `json:"continuousSyncEnabled"`
	IsIndexed             bool    `json:"isIndexed"`
	IndexingProgress      int     `json:"indexingProgress"` // 0-100
	CompletionReason      *string `json:"completionReason,omitempty"`
	IndexingError         *string `json:"indexingError,omitempty"`
}

// OnboardingUpdate is a partial update to the onboarding projection
type OnboardingUpdate struct {
	ContinuousSyncEnabled *bool
	IsIndexed             *bool
	IndexingProgress      *int
	CompletionReason      *string
	IndexingError         *string
}
