package domain

import (
	"fmt"
	"time"
)

// RunSummary accumulates counters for one import run.
type RunSummary struct {
	Created               int `json:"created"`
	Updated               int `json:"updated"`
	Archived              int `json:"archived"`
	RejectedByPrice       int `json:"rejectedByPrice"`
	RejectedByPattern     int `json:"rejectedByPattern"`
	RejectedBySourceCount int `json:"rejectedBySourceCount"`
	RejectedByCategory    int `json:"rejectedByCategory"`
	InvalidObservations   int `json:"invalidObservations"`
	MalformedCandidates   int `json:"malformedCandidates"`
	Inconsistencies       int `json:"inconsistencies"`
}

// Add folds another partial summary into s.
func (s *RunSummary) Add(other RunSummary) {
	s.Created += other.Created
	s.Updated += other.Updated
	s.Archived += other.Archived
	s.RejectedByPrice += other.RejectedByPrice
	s.RejectedByPattern += other.RejectedByPattern
	s.RejectedBySourceCount += other.RejectedBySourceCount
	s.RejectedByCategory += other.RejectedByCategory
	s.InvalidObservations += other.InvalidObservations
	s.MalformedCandidates += other.MalformedCandidates
	s.Inconsistencies += other.Inconsistencies
}

// AddApplied folds store adapter counts into s.
func (s *RunSummary) AddApplied(counts ApplyCounts) {
	s.Created += counts.Created
	s.Updated += counts.Updated
	s.Archived += counts.Archived
}

// Rejected is the total number of candidates the admission filter turned down.
func (s RunSummary) Rejected() int {
	return s.RejectedByPrice + s.RejectedByPattern + s.RejectedBySourceCount + s.RejectedByCategory
}

func (s RunSummary) String() string {
	return fmt.Sprintf("created=%d updated=%d archived=%d rejected(price=%d pattern=%d sources=%d category=%d) invalid=%d malformed=%d inconsistent=%d",
		s.Created, s.Updated, s.Archived,
		s.RejectedByPrice, s.RejectedByPattern, s.RejectedBySourceCount, s.RejectedByCategory,
		s.InvalidObservations, s.MalformedCandidates, s.Inconsistencies)
}

// RunStatus enumerates import run outcomes.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
	RunSkipped RunStatus = "skipped"
	RunDryRun  RunStatus = "dry-run"
)

// RunRecord is the history row the orchestrator persists after each run.
type RunRecord struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        RunStatus
	ProductCount  int
	Summary       RunSummary
	FailedSources []string
}
