// Package model defines shared data structures for the campaign service.
package model

import (
	"encoding/json"
	"time"
)

// SearchCriteria is the declarative part of a campaign used by source
// adapters and the red-flag filter.
type SearchCriteria struct {
	TargetRoles   []string `json:"targetRoles"`
	Locations     []string `json:"locations"`
	ContractTypes []string `json:"contractTypes"`
	SalaryMin     *int     `json:"salaryMin"`
	SalaryMax     *int     `json:"salaryMax"`
	Remote        bool     `json:"remote"`
	RedFlags      []string `json:"redFlags"` // exclusion terms — any match discards the offer
}

// Campaign mirrors the campaigns table row.
type Campaign struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Name           string         `json:"name"`
	Criteria       SearchCriteria `json:"criteria"`
	MatchThreshold int            `json:"matchThreshold"`
	TestMode       bool           `json:"testMode"`
	AutoApply      bool           `json:"autoApply"`
	EnabledSources []string       `json:"enabledSources"`
	Status         string         `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// JobResult is a normalised offer fetched from an external job source.
// It is converted to JSON and stored in job_offers.raw_data (JSONB).
type JobResult struct {
	ExternalID   string  `json:"externalId"`
	Title        string  `json:"title"`
	Company      string  `json:"company"`
	Location     string  `json:"location"`
	Description  string  `json:"description"`
	SalaryMin    float64 `json:"salaryMin,omitempty"`
	SalaryMax    float64 `json:"salaryMax,omitempty"`
	SourceURL    string  `json:"sourceUrl"`
	ContractType string  `json:"contractType,omitempty"`
	PublishedAt  string  `json:"publishedAt,omitempty"`
}

// JobOffer mirrors the job_offers table row.
type JobOffer struct {
	ID            string          `json:"id"`
	CampaignID    string          `json:"campaignId"`
	SourceID      string          `json:"sourceId"`
	ExternalID    string          `json:"externalId"`
	Title         string          `json:"title"`
	Company       string          `json:"company"`
	Location      string          `json:"location"`
	Description   string          `json:"description"`
	SalaryMin     *float64        `json:"salaryMin"`
	SalaryMax     *float64        `json:"salaryMax"`
	SourceURL     string          `json:"sourceUrl"`
	ContractType  string          `json:"contractType"`
	PublishedAt   string          `json:"publishedAt"`
	MatchScore    *int            `json:"matchScore"`
	MatchAnalysis json.RawMessage `json:"matchAnalysis"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// MatchAnalysis is the structured output of the reasoning step.
type MatchAnalysis struct {
	MatchScore           int            `json:"matchScore"`
	MatchBreakdown       MatchBreakdown `json:"matchBreakdown"`
	MatchingRequirements []string       `json:"matchingRequirements"`
	MissingRequirements  []string       `json:"missingRequirements"`
	RedFlags             []string       `json:"redFlags"`
	Recommendation       string         `json:"recommendation"`
	Reasoning            string         `json:"reasoning"`
}

// MatchBreakdown holds per-dimension sub-scores (0-100). Salary is nil
// when the posting carries no salary information.
type MatchBreakdown struct {
	Skills     int  `json:"skills"`
	Experience int  `json:"experience"`
	Education  int  `json:"education"`
	Location   int  `json:"location"`
	Salary     *int `json:"salary"`
}

// Application mirrors the applications table row.
type Application struct {
	ID              string     `json:"id"`
	JobOfferID      string     `json:"jobOfferId"`
	CampaignID      string     `json:"campaignId"`
	UserID          string     `json:"userId"`
	Status          string     `json:"status"`
	Method          *string    `json:"method"`
	RequiresConfirm bool       `json:"requiresConfirm"`
	TestMode        bool       `json:"testMode"`
	ConfirmedAt     *time.Time `json:"confirmedAt"`
	SubmittedAt     *time.Time `json:"submittedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// GeneratedDocument mirrors the generated_documents table row.
// Rows are immutable; "latest" is the highest version per type.
type GeneratedDocument struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"applicationId"`
	DocType       string          `json:"docType"` // CV | COVER_LETTER
	Version       int             `json:"version"`
	Content       json.RawMessage `json:"content"`
	ArtifactRef   string          `json:"artifactRef"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// EmailRecord mirrors the email_records table row.
type EmailRecord struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	Recipient     string    `json:"recipient"`
	Subject       string    `json:"subject"`
	Status        string    `json:"status"` // QUEUED | SENDING | SENT | FAILED
	DryRun        bool      `json:"dryRun"`
	Error         *string   `json:"error"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Profile is the candidate profile consumed by the scorer and generator.
// Written by the profile editor (out of scope); read-only here.
type Profile struct {
	UserID       string          `json:"userId"`
	Headline     string          `json:"headline"`
	Summary      string          `json:"summary"`
	Skills       []string        `json:"skills"`
	Experience   json.RawMessage `json:"experience"`
	Education    json.RawMessage `json:"education"`
	BaselineCV   json.RawMessage `json:"baselineCv"`
	ContactEmail string          `json:"contactEmail"`
}

// DocumentContent is the schema-shaped output of document generation,
// validated before storage and handed to the rendering service.
type DocumentContent struct {
	Title    string            `json:"title"`
	Sections []DocumentSection `json:"sections"`
}

// DocumentSection is one titled block of a generated document.
type DocumentSection struct {
	Heading string   `json:"heading"`
	Body    string   `json:"body,omitempty"`
	Items   []string `json:"items,omitempty"`
}
