// Package profile reads candidate profiles for the pipeline. Profiles
// and their embeddings are written by the profile editor, which lives
// outside this service; here they are read-only.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"jobmate/campaign-service/internal/model"
)

// Provider exposes profile reads to the scorer and generator.
type Provider interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	// GetProfileEmbedding returns (nil, nil) when the embedding has not
	// been generated yet — callers treat that as "not ready", not an error.
	GetProfileEmbedding(ctx context.Context, userID string) ([]float32, error)
}

// ErrNotFound is returned when no profile exists for the user.
var ErrNotFound = fmt.Errorf("profile not found")

// PGProvider reads profiles from the profiles table.
type PGProvider struct {
	pool *pgxpool.Pool
}

// NewPGProvider returns a Provider backed by PostgreSQL.
func NewPGProvider(pool *pgxpool.Pool) *PGProvider {
	return &PGProvider{pool: pool}
}

// GetProfile returns the candidate profile for userID.
func (p *PGProvider) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var pr model.Profile
	err := p.pool.QueryRow(ctx,
		`SELECT user_id, headline, summary, skills, experience, education,
		        baseline_cv, contact_email
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&pr.UserID, &pr.Headline, &pr.Summary, &pr.Skills, &pr.Experience,
		&pr.Education, &pr.BaselineCV, &pr.ContactEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &pr, nil
}

// GetProfileEmbedding returns the profile embedding vector, or (nil, nil)
// when it has not been generated yet.
func (p *PGProvider) GetProfileEmbedding(ctx context.Context, userID string) ([]float32, error) {
	var vec *pgvector.Vector
	err := p.pool.QueryRow(ctx,
		`SELECT embedding FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile embedding: %w", err)
	}
	if vec == nil {
		return nil, nil
	}
	return vec.Slice(), nil
}

// Text flattens a profile into the text fed to the embedding and
// reasoning providers.
func Text(p *model.Profile) string {
	var b strings.Builder
	b.WriteString(p.Headline)
	b.WriteString("\n")
	b.WriteString(p.Summary)
	if len(p.Skills) > 0 {
		b.WriteString("\nSkills: ")
		b.WriteString(strings.Join(p.Skills, ", "))
	}
	if len(p.Experience) > 0 {
		b.WriteString("\nExperience: ")
		b.Write(p.Experience)
	}
	if len(p.Education) > 0 {
		b.WriteString("\nEducation: ")
		b.Write(p.Education)
	}
	return b.String()
}

var _ Provider = (*PGProvider)(nil)
