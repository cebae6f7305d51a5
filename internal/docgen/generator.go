// Package docgen produces tailored application documents (CV + cover
// letter) from the candidate profile and a matched job offer, renders
// them to durable artifacts, and stores them as immutable versions.
package docgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"jobmate/campaign-service/internal/actionlog"
	"jobmate/campaign-service/internal/application"
	"jobmate/campaign-service/internal/model"
	"jobmate/campaign-service/internal/profile"
)

// Document types stored in generated_documents.
const (
	DocTypeCV          = "CV"
	DocTypeCoverLetter = "COVER_LETTER"
)

// JSONCompleter is the reasoning provider contract (implemented by
// ai.Client).
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, prompt string, out any) error
}

// Renderer turns a structured document into a durable artifact and
// returns its reference.
type Renderer interface {
	Render(ctx context.Context, docType string, content model.DocumentContent) (string, error)
}

// DocumentInsert is one document ready for storage.
type DocumentInsert struct {
	DocType     string
	Content     json.RawMessage
	ArtifactRef string
}

// DocStore persists generated documents.
type DocStore interface {
	// InsertDocuments stores every document as the next version for its
	// (applicationID, docType) pair in one transaction, returning the
	// version per doc type.
	InsertDocuments(ctx context.Context, applicationID string, docs []DocumentInsert) (map[string]int, error)
}

// generationOutput is the schema-shaped LLM response.
type generationOutput struct {
	CV          model.DocumentContent `json:"cv"`
	CoverLetter model.DocumentContent `json:"coverLetter"`
}

// Generator runs one generation attempt for a claimed application.
type Generator struct {
	llm      JSONCompleter
	profiles profile.Provider
	store    DocStore
	renderer Renderer
	alog     actionlog.Logger
}

// NewGenerator constructs a Generator.
func NewGenerator(llm JSONCompleter, profiles profile.Provider, store DocStore,
	renderer Renderer, alog actionlog.Logger) *Generator {
	return &Generator{llm: llm, profiles: profiles, store: store, renderer: renderer, alog: alog}
}

const generatePromptTemplate = `You are a career writing assistant. Using the candidate profile, their
baseline CV and the job posting below, write a tailored CV and a cover
letter. Return a JSON object with exactly this shape:

{
  "cv": {
    "title": <document title>,
    "sections": [{"heading": <string>, "body": <string, optional>, "items": [<string>, ...]}]
  },
  "coverLetter": {
    "title": <document title>,
    "sections": [{"heading": <string>, "body": <string>}]
  }
}

Both documents must be truthful to the profile — never invent experience.

CANDIDATE PROFILE:
%s

BASELINE CV:
%s

JOB POSTING:
Title: %s
Company: %s
Location: %s
Description:
%s`

// Generate produces both documents for the claimed application. On any
// failure nothing is stored — a structurally invalid generation is a
// failure, never a partial write. The caller records the outcome on the
// application state machine.
func (g *Generator) Generate(ctx context.Context, ca *application.ClaimedApplication) error {
	app, offer := ca.App, ca.Offer

	p, err := g.profiles.GetProfile(ctx, app.UserID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	prompt := fmt.Sprintf(generatePromptTemplate,
		profile.Text(p), string(p.BaselineCV),
		offer.Title, offer.Company, offer.Location, offer.Description,
	)

	var out generationOutput
	if err := g.llm.CompleteJSON(ctx, prompt, &out); err != nil {
		return fmt.Errorf("generate documents: %w", err)
	}

	// Validate both documents before rendering or storing anything.
	if err := ValidateContent(out.CV); err != nil {
		return fmt.Errorf("generated CV invalid: %w", err)
	}
	if err := ValidateContent(out.CoverLetter); err != nil {
		return fmt.Errorf("generated cover letter invalid: %w", err)
	}

	// Render both artifacts before storing either, then store both in
	// one transaction: a render failure on either document leaves no
	// partial version behind.
	var inserts []DocumentInsert
	for _, doc := range []struct {
		docType string
		content model.DocumentContent
	}{
		{DocTypeCV, out.CV},
		{DocTypeCoverLetter, out.CoverLetter},
	} {
		artifactRef, err := g.renderer.Render(ctx, doc.docType, doc.content)
		if err != nil {
			return fmt.Errorf("render %s: %w", doc.docType, err)
		}
		raw, err := json.Marshal(doc.content)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", doc.docType, err)
		}
		inserts = append(inserts, DocumentInsert{
			DocType: doc.docType, Content: raw, ArtifactRef: artifactRef,
		})
	}

	versions, err := g.store.InsertDocuments(ctx, app.ID, inserts)
	if err != nil {
		return fmt.Errorf("store documents: %w", err)
	}

	for _, d := range inserts {
		log.Printf("[docgen] Application %s: %s v%d stored (%s)",
			app.ID, d.DocType, versions[d.DocType], d.ArtifactRef)
		g.alog.Append(ctx, actionlog.Entry{
			EntityType: "application", EntityID: app.ID,
			Action: "document.generate", Status: actionlog.StatusSuccess,
			TestMode: app.TestMode,
			Detail:   map[string]any{"docType": d.DocType, "version": versions[d.DocType]},
		})
	}
	return nil
}

// ValidateContent checks the schema shape of a generated document.
func ValidateContent(c model.DocumentContent) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("missing title")
	}
	if len(c.Sections) == 0 {
		return fmt.Errorf("no sections")
	}
	for i, s := range c.Sections {
		if strings.TrimSpace(s.Heading) == "" {
			return fmt.Errorf("section %d: missing heading", i)
		}
		if strings.TrimSpace(s.Body) == "" && len(s.Items) == 0 {
			return fmt.Errorf("section %d (%s): empty", i, s.Heading)
		}
	}
	return nil
}
