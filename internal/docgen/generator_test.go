package docgen

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/campaign-service/internal/actionlog"
	"jobmate/campaign-service/internal/application"
	"jobmate/campaign-service/internal/model"
)

// ── Fakes ─────────────────────────────────────────────────────────────────

type fakeCompleter struct {
	out generationOutput
	err error
}

func (f *fakeCompleter) CompleteJSON(ctx context.Context, prompt string, out any) error {
	if f.err != nil {
		return f.err
	}
	*out.(*generationOutput) = f.out
	return nil
}

type fakeProfiles struct{}

func (fakeProfiles) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return &model.Profile{
		UserID:     userID,
		Headline:   "Go developer",
		BaselineCV: json.RawMessage(`{"summary":"8 years of backend work"}`),
	}, nil
}

func (fakeProfiles) GetProfileEmbedding(ctx context.Context, userID string) ([]float32, error) {
	return []float32{1}, nil
}

type storedDoc struct {
	docType     string
	artifactRef string
}

type fakeDocStore struct {
	stored []storedDoc
}

func (f *fakeDocStore) InsertDocuments(ctx context.Context, applicationID string, docs []DocumentInsert) (map[string]int, error) {
	versions := make(map[string]int, len(docs))
	for i, d := range docs {
		f.stored = append(f.stored, storedDoc{d.DocType, d.ArtifactRef})
		versions[d.DocType] = i + 1
	}
	return versions, nil
}

type fakeRenderer struct {
	errOn string // doc type that fails to render; "" renders everything
}

func (f *fakeRenderer) Render(ctx context.Context, docType string, content model.DocumentContent) (string, error) {
	if f.errOn == docType {
		return "", errors.New("renderer down")
	}
	return "s3://docs/" + docType + ".pdf", nil
}

// ── Fixtures ──────────────────────────────────────────────────────────────

func validContent(title string) model.DocumentContent {
	return model.DocumentContent{
		Title: title,
		Sections: []model.DocumentSection{
			{Heading: "Experience", Body: "8 years building Go services."},
			{Heading: "Skills", Items: []string{"Go", "PostgreSQL"}},
		},
	}
}

func claimedApp() *application.ClaimedApplication {
	return &application.ClaimedApplication{
		App: model.Application{ID: "app-1", UserID: "user-1", TestMode: true},
		Offer: model.JobOffer{
			ID: "offer-1", Title: "Backend Engineer", Company: "Acme",
			Location: "Paris", Description: "Go, PostgreSQL",
		},
	}
}

// ── Generate ──────────────────────────────────────────────────────────────

func TestGenerate_StoresBothDocuments(t *testing.T) {
	store := &fakeDocStore{}
	g := NewGenerator(
		&fakeCompleter{out: generationOutput{
			CV:          validContent("CV — Backend Engineer at Acme"),
			CoverLetter: validContent("Cover letter — Acme"),
		}},
		fakeProfiles{}, store, &fakeRenderer{}, &actionlog.Memory{},
	)

	require.NoError(t, g.Generate(context.Background(), claimedApp()))

	require.Len(t, store.stored, 2)
	assert.Equal(t, DocTypeCV, store.stored[0].docType)
	assert.Equal(t, "s3://docs/CV.pdf", store.stored[0].artifactRef)
	assert.Equal(t, DocTypeCoverLetter, store.stored[1].docType)
}

// An invalid generation stores nothing — not even the valid half.
func TestGenerate_InvalidContentStoresNothing(t *testing.T) {
	store := &fakeDocStore{}
	g := NewGenerator(
		&fakeCompleter{out: generationOutput{
			CV:          validContent("CV"),
			CoverLetter: model.DocumentContent{}, // missing title and sections
		}},
		fakeProfiles{}, store, &fakeRenderer{}, &actionlog.Memory{},
	)

	err := g.Generate(context.Background(), claimedApp())
	assert.Error(t, err)
	assert.Empty(t, store.stored)
}

func TestGenerate_ProviderError(t *testing.T) {
	store := &fakeDocStore{}
	g := NewGenerator(&fakeCompleter{err: errors.New("rate limited")},
		fakeProfiles{}, store, &fakeRenderer{}, &actionlog.Memory{})

	assert.Error(t, g.Generate(context.Background(), claimedApp()))
	assert.Empty(t, store.stored)
}

func TestGenerate_RendererError(t *testing.T) {
	store := &fakeDocStore{}
	g := NewGenerator(
		&fakeCompleter{out: generationOutput{
			CV:          validContent("CV"),
			CoverLetter: validContent("Cover letter"),
		}},
		fakeProfiles{}, store, &fakeRenderer{errOn: DocTypeCV}, &actionlog.Memory{},
	)

	assert.Error(t, g.Generate(context.Background(), claimedApp()))
	assert.Empty(t, store.stored)
}

// A failed attempt stores nothing: the CV renders fine, the cover
// letter does not, and no CV version may be left behind.
func TestGenerate_CoverLetterRenderFailureStoresNothing(t *testing.T) {
	store := &fakeDocStore{}
	g := NewGenerator(
		&fakeCompleter{out: generationOutput{
			CV:          validContent("CV"),
			CoverLetter: validContent("Cover letter"),
		}},
		fakeProfiles{}, store, &fakeRenderer{errOn: DocTypeCoverLetter}, &actionlog.Memory{},
	)

	assert.Error(t, g.Generate(context.Background(), claimedApp()))
	assert.Empty(t, store.stored, "a partial generation must not store the rendered half")
}

// ── ValidateContent ───────────────────────────────────────────────────────

func TestValidateContent(t *testing.T) {
	cases := []struct {
		name    string
		content model.DocumentContent
		wantErr bool
	}{
		{"valid with body", validContent("CV"), false},
		{"valid items only", model.DocumentContent{
			Title:    "CV",
			Sections: []model.DocumentSection{{Heading: "Skills", Items: []string{"Go"}}},
		}, false},
		{"missing title", model.DocumentContent{
			Sections: []model.DocumentSection{{Heading: "H", Body: "b"}},
		}, true},
		{"blank title", model.DocumentContent{
			Title:    "   ",
			Sections: []model.DocumentSection{{Heading: "H", Body: "b"}},
		}, true},
		{"no sections", model.DocumentContent{Title: "CV"}, true},
		{"section without heading", model.DocumentContent{
			Title:    "CV",
			Sections: []model.DocumentSection{{Body: "b"}},
		}, true},
		{"empty section", model.DocumentContent{
			Title:    "CV",
			Sections: []model.DocumentSection{{Heading: "H"}},
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateContent(tc.content)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
