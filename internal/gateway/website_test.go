package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospectkeeper/pkg/jina"
)

type fakeJina struct {
	readResp   *jina.ReadResponse
	readErr    error
	searchResp *jina.SearchResponse
	searchErr  error

	searchQuery string
	searchOpts  []jina.SearchOption
}

func (f *fakeJina) Read(_ context.Context, _ string) (*jina.ReadResponse, error) {
	return f.readResp, f.readErr
}

func (f *fakeJina) Search(_ context.Context, query string, opts ...jina.SearchOption) (*jina.SearchResponse, error) {
	f.searchQuery = query
	f.searchOpts = opts
	return f.searchResp, f.searchErr
}

func TestJinaWebsite_FoundOnLandingPage(t *testing.T) {
	fj := &fakeJina{readResp: &jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{Content: "Our leadership team: JANE DOE, VP Engineering."},
	}}
	w := NewJinaWebsite(fj)

	result, err := w.FindOnSite(context.Background(), "Jane Doe", "Acme Corp", "https://acme.com")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.PersonFound)
	assert.Equal(t, "https://acme.com", result.EvidenceURL)
	assert.Contains(t, result.RawText, "JANE DOE")
}

func TestJinaWebsite_ReversedNameOrder(t *testing.T) {
	fj := &fakeJina{readResp: &jina.ReadResponse{
		Data: jina.ReadData{Content: "Staff directory: Doe, Jane (Engineering)."},
	}}
	w := NewJinaWebsite(fj)

	result, err := w.FindOnSite(context.Background(), "Jane Doe", "Acme Corp", "https://acme.com")
	require.NoError(t, err)
	assert.True(t, result.PersonFound)
}

func TestJinaWebsite_FoundViaSiteSearch(t *testing.T) {
	fj := &fakeJina{
		readResp: &jina.ReadResponse{Data: jina.ReadData{Content: "Welcome to Acme."}},
		searchResp: &jina.SearchResponse{Data: []jina.SearchResult{
			{Title: "Nobody Relevant", URL: "https://acme.com/blog", Content: "press release"},
			{Title: "Team - Acme", URL: "https://acme.com/team", Content: "Jane Doe leads engineering."},
		}},
	}
	w := NewJinaWebsite(fj)

	result, err := w.FindOnSite(context.Background(), "Jane Doe", "Acme Corp", "https://www.acme.com")
	require.NoError(t, err)
	assert.True(t, result.PersonFound)
	assert.Equal(t, "https://acme.com/team", result.EvidenceURL)
	assert.Equal(t, "Jane Doe Acme Corp", fj.searchQuery)
	// Search is scoped to the organization's bare host.
	require.Len(t, fj.searchOpts, 1)
}

func TestJinaWebsite_NotFoundStillReturnsContext(t *testing.T) {
	fj := &fakeJina{
		readResp:   &jina.ReadResponse{Data: jina.ReadData{Content: "About Acme Corp and our mission."}},
		searchResp: &jina.SearchResponse{Code: 422},
	}
	w := NewJinaWebsite(fj)

	result, err := w.FindOnSite(context.Background(), "Jane Doe", "Acme Corp", "https://acme.com")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.PersonFound)
	assert.Equal(t, "About Acme Corp and our mission.", result.RawText)
}

func TestJinaWebsite_ReadFailsSearchSucceeds(t *testing.T) {
	fj := &fakeJina{
		readErr: eris.New("read timeout"),
		searchResp: &jina.SearchResponse{Data: []jina.SearchResult{
			{Title: "Jane Doe | Acme", URL: "https://acme.com/people/jane", Content: "Jane Doe, VP"},
		}},
	}
	w := NewJinaWebsite(fj)

	result, err := w.FindOnSite(context.Background(), "Jane Doe", "Acme Corp", "https://acme.com")
	require.NoError(t, err)
	assert.True(t, result.PersonFound)
	assert.Equal(t, "https://acme.com/people/jane", result.EvidenceURL)
}

func TestJinaWebsite_BothProbesFail(t *testing.T) {
	fj := &fakeJina{
		readErr:   eris.New("read timeout"),
		searchErr: eris.New("search down"),
	}
	w := NewJinaWebsite(fj)

	_, err := w.FindOnSite(context.Background(), "Jane Doe", "Acme Corp", "https://acme.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site search")
}

func TestJinaWebsite_NoWebsiteOnFile(t *testing.T) {
	w := NewJinaWebsite(&fakeJina{})

	_, err := w.FindOnSite(context.Background(), "Jane Doe", "Acme Corp", "")
	require.Error(t, err)
}

func TestJinaWebsite_ContextTruncated(t *testing.T) {
	long := strings.Repeat("acme news. ", 1000)
	fj := &fakeJina{
		readResp:   &jina.ReadResponse{Data: jina.ReadData{Content: long}},
		searchResp: &jina.SearchResponse{},
	}
	w := NewJinaWebsite(fj)

	result, err := w.FindOnSite(context.Background(), "Jane Doe", "Acme Corp", "https://acme.com")
	require.NoError(t, err)
	assert.Len(t, result.RawText, maxContextChars)
}
