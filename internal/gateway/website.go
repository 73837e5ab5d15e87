package gateway

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/prospectkeeper/pkg/jina"
)

// maxContextChars caps how much page text is carried forward as research
// context. Team pages can run long and every character is billed downstream.
const maxContextChars = 4000

// JinaWebsite implements WebsitePresence using the Jina Reader and Search
// APIs: read the organization's site, fall back to a site-scoped search.
type JinaWebsite struct {
	client jina.Client
	folder cases.Caser
}

// NewJinaWebsite creates the website probe.
func NewJinaWebsite(client jina.Client) *JinaWebsite {
	return &JinaWebsite{client: client, folder: cases.Fold()}
}

func (w *JinaWebsite) FindOnSite(ctx context.Context, name, organization, website string) (WebsiteResult, error) {
	if website == "" {
		return WebsiteResult{}, eris.New("gateway: no website on file")
	}

	log := zap.L().With(zap.String("name", name), zap.String("website", website))

	var contextText string
	read, err := w.client.Read(ctx, website)
	if err != nil {
		log.Warn("gateway: website read failed", zap.Error(err))
	} else {
		contextText = truncate(read.Data.Content, maxContextChars)
		if w.containsName(read.Data.Content, name) {
			return WebsiteResult{
				Success:     true,
				PersonFound: true,
				EvidenceURL: website,
				RawText:     contextText,
			}, nil
		}
	}

	// Not on the landing page; search within the site for a staff or team
	// page mentioning them.
	search, err := w.client.Search(ctx, name+" "+organization,
		jina.WithSiteFilter(hostOf(website)))
	if err != nil {
		if contextText != "" {
			// The read succeeded, so the probe still yields context.
			return WebsiteResult{Success: true, RawText: contextText}, nil
		}
		return WebsiteResult{}, eris.Wrap(err, "gateway: site search")
	}

	for _, hit := range search.Data {
		if w.containsName(hit.Title+" "+hit.Content, name) {
			return WebsiteResult{
				Success:     true,
				PersonFound: true,
				EvidenceURL: hit.URL,
				RawText:     truncate(hit.Content, maxContextChars),
			}, nil
		}
	}

	return WebsiteResult{Success: true, RawText: contextText}, nil
}

// containsName does case-folded matching of the full name, in both "First
// Last" and "Last, First" order.
func (w *JinaWebsite) containsName(text, name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	folded := w.folder.String(text)
	if strings.Contains(folded, w.folder.String(name)) {
		return true
	}
	parts := strings.Fields(name)
	if len(parts) >= 2 {
		reversed := parts[len(parts)-1] + ", " + strings.Join(parts[:len(parts)-1], " ")
		return strings.Contains(folded, w.folder.String(reversed))
	}
	return false
}

func hostOf(website string) string {
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(website, "www.")
	}
	return strings.TrimPrefix(u.Host, "www.")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
