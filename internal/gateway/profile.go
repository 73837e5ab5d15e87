package gateway

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// pageFetcher abstracts the headless browser so classification is testable
// without one.
type pageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// BrowserOptions configure the headless session used for profile checks.
type BrowserOptions struct {
	// RemoteURL connects to an existing DevTools endpoint instead of
	// launching a local browser.
	RemoteURL string
	Headless  bool
	Timeout   time.Duration
}

// RodProfile implements ProfileVerifier: a headless browser loads the public
// profile and the visible text is classified locally. No tokens are spent at
// this tier.
type RodProfile struct {
	fetch  pageFetcher
	folder cases.Caser
}

// NewRodProfile creates the profile verifier.
func NewRodProfile(opts BrowserOptions) *RodProfile {
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	return &RodProfile{
		fetch:  &rodFetcher{opts: opts},
		folder: cases.Fold(),
	}
}

func (p *RodProfile) VerifyEmployment(ctx context.Context, name, organization, profileURL string) (ProfileResult, error) {
	if profileURL == "" {
		return ProfileResult{}, nil
	}

	text, err := p.fetch.Fetch(ctx, profileURL)
	if err != nil {
		return ProfileResult{}, eris.Wrap(err, "gateway: profile fetch")
	}

	if isBlockedPage(text) {
		zap.L().Info("gateway: profile page blocked",
			zap.String("name", name), zap.String("profile_url", profileURL))
		return ProfileResult{Blocked: true, ProfileURL: profileURL}, nil
	}

	return ProfileResult{
		Success:       true,
		StillEmployed: p.classifyEmployment(text, organization),
		ProfileURL:    profileURL,
	}, nil
}

// yearRange matches a closed tenure like "2019 - 2023" or "Jan 2019 - Feb
// 2024". An open tenure reads "2019 - Present" and never matches.
var yearRange = regexp.MustCompile(`(?i)\b(19|20)\d{2}\s*[-\x{2013}]\s*(?:[a-z]{3,9}\s+)?(19|20)\d{2}\b`)

// classifyEmployment scans the profile text for the organization and inspects
// the tenure wording around each mention. Current roles on the major networks
// always render "Present" as the end date, so:
//   - organization followed by "present" within the entry => Confirmed
//   - organization only inside closed date ranges => Denied
//   - organization absent or ambiguous => Inconclusive
func (p *RodProfile) classifyEmployment(text, organization string) Determination {
	org := p.folder.String(strings.TrimSpace(organization))
	if org == "" {
		return Inconclusive
	}
	folded := p.folder.String(text)
	present := p.folder.String("present")

	closed := false
	for idx := strings.Index(folded, org); idx >= 0; {
		end := idx + len(org) + 160
		if end > len(folded) {
			end = len(folded)
		}
		window := folded[idx:end]

		if strings.Contains(window, present) {
			return Confirmed
		}
		if yearRange.MatchString(window) {
			closed = true
		}

		next := strings.Index(folded[idx+len(org):], org)
		if next < 0 {
			break
		}
		idx += len(org) + next
	}

	if closed {
		return Denied
	}
	return Inconclusive
}

// blockedMarkers are substrings the networks serve on interstitial pages
// instead of profile content.
var blockedMarkers = []string{
	"authwall",
	"sign in to view",
	"join now to view",
	"verify you are a human",
	"unusual activity",
	"checking your browser",
}

func isBlockedPage(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range blockedMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// rodFetcher drives a Chromium session via the DevTools protocol.
type rodFetcher struct {
	opts BrowserOptions
}

func (f *rodFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	controlURL := f.opts.RemoteURL
	if controlURL == "" {
		u, err := launcher.New().Headless(f.opts.Headless).Launch()
		if err != nil {
			return "", eris.Wrap(err, "launch browser")
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", eris.Wrap(err, "connect browser")
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", eris.Wrap(err, "open page")
	}
	page = page.Timeout(f.opts.Timeout)

	if err := page.WaitLoad(); err != nil {
		return "", eris.Wrap(err, "wait for page load")
	}

	body, err := page.Element("body")
	if err != nil {
		return "", eris.Wrap(err, "locate body")
	}
	text, err := body.Text()
	if err != nil {
		return "", eris.Wrap(err, "read page text")
	}
	return text, nil
}
