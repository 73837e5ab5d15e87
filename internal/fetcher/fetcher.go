// Package fetcher downloads contact list files from HTTP and FTP sources and
// parses the CSV and XLSX formats list providers deliver them in.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a remote contact list file.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path.
	// Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ForURL returns the fetcher for the URL's scheme. List providers deliver
// over plain HTTP endpoints or authenticated FTP drops.
func ForURL(rawURL string, timeout time.Duration) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPFetcher(HTTPOptions{Timeout: timeout}), nil
	case "ftp":
		return NewFTPFetcher(FTPOptions{Timeout: timeout}), nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}
