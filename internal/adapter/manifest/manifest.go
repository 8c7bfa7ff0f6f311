package manifest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jgivc/modsync/internal/common"
	"github.com/jgivc/modsync/internal/entity"
	"github.com/spf13/afero"
)

const (
	commentMarker  = "#"
	fieldSeparator = "|"

	// Category|Filename|URL is the minimum a line must carry, the
	// digest field is optional.
	minFields = 3
	maxFields = 4
)

// Loader turns a manifest source (local file or URL) into entries.
type Loader struct {
	fs     afero.Fs
	client *http.Client
	log    *slog.Logger
}

func NewLoader(log *slog.Logger) *Loader {
	return NewLoaderWithFS(afero.NewOsFs(), http.DefaultClient, log)
}

func NewLoaderWithFS(fs afero.Fs, client *http.Client, log *slog.Logger) *Loader {
	return &Loader{
		fs:     fs,
		client: client,
		log:    log.With(slog.String("item", "ManifestLoader")),
	}
}

// Load reads the manifest from fileName or, if empty, fetches it from
// url. A source failure here is fatal to the whole run. Malformed lines
// are dropped silently by design, only their count is surfaced.
func (l *Loader) Load(ctx context.Context, fileName, url string) ([]entity.Entry, error) {
	var (
		r   io.ReadCloser
		err error
	)

	switch {
	case fileName != "":
		r, err = l.fs.Open(fileName)
		if err != nil {
			return nil, fmt.Errorf("cannot read manifest file: %w", err)
		}
	case url != "":
		r, err = l.fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("cannot fetch manifest: %w", err)
		}
	default:
		return nil, common.ErrManifestSourceRequired
	}
	defer r.Close()

	entries, skipped, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("cannot parse manifest: %w", err)
	}

	if skipped > 0 {
		l.log.Warn("Skipped malformed manifest lines", slog.Int("count", skipped))
	}

	l.log.Info("Manifest loaded", slog.Int("entries", len(entries)))

	return entries, nil
}

func (l *Loader) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	return resp.Body, nil
}

// Parse reads entries line by line. Blank lines and lines starting with
// the comment marker produce nothing; a line with fewer than three
// pipe-delimited fields is dropped and counted in skipped. Line order
// is preserved.
func Parse(r io.Reader) (entries []entity.Entry, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		entry, ok := parseLine(scanner.Text())
		if !ok {
			skipped++

			continue
		}
		if entry == nil {
			continue
		}

		entries = append(entries, *entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("cannot read manifest: %w", err)
	}

	return entries, skipped, nil
}

// parseLine returns (nil, true) for ignorable lines and (nil, false)
// for malformed ones.
func parseLine(line string) (*entity.Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, commentMarker) {
		return nil, true
	}

	parts := strings.SplitN(line, fieldSeparator, maxFields+1)
	if len(parts) < minFields {
		return nil, false
	}

	entry := entity.Entry{
		Category: parts[0],
		Filename: parts[1],
		URL:      parts[2],
	}
	if len(parts) > minFields {
		entry.SHA256 = parts[3]
	}

	return &entry, true
}
