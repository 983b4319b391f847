// Package fetch downloads release artifacts, skipping files that are already
// present so a failed run can simply be re-invoked.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/vector-im/riot-provision/internal/utils/logger"
)

// Present reports whether a previously downloaded artifact exists at path.
// It is the guard behind the fetcher's skip-if-exists behavior.
func Present(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Fetcher streams remote artifacts to disk.
type Fetcher struct {
	Client *http.Client

	// Progress draws a byte progress bar while downloading. Off for small
	// companion files such as detached signatures.
	Progress bool
}

// Ensure downloads url to dest unless dest already exists, in which case it
// logs and returns immediately.
func (f *Fetcher) Ensure(url, dest string) error {
	log := logger.Logger()
	if Present(dest) {
		log.Infof("%s already exists: not redownloading", dest)
		return nil
	}
	return f.Download(url, dest)
}

// Download streams the resource at url into dest. The response body is
// written to disk incrementally, never buffered whole, because release
// archives may be large. Any failure removes the partially written file
// before returning.
func (f *Fetcher) Download(url, dest string) error {
	log := logger.Logger()
	log.Infof("downloading %s -> %s", url, dest)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	var w io.Writer = out
	if f.Progress {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetDescription("downloading "+filepath.Base(dest)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		w = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("close %s: %w", dest, err)
	}

	return nil
}
