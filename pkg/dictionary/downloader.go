package dictionary

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxDownloadSize caps data files fetched by EnsureFile, both on the wire
// and after decompression.
const maxDownloadSize = 32 * 1024 * 1024

// ErrDownloadTooLarge is returned when a download exceeds its size cap.
var ErrDownloadTooLarge = errors.New("download exceeds size limit")

// cappedReader fails with ErrDownloadTooLarge once more than left bytes
// have been read.
type cappedReader struct {
	r    io.Reader
	left int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.left < 0 {
		return 0, ErrDownloadTooLarge
	}
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return 0, ErrDownloadTooLarge
	}
	return n, err
}

// EnsureFile makes sure a data file exists at path. When it is missing and
// url is set, the file is downloaded (gunzipped when url ends in ".gz").
func EnsureFile(ctx context.Context, path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if url == "" {
		return fmt.Errorf("%s not found and no download url configured", path)
	}

	return download(ctx, url, path, maxDownloadSize)
}

func download(ctx context.Context, url, destPath string, limit int64) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "tokisama-cli")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	if resp.ContentLength > limit {
		return fmt.Errorf("%s: %d bytes: %w", url, resp.ContentLength, ErrDownloadTooLarge)
	}

	var body io.Reader = &cappedReader{r: resp.Body, left: limit}
	if strings.HasSuffix(url, ".gz") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		body = &cappedReader{r: gz, left: limit}
	}

	// Write next to the destination and rename so a failed download never
	// leaves a truncated data file behind.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write to file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), destPath)
}
