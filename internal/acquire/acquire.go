// Package acquire downloads dataset files and creates metadata records.
package acquire

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/immunization-etl/internal/dataset"
	"github.com/pdiddy/immunization-etl/internal/httputil"
	"github.com/pdiddy/immunization-etl/pkg/types"
)

const (
	rawDir      = "raw"
	metadataDir = "metadata"
)

// BatchResult holds the outcome of a batch acquisition run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Datasets   []*types.Dataset
}

// Total returns the total number of identifiers processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any datasets failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// AcquireDataset resolves a single identifier, downloads the CSV, and writes
// metadata. If the raw file already exists on disk, it skips the download.
// The skipped return value indicates whether the download was skipped.
func AcquireDataset(ctx context.Context, client *http.Client, identifier string, cfg types.AcquisitionConfig, w io.Writer) (ds *types.Dataset, skipped bool, err error) {
	srcType, normalized := Classify(identifier)
	if srcType == TypeUnknown {
		return nil, false, fmt.Errorf("unrecognized dataset identifier: %q", identifier)
	}

	slug := Slug(srcType, normalized)
	rawPath := filepath.Join(cfg.DataDir, rawDir, slug+".csv")
	metaPath := filepath.Join(cfg.DataDir, metadataDir, slug+".yaml")

	// Skip if the raw file already exists.
	if _, err := os.Stat(rawPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", slug)
		d, readErr := readMetadata(metaPath)
		if readErr != nil {
			d = &types.Dataset{Slug: slug, RawPath: rawPath}
		}
		return d, true, nil
	}

	downloadURL := DownloadURL(srcType, normalized)
	if downloadURL == "" {
		return nil, false, fmt.Errorf("cannot resolve download URL for %q", identifier)
	}

	for _, dir := range []string{
		filepath.Join(cfg.DataDir, rawDir),
		filepath.Join(cfg.DataDir, metadataDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, false, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	fmt.Fprintf(w, "downloading: %s (%s)\n", slug, srcType)

	sum, size, err := downloadFile(ctx, client, downloadURL, rawPath, srcType, cfg, w)
	if err != nil {
		return nil, false, fmt.Errorf("downloading %s: %w", slug, err)
	}

	d := &types.Dataset{
		Slug:      slug,
		SourceURL: downloadURL,
		RawPath:   rawPath,
		FetchedAt: time.Now().UTC(),
		SHA256:    sum,
		SizeBytes: size,
		Source:    srcType.String(),
	}

	// A quick parse fills the row and column counts. A file that does not
	// parse as CSV is worth warning about now rather than at transform time.
	if table, parseErr := dataset.ReadFile(rawPath); parseErr == nil {
		d.Rows = len(table.Rows)
		d.Columns = table.Header
	} else {
		fmt.Fprintf(w, "  warning: downloaded file does not parse as CSV: %v\n", parseErr)
	}

	if err := writeMetadata(d, metaPath); err != nil {
		return nil, false, fmt.Errorf("writing metadata for %s: %w", slug, err)
	}

	return d, false, nil
}

// AcquireBatch processes multiple identifiers, printing per-item status
// and returning a summary. It continues after individual failures and
// applies a delay between consecutive downloads.
func AcquireBatch(ctx context.Context, client *http.Client, identifiers []string, cfg types.AcquisitionConfig, w io.Writer) BatchResult {
	var result BatchResult
	for i, id := range identifiers {
		if i > 0 && cfg.DownloadDelay > 0 {
			select {
			case <-ctx.Done():
				fmt.Fprintf(w, "failed:  %s (%v)\n", id, ctx.Err())
				result.Failed++
				continue
			case <-time.After(cfg.DownloadDelay):
			}
		}
		d, wasSkipped, err := AcquireDataset(ctx, client, id, cfg, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
			result.Failed++
			continue
		}
		if wasSkipped {
			result.Skipped++
		} else {
			result.Downloaded++
		}
		result.Datasets = append(result.Datasets, d)
	}
	fmt.Fprintf(w, "\nBatch summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result
}

// downloadFile fetches url to destPath using a temporary file renamed on
// success, hashing the final contents along the way. Kaggle serves dataset
// downloads as zip archives even for a single CSV; those are unpacked
// transparently. Returns the SHA-256 checksum and size of the stored file.
func downloadFile(ctx context.Context, client *http.Client, url, destPath string, srcType SourceType, cfg types.AcquisitionConfig, w io.Writer) (sum string, size int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "text/csv, application/zip;q=0.9, */*;q=0.1")
	if srcType == TypeKaggle && cfg.KaggleUsername != "" {
		req.SetBasicAuth(cfg.KaggleUsername, cfg.KaggleKey)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return "", 0, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	body := io.Reader(resp.Body)
	if cfg.Progress && resp.ContentLength > 0 {
		progress := mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
		bar := progress.AddBar(resp.ContentLength,
			mpb.BarRemoveOnComplete(),
			mpb.PrependDecorators(decor.Name(filepath.Base(destPath)+" ")),
			mpb.AppendDecorators(decor.CountersKibiByte("% .1f / % .1f")),
		)
		proxy := bar.ProxyReader(resp.Body)
		defer proxy.Close()
		defer progress.Wait()
		body = proxy
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if zipped, zerr := isZip(tmpPath); zerr != nil {
		os.Remove(tmpPath)
		return "", 0, zerr
	} else if zipped {
		if err := unpackCSV(tmpPath); err != nil {
			os.Remove(tmpPath)
			return "", 0, err
		}
	}

	sum, size, err = fileChecksum(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return "", 0, err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return sum, size, nil
}

// isZip sniffs the local zip magic at the start of the file.
func isZip(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("opening download: %w", err)
	}
	defer f.Close()

	magic := make([]byte, 4)
	n, err := f.Read(magic)
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("sniffing download: %w", err)
	}
	return n == 4 && bytes.Equal(magic, []byte("PK\x03\x04")), nil
}

// unpackCSV replaces a downloaded zip archive in place with its single CSV
// member. Archives with zero or multiple CSV members are rejected: this
// pipeline ingests one table per dataset.
func unpackCSV(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}

	var csvFile *zip.File
	for _, f := range zr.File {
		if strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			if csvFile != nil {
				zr.Close()
				return fmt.Errorf("zip contains multiple CSV members (%s, %s)", csvFile.Name, f.Name)
			}
			csvFile = f
		}
	}
	if csvFile == nil {
		zr.Close()
		return fmt.Errorf("zip contains no CSV member")
	}

	rc, err := csvFile.Open()
	if err != nil {
		zr.Close()
		return fmt.Errorf("opening zip member %s: %w", csvFile.Name, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	zr.Close()
	if err != nil {
		return fmt.Errorf("reading zip member %s: %w", csvFile.Name, err)
	}

	return os.WriteFile(path, data, 0o644)
}

// fileChecksum returns the hex SHA-256 and size of the file at path.
func fileChecksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing download: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// writeMetadata writes a Dataset record to a YAML file.
func writeMetadata(d *types.Dataset, path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// readMetadata reads a Dataset record from a YAML file.
func readMetadata(path string) (*types.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d types.Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
