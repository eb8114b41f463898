package dataset

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/pigmentlab/pigment/internal/feature"
	"github.com/pigmentlab/pigment/internal/record"
)

const (
	// DataDir holds generated record files.
	DataDir = "data"

	// DatasetDir holds downloaded archives and extracted images.
	DatasetDir = "dataset"

	driveEndpoint = "https://docs.google.com/uc?export=download"
)

// SaveDataRecord is the dataset acquisition boundary. With a Drive file ID
// it downloads a prebuilt record file straight to cfg.OutPath; otherwise it
// downloads and extracts the zip at datasetURL and builds records from the
// extracted images. Downloads are not resumable: a failed transfer leaves a
// partial file for the operator to remove.
func SaveDataRecord(cfg BuildConfig, datasetURL, driveFileID string, ext *feature.Extractor, progress func(n int)) error {
	if err := os.MkdirAll(DataDir, 0755); err != nil {
		return err
	}

	if driveFileID != "" {
		// Same overwrite contract as the record writer
		if _, err := os.Stat(cfg.OutPath); err == nil {
			return fmt.Errorf("%w: %s", record.ErrExists, cfg.OutPath)
		}
		return DownloadFromDrive(driveFileID, cfg.OutPath)
	}

	imagesDir, err := DownloadAndExtractZip(datasetURL)
	if err != nil {
		return err
	}
	cfg.ImagesDir = imagesDir
	_, err = Build(cfg, ext, progress)
	return err
}

// DownloadAndExtractZip fetches a zip archive into DatasetDir, extracts it,
// deletes the archive, and returns the extracted directory. The download is
// skipped entirely when that directory already exists.
func DownloadAndExtractZip(rawURL string) (string, error) {
	name := rawURL[strings.LastIndex(rawURL, "/")+1:]
	if !strings.HasSuffix(name, ".zip") {
		return "", fmt.Errorf("dataset: URL does not point at a zip archive: %s", rawURL)
	}
	if err := os.MkdirAll(DatasetDir, 0755); err != nil {
		return "", err
	}
	zipPath := filepath.Join(DatasetDir, name)
	dir := strings.TrimSuffix(zipPath, ".zip")

	if _, err := os.Stat(dir); err != nil {
		if err := downloadFile(rawURL, zipPath, name); err != nil {
			return "", err
		}
		fmt.Fprintln(os.Stderr, "📦 Extracting archive...")
		if err := extractZip(zipPath, DatasetDir); err != nil {
			return "", err
		}
	}

	if _, err := os.Stat(zipPath); err == nil {
		os.Remove(zipPath)
	}
	return dir, nil
}

// DownloadFromDrive fetches a large file from the Drive endpoint. Large
// files trigger a virus-scan warning page; the confirmation token arrives
// as a download_warning cookie and must be echoed back on a second,
// cookie-bound request.
func DownloadFromDrive(fileID, dest string) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client := &http.Client{Jar: jar}

	resp, err := client.Get(driveEndpoint + "&id=" + url.QueryEscape(fileID))
	if err != nil {
		return err
	}

	if token := confirmToken(resp); token != "" {
		// Drain the warning page and re-request with the token; the jar
		// carries the session cookies across.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		resp, err = client.Get(driveEndpoint + "&id=" + url.QueryEscape(fileID) + "&confirm=" + url.QueryEscape(token))
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dataset: drive fetch returned %s", resp.Status)
	}
	return saveResponse(resp, dest, filepath.Base(dest))
}

func confirmToken(resp *http.Response) string {
	for _, c := range resp.Cookies() {
		if strings.HasPrefix(c.Name, "download_warning") {
			return c.Value
		}
	}
	return ""
}

func downloadFile(rawURL, dest, desc string) error {
	resp, err := http.Get(rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dataset: download returned %s for %s", resp.Status, rawURL)
	}
	return saveResponse(resp, dest, desc)
}

// saveResponse streams a response body to disk behind a byte progress bar.
func saveResponse(resp *http.Response, dest, desc string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	bar := progressbar.DefaultBytes(resp.ContentLength, desc)
	if _, err := io.Copy(io.MultiWriter(out, bar), resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("dataset: download interrupted (remove partial file %s before retrying): %w", dest, err)
	}
	return out.Close()
}

// extractZip unpacks an archive under destDir, refusing entries that would
// escape it.
func extractZip(zipPath, destDir string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer zr.Close()

	cleanDest := filepath.Clean(destDir)
	for _, f := range zr.File {
		path := filepath.Join(destDir, f.Name)
		if path != cleanDest && !strings.HasPrefix(path, cleanDest+string(os.PathSeparator)) {
			return fmt.Errorf("dataset: archive entry escapes destination: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}
