package loader

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"deliverypulse/internal/config"
	"deliverypulse/internal/infrastructure"
)

// ErrNoSource is returned when files are missing and no remote source is configured
var ErrNoSource = errors.New("no remote data source configured")

// Source downloads named dataset files into a directory
type Source interface {
	Name() string
	Fetch(ctx context.Context, destDir string, files []string) error
}

// Fetcher fills gaps in the raw directory from a remote Source
type Fetcher struct {
	source  Source
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// NewFetcher creates a fetcher. A nil source makes EnsureFiles report missing files only.
func NewFetcher(source Source, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Fetcher {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Fetcher{
		source:  source,
		logger:  logger.With(slog.String("component", "fetcher")),
		metrics: metrics,
	}
}

// NewSourceFromConfig picks the configured remote source. S3 wins over URL.
func NewSourceFromConfig(ctx context.Context, cfg config.SourceConfig) (Source, error) {
	switch {
	case cfg.S3Bucket != "":
		return NewS3Source(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
	case cfg.URL != "":
		return NewHTTPSource(cfg.URL, &http.Client{Timeout: cfg.FetchTimeout}), nil
	default:
		return nil, nil
	}
}

// EnsureFiles downloads whatever required files are absent from rawDir.
// Files already present are left alone. Returns the names that were fetched.
func (f *Fetcher) EnsureFiles(ctx context.Context, rawDir string) ([]string, error) {
	missing := CheckRequired(rawDir)
	if len(missing) == 0 {
		return nil, nil
	}
	if f.source == nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSource, &MissingFilesError{Dir: rawDir, Files: missing})
	}

	if err := os.MkdirAll(rawDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create raw directory: %w", err)
	}

	f.logger.InfoContext(ctx, "Fetching missing dataset files",
		slog.String("source", f.source.Name()),
		slog.Any("files", missing))

	err := f.source.Fetch(ctx, rawDir, missing)
	if f.metrics != nil {
		f.metrics.DatasetFetches.Add(ctx, 1)
	}
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("fetch from %s failed: %w", f.source.Name(), err)
	}

	if still := CheckRequired(rawDir); len(still) > 0 {
		return nil, &MissingFilesError{Dir: rawDir, Files: still}
	}

	f.logger.InfoContext(ctx, "Dataset files fetched", slog.Int("count", len(missing)))
	return missing, nil
}

// HTTPSource downloads a zip archive of the dataset and extracts the wanted CSVs
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource creates an archive source
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{URL: url, Client: client}
}

func (s *HTTPSource) Name() string { return "http" }

// Fetch downloads the archive to a temp file, then extracts only the requested names
func (s *HTTPSource) Fetch(ctx context.Context, destDir string, files []string) error {
	tmp, err := os.CreateTemp(destDir, "dataset-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.download(ctx, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return extractZip(tmp.Name(), destDir, files)
}

func (s *HTTPSource) download(ctx context.Context, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return fmt.Errorf("invalid source url: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	_, err = io.Copy(out, resp.Body)
	return err
}

// extractZip writes archive members whose base name is wanted into dest.
// Directory structure inside the archive is ignored, so entries can never escape dest.
func extractZip(src, dest string, wanted []string) error {
	r, err := zip.OpenReader(src)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	want := make(map[string]bool, len(wanted))
	for _, name := range wanted {
		want[name] = true
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
		if !want[name] {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
		}
		err = writeFileAtomic(filepath.Join(dest, name), rc)
		rc.Close()
		if err != nil {
			return err
		}
		delete(want, name)
	}

	return nil
}

// S3API is the subset of the S3 client used here
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source downloads each file from s3://Bucket/Prefix/<file>
type S3Source struct {
	Bucket string
	Prefix string
	Client S3API
}

// NewS3Source builds an S3 client from the default AWS credential chain
func NewS3Source(ctx context.Context, bucket, prefix, region string) (*S3Source, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Source{Bucket: bucket, Prefix: prefix, Client: s3.NewFromConfig(cfg)}, nil
}

func (s *S3Source) Name() string { return "s3" }

// Key returns the object key for a dataset file
func (s *S3Source) Key(file string) string {
	prefix := strings.Trim(s.Prefix, "/")
	if prefix == "" {
		return file
	}
	return prefix + "/" + file
}

// Fetch downloads every requested file
func (s *S3Source) Fetch(ctx context.Context, destDir string, files []string) error {
	for _, file := range files {
		out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(s.Key(file)),
		})
		if err != nil {
			return fmt.Errorf("failed to get s3://%s/%s: %w", s.Bucket, s.Key(file), err)
		}

		err = writeFileAtomic(filepath.Join(destDir, file), out.Body)
		out.Body.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// writeFileAtomic streams r into a temp file beside target and renames it into place
func writeFileAtomic(target string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".partial-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(target), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), target)
}
