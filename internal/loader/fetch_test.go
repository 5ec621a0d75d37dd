package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"deliverypulse/internal/config"
	"deliverypulse/internal/infrastructure"
	"deliverypulse/internal/shared/testutil"
)

func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func datasetArchive(t *testing.T) []byte {
	entries := map[string]string{
		"../../escape.csv":           "x\n1\n",
		"brazilian-ecommerce/README": "not a csv",
	}
	for _, name := range config.RequiredCSVs {
		entries["brazilian-ecommerce/"+name] = testutil.OlistFixtureContent(name)
	}
	return buildArchive(t, entries)
}

func TestHTTPSourceFetch(t *testing.T) {
	archive := datasetArchive(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(archive)
	}))
	defer server.Close()

	dir := t.TempDir()
	src := NewHTTPSource(server.URL, server.Client())

	require.NoError(t, src.Fetch(context.Background(), dir, []string{config.OrdersFile, config.GeolocationFile}))

	assert.FileExists(t, filepath.Join(dir, config.OrdersFile))
	assert.FileExists(t, filepath.Join(dir, config.GeolocationFile))
	assert.NoFileExists(t, filepath.Join(dir, config.CustomersFile))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(filepath.Dir(dir)), "escape.csv"))

	// Temp archive and partial files are cleaned up
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	content, err := os.ReadFile(filepath.Join(dir, config.OrdersFile))
	require.NoError(t, err)
	assert.Equal(t, testutil.OlistFixtureContent(config.OrdersFile), string(content))
}

func TestHTTPSourceFetch_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	err := NewHTTPSource(server.URL, nil).Fetch(context.Background(), t.TempDir(), config.RequiredCSVs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, *params.Key)
	if out := args.Get(0); out != nil {
		return out.(*s3.GetObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestS3SourceFetch(t *testing.T) {
	client := new(MockS3Client)
	src := &S3Source{Bucket: "datasets", Prefix: "/olist/", Client: client}

	assert.Equal(t, "olist/"+config.OrdersFile, src.Key(config.OrdersFile))

	client.On("GetObject", mock.Anything, "olist/"+config.OrdersFile).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("order_id\no1\n"))}, nil).Once()
	client.On("GetObject", mock.Anything, "olist/"+config.ProductsFile).
		Return(nil, assert.AnError).Once()

	dir := t.TempDir()
	err := src.Fetch(context.Background(), dir, []string{config.OrdersFile, config.ProductsFile})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)

	assert.FileExists(t, filepath.Join(dir, config.OrdersFile))
	assert.NoFileExists(t, filepath.Join(dir, config.ProductsFile))
	client.AssertExpectations(t)
}

type stubSource struct {
	calls [][]string
	err   error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(_ context.Context, destDir string, files []string) error {
	s.calls = append(s.calls, files)
	if s.err != nil {
		return s.err
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(destDir, f), []byte(testutil.OlistFixtureContent(f)), 0644); err != nil {
			return err
		}
	}
	return nil
}

func TestFetcherEnsureFiles(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	t.Run("fetches only missing files", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteOlistFixture(t, dir, config.OrdersFile)

		src := &stubSource{}
		f := NewFetcher(src, logger, infrastructure.NewNoopBusinessMetrics())

		fetched, err := f.EnsureFiles(context.Background(), dir)
		require.NoError(t, err)
		assert.Equal(t, []string{config.OrdersFile}, fetched)
		require.Len(t, src.calls, 1)
		assert.Equal(t, []string{config.OrdersFile}, src.calls[0])

		// Second call is a no-op
		fetched, err = f.EnsureFiles(context.Background(), dir)
		require.NoError(t, err)
		assert.Empty(t, fetched)
		assert.Len(t, src.calls, 1)
	})

	t.Run("no source configured", func(t *testing.T) {
		dir := t.TempDir()
		f := NewFetcher(nil, logger, nil)

		_, err := f.EnsureFiles(context.Background(), dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoSource)
		assert.ErrorIs(t, err, ErrMissingFiles)
	})

	t.Run("source failure", func(t *testing.T) {
		f := NewFetcher(&stubSource{err: assert.AnError}, logger, nil)

		_, err := f.EnsureFiles(context.Background(), t.TempDir())
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("source that fetches nothing", func(t *testing.T) {
		f := NewFetcher(noopSource{}, logger, nil)

		_, err := f.EnsureFiles(context.Background(), t.TempDir())
		assert.ErrorIs(t, err, ErrMissingFiles)
	})
}

type noopSource struct{}

func (noopSource) Name() string { return "noop" }
func (noopSource) Fetch(context.Context, string, []string) error { return nil }

func TestNewSourceFromConfig(t *testing.T) {
	src, err := NewSourceFromConfig(context.Background(), config.SourceConfig{})
	require.NoError(t, err)
	assert.Nil(t, src)

	src, err = NewSourceFromConfig(context.Background(), config.SourceConfig{URL: "https://example.org/olist.zip"})
	require.NoError(t, err)
	assert.Equal(t, "http", src.Name())
}
