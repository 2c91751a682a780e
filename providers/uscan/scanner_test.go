package uscan

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packastack/packastack-core/providers/fetchers"
)

// newListingServer serves body on every path and records the requested paths.
func newListingServer(t *testing.T, status int, body string) (*httptest.Server, *[]string) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func TestScanner_Scan_PicksHighestVersion(t *testing.T) {
	srv, _ := newListingServer(t, http.StatusOK, `
<a href="pkg-1.0.0.tar.gz">1.0.0</a>
<a href="pkg-2.10.0.tar.gz">2.10.0</a>
<a href="pkg-2.9.0.tar.gz">2.9.0</a>
`)
	watch := "version=4\n" + srv.URL + ` pkg-(?P<version>[0-9\.]+)\.tar\.gz` + "\n"

	res, err := NewScanner([]byte(watch)).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)

	latest, ok := res.Latest()
	require.True(t, ok)
	assert.Equal(t, "2.10.0", latest.Version)
	assert.Equal(t, srv.URL+"/pkg-2.10.0.tar.gz", latest.URL)
	assert.Equal(t, "pkg-2.10.0.tar.gz", latest.Filename)
	assert.False(t, res.NeedsUpdate)
	assert.Empty(t, res.PackagedVersion)
}

func TestScanner_Scan_AppliesMangles(t *testing.T) {
	srv, _ := newListingServer(t, http.StatusOK, `<a href="downloads/pkg-2.0rc1.tar.gz">Release</a>`)
	watch := `version=4
opts="uversionmangle=s/rc/~rc/;s/0/~0/,downloadurlmangle=s/\.tar\.gz/.zip/,filenamemangle=s/.+\/pkg-(.*)\.tar\.gz/pkg-$1.orig.tar.gz/" ` +
		srv.URL + ` pkg-(?P<version>[0-9\.]+rc[0-9]+)\.tar\.gz
`

	res, err := NewScanner([]byte(watch)).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	m := res.Matches[0]
	assert.Equal(t, "2.~0~rc1", m.Version)
	assert.Equal(t, srv.URL+"/pkg-2.0rc1.zip", m.URL)
	assert.Equal(t, "pkg-2.0rc1.tar.gz", m.Filename)
}

func TestScanner_Scan_RelativeURLAndFilenameFallback(t *testing.T) {
	srv, paths := newListingServer(t, http.StatusOK, `<a href="files/pkg-1.tar.gz">link</a>`)
	watch := "version=4\nopts=filenamemangle=s/.+// " + srv.URL + `/releases/ files/pkg-(\d+)\.tar\.gz` + "\n"

	res, err := NewScanner([]byte(watch)).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	assert.Equal(t, srv.URL+"/releases/files/pkg-1.tar.gz", res.Matches[0].URL)
	assert.Equal(t, "pkg-1.tar.gz", res.Matches[0].Filename)
	assert.Equal(t, []string{"/releases/"}, *paths)
}

func TestScanner_Scan_AbsoluteURL(t *testing.T) {
	srv, _ := newListingServer(t, http.StatusOK, `<a href="https://downloads.example/pkg-2.tar.gz">link</a>`)
	watch := "version=4\n" + srv.URL + ` https://downloads\.example/pkg-(?P<version>\d+)\.tar\.gz` + "\n"

	res, err := NewScanner([]byte(watch)).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "https://downloads.example/pkg-2.tar.gz", res.Matches[0].URL)
}

func TestScanner_Scan_PlainListing(t *testing.T) {
	srv, _ := newListingServer(t, http.StatusOK, "pkg-1.tar.gz\npkg-3.tar.gz\npkg-1.tar.gz\n")
	watch := "version=4\n" + srv.URL + `/ pkg-(\d+)\.tar\.gz` + "\n"

	res, err := NewScanner([]byte(watch)).Scan(context.Background())
	require.NoError(t, err)

	// duplicates are dropped
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "1", res.Matches[0].Version)
	assert.Equal(t, "3", res.Matches[1].Version)
}

func TestScanner_Scan_Signatures(t *testing.T) {
	srv, _ := newListingServer(t, http.StatusOK, `
<a href="pkg-1.0.tar.gz">1.0</a>
<a href="pkg-1.0.tar.gz.asc">1.0 signature</a>
<a href="pkg-2.0.tar.gz">2.0</a>
`)
	watch := "version=4\nopts=pgpsigurlmangle=s/$/.asc/ " + srv.URL + `/pkg-(\d+\.\d+)\.tar\.gz` + "\n"

	res, err := NewScanner([]byte(watch)).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)

	assert.Equal(t, srv.URL+"/pkg-1.0.tar.gz.asc", res.Matches[0].SignatureURL)
	assert.Empty(t, res.Matches[1].SignatureURL)
	assert.Equal(t, []string{srv.URL + "/pkg-1.0.tar.gz.asc"}, res.Signatures())
}

func TestScanner_Scan_NeedsUpdate(t *testing.T) {
	srv, _ := newListingServer(t, http.StatusOK, `<a href="pkg-1.0.tar.gz"></a><a href="pkg-2.0.tar.gz"></a>`)
	watch := []byte("version=4\n" + srv.URL + `/ pkg-(\d+\.\d+)\.tar\.gz` + "\n")

	tests := []struct {
		changelog string
		want      bool
	}{
		{changelog: "pkg (1.0-0ubuntu1) plucky; urgency=medium\n", want: true},
		{changelog: "pkg (2.0-0ubuntu1) plucky; urgency=medium\n", want: false},
		{changelog: "pkg (1:1.0-0ubuntu1) plucky; urgency=medium\n", want: false},
		{changelog: "not a changelog", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.changelog, func(t *testing.T) {
			res, err := NewScanner(watch, WithChangelog([]byte(tt.changelog))).Scan(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.NeedsUpdate)
		})
	}
}

func TestScanner_Scan_MissingVersionGroupIsLazy(t *testing.T) {
	srv, _ := newListingServer(t, http.StatusOK, "pkg-1.tar.gz")
	sc := NewScanner([]byte("version=4\n" + srv.URL + ` pkg-[0-9]+\.tar\.gz` + "\n"))

	_, err := sc.Entries()
	require.NoError(t, err)

	_, err = sc.Scan(context.Background())
	assert.ErrorIs(t, err, ErrMalformedWatchFile)
}

func TestScanner_Scan_NetworkError(t *testing.T) {
	srv, _ := newListingServer(t, http.StatusServiceUnavailable, "")
	sc := NewScanner([]byte("version=4\n" + srv.URL + ` pkg-(\d+)\.tar\.gz` + "\n"))

	_, err := sc.Scan(context.Background())
	assert.ErrorIs(t, err, fetchers.ErrNetwork)
	assert.NotErrorIs(t, err, ErrMalformedWatchFile)
}

func TestScanner_Scan_Canceled(t *testing.T) {
	srv, paths := newListingServer(t, http.StatusOK, "pkg-1.tar.gz")
	sc := NewScanner([]byte("version=4\n" + srv.URL + ` pkg-(\d+)\.tar\.gz` + "\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sc.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *paths)
}

func TestScanner_Entries_Cached(t *testing.T) {
	sc := NewScanner([]byte("version=4\nhttps://example.com/ pkg-(\\d+)\\.tar\\.gz\n"))

	first, err := sc.Entries()
	require.NoError(t, err)
	second, err := sc.Entries()
	require.NoError(t, err)
	assert.Same(t, &first[0], &second[0])
}

func TestNewScannerFromDir(t *testing.T) {
	srv, paths := newListingServer(t, http.StatusOK, `<a href="nova-31.0.0.tar.gz"></a>`)

	dir := filepath.Join(t.TempDir(), "debian")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, WatchFileName),
		[]byte("version=4\n"+srv.URL+`/@PACKAGE@/ @PACKAGE@-(\d+\.\d+\.\d+)\.tar\.gz`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ChangelogFileName),
		[]byte("nova (3:30.0.0-0ubuntu1) plucky; urgency=medium\n"), 0o644))

	sc, err := NewScannerFromDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "3:30.0.0-0ubuntu1", sc.PackagedVersion())

	res, err := sc.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/nova/"}, *paths)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "31.0.0", res.Matches[0].Version)
	// the epoch keeps the packaged version ahead
	assert.False(t, res.NeedsUpdate)
}

func TestNewScannerFromDir_DefaultPackageName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debian")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, WatchFileName),
		[]byte("version=4\nhttps://example.com/@PACKAGE@/ x-(\\d+)\n"), 0o644))

	sc, err := NewScannerFromDir(context.Background(), dir)
	require.NoError(t, err)

	entries, err := sc.Entries()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/debian/", entries[0].URL)
	assert.Empty(t, sc.PackagedVersion())

	sc, err = NewScannerFromDir(context.Background(), dir, WithPackageName("glance"))
	require.NoError(t, err)
	entries, err = sc.Entries()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/glance/", entries[0].URL)
}

func TestNewScannerFromDir_MissingWatch(t *testing.T) {
	_, err := NewScannerFromDir(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrMalformedWatchFile)
}

func TestResult_LatestEmpty(t *testing.T) {
	_, ok := (&Result{}).Latest()
	assert.False(t, ok)
	assert.Empty(t, (&Result{}).Signatures())
}
