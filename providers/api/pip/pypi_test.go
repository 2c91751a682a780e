package pip

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"

	"github.com/packastack/packastack-core/providers/fetchers"
)

func TestPyPiNewClientMethod(t *testing.T) {
	pypi := NewPyPiClient(nil, nil)
	if pypi.httpClient != http.DefaultClient {
		t.Errorf("default httpClient is not set on NewPyPiClient instance")
	}
	if pypi.baseUrl != *pyPiBaseURL {
		t.Errorf("default baseURL is not set on NewPyPiClient instance")
	}
	if pypi.UserAgent != fetchers.DefaultUserAgent {
		t.Errorf("default user agent is not set on NewPyPiClient instance")
	}

	expClient := &http.Client{}
	expUrl, err := url.Parse("http://example.com")
	if err != nil {
		t.Fatalf("unexpected test url parse error: %v", err)
	}
	pypi = NewPyPiClient(expClient, expUrl)
	if pypi.httpClient != expClient {
		t.Errorf("httpClient is not set on NewPyPiClient instance")
	}
	if pypi.baseUrl != *expUrl {
		t.Errorf("baseURL is not set on NewPyPiClient instance")
	}
}

func TestPyPiClientPackageMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		expectedPath := "/pypi/oslo.config/json"
		if r.URL.Path != expectedPath {
			t.Errorf("expected url call is %q, got %q", expectedPath, r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != fetchers.DefaultUserAgent {
			t.Errorf("expected user agent %q, got %q", fetchers.DefaultUserAgent, ua)
		}
		_, _ = rw.Write([]byte(sampleProjectJson))
	}))
	defer srv.Close()

	expectedObj := PipPackage{}
	err := json.Unmarshal([]byte(sampleProjectJson), &expectedObj)
	if err != nil {
		t.Fatal("testing sampleproject JSON is invalid or structs are broken")
	}

	URL, _ := url.Parse(srv.URL)
	pypi := NewPyPiClient(srv.Client(), URL)
	pkg, _, err := pypi.Package(context.Background(), "oslo.config")
	if err != nil {
		t.Fatalf("unexpected Package() error: %v", err)
	}

	if !reflect.DeepEqual(*pkg, expectedObj) {
		t.Error("expected and actual results are not equal")
	}

	// releases keep the order of the JSON document
	var versions []string
	for _, v := range pkg.Releases {
		versions = append(versions, v.Version)
	}
	expVersions := []string{"9.0.0", "10.0.0", "10.1.0.0b1", "9.9.0", "10.1.0.post1", "11.0.0", "10.0.1"}
	if !reflect.DeepEqual(versions, expVersions) {
		t.Errorf("expected versions %v, got %v", expVersions, versions)
	}
}

func TestPyPiClientReleaseMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		expectedPath := "/pypi/oslo.config/10.0.0/json"
		if r.URL.Path != expectedPath {
			t.Errorf("expected url call is %q, got %q", expectedPath, r.URL.Path)
		}
		_, _ = rw.Write([]byte(sampleProjectJson))
	}))
	defer srv.Close()

	URL, _ := url.Parse(srv.URL)
	pypi := NewPyPiClient(srv.Client(), URL)
	pkg, resp, err := pypi.Release(context.Background(), "oslo.config", "10.0.0")
	if err != nil {
		t.Fatalf("unexpected Release() error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 response, got %d", resp.StatusCode)
	}
	if pkg.Info.Name != "oslo.config" {
		t.Errorf("expected package name oslo.config, got %q", pkg.Info.Name)
	}
}

func TestPyPiClientRelease_Errors(t *testing.T) {
	notFoundSrv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusNotFound)
		_, _ = rw.Write([]byte("{}"))
	}))
	defer notFoundSrv.Close()
	incorrectSchemaSrv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte("hello_world!"))
	}))
	defer incorrectSchemaSrv.Close()

	cases := []struct {
		Name       string
		Server     *httptest.Server
		Ctx        context.Context
		PkgName    string
		Version    string
		NetworkErr bool
	}{
		{"empty name", notFoundSrv, context.Background(), "", "", false},
		{"nil context", notFoundSrv, nil, "package_name", "version", false},
		{"not found", notFoundSrv, context.Background(), "package_name", "version", true},
		{"incorrect schema", incorrectSchemaSrv, context.Background(), "package_name", "version", false},
	}

	for _, testCase := range cases {
		t.Run(testCase.Name, func(t *testing.T) {
			URL, _ := url.Parse(testCase.Server.URL)
			pypi := NewPyPiClient(testCase.Server.Client(), URL)

			pkg, _, err := pypi.Release(testCase.Ctx, testCase.PkgName, testCase.Version)
			if err == nil {
				t.Error("expected error, got none")
			}
			if pkg != nil {
				t.Error("expected nil PipPackage on incorrect request")
			}
			if got := errors.Is(err, fetchers.ErrNetwork); got != testCase.NetworkErr {
				t.Errorf("expected network error kind %v, got %v (%v)", testCase.NetworkErr, got, err)
			}
		})
	}
}

// clientFunc adapts a function to the Client interface.
type clientFunc func(ctx context.Context, name, version string) (*PipPackage, *http.Response, error)

func (f clientFunc) Release(ctx context.Context, name, version string) (*PipPackage, *http.Response, error) {
	return f(ctx, name, version)
}

func TestLatestRelease(t *testing.T) {
	var pkg PipPackage
	if err := json.Unmarshal([]byte(sampleProjectJson), &pkg); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}

	c := clientFunc(func(ctx context.Context, name, version string) (*PipPackage, *http.Response, error) {
		return &pkg, nil, nil
	})

	// 11.0.0 is yanked, 10.1.0.post1 has no Debian rendition
	latest, err := LatestRelease(context.Background(), c, "oslo.config")
	if err != nil {
		t.Fatalf("unexpected LatestRelease() error: %v", err)
	}

	expected := &UpstreamRelease{
		Name:          "oslo.config",
		Version:       "10.1.0.0b1",
		DebianVersion: "10.1.0~b1",
		URL:           "https://files.pythonhosted.org/packages/oslo.config-10.1.0.0b1.tar.gz",
		Filename:      "oslo.config-10.1.0.0b1.tar.gz",
	}
	if !reflect.DeepEqual(latest, expected) {
		t.Errorf("expected %+v, got %+v", expected, latest)
	}
}

func TestLatestRelease_Errors(t *testing.T) {
	boom := errors.New("boom")
	failing := clientFunc(func(ctx context.Context, name, version string) (*PipPackage, *http.Response, error) {
		return nil, nil, boom
	})
	if _, err := LatestRelease(context.Background(), failing, "oslo.config"); !errors.Is(err, boom) {
		t.Errorf("expected client error, got %v", err)
	}

	empty := clientFunc(func(ctx context.Context, name, version string) (*PipPackage, *http.Response, error) {
		return &PipPackage{Releases: PipPackageVersions{{Version: "1.0"}}}, nil, nil
	})
	if _, err := LatestRelease(context.Background(), empty, "oslo.config"); !errors.Is(err, ErrNoReleases) {
		t.Errorf("expected ErrNoReleases, got %v", err)
	}
}

var sampleProjectJson = `{
	"info":{
	   "author":"OpenStack",
	   "home_page":"https://docs.openstack.org/oslo.config/latest/",
	   "license":"Apache-2.0",
	   "name":"oslo.config",
	   "package_url":"https://pypi.org/project/oslo.config/",
	   "project_url":"https://pypi.org/project/oslo.config/",
	   "release_url":"https://pypi.org/project/oslo.config/10.0.0/",
	   "requires_python":">=3.9",
	   "summary":"Oslo Configuration API",
	   "version":"10.0.0",
	   "yanked":false
	},
	"last_serial":27512954,
	"releases":{
	   "9.0.0":[
		  {
			 "filename":"oslo.config-9.0.0.tar.gz",
			 "digests":{"md5":"a","sha256":"b"},
			 "has_sig":false,
			 "packagetype":"sdist",
			 "python_version":"source",
			 "size":1000,
			 "upload_time_iso_8601":"2022-08-30T10:00:00.000000Z",
			 "url":"https://files.pythonhosted.org/packages/oslo.config-9.0.0.tar.gz",
			 "yanked":false,
			 "yanked_reason":null
		  }
	   ],
	   "10.0.0":[
		  {
			 "filename":"oslo.config-10.0.0-py3-none-any.whl",
			 "packagetype":"bdist_wheel",
			 "python_version":"py3",
			 "upload_time_iso_8601":"2025-02-20T10:00:00.000000Z",
			 "url":"https://files.pythonhosted.org/packages/oslo.config-10.0.0-py3-none-any.whl",
			 "yanked":false
		  }
	   ],
	   "10.1.0.0b1":[
		  {
			 "filename":"oslo.config-10.1.0.0b1.tar.gz",
			 "packagetype":"sdist",
			 "python_version":"source",
			 "upload_time_iso_8601":"2025-06-01T10:00:00.000000Z",
			 "url":"https://files.pythonhosted.org/packages/oslo.config-10.1.0.0b1.tar.gz",
			 "yanked":false
		  }
	   ],
	   "9.9.0":[],
	   "10.1.0.post1":[
		  {
			 "filename":"oslo.config-10.1.0.post1.tar.gz",
			 "packagetype":"sdist",
			 "upload_time_iso_8601":"2025-07-01T10:00:00.000000Z",
			 "url":"https://files.pythonhosted.org/packages/oslo.config-10.1.0.post1.tar.gz",
			 "yanked":false
		  }
	   ],
	   "11.0.0":[
		  {
			 "filename":"oslo.config-11.0.0.tar.gz",
			 "packagetype":"sdist",
			 "upload_time_iso_8601":"2025-08-01T10:00:00.000000Z",
			 "url":"https://files.pythonhosted.org/packages/oslo.config-11.0.0.tar.gz",
			 "yanked":true,
			 "yanked_reason":"broken release"
		  }
	   ],
	   "10.0.1":[
		  {
			 "filename":"oslo.config-10.0.1.tar.gz",
			 "packagetype":"sdist",
			 "upload_time_iso_8601":"2025-03-01T10:00:00.000000Z",
			 "url":"https://files.pythonhosted.org/packages/oslo.config-10.0.1.tar.gz",
			 "yanked":false
		  }
	   ]
	},
	"urls":[]
}`
