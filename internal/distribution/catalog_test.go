package distribution

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogPage = `<html><body><table>
<tr><td><a href="https://cdn.example/Debian.BlockMap">Debian.BlockMap</a></td></tr>
<tr><td><a href="https://cdn.example/debian.appxbundle">TheDebianProject.DebianGNULinux_1.12.2.0_neutral_~_76v4gfsz19hv4.AppxBundle</a></td></tr>
<tr><td><a href="https://cdn.example/second.appx">second.appx</a></td></tr>
</table></body></html>`

func testClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

func TestFirstPackageLink(t *testing.T) {
	link, err := FirstPackageLink(strings.NewReader(catalogPage))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/debian.appxbundle", link)

	_, err = FirstPackageLink(strings.NewReader(`<a href="x">readme.txt</a>`))
	assert.ErrorIs(t, err, ErrNoPackageLink)
}

func TestCatalogLookupPostsProductID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "ProductId", r.PostForm.Get("type"))
		assert.Equal(t, "9msvkqc78pk6", r.PostForm.Get("url"))
		assert.Equal(t, "Retail", r.PostForm.Get("ring"))
		_, _ = w.Write([]byte(catalogPage))
	}))
	defer srv.Close()

	dist, err := Lookup("Debian")
	require.NoError(t, err)

	catalog := NewCatalog(testClient(), srv.URL, "", logrus.New())
	link, err := dist.DownloadURL(context.Background(), catalog)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/debian.appxbundle", link)
}

func TestCatalogLookupRetriesAndEchoes(t *testing.T) {
	var calls, echoes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		echoes.Add(1)
		_, _ = w.Write([]byte(`{"form":{}}`))
	}))
	defer echo.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	catalog := NewCatalog(testClient(), srv.URL, echo.URL, logger)

	_, err := catalog.Lookup(context.Background(), "9abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.EqualValues(t, catalogAttempts, calls.Load())
	assert.EqualValues(t, catalogAttempts, echoes.Load())
}

func TestDownloadURLPrefersDirectURL(t *testing.T) {
	dist, err := Lookup("Ubuntu-22.04")
	require.NoError(t, err)
	link, err := dist.DownloadURL(context.Background(), failingResolver{})
	require.NoError(t, err)
	assert.Equal(t, "https://aka.ms/wslubuntu2204", link)
}

type failingResolver struct{}

func (failingResolver) Lookup(context.Context, string) (string, error) {
	return "", errors.New("must not be called")
}
