package internal

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/ogero/stremio-autoarabic/pkg/archive"
	"github.com/ogero/stremio-autoarabic/pkg/srt"
	"github.com/ogero/stremio-autoarabic/pkg/stremio"
	"github.com/ogero/stremio-autoarabic/pkg/translate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHost = "http://addon.test"

func newTestServer(t *testing.T, provider *fakeProvider, engine translate.Engine, testSubtitle bool) *httptest.Server {
	t.Helper()
	svc := NewAddonService(NewSubtitleFetcher(provider), translate.New(engine, translate.Options{}), nil, nil, nil, false)
	app, err := NewApp(svc, nil, testHost, testSubtitle)
	require.NoError(t, err)

	srv := httptest.NewServer(app.Router())
	t.Cleanup(srv.Close)
	return srv
}

func englishProvider() *fakeProvider {
	return &fakeProvider{name: "fake", files: []*archive.File{fixtureFile("english.srt", englishFixture)}}
}

// noRedirectClient surfaces redirect responses instead of following them.
var noRedirectClient = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	res, err := noRedirectClient.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, body
}

func TestManifestHandler(t *testing.T) {
	srv := newTestServer(t, englishProvider(), prefixEngine("ع "), false)

	res, first := get(t, srv.URL+"/manifest.json")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))

	_, second := get(t, srv.URL+"/manifest.json")
	assert.Equal(t, first, second)

	var m stremio.Manifest
	require.NoError(t, json.Unmarshal(first, &m))
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, AddonVersion, m.Version)
	assert.Equal(t, AddonName, m.Name)
	assert.Equal(t, []string{"subtitles"}, m.Resources)
	assert.Equal(t, []string{"movie", "series"}, m.Types)
	assert.Equal(t, []string{"tt"}, m.IDPrefixes)
	assert.NotNil(t, m.Catalogs)
	assert.True(t, m.BehaviorHints.Configurable)
	assert.Equal(t, testHost+"/configure", m.BehaviorHints.ConfigurationLocation)
}

func TestManifestHandler_Configured(t *testing.T) {
	srv := newTestServer(t, englishProvider(), prefixEngine("ع "), false)
	cfg := stremio.UserConfig{Lang: "tr", Android: false}.Encode()

	res, body := get(t, srv.URL+"/"+cfg+"/manifest.json")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var m stremio.Manifest
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, "Auto Translate - Türkçe", m.Name)
	assert.Contains(t, m.Description, "Turkish")
	assert.NotContains(t, m.Description, "Android")
}

func TestSubtitlesHandler(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		path     string
		testSub  bool
		wantIDs  []string
		wantURLs []string
	}{
		{
			name:     "found",
			provider: englishProvider(),
			path:     "/subtitles/movie/tt0133093.json",
			wantIDs:  []string{"auto-ar-tt0133093"},
			wantURLs: []string{testHost + "/subtitle/movie/tt0133093/arabic.srt"},
		},
		{
			name:     "found with extra args",
			provider: englishProvider(),
			path:     "/subtitles/series/tt0944947:1:2/filename=Game.of.Thrones.S01E02.mkv&videoSize=1234.json",
			wantIDs:  []string{"auto-ar-tt0944947"},
			wantURLs: []string{testHost + "/subtitle/series/tt0944947:1:2/arabic.srt"},
		},
		{
			name:     "found escaped id",
			provider: englishProvider(),
			path:     "/subtitles/series/tt0944947%3A1%3A2.json",
			wantIDs:  []string{"auto-ar-tt0944947"},
			wantURLs: []string{testHost + "/subtitle/series/tt0944947:1:2/arabic.srt"},
		},
		{
			name:     "not found",
			provider: &fakeProvider{name: "empty"},
			path:     "/subtitles/movie/tt0133093.json",
			wantIDs:  []string{},
			wantURLs: []string{},
		},
		{
			name:     "provider down",
			provider: &fakeProvider{name: "down", searchErr: errUpstream},
			path:     "/subtitles/movie/tt0133093.json",
			wantIDs:  []string{},
			wantURLs: []string{},
		},
		{
			name:     "test subtitle first",
			provider: englishProvider(),
			path:     "/subtitles/movie/tt0133093.json",
			testSub:  true,
			wantIDs:  []string{"test-connection-ok", "auto-ar-tt0133093"},
			wantURLs: []string{testSubtitle.URL, testHost + "/subtitle/movie/tt0133093/arabic.srt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.provider, prefixEngine("ع "), tt.testSub)

			res, body := get(t, srv.URL+tt.path)
			require.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

			var got stremio.Subtitles
			require.NoError(t, json.Unmarshal(body, &got))
			require.NotNil(t, got.Subtitles)

			ids := make([]string, 0, len(got.Subtitles))
			urls := make([]string, 0, len(got.Subtitles))
			for _, s := range got.Subtitles {
				ids = append(ids, s.ID)
				urls = append(urls, s.URL)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantURLs, urls)
			assert.Zero(t, tt.provider.downloads)
		})
	}
}

func TestSubtitlesHandler_Configured(t *testing.T) {
	srv := newTestServer(t, englishProvider(), prefixEngine("ع "), false)
	cfg := stremio.UserConfig{Lang: "fr", Android: true}.Encode()

	res, body := get(t, srv.URL+"/"+cfg+"/subtitles/movie/tt0133093.json")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got stremio.Subtitles
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Subtitles, 1)
	assert.Equal(t, "auto-fr-tt0133093", got.Subtitles[0].ID)
	assert.Equal(t, "fre", got.Subtitles[0].Lang)
	assert.Equal(t, testHost+"/"+cfg+"/subtitle/movie/tt0133093/translated.srt", got.Subtitles[0].URL)
}

func TestSubtitlesHandler_BadRequest(t *testing.T) {
	srv := newTestServer(t, englishProvider(), prefixEngine("ع "), false)

	for _, path := range []string{
		"/subtitles/channel/tt0133093.json",
		"/subtitles/movie/kitsu:123.json",
		"/subtitle/channel/tt0133093/arabic.srt",
		"/subtitle/movie/nope/arabic.srt",
	} {
		res, _ := get(t, srv.URL+path)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, path)
	}
}

func TestSubtitleHandler(t *testing.T) {
	srv := newTestServer(t, englishProvider(), prefixEngine("ع "), false)

	res, body := get(t, srv.URL+"/subtitle/movie/tt0133093/arabic.srt")
	require.Equal(t, http.StatusOK, res.StatusCode)

	assert.Equal(t, "application/x-subrip", res.Header.Get("Content-Type"))
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, `inline; filename="subtitle.srt"`, res.Header.Get("Content-Disposition"))
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.Empty(t, res.Header.Get("Location"))

	require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}))
	assert.True(t, utf8.Valid(body))

	source, err := srt.Parse(englishFixture)
	require.NoError(t, err)
	got, err := srt.Parse(string(body))
	require.NoError(t, err)

	require.Len(t, got.Cues, len(source.Cues))
	for i := range source.Cues {
		assert.Equal(t, source.Cues[i].Start, got.Cues[i].Start, "cue %d", i+1)
		assert.Equal(t, source.Cues[i].End, got.Cues[i].End, "cue %d", i+1)
	}
	assert.Equal(t, "ع Where did you put the keys of the house?", got.Cues[4].Text)
}

func TestSubtitleHandler_PlainMode(t *testing.T) {
	srv := newTestServer(t, englishProvider(), prefixEngine("ع "), false)
	cfg := stremio.UserConfig{Lang: "ar", Android: false}.Encode()

	res, body := get(t, srv.URL+"/"+cfg+"/subtitle/movie/tt0133093/translated.srt")
	require.Equal(t, http.StatusOK, res.StatusCode)

	assert.Equal(t, "text/plain; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	assert.False(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}))
	assert.True(t, bytes.HasPrefix(body, []byte("1\n00:00:01,000 --> 00:00:03,500\n")))
}

func TestSubtitleHandler_TranslationFailure(t *testing.T) {
	srv := newTestServer(t, englishProvider(), failingEngine(), false)

	res, body := get(t, srv.URL+"/subtitle/movie/tt0133093/arabic.srt")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/x-subrip", res.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "Hello there, how are you doing today?")
}

func TestSubtitleHandler_Placeholder(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		wantText string
	}{
		{"not found", &fakeProvider{name: "empty"}, "No English subtitles found for translation.\nIMDB: tt0133093"},
		{"provider down", &fakeProvider{name: "down", searchErr: errUpstream}, "Subtitle sources not available."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.provider, prefixEngine("ع "), false)

			res, body := get(t, srv.URL+"/subtitle/movie/tt0133093/arabic.srt")
			require.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, "application/x-subrip", res.Header.Get("Content-Type"))
			assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "no-store", res.Header.Get("Cache-Control"))
			assert.Empty(t, res.Header.Get("Location"))

			require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}))
			doc, err := srt.Parse(string(body))
			require.NoError(t, err)
			require.Len(t, doc.Cues, 1)
			assert.Contains(t, doc.Cues[0].Text, tt.wantText)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, englishProvider(), prefixEngine("ع "), false)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/subtitle/movie/tt0133093/arabic.srt", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://web.stremio.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	res, err := noRedirectClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Less(t, res.StatusCode, 300)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, res.Header.Get("Access-Control-Allow-Methods"), http.MethodGet)
}

func TestHealthHandler(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{name: "down", searchErr: errUpstream}, failingEngine(), false)

	for i := 0; i < 3; i++ {
		res, body := get(t, srv.URL+"/health")
		require.Equal(t, http.StatusOK, res.StatusCode)

		var got map[string]string
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "healthy", got["status"])
		assert.Equal(t, AddonVersion, got["version"])
	}
}

func TestConfigureHandler(t *testing.T) {
	srv := newTestServer(t, englishProvider(), prefixEngine("ع "), false)

	res, body := get(t, srv.URL+"/configure?lang=tr&submitted=1")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", res.Header.Get("Content-Type"))

	page := string(body)
	want := stremio.UserConfig{Lang: "tr", Android: false}.Encode()
	assert.Contains(t, page, testHost+"/"+want+"/manifest.json")
	assert.Contains(t, page, "stremio://addon.test/"+want+"/manifest.json")
	assert.Contains(t, page, `value="tr" selected`)
	assert.Contains(t, page, "Türkçe")

	res, _ = get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestWebsocketHandler_Disabled(t *testing.T) {
	srv := newTestServer(t, englishProvider(), prefixEngine("ع "), false)

	res, _ := get(t, srv.URL+"/connection/websocket")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
