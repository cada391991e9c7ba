package infosource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/hackbot/core/config"
)

const page = `<!doctype html>
<html><head><title>ADHD/ASD</title></head>
<body>
  <p class="adhd-info">Executive function affects planning and time estimation.</p>
  <p class="adhd-hack">Set a timer before starting email.</p>
  <p class="adhd-hack">Write the meeting agenda on paper before the meeting starts.</p>
</body></html>`

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newScraper(url string, limit int) *Scraper {
	return New(coreconfig.InfoSourceConfig{
		BaseURL:   url,
		Selectors: coreconfig.SelectorsConfig{Info: "p.adhd-info", Hack: "p.adhd-hack"},
		Limit:     limit,
	}, nil)
}

func TestFetchGeneralTopic(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, page)

	got, err := newScraper(srv.URL, 1300).Fetch(context.Background(), TopicGeneral, "")
	require.NoError(t, err)
	assert.Equal(t, "Executive function affects planning and time estimation.", got)
}

func TestFetchPicksPassageClosestToHint(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, page)

	got, err := newScraper(srv.URL, 1300).Fetch(context.Background(), TopicHack,
		"You have a team meeting in ten minutes and no agenda.")
	require.NoError(t, err)
	assert.Contains(t, got, "agenda")

	got, err = newScraper(srv.URL, 1300).Fetch(context.Background(), TopicHack, "")
	require.NoError(t, err)
	assert.Equal(t, "Set a timer before starting email.", got)
}

func TestFetchTruncatesToLimit(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, page)

	got, err := newScraper(srv.URL, 9).Fetch(context.Background(), TopicGeneral, "")
	require.NoError(t, err)
	assert.Equal(t, "Executive", got)
}

func TestFetchMissingNode(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `<html><body><p>nothing here</p></body></html>`)

	_, err := newScraper(srv.URL, 1300).Fetch(context.Background(), TopicGeneral, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetrieval))
}

func TestFetchHTTPError(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, "boom")

	_, err := newScraper(srv.URL, 1300).Fetch(context.Background(), TopicHack, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetrieval)
}

func TestFetchReaderMode(t *testing.T) {
	body := `<html><body><nav>menu</nav><article><p>` +
		strings.Repeat("Routines reduce decision fatigue for many people. ", 8) +
		`</p></article></body></html>`
	srv := newTestServer(t, http.StatusOK, body)

	s := New(coreconfig.InfoSourceConfig{
		BaseURL:   srv.URL,
		Selectors: coreconfig.SelectorsConfig{Info: SelectorReader, Hack: "p.adhd-hack"},
		Limit:     2000,
	}, nil)
	got, err := s.Fetch(context.Background(), TopicGeneral, "")
	require.NoError(t, err)
	assert.Contains(t, got, "Routines reduce decision fatigue")
	assert.NotContains(t, got, "menu")
}

func TestFetchUnknownTopic(t *testing.T) {
	_, err := newScraper("http://127.0.0.1:1", 10).Fetch(context.Background(), Topic{"other"}, "")
	assert.ErrorIs(t, err, ErrRetrieval)
}

func TestTopicsEnum(t *testing.T) {
	assert.True(t, Topics.Contains(TopicGeneral))
	assert.True(t, Topics.Contains(TopicHack))
	assert.False(t, Topics.Contains(Topic{"other"}))
}
