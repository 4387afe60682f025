package mrci

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPagePath(t *testing.T) {
	d := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "/ohlc/2024/241220.php", PagePath(d))

	d = time.Date(2010, 1, 4, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "/ohlc/2010/100104.php", PagePath(d))
}

func TestClassifyPage(t *testing.T) {
	require.Equal(t, PageChallenge, ClassifyPage(`<html><title>Just a moment...</title></html>`))
	require.Equal(t, PageData, ClassifyPage(`<html><table class="strat"></table></html>`))
	require.Equal(t, PageBlank, ClassifyPage(`<html><body>holiday</body></html>`))
	require.Equal(t, PageBlank, ClassifyPage(``))
}

func TestSessionFileRoundtrip(t *testing.T) {
	session := &sessionFile{path: filepath.Join(t.TempDir(), "cookies.json")}

	// missing file means a fresh session, not an error
	cookies, err := session.load()
	require.NoError(t, err)
	require.Empty(t, cookies)

	err = session.save([]*http.Cookie{
		{Name: "cf_clearance", Value: "abc123", Path: "/"},
		{Name: "other", Value: "x"},
	})
	require.NoError(t, err)

	cookies, err = session.load()
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	require.Equal(t, "cf_clearance", cookies[0].Name)
	require.Equal(t, "abc123", cookies[0].Value)
}

func TestNewClientCreatesProfileDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile")
	client, err := NewClient(ClientOptions{ProfileDir: dir})
	require.NoError(t, err)
	require.NotNil(t, client)

	// a second client picks the same session back up
	err = client.persistCookies()
	require.NoError(t, err)
	_, err = NewClient(ClientOptions{ProfileDir: dir})
	require.NoError(t, err)
}
