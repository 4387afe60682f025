package mrci

import (
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
)

func TestSessionCookies(t *testing.T) {
	cookies := []playwright.Cookie{
		{Name: "cf_clearance", Value: "abc123", Domain: ".mrci.com", Path: "/", Expires: 1767225600, Secure: true, HttpOnly: true},
		{Name: "sid", Value: "x", Domain: "www.mrci.com", Path: "/"},
		// cookies picked up from other origins never reach the jar
		{Name: "tracker", Value: "y", Domain: ".example.com", Path: "/"},
	}

	kept := sessionCookies(cookies, "www.mrci.com")
	require.Len(t, kept, 2)

	cf := kept[0]
	require.Equal(t, "cf_clearance", cf.Name)
	require.Equal(t, "abc123", cf.Value)
	require.Equal(t, ".mrci.com", cf.Domain)
	require.True(t, cf.Secure)
	require.True(t, cf.HttpOnly)
	require.Equal(t, 2026, cf.Expires.Year())

	// session cookies carry no expiry
	require.True(t, kept[1].Expires.IsZero())
}

func TestSessionCookiesRoundtripThroughFile(t *testing.T) {
	session := &sessionFile{path: t.TempDir() + "/cookies.json"}

	kept := sessionCookies([]playwright.Cookie{
		{Name: "cf_clearance", Value: "abc123", Domain: ".mrci.com", Path: "/"},
	}, "www.mrci.com")
	require.NoError(t, session.save(kept))

	loaded, err := session.load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "cf_clearance", loaded[0].Name)
	require.Equal(t, "abc123", loaded[0].Value)
}
