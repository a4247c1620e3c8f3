package scrape

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCookieFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCookies(t *testing.T) {
	path := writeCookieFile(t, `[
		{
			"name": "session",
			"value": "abc123",
			"domain": ".app.example.com",
			"path": "/",
			"httpOnly": true,
			"secure": true,
			"sameSite": "no_restriction",
			"expirationDate": 1790000000.5
		},
		{
			"name": "pref",
			"value": "dark",
			"domain": "app.example.com",
			"sameSite": "unspecified"
		}
	]`)

	cookies, err := LoadCookies(path)
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "abc123", cookies[0].Value)
	assert.Equal(t, ".app.example.com", cookies[0].Domain)
	assert.True(t, cookies[0].HTTPOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, "None", cookies[0].SameSite)
	assert.Equal(t, 1790000000.5, cookies[0].Expires)

	// Defaults applied where the export omits fields.
	assert.Equal(t, "/", cookies[1].Path)
	assert.Equal(t, "Lax", cookies[1].SameSite)
	assert.Zero(t, cookies[1].Expires)
}

func TestLoadCookiesMissingFile(t *testing.T) {
	cookies, err := LoadCookies(filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, err, "a missing cookie file means manual login, not a failure")
	assert.Empty(t, cookies)
}

func TestLoadCookiesMalformed(t *testing.T) {
	path := writeCookieFile(t, `{"not":"a list"}`)
	_, err := LoadCookies(path)
	assert.Error(t, err)
}

func TestNormalizeSameSite(t *testing.T) {
	assert.Equal(t, "None", normalizeSameSite("no_restriction"))
	assert.Equal(t, "Strict", normalizeSameSite("STRICT"))
	assert.Equal(t, "Lax", normalizeSameSite("lax"))
	assert.Equal(t, "Lax", normalizeSameSite(""))
	assert.Equal(t, "Lax", normalizeSameSite("weird"))
}

func TestIsLoginURL(t *testing.T) {
	assert.True(t, isLoginURL("https://app.example.com/login"))
	assert.True(t, isLoginURL("https://app.example.com/users/sign_in"))
	assert.True(t, isLoginURL("https://auth.example.com/session"))
	assert.False(t, isLoginURL("https://app.example.com/contacts?page=2"))
}
