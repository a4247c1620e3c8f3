package scrape

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Cookie is a normalized browser cookie ready for injection.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
	Expires  float64 `json:"expires,omitempty"`
}

// rawCookie matches the Cookie-Editor browser-extension export format.
type rawCookie struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain"`
	Path           string   `json:"path"`
	HTTPOnly       bool     `json:"httpOnly"`
	Secure         bool     `json:"secure"`
	SameSite       string   `json:"sameSite"`
	ExpirationDate float64  `json:"expirationDate"`
	Expires        *float64 `json:"expires"`
}

var sameSiteMap = map[string]string{
	"no_restriction": "None",
	"lax":            "Lax",
	"strict":         "Strict",
	"unspecified":    "Lax",
}

// LoadCookies reads a Cookie-Editor export file and normalizes it for
// injection. A missing file is not an error; the scraper then relies on a
// manual login instead.
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	var raw []rawCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse cookie file %s: %w", path, err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: normalizeSameSite(c.SameSite),
		}
		if cookie.Path == "" {
			cookie.Path = "/"
		}
		switch {
		case c.ExpirationDate > 0:
			cookie.Expires = c.ExpirationDate
		case c.Expires != nil && *c.Expires > 0:
			cookie.Expires = *c.Expires
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

func normalizeSameSite(v string) string {
	if mapped, ok := sameSiteMap[strings.ToLower(v)]; ok {
		return mapped
	}
	return "Lax"
}
