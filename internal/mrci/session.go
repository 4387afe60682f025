package mrci

import (
	"encoding/json"
	"net/http"
	"os"
)

// sessionFile persists cookies as JSON inside the profile directory. It is
// the moral equivalent of a browser profile: whatever cf_clearance cookie a
// successful run earned is reused by the next one.
type sessionFile struct {
	path string
}

func (s *sessionFile) load() ([]*http.Cookie, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cookies []*http.Cookie
	err = json.Unmarshal(raw, &cookies)
	if err != nil {
		return nil, err
	}
	return cookies, nil
}

func (s *sessionFile) save(cookies []*http.Cookie) error {
	raw, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}
