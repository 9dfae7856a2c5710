package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

var ErrNotLoggedIn = errors.New("not logged in, run `coartistry login` first")

// Session 로그인 결과 (설정 디렉터리에 YAML 로 저장)
type Session struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

// DefaultSessionPath 사용자 설정 디렉터리 아래 session.yaml
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "coartistry", "session.yaml")
}

// LoadSession reads a saved session. A missing file is ErrNotLoggedIn.
func LoadSession(path string) (*Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	if s.Token == "" {
		return nil, ErrNotLoggedIn
	}
	return &s, nil
}

// Save 토큰이 들어 있으므로 소유자만 읽을 수 있게 기록
func (s *Session) Save(path string) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}

// RemoveSession deletes the session file if present.
func RemoveSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
