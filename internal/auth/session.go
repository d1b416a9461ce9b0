// Package auth keeps the game session token across runs.
//
// A Session is persisted as JSON in a token file. Restore re-validates a
// stored token against the server before it is reused; Guard tears the
// session down after repeated connection errors.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rickgao/douniu-client/internal/model"
)

// ErrNoSession is returned when no session has been stored.
var ErrNoSession = errors.New("no stored session")

// Session is an authenticated user and its token.
type Session struct {
	Token   string     `json:"token"`
	User    model.User `json:"user"`
	SavedAt time.Time  `json:"saved_at"`
}

// Store persists a Session.
type Store interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// FileStore keeps the session in a JSON file readable only by the owner.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore creates a store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the token file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the stored session. A missing file or empty token yields
// ErrNoSession.
func (f *FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", f.path, err)
	}
	if s.Token == "" {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Save writes the session atomically.
func (f *FileStore) Save(s *Session) error {
	if s == nil || s.Token == "" {
		return fmt.Errorf("save session: token is required")
	}
	s.SavedAt = f.now().UTC()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("save session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the stored session. Clearing an absent session is not an
// error.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Authenticator is the part of the REST client the session flow needs.
type Authenticator interface {
	Login(ctx context.Context, phone, password string) (*model.LoginResponse, error)
	Me(ctx context.Context, token string) (*model.User, error)
	Logout(ctx context.Context, token string) error
}

// Restore loads the stored session and checks it is still accepted by the
// server. A rejected session is cleared.
func Restore(ctx context.Context, store Store, client Authenticator, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Load()
	if err != nil {
		return nil, err
	}

	user, err := client.Me(ctx, s.Token)
	if err != nil {
		logger.Warn("stored session rejected, clearing", "error", err)
		if clearErr := store.Clear(); clearErr != nil {
			logger.Error("failed to clear session", "error", clearErr)
		}
		return nil, fmt.Errorf("restore session: %w", err)
	}

	s.User = *user
	logger.Info("session restored", "user_id", user.ID, "nickname", user.Nickname)
	return s, nil
}

// Login authenticates with phone and password and stores the new session.
func Login(ctx context.Context, store Store, client Authenticator, phone, password string) (*Session, error) {
	resp, err := client.Login(ctx, phone, password)
	if err != nil {
		return nil, err
	}

	s := &Session{Token: resp.Token, User: resp.User}
	if err := store.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Logout invalidates the session on the server and clears it locally. The
// local copy is cleared even when the server call fails.
func Logout(ctx context.Context, store Store, client Authenticator, s *Session) error {
	var serverErr error
	if s != nil && s.Token != "" {
		serverErr = client.Logout(ctx, s.Token)
	}
	return errors.Join(serverErr, store.Clear())
}
