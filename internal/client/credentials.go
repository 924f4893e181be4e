package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hitoshi/roomfinder/internal/authstate"
)

const credentialsFile = "credentials.json"

// CredentialStore はサインイン中のセッションの保存先。
type CredentialStore interface {
	// Load は保存済みのセッションを返す。保存されていない場合は nil, nil。
	Load() (*authstate.Session, error)
	Save(sess *authstate.Session) error
	Delete() error
}

// FileStore はセッションをJSONファイルに保存するCredentialStore。
type FileStore struct {
	path string
}

var _ CredentialStore = (*FileStore)(nil)

// DefaultHome はROOMCTL_HOME、未設定の場合は ~/.roomctl を返す。
func DefaultHome() (string, error) {
	if dir := os.Getenv("ROOMCTL_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".roomctl"), nil
}

// NewFileStore はdir配下にcredentials.jsonを置くFileStoreを生成する。
// ディレクトリは所有者のみアクセス可能な権限で作成する。
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &FileStore{path: filepath.Join(dir, credentialsFile)}, nil
}

// Path は資格情報ファイルのパスを返す。
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (*authstate.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var sess authstate.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return &sess, nil
}

func (s *FileStore) Save(sess *authstate.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	// 一時ファイルに書いてから置き換え、書き込み途中のファイルを読ませない
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete credentials file: %w", err)
	}
	return nil
}
