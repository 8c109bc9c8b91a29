package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// FileTokenCache stores the token as JSON in a single file. Writes go to a
// temporary file that is renamed over the old one, so readers never see a
// partial update.
type FileTokenCache struct {
	path string
}

func NewFileTokenCache(path string) *FileTokenCache {
	return &FileTokenCache{path: path}
}

type cachedTokenFile struct {
	AccessToken string    `json:"AccessToken"`
	InstanceURL string    `json:"InstanceUrl"`
	IDURL       string    `json:"IdUrl"`
	Signature   string    `json:"Signature"`
	TokenType   string    `json:"TokenType"`
	IssuedAt    time.Time `json:"IssuedAt"`
	ExpiryTime  time.Time `json:"ExpiryTime"`
	TokenURL    string    `json:"TokenUrl"`
	ClientID    string    `json:"ClientId"`
}

func (c *FileTokenCache) Load() (*models.CachedToken, error) {
	b, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}

	var f cachedTokenFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode token cache: %w", err)
	}

	return &models.CachedToken{
		Value:            f.AccessToken,
		TokenType:        f.TokenType,
		IssuedAt:         f.IssuedAt,
		ExpiresAt:        f.ExpiryTime,
		InstanceEndpoint: f.InstanceURL,
		IDURL:            f.IDURL,
		Signature:        f.Signature,
		TokenURL:         f.TokenURL,
		ClientID:         f.ClientID,
	}, nil
}

func (c *FileTokenCache) Save(tok models.CachedToken) error {
	b, err := json.MarshalIndent(cachedTokenFile{
		AccessToken: tok.Value,
		InstanceURL: tok.InstanceEndpoint,
		IDURL:       tok.IDURL,
		Signature:   tok.Signature,
		TokenType:   tok.TokenType,
		IssuedAt:    tok.IssuedAt,
		ExpiryTime:  tok.ExpiresAt,
		TokenURL:    tok.TokenURL,
		ClientID:    tok.ClientID,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write token cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token cache: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod token cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace token cache: %w", err)
	}
	return nil
}

func (c *FileTokenCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token cache: %w", err)
	}
	return nil
}
