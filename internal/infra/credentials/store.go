package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"headshot/internal/infra"
	"headshot/internal/sqlinline"
)

const (
	// ProviderGemini holds the key used for previews and validation.
	ProviderGemini = "gemini"
	// ProviderGeminiPro holds the key that unlocks the high quality tier.
	ProviderGeminiPro = "gemini_pro"
)

// Store keeps provider API keys in the provider_credentials table.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the credentials table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QEnsureCredentialSchema); err != nil {
		return fmt.Errorf("credentials: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGemini)
}

func (s *Store) GeminiProAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGeminiPro)
}

// Token returns the stored key for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectCredential, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetGeminiAPIKey(ctx context.Context, key string) error {
	return s.SetToken(ctx, ProviderGemini, key)
}

func (s *Store) SetGeminiProAPIKey(ctx context.Context, key string) error {
	return s.SetToken(ctx, ProviderGeminiPro, key)
}

// SetToken stores key for a known provider.
func (s *Store) SetToken(ctx context.Context, provider, key string) error {
	if !KnownProvider(provider) {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New(provider + " api key is required")
	}
	return s.upsert(ctx, provider, key, map[string]any{"source": "cli"})
}

// Revoke removes the stored key for provider.
func (s *Store) Revoke(ctx context.Context, provider string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteCredential, provider)
	return err
}

// KnownProvider reports whether provider names a supported key slot.
func KnownProvider(provider string) bool {
	return provider == ProviderGemini || provider == ProviderGeminiPro
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertCredential, provider, token, raw)
	return err
}
