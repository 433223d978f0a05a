package credentials

import (
	"context"
	"fmt"
	"strings"

	"headshot/internal/domain"
)

type tokenSource interface {
	Token(ctx context.Context, provider string) (string, error)
}

// Selector resolves Gemini keys per quality tier. Keys from the environment
// take precedence over stored ones.
type Selector struct {
	baseKey string
	proKey  string
	store   tokenSource
}

// NewSelector builds a selector; store may be nil when no database is configured.
func NewSelector(baseKey, proKey string, store tokenSource) *Selector {
	return &Selector{
		baseKey: strings.TrimSpace(baseKey),
		proKey:  strings.TrimSpace(proKey),
		store:   store,
	}
}

// KeyFor returns the key for tier. The high tier falls back to the base key
// when no dedicated key exists.
func (s *Selector) KeyFor(ctx context.Context, tier domain.QualityTier) (string, error) {
	if tier == domain.TierHigh {
		pro, err := s.lookup(ctx, s.proKey, ProviderGeminiPro)
		if err != nil || pro != "" {
			return pro, err
		}
	}
	return s.lookup(ctx, s.baseKey, ProviderGemini)
}

// EnsureKey succeeds only when a dedicated high tier key is available.
func (s *Selector) EnsureKey(ctx context.Context) error {
	pro, err := s.lookup(ctx, s.proKey, ProviderGeminiPro)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrKeySelectionDeclined, err)
	}
	if pro == "" {
		return domain.ErrKeySelectionDeclined
	}
	return nil
}

func (s *Selector) lookup(ctx context.Context, env, provider string) (string, error) {
	if env != "" {
		return env, nil
	}
	if s.store == nil {
		return "", nil
	}
	token, err := s.store.Token(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("credentials: load %s key: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}
