package unlocks

import (
	"context"
	"fmt"

	"headshot/internal/infra"
	"headshot/internal/sqlinline"
	"headshot/internal/studio"
)

// PostgresStore keeps unlock sets in the unlock_sets table.
type PostgresStore struct {
	sql infra.SQLExecutor
}

func NewPostgresStore(sql infra.SQLExecutor) *PostgresStore {
	return &PostgresStore{sql: sql}
}

// EnsureSchema creates the unlock_sets table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QEnsureUnlockSchema); err != nil {
		return fmt.Errorf("unlocks: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, owner string) ([]string, error) {
	var raw []byte
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectUnlockSet, owner, studio.StorageKey).Scan(&raw); err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("unlocks: load %s: %w", owner, err)
	}
	return decode(raw)
}

func (s *PostgresStore) Save(ctx context.Context, owner string, ids []string) error {
	raw, err := encode(ids)
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertUnlockSet, owner, studio.StorageKey, raw); err != nil {
		return fmt.Errorf("unlocks: save %s: %w", owner, err)
	}
	return nil
}

var _ studio.UnlockStore = (*PostgresStore)(nil)
