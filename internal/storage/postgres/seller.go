package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"dealfinder/internal/domain"
)

type SellerStore struct {
	db *sqlx.DB
}

func NewSellerStore(db *sqlx.DB) *SellerStore {
	return &SellerStore{db: db}
}

// UpsertByName writes a seller keyed by its marketplace name and returns the
// row ID. Sellers carry no stable external ID, the name is the identity.
func (s *SellerStore) UpsertByName(ctx context.Context, seller *domain.Seller) (int64, error) {
	ext := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO sellers (name, url, announce_count, is_pro)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			url = EXCLUDED.url,
			announce_count = EXCLUDED.announce_count,
			is_pro = EXCLUDED.is_pro
		RETURNING id`

	var id int64
	err := ext.QueryRowxContext(ctx, query,
		seller.Name,
		seller.URL,
		seller.AnnounceCount,
		seller.IsPro,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}
