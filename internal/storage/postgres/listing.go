package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"dealfinder/internal/domain"
)

// ErrNotFound is returned when a listing ID has no row.
var ErrNotFound = errors.New("postgres: listing not found")

type ListingStore struct {
	db *sqlx.DB
}

func NewListingStore(db *sqlx.DB) *ListingStore {
	return &ListingStore{db: db}
}

type listingRow struct {
	ID             int64     `db:"id"`
	Name           string    `db:"name"`
	Price          float64   `db:"price"`
	URL            string    `db:"url"`
	Extension      string    `db:"extension"`
	Barcode        *int64    `db:"barcode"`
	City           *string   `db:"city"`
	LastModified   time.Time `db:"last_modified"`
	DealPrice      int       `db:"deal_price"`
	DealPercentage int       `db:"deal_percentage"`
	AverageNote    float64   `db:"average_note"`
	HandDelivery   bool      `db:"hand_delivery"`

	SellerName          string `db:"seller_name"`
	SellerURL           string `db:"seller_url"`
	SellerAnnounceCount int    `db:"seller_announce_count"`
	SellerIsPro         bool   `db:"seller_is_pro"`
}

func (s *ListingStore) GetByID(ctx context.Context, id int64) (*domain.Listing, error) {
	ext := GetExecutor(ctx, s.db)

	query := `
		SELECT
			l.id, l.name, l.price, l.url, l.extension, l.barcode, l.city,
			l.last_modified, l.deal_price, l.deal_percentage, l.average_note,
			l.hand_delivery,
			se.name AS seller_name,
			se.url AS seller_url,
			se.announce_count AS seller_announce_count,
			se.is_pro AS seller_is_pro
		FROM listings l
		INNER JOIN sellers se ON se.id = l.seller_id
		WHERE l.id = $1`

	var row listingRow
	if err := sqlx.GetContext(ctx, ext, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	listing := &domain.Listing{
		ID:           row.ID,
		Name:         row.Name,
		Price:        row.Price,
		URL:          row.URL,
		Extension:    row.Extension,
		Barcode:      row.Barcode,
		City:         row.City,
		LastModified: row.LastModified,
		Seller: domain.Seller{
			Name:          row.SellerName,
			URL:           row.SellerURL,
			AnnounceCount: row.SellerAnnounceCount,
			IsPro:         row.SellerIsPro,
		},
		Shipping:   domain.Shipping{Methods: make(map[string]float64), HandDelivery: row.HandDelivery},
		References: make(map[domain.Source]domain.Reference),
		Review:     domain.Review{Reviewers: make(map[domain.Source]domain.Reviewer), AverageNote: row.AverageNote},
		Deal:       domain.Deal{Price: row.DealPrice, Percentage: row.DealPercentage},
	}

	if err := s.loadReferences(ctx, listing); err != nil {
		return nil, err
	}
	if err := s.loadReviewers(ctx, listing); err != nil {
		return nil, err
	}
	if err := s.loadShipping(ctx, listing); err != nil {
		return nil, err
	}

	return listing, nil
}

func (s *ListingStore) loadReferences(ctx context.Context, listing *domain.Listing) error {
	ext := GetExecutor(ctx, s.db)

	var rows []struct {
		Source string  `db:"source"`
		Price  float64 `db:"price"`
		URL    string  `db:"url"`
	}
	err := sqlx.SelectContext(ctx, ext, &rows,
		"SELECT source, price, url FROM listing_references WHERE listing_id = $1",
		listing.ID,
	)
	if err != nil {
		return err
	}

	for _, r := range rows {
		source := domain.Source(r.Source)
		listing.References[source] = domain.Reference{Source: source, Price: r.Price, URL: r.URL}
	}
	return nil
}

func (s *ListingStore) loadReviewers(ctx context.Context, listing *domain.Listing) error {
	ext := GetExecutor(ctx, s.db)

	var rows []struct {
		Source string  `db:"source"`
		Note   float64 `db:"note"`
		Count  int     `db:"review_count"`
		URL    string  `db:"url"`
	}
	err := sqlx.SelectContext(ctx, ext, &rows,
		"SELECT source, note, review_count, url FROM listing_reviewers WHERE listing_id = $1",
		listing.ID,
	)
	if err != nil {
		return err
	}

	for _, r := range rows {
		source := domain.Source(r.Source)
		listing.Review.Reviewers[source] = domain.Reviewer{Source: source, Note: r.Note, Count: r.Count, URL: r.URL}
	}
	return nil
}

func (s *ListingStore) loadShipping(ctx context.Context, listing *domain.Listing) error {
	ext := GetExecutor(ctx, s.db)

	var rows []struct {
		Method string  `db:"method"`
		Price  float64 `db:"price"`
	}
	err := sqlx.SelectContext(ctx, ext, &rows,
		"SELECT method, price FROM shipping_methods WHERE listing_id = $1",
		listing.ID,
	)
	if err != nil {
		return err
	}

	for _, r := range rows {
		listing.Shipping.Methods[r.Method] = r.Price
	}
	return nil
}

// Insert writes a full listing record with its references, reviewers and
// shipping methods.
func (s *ListingStore) Insert(ctx context.Context, listing *domain.Listing, sellerID int64) error {
	ext := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO listings (
			id, name, price, url, extension, barcode, city, last_modified,
			seller_id, deal_price, deal_percentage, average_note, hand_delivery
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err := ext.ExecContext(ctx, query,
		listing.ID,
		listing.Name,
		listing.Price,
		listing.URL,
		listing.Extension,
		listing.Barcode,
		listing.City,
		listing.LastModified,
		sellerID,
		listing.Deal.Price,
		listing.Deal.Percentage,
		listing.Review.AverageNote,
		listing.Shipping.HandDelivery,
	)
	if err != nil {
		return err
	}

	for _, ref := range listing.References {
		_, err := ext.ExecContext(ctx,
			`INSERT INTO listing_references (listing_id, source, price, url) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (listing_id, source) DO UPDATE SET price = EXCLUDED.price, url = EXCLUDED.url`,
			listing.ID, string(ref.Source), ref.Price, ref.URL,
		)
		if err != nil {
			return err
		}
	}

	for _, reviewer := range listing.Review.Reviewers {
		_, err := ext.ExecContext(ctx,
			`INSERT INTO listing_reviewers (listing_id, source, note, review_count, url) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (listing_id, source) DO UPDATE SET note = EXCLUDED.note, review_count = EXCLUDED.review_count, url = EXCLUDED.url`,
			listing.ID, string(reviewer.Source), reviewer.Note, reviewer.Count, reviewer.URL,
		)
		if err != nil {
			return err
		}
	}

	for method, price := range listing.Shipping.Methods {
		_, err := ext.ExecContext(ctx,
			`INSERT INTO shipping_methods (listing_id, method, price) VALUES ($1, $2, $3)
			 ON CONFLICT (listing_id, method) DO UPDATE SET price = EXCLUDED.price`,
			listing.ID, method, price,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// Update refreshes the mutable columns of a known listing. The enrichment
// sub-records are written once at insert and left alone here.
func (s *ListingStore) Update(ctx context.Context, listing *domain.Listing, sellerID int64) error {
	ext := GetExecutor(ctx, s.db)

	query := `
		UPDATE listings SET
			price = $2,
			last_modified = $3,
			seller_id = $4,
			deal_price = $5,
			deal_percentage = $6,
			average_note = $7
		WHERE id = $1`

	result, err := ext.ExecContext(ctx, query,
		listing.ID,
		listing.Price,
		listing.LastModified,
		sellerID,
		listing.Deal.Price,
		listing.Deal.Percentage,
		listing.Review.AverageNote,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID removes a listing; the sub-record tables cascade.
func (s *ListingStore) DeleteByID(ctx context.Context, id int64) error {
	ext := GetExecutor(ctx, s.db)

	_, err := ext.ExecContext(ctx, "DELETE FROM listings WHERE id = $1", id)
	return err
}

// ExistingLastModified maps each known ID of the given set to its stored
// last-modification time.
func (s *ListingStore) ExistingLastModified(ctx context.Context, ids []int64) (map[int64]time.Time, error) {
	if len(ids) == 0 {
		return make(map[int64]time.Time), nil
	}

	ext := GetExecutor(ctx, s.db)

	rows, err := ext.QueryContext(ctx,
		"SELECT id, last_modified FROM listings WHERE id = ANY($1)",
		pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]time.Time)
	for rows.Next() {
		var id int64
		var lastMod time.Time
		if err := rows.Scan(&id, &lastMod); err != nil {
			return nil, err
		}
		result[id] = lastMod
	}

	return result, rows.Err()
}

// ListIDsModifiedBetween returns the IDs whose last modification falls in
// [from, to), oldest first.
func (s *ListingStore) ListIDsModifiedBetween(ctx context.Context, from, to time.Time) ([]int64, error) {
	ext := GetExecutor(ctx, s.db)

	var ids []int64
	err := sqlx.SelectContext(ctx, ext, &ids,
		"SELECT id FROM listings WHERE last_modified >= $1 AND last_modified < $2 ORDER BY last_modified",
		from, to,
	)
	return ids, err
}
