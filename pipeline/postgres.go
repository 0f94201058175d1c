package pipeline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aluiziolira/go-scrape-parts/models"
)

const listingSchema = `
CREATE TABLE IF NOT EXISTS listing_records (
	id                    BIGSERIAL PRIMARY KEY,
	run_id                TEXT NOT NULL,
	run_timestamp         TEXT NOT NULL,
	application_text      TEXT,
	application_id        TEXT,
	application_url       TEXT,
	part_name             TEXT,
	detail_url            TEXT,
	price                 TEXT,
	seller                TEXT,
	seller_city           TEXT,
	seller_state          TEXT,
	seller_phone          TEXT,
	address               TEXT[],
	mileage               TEXT,
	grade                 TEXT,
	condition_description TEXT,
	vin                   TEXT,
	stock_no              TEXT,
	position              TEXT,
	color                 TEXT,
	show_info             TEXT,
	thumbnail             TEXT,
	yard_id               TEXT,
	distance_miles        INTEGER,
	interchange           TEXT,
	images                TEXT[],
	image_count           INTEGER NOT NULL DEFAULT 0,
	source_year           TEXT NOT NULL,
	source_make           TEXT NOT NULL,
	source_model          TEXT NOT NULL,
	source_part_name      TEXT NOT NULL,
	source_part_slug      TEXT NOT NULL,
	source_url            TEXT NOT NULL,
	inserted_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS listing_records_run_idx ON listing_records (run_id);
`

const insertListing = `
INSERT INTO listing_records (
	run_id, run_timestamp, application_text, application_id, application_url,
	part_name, detail_url, price, seller, seller_city, seller_state, seller_phone, address,
	mileage, grade, condition_description, vin, stock_no, position, color, show_info,
	thumbnail, yard_id, distance_miles, interchange, images, image_count,
	source_year, source_make, source_model, source_part_name, source_part_slug, source_url
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
	$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33
)`

// PostgresWriter appends streamed records to Postgres. Rows are tagged with
// the run id so every run is a complete, separately queryable snapshot.
type PostgresWriter struct {
	ctx   context.Context
	pool  *pgxpool.Pool
	runID string
}

// NewPostgresWriter connects to dsn and ensures the schema exists.
func NewPostgresWriter(ctx context.Context, dsn, runID string) (*PostgresWriter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, listingSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresWriter{ctx: ctx, pool: pool, runID: runID}, nil
}

// Write inserts one batch inside a transaction.
func (pw *PostgresWriter) Write(records []*models.ListingRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := pw.pool.Begin(pw.ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(pw.ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertListing, insertArgs(pw.runID, rec)...)
	}

	br := tx.SendBatch(pw.ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch exec %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(pw.ctx)
}

// Close releases the pool.
func (pw *PostgresWriter) Close() error {
	pw.pool.Close()
	return nil
}

// Validate checks that this run stored at least one row.
func (pw *PostgresWriter) Validate() error {
	var n int64
	if err := pw.pool.QueryRow(pw.ctx, `SELECT COUNT(*) FROM listing_records WHERE run_id = $1`, pw.runID).Scan(&n); err != nil {
		return fmt.Errorf("count rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no rows stored for run %s", pw.runID)
	}
	return nil
}

func insertArgs(runID string, r *models.ListingRecord) []any {
	return []any{
		runID, r.RunTimestamp, r.ApplicationText, r.ApplicationID, r.ApplicationURL,
		r.PartName, r.DetailURL, r.Price, r.Seller, r.SellerCity, r.SellerState, r.SellerPhone, r.Address,
		r.Mileage, r.Grade, r.ConditionDescription, r.VIN, r.StockNo, r.Position, r.Color, r.ShowInfo,
		r.Thumbnail, r.YardID, r.DistanceMiles, r.Interchange, r.Images, r.ImageCount,
		r.SourceYear, r.SourceMake, r.SourceModel, r.SourcePartName, r.SourcePartSlug, r.SourceURL,
	}
}
