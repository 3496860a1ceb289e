package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no asset has the requested ID.
	ErrNotFound = errors.New("asset not found")
	// ErrStateConflict is returned when a conditional transition matched no
	// row because the asset is no longer in the expected state.
	ErrStateConflict = errors.New("asset state changed")
)

const assetColumns = `id, label, source_path, source_name, source_size, source_hash,
	processed_ref, output_dir, state, reason, duration, poster_ref,
	created_at, updated_at, published_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var (
		a            Asset
		processedRef sql.NullString
		state        string
		createdAt    int64
		updatedAt    int64
		publishedAt  sql.NullInt64
	)
	err := row.Scan(
		&a.ID, &a.Label, &a.SourcePath, &a.SourceName, &a.SourceSize, &a.SourceHash,
		&processedRef, &a.OutputDir, &state, &a.Reason, &a.Duration, &a.PosterRef,
		&createdAt, &updatedAt, &publishedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ProcessedRef = processedRef.String
	a.State = State(state)
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)
	if publishedAt.Valid {
		t := time.Unix(publishedAt.Int64, 0)
		a.PublishedAt = &t
	}
	return &a, nil
}

// CreateAsset inserts a in state created and fills in its ID and
// timestamps. This is the first of the two writes of an ingest.
func (d *Database) CreateAsset(ctx context.Context, a *Asset) (err error) {
	start := time.Now()
	defer func() { recordQuery("create_asset", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().Unix()
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO assets (label, source_path, source_name, source_size, source_hash, state, duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'created', ?, ?, ?)
	`, a.Label, a.SourcePath, a.SourceName, a.SourceSize, a.SourceHash, a.Duration, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read asset id: %w", err)
	}

	a.ID = id
	a.State = StateCreated
	a.ProcessedRef = ""
	a.CreatedAt = time.Unix(now, 0)
	a.UpdatedAt = a.CreatedAt
	return nil
}

// GetAsset returns the asset with the given ID.
func (d *Database) GetAsset(ctx context.Context, id int64) (a *Asset, err error) {
	start := time.Now()
	defer func() { recordQuery("get_asset", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	a, err = scanAsset(d.db.QueryRowContext(ctx, "SELECT "+assetColumns+" FROM assets WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAssets returns assets newest first.
func (d *Database) ListAssets(ctx context.Context, opts ListOptions) (assets []Asset, err error) {
	start := time.Now()
	defer func() { recordQuery("list_assets", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		query strings.Builder
		args  []interface{}
	)
	query.WriteString("SELECT " + assetColumns + " FROM assets")
	if opts.State != "" {
		query.WriteString(" WHERE state = ?")
		args = append(args, string(opts.State))
	}
	query.WriteString(" ORDER BY created_at DESC, id DESC")
	if opts.Limit > 0 {
		query.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := d.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets = []Asset{}
	for rows.Next() {
		a, scanErr := scanAsset(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// ClaimForTranscoding moves a created asset to transcoding and records the
// output directory of the attempt. It returns ErrStateConflict when the
// asset is not in created, so at most one run ever owns an asset.
func (d *Database) ClaimForTranscoding(ctx context.Context, id int64, outputDir string, duration float64) (err error) {
	start := time.Now()
	defer func() { recordQuery("claim_asset", start, err) }()

	return d.transition(ctx, `
		UPDATE assets
		SET state = 'transcoding', output_dir = ?, duration = ?, reason = '', updated_at = ?
		WHERE id = ? AND state = 'created' AND processed_ref IS NULL
	`, outputDir, duration, time.Now().Unix(), id)
}

// PublishAsset attaches the processed reference and marks the asset
// published in a single statement. Readers see either the previous
// transcoding row or the complete published row.
func (d *Database) PublishAsset(ctx context.Context, id int64, processedRef, posterRef string) (err error) {
	start := time.Now()
	defer func() { recordQuery("publish_asset", start, err) }()

	if processedRef == "" {
		return errors.New("processed reference must not be empty")
	}

	now := time.Now().Unix()
	return d.transition(ctx, `
		UPDATE assets
		SET state = 'published', processed_ref = ?, poster_ref = ?, published_at = ?, updated_at = ?
		WHERE id = ? AND state = 'transcoding' AND processed_ref IS NULL
	`, processedRef, posterRef, now, now, id)
}

// RejectAsset marks an unpublished asset rejected with reason. Published
// and already rejected assets are left untouched (ErrStateConflict).
func (d *Database) RejectAsset(ctx context.Context, id int64, reason string) (err error) {
	start := time.Now()
	defer func() { recordQuery("reject_asset", start, err) }()

	return d.transition(ctx, `
		UPDATE assets
		SET state = 'rejected', reason = ?, updated_at = ?
		WHERE id = ? AND state IN ('created', 'validating', 'transcoding') AND processed_ref IS NULL
	`, reason, time.Now().Unix(), id)
}

func (d *Database) transition(ctx context.Context, query string, args ...interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStateConflict
	}
	return nil
}

// ListInterrupted returns assets left in transcoding, which after a restart
// means their run died mid-encode.
func (d *Database) ListInterrupted(ctx context.Context) (assets []Asset, err error) {
	start := time.Now()
	defer func() { recordQuery("list_interrupted", start, err) }()

	return d.listWhere(ctx, "state = 'transcoding'")
}

// ListRejectedOutputs returns rejected assets that still record an output
// directory, whose artifacts may not have been removed yet.
func (d *Database) ListRejectedOutputs(ctx context.Context) (assets []Asset, err error) {
	start := time.Now()
	defer func() { recordQuery("list_rejected_outputs", start, err) }()

	return d.listWhere(ctx, "state = 'rejected' AND output_dir != ''")
}

// ClearOutputDir forgets the output directory of a rejected asset. Any other
// state is left untouched (ErrStateConflict).
func (d *Database) ClearOutputDir(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("clear_output_dir", start, err) }()

	return d.transition(ctx, `
		UPDATE assets
		SET output_dir = '', updated_at = ?
		WHERE id = ? AND state = 'rejected'
	`, time.Now().Unix(), id)
}

func (d *Database) listWhere(ctx context.Context, where string) ([]Asset, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE "+where+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		a, scanErr := scanAsset(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// CountAssetsByState returns the number of assets in each state. States
// with no assets are reported as zero.
func (d *Database) CountAssetsByState(ctx context.Context) (counts map[string]int, err error) {
	start := time.Now()
	defer func() { recordQuery("count_by_state", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT state, COUNT(*) FROM assets GROUP BY state")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts = make(map[string]int, len(AllStates))
	for _, s := range AllStates {
		counts[string(s)] = 0
	}
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}
