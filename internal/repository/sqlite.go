package repository

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"sensor-window-service/internal/models"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS window_summaries (
		window_id TEXT PRIMARY KEY,
		start_us INTEGER NOT NULL,
		end_us INTEGER NOT NULL,
		padding_us INTEGER NOT NULL,
		device_count INTEGER NOT NULL,
		segment_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_window_created ON window_summaries(created_at);
	CREATE INDEX IF NOT EXISTS idx_window_start ON window_summaries(start_us);

	CREATE TABLE IF NOT EXISTS segment_summaries (
		segment_id TEXT PRIMARY KEY,
		window_id TEXT NOT NULL,
		device_key TEXT NOT NULL,
		device_id TEXT NOT NULL,
		start_us REAL NOT NULL,
		end_us REAL NOT NULL,
		model_valid INTEGER NOT NULL,
		intercept_us REAL NOT NULL,
		slope REAL NOT NULL,
		score_us REAL NOT NULL,
		sample_count INTEGER NOT NULL,
		stream_count INTEGER NOT NULL,
		FOREIGN KEY (window_id) REFERENCES window_summaries(window_id)
	);

	CREATE INDEX IF NOT EXISTS idx_segment_window ON segment_summaries(window_id);
	CREATE INDEX IF NOT EXISTS idx_segment_device ON segment_summaries(device_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveWindow persists a window summary together with its per-segment model
// summaries in one transaction. Stream payloads are not persisted: they are
// the caller's output, not the service's bookkeeping.
func (r *SQLiteRepository) SaveWindow(window *models.DataWindow, report *models.AssemblyReport) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	errorCount := 0
	if report != nil {
		errorCount = len(report.Errors)
	}

	_, err = tx.Exec(`
	INSERT INTO window_summaries (
		window_id, start_us, end_us, padding_us,
		device_count, segment_count, error_count, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		window.WindowID,
		window.StartUs,
		window.EndUs,
		window.PaddingUs,
		len(window.Devices),
		window.SegmentCount(),
		errorCount,
		window.CreatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("failed to save window summary: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO segment_summaries (
		segment_id, window_id, device_key, device_id,
		start_us, end_us, model_valid, intercept_us,
		slope, score_us, sample_count, stream_count
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for _, segments := range window.Devices {
		for _, seg := range segments {
			_, err := stmt.Exec(
				seg.SegmentID,
				window.WindowID,
				seg.DeviceKey,
				seg.DeviceID,
				seg.StartUs,
				seg.EndUs,
				seg.Model.Valid,
				seg.Model.InterceptUs,
				seg.Model.Slope,
				nanToZero(seg.Model.ScoreUs),
				seg.Model.SampleCount,
				len(seg.Streams),
			)
			if err != nil {
				return fmt.Errorf("failed to save segment summary: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetWindowSummary retrieves a single window summary by ID.
func (r *SQLiteRepository) GetWindowSummary(windowID string) (*models.WindowSummary, error) {
	query := `
	SELECT window_id, start_us, end_us, padding_us,
	       device_count, segment_count, error_count, created_at
	FROM window_summaries
	WHERE window_id = ?
	`

	summary := &models.WindowSummary{}
	err := r.db.QueryRow(query, windowID).Scan(
		&summary.WindowID,
		&summary.StartUs,
		&summary.EndUs,
		&summary.PaddingUs,
		&summary.DeviceCount,
		&summary.SegmentCount,
		&summary.ErrorCount,
		&summary.CreatedAtMs,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("window not found: %s", windowID)
		}
		return nil, fmt.Errorf("failed to query window summary: %w", err)
	}

	return summary, nil
}

// GetWindowSummaries retrieves window summaries, newest first.
func (r *SQLiteRepository) GetWindowSummaries(limit, offset int) ([]*models.WindowSummary, error) {
	query := `
	SELECT window_id, start_us, end_us, padding_us,
	       device_count, segment_count, error_count, created_at
	FROM window_summaries
	ORDER BY created_at DESC
	LIMIT ? OFFSET ?
	`

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query window summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.WindowSummary
	for rows.Next() {
		summary := &models.WindowSummary{}
		err := rows.Scan(
			&summary.WindowID,
			&summary.StartUs,
			&summary.EndUs,
			&summary.PaddingUs,
			&summary.DeviceCount,
			&summary.SegmentCount,
			&summary.ErrorCount,
			&summary.CreatedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan window summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// GetWindowSummariesByTimeRange retrieves summaries whose requested range
// overlaps [startTime, endTime].
func (r *SQLiteRepository) GetWindowSummariesByTimeRange(startTime, endTime time.Time, limit, offset int) ([]*models.WindowSummary, error) {
	query := `
	SELECT window_id, start_us, end_us, padding_us,
	       device_count, segment_count, error_count, created_at
	FROM window_summaries
	WHERE end_us >= ? AND start_us <= ?
	ORDER BY created_at DESC
	LIMIT ? OFFSET ?
	`

	rows, err := r.db.Query(query, startTime.UnixMicro(), endTime.UnixMicro(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query window summaries by time range: %w", err)
	}
	defer rows.Close()

	var summaries []*models.WindowSummary
	for rows.Next() {
		summary := &models.WindowSummary{}
		err := rows.Scan(
			&summary.WindowID,
			&summary.StartUs,
			&summary.EndUs,
			&summary.PaddingUs,
			&summary.DeviceCount,
			&summary.SegmentCount,
			&summary.ErrorCount,
			&summary.CreatedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan window summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// GetSegmentSummaries retrieves the per-segment model summaries of a window.
func (r *SQLiteRepository) GetSegmentSummaries(windowID string) ([]*models.SegmentSummary, error) {
	query := `
	SELECT segment_id, window_id, device_key, device_id,
	       start_us, end_us, model_valid, intercept_us,
	       slope, score_us, sample_count, stream_count
	FROM segment_summaries
	WHERE window_id = ?
	ORDER BY device_key, start_us
	`

	rows, err := r.db.Query(query, windowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segment summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.SegmentSummary
	for rows.Next() {
		summary := &models.SegmentSummary{}
		err := rows.Scan(
			&summary.SegmentID,
			&summary.WindowID,
			&summary.DeviceKey,
			&summary.DeviceID,
			&summary.StartUs,
			&summary.EndUs,
			&summary.ModelValid,
			&summary.InterceptUs,
			&summary.Slope,
			&summary.ScoreUs,
			&summary.SampleCount,
			&summary.StreamCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// GetSegmentSummariesByDevice retrieves a device's model history across
// windows, newest first.
func (r *SQLiteRepository) GetSegmentSummariesByDevice(deviceID string, limit, offset int) ([]*models.SegmentSummary, error) {
	query := `
	SELECT s.segment_id, s.window_id, s.device_key, s.device_id,
	       s.start_us, s.end_us, s.model_valid, s.intercept_us,
	       s.slope, s.score_us, s.sample_count, s.stream_count
	FROM segment_summaries s
	JOIN window_summaries w ON w.window_id = s.window_id
	WHERE s.device_id = ?
	ORDER BY w.created_at DESC, s.start_us
	LIMIT ? OFFSET ?
	`

	rows, err := r.db.Query(query, deviceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query segment summaries by device: %w", err)
	}
	defer rows.Close()

	var summaries []*models.SegmentSummary
	for rows.Next() {
		summary := &models.SegmentSummary{}
		err := rows.Scan(
			&summary.SegmentID,
			&summary.WindowID,
			&summary.DeviceKey,
			&summary.DeviceID,
			&summary.StartUs,
			&summary.EndUs,
			&summary.ModelValid,
			&summary.InterceptUs,
			&summary.Slope,
			&summary.ScoreUs,
			&summary.SampleCount,
			&summary.StreamCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// nanToZero keeps NaN fit scores out of the database; a NaN score only
// occurs on empty series, which are invalid models anyway.
func nanToZero(v models.NullableFloat) float64 {
	if v.IsNaN() {
		return 0
	}
	return float64(v)
}
