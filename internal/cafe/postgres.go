package cafe

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/cafeswipe/server/internal/geo"
	"github.com/cafeswipe/server/internal/tracing"
)

// haversineSQL computes great-circle meters between a café row and the
// query center ($1 = latitude, $2 = longitude). Matches geo.Distance and
// MySQL's ST_Distance_Sphere (sphere radius 6371008.8 m).
const haversineSQL = `2 * 6371008.8 * asin(sqrt(
		power(sin(radians(c.latitude - $1) / 2), 2) +
		cos(radians($1)) * cos(radians(c.latitude)) *
		power(sin(radians(c.longitude - $2) / 2), 2)))`

const cafeColumns = `c.id, c.name, c.address, c.latitude, c.longitude, c.instagram, c.phone, c.created_at`

// PostgresStore implements Store on PostgreSQL. The radius search
// prefilters on a bounding box served by the plain (latitude,
// longitude) index, then applies the exact haversine distance; there
// is no spatial index or extension.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// boxSQL prefilters rows through idx_cafes_lat_lng before the exact
// haversine check ($5..$8 = min/max latitude, min/max longitude).
const boxSQL = `c.latitude BETWEEN $5 AND $6 AND c.longitude BETWEEN $7 AND $8`

// FindNear returns all cafés within the query radius, ordered by ID
// ascending. The preference join and cooldown cutoff mirror
// EligibleForSwipe.
func (s *PostgresStore) FindNear(ctx context.Context, q NearQuery) (cafes []*Cafe, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "cafes", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	box := geo.BoundingRegion(q.Center, q.RadiusMeters)

	var query string
	args := []interface{}{q.Center.Lat, q.Center.Lng, q.RadiusMeters, q.UserID,
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng}

	if q.ExcludeRated {
		cutoff := q.At().Add(-q.Cooldown)
		query = `SELECT ` + cafeColumns + `, NULL
			FROM cafes c
			LEFT JOIN cafe_preferences p ON p.cafe_id = c.id AND p.user_uuid = $4
			WHERE ` + boxSQL + `
			  AND ` + haversineSQL + ` <= $3
			  AND (p.user_uuid IS NULL OR (p.status = 'DISLIKE' AND p.updated_at <= $9))
			ORDER BY c.id`
		args = append(args, cutoff)
	} else {
		query = `SELECT ` + cafeColumns + `, p.status
			FROM cafes c
			LEFT JOIN cafe_preferences p ON p.cafe_id = c.id AND p.user_uuid = $4
			WHERE ` + boxSQL + `
			  AND ` + haversineSQL + ` <= $3
			ORDER BY c.id`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find near cafes: %w", err)
	}
	defer rows.Close()

	cafes, err = scanCafes(rows)
	if err != nil {
		return nil, err
	}
	if err = s.attachDetails(ctx, cafes); err != nil {
		return nil, err
	}
	return cafes, nil
}

// GetByID returns one café with the caller's preference metadata.
func (s *PostgresStore) GetByID(ctx context.Context, id int64, userID string) (c *Cafe, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "cafes", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	row := s.db.QueryRowContext(ctx, `SELECT `+cafeColumns+`, p.status
		FROM cafes c
		LEFT JOIN cafe_preferences p ON p.cafe_id = c.id AND p.user_uuid = $2
		WHERE c.id = $1`, id, userID)

	c, err = scanCafe(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cafe %d: %w", id, err)
	}
	if err = s.attachDetails(ctx, []*Cafe{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// ListLiked returns all cafés the user has LIKEd, ordered by ID ascending.
func (s *PostgresStore) ListLiked(ctx context.Context, userID string) (cafes []*Cafe, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "cafe_preferences", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT `+cafeColumns+`, p.status
		FROM cafes c
		JOIN cafe_preferences p ON p.cafe_id = c.id
		WHERE p.user_uuid = $1 AND p.status = 'LIKE'
		ORDER BY c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list liked cafes: %w", err)
	}
	defer rows.Close()

	cafes, err = scanCafes(rows)
	if err != nil {
		return nil, err
	}
	if err = s.attachDetails(ctx, cafes); err != nil {
		return nil, err
	}
	return cafes, nil
}

// SearchByName returns all cafés whose name contains the keyword,
// case-insensitive, ordered by ID ascending.
func (s *PostgresStore) SearchByName(ctx context.Context, keyword, userID string) (cafes []*Cafe, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "cafes", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	needle := strings.TrimSpace(keyword)
	if needle == "" {
		return []*Cafe{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+cafeColumns+`, p.status
		FROM cafes c
		LEFT JOIN cafe_preferences p ON p.cafe_id = c.id AND p.user_uuid = $2
		WHERE c.name ILIKE '%' || $1 || '%'
		ORDER BY c.id`, needle, userID)
	if err != nil {
		return nil, fmt.Errorf("search cafes by name: %w", err)
	}
	defer rows.Close()

	cafes, err = scanCafes(rows)
	if err != nil {
		return nil, err
	}
	if err = s.attachDetails(ctx, cafes); err != nil {
		return nil, err
	}
	return cafes, nil
}

// Create inserts a café and its images in one transaction.
func (s *PostgresStore) Create(ctx context.Context, c *Cafe) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "cafes", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Warn("failed to rollback transaction", "error", rbErr)
		}
	}()

	err = tx.QueryRowContext(ctx, `INSERT INTO cafes (name, address, latitude, longitude, instagram, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		c.Name, c.Address, c.Location.Lat, c.Location.Lng,
		nullable(c.Instagram), nullable(c.Phone),
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert cafe: %w", err)
	}

	if err = insertImages(ctx, tx, c.ID, c.Images); err != nil {
		return err
	}
	if err = insertOpenHours(ctx, tx, c.ID, c.OpenHours); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cafe insert: %w", err)
	}
	return nil
}

// Update overwrites a café's fields and replaces its images and open
// hours in one transaction.
func (s *PostgresStore) Update(ctx context.Context, c *Cafe) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "cafes", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Warn("failed to rollback transaction", "error", rbErr)
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE cafes
		SET name = $2, address = $3, latitude = $4, longitude = $5, instagram = $6, phone = $7
		WHERE id = $1`,
		c.ID, c.Name, c.Address, c.Location.Lat, c.Location.Lng,
		nullable(c.Instagram), nullable(c.Phone))
	if err != nil {
		return fmt.Errorf("update cafe %d: %w", c.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cafe %d: %w", c.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cafe_images WHERE cafe_id = $1`, c.ID); err != nil {
		return fmt.Errorf("clear cafe images: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM cafe_open_hours WHERE cafe_id = $1`, c.ID); err != nil {
		return fmt.Errorf("clear cafe open hours: %w", err)
	}
	if err = insertImages(ctx, tx, c.ID, c.Images); err != nil {
		return err
	}
	if err = insertOpenHours(ctx, tx, c.ID, c.OpenHours); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cafe update: %w", err)
	}
	return nil
}

// Delete removes a café; images, open hours and preferences cascade.
func (s *PostgresStore) Delete(ctx context.Context, id int64) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "cafes", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM cafes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cafe %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cafe %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertPreference creates or overwrites the (user, café) decision.
// Concurrent writers race at the unique constraint; last write wins.
func (s *PostgresStore) UpsertPreference(ctx context.Context, userID string, cafeID int64, status Status) (pref *Preference, err error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "cafe_preferences", tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	pref = &Preference{UserID: userID, CafeID: cafeID, Status: status}
	err = s.db.QueryRowContext(ctx, `INSERT INTO cafe_preferences (user_uuid, cafe_id, status, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_uuid, cafe_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = now()
		RETURNING updated_at`,
		userID, cafeID, string(status),
	).Scan(&pref.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "foreign_key_violation" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("upsert preference: %w", err)
	}
	return pref, nil
}

// GetPreference returns the user's decision for a café, or nil.
func (s *PostgresStore) GetPreference(ctx context.Context, userID string, cafeID int64) (pref *Preference, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "cafe_preferences", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	pref = &Preference{UserID: userID, CafeID: cafeID}
	err = s.db.QueryRowContext(ctx, `SELECT status, updated_at
		FROM cafe_preferences
		WHERE user_uuid = $1 AND cafe_id = $2`,
		userID, cafeID,
	).Scan(&pref.Status, &pref.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return pref, nil
}

// attachDetails loads images and open hours for the given cafés in two
// batched queries.
func (s *PostgresStore) attachDetails(ctx context.Context, cafes []*Cafe) error {
	if len(cafes) == 0 {
		return nil
	}

	byID := make(map[int64]*Cafe, len(cafes))
	ids := make([]int64, 0, len(cafes))
	for _, c := range cafes {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, cafe_id, display_order, object_key, created_at
		FROM cafe_images
		WHERE cafe_id = ANY($1)
		ORDER BY cafe_id, display_order`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load cafe images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.CafeID, &img.Order, &img.Key, &img.CreatedAt); err != nil {
			return fmt.Errorf("scan cafe image: %w", err)
		}
		if c, ok := byID[img.CafeID]; ok {
			c.Images = append(c.Images, img)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate cafe images: %w", err)
	}

	hourRows, err := s.db.QueryContext(ctx, `SELECT cafe_id, day, open_time, close_time
		FROM cafe_open_hours
		WHERE cafe_id = ANY($1)
		ORDER BY cafe_id, id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load cafe open hours: %w", err)
	}
	defer hourRows.Close()

	for hourRows.Next() {
		var cafeID int64
		var oh OpenHours
		if err := hourRows.Scan(&cafeID, &oh.Day, &oh.Open, &oh.Close); err != nil {
			return fmt.Errorf("scan cafe open hours: %w", err)
		}
		if c, ok := byID[cafeID]; ok {
			c.OpenHours = append(c.OpenHours, oh)
		}
	}
	if err := hourRows.Err(); err != nil {
		return fmt.Errorf("iterate cafe open hours: %w", err)
	}
	return nil
}

// insertImages inserts the café's images inside the caller's transaction.
func insertImages(ctx context.Context, tx *sql.Tx, cafeID int64, images []Image) error {
	for i := range images {
		err := tx.QueryRowContext(ctx, `INSERT INTO cafe_images (cafe_id, display_order, object_key)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`,
			cafeID, images[i].Order, images[i].Key,
		).Scan(&images[i].ID, &images[i].CreatedAt)
		if err != nil {
			return fmt.Errorf("insert cafe image: %w", err)
		}
		images[i].CafeID = cafeID
	}
	return nil
}

// insertOpenHours inserts the café's open hours inside the caller's
// transaction.
func insertOpenHours(ctx context.Context, tx *sql.Tx, cafeID int64, hours []OpenHours) error {
	for _, oh := range hours {
		_, err := tx.ExecContext(ctx, `INSERT INTO cafe_open_hours (cafe_id, day, open_time, close_time)
			VALUES ($1, $2, $3, $4)`,
			cafeID, oh.Day, oh.Open, oh.Close)
		if err != nil {
			return fmt.Errorf("insert cafe open hours: %w", err)
		}
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for café scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanCafe reads one café row with an optional preference status column.
func scanCafe(row scanner) (*Cafe, error) {
	var c Cafe
	var instagram, phone, status sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Location.Lat, &c.Location.Lng,
		&instagram, &phone, &c.CreatedAt, &status)
	if err != nil {
		return nil, err
	}
	c.Instagram = instagram.String
	c.Phone = phone.String
	if status.Valid {
		st := Status(status.String)
		c.PreferenceStatus = &st
	}
	return &c, nil
}

// scanCafes drains a café result set.
func scanCafes(rows *sql.Rows) ([]*Cafe, error) {
	cafes := []*Cafe{}
	for rows.Next() {
		c, err := scanCafe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cafe: %w", err)
		}
		cafes = append(cafes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cafes: %w", err)
	}
	return cafes, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
