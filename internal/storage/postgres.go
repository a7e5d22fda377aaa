package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/headcount/internal/config"
	"github.com/your-org/headcount/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Cameras ---

const cameraColumns = `id, name, ip_address, port, username, password, rtsp_path,
	status, is_active, resolution_width, resolution_height, fps, location,
	created_at, updated_at, last_connection`

func scanCamera(row pgx.Row) (*models.Camera, error) {
	cam := &models.Camera{}
	err := row.Scan(&cam.ID, &cam.Name, &cam.IPAddress, &cam.Port, &cam.Username,
		&cam.Password, &cam.RTSPPath, &cam.Status, &cam.IsActive,
		&cam.ResolutionWidth, &cam.ResolutionHeight, &cam.FPS, &cam.Location,
		&cam.CreatedAt, &cam.UpdatedAt, &cam.LastConnection)
	if err != nil {
		return nil, err
	}
	return cam, nil
}

func (s *PostgresStore) CreateCamera(ctx context.Context, cam *models.Camera) error {
	if cam.Port == 0 {
		cam.Port = 554
	}
	if cam.ResolutionWidth == 0 {
		cam.ResolutionWidth = 1920
	}
	if cam.ResolutionHeight == 0 {
		cam.ResolutionHeight = 1080
	}
	if cam.FPS == 0 {
		cam.FPS = 30
	}
	if cam.Status == "" {
		cam.Status = models.CameraStatusInactive
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO cameras (name, ip_address, port, username, password, rtsp_path,
		 status, is_active, resolution_width, resolution_height, fps, location)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`,
		cam.Name, cam.IPAddress, cam.Port, cam.Username, cam.Password, cam.RTSPPath,
		cam.Status, cam.IsActive, cam.ResolutionWidth, cam.ResolutionHeight,
		cam.FPS, cam.Location,
	).Scan(&cam.ID, &cam.CreatedAt, &cam.UpdatedAt)
}

func (s *PostgresStore) GetCamera(ctx context.Context, id int64) (*models.Camera, error) {
	cam, err := scanCamera(s.pool.QueryRow(ctx,
		`SELECT `+cameraColumns+` FROM cameras WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get camera: %w", err)
	}
	return cam, nil
}

// GetOrCreateCameraByIP finds a camera by its IP address, creating one with the
// given defaults when none exists. Returns whether a row was created.
func (s *PostgresStore) GetOrCreateCameraByIP(ctx context.Context, cam *models.Camera) (bool, error) {
	existing, err := scanCamera(s.pool.QueryRow(ctx,
		`SELECT `+cameraColumns+` FROM cameras WHERE ip_address = $1`, cam.IPAddress))
	if err == nil {
		*cam = *existing
		return false, nil
	}
	if err != pgx.ErrNoRows {
		return false, fmt.Errorf("get camera by ip: %w", err)
	}
	if err := s.CreateCamera(ctx, cam); err != nil {
		return false, fmt.Errorf("create camera: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ListCameras(ctx context.Context, status string, isActive *bool) ([]models.Camera, error) {
	query := `SELECT ` + cameraColumns + ` FROM cameras`
	where := ""
	args := []interface{}{}
	argIdx := 1

	if status != "" {
		where += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}
	if isActive != nil {
		if where == "" {
			where = fmt.Sprintf(" WHERE is_active = $%d", argIdx)
		} else {
			where += fmt.Sprintf(" AND is_active = $%d", argIdx)
		}
		args = append(args, *isActive)
	}

	rows, err := s.pool.Query(ctx, query+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	var cameras []models.Camera
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, fmt.Errorf("scan camera: %w", err)
		}
		cameras = append(cameras, *cam)
	}
	return cameras, nil
}

// UpdateCameraStatus writes only the status column. The worker loop and the
// HTTP handlers both update camera rows concurrently, so updates stay scoped
// to the fields being changed.
func (s *PostgresStore) UpdateCameraStatus(ctx context.Context, id int64, status models.CameraStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE cameras SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

func (s *PostgresStore) SetCameraLastConnection(ctx context.Context, id int64, t time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE cameras SET last_connection = $1 WHERE id = $2`, t, id)
	return err
}

// UpdateCamera patches the given mutable fields. Nil entries are left untouched.
func (s *PostgresStore) UpdateCamera(ctx context.Context, id int64, patch CameraPatch) (*models.Camera, error) {
	set := "updated_at = now()"
	args := []interface{}{}
	argIdx := 1

	add := func(col string, v interface{}) {
		set += fmt.Sprintf(", %s = $%d", col, argIdx)
		args = append(args, v)
		argIdx++
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.IPAddress != nil {
		add("ip_address", *patch.IPAddress)
	}
	if patch.Port != nil {
		add("port", *patch.Port)
	}
	if patch.Username != nil {
		add("username", *patch.Username)
	}
	if patch.Password != nil {
		add("password", *patch.Password)
	}
	if patch.RTSPPath != nil {
		add("rtsp_path", *patch.RTSPPath)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.FPS != nil {
		add("fps", *patch.FPS)
	}

	query := fmt.Sprintf(`UPDATE cameras SET %s WHERE id = $%d RETURNING `+cameraColumns, set, argIdx)
	args = append(args, id)

	cam, err := scanCamera(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("update camera: %w", err)
	}
	return cam, nil
}

type CameraPatch struct {
	Name      *string
	IPAddress *string
	Port      *int
	Username  *string
	Password  *string
	RTSPPath  *string
	IsActive  *bool
	Location  *string
	FPS       *int
}

func (s *PostgresStore) DeleteCamera(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cameras WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete camera: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("camera not found")
	}
	return nil
}

// --- Rooms ---

const roomColumns = `id, name, camera_ip, is_active, status, created_at, updated_at, last_updated`

func scanRoom(row pgx.Row) (*models.Room, error) {
	r := &models.Room{}
	err := row.Scan(&r.ID, &r.Name, &r.CameraIP, &r.IsActive, &r.Status,
		&r.CreatedAt, &r.UpdatedAt, &r.LastUpdated)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) CreateRoom(ctx context.Context, r *models.Room) error {
	if r.Status == "" {
		r.Status = models.RoomStatusInactive
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO rooms (name, camera_ip, is_active, status)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		r.Name, r.CameraIP, r.IsActive, r.Status,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (s *PostgresStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	r, err := scanRoom(s.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListRooms(ctx context.Context, status string, isActive *bool) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	where := ""
	args := []interface{}{}
	argIdx := 1

	if status != "" {
		where += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}
	if isActive != nil {
		if where == "" {
			where = fmt.Sprintf(" WHERE is_active = $%d", argIdx)
		} else {
			where += fmt.Sprintf(" AND is_active = $%d", argIdx)
		}
		args = append(args, *isActive)
	}

	rows, err := s.pool.Query(ctx, query+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, *r)
	}
	return rooms, nil
}

func (s *PostgresStore) UpdateRoomStatus(ctx context.Context, id int64, status models.RoomStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE rooms SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

func (s *PostgresStore) SetRoomLastUpdated(ctx context.Context, id int64, t time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE rooms SET last_updated = $1 WHERE id = $2`, t, id)
	return err
}

type RoomPatch struct {
	Name     *string
	CameraIP *string
	IsActive *bool
}

func (s *PostgresStore) UpdateRoom(ctx context.Context, id int64, patch RoomPatch) (*models.Room, error) {
	set := "updated_at = now()"
	args := []interface{}{}
	argIdx := 1

	add := func(col string, v interface{}) {
		set += fmt.Sprintf(", %s = $%d", col, argIdx)
		args = append(args, v)
		argIdx++
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.CameraIP != nil {
		add("camera_ip", *patch.CameraIP)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}

	query := fmt.Sprintf(`UPDATE rooms SET %s WHERE id = $%d RETURNING `+roomColumns, set, argIdx)
	args = append(args, id)

	r, err := scanRoom(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("update room: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) DeleteRoom(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room not found")
	}
	return nil
}

// --- Counts ---

const countColumns = `id, camera_id, room_id, people_count, frames_processed,
	inference_time_ms, snapshot_key, timestamp`

func scanCount(row pgx.Row) (*models.Count, error) {
	c := &models.Count{}
	err := row.Scan(&c.ID, &c.CameraID, &c.RoomID, &c.PeopleCount,
		&c.FramesProcessed, &c.InferenceTimeMs, &c.SnapshotKey, &c.Timestamp)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// InsertCount appends one reading. The timestamp is assigned by the server;
// exactly one of CameraID and RoomID must be set. Counts are never updated
// or deleted at runtime.
func (s *PostgresStore) InsertCount(ctx context.Context, c *models.Count) error {
	if (c.CameraID == nil) == (c.RoomID == nil) {
		return fmt.Errorf("count must reference exactly one of camera or room")
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO counts (camera_id, room_id, people_count, frames_processed, inference_time_ms, snapshot_key)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, timestamp`,
		c.CameraID, c.RoomID, c.PeopleCount, c.FramesProcessed, c.InferenceTimeMs, c.SnapshotKey,
	).Scan(&c.ID, &c.Timestamp)
}

func (s *PostgresStore) GetCount(ctx context.Context, id int64) (*models.Count, error) {
	c, err := scanCount(s.pool.QueryRow(ctx,
		`SELECT `+countColumns+` FROM counts WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get count: %w", err)
	}
	return c, nil
}

// LatestCount returns the most recent reading for a device, or nil.
func (s *PostgresStore) LatestCount(ctx context.Context, kind models.DeviceKind, deviceID int64) (*models.Count, error) {
	c, err := scanCount(s.pool.QueryRow(ctx,
		`SELECT `+countColumns+` FROM counts WHERE `+kindColumn(kind)+` = $1
		 ORDER BY timestamp DESC LIMIT 1`, deviceID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest count: %w", err)
	}
	return c, nil
}

// ListCounts returns up to limit readings for a device, most recent first.
func (s *PostgresStore) ListCounts(ctx context.Context, kind models.DeviceKind, deviceID int64, limit int) ([]models.Count, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+countColumns+` FROM counts WHERE `+kindColumn(kind)+` = $1
		 ORDER BY timestamp DESC LIMIT $2`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list counts: %w", err)
	}
	defer rows.Close()

	var counts []models.Count
	for rows.Next() {
		c, err := scanCount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts = append(counts, *c)
	}
	return counts, nil
}

// ListAllCounts lists readings across all cameras, optionally filtered by camera.
func (s *PostgresStore) ListAllCounts(ctx context.Context, cameraID *int64, limit int) ([]models.Count, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	var rows pgx.Rows
	var err error
	if cameraID != nil {
		rows, err = s.pool.Query(ctx,
			`SELECT `+countColumns+` FROM counts WHERE camera_id = $1
			 ORDER BY timestamp DESC LIMIT $2`, *cameraID, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+countColumns+` FROM counts ORDER BY timestamp DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list all counts: %w", err)
	}
	defer rows.Close()

	var counts []models.Count
	for rows.Next() {
		c, err := scanCount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts = append(counts, *c)
	}
	return counts, nil
}

func kindColumn(kind models.DeviceKind) string {
	if kind == models.KindRoom {
		return "room_id"
	}
	return "camera_id"
}

// DemoteActiveDevices marks devices left active by a previous process as
// offline. A registry entry cannot survive a restart, so an active status at
// boot is stale by definition.
func (s *PostgresStore) DemoteActiveDevices(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE cameras SET status = 'offline' WHERE status = 'active'`); err != nil {
		return fmt.Errorf("demote cameras: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE rooms SET status = 'offline' WHERE status = 'active'`); err != nil {
		return fmt.Errorf("demote rooms: %w", err)
	}
	return nil
}
