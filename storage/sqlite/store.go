// Package sqlite implements storage.Storage on a SQLite database.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/taskfolk/agendo/storage"
)

// Config holds the parameters for opening the store.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The file
	// is created if it does not exist. Use ":memory:" with PoolSize 1
	// for tests.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to 4
	// if zero or negative. SQLite serializes writes regardless of pool
	// size; extra connections help concurrent reads.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Store implements storage.Storage backed by a SQLite connection pool
// in WAL mode. Safe for concurrent use; individual connections are not,
// so every method takes its own connection.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open creates the store, applying standard pragmas and the schema to
// every connection. The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite store opened", "path", cfg.Path, "pool_size", poolSize)

	return &Store{pool: pool, logger: logger, path: cfg.Path}, nil
}

// Close closes all connections in the pool.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite: closing %s: %w", s.path, err)
	}
	s.logger.Info("sqlite store closed", "path", s.path)
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	note         TEXT NOT NULL DEFAULT '',
	color        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT '',
	priority     INTEGER NOT NULL DEFAULT 0,
	task_type    TEXT NOT NULL DEFAULT '',
	start_at     INTEGER,
	end_at       INTEGER,
	interval     TEXT NOT NULL DEFAULT 'none',
	infinite     INTEGER NOT NULL DEFAULT 0,
	completed_at INTEGER,
	created_at   INTEGER NOT NULL,
	modified_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_owner ON tasks(owner_id);

CREATE TABLE IF NOT EXISTS overrides (
	id          TEXT PRIMARY KEY,
	task_id     TEXT NOT NULL,
	date        INTEGER NOT NULL,
	type        TEXT NOT NULL,
	data        TEXT NOT NULL DEFAULT '{}',
	created_at  INTEGER NOT NULL,
	modified_at INTEGER NOT NULL,
	UNIQUE (task_id, date)
);
CREATE INDEX IF NOT EXISTS overrides_task_date ON overrides(task_id, date);
`

// prepareConnection applies pragmas and the schema. Runs once per
// connection in the pool, on first use.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite: applying schema: %w", err)
	}
	return nil
}

// Task operations

const taskColumns = `id, owner_id, title, note, color, status, priority, task_type,
	start_at, end_at, interval, infinite, completed_at, created_at, modified_at`

func (s *Store) GetTask(ctx context.Context, ownerID, taskID string) (*storage.Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	defer s.pool.Put(conn)

	var task *storage.Task
	err = sqlitex.Execute(conn,
		`SELECT `+taskColumns+` FROM tasks WHERE id = :id AND owner_id = :owner`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":id": taskID, ":owner": ownerID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t, err := scanTask(stmt)
				if err != nil {
					return err
				}
				task = t
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading task %q: %w", taskID, err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %q: %w", taskID, storage.ErrNotFound)
	}
	return task, nil
}

func (s *Store) ListTasks(ctx context.Context, ownerID string) ([]*storage.Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	defer s.pool.Put(conn)

	var tasks []*storage.Task
	err = sqlitex.Execute(conn,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = :owner ORDER BY created_at`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":owner": ownerID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t, err := scanTask(stmt)
				if err != nil {
					return err
				}
				tasks = append(tasks, t)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tasks for %q: %w", ownerID, err)
	}
	return tasks, nil
}

func (s *Store) CreateTask(ctx context.Context, task *storage.Task) error {
	if task.ID == "" || task.OwnerID == "" {
		return fmt.Errorf("task id and owner are required: %w", storage.ErrInvalidInput)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	defer s.pool.Put(conn)

	now := time.Now()
	task.Created = now
	task.Modified = now

	err = sqlitex.Execute(conn,
		`INSERT INTO tasks (`+taskColumns+`) VALUES
			(:id, :owner, :title, :note, :color, :status, :priority, :type,
			 :start, :end, :interval, :infinite, :completed, :created, :modified)`,
		&sqlitex.ExecOptions{Named: taskArgs(task)})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintPrimaryKey {
			return fmt.Errorf("task %q: %w", task.ID, storage.ErrConflict)
		}
		return fmt.Errorf("sqlite: creating task %q: %w", task.ID, err)
	}
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, task *storage.Task) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	defer s.pool.Put(conn)

	task.Modified = time.Now()

	args := taskArgs(task)
	delete(args, ":created")
	err = sqlitex.Execute(conn,
		`UPDATE tasks SET title = :title, note = :note, color = :color,
			status = :status, priority = :priority, task_type = :type,
			start_at = :start, end_at = :end, interval = :interval,
			infinite = :infinite, completed_at = :completed, modified_at = :modified
		 WHERE id = :id AND owner_id = :owner`,
		&sqlitex.ExecOptions{Named: args})
	if err != nil {
		return fmt.Errorf("sqlite: updating task %q: %w", task.ID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("task %q: %w", task.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, ownerID, taskID string) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	defer s.pool.Put(conn)

	defer sqlitex.Save(conn)(&err)

	err = sqlitex.Execute(conn,
		`DELETE FROM tasks WHERE id = :id AND owner_id = :owner`,
		&sqlitex.ExecOptions{Named: map[string]any{":id": taskID, ":owner": ownerID}})
	if err != nil {
		return fmt.Errorf("sqlite: deleting task %q: %w", taskID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("task %q: %w", taskID, storage.ErrNotFound)
	}

	err = sqlitex.Execute(conn,
		`DELETE FROM overrides WHERE task_id = :id`,
		&sqlitex.ExecOptions{Named: map[string]any{":id": taskID}})
	if err != nil {
		return fmt.Errorf("sqlite: deleting overrides of task %q: %w", taskID, err)
	}
	return nil
}

// Override operations

const overrideColumns = `id, task_id, date, type, data, created_at, modified_at`

func (s *Store) GetOverride(ctx context.Context, taskID string, date time.Time) (*storage.Override, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	defer s.pool.Put(conn)

	day := storage.DateOf(date)
	var ov *storage.Override
	err = sqlitex.Execute(conn,
		`SELECT `+overrideColumns+` FROM overrides WHERE task_id = :task AND date = :date`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":task": taskID, ":date": day.Unix()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				o, err := scanOverride(stmt)
				if err != nil {
					return err
				}
				ov = o
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading override: %w", err)
	}
	if ov == nil {
		return nil, fmt.Errorf("override %s/%s: %w", taskID, day.Format("2006-01-02"), storage.ErrNotFound)
	}
	return ov, nil
}

func (s *Store) ListOverrides(ctx context.Context, taskIDs []string, start, end *time.Time) ([]*storage.Override, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	defer s.pool.Put(conn)

	// SQLite named parameters don't expand into IN lists, so the query
	// is assembled with positional placeholders for the task ids.
	query := `SELECT ` + overrideColumns + ` FROM overrides WHERE task_id IN (`
	args := make([]any, 0, len(taskIDs)+2)
	for i, id := range taskIDs {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, id)
	}
	query += ")"
	if start != nil {
		query += " AND date >= ?"
		args = append(args, storage.DateOf(*start).Unix())
	}
	if end != nil {
		query += " AND date <= ?"
		args = append(args, storage.DateOf(*end).Unix())
	}

	var out []*storage.Override
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			o, err := scanOverride(stmt)
			if err != nil {
				return err
			}
			out = append(out, o)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing overrides: %w", err)
	}
	return out, nil
}

func (s *Store) PutOverride(ctx context.Context, ov *storage.Override) (err error) {
	if ov.TaskID == "" {
		return fmt.Errorf("override task id is required: %w", storage.ErrInvalidInput)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	defer s.pool.Put(conn)

	defer sqlitex.Save(conn)(&err)

	ov.Date = storage.DateOf(ov.Date)
	now := time.Now()

	var existingID string
	var existingCreated int64
	err = sqlitex.Execute(conn,
		`SELECT id, created_at FROM overrides WHERE task_id = :task AND date = :date`,
		&sqlitex.ExecOptions{
			Named: map[string]any{":task": ov.TaskID, ":date": ov.Date.Unix()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				existingID = stmt.ColumnText(0)
				existingCreated = stmt.ColumnInt64(1)
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("sqlite: checking override: %w", err)
	}

	data, err := json.Marshal(ov.Data)
	if err != nil {
		return fmt.Errorf("sqlite: encoding override data: %w", err)
	}

	if existingID != "" {
		ov.ID = existingID
		ov.Created = time.Unix(existingCreated, 0).UTC()
		ov.Modified = now
		err = sqlitex.Execute(conn,
			`UPDATE overrides SET type = :type, data = :data, modified_at = :modified
			 WHERE id = :id`,
			&sqlitex.ExecOptions{Named: map[string]any{
				":type":     string(ov.Type),
				":data":     string(data),
				":modified": now.Unix(),
				":id":       ov.ID,
			}})
		if err != nil {
			return fmt.Errorf("sqlite: updating override %q: %w", ov.ID, err)
		}
		return nil
	}

	if ov.ID == "" {
		ov.ID = uuid.New().String()
	}
	ov.Created = now
	ov.Modified = now
	err = sqlitex.Execute(conn,
		`INSERT INTO overrides (`+overrideColumns+`) VALUES
			(:id, :task, :date, :type, :data, :created, :modified)`,
		&sqlitex.ExecOptions{Named: map[string]any{
			":id":       ov.ID,
			":task":     ov.TaskID,
			":date":     ov.Date.Unix(),
			":type":     string(ov.Type),
			":data":     string(data),
			":created":  now.Unix(),
			":modified": now.Unix(),
		}})
	if err != nil {
		return fmt.Errorf("sqlite: creating override: %w", err)
	}
	return nil
}

func (s *Store) DeleteOverride(ctx context.Context, taskID string, date time.Time) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	defer s.pool.Put(conn)

	day := storage.DateOf(date)
	err = sqlitex.Execute(conn,
		`DELETE FROM overrides WHERE task_id = :task AND date = :date`,
		&sqlitex.ExecOptions{Named: map[string]any{":task": taskID, ":date": day.Unix()}})
	if err != nil {
		return fmt.Errorf("sqlite: deleting override: %w", err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("override %s/%s: %w", taskID, day.Format("2006-01-02"), storage.ErrNotFound)
	}
	return nil
}

// Row scanning and binding helpers

func taskArgs(t *storage.Task) map[string]any {
	return map[string]any{
		":id":        t.ID,
		":owner":     t.OwnerID,
		":title":     t.Title,
		":note":      t.Note,
		":color":     t.Color,
		":status":    t.Status,
		":priority":  int64(t.Priority),
		":type":      t.Type,
		":start":     unixOrNil(t.Start),
		":end":       unixOrNil(t.End),
		":interval":  t.Interval.String(),
		":infinite":  boolInt(t.Infinite),
		":completed": unixOrNil(t.CompletedAt),
		":created":   t.Created.Unix(),
		":modified":  t.Modified.Unix(),
	}
}

func scanTask(stmt *sqlite.Stmt) (*storage.Task, error) {
	interval, err := storage.ParseInterval(stmt.ColumnText(10))
	if err != nil {
		return nil, err
	}

	return &storage.Task{
		ID:          stmt.ColumnText(0),
		OwnerID:     stmt.ColumnText(1),
		Title:       stmt.ColumnText(2),
		Note:        stmt.ColumnText(3),
		Color:       stmt.ColumnText(4),
		Status:      stmt.ColumnText(5),
		Priority:    int(stmt.ColumnInt64(6)),
		Type:        stmt.ColumnText(7),
		Start:       timeOrNil(stmt, 8),
		End:         timeOrNil(stmt, 9),
		Interval:    interval,
		Infinite:    stmt.ColumnInt64(11) != 0,
		CompletedAt: timeOrNil(stmt, 12),
		Created:     time.Unix(stmt.ColumnInt64(13), 0).UTC(),
		Modified:    time.Unix(stmt.ColumnInt64(14), 0).UTC(),
	}, nil
}

func scanOverride(stmt *sqlite.Stmt) (*storage.Override, error) {
	var data storage.InstancePatch
	if raw := stmt.ColumnText(4); raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("sqlite: decoding override data: %w", err)
		}
	}

	return &storage.Override{
		ID:       stmt.ColumnText(0),
		TaskID:   stmt.ColumnText(1),
		Date:     time.Unix(stmt.ColumnInt64(2), 0).UTC(),
		Type:     storage.OverrideType(stmt.ColumnText(3)),
		Data:     data,
		Created:  time.Unix(stmt.ColumnInt64(5), 0).UTC(),
		Modified: time.Unix(stmt.ColumnInt64(6), 0).UTC(),
	}, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(stmt *sqlite.Stmt, col int) *time.Time {
	if stmt.ColumnType(col) == sqlite.TypeNull {
		return nil
	}
	t := time.Unix(stmt.ColumnInt64(col), 0).UTC()
	return &t
}
