package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Схема каталога версионируется парами скриптов NNNN_name.up.sql /
// NNNN_name.down.sql, вшитыми в бинарник. Применённые версии фиксируются
// в schema_migrations.
const (
	catalogSchemaGlob = "sql/migrations/*.sql"
	// Advisory-блокировка: несколько экземпляров сервиса каталога не должны
	// накатывать схему одновременно.
	catalogSchemaLockKey = int64(20260831)

	schemaVersionsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

//go:embed sql/migrations/*.sql
var catalogSchemaFS embed.FS

var scriptNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type migrationDirection string

const (
	migrationUp   migrationDirection = "up"
	migrationDown migrationDirection = "down"
)

// schemaScript — одна версия схемы с парой скриптов наката и отката.
type schemaScript struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// MigrateUp применяет недостающие up-скрипты в порядке возрастания версий.
// steps=0 означает "накатить всё".
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.runMigrations(ctx, migrationUp, steps)
}

// MigrateDown откатывает последние применённые версии.
// steps<=0 трактуется как один шаг, чтобы случайный вызов не снёс схему.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.runMigrations(ctx, migrationDown, steps)
}

// MigrationStatus возвращает старшую применённую версию и количество
// применённых скриптов.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("postgres store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, schemaVersionsDDL); err != nil {
		return 0, 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	var (
		version int64
		count   int
	)
	row := s.db.QueryRowContext(queryCtx, `SELECT COALESCE(MAX(version), 0), COUNT(*) FROM schema_migrations`)
	if err := row.Scan(&version, &count); err != nil {
		return 0, 0, fmt.Errorf("read schema status: %w", err)
	}

	return version, count, nil
}

func (s *Store) runMigrations(ctx context.Context, direction migrationDirection, steps int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	scripts, err := collectSchemaScripts(catalogSchemaFS)
	if err != nil {
		return err
	}

	return s.withSchemaLock(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, schemaVersionsDDL); err != nil {
			return fmt.Errorf("ensure schema_migrations: %w", err)
		}

		switch direction {
		case migrationUp:
			return rollForward(ctx, conn, scripts, steps)
		case migrationDown:
			return rollBack(ctx, conn, scripts, steps)
		default:
			return fmt.Errorf("unknown migration direction %q", direction)
		}
	})
}

// withSchemaLock держит advisory-блокировку на время работы fn. Блокировка
// привязана к соединению, поэтому fn выполняется на том же conn.
func (s *Store) withSchemaLock(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", catalogSchemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", catalogSchemaLockKey)
	}()

	return fn(conn)
}

func rollForward(ctx context.Context, conn *sql.Conn, scripts []schemaScript, steps int) error {
	applied, err := appliedVersionSet(ctx, conn)
	if err != nil {
		return err
	}

	done := 0
	for _, script := range scripts {
		if applied[script.Version] {
			continue
		}
		if err := applyScript(ctx, conn, script, migrationUp); err != nil {
			return err
		}
		done++
		if steps > 0 && done >= steps {
			break
		}
	}

	return nil
}

func rollBack(ctx context.Context, conn *sql.Conn, scripts []schemaScript, steps int) error {
	byVersion := make(map[int64]schemaScript, len(scripts))
	for _, script := range scripts {
		byVersion[script.Version] = script
	}

	recent, err := recentAppliedVersions(ctx, conn, steps)
	if err != nil {
		return err
	}

	for _, version := range recent {
		script, ok := byVersion[version]
		if !ok {
			return fmt.Errorf("applied version %d has no matching script, cannot roll back", version)
		}
		if err := applyScript(ctx, conn, script, migrationDown); err != nil {
			return err
		}
	}

	return nil
}

// applyScript выполняет скрипт и запись в schema_migrations в одной транзакции:
// полуприменённая версия не должна оставаться в учёте.
func applyScript(ctx context.Context, conn *sql.Conn, script schemaScript, direction migrationDirection) error {
	body := script.Up
	record := `INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, NOW())`
	recordArgs := []interface{}{script.Version, script.Name}
	if direction == migrationDown {
		body = script.Down
		record = `DELETE FROM schema_migrations WHERE version = $1`
		recordArgs = []interface{}{script.Version}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %s %d_%s: %w", direction, script.Version, script.Name, err)
	}

	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply %s %d_%s: %w", direction, script.Version, script.Name, err)
	}
	if _, err := tx.ExecContext(ctx, record, recordArgs...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s %d_%s: %w", direction, script.Version, script.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s %d_%s: %w", direction, script.Version, script.Name, err)
	}
	return nil
}

func appliedVersionSet(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied versions: %w", err)
	}

	return applied, nil
}

func recentAppliedVersions(ctx context.Context, conn *sql.Conn, limit int) ([]int64, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent versions: %w", err)
	}
	defer rows.Close()

	versions := make([]int64, 0, limit)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan recent version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent versions: %w", err)
	}

	return versions, nil
}

// collectSchemaScripts читает каталог миграций и собирает пары up/down.
// Любая неполная или неоднозначная пара считается ошибкой сборки схемы.
func collectSchemaScripts(fsys fs.FS) ([]schemaScript, error) {
	files, err := fs.Glob(fsys, catalogSchemaGlob)
	if err != nil {
		return nil, fmt.Errorf("glob schema scripts: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("schema scripts not found")
	}

	pending := make(map[int64]*schemaScript)
	for _, file := range files {
		base := filepath.Base(file)
		parts := scriptNamePattern.FindStringSubmatch(base)
		if len(parts) != 4 {
			return nil, fmt.Errorf("schema script has unexpected name: %s", base)
		}

		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version of %s: %w", base, err)
		}
		name, direction := parts[2], parts[3]

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read schema script %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("schema script is empty: %s", base)
		}

		script, ok := pending[version]
		if !ok {
			script = &schemaScript{Version: version, Name: name}
			pending[version] = script
		} else if script.Name != name {
			return nil, fmt.Errorf("version %d is named both %s and %s", version, script.Name, name)
		}

		switch migrationDirection(direction) {
		case migrationUp:
			if script.Up != "" {
				return nil, fmt.Errorf("duplicate up script for version %d", version)
			}
			script.Up = body
		case migrationDown:
			if script.Down != "" {
				return nil, fmt.Errorf("duplicate down script for version %d", version)
			}
			script.Down = body
		}
	}

	versions := make([]int64, 0, len(pending))
	for version := range pending {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	scripts := make([]schemaScript, 0, len(versions))
	for _, version := range versions {
		script := pending[version]
		if script.Up == "" || script.Down == "" {
			return nil, fmt.Errorf("version %d_%s needs both up and down scripts", script.Version, script.Name)
		}
		scripts = append(scripts, *script)
	}

	return scripts, nil
}
