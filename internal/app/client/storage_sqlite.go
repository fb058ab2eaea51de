package client

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"confsync/internal/domain/userdata"
)

// SQLiteQueue - очередь отложенных действий в локальной базе SQLite.
// Переживает перезапуск клиента, в отличие от MemoryQueue.
type SQLiteQueue struct {
	db *sql.DB
}

func NewSQLiteQueue(path string) (*SQLiteQueue, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}

	queue := &SQLiteQueue{db: db}

	// Создаем таблицы
	if err := queue.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return queue, nil
}

func (s *SQLiteQueue) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			attribute TEXT NOT NULL,
			key TEXT NOT NULL,
			payload BLOB,
			local_timestamp INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_pending_attribute ON pending_actions(attribute);
	`)

	return err
}

func (s *SQLiteQueue) SavePending(action *userdata.PendingAction) error {
	res, err := s.db.Exec(`
		INSERT INTO pending_actions (attribute, key, payload, local_timestamp, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(action.Attribute), action.Key, action.Payload, action.LocalTimestamp,
		time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("ошибка сохранения действия: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("ошибка получения идентификатора действия: %w", err)
	}
	action.ID = id

	return nil
}

func (s *SQLiteQueue) ListPending() ([]*userdata.PendingAction, error) {
	rows, err := s.db.Query(`
		SELECT id, attribute, key, payload, local_timestamp
		FROM pending_actions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var actions []*userdata.PendingAction
	for rows.Next() {
		var action userdata.PendingAction
		var attribute string

		if err := rows.Scan(&action.ID, &attribute, &action.Key,
			&action.Payload, &action.LocalTimestamp); err != nil {
			return nil, fmt.Errorf("ошибка сканирования действия: %w", err)
		}
		action.Attribute = userdata.Attribute(attribute)

		actions = append(actions, &action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения результатов: %w", err)
	}

	return actions, nil
}

func (s *SQLiteQueue) DeletePending(id int64) error {
	_, err := s.db.Exec("DELETE FROM pending_actions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("ошибка удаления действия: %w", err)
	}

	return nil
}

func (s *SQLiteQueue) CountPending() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM pending_actions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета действий: %w", err)
	}

	return count, nil
}

func (s *SQLiteQueue) Close() error {
	return s.db.Close()
}
