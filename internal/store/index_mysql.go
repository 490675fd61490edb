package store

import (
	"context"
	"time"

	"swfdiff/internal/common/db"
	appErr "swfdiff/pkg/errors"
)

const failureTableDDL = `CREATE TABLE IF NOT EXISTS swfdiff_failures (
	fingerprint   CHAR(64)        NOT NULL PRIMARY KEY,
	reason        VARCHAR(32)     NOT NULL,
	seed          BIGINT UNSIGNED NOT NULL,
	swf_size      INT             NOT NULL,
	native_status VARCHAR(32)     NOT NULL,
	oracle_status VARCHAR(32)     NOT NULL,
	first_seen    DATETIME(6)     NOT NULL,
	last_seen     DATETIME(6)     NOT NULL,
	duplicates    BIGINT          NOT NULL DEFAULT 1,
	KEY idx_first_seen (first_seen)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const (
	insertFailureSQL = `INSERT INTO swfdiff_failures
	(fingerprint, reason, seed, swf_size, native_status, oracle_status, first_seen, last_seen, duplicates)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
	ON DUPLICATE KEY UPDATE duplicates = duplicates + 1, last_seen = GREATEST(last_seen, VALUES(last_seen))`

	selectFailureColumns = `SELECT fingerprint, reason, seed, swf_size, native_status, oracle_status, first_seen, last_seen, duplicates FROM swfdiff_failures`
)

// MySQLIndex keeps records in a MySQL table keyed by fingerprint.
type MySQLIndex struct {
	db db.Database
}

// NewMySQLIndex creates the table if it does not exist yet.
func NewMySQLIndex(ctx context.Context, database db.Database) (*MySQLIndex, error) {
	if _, err := database.Exec(ctx, failureTableDDL); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "create failure table")
	}
	return &MySQLIndex{db: database}, nil
}

func (x *MySQLIndex) Insert(ctx context.Context, rec FailureRecord) (FailureRecord, bool, error) {
	var (
		stored  FailureRecord
		created bool
	)
	err := x.db.Transaction(ctx, func(tx db.Querier) error {
		res, err := tx.Exec(ctx, insertFailureSQL,
			rec.Fingerprint, rec.Reason, rec.Seed, rec.SWFSize,
			rec.NativeStatus, rec.OracleStatus, rec.FirstSeen.UTC(), rec.LastSeen.UTC())
		if err != nil {
			return err
		}
		// MySQL reports 1 affected row for an insert and 2 for an update.
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = affected == 1
		stored, err = scanRecord(tx.QueryRow(ctx, selectFailureColumns+` WHERE fingerprint = ?`, rec.Fingerprint))
		return err
	})
	if err != nil {
		return FailureRecord{}, false, appErr.Wrapf(err, appErr.DatabaseError, "insert failure record")
	}
	return stored, created, nil
}

func (x *MySQLIndex) Get(ctx context.Context, fingerprint string) (FailureRecord, error) {
	rec, err := scanRecord(x.db.QueryRow(ctx, selectFailureColumns+` WHERE fingerprint = ?`, fingerprint))
	if db.IsNoRows(err) {
		return FailureRecord{}, appErr.Newf(appErr.FailureNotFound, "failure %s not found", fingerprint)
	}
	if err != nil {
		return FailureRecord{}, appErr.Wrapf(err, appErr.DatabaseError, "get failure record")
	}
	return rec, nil
}

func (x *MySQLIndex) List(ctx context.Context, offset, limit int) ([]FailureRecord, int64, error) {
	var total int64
	if err := x.db.QueryRow(ctx, `SELECT COUNT(*) FROM swfdiff_failures`).Scan(&total); err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "count failures")
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = int(total)
	}
	rows, err := x.db.Query(ctx, selectFailureColumns+` ORDER BY first_seen DESC, fingerprint LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "list failures")
	}
	defer rows.Close()

	records := make([]FailureRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "scan failure record")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.DatabaseError, "iterate failures")
	}
	return records, total, nil
}

func (x *MySQLIndex) Close() error {
	return x.db.Close()
}

func scanRecord(row db.Row) (FailureRecord, error) {
	var (
		rec                 FailureRecord
		firstSeen, lastSeen time.Time
	)
	err := row.Scan(&rec.Fingerprint, &rec.Reason, &rec.Seed, &rec.SWFSize,
		&rec.NativeStatus, &rec.OracleStatus, &firstSeen, &lastSeen, &rec.Duplicates)
	if err != nil {
		return FailureRecord{}, err
	}
	rec.FirstSeen = firstSeen.UTC()
	rec.LastSeen = lastSeen.UTC()
	return rec, nil
}
