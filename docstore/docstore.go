// Package docstore persists user profiles and pipeline records in SQLite.
// It implements the IdentityStore and RecordIndex interfaces; an in-memory
// variant backs tests.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/invisicipher/secure-image-backend/interfaces"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	address     TEXT PRIMARY KEY,
	username    TEXT NOT NULL,
	role        TEXT NOT NULL,
	can_read    INTEGER NOT NULL,
	can_write   INTEGER NOT NULL,
	can_delete  INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_records (
	cid             TEXT PRIMARY KEY,
	patient_address TEXT NOT NULL,
	uploaded_by     TEXT NOT NULL,
	block_number    INTEGER NOT NULL,
	tx_hash         TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_patient ON pipeline_records(patient_address);
`

// DB wraps the SQLite connection and implements both IdentityStore and
// RecordIndex.
type DB struct {
	conn *sql.DB
	log  *slog.Logger
}

// New opens (creating if needed) the SQLite database at dbPath and applies
// the schema.
func New(dbPath string, log *slog.Logger) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: conn, log: log}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Create persists a new profile. Returns interfaces.ErrProfileExists if the
// address is already registered.
func (db *DB) Create(ctx context.Context, profile interfaces.Profile) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (address, username, role, can_read, can_write, can_delete, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		profile.Address.String(),
		profile.Username,
		string(profile.Role),
		boolToInt(profile.Permissions.CanRead),
		boolToInt(profile.Permissions.CanWrite),
		boolToInt(profile.Permissions.CanDelete),
		profile.CreatedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return interfaces.ErrProfileExists
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	db.log.Debug("Profile created",
		slog.String("address", profile.Address.String()),
		slog.String("role", string(profile.Role)))
	return nil
}

// Get loads the profile for an address. Returns interfaces.ErrProfileNotFound
// if the address is not registered.
func (db *DB) Get(ctx context.Context, address interfaces.WalletAddress) (interfaces.Profile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT address, username, role, can_read, can_write, can_delete, created_at
		 FROM profiles WHERE address = ?`,
		address.String(),
	)

	var (
		addrHex                      string
		profile                      interfaces.Profile
		canRead, canWrite, canDelete int
		role                         string
		createdAt                    time.Time
	)
	err := row.Scan(&addrHex, &profile.Username, &role, &canRead, &canWrite, &canDelete, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return interfaces.Profile{}, interfaces.ErrProfileNotFound
		}
		return interfaces.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}

	addr, err := interfaces.NewWalletAddressFromHex(addrHex)
	if err != nil {
		return interfaces.Profile{}, fmt.Errorf("corrupt address in profiles table: %w", err)
	}

	profile.Address = addr
	profile.Role = interfaces.Role(role)
	profile.Permissions = interfaces.Permissions{
		CanRead:   canRead != 0,
		CanWrite:  canWrite != 0,
		CanDelete: canDelete != 0,
	}
	profile.CreatedAt = createdAt
	return profile, nil
}

// Insert adds a pipeline record to the local index. The CID is the primary
// key; re-inserting the same CID replaces the row.
func (db *DB) Insert(ctx context.Context, record interfaces.PipelineRecord) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO pipeline_records (cid, patient_address, uploaded_by, block_number, tx_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(record.CID),
		record.PatientAddress.String(),
		record.UploadedBy.String(),
		record.BlockNumber,
		record.TxHash,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pipeline record: %w", err)
	}
	return nil
}

// ByPatient returns all records for a patient address, newest first.
func (db *DB) ByPatient(ctx context.Context, patient interfaces.WalletAddress) ([]interfaces.PipelineRecord, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT cid, patient_address, uploaded_by, block_number, tx_hash, created_at
		 FROM pipeline_records WHERE patient_address = ? ORDER BY created_at DESC`,
		patient.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline records: %w", err)
	}
	defer rows.Close()

	var records []interfaces.PipelineRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ByCID looks up the record anchored under a CID. The second return value
// reports whether the index has the record.
func (db *DB) ByCID(ctx context.Context, cid interfaces.CID) (interfaces.PipelineRecord, bool, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT cid, patient_address, uploaded_by, block_number, tx_hash, created_at
		 FROM pipeline_records WHERE cid = ?`,
		string(cid),
	)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return interfaces.PipelineRecord{}, false, nil
		}
		return interfaces.PipelineRecord{}, false, err
	}
	return record, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (interfaces.PipelineRecord, error) {
	var (
		record               interfaces.PipelineRecord
		cid, patient, uplBy  string
		createdAt            time.Time
	)
	if err := row.Scan(&cid, &patient, &uplBy, &record.BlockNumber, &record.TxHash, &createdAt); err != nil {
		return interfaces.PipelineRecord{}, err
	}

	patientAddr, err := interfaces.NewWalletAddressFromHex(patient)
	if err != nil {
		return interfaces.PipelineRecord{}, fmt.Errorf("corrupt patient address in pipeline_records: %w", err)
	}
	uploadedBy, err := interfaces.NewWalletAddressFromHex(uplBy)
	if err != nil {
		return interfaces.PipelineRecord{}, fmt.Errorf("corrupt uploader address in pipeline_records: %w", err)
	}

	record.CID = interfaces.CID(cid)
	record.PatientAddress = patientAddr
	record.UploadedBy = uploadedBy
	record.CreatedAt = createdAt
	return record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
