package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/kantinpay/kantin/ledger/models"
	"github.com/lib/pq"
)

var ErrConflict = fmt.Errorf("conflict")

const pgSchema = `
CREATE SCHEMA IF NOT EXISTS ledger;
CREATE TABLE IF NOT EXISTS ledger.cards (
    uid              text PRIMARY KEY,
    position         integer NOT NULL,
    name             text NOT NULL,
    daily_allotment  bigint NOT NULL CHECK (daily_allotment >= 0),
    balance          bigint NOT NULL CHECK (balance >= 0),
    last_reset_date  char(8) NOT NULL,
    registered_at    timestamptz NOT NULL,
    last_tx_id       text,
    last_tx_amount   bigint,
    last_tx_at       timestamptz
);`

// PGStore saves the card set into ledger.cards. Every Save replaces the table
// contents inside one transaction.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// OpenPG opens and pings a postgres connection pool.
func OpenPG(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the schema when it is missing.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, pgSchema); err != nil {
		return fmt.Errorf("migrating ledger schema: %w", err)
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context) ([]models.Card, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT uid, name, daily_allotment, balance, last_reset_date, registered_at,
               last_tx_id, last_tx_amount, last_tx_at
          FROM ledger.cards
         ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying cards: %w", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		var c models.Card
		var txID sql.NullString
		var txAmount sql.NullInt64
		var txAt sql.NullTime
		if err := rows.Scan(&c.UID, &c.Name, &c.DailyAllotment, &c.Balance, &c.LastResetDate, &c.RegisteredAt, &txID, &txAmount, &txAt); err != nil {
			return nil, fmt.Errorf("scanning card: %w", err)
		}
		if txAmount.Valid && txAt.Valid {
			c.LastTransaction = &models.LastTransaction{ID: txID.String, Amount: txAmount.Int64, Timestamp: txAt.Time}
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (s *PGStore) Save(ctx context.Context, cards []models.Card) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `set local statement_timeout = '3s'`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger.cards`); err != nil {
		return fmt.Errorf("clearing cards: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO ledger.cards(uid, position, name, daily_allotment, balance, last_reset_date,
                                 registered_at, last_tx_id, last_tx_amount, last_tx_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range cards {
		var txID sql.NullString
		var txAmount sql.NullInt64
		var txAt sql.NullTime
		if c.LastTransaction != nil {
			txID = sql.NullString{String: c.LastTransaction.ID, Valid: c.LastTransaction.ID != ""}
			txAmount = sql.NullInt64{Int64: c.LastTransaction.Amount, Valid: true}
			txAt = sql.NullTime{Time: c.LastTransaction.Timestamp, Valid: true}
		}
		_, err := stmt.ExecContext(ctx, c.UID, i, c.Name, c.DailyAllotment, c.Balance, c.LastResetDate, c.RegisteredAt, txID, txAmount, txAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("card %s: %w", c.UID, ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("inserting card %s: %w", c.UID, err)
		}
	}
	return tx.Commit()
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PGStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
