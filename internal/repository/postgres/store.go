// Package postgres implements the service repositories against PostgreSQL
// using database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
)

// Store bundles the repositories that share one connection pool.
type Store struct {
	*TxManager
	Guests       *GuestRepo
	Reservations *ReservationRepo
	Vendors      *VendorRepo
	Ledger       *LedgerRepo

	db *sql.DB
}

// New wires every repository to db. The caller owns db.
func New(db *sql.DB) *Store {
	return &Store{
		TxManager:    NewTxManager(db),
		Guests:       NewGuestRepo(db),
		Reservations: NewReservationRepo(db),
		Vendors:      NewVendorRepo(db),
		Ledger:       NewLedgerRepo(db),
		db:           db,
	}
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return classify("ping", s.db.PingContext(ctx))
}
