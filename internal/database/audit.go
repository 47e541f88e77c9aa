package database

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/blake2b"
)

const (
	OutcomeResolved = "resolved"
	OutcomeMissing  = "missing"
	OutcomeRejected = "rejected"
	OutcomeFault    = "fault"
)

// Verification is one audited identity resolution. Tokens are never stored;
// Fingerprint identifies repeated presentations of the same token.
type Verification struct {
	ID          int64     `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	UserID      string    `json:"userId,omitempty"`
	Outcome     string    `json:"outcome"`
	Status      int       `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Fingerprint is the hex blake2b-256 digest of token.
func Fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *SQLiteStore) InsertVerification(
	v *Verification,
) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	result, err := s.db.Exec(`
		INSERT INTO verification (fingerprint, user_id, outcome, status, created_at)
		VALUES (?1, ?2, ?3, ?4, ?5);`,
		v.Fingerprint,
		v.UserID,
		v.Outcome,
		v.Status,
		v.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("couldn't insert into verification: %v", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		v.ID = id
	}
	return nil
}

// RecentVerifications returns up to limit rows, newest first.
func (s *SQLiteStore) RecentVerifications(
	limit int,
) (
	[]Verification,
	error,
) {
	rows, err := s.db.Query(`
		SELECT id, fingerprint, user_id, outcome, status, created_at
		FROM verification
		ORDER BY created_at DESC, id DESC
		LIMIT ?1;`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't query verification: %v", err)
	}
	defer rows.Close()

	verifications := []Verification{}
	for rows.Next() {
		var (
			v         Verification
			userID    *string
			createdAt int64
		)
		if err := rows.Scan(&v.ID, &v.Fingerprint, &userID, &v.Outcome, &v.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("couldn't scan verification: %v", err)
		}
		if userID != nil {
			v.UserID = *userID
		}
		v.CreatedAt = time.UnixMilli(createdAt)
		verifications = append(verifications, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("couldn't read verification rows: %v", err)
	}
	return verifications, nil
}

// PruneVerifications deletes rows created before cutoff and reports how
// many were removed.
func (s *SQLiteStore) PruneVerifications(
	cutoff time.Time,
) (
	int64,
	error,
) {
	result, err := s.db.Exec(`
		DELETE FROM verification
		WHERE created_at < ?1;`,
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("couldn't delete from verification: %v", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("couldn't count pruned verifications: %v", err)
	}
	if count > 0 {
		log.Printf("database: pruned %d verifications\n", count)
	}
	return count, nil
}

// RunPruner prunes rows older than maxAge once immediately and then every
// interval until ctx is done.
func (s *SQLiteStore) RunPruner(
	ctx context.Context,
	maxAge time.Duration,
	interval time.Duration,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.PruneVerifications(time.Now().Add(-maxAge)); err != nil {
			log.Printf("database: %v\n", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
