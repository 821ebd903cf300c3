package device

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Register applies the registration algorithm inside one transaction.
// An advisory transaction lock on the token serializes concurrent
// registrations of the same token, which is what preserves the
// one-active-record-per-token invariant under racing requests. Row locks
// alone cannot do this: two transactions registering a brand-new token
// both see zero rows and both insert, so the critical section is keyed on
// the token value itself, held until commit.
func (r *PostgresRepository) Register(ctx context.Context, d *Device) (*RegisterOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, d.Token); err != nil {
		return nil, fmt.Errorf("acquire token lock: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, user_id, fcm_token, device_type, device_name, is_active, last_used
		FROM user_devices
		WHERE fcm_token = $1
		FOR UPDATE
	`, d.Token)
	if err != nil {
		return nil, err
	}

	holders, err := scanDevices(rows)
	if err != nil {
		return nil, err
	}

	var exact *Device
	var activeOwner string
	for _, h := range holders {
		if h.UserID == d.UserID {
			exact = h
		}
		if h.Active && h.UserID != d.UserID {
			activeOwner = h.UserID
		}
	}

	outcome := &RegisterOutcome{}

	if exact != nil {
		// Same user re-registering the same token: refresh in place and
		// keep the existing device ID. If the token bounced through
		// another account in between, that holder's record goes inactive
		// here too.
		if activeOwner != "" {
			_, err = tx.Exec(ctx, `
				UPDATE user_devices SET is_active = FALSE
				WHERE fcm_token = $1 AND is_active AND user_id <> $2
			`, d.Token, d.UserID)
			if err != nil {
				return nil, err
			}
			outcome.PreviousOwner = activeOwner
		}

		_, err = tx.Exec(ctx, `
			UPDATE user_devices SET
				device_type = $2,
				device_name = $3,
				is_active = TRUE,
				last_used = $4
			WHERE id = $1
		`, exact.ID, d.Type, d.Name, d.LastUsed)
		if err != nil {
			return nil, err
		}

		exact.Type = d.Type
		exact.Name = d.Name
		exact.Active = true
		exact.LastUsed = d.LastUsed
		outcome.Device = exact
	} else {
		// The token moved to another account. Deactivate whoever holds
		// it; the record stays for audit, never deleted here.
		if activeOwner != "" {
			_, err = tx.Exec(ctx, `
				UPDATE user_devices SET is_active = FALSE
				WHERE fcm_token = $1 AND is_active
			`, d.Token)
			if err != nil {
				return nil, err
			}
			outcome.PreviousOwner = activeOwner
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO user_devices (id, user_id, fcm_token, device_type, device_name, is_active, last_used)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		`, d.ID, d.UserID, d.Token, d.Type, d.Name, d.LastUsed)
		if err != nil {
			return nil, err
		}

		d.Active = true
		outcome.Device = d
		outcome.Created = true
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return outcome, nil
}

// ListActiveByUser retrieves a user's active devices, most recently used first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*Device, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, fcm_token, device_type, device_name, is_active, last_used
		FROM user_devices
		WHERE user_id = $1 AND is_active
		ORDER BY last_used DESC
	`, userID)
	if err != nil {
		return nil, err
	}

	return scanDevices(rows)
}

// Deactivate marks a user's device inactive.
func (r *PostgresRepository) Deactivate(ctx context.Context, userID, deviceID string) error {
	query := `UPDATE user_devices SET is_active = FALSE WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, deviceID, userID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// scanDevices drains rows into device records.
func scanDevices(rows pgx.Rows) ([]*Device, error) {
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		var device Device
		err := rows.Scan(
			&device.ID,
			&device.UserID,
			&device.Token,
			&device.Type,
			&device.Name,
			&device.Active,
			&device.LastUsed,
		)
		if err != nil {
			return nil, err
		}
		devices = append(devices, &device)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return devices, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
