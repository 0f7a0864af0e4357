package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/careloop/doctorbooking/internal/domain/entities"
	"github.com/careloop/doctorbooking/internal/domain/repositories"
	"github.com/careloop/doctorbooking/internal/infrastructure/clients/postgres"
	apperrors "github.com/careloop/doctorbooking/pkg/errors"
)

// SessionAdapter implements the SessionRepository interface. Every
// mutation is a conditional statement against the store; no session
// state lives in process memory.
type SessionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSessionAdapter creates a new session adapter
func NewSessionAdapter(client *postgres.Client) repositories.SessionRepository {
	return &SessionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Activate deactivates any existing session for the user/device and
// inserts the new one
func (a *SessionAdapter) Activate(ctx context.Context, session *entities.UserSession) error {
	deactivateQuery, deactivateArgs, err := a.db.Update("user_sessions").
		Set(goqu.Record{"is_active": false}).
		Where(goqu.Ex{
			"user_id":   session.UserID,
			"device_id": session.DeviceID,
			"is_active": true,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build deactivate query", err)
	}

	insertQuery, insertArgs, err := a.db.Insert("user_sessions").Rows(goqu.Record{
		"id":                 session.ID,
		"user_id":            session.UserID,
		"refresh_token_hash": session.RefreshTokenHash,
		"device_id":          session.DeviceID,
		"is_active":          session.IsActive,
		"last_used_at":       session.LastUsedAt,
		"created_at":         session.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	return a.client.WithinTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deactivateQuery, deactivateArgs...); err != nil {
			return apperrors.NewInternalError("failed to deactivate previous session", err)
		}
		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			return apperrors.NewInternalError("failed to create session", err)
		}
		return nil
	})
}

// Rotate swaps the refresh token hash only if the stored hash still
// matches oldHash on an active session
func (a *SessionAdapter) Rotate(ctx context.Context, userID, oldHash, newHash string, now time.Time) error {
	query, args, err := a.db.Update("user_sessions").
		Set(goqu.Record{
			"refresh_token_hash": newHash,
			"last_used_at":       now,
		}).
		Where(goqu.Ex{
			"user_id":            userID,
			"refresh_token_hash": oldHash,
			"is_active":          true,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build rotate query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to rotate session", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rows == 0 {
		return apperrors.NewConflictError("session token already rotated or revoked")
	}
	return nil
}

// Touch stamps last_used_at on the user's active session
func (a *SessionAdapter) Touch(ctx context.Context, userID string, now time.Time) error {
	query, args, err := a.db.Update("user_sessions").
		Set(goqu.Record{"last_used_at": now}).
		Where(goqu.Ex{"user_id": userID, "is_active": true}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build touch query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to touch session", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("no active session for user %s", userID))
	}
	return nil
}

// Deactivate terminates the user's active session
func (a *SessionAdapter) Deactivate(ctx context.Context, userID string) error {
	query, args, err := a.db.Update("user_sessions").
		Set(goqu.Record{"is_active": false}).
		Where(goqu.Ex{"user_id": userID, "is_active": true}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build deactivate query", err)
	}

	if _, err = a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to deactivate session", err)
	}
	return nil
}
