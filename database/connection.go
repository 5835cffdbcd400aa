/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/model"
	"github.com/lib/pq"
)

func (d Datasource) CreateConnection(ctx context.Context, conn model.Connection) (model.Connection, error) {
	metaDataJSON, err := json.Marshal(conn.MetaData)
	if err != nil {
		return model.Connection{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	conn.ConnectionID = model.GenerateUUIDWithSuffix("con")
	conn.CreatedAt = time.Now()
	if conn.Status == "" {
		conn.Status = model.ConnectionStatusActive
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO connections (connection_id, account_id, name, external_id, current_secret, status, endpoint_url, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, conn.ConnectionID, conn.AccountID, conn.Name, conn.ExternalID, conn.CurrentSecret, conn.Status, conn.EndpointURL, conn.CreatedAt, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.Connection{}, apierror.NewAPIError(apierror.ErrConflict, "Connection with this external ID already exists", err)
			default:
				return model.Connection{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.Connection{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create connection", err)
	}

	return conn, nil
}

func (d Datasource) GetConnectionByID(ctx context.Context, id string) (*model.Connection, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT connection_id, account_id, name, external_id, current_secret, previous_secret, secret_rotated_at, status, endpoint_url, last_seen_at, last_error, last_error_at, created_at
		FROM connections
		WHERE connection_id = $1
	`, id)

	return scanConnection(row)
}

func (d Datasource) GetConnectionByExternalID(ctx context.Context, externalID string) (*model.Connection, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT connection_id, account_id, name, external_id, current_secret, previous_secret, secret_rotated_at, status, endpoint_url, last_seen_at, last_error, last_error_at, created_at
		FROM connections
		WHERE external_id = $1
	`, externalID)

	return scanConnection(row)
}

func scanConnection(row *sql.Row) (*model.Connection, error) {
	conn := model.Connection{}
	var previousSecret, endpointURL, lastError sql.NullString
	var rotatedAt, lastSeenAt, lastErrorAt sql.NullTime

	err := row.Scan(&conn.ConnectionID, &conn.AccountID, &conn.Name, &conn.ExternalID, &conn.CurrentSecret, &previousSecret, &rotatedAt, &conn.Status, &endpointURL, &lastSeenAt, &lastError, &lastErrorAt, &conn.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Connection not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve connection", err)
	}

	conn.PreviousSecret = previousSecret.String
	conn.EndpointURL = endpointURL.String
	conn.LastError = lastError.String
	if rotatedAt.Valid {
		conn.SecretRotatedAt = &rotatedAt.Time
	}
	if lastSeenAt.Valid {
		conn.LastSeenAt = &lastSeenAt.Time
	}
	if lastErrorAt.Valid {
		conn.LastErrorAt = &lastErrorAt.Time
	}

	return &conn, nil
}

func (d Datasource) UpdateConnectionSecrets(ctx context.Context, connectionID, currentSecret, previousSecret string, rotatedAt time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE connections
		SET current_secret = $2, previous_secret = NULLIF($3, ''), secret_rotated_at = $4
		WHERE connection_id = $1
	`, connectionID, currentSecret, previousSecret, rotatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to rotate connection secret", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to rotate connection secret", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Connection not found", nil)
	}
	return nil
}

// ClearExpiredPreviousSecrets nulls previous secrets whose grace window ended
// before the cutoff. Verification never depends on this sweep; it only keeps
// dead secrets from lingering in the table.
func (d Datasource) ClearExpiredPreviousSecrets(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE connections
		SET previous_secret = NULL
		WHERE previous_secret IS NOT NULL AND secret_rotated_at < $1
	`, cutoff)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear expired secrets", err)
	}
	return result.RowsAffected()
}

func (d Datasource) TouchConnectionSeen(ctx context.Context, connectionID string, at time.Time) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE connections SET last_seen_at = $2 WHERE connection_id = $1
	`, connectionID, at)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update connection last seen", err)
	}
	return nil
}

func (d Datasource) RecordConnectionError(ctx context.Context, connectionID, message string, at time.Time) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE connections SET last_error = $2, last_error_at = $3 WHERE connection_id = $1
	`, connectionID, message, at)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record connection error", err)
	}
	return nil
}
