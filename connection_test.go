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

package leadflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/model"
)

func TestCreateConnection(t *testing.T) {
	l, mock := newTestLeadflow(t)

	mock.ExpectExec("INSERT INTO connections").
		WithArgs(sqlmock.AnyArg(), "acct_1", "storefront", sqlmock.AnyArg(), sqlmock.AnyArg(), "active", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, secret, err := l.CreateConnection(context.Background(), model.Connection{
		AccountID: "acct_1",
		Name:      "storefront",
	})
	assert.NoError(t, err)
	assert.Contains(t, created.ConnectionID, "con_")
	assert.Contains(t, created.ExternalID, "src_")
	assert.True(t, strings.HasPrefix(secret, "whsec_"))
	assert.Equal(t, secret, created.CurrentSecret)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRotateSecretIssuesNewSecret(t *testing.T) {
	l, mock := newTestLeadflow(t)

	mock.ExpectQuery("SELECT (.+) FROM connections").
		WithArgs("con_1234567").
		WillReturnRows(activeConnectionRow("src_1"))

	mock.ExpectExec("UPDATE connections").
		WithArgs("con_1234567", sqlmock.AnyArg(), testSecret, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	newSecret, err := l.RotateSecret(context.Background(), "con_1234567")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(newSecret, "whsec_"))
	assert.NotEqual(t, testSecret, newSecret)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRotateSecretRejectedDuringGraceWindow(t *testing.T) {
	l, mock := newTestLeadflow(t)

	rotatedAt := time.Now().Add(-1 * time.Hour)
	rows := sqlmock.NewRows(connectionColumns()).
		AddRow("con_1234567", "acct_1", "shop", "src_1", testSecret, "whsec_previous", rotatedAt, "active", nil, nil, nil, nil, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM connections").
		WithArgs("con_1234567").
		WillReturnRows(rows)

	_, err := l.RotateSecret(context.Background(), "con_1234567")
	assert.True(t, apierror.Is(err, apierror.ErrConflict))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRotateSecretAllowedAfterGraceWindowExpires(t *testing.T) {
	l, mock := newTestLeadflow(t)

	// Previous secret exists but its window closed; rotation may proceed even
	// though no sweep has nulled it yet.
	rotatedAt := time.Now().Add(-25 * time.Hour)
	rows := sqlmock.NewRows(connectionColumns()).
		AddRow("con_1234567", "acct_1", "shop", "src_1", testSecret, "whsec_previous", rotatedAt, "active", nil, nil, nil, nil, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM connections").
		WithArgs("con_1234567").
		WillReturnRows(rows)

	mock.ExpectExec("UPDATE connections").
		WillReturnResult(sqlmock.NewResult(1, 1))

	newSecret, err := l.RotateSecret(context.Background(), "con_1234567")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(newSecret, "whsec_"))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSweepExpiredSecrets(t *testing.T) {
	l, mock := newTestLeadflow(t)

	mock.ExpectExec("UPDATE connections").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	cleared, err := l.SweepExpiredSecrets(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(3), cleared)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPreviousSecretValid(t *testing.T) {
	now := time.Now()
	rotated := now.Add(-1 * time.Hour)

	conn := model.Connection{PreviousSecret: "whsec_old", SecretRotatedAt: &rotated}
	assert.True(t, conn.PreviousSecretValid(now, 24*time.Hour))
	assert.False(t, conn.PreviousSecretValid(now, 30*time.Minute))

	empty := model.Connection{}
	assert.False(t, empty.PreviousSecretValid(now, 24*time.Hour))
}
