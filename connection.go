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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/leadflowhq/leadflow/cache"
	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/internal/notification"
	"github.com/leadflowhq/leadflow/model"
)

const connectionCacheTTL = 5 * time.Minute

// CreateConnection registers a webhook sender and returns the connection
// along with its initial signing secret. The secret is only ever returned
// here.
func (l *Leadflow) CreateConnection(ctx context.Context, conn model.Connection) (model.Connection, string, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return model.Connection{}, "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to generate connection secret", err)
	}
	conn.CurrentSecret = secret
	conn.ExternalID = model.GenerateUUIDWithSuffix("src")

	created, err := l.datasource.CreateConnection(ctx, conn)
	if err != nil {
		return model.Connection{}, "", err
	}
	return created, secret, nil
}

func (l *Leadflow) GetConnectionByID(ctx context.Context, id string) (*model.Connection, error) {
	return l.datasource.GetConnectionByID(ctx, id)
}

// getConnectionByExternalID is the hot-path lookup for inbound webhooks,
// served through the cache when one is configured.
func (l *Leadflow) getConnectionByExternalID(ctx context.Context, externalID string) (*model.Connection, error) {
	cacheKey := cache.ConnectionKey(externalID)

	if l.cache != nil {
		cached := model.Connection{}
		if err := l.cache.Get(ctx, cacheKey, &cached); err == nil && cached.ConnectionID != "" {
			return &cached, nil
		}
	}

	conn, err := l.datasource.GetConnectionByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, cacheKey, conn, connectionCacheTTL); err != nil {
			logrus.Warnf("failed to cache connection %s: %v", conn.ConnectionID, err)
		}
	}
	return conn, nil
}

// RotateSecret generates a fresh secret, demotes the current one into the
// grace window and returns the new value exactly once. Rotation is refused
// while a previous secret is still inside its grace window, so there are
// never more than two secrets that can verify.
func (l *Leadflow) RotateSecret(ctx context.Context, connectionID string) (string, error) {
	conf, err := config.Fetch()
	if err != nil {
		return "", err
	}

	conn, err := l.datasource.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return "", err
	}

	now := time.Now()
	if conn.PreviousSecretValid(now, conf.Webhook.GraceWindow()) {
		return "", apierror.NewAPIError(apierror.ErrConflict, "A previous secret is still within its grace window; retry after it expires", nil)
	}

	newSecret, err := GenerateSecret()
	if err != nil {
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to generate new secret", err)
	}

	err = l.datasource.UpdateConnectionSecrets(ctx, connectionID, newSecret, conn.CurrentSecret, now)
	if err != nil {
		return "", err
	}

	l.invalidateConnectionCache(ctx, conn.ExternalID)
	return newSecret, nil
}

// SweepExpiredSecrets is best-effort cleanup of previous secrets whose grace
// window has closed. Verification computes expiry itself and never waits for
// this sweep.
func (l *Leadflow) SweepExpiredSecrets(ctx context.Context) (int64, error) {
	conf, err := config.Fetch()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-conf.Webhook.GraceWindow())
	cleared, err := l.datasource.ClearExpiredPreviousSecrets(ctx, cutoff)
	if err != nil {
		notification.NotifyError(err)
		return 0, err
	}
	if cleared > 0 {
		logrus.Infof("cleared %d expired previous secrets", cleared)
	}
	return cleared, nil
}

func (l *Leadflow) invalidateConnectionCache(ctx context.Context, externalID string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, cache.ConnectionKey(externalID)); err != nil {
		logrus.Warnf("failed to invalidate connection cache: %v", err)
	}
}

// postIngestActions updates connection bookkeeping outside the request's
// critical path.
func (l *Leadflow) postIngestActions(connectionID string, processingErr error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var err error
		if processingErr != nil {
			err = l.datasource.RecordConnectionError(ctx, connectionID, processingErr.Error(), time.Now())
		} else {
			err = l.datasource.TouchConnectionSeen(ctx, connectionID, time.Now())
		}
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}
