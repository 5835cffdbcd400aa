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

package model

import "time"

// Connection status values.
const (
	ConnectionStatusActive   = "active"
	ConnectionStatusInactive = "inactive"
)

// Connection is one registered webhook sender. ExternalID is the identifier
// the sender puts on every request; CurrentSecret signs its payloads.
// PreviousSecret is only populated during a rotation grace window.
type Connection struct {
	ID              int64                  `json:"-"`
	ConnectionID    string                 `json:"connection_id"`
	AccountID       string                 `json:"account_id"`
	Name            string                 `json:"name"`
	ExternalID      string                 `json:"external_id"`
	CurrentSecret   string                 `json:"-"`
	PreviousSecret  string                 `json:"-"`
	SecretRotatedAt *time.Time             `json:"secret_rotated_at,omitempty"`
	Status          string                 `json:"status"`
	EndpointURL     string                 `json:"endpoint_url"`
	LastSeenAt      *time.Time             `json:"last_seen_at,omitempty"`
	LastError       string                 `json:"last_error,omitempty"`
	LastErrorAt     *time.Time             `json:"last_error_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	MetaData        map[string]interface{} `json:"meta_data,omitempty"`
}

// IsActive reports whether the connection may receive events.
func (c *Connection) IsActive() bool {
	return c.Status == ConnectionStatusActive
}

// PreviousSecretValid reports whether the previous secret is still inside its
// grace window at the given instant. The check is computed from
// SecretRotatedAt rather than relying on a scheduled expiry, so it survives
// process restarts.
func (c *Connection) PreviousSecretValid(now time.Time, grace time.Duration) bool {
	if c.PreviousSecret == "" || c.SecretRotatedAt == nil {
		return false
	}
	return now.Before(c.SecretRotatedAt.Add(grace))
}
