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
	"database/sql"
	"log"
	"sync"

	"github.com/leadflowhq/leadflow/cache"

	"github.com/leadflowhq/leadflow/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: nil}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createConnectionTable(db)
	if err != nil {
		return nil, err
	}
	err = createWebhookEventTable(db)
	if err != nil {
		return nil, err
	}
	err = createCommerceTables(db)
	if err != nil {
		return nil, err
	}
	err = createContactTable(db)
	if err != nil {
		return nil, err
	}
	err = createAgentTables(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createConnectionTable creates a PostgreSQL table for the Connection struct
func createConnectionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS connections (
			id SERIAL PRIMARY KEY,
			connection_id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL,
			name TEXT,
			external_id TEXT NOT NULL UNIQUE,
			current_secret TEXT NOT NULL,
			previous_secret TEXT,
			secret_rotated_at TIMESTAMP,
			status TEXT NOT NULL DEFAULT 'active',
			endpoint_url TEXT,
			last_seen_at TIMESTAMP,
			last_error TEXT,
			last_error_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("Error creating connections table: %v", err)
	}
	return err
}

// createWebhookEventTable creates a PostgreSQL table for the WebhookEvent struct.
// The unique index on event_id is the idempotency arbitration point.
func createWebhookEventTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS webhook_events (
			id SERIAL PRIMARY KEY,
			event_id TEXT NOT NULL UNIQUE,
			connection_id TEXT NOT NULL REFERENCES connections(connection_id),
			account_id TEXT NOT NULL,
			event_type TEXT,
			raw_payload BYTEA,
			signature_valid BOOLEAN NOT NULL DEFAULT FALSE,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			processed_at TIMESTAMP,
			error TEXT,
			retry_count INT NOT NULL DEFAULT 0,
			received_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating webhook_events table: %v", err)
	}
	return err
}

// createCommerceTables creates the leads, orders and checkout_events tables.
func createCommerceTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS leads (
			id SERIAL PRIMARY KEY,
			lead_id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL,
			email TEXT NOT NULL,
			name TEXT,
			phone TEXT,
			source TEXT,
			utm_source TEXT,
			utm_medium TEXT,
			utm_campaign TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating leads table: %v", err)
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL UNIQUE,
			source_order_id TEXT NOT NULL,
			account_id TEXT NOT NULL,
			email TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			total NUMERIC NOT NULL DEFAULT 0,
			currency TEXT,
			utm_source TEXT,
			utm_medium TEXT,
			utm_campaign TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (account_id, source_order_id)
		)
	`)
	if err != nil {
		log.Printf("Error creating orders table: %v", err)
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS checkout_events (
			id SERIAL PRIMARY KEY,
			checkout_id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL,
			email TEXT,
			step TEXT NOT NULL,
			source_order_id TEXT,
			value NUMERIC NOT NULL DEFAULT 0,
			occurred_at TIMESTAMP NOT NULL DEFAULT NOW(),
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating checkout_events table: %v", err)
	}
	return err
}

// createContactTable creates a PostgreSQL table for the Contact struct
func createContactTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS contacts (
			id SERIAL PRIMARY KEY,
			contact_id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL,
			email TEXT NOT NULL,
			name TEXT,
			phone TEXT,
			contact_type TEXT,
			source TEXT,
			total_spent NUMERIC NOT NULL DEFAULT 0,
			total_orders BIGINT NOT NULL DEFAULT 0,
			lead_count BIGINT NOT NULL DEFAULT 0,
			first_seen TIMESTAMP NOT NULL DEFAULT NOW(),
			last_seen TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (account_id, email)
		)
	`)
	if err != nil {
		log.Printf("Error creating contacts table: %v", err)
	}
	return err
}

// createAgentTables creates the agent_configs, agent_executions, sync_status
// tables and the read-side snapshot tables maintained by the external sync.
func createAgentTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_configs (
			id SERIAL PRIMARY KEY,
			account_id TEXT NOT NULL UNIQUE,
			fatigue_frequency DOUBLE PRECISION NOT NULL DEFAULT 0,
			high_spend_threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
			recent_launch_days INT NOT NULL DEFAULT 0,
			max_recs_per_batch INT NOT NULL DEFAULT 0,
			min_spend DOUBLE PRECISION NOT NULL DEFAULT 0,
			min_impressions BIGINT NOT NULL DEFAULT 0,
			max_data_age_hours INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating agent_configs table: %v", err)
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_executions (
			id SERIAL PRIMARY KEY,
			execution_id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL,
			execution_type TEXT NOT NULL,
			entity_id TEXT,
			before_state JSONB,
			after_state JSONB,
			reason TEXT,
			risk_level TEXT,
			approved_by TEXT,
			status TEXT NOT NULL,
			execution_error TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating agent_executions table: %v", err)
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sync_status (
			account_id TEXT PRIMARY KEY,
			last_synced_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'completed'
		)
	`)
	if err != nil {
		log.Printf("Error creating sync_status table: %v", err)
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS campaigns (
			campaign_id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			name TEXT,
			status TEXT
		);
		CREATE TABLE IF NOT EXISTS ad_sets (
			adset_id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL,
			account_id TEXT NOT NULL,
			name TEXT,
			status TEXT
		);
		CREATE TABLE IF NOT EXISTS ads (
			ad_id TEXT PRIMARY KEY,
			adset_id TEXT NOT NULL,
			account_id TEXT NOT NULL,
			name TEXT,
			status TEXT,
			launched_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS ad_insights (
			id SERIAL PRIMARY KEY,
			ad_id TEXT NOT NULL,
			account_id TEXT NOT NULL,
			date_preset TEXT NOT NULL,
			spend NUMERIC NOT NULL DEFAULT 0,
			leads BIGINT NOT NULL DEFAULT 0,
			clicks BIGINT NOT NULL DEFAULT 0,
			impressions BIGINT NOT NULL DEFAULT 0,
			frequency DOUBLE PRECISION NOT NULL DEFAULT 0,
			UNIQUE (ad_id, date_preset)
		)
	`)
	if err != nil {
		log.Printf("Error creating ads snapshot tables: %v", err)
	}
	return err
}
