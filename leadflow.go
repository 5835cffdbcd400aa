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
	"github.com/leadflowhq/leadflow/cache"
	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/database"
)

// Leadflow is the main service struct. It owns the datasource, the optional
// redis-backed cache and retry queue, and the ads-platform client.
type Leadflow struct {
	queue      *Queue
	cache      cache.Cache
	datasource database.IDataSource
	ads        *AdsClient
}

// NewLeadflow initializes a service instance from the loaded configuration.
// Redis is optional: without it the connection cache and the normalization
// retry queue are disabled and everything runs against the store directly.
func NewLeadflow(db database.IDataSource) (*Leadflow, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	var ca cache.Cache
	var queue *Queue
	if configuration.Redis.Dns != "" {
		ca, err = cache.NewCache()
		if err != nil {
			return nil, err
		}
		queue = NewQueue(configuration)
	}

	newLeadflow := &Leadflow{
		datasource: db,
		cache:      ca,
		queue:      queue,
		ads:        NewAdsClient(configuration.AdsPlatform),
	}
	return newLeadflow, nil
}
