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
	"fmt"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/internal/request"
)

// AdsClient talks to the external advertising platform. Base URL and
// credentials are injected at construction; every call honours the caller's
// context and the configured per-call timeout.
type AdsClient struct {
	baseURL     string
	accessToken string
	client      *http.Client
	maxRetries  uint64
	backoffWait time.Duration
}

type adsAPIResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   string                 `json:"error,omitempty"`
}

func NewAdsClient(conf config.AdsPlatformConfig) *AdsClient {
	timeout := time.Duration(conf.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	wait := time.Duration(conf.RetryBackoffMs) * time.Millisecond
	if wait <= 0 {
		wait = 250 * time.Millisecond
	}
	return &AdsClient{
		baseURL:     conf.BaseUrl,
		accessToken: conf.AccessToken,
		client:      &http.Client{Timeout: timeout},
		maxRetries:  uint64(conf.MaxRetries),
		backoffWait: wait,
	}
}

// GetEntity reads the platform's current view of an ad or ad set. Used for
// the before/after snapshots around a mutation.
func (a *AdsClient) GetEntity(ctx context.Context, entityType, entityID string) (map[string]interface{}, error) {
	path := fmt.Sprintf("/%ss/%s", entityType, entityID)
	return a.do(ctx, http.MethodGet, path, nil)
}

// PauseEntity stops delivery for an ad or ad set.
func (a *AdsClient) PauseEntity(ctx context.Context, entityType, entityID string) (map[string]interface{}, error) {
	path := fmt.Sprintf("/%ss/%s/pause", entityType, entityID)
	return a.do(ctx, http.MethodPost, path, map[string]interface{}{})
}

// CreateAd launches a new creative inside an existing ad set.
func (a *AdsClient) CreateAd(ctx context.Context, adSetID string, params map[string]interface{}) (map[string]interface{}, error) {
	body := map[string]interface{}{"adset_id": adSetID}
	for k, v := range params {
		body[k] = v
	}
	return a.do(ctx, http.MethodPost, "/ads", body)
}

// AdjustBudget changes an ad set's budget.
func (a *AdsClient) AdjustBudget(ctx context.Context, adSetID string, params map[string]interface{}) (map[string]interface{}, error) {
	path := fmt.Sprintf("/adsets/%s/budget", adSetID)
	return a.do(ctx, http.MethodPost, path, params)
}

// Ping verifies connectivity and credentials against the platform.
func (a *AdsClient) Ping(ctx context.Context) error {
	_, err := a.do(ctx, http.MethodGet, "/ping", nil)
	return err
}

// do runs one platform call with retries. Server-side and transport failures
// are retried with backoff; client errors fail immediately.
func (a *AdsClient) do(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	var result map[string]interface{}

	operation := func() error {
		req, err := a.newRequest(ctx, method, path, body)
		if err != nil {
			return backoff.Permanent(err)
		}

		var apiResp adsAPIResponse
		resp, err := request.Call(a.client, req, &apiResp)
		if err != nil {
			return errors.Wrapf(err, "ads platform %s %s", method, path)
		}

		switch {
		case resp.StatusCode >= 500:
			return errors.Errorf("ads platform %s %s: status %d", method, path, resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(errors.Errorf("ads platform %s %s: status %d: %s", method, path, resp.StatusCode, apiResp.Error))
		}
		if !apiResp.Success && apiResp.Error != "" {
			return backoff.Permanent(errors.Errorf("ads platform %s %s: %s", method, path, apiResp.Error))
		}

		result = apiResp.Data
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.backoffWait), a.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *AdsClient) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	url := a.baseURL + path
	var req *http.Request
	var err error

	if body != nil {
		payload, jerr := request.ToJsonReq(body)
		if jerr != nil {
			return nil, jerr
		}
		req, err = http.NewRequestWithContext(ctx, method, url, payload)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	return req, nil
}
