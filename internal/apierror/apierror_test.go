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

package apierror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrBadRequest, http.StatusBadRequest},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrAuthentication, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrPreconditionFailed, http.StatusPreconditionFailed},
		{ErrExternalService, http.StatusBadGateway},
		{ErrInternalServer, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		err := NewAPIError(tt.code, "test", nil)
		assert.Equal(t, tt.expected, MapErrorToHTTPStatus(err))
	}

	assert.Equal(t, http.StatusInternalServerError, MapErrorToHTTPStatus(errors.New("plain error")))
}

func TestIs(t *testing.T) {
	err := NewAPIError(ErrConflict, "duplicate", nil)
	assert.True(t, Is(err, ErrConflict))
	assert.False(t, Is(err, ErrNotFound))
	assert.False(t, Is(errors.New("plain error"), ErrConflict))
}

func TestErrorString(t *testing.T) {
	err := NewAPIError(ErrNotFound, "Connection not found", nil)
	assert.Equal(t, "NOT_FOUND: Connection not found", err.Error())
}
