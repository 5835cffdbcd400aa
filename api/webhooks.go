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
package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	leadflow "github.com/leadflowhq/leadflow"
)

// ReceiveWebhook ingests one signed event delivery. The body is read raw
// because the HMAC covers the exact bytes on the wire; any re-encoding
// before verification would break valid signatures.
func (a Api) ReceiveWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
		return
	}

	result, err := a.leadflow.IngestEvent(c.Request.Context(), leadflow.IngestRequest{
		ExternalID: c.GetHeader("X-Leadflow-Connection"),
		Signature:  c.GetHeader("X-Leadflow-Signature"),
		RawBody:    rawBody,
	})
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  result.Message,
		"event_id": result.EventID,
	})
}
