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
	"net/http"

	model2 "github.com/leadflowhq/leadflow/api/model"

	"github.com/gin-gonic/gin"
)

// CreateConnection registers a webhook source. The signing secret is
// returned once in this response and never again.
func (a Api) CreateConnection(c *gin.Context) {
	var newConnection model2.CreateConnection
	if err := c.ShouldBindJSON(&newConnection); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := newConnection.ValidateCreateConnection()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, secret, err := a.leadflow.CreateConnection(c.Request.Context(), newConnection.ToConnection())
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"connection": resp,
		"secret":     secret,
	})
}

func (a Api) GetConnection(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.leadflow.GetConnectionByID(c.Request.Context(), id)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RotateConnectionSecret issues a fresh signing secret. The old one keeps
// verifying for the grace window; rotating again inside that window is
// rejected.
func (a Api) RotateConnectionSecret(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	secret, err := a.leadflow.RotateSecret(c.Request.Context(), id)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"secret": secret})
}
