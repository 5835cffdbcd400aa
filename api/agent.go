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
	"strconv"

	model2 "github.com/leadflowhq/leadflow/api/model"
	"github.com/leadflowhq/leadflow/internal/apierror"
	"github.com/leadflowhq/leadflow/model"

	"github.com/gin-gonic/gin"
)

func (a Api) AnalyzeAccount(c *gin.Context) {
	var req model2.AnalyzeAccount
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := req.ValidateAnalyzeAccount()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	datePreset := req.DatePreset
	if datePreset == "" {
		datePreset = "last_7d"
	}

	resp, err := a.leadflow.AnalyzeAccount(c.Request.Context(), req.AccountId, datePreset)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) ExecuteBatch(c *gin.Context) {
	var req model2.ExecuteBatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := req.ValidateExecuteBatch()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.leadflow.ExecuteBatch(c.Request.Context(), req.ToExecuteRequest())
	if err != nil {
		if apierror.Is(err, apierror.ErrPreconditionFailed) {
			c.JSON(http.StatusPreconditionFailed, gin.H{
				"error":          err.Error(),
				"data_freshness": model.FreshnessStale,
			})
			return
		}
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetExecutions(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id query parameter is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := a.leadflow.GetExecutions(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		apiError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
