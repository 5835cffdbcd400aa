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

import "github.com/leadflowhq/leadflow/model"

type CreateConnection struct {
	AccountId   string                 `json:"account_id"`
	Name        string                 `json:"name"`
	EndpointUrl string                 `json:"endpoint_url"`
	MetaData    map[string]interface{} `json:"meta_data"`
}

func (c *CreateConnection) ToConnection() model.Connection {
	return model.Connection{
		AccountID:   c.AccountId,
		Name:        c.Name,
		EndpointURL: c.EndpointUrl,
		MetaData:    c.MetaData,
	}
}
