/*
Copyright 2024 The Loom Authors.

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

	"github.com/emicklei/go-restful/v3"
	"github.com/go-playground/validator/v10"

	"github.com/loom-dev/loom/pkg/runner"
	apisv1 "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
)

// versionPrefix API version prefix.
var versionPrefix = "/api/v1"

const (
	minPageSize = 5
	maxPageSize = 100
)

// HeaderTenant every request names its tenant explicitly.
const HeaderTenant = "X-Loom-Tenant"

// HeaderUser the acting user; defaults to anonymous.
const HeaderUser = "X-Loom-User"

var validate = validator.New()

// Interface the API should define the http route
type Interface interface {
	GetWebServiceRoute() *restful.WebService
}

var registeredAPIInterface []Interface

// RegisterAPIInterface register APIInterface
func RegisterAPIInterface(ws Interface) {
	registeredAPIInterface = append(registeredAPIInterface, ws)
}

// GetRegisteredAPIInterface return registeredAPIInterface
func GetRegisteredAPIInterface() []Interface {
	return registeredAPIInterface
}

func returns200(b *restful.RouteBuilder) {
	b.Returns(http.StatusOK, "OK", apisv1.SimpleResponse{Status: "ok"})
}

func returns500(b *restful.RouteBuilder) {
	b.Returns(http.StatusInternalServerError, "Bummer, something went wrong", nil)
}

// tenantFilter mints the tenant context from the request headers. Every route
// group below runs behind it; a request without a tenant never reaches a
// handler.
func tenantFilter(req *restful.Request, res *restful.Response, chain *restful.FilterChain) {
	tenant := req.HeaderParameter(HeaderTenant)
	if tenant == "" {
		bcode.ReturnError(req, res, bcode.ErrTenantRequired)
		return
	}
	user := req.HeaderParameter(HeaderUser)
	if user == "" {
		user = "anonymous"
	}
	req.SetAttribute(apisv1.CtxKeyTenant, runner.NewTenantContext(tenant, user))
	chain.ProcessFilter(req, res)
}

// tenantContext the context minted by tenantFilter.
func tenantContext(req *restful.Request) runner.TenantContext {
	tctx, _ := req.Attribute(apisv1.CtxKeyTenant).(runner.TenantContext)
	return tctx
}

// InitAPIBean inits all APIInterface, pass in the required parameter object.
// It can be implemented using the idea of dependency injection.
func InitAPIBean() []interface{} {
	// Tenant workspace
	RegisterAPIInterface(NewProjectAPIInterface())

	// Workflow engine
	RegisterAPIInterface(NewWorkflowAPIInterface())
	RegisterAPIInterface(NewIntentAPIInterface())

	// Graph and packages
	RegisterAPIInterface(NewGraphAPIInterface())
	RegisterAPIInterface(NewPromotionAPIInterface())

	// Observability
	RegisterAPIInterface(NewTelemetryAPIInterface())
	RegisterAPIInterface(NewSystemInfoAPIInterface())

	var beans []interface{}
	for i := range registeredAPIInterface {
		beans = append(beans, registeredAPIInterface[i])
	}
	return beans
}
