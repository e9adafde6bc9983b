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
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"

	"github.com/loom-dev/loom/pkg/server/domain/service"
	apis "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
)

type telemetryAPIInterface struct {
	TelemetryService service.TelemetryService `inject:""`
}

// NewTelemetryAPIInterface new telemetry APIInterface
func NewTelemetryAPIInterface() Interface {
	return &telemetryAPIInterface{}
}

func (n *telemetryAPIInterface) GetWebServiceRoute() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path(versionPrefix+"/telemetry").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON).
		Doc("api for domain event queries")

	tags := []string{"telemetry"}

	ws.Route(ws.GET("/events").To(n.listEvents).
		Operation("telemetryeventlist").
		Doc("list domain events of the tenant, newest first").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.QueryParameter("entityId", "narrow the stream to one entity").DataType("string")).
		Param(ws.QueryParameter("page", "query the page number").DataType("integer")).
		Param(ws.QueryParameter("pageSize", "query the page size number").DataType("integer")).
		Returns(200, "OK", apis.ListTelemetryEventsResponse{}).
		Writes(apis.ListTelemetryEventsResponse{}))

	ws.Filter(tenantFilter)
	return ws
}

func (n *telemetryAPIInterface) listEvents(req *restful.Request, res *restful.Response) {
	page, pageSize, err := utils.ExtractPagingParams(req, minPageSize, maxPageSize)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	tctx := tenantContext(req)
	events, total, err := n.TelemetryService.ListEvents(req.Request.Context(), tctx.Tenant, req.QueryParameter("entityId"), page, pageSize)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(apis.ListTelemetryEventsResponse{Events: events, Total: total}); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}
