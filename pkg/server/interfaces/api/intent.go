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

	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/domain/service"
	apis "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
)

type intentAPIInterface struct {
	IntentService service.IntentService `inject:""`
}

// NewIntentAPIInterface new intent APIInterface
func NewIntentAPIInterface() Interface {
	return &intentAPIInterface{}
}

func (n *intentAPIInterface) GetWebServiceRoute() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path(versionPrefix+"/intents").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON).
		Doc("api for workflow execution intents")

	tags := []string{"intent"}

	ws.Route(ws.POST("/").To(n.create).
		Operation("intentcreate").
		Doc("create an execution intent; a repeated idempotency key returns the original").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(apis.CreateIntentRequest{}).
		Returns(200, "OK", apis.CreateIntentResponse{}).
		Writes(apis.CreateIntentResponse{}))

	ws.Route(ws.GET("/{intentId}").To(n.detail).
		Operation("intentdetail").
		Doc("detail one intent").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("intentId", "identifier of the intent").DataType("string")).
		Returns(200, "OK", model.WorkflowExecutionIntent{}).
		Returns(404, "Not Found", bcode.Bcode{}).
		Writes(model.WorkflowExecutionIntent{}))

	ws.Filter(tenantFilter)
	return ws
}

func (n *intentAPIInterface) create(req *restful.Request, res *restful.Response) {
	var createReq apis.CreateIntentRequest
	if err := req.ReadEntity(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := validate.Struct(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	intent, created, err := n.IntentService.CreateIntent(req.Request.Context(), tenantContext(req), createReq)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(apis.CreateIntentResponse{Intent: intent, Created: created}); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (n *intentAPIInterface) detail(req *restful.Request, res *restful.Response) {
	intent, err := n.IntentService.GetIntent(req.Request.Context(), tenantContext(req), req.PathParameter("intentId"))
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(intent); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}
