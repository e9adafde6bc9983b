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

type workflowAPIInterface struct {
	WorkflowService service.WorkflowService `inject:""`
	IntentService   service.IntentService   `inject:""`
}

// NewWorkflowAPIInterface new workflow APIInterface
func NewWorkflowAPIInterface() Interface {
	return &workflowAPIInterface{}
}

func (n *workflowAPIInterface) GetWebServiceRoute() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path(versionPrefix+"/workflows").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON).
		Doc("api for workflow management")

	tags := []string{"workflow"}

	ws.Route(ws.POST("/").To(n.create).
		Operation("workflowcreate").
		Doc("create a draft workflow definition").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(apis.CreateWorkflowRequest{}).
		Returns(200, "OK", model.WorkflowDefinition{}).
		Writes(model.WorkflowDefinition{}))

	ws.Route(ws.POST("/{defId}/activate").To(n.activate).
		Operation("workflowactivate").
		Doc("validate and activate a draft definition").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("defId", "identifier of the workflow definition").DataType("string")).
		Returns(200, "OK", apis.ActivateWorkflowResponse{}).
		Writes(apis.ActivateWorkflowResponse{}))

	ws.Route(ws.POST("/{defId}/execute").To(n.execute).
		Operation("workflowexecute").
		Doc("dispatch an execution intent for this definition").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("defId", "identifier of the workflow definition").DataType("string")).
		Reads(apis.ExecuteWorkflowRequest{}).
		Returns(200, "OK", model.WorkflowExecutionIntent{}).
		Returns(403, "Forbidden", bcode.Bcode{}).
		Writes(model.WorkflowExecutionIntent{}))

	ws.Route(ws.GET("/executions/{execId}").To(n.detailExecution).
		Operation("executiondetail").
		Doc("detail one execution with its step executions").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("execId", "identifier of the execution").DataType("string")).
		Returns(200, "OK", apis.WorkflowExecutionDetail{}).
		Returns(404, "Not Found", bcode.Bcode{}).
		Writes(apis.WorkflowExecutionDetail{}))

	ws.Route(ws.POST("/executions/{execId}/resume").To(n.resume).
		Operation("executionresume").
		Doc("resolve a paused approval step and continue or fail the execution").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("execId", "identifier of the execution").DataType("string")).
		Reads(apis.ResumeWorkflowRequest{}).
		Returns(200, "OK", model.WorkflowExecution{}).
		Writes(model.WorkflowExecution{}))

	ws.Filter(tenantFilter)
	return ws
}

func (n *workflowAPIInterface) create(req *restful.Request, res *restful.Response) {
	var createReq apis.CreateWorkflowRequest
	if err := req.ReadEntity(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := validate.Struct(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	def, err := n.WorkflowService.CreateWorkflow(req.Request.Context(), tenantContext(req), createReq)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(def); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (n *workflowAPIInterface) activate(req *restful.Request, res *restful.Response) {
	findings, err := n.WorkflowService.ActivateWorkflow(req.Request.Context(), tenantContext(req), req.PathParameter("defId"))
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	response := apis.ActivateWorkflowResponse{Activated: len(findings) == 0, ValidationErrors: findings}
	if err := res.WriteEntity(response); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

// execute goes through the intent dispatcher: the intent named by the request
// must exist, so every execution is replay-safe.
func (n *workflowAPIInterface) execute(req *restful.Request, res *restful.Response) {
	var execReq apis.ExecuteWorkflowRequest
	if err := req.ReadEntity(&execReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := validate.Struct(&execReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	tctx := tenantContext(req)
	if err := n.IntentService.DispatchIntent(req.Request.Context(), execReq.IntentID); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	intent, err := n.IntentService.GetIntent(req.Request.Context(), tctx, execReq.IntentID)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(intent); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (n *workflowAPIInterface) detailExecution(req *restful.Request, res *restful.Response) {
	detail, err := n.WorkflowService.DetailWorkflowExecution(req.Request.Context(), tenantContext(req), req.PathParameter("execId"))
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(detail); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (n *workflowAPIInterface) resume(req *restful.Request, res *restful.Response) {
	var resumeReq apis.ResumeWorkflowRequest
	if err := req.ReadEntity(&resumeReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := validate.Struct(&resumeReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	exec, err := n.WorkflowService.ResumeWorkflow(req.Request.Context(), tenantContext(req), req.PathParameter("execId"), resumeReq)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(exec); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}
