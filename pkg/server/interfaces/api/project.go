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

type projectAPIInterface struct {
	ProjectService service.ProjectService `inject:""`
}

// NewProjectAPIInterface new project APIInterface
func NewProjectAPIInterface() Interface {
	return &projectAPIInterface{}
}

func (p *projectAPIInterface) GetWebServiceRoute() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path(versionPrefix+"/projects").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON).
		Doc("api for project management")

	tags := []string{"project"}

	ws.Route(ws.GET("/").To(p.list).
		Operation("projectlist").
		Doc("list the tenant's projects").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(200, "OK", apis.ListProjectsResponse{}).
		Writes(apis.ListProjectsResponse{}))

	ws.Route(ws.POST("/").To(p.create).
		Operation("projectcreate").
		Doc("create a project with its default environments").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(apis.CreateProjectRequest{}).
		Returns(200, "OK", model.Project{}).
		Writes(model.Project{}))

	ws.Route(ws.GET("/{projectId}").To(p.detail).
		Operation("projectdetail").
		Doc("detail one project").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("projectId", "identifier of the project").DataType("string")).
		Returns(200, "OK", model.Project{}).
		Returns(404, "Not Found", bcode.Bcode{}).
		Writes(model.Project{}))

	ws.Route(ws.POST("/{projectId}/modules").To(p.createModule).
		Operation("modulecreate").
		Doc("create a module under the project").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("projectId", "identifier of the project").DataType("string")).
		Reads(apis.CreateModuleRequest{}).
		Returns(200, "OK", model.Module{}).
		Writes(model.Module{}))

	ws.Route(ws.GET("/{projectId}/modules").To(p.listModules).
		Operation("modulelist").
		Doc("list the project's modules").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("projectId", "identifier of the project").DataType("string")).
		Returns(200, "OK", apis.ListModulesResponse{}).
		Writes(apis.ListModulesResponse{}))

	ws.Route(ws.GET("/{projectId}/environments").To(p.listEnvironments).
		Operation("environmentlist").
		Doc("list the project's environments").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("projectId", "identifier of the project").DataType("string")).
		Returns(200, "OK", apis.ListEnvironmentsResponse{}).
		Writes(apis.ListEnvironmentsResponse{}))

	ws.Route(ws.PUT("/{projectId}/environments/{envId}").To(p.updateEnvironment).
		Operation("environmentupdate").
		Doc("update promotion settings of an environment").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("projectId", "identifier of the project").DataType("string")).
		Param(ws.PathParameter("envId", "identifier of the environment").DataType("string")).
		Reads(apis.UpdateEnvironmentRequest{}).
		Returns(200, "OK", model.Environment{}).
		Writes(model.Environment{}))

	ws.Route(ws.POST("/{projectId}/changes").To(p.createChange).
		Operation("changecreate").
		Doc("open a change record under the project").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("projectId", "identifier of the project").DataType("string")).
		Reads(apis.CreateChangeRequest{}).
		Returns(200, "OK", model.ChangeRecord{}).
		Writes(model.ChangeRecord{}))

	ws.Filter(tenantFilter)
	return ws
}

func (p *projectAPIInterface) list(req *restful.Request, res *restful.Response) {
	projects, err := p.ProjectService.ListProjects(req.Request.Context(), tenantContext(req))
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(apis.ListProjectsResponse{Projects: projects, Total: int64(len(projects))}); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (p *projectAPIInterface) create(req *restful.Request, res *restful.Response) {
	var createReq apis.CreateProjectRequest
	if err := req.ReadEntity(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := validate.Struct(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	project, err := p.ProjectService.CreateProject(req.Request.Context(), tenantContext(req), createReq)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(project); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (p *projectAPIInterface) detail(req *restful.Request, res *restful.Response) {
	project, err := p.ProjectService.GetProject(req.Request.Context(), tenantContext(req), req.PathParameter("projectId"))
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(project); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (p *projectAPIInterface) createModule(req *restful.Request, res *restful.Response) {
	var createReq apis.CreateModuleRequest
	if err := req.ReadEntity(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	createReq.ProjectID = req.PathParameter("projectId")
	if err := validate.Struct(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	module, err := p.ProjectService.CreateModule(req.Request.Context(), tenantContext(req), createReq)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(module); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (p *projectAPIInterface) listModules(req *restful.Request, res *restful.Response) {
	modules, err := p.ProjectService.ListModules(req.Request.Context(), tenantContext(req), req.PathParameter("projectId"))
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(apis.ListModulesResponse{Modules: modules}); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (p *projectAPIInterface) listEnvironments(req *restful.Request, res *restful.Response) {
	environments, err := p.ProjectService.ListEnvironments(req.Request.Context(), tenantContext(req), req.PathParameter("projectId"))
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(apis.ListEnvironmentsResponse{Environments: environments}); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (p *projectAPIInterface) updateEnvironment(req *restful.Request, res *restful.Response) {
	var updateReq apis.UpdateEnvironmentRequest
	if err := req.ReadEntity(&updateReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	env, err := p.ProjectService.UpdateEnvironment(req.Request.Context(), tenantContext(req), req.PathParameter("envId"), updateReq)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(env); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (p *projectAPIInterface) createChange(req *restful.Request, res *restful.Response) {
	var createReq apis.CreateChangeRequest
	if err := req.ReadEntity(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	createReq.ProjectID = req.PathParameter("projectId")
	if err := validate.Struct(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	change, err := p.ProjectService.CreateChange(req.Request.Context(), tenantContext(req), createReq)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(change); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}
