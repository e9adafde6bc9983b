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

	"github.com/loom-dev/loom/pkg/graph"
	"github.com/loom-dev/loom/pkg/server/domain/service"
	apis "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
)

type graphAPIInterface struct {
	GraphService   service.GraphService   `inject:""`
	InstallService service.InstallService `inject:""`
}

// NewGraphAPIInterface new graph APIInterface
func NewGraphAPIInterface() Interface {
	return &graphAPIInterface{}
}

func (n *graphAPIInterface) GetWebServiceRoute() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path(versionPrefix+"/graph").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON).
		Doc("api for graph snapshots and package installs")

	tags := []string{"graph"}

	ws.Route(ws.GET("/projects/{projectId}/snapshot").To(n.snapshot).
		Operation("graphsnapshot").
		Doc("the project's graph snapshot").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("projectId", "identifier of the project").DataType("string")).
		Returns(200, "OK", graph.Snapshot{}).
		Writes(graph.Snapshot{}))

	ws.Route(ws.GET("/projects/{projectId}/record-types").To(n.listRecordTypes).
		Operation("recordtypelist").
		Doc("list the project's record types").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("projectId", "identifier of the project").DataType("string")).
		Returns(200, "OK", apis.ListRecordTypesResponse{}).
		Writes(apis.ListRecordTypesResponse{}))

	ws.Route(ws.POST("/projects/{projectId}/packages").To(n.install).
		Operation("packageinstall").
		Doc("install one graph package into the project").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("projectId", "identifier of the project").DataType("string")).
		Reads(apis.InstallPackageRequest{}).
		Returns(200, "OK", apis.InstallResult{}).
		Returns(400, "Bad Request", bcode.Bcode{}).
		Writes(apis.InstallResult{}))

	ws.Route(ws.POST("/projects/{projectId}/packages/batch").To(n.installBatch).
		Operation("packageinstallbatch").
		Doc("install a batch of packages in dependency order").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("projectId", "identifier of the project").DataType("string")).
		Reads(apis.InstallPackagesRequest{}).
		Returns(200, "OK", apis.InstallBatchResponse{}).
		Writes(apis.InstallBatchResponse{}))

	ws.Route(ws.GET("/projects/{projectId}/installs").To(n.listInstalls).
		Operation("installlist").
		Doc("the project's install audit history").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("projectId", "identifier of the project").DataType("string")).
		Param(ws.QueryParameter("packageKey", "narrow the history to one package").DataType("string")).
		Returns(200, "OK", apis.ListInstallsResponse{}).
		Writes(apis.ListInstallsResponse{}))

	ws.Route(ws.POST("/changes/{changeId}/execute").To(n.executeChange).
		Operation("changeexecute").
		Doc("apply the change's patch ops with snapshot rollback on failure").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("changeId", "identifier of the change").DataType("string")).
		Returns(200, "OK", apis.SimpleResponse{}).
		Writes(apis.SimpleResponse{}))

	ws.Filter(tenantFilter)
	return ws
}

func (n *graphAPIInterface) snapshot(req *restful.Request, res *restful.Response) {
	snapshot, err := n.GraphService.GetProjectGraphSnapshot(req.Request.Context(), tenantContext(req), req.PathParameter("projectId"))
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(snapshot); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (n *graphAPIInterface) listRecordTypes(req *restful.Request, res *restful.Response) {
	recordTypes, err := n.GraphService.ListRecordTypes(req.Request.Context(), tenantContext(req), req.PathParameter("projectId"))
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(apis.ListRecordTypesResponse{RecordTypes: recordTypes}); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (n *graphAPIInterface) install(req *restful.Request, res *restful.Response) {
	var installReq apis.InstallPackageRequest
	if err := req.ReadEntity(&installReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	result, err := n.InstallService.InstallGraphPackage(req.Request.Context(), tenantContext(req),
		req.PathParameter("projectId"), installReq.Package, installReq.Options)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(result); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (n *graphAPIInterface) installBatch(req *restful.Request, res *restful.Response) {
	var installReq apis.InstallPackagesRequest
	if err := req.ReadEntity(&installReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := validate.Struct(&installReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	results, err := n.InstallService.InstallGraphPackages(req.Request.Context(), tenantContext(req),
		req.PathParameter("projectId"), installReq.Packages, installReq.Options)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(apis.InstallBatchResponse{Results: results}); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (n *graphAPIInterface) listInstalls(req *restful.Request, res *restful.Response) {
	installs, err := n.InstallService.ListInstalls(req.Request.Context(), tenantContext(req),
		req.PathParameter("projectId"), req.QueryParameter("packageKey"))
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(apis.ListInstallsResponse{Installs: installs}); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (n *graphAPIInterface) executeChange(req *restful.Request, res *restful.Response) {
	if err := n.GraphService.ExecuteChange(req.Request.Context(), tenantContext(req), req.PathParameter("changeId")); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(apis.SimpleResponse{Status: "executed"}); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}
