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

	"github.com/loom-dev/loom/pkg/server/config"
	apis "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
	"github.com/loom-dev/loom/version"
)

type systemInfoAPIInterface struct {
	Config *config.Config `inject:"config"`
}

// NewSystemInfoAPIInterface new system info APIInterface
func NewSystemInfoAPIInterface() Interface {
	return &systemInfoAPIInterface{}
}

func (n *systemInfoAPIInterface) GetWebServiceRoute() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path(versionPrefix+"/system_info").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON).
		Doc("api for system info")

	tags := []string{"system_info"}

	ws.Route(ws.GET("/").To(n.systemInfo).
		Operation("systeminfo").
		Doc("build and runtime facts of the server").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(200, "OK", apis.SystemInfoResponse{}).
		Writes(apis.SystemInfoResponse{}))

	return ws
}

func (n *systemInfoAPIInterface) systemInfo(req *restful.Request, res *restful.Response) {
	info := apis.SystemInfoResponse{
		Version:   version.LoomVersion,
		GitCommit: version.GitRevision,
	}
	if n.Config != nil {
		info.DatastoreType = n.Config.Datastore.Type
		info.RunnerAdapter = n.Config.Runner.AdapterType
	}
	if err := res.WriteEntity(info); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}
