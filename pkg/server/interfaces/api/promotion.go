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
	"context"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/domain/model"
	"github.com/loom-dev/loom/pkg/server/domain/service"
	apis "github.com/loom-dev/loom/pkg/server/interfaces/api/dto/v1"
	"github.com/loom-dev/loom/pkg/server/utils/bcode"
)

type promotionAPIInterface struct {
	PromotionService service.PromotionService `inject:""`
}

// NewPromotionAPIInterface new promotion APIInterface
func NewPromotionAPIInterface() Interface {
	return &promotionAPIInterface{}
}

func (n *promotionAPIInterface) GetWebServiceRoute() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path(versionPrefix+"/promotions").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON).
		Doc("api for environment promotions")

	tags := []string{"promotion"}

	ws.Route(ws.POST("/").To(n.create).
		Operation("promotioncreate").
		Doc("open a draft promotion between two environments").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(apis.CreatePromotionRequest{}).
		Returns(200, "OK", model.PromotionIntent{}).
		Returns(400, "Bad Request", bcode.Bcode{}).
		Writes(model.PromotionIntent{}))

	ws.Route(ws.GET("/{promotionId}").To(n.detail).
		Operation("promotiondetail").
		Doc("detail one promotion intent").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("promotionId", "identifier of the promotion").DataType("string")).
		Returns(200, "OK", model.PromotionIntent{}).
		Returns(404, "Not Found", bcode.Bcode{}).
		Writes(model.PromotionIntent{}))

	ws.Route(ws.POST("/{promotionId}/preview").To(n.preview).
		Operation("promotionpreview").
		Doc("compute the environment delta and notify the target webhook").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("promotionId", "identifier of the promotion").DataType("string")).
		Returns(200, "OK", model.PromotionIntent{}).
		Writes(model.PromotionIntent{}))

	ws.Route(ws.POST("/{promotionId}/approve").To(n.approve).
		Operation("promotionapprove").
		Doc("approve a previewed promotion").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("promotionId", "identifier of the promotion").DataType("string")).
		Returns(200, "OK", model.PromotionIntent{}).
		Writes(model.PromotionIntent{}))

	ws.Route(ws.POST("/{promotionId}/reject").To(n.reject).
		Operation("promotionreject").
		Doc("reject a promotion from any non-terminal state").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("promotionId", "identifier of the promotion").DataType("string")).
		Returns(200, "OK", model.PromotionIntent{}).
		Writes(model.PromotionIntent{}))

	ws.Route(ws.POST("/{promotionId}/execute").To(n.execute).
		Operation("promotionexecute").
		Doc("replay the source environment's package set into the target").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Param(ws.PathParameter("promotionId", "identifier of the promotion").DataType("string")).
		Returns(200, "OK", model.PromotionIntent{}).
		Writes(model.PromotionIntent{}))

	ws.Filter(tenantFilter)
	return ws
}

func (n *promotionAPIInterface) create(req *restful.Request, res *restful.Response) {
	var createReq apis.CreatePromotionRequest
	if err := req.ReadEntity(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := validate.Struct(&createReq); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	intent, err := n.PromotionService.CreatePromotion(req.Request.Context(), tenantContext(req), createReq)
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(intent); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}

func (n *promotionAPIInterface) detail(req *restful.Request, res *restful.Response) {
	n.respond(req, res, n.PromotionService.GetPromotion)
}

func (n *promotionAPIInterface) preview(req *restful.Request, res *restful.Response) {
	n.respond(req, res, n.PromotionService.PreviewPromotion)
}

func (n *promotionAPIInterface) approve(req *restful.Request, res *restful.Response) {
	n.respond(req, res, n.PromotionService.ApprovePromotion)
}

func (n *promotionAPIInterface) reject(req *restful.Request, res *restful.Response) {
	n.respond(req, res, n.PromotionService.RejectPromotion)
}

func (n *promotionAPIInterface) execute(req *restful.Request, res *restful.Response) {
	n.respond(req, res, n.PromotionService.ExecutePromotion)
}

type promotionCall func(ctx context.Context, tctx runner.TenantContext, intentID string) (*model.PromotionIntent, error)

func (n *promotionAPIInterface) respond(req *restful.Request, res *restful.Response, call promotionCall) {
	intent, err := call(req.Request.Context(), tenantContext(req), req.PathParameter("promotionId"))
	if err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
	if err := res.WriteEntity(intent); err != nil {
		bcode.ReturnError(req, res, err)
		return
	}
}
