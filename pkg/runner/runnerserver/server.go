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

// Package runnerserver exposes a runner adapter over HTTP so the control
// plane can run with RUNNER_ADAPTER=remote.
package runnerserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	restful "github.com/emicklei/go-restful/v3"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/utils/log"
)

// drainTimeout bounds how long shutdown waits for in-flight requests.
const drainTimeout = 10 * time.Second

// Server serves POST /execute and GET /health on the configured port.
type Server struct {
	adapter    runner.Adapter
	container  *restful.Container
	httpServer *http.Server
}

// New new runner http server wrapping the given adapter.
func New(adapter runner.Adapter, port int) *Server {
	s := &Server{
		adapter:   adapter,
		container: restful.NewContainer(),
	}
	ws := new(restful.WebService)
	ws.Path("/").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Route(ws.POST("/execute").To(s.execute))
	ws.Route(ws.GET("/health").To(s.health))
	s.container.Add(ws)
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.container,
	}
	return s
}

// Run serve until the context is cancelled, then drain in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		log.Logger.Infof("runner HTTP surface serving on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) execute(req *restful.Request, res *restful.Response) {
	var execReq runner.ExecutionRequest
	if err := req.ReadEntity(&execReq); err != nil {
		writeStatus(res, http.StatusBadRequest, map[string]interface{}{"error": "invalid request body"})
		return
	}
	if execReq.TenantContext.IsZero() {
		writeStatus(res, http.StatusBadRequest, map[string]interface{}{"error": "tenantContext is required"})
		return
	}
	if execReq.ModuleContext.Module == "" {
		writeStatus(res, http.StatusBadRequest, map[string]interface{}{"error": "moduleExecutionContext is required"})
		return
	}
	var result runner.ExecutionResult
	switch execReq.Action {
	case runner.ActionWorkflowStep:
		result = s.adapter.ExecuteWorkflowStep(req.Request.Context(), execReq)
	case runner.ActionAgentTask:
		result = s.adapter.ExecuteTask(req.Request.Context(), execReq)
	default:
		result = s.adapter.ExecuteAgentAction(req.Request.Context(), execReq)
	}
	if err := res.WriteEntity(result); err != nil {
		log.Logger.Errorf("write execution result failure %s", err.Error())
	}
}

func (s *Server) health(req *restful.Request, res *restful.Response) {
	adapterName := runner.AdapterLocal
	if _, ok := s.adapter.(*runner.RemoteAdapter); ok {
		adapterName = runner.AdapterRemote
	}
	if err := res.WriteEntity(map[string]string{"status": "ok", "adapter": adapterName}); err != nil {
		log.Logger.Errorf("write health response failure %s", err.Error())
	}
}

func writeStatus(res *restful.Response, status int, body map[string]interface{}) {
	if err := res.WriteHeaderAndEntity(status, body); err != nil {
		log.Logger.Errorf("write response failure %s", err.Error())
	}
}
