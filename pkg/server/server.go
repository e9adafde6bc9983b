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

// Package server assembles the Loom control plane: datastore, runner
// adapter, domain services, HTTP API and background workers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	restfulSpec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loom-dev/loom/pkg/runner"
	"github.com/loom-dev/loom/pkg/server/config"
	"github.com/loom-dev/loom/pkg/server/domain/service"
	"github.com/loom-dev/loom/pkg/server/event"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore/memory"
	"github.com/loom-dev/loom/pkg/server/infrastructure/datastore/mongodb"
	"github.com/loom-dev/loom/pkg/server/interfaces/api"
	"github.com/loom-dev/loom/pkg/server/utils"
	"github.com/loom-dev/loom/pkg/server/utils/container"
	"github.com/loom-dev/loom/pkg/server/utils/log"
	"github.com/loom-dev/loom/version"
)

// APIServer interface for call api server
type APIServer interface {
	Run(context.Context, chan error) error
	BuildRestfulConfig() (*restfulSpec.Config, error)
}

// restServer rest server
type restServer struct {
	webContainer  *restful.Container
	beanContainer *container.Container
	cfg           config.Config
	dataStore     datastore.DataStore
}

// New create api server with config data
func New(cfg config.Config) APIServer {
	return &restServer{
		webContainer:  restful.NewContainer(),
		beanContainer: container.NewContainer(),
		cfg:           cfg,
	}
}

func (s *restServer) buildIoCContainer() error {
	// infrastructure
	var ds datastore.DataStore
	var err error
	switch s.cfg.Datastore.Type {
	case "mongodb":
		ds, err = mongodb.New(context.Background(), s.cfg.Datastore)
		if err != nil {
			return fmt.Errorf("create mongodb datastore instance failure %w", err)
		}
	case "memory", "":
		ds = memory.New()
	default:
		return fmt.Errorf("not support datastore type %s", s.cfg.Datastore.Type)
	}
	s.dataStore = ds
	if err := s.beanContainer.ProvideWithName("datastore", s.dataStore); err != nil {
		return fmt.Errorf("fail to provides the datastore bean to the container: %w", err)
	}
	if err := s.beanContainer.ProvideWithName("config", &s.cfg); err != nil {
		return fmt.Errorf("fail to provides the config bean to the container: %w", err)
	}

	// domain
	serviceBeans := service.InitServiceBean(s.cfg)
	if err := s.beanContainer.Provides(serviceBeans...); err != nil {
		return fmt.Errorf("fail to provides the service bean to the container: %w", err)
	}

	adapter, err := s.buildRunnerAdapter(serviceBeans)
	if err != nil {
		return fmt.Errorf("create runner adapter failure %w", err)
	}
	if err := s.beanContainer.ProvideWithName("runnerAdapter", adapter); err != nil {
		return fmt.Errorf("fail to provides the runner adapter bean to the container: %w", err)
	}

	// interfaces
	if err := s.beanContainer.Provides(api.InitAPIBean()...); err != nil {
		return fmt.Errorf("fail to provides the api bean to the container: %w", err)
	}

	// event
	if err := s.beanContainer.Provides(event.InitEvent(s.cfg)...); err != nil {
		return fmt.Errorf("fail to provides the event bean to the container: %w", err)
	}

	if err := s.beanContainer.Populate(); err != nil {
		return fmt.Errorf("fail to populate the bean container: %w", err)
	}

	// Logical step handlers run through the local adapter so every workflow
	// step passes the boundary guard.
	if local, ok := adapter.(*runner.LocalAdapter); ok {
		for _, bean := range serviceBeans {
			if workflowService, ok := bean.(service.WorkflowService); ok {
				workflowService.RegisterHandlers(local)
			}
		}
	}
	return nil
}

// buildRunnerAdapter wires the adapter against the telemetry bridge and the
// workspace recorder from the service bean set.
func (s *restServer) buildRunnerAdapter(serviceBeans []interface{}) (runner.Adapter, error) {
	var emitter runner.TelemetryEmitter = runner.NopTelemetry{}
	var recorder runner.WorkspaceRecorder
	for _, bean := range serviceBeans {
		switch b := bean.(type) {
		case *service.RunnerTelemetryBridge:
			emitter = b
		case service.WorkspaceService:
			recorder = b
		}
	}
	return runner.New(runner.Config{
		Adapter: s.cfg.Runner.AdapterType,
		URL:     s.cfg.Runner.RunnerURL,
		Timeout: s.cfg.Runner.Timeout,
	}, emitter, recorder)
}

// Run wires the container, init the database and serve until the context is
// cancelled.
func (s *restServer) Run(ctx context.Context, errChan chan error) error {
	if err := s.buildIoCContainer(); err != nil {
		return err
	}

	if err := service.InitData(ctx); err != nil {
		return fmt.Errorf("fail to init database %w", err)
	}

	s.RegisterAPIRoute()

	go event.StartEventWorker(ctx, errChan)

	return s.startHTTP(ctx)
}

// BuildRestfulConfig build the restful config
// This function will build the smallest set of beans
func (s *restServer) BuildRestfulConfig() (*restfulSpec.Config, error) {
	if err := s.buildIoCContainer(); err != nil {
		return nil, err
	}
	config := s.RegisterAPIRoute()
	return &config, nil
}

// RegisterAPIRoute register the API route
func (s *restServer) RegisterAPIRoute() restfulSpec.Config {
	/* **************************************************************  */
	/* *************       Open API Route Group     *****************  */
	/* **************************************************************  */

	// Add container filter to enable CORS
	cors := restful.CrossOriginResourceSharing{
		ExposeHeaders:  []string{},
		AllowedHeaders: []string{"Content-Type", "Accept", "Authorization", api.HeaderTenant, api.HeaderUser},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		CookiesAllowed: true,
		Container:      s.webContainer}
	s.webContainer.Filter(cors.Filter)

	// Add container filter to respond to OPTIONS
	s.webContainer.Filter(s.webContainer.OPTIONSFilter)

	// Add request log
	s.webContainer.Filter(s.requestLog)

	// Register all custom api
	for _, handler := range api.GetRegisteredAPIInterface() {
		s.webContainer.Add(handler.GetWebServiceRoute())
	}

	s.webContainer.Handle("/metrics", promhttp.Handler())

	config := restfulSpec.Config{
		WebServices:                   s.webContainer.RegisteredWebServices(),
		APIPath:                       "/apidocs.json",
		PostBuildSwaggerObjectHandler: enrichSwaggerObject}
	s.webContainer.Add(restfulSpec.NewOpenAPIService(config))
	return config
}

func (s *restServer) requestLog(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	c := utils.NewResponseCapture(resp.ResponseWriter)
	resp.ResponseWriter = c
	chain.ProcessFilter(req, resp)
	takeTime := time.Since(start)
	log.Logger.With(
		"clientIP", utils.ClientIP(req.Request),
		"path", req.Request.URL.Path,
		"method", req.Request.Method,
		"status", c.StatusCode(),
		"time", takeTime.String(),
		"responseSize", len(c.Bytes()),
	).Infof("request log")
}

func enrichSwaggerObject(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "Loom api doc",
			Description: "Loom api doc",
			License: &spec.License{
				LicenseProps: spec.LicenseProps{
					Name: "Apache License 2.0",
					URL:  "http://www.apache.org/licenses/LICENSE-2.0",
				},
			},
			Version: version.LoomVersion,
		},
	}
}

func (s *restServer) startHTTP(ctx context.Context) error {
	// Start HTTP apiserver
	log.Logger.Infof("HTTP APIs are being served on: %s", s.cfg.BindAddr)
	server := &http.Server{Addr: s.cfg.BindAddr, Handler: s.webContainer}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Logger.Errorf("shutdown the http server failure %s", err.Error())
		}
	}()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
