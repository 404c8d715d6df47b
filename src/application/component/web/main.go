package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/graphql-go/graphql"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/operify/opsgate/src/application/service"
	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
)

type Web struct {
	Config config.WebConfig

	Logger         zerolog.Logger
	CatalogService service.CatalogService
	JenkinsService service.JenkinsService
	UserService    service.UserService
	TokenService   service.TokenService
	ScanService    service.ScanService
	MonitorService service.MonitorService
	Hub            *Hub

	graphqlOnce   sync.Once
	graphqlSchema graphql.Schema
	graphqlErr    error
}

func (self *Web) Start(ctx context.Context) error {
	self.Logger.Info().Str("listen", self.Config.Listen).Msg("Starting")

	server := &http.Server{Addr: self.Config.Listen, Handler: self.router()}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			self.Logger.Err(err).Msgf("Failed to start web server on %s", self.Config.Listen)
		}
	}()

	<-ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		self.Logger.Err(err).Msg("Failed to stop web server")
	}

	return nil
}

func (self *Web) router() *mux.Router {
	muxRouter := mux.NewRouter().StrictSlash(true).UseEncodedPath()
	muxRouter.NotFoundHandler = http.NotFoundHandler()
	muxRouter.Use(self.measure)

	muxRouter.HandleFunc("/api/health", self.ApiHealthGet).Methods(http.MethodGet)
	muxRouter.Handle("/metrics", metricsHandler()).Methods(http.MethodGet)

	// sorted alphabetically, please keep it this way
	token := muxRouter.PathPrefix("/api").Subrouter()
	token.Use(self.tokenAuth)
	token.HandleFunc("/jenkins/jobs/{name}/build", self.ApiJenkinsJobsNameBuildPost).Methods(http.MethodPost)
	token.HandleFunc("/jenkins/jobs/{name}/builds/{number}", self.ApiJenkinsJobsNameBuildsNumberGet).Methods(http.MethodGet)
	token.HandleFunc("/jenkins/jobs", self.ApiJenkinsJobsGet).Methods(http.MethodGet)
	token.HandleFunc("/oracle/tables/{name}/data", self.ApiOracleTablesNameDataGet).Methods(http.MethodGet)
	token.HandleFunc("/oracle/tables", self.ApiOracleTablesGet).Methods(http.MethodGet)

	muxRouter.HandleFunc("/api/auth/login", self.ApiAuthLoginPost).Methods(http.MethodPost)
	muxRouter.HandleFunc("/api/auth/register", self.ApiAuthRegisterPost).Methods(http.MethodPost)

	bearer := muxRouter.PathPrefix("/api").Subrouter()
	bearer.Use(self.bearerAuth)
	bearer.HandleFunc("/auth/logout", self.ApiAuthLogoutPost).Methods(http.MethodPost)
	bearer.HandleFunc("/auth/me", self.ApiAuthMeGet).Methods(http.MethodGet)
	bearer.HandleFunc("/monitor/list", self.ApiMonitorListGet).Methods(http.MethodGet)
	bearer.HandleFunc("/monitor/start", self.ApiMonitorStartPost).Methods(http.MethodPost)
	bearer.HandleFunc("/monitor/status/{id}", self.ApiMonitorStatusIdGet).Methods(http.MethodGet)
	bearer.HandleFunc("/monitor/stop/{id}", self.ApiMonitorStopIdDelete).Methods(http.MethodDelete)
	bearer.HandleFunc("/scan/jobs", self.ApiScanJobsGet).Methods(http.MethodGet)
	bearer.HandleFunc("/scan/tasks/cursor", self.ApiScanTasksCursorGet).Methods(http.MethodGet)
	bearer.HandleFunc("/scan/tasks/{id}", self.ApiScanTasksIdGet).Methods(http.MethodGet)
	bearer.HandleFunc("/scan/tasks", self.ApiScanTasksGet).Methods(http.MethodGet)
	bearer.HandleFunc("/scan/trigger", self.ApiScanTriggerPost).Methods(http.MethodPost)

	muxRouter.HandleFunc("/api/ws", self.ApiWsGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/api/ws/connections", self.ApiWsConnectionsGet).Methods(http.MethodGet)

	graphqlRouter := muxRouter.Path("/graphql").Subrouter()
	graphqlRouter.Use(self.graphqlAuth)
	graphqlRouter.HandleFunc("", self.GraphqlPost).Methods(http.MethodPost)

	return muxRouter
}

func (self *Web) ApiHealthGet(w http.ResponseWriter, req *http.Request) {
	self.json(w, map[string]string{
		"status":  "ok",
		"version": domain.BuildInfo.Version,
	}, http.StatusOK)
}

func (self *Web) ApiOracleTablesGet(w http.ResponseWriter, req *http.Request) {
	if tables, err := self.CatalogService.GetTables(); err != nil {
		self.ServerError(w, err)
	} else {
		self.json(w, map[string]any{"tables": tables}, http.StatusOK)
	}
}

func (self *Web) ApiOracleTablesNameDataGet(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	name, err := url.PathUnescape(vars["name"])
	if err != nil {
		self.ClientError(w, errors.WithMessagef(err, "Invalid escaping of table name: %q", vars["name"]))
		return
	}

	if page, err := getPage(req); err != nil {
		self.ClientError(w, err)
	} else if rows, err := self.CatalogService.GetTableData(name, page); errors.Is(err, service.ErrUnknownTable) {
		self.NotFound(w, err)
	} else if err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Could not get data of table %q", name))
	} else {
		self.json(w, map[string]any{
			"table": name,
			"rows":  rows,
			"total": page.Total,
			"page":  page,
		}, http.StatusOK)
	}
}

func (self *Web) ApiJenkinsJobsGet(w http.ResponseWriter, req *http.Request) {
	if jobs, err := self.JenkinsService.GetJobs(req.Context()); err != nil {
		self.ServerError(w, err)
	} else {
		self.json(w, map[string]any{"jobs": jobs}, http.StatusOK)
	}
}

func (self *Web) ApiJenkinsJobsNameBuildPost(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	name, err := url.PathUnescape(vars["name"])
	if err != nil {
		self.ClientError(w, errors.WithMessagef(err, "Invalid escaping of job name: %q", vars["name"]))
		return
	}

	params := map[string]string{}
	if req.Body != nil && req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&params); err != nil {
			self.ClientError(w, errors.WithMessage(err, "While decoding build parameters"))
			return
		}
	}

	if buildNumber, err := self.JenkinsService.TriggerBuild(req.Context(), name, params); err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Could not trigger build of job %q", name))
	} else {
		self.json(w, map[string]any{
			"job":          name,
			"build_number": buildNumber,
		}, http.StatusOK)
	}
}

func (self *Web) ApiJenkinsJobsNameBuildsNumberGet(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	name, err := url.PathUnescape(vars["name"])
	if err != nil {
		self.ClientError(w, errors.WithMessagef(err, "Invalid escaping of job name: %q", vars["name"]))
		return
	}

	if number, err := strconv.ParseInt(vars["number"], 10, 64); err != nil {
		self.ClientError(w, errors.WithMessagef(err, "Invalid build number: %q", vars["number"]))
	} else if build, err := self.JenkinsService.GetBuildStatus(req.Context(), name, number); err != nil {
		self.NotFound(w, errors.WithMessagef(err, "Could not get build %d of job %q", number, name))
	} else {
		self.json(w, build, http.StatusOK)
	}
}

func getPage(req *http.Request) (*repository.Page, error) {
	page := repository.Page{}

	if offsetStr := req.FormValue("offset"); offsetStr == "" {
		page.Offset = 0
	} else if offset, err := strconv.Atoi(offsetStr); err != nil || offset < 0 {
		return nil, errors.New("offset parameter is invalid, should be a positive integer")
	} else {
		page.Offset = offset
	}

	if limitStr := req.FormValue("limit"); limitStr == "" {
		page.Limit = 10
	} else if limit, err := strconv.Atoi(limitStr); err != nil || limit <= 0 {
		return nil, errors.New("limit parameter is invalid, should be a positive integer")
	} else {
		page.Limit = limit
	}

	return &page, nil
}

type HandlerError struct {
	error
	StatusCode int
}

func (self HandlerError) HasError() bool {
	return self.error != nil
}

func (self *Web) ServerError(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusInternalServerError})
}

func (self *Web) ClientError(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusBadRequest})
}

func (self *Web) NotFound(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusNotFound})
}

func (self *Web) Unauthorized(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusUnauthorized})
}

func (self *Web) Error(w http.ResponseWriter, err error) {
	status := 500

	if handlerErr, ok := err.(HandlerError); ok {
		status = handlerErr.StatusCode
		if !handlerErr.HasError() {
			err = nil
		}
	}

	var e *zerolog.Event
	if status >= 500 {
		e = self.Logger.Error()
	} else {
		e = self.Logger.Debug()
	}
	e.Int("status", status).Msg("Handler error")

	var msg string
	if err != nil {
		msg = err.Error()
	}

	http.Error(w, msg, status)
}

func (self *Web) json(w http.ResponseWriter, obj any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		self.ServerError(w, err)
		return
	}
}
