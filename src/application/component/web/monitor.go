package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/operify/opsgate/src/application/service"
)

func (self *Web) ApiMonitorStartPost(w http.ResponseWriter, req *http.Request) {
	body := service.StartMonitoringRequest{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		self.ClientError(w, errors.WithMessage(err, "While decoding the request body"))
		return
	}
	if body.ServiceName == "" || body.JobId == "" || body.MonitorUrl == "" {
		self.ClientError(w, errors.New("service_name, job_id and monitor_url are required"))
		return
	}

	taskId, err := self.MonitorService.StartMonitoring(body)
	if err != nil {
		self.ServerError(w, err)
		return
	}

	self.json(w, map[string]string{"task_id": taskId}, http.StatusCreated)
}

func (self *Web) ApiMonitorStatusIdGet(w http.ResponseWriter, req *http.Request) {
	taskId := mux.Vars(req)["id"]

	task, err := self.MonitorService.GetStatus(taskId)
	if errors.Is(err, service.ErrTaskNotFound) {
		self.NotFound(w, err)
		return
	} else if err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Could not get monitoring task %q", taskId))
		return
	}

	self.json(w, task, http.StatusOK)
}

func (self *Web) ApiMonitorListGet(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if limitStr := req.FormValue("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err != nil {
			self.ClientError(w, errors.WithMessage(err, "limit parameter is invalid, should be positive integer"))
			return
		} else {
			limit = parsed
		}
	}

	tasks, err := self.MonitorService.List(limit)
	if err != nil {
		self.ServerError(w, err)
		return
	}

	self.json(w, map[string]any{"tasks": tasks}, http.StatusOK)
}

func (self *Web) ApiMonitorStopIdDelete(w http.ResponseWriter, req *http.Request) {
	taskId := mux.Vars(req)["id"]

	task, err := self.MonitorService.Stop(taskId)
	if errors.Is(err, service.ErrTaskNotFound) {
		self.NotFound(w, err)
		return
	} else if err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Could not stop monitoring task %q", taskId))
		return
	}

	self.json(w, task, http.StatusOK)
}
