package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/operify/opsgate/src/application/service"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
)

type apiScanTriggerPostBody struct {
	JobName    string            `json:"job_name"`
	Parameters map[string]string `json:"parameters"`
}

func (self *Web) ApiScanTriggerPost(w http.ResponseWriter, req *http.Request) {
	body := apiScanTriggerPostBody{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		self.ClientError(w, errors.WithMessage(err, "While decoding the request body"))
		return
	}
	if body.JobName == "" {
		self.ClientError(w, errors.New("job_name is required"))
		return
	}

	task, err := self.ScanService.Trigger(req.Context(), requestUser(req), body.JobName, body.Parameters)
	if err != nil {
		if task != nil {
			// The task was recorded as failed, report it anyway.
			self.json(w, task, http.StatusOK)
			return
		}
		self.ServerError(w, err)
		return
	}

	self.json(w, task, http.StatusCreated)
}

func (self *Web) ApiScanTasksGet(w http.ResponseWriter, req *http.Request) {
	status, err := getStatusFilter(req)
	if err != nil {
		self.ClientError(w, err)
		return
	}

	if page, err := getPage(req); err != nil {
		self.ClientError(w, err)
	} else if tasks, err := self.ScanService.GetTasks(requestUser(req).Id, status, page); err != nil {
		self.ServerError(w, err)
	} else {
		self.json(w, map[string]any{
			"tasks":       tasks,
			"total":       page.Total,
			"page":        page.Number(),
			"per_page":    page.Limit,
			"total_pages": page.Pages(),
			"has_next":    page.NextOffset() != nil,
			"has_prev":    page.PrevOffset() != nil,
		}, http.StatusOK)
	}
}

func (self *Web) ApiScanTasksCursorGet(w http.ResponseWriter, req *http.Request) {
	status, err := getStatusFilter(req)
	if err != nil {
		self.ClientError(w, err)
		return
	}

	page := repository.CursorPage{Limit: 10}
	if limitStr := req.FormValue("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err != nil {
			self.ClientError(w, errors.WithMessage(err, "limit parameter is invalid, should be positive integer"))
			return
		} else {
			page.Limit = limit
		}
	}
	if cursorStr := req.FormValue("cursor"); cursorStr != "" {
		if cursor, err := strconv.ParseInt(cursorStr, 10, 64); err != nil {
			self.ClientError(w, errors.WithMessage(err, "cursor parameter is invalid, should be an integer"))
			return
		} else {
			page.Cursor = &cursor
		}
	}

	if tasks, err := self.ScanService.GetTasksCursor(requestUser(req).Id, status, &page); err != nil {
		self.ServerError(w, err)
	} else {
		self.json(w, map[string]any{
			"tasks":       tasks,
			"next_cursor": page.NextCursor,
			"has_more":    page.HasMore,
		}, http.StatusOK)
	}
}

func (self *Web) ApiScanTasksIdGet(w http.ResponseWriter, req *http.Request) {
	taskId := mux.Vars(req)["id"]

	task, err := self.ScanService.GetByTaskId(requestUser(req).Id, taskId)
	if errors.Is(err, service.ErrTaskNotFound) {
		self.NotFound(w, err)
		return
	} else if err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Could not get scan task %q", taskId))
		return
	}

	self.json(w, task, http.StatusOK)
}

func (self *Web) ApiScanJobsGet(w http.ResponseWriter, req *http.Request) {
	if jobs, err := self.JenkinsService.GetJobs(req.Context()); err != nil {
		self.ServerError(w, err)
	} else {
		self.json(w, map[string]any{"jobs": jobs}, http.StatusOK)
	}
}

func getStatusFilter(req *http.Request) (*domain.ScanTaskStatus, error) {
	statusStr := req.FormValue("status")
	if statusStr == "" {
		return nil, nil
	}

	status := new(domain.ScanTaskStatus)
	if err := status.FromString(statusStr); err != nil {
		return nil, errors.WithMessagef(err, "status parameter is invalid: %q", statusStr)
	}
	return status, nil
}
