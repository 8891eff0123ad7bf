// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package api

import (
	"net/http"

	"github.com/nesttask/client/internal/app"
	"github.com/nesttask/client/internal/platform/constants"
	"github.com/nesttask/client/internal/platform/respond"
)

// StatusSnapshot is the /status payload: the observable state of the
// client core at one instant.
type StatusSnapshot struct {
	Version      string `json:"version"`
	SignedIn     bool   `json:"signed_in"`
	UserID       string `json:"user_id,omitempty"`
	Role         string `json:"role,omitempty"`
	Connectivity string `json:"connectivity"`
	Recovery     string `json:"recovery"`
	TaskCount    int    `json:"task_count"`
	TasksLoading bool   `json:"tasks_loading"`
}

// NewStatusHandler creates the GET /status handler over the assembled core.
func NewStatusHandler(core *app.App) http.HandlerFunc {
	return func(writer http.ResponseWriter, _ *http.Request) {
		snapshot := StatusSnapshot{
			Version:      constants.AppVersion,
			Connectivity: core.Detector.State().String(),
			Recovery:     core.Recovery.State().String(),
			TaskCount:    len(core.Tasks.Tasks()),
			TasksLoading: core.Tasks.Loading(),
		}

		if session := core.Sessions.Session(); session != nil {
			snapshot.SignedIn = true
			snapshot.UserID = session.UserID
			snapshot.Role = string(session.Role)
		}

		respond.OK(writer, snapshot)
	}
}
