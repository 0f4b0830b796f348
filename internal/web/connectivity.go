// Package web exposes the tracker to its host: the connectivity check
// settings action and the HTTP handlers that front the resolution pipeline.
package web

import (
	"context"
	"strings"

	"github.com/quayside/adotrack/internal/ado"
	"github.com/quayside/adotrack/internal/results"
)

// CheckMessageCategory classifies a connectivity check message.
type CheckMessageCategory string

const (
	CheckInfo    CheckMessageCategory = "info"
	CheckWarning CheckMessageCategory = "warning"
	CheckError   CheckMessageCategory = "error"
)

// CheckMessage is one line of connectivity check feedback.
type CheckMessage struct {
	Category CheckMessageCategory `json:"category"`
	Message  string               `json:"message"`
}

// CheckRequest carries the settings values under test. A blank token means
// the caller saved the form without re-entering the token, so the stored one
// is used.
type CheckRequest struct {
	BaseURL             string `json:"base_url"`
	PersonalAccessToken string `json:"personal_access_token"`
}

// checkSettings is the slice of stored configuration the check needs.
type checkSettings interface {
	IsEnabled(ctx context.Context) (bool, error)
	PersonalAccessToken(ctx context.Context) (string, error)
}

// checkClient is the slice of the API client the check needs.
type checkClient interface {
	GetProjectList(ctx context.Context, organizationURL, pat string, testing bool) results.Result[[]string]
	GetBuildWorkItemsRefs(ctx context.Context, build ado.BuildUrls, pat string, testing bool) results.Result[[]ado.WorkItemRef]
	GetWorkItem(ctx context.Context, projectUrls ado.ProjectUrls, workItemID int, pat string, testing bool) results.Result[ado.WorkItemDetail]
}

// CheckAction validates that the supplied connection settings can reach the
// required API scopes, probing a fixed build and work item per project and
// stopping at the first project that fully succeeds.
type CheckAction struct {
	settings checkSettings
	client   checkClient
}

// NewCheckAction builds the action.
func NewCheckAction(settings checkSettings, client checkClient) *CheckAction {
	return &CheckAction{settings: settings, client: client}
}

// Execute runs the check and returns the messages to display. It never
// returns an error; everything, including unexpected failures, becomes an
// error-category message.
func (a *CheckAction) Execute(ctx context.Context, req CheckRequest) []CheckMessage {
	pat := req.PersonalAccessToken
	if pat == "" {
		stored, err := a.settings.PersonalAccessToken(ctx)
		if err != nil {
			return []CheckMessage{{CheckError, "Could not read the stored Personal Access Token: " + err.Error()}}
		}
		pat = stored
	}

	if strings.TrimSpace(req.BaseURL) == "" {
		return []CheckMessage{{CheckError, "Please provide a value for the Azure DevOps Base URL."}}
	}

	urls, err := ado.ParseOrganizationAndProjectUrls(req.BaseURL)
	if err != nil {
		return []CheckMessage{{CheckError, err.Error()}}
	}

	var projectUrls []ado.ProjectUrls
	if urls.ProjectURL != "" {
		projectUrls = []ado.ProjectUrls{urls}
	} else {
		projects := a.client.GetProjectList(ctx, urls.OrganizationURL, pat, true)
		if !projects.OK() {
			return []CheckMessage{{CheckError, projects.ErrorString()}}
		}
		if len(projects.Value()) == 0 {
			return []CheckMessage{{CheckError, "Successfully connected, but unable to find any projects to test permissions."}}
		}
		for _, project := range projects.Value() {
			projectUrls = append(projectUrls, ado.ProjectUrls{
				OrganizationURL: urls.OrganizationURL,
				ProjectURL:      urls.OrganizationURL + "/" + project,
			})
		}
	}

	var messages []CheckMessage
	for _, project := range projectUrls {
		buildScope := a.client.GetBuildWorkItemsRefs(ctx, ado.NewBuildUrls(project, 1), pat, true)
		if !buildScope.OK() {
			messages = append(messages, CheckMessage{CheckWarning, buildScope.ErrorString()})
			continue
		}

		workItemScope := a.client.GetWorkItem(ctx, project, 1, pat, true)
		if !workItemScope.OK() {
			messages = append(messages, CheckMessage{CheckWarning, workItemScope.ErrorString()})
			continue
		}

		// One fully green project proves the token; drop the warnings
		// accumulated from earlier projects.
		messages = []CheckMessage{{CheckInfo, "The Azure DevOps connection was tested successfully."}}
		enabled, err := a.settings.IsEnabled(ctx)
		if err == nil && !enabled {
			messages = append(messages, CheckMessage{CheckInfo,
				"The Azure DevOps tracker is not enabled, so its functionality will not currently be available."})
		}
		return messages
	}
	return messages
}
