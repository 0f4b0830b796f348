// Package ado talks to the Azure DevOps REST API: it resolves the work items
// associated with a build and turns them into display links carrying release
// notes extracted from work-item comments.
package ado

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/quayside/adotrack/internal/results"
)

// SourceName tags links produced by this tracker and is the build
// environment value builds from Azure DevOps report.
const SourceName = "Azure DevOps"

const apiVersion = "4.1"

// commentsAPIVersion is newer because the comments endpoint only exists in
// preview form on the 4.x line.
const commentsAPIVersion = "4.1-preview.2"

// fanOutLimit caps concurrent per-work-item requests. The remote API copes
// badly with a request per work item on large builds, so resolution runs in
// bounded waves.
const fanOutLimit = 8

// WorkItemRef is one entry of the build's associated-work-items response.
type WorkItemRef struct {
	ID  int
	URL string
}

// WorkItemDetail carries the fields needed to render a link. A zero
// CommentCount means the comments endpoint is not worth calling.
type WorkItemDetail struct {
	Title        string
	CommentCount int
}

// WorkItemLink is the externally visible result entity, handed to the host
// once per resolved work item.
type WorkItemLink struct {
	ID          string `json:"id"`
	LinkURL     string `json:"link_url"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// Settings supplies the stored global connection configuration. The store is
// read-only during a resolution pass; writes happen on a separate
// administrative path.
type Settings interface {
	BaseURL(ctx context.Context) (string, error)
	PersonalAccessToken(ctx context.Context) (string, error)
	ReleaseNotePrefix(ctx context.Context) (string, error)
}

// Override is a tenant-scoped replacement for the global connection
// settings.
type Override struct {
	BaseURL             string
	PersonalAccessToken string
	ReleaseNotePrefix   string
}

// OverrideLookup returns the tenant's connection override, or nil when the
// tenant does not override the global settings.
type OverrideLookup func(ctx context.Context, tenant string) (*Override, error)

// Client is the Azure DevOps API client. All methods report expected
// failures (remote rejections, malformed responses, misconfiguration) as
// results; errors never escape to callers as panics.
type Client struct {
	log       *slog.Logger
	settings  Settings
	overrides OverrideLookup
	http      JSONClient
}

// NewClient builds a client. overrides may be nil when tenant overrides are
// not in play.
func NewClient(log *slog.Logger, settings Settings, overrides OverrideLookup, httpClient JSONClient) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{log: log, settings: settings, overrides: overrides, http: httpClient}
}

// refID tolerates the API quirk of returning work item ids as JSON strings
// in the refs payload but as numbers everywhere else.
type refID int

func (r *refID) UnmarshalJSON(data []byte) error {
	n, err := strconv.Atoi(strings.Trim(string(data), `"`))
	if err != nil {
		return fmt.Errorf("work item id: %w", err)
	}
	*r = refID(n)
	return nil
}

// GetBuildWorkItemsRefs lists the work items associated with a build. A 404
// is a deleted build, which legitimately has no work items.
func (c *Client) GetBuildWorkItemsRefs(ctx context.Context, build BuildUrls, pat string, testing bool) results.Result[[]WorkItemRef] {
	url := fmt.Sprintf("%s/_apis/build/builds/%d/workitems?api-version=%s", build.ProjectURL, build.BuildID, apiVersion)
	if pat == "" {
		pat = c.globalToken(ctx, build.OrganizationURL)
	}

	status, body, err := c.http.Get(ctx, url, pat)
	if err != nil {
		return results.Failedf[[]WorkItemRef]("Error while fetching work item references from Azure DevOps: %v", err)
	}
	if status.NotFound() {
		return results.Success[[]WorkItemRef](nil)
	}
	if !status.OK() {
		return results.Failedf[[]WorkItemRef]("Error while fetching work item references from Azure DevOps: %s", describeStatus(status, body, testing))
	}

	var payload struct {
		Value []struct {
			ID  refID  `json:"id"`
			URL string `json:"url"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return results.Failed[[]WorkItemRef]("Unable to interpret work item references from Azure DevOps.")
	}

	refs := make([]WorkItemRef, 0, len(payload.Value))
	for _, v := range payload.Value {
		refs = append(refs, WorkItemRef{ID: int(v.ID), URL: v.URL})
	}
	return results.Success(refs)
}

// GetWorkItem fetches a work item's title and comment count. A 404 is a
// deleted work item, rendered with its own id as a stand-in title.
func (c *Client) GetWorkItem(ctx context.Context, projectUrls ProjectUrls, workItemID int, pat string, testing bool) results.Result[WorkItemDetail] {
	url := fmt.Sprintf("%s/_apis/wit/workitems/%d?api-version=%s", projectUrls.ProjectURL, workItemID, apiVersion)
	if pat == "" {
		pat = c.globalToken(ctx, projectUrls.OrganizationURL)
	}

	status, body, err := c.http.Get(ctx, url, pat)
	if err != nil {
		return results.Failedf[WorkItemDetail]("Error while fetching work item details from Azure DevOps: %v", err)
	}
	if status.NotFound() {
		return results.Success(WorkItemDetail{Title: strconv.Itoa(workItemID)})
	}
	if !status.OK() {
		return results.Failedf[WorkItemDetail]("Error while fetching work item details from Azure DevOps: %s", describeStatus(status, body, testing))
	}

	var payload struct {
		Fields *struct {
			Title        string `json:"System.Title"`
			CommentCount int    `json:"System.CommentCount"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return results.Failed[WorkItemDetail]("Unable to interpret work item details from Azure DevOps.")
	}
	if payload.Fields == nil {
		return results.Failed[WorkItemDetail]("Unable to interpret work item details from Azure DevOps. The fields element is missing.")
	}
	return results.Success(WorkItemDetail{Title: payload.Fields.Title, CommentCount: payload.Fields.CommentCount})
}

// GetProjectList enumerates the project names under an organization.
func (c *Client) GetProjectList(ctx context.Context, organizationURL, pat string, testing bool) results.Result[[]string] {
	url := fmt.Sprintf("%s/_apis/projects?api-version=%s", organizationURL, apiVersion)
	if pat == "" {
		pat = c.globalToken(ctx, organizationURL)
	}

	status, body, err := c.http.Get(ctx, url, pat)
	if err != nil {
		return results.Failedf[[]string]("Error while fetching project list from Azure DevOps: %v", err)
	}
	if !status.OK() {
		return results.Failedf[[]string]("Error while fetching project list from Azure DevOps: %s", describeStatus(status, body, testing))
	}

	var payload struct {
		Value []struct {
			Name string `json:"name"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return results.Failed[[]string]("Unable to interpret project list from Azure DevOps.")
	}

	names := make([]string, 0, len(payload.Value))
	for _, p := range payload.Value {
		names = append(names, p.Name)
	}
	return results.Success(names)
}

// getWorkItemComments fetches up to 200 comments on a work item as plain
// text, blanks filtered out. A 404 is a deleted work item with no comments.
func (c *Client) getWorkItemComments(ctx context.Context, projectUrls ProjectUrls, workItemID int, pat string) results.Result[[]string] {
	url := fmt.Sprintf("%s/_apis/wit/workitems/%d/comments?api-version=%s", projectUrls.ProjectURL, workItemID, commentsAPIVersion)

	status, body, err := c.http.Get(ctx, url, pat)
	if err != nil {
		return results.Failedf[[]string]("Error while fetching work item comments from Azure DevOps: %v", err)
	}
	if status.NotFound() {
		return results.Success[[]string](nil)
	}
	if !status.OK() {
		return results.Failedf[[]string]("Error while fetching work item comments from Azure DevOps: %s", describeStatus(status, body, false))
	}

	var payload struct {
		Comments []struct {
			Text string `json:"text"`
		} `json:"comments"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return results.Failed[[]string]("Unable to interpret work item comments from Azure DevOps.")
	}

	var comments []string
	for _, comment := range payload.Comments {
		if text := HTMLToPlainText(comment.Text); text != "" {
			comments = append(comments, text)
		}
	}
	return results.Success(comments)
}

// getReleaseNote scans a work item's comments for the configured prefix and
// returns the trailing text of the last match. It returns "" when no prefix
// is configured, the item has no comments, or the comments cannot be
// fetched; the last case degrades with a warning instead of failing the
// item.
func (c *Client) getReleaseNote(ctx context.Context, projectUrls ProjectUrls, workItemID, commentCount int, pat, prefix string) string {
	if strings.TrimSpace(prefix) == "" || commentCount == 0 {
		return ""
	}

	comments := c.getWorkItemComments(ctx, projectUrls, workItemID, pat)
	if !comments.OK() {
		c.log.Warn("could not retrieve work item comments, continuing without a release note",
			"work_item_id", workItemID, "error", comments.ErrorString())
		return ""
	}

	for i := len(comments.Value()) - 1; i >= 0; i-- {
		comment := comments.Value()[i]
		if len(comment) >= len(prefix) && strings.EqualFold(comment[:len(prefix)], prefix) {
			return strings.TrimSpace(comment[len(prefix):])
		}
	}
	return ""
}

// resolveLink assembles the final link for one work item. Detail and comment
// failures degrade (stand-in title, no release note) rather than fail, so
// one bad work item cannot hide the release notes of the rest. The only
// error returned is context cancellation.
func (c *Client) resolveLink(ctx context.Context, projectUrls ProjectUrls, workItemID int, pat, prefix string) (WorkItemLink, error) {
	if err := ctx.Err(); err != nil {
		return WorkItemLink{}, err
	}

	var detail WorkItemDetail
	if res := c.GetWorkItem(ctx, projectUrls, workItemID, pat, false); res.OK() {
		detail = res.Value()
	} else {
		c.log.Warn("could not retrieve work item details, falling back to the work item id",
			"work_item_id", workItemID, "error", res.ErrorString())
	}

	description := c.getReleaseNote(ctx, projectUrls, workItemID, detail.CommentCount, pat, prefix)
	if description == "" {
		description = strings.TrimSpace(detail.Title)
	}
	if description == "" {
		description = strconv.Itoa(workItemID)
	}

	return WorkItemLink{
		ID:          strconv.Itoa(workItemID),
		LinkURL:     fmt.Sprintf("%s/_workitems?_a=edit&id=%d", projectUrls.ProjectURL, workItemID),
		Description: description,
		Source:      SourceName,
	}, nil
}

// GetBuildWorkItemLinks resolves every work item associated with a build
// into a display link. The credential is resolved once per call, the refs
// fetch failing fails the whole call, and the per-item fetches fan out
// concurrently with the output kept in ref order.
func (c *Client) GetBuildWorkItemLinks(ctx context.Context, build BuildUrls, tenant string) results.Result[[]WorkItemLink] {
	pat, err := c.resolveToken(ctx, tenant, build.OrganizationURL)
	if err != nil {
		return results.Failedf[[]WorkItemLink]("%v", err)
	}
	prefix, err := c.releaseNotePrefix(ctx, tenant)
	if err != nil {
		return results.Failedf[[]WorkItemLink]("%v", err)
	}

	refs := c.GetBuildWorkItemsRefs(ctx, build, pat, false)
	if !refs.OK() {
		return results.Relay[[]WorkItemLink](refs)
	}

	links := make([]WorkItemLink, len(refs.Value()))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, ref := range refs.Value() {
		i, ref := i, ref
		g.Go(func() error {
			link, err := c.resolveLink(gctx, build.ProjectUrls, ref.ID, pat, prefix)
			if err != nil {
				return err
			}
			links[i] = link
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results.Failedf[[]WorkItemLink]("Work item resolution was interrupted: %v", err)
	}
	return results.Success(links)
}

// resolveToken picks the credential for an organization: a tenant override
// whose base URL covers the organization wins, then the global token if the
// global base URL covers it. Resolution fails closed so a token is never
// sent to an origin its configured base URL does not cover; no resolvable
// credential is a local configuration error, not a remote failure.
func (c *Client) resolveToken(ctx context.Context, tenant, organizationURL string) (string, error) {
	if tenant != "" && c.overrides != nil {
		override, err := c.overrides(ctx, tenant)
		if err != nil {
			return "", fmt.Errorf("could not read the Azure DevOps settings override: %v", err)
		}
		if override != nil {
			if isBaseOf(override.BaseURL, organizationURL) {
				return override.PersonalAccessToken, nil
			}
			return "", fmt.Errorf("the Azure DevOps connection configured for this space does not cover %s. Check the Azure DevOps connection settings.", organizationURL)
		}
	}

	baseURL, err := c.settings.BaseURL(ctx)
	if err != nil {
		return "", fmt.Errorf("could not read the Azure DevOps settings: %v", err)
	}
	if baseURL == "" || !isBaseOf(baseURL, organizationURL) {
		return "", fmt.Errorf("no Azure DevOps connection is configured for %s. Check the Azure DevOps connection settings.", organizationURL)
	}
	pat, err := c.settings.PersonalAccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("could not read the Azure DevOps settings: %v", err)
	}
	return pat, nil
}

// releaseNotePrefix resolves the prefix marker, honoring a tenant override
// when one is active.
func (c *Client) releaseNotePrefix(ctx context.Context, tenant string) (string, error) {
	if tenant != "" && c.overrides != nil {
		override, err := c.overrides(ctx, tenant)
		if err != nil {
			return "", fmt.Errorf("could not read the Azure DevOps settings override: %v", err)
		}
		if override != nil && override.ReleaseNotePrefix != "" {
			return override.ReleaseNotePrefix, nil
		}
	}
	prefix, err := c.settings.ReleaseNotePrefix(ctx)
	if err != nil {
		return "", fmt.Errorf("could not read the Azure DevOps settings: %v", err)
	}
	return prefix, nil
}

// globalToken is the lenient single-call variant of credential resolution:
// it returns the global token when the global base URL covers the
// organization and "" otherwise, letting the remote API reject the
// unauthenticated request.
func (c *Client) globalToken(ctx context.Context, organizationURL string) string {
	baseURL, err := c.settings.BaseURL(ctx)
	if err != nil || baseURL == "" || !isBaseOf(baseURL, organizationURL) {
		return ""
	}
	pat, err := c.settings.PersonalAccessToken(ctx)
	if err != nil {
		return ""
	}
	return pat
}
