package ado

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnrecognizedBuildURL is returned when a browser URL does not look like
// an Azure DevOps build results page.
var ErrUnrecognizedBuildURL = errors.New("unrecognized build browse URL")

// buildPathPattern matches `<org>/<project>/_build` where <org> is the
// scheme, host and collection (or dev.azure.com organization) segment.
var buildPathPattern = regexp.MustCompile(`^\s*((https?://.+?)/+[^/]+)/+_build\b`)

// ProjectUrls identifies an Azure DevOps organization and, optionally, one
// project within it. ProjectURL is empty when a base URL names only the
// organization, which means "every project under it".
type ProjectUrls struct {
	OrganizationURL string
	ProjectURL      string
}

// BuildUrls identifies one build within a project.
type BuildUrls struct {
	ProjectUrls
	BuildID int
}

// NewBuildUrls pairs a project with a build id, used by the connectivity
// check to probe a fixed build.
func NewBuildUrls(projectUrls ProjectUrls, buildID int) BuildUrls {
	return BuildUrls{ProjectUrls: projectUrls, BuildID: buildID}
}

// ParseBrowserUrl converts the browser URL of a build results page into its
// organization/project API endpoints and build id. It never returns a
// partially filled value: either every field parses or the error is set.
func ParseBrowserUrl(browserURL string) (BuildUrls, error) {
	m := buildPathPattern.FindStringSubmatch(browserURL)
	if m == nil {
		return BuildUrls{}, fmt.Errorf("%w: %q", ErrUnrecognizedBuildURL, strings.TrimSpace(browserURL))
	}

	u, err := url.Parse(strings.TrimSpace(browserURL))
	if err != nil {
		return BuildUrls{}, fmt.Errorf("%w: %q", ErrUnrecognizedBuildURL, strings.TrimSpace(browserURL))
	}
	buildID, err := strconv.Atoi(u.Query().Get("buildId"))
	if err != nil || buildID <= 0 {
		return BuildUrls{}, fmt.Errorf("%w: missing or invalid buildId parameter", ErrUnrecognizedBuildURL)
	}

	return BuildUrls{
		ProjectUrls: ProjectUrls{
			OrganizationURL: m[2],
			ProjectURL:      m[1],
		},
		BuildID: buildID,
	}, nil
}

// ParseOrganizationAndProjectUrls splits a configured base URL into the
// organization URL and, when the URL carries a second path segment, the
// project URL. A missing project segment leaves ProjectURL empty.
func ParseOrganizationAndProjectUrls(baseURL string) (ProjectUrls, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ProjectUrls{}, fmt.Errorf("not a valid Azure DevOps base URL: %q", baseURL)
	}

	segments := splitPathSegments(u.Path)
	if len(segments) == 0 {
		return ProjectUrls{}, fmt.Errorf("base URL %q is missing the collection or organization segment", baseURL)
	}

	organization := u.Scheme + "://" + u.Host + "/" + segments[0]
	urls := ProjectUrls{OrganizationURL: organization}
	if len(segments) > 1 {
		urls.ProjectURL = organization + "/" + segments[1]
	}
	return urls, nil
}

// isBaseOf reports whether base covers target: same scheme and host, and
// base's path is a segment-aligned prefix of target's path. Used to decide
// whether a configured credential may be sent to an organization URL.
func isBaseOf(base, target string) bool {
	b, err := url.Parse(strings.TrimRight(strings.TrimSpace(base), "/"))
	if err != nil || b.Host == "" {
		return false
	}
	t, err := url.Parse(strings.TrimRight(strings.TrimSpace(target), "/"))
	if err != nil || t.Host == "" {
		return false
	}
	if !strings.EqualFold(b.Scheme, t.Scheme) || !strings.EqualFold(b.Host, t.Host) {
		return false
	}

	baseSegs := splitPathSegments(b.Path)
	targetSegs := splitPathSegments(t.Path)
	if len(baseSegs) > len(targetSegs) {
		return false
	}
	for i, seg := range baseSegs {
		if !strings.EqualFold(seg, targetSegs[i]) {
			return false
		}
	}
	return true
}

func splitPathSegments(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
