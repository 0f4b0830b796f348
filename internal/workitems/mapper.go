// Package workitems is the host-facing entry point of the tracker: given the
// build information recorded with a deployed package, it decides whether the
// build came from Azure DevOps and, if so, resolves its work item links.
package workitems

import (
	"context"
	"log/slog"
	"strings"

	"github.com/quayside/adotrack/internal/ado"
	"github.com/quayside/adotrack/internal/results"
)

// BuildInformation is the host's record of how a package was built.
type BuildInformation struct {
	PackageID        string `json:"package_id"`
	Version          string `json:"version"`
	BuildEnvironment string `json:"build_environment"`
	BuildURL         string `json:"build_url"`
	BuildNumber      string `json:"build_number"`
}

// State classifies a resolution outcome for the host.
type State int

const (
	// StateResolved means the pass ran (possibly finding no links).
	StateResolved State = iota
	// StateDisabled means the tracker is switched off in settings, an
	// intentional skip rather than an error.
	StateDisabled
	// StateFailed means the pass could not complete.
	StateFailed
)

// Outcome is what the host sees from one resolution pass.
type Outcome struct {
	State  State
	Links  []ado.WorkItemLink
	Errors []string
}

// EnablementReader reports whether the tracker is enabled in settings.
type EnablementReader interface {
	IsEnabled(ctx context.Context) (bool, error)
}

// LinkResolver resolves the work item links for a parsed build URL.
type LinkResolver interface {
	GetBuildWorkItemLinks(ctx context.Context, build ado.BuildUrls, tenant string) results.Result[[]ado.WorkItemLink]
}

// Mapper gates a resolution pass on the stored configuration and the build's
// provenance before delegating to the API client.
type Mapper struct {
	log      *slog.Logger
	enabled  EnablementReader
	resolver LinkResolver
}

// NewMapper builds a mapper.
func NewMapper(log *slog.Logger, enabled EnablementReader, resolver LinkResolver) *Mapper {
	if log == nil {
		log = slog.Default()
	}
	return &Mapper{log: log, enabled: enabled, resolver: resolver}
}

// Map runs one resolution pass. Preconditions are checked in order and the
// first that applies wins: a disabled tracker yields StateDisabled; missing
// build information, a foreign build environment or a blank build URL yield
// an empty resolved outcome, since the build simply is not ours. Every
// failure, including a build URL that does not parse, is converted into a
// failed outcome so no fault ever escapes to the host.
func (m *Mapper) Map(ctx context.Context, info *BuildInformation, tenant string) Outcome {
	enabled, err := m.enabled.IsEnabled(ctx)
	if err != nil {
		return Outcome{State: StateFailed, Errors: []string{"could not read the Azure DevOps settings: " + err.Error()}}
	}
	if !enabled {
		m.log.Debug("azure devops tracker is disabled in settings")
		return Outcome{State: StateDisabled}
	}

	if info == nil {
		m.log.Debug("no build information supplied, nothing to resolve")
		return Outcome{State: StateResolved}
	}
	if info.BuildEnvironment != ado.SourceName {
		m.log.Debug("build did not come from azure devops, skipping",
			"package_id", info.PackageID, "build_environment", info.BuildEnvironment)
		return Outcome{State: StateResolved}
	}
	if strings.TrimSpace(info.BuildURL) == "" {
		m.log.Info("build information has no build URL, skipping work item association",
			"package_id", info.PackageID, "version", info.Version)
		return Outcome{State: StateResolved}
	}

	build, err := ado.ParseBrowserUrl(info.BuildURL)
	if err != nil {
		return Outcome{State: StateFailed, Errors: []string{err.Error()}}
	}

	links := m.resolver.GetBuildWorkItemLinks(ctx, build, tenant)
	if !links.OK() {
		return Outcome{State: StateFailed, Errors: links.Errors()}
	}
	return Outcome{State: StateResolved, Links: links.Value()}
}
