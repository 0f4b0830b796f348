package workitems

import (
	"context"
	"log/slog"

	"github.com/quayside/adotrack/internal/ado"
	"github.com/quayside/adotrack/internal/configstore"
)

// NewResolver wires the API client against the settings store, including the
// tenant override lookup.
func NewResolver(log *slog.Logger, store *configstore.Store, doer ado.Doer) *ado.Client {
	lookup := func(ctx context.Context, tenant string) (*ado.Override, error) {
		override, err := store.Override(ctx, tenant)
		if err != nil || override == nil {
			return nil, err
		}
		return &ado.Override{
			BaseURL:             override.BaseURL,
			PersonalAccessToken: override.PersonalAccessToken,
			ReleaseNotePrefix:   override.ReleaseNotePrefix,
		}, nil
	}
	return ado.NewClient(log, store, lookup, ado.NewHTTPJSONClient(doer))
}
