package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quayside/adotrack/internal/ado"
	"github.com/quayside/adotrack/internal/configstore"
	"github.com/quayside/adotrack/internal/logging"
	"github.com/quayside/adotrack/internal/web"
	"github.com/quayside/adotrack/internal/workitems"
)

func openStore() (*configstore.Store, error) {
	return configstore.Open(cfg.Storage.Database)
}

func newResolver(store *configstore.Store) *ado.Client {
	return workitems.NewResolver(logging.Default(), store, &http.Client{Timeout: cfg.HTTP.Timeout})
}

// maskToken renders a sensitive value without revealing it.
func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	return "********"
}

// config commands

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the global connection settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored connection settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		settings, err := store.GetSettings(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Enabled:\t%v\n", settings.Enabled)
		fmt.Fprintf(w, "Base URL:\t%s\n", settings.BaseURL)
		fmt.Fprintf(w, "Personal Access Token:\t%s\n", maskToken(settings.PersonalAccessToken))
		fmt.Fprintf(w, "Release note prefix:\t%s\n", settings.ReleaseNotePrefix)
		return w.Flush()
	},
}

var (
	setBaseURL string
	setToken   string
	setPrefix  string
	setEnabled bool
)

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change connection settings; only the flags given are changed",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		if cmd.Flags().Changed("base-url") {
			if _, err := ado.ParseOrganizationAndProjectUrls(setBaseURL); err != nil {
				return err
			}
			if err := store.SetBaseURL(ctx, setBaseURL); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("token") {
			if err := store.SetPersonalAccessToken(ctx, setToken); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("release-note-prefix") {
			if err := store.SetReleaseNotePrefix(ctx, setPrefix); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("enabled") {
			if err := store.SetEnabled(ctx, setEnabled); err != nil {
				return err
			}
		}
		fmt.Println("Settings updated.")
		return nil
	},
}

// override commands

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage per-tenant connection overrides",
}

var overrideListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active tenant overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		overrides, err := store.ListOverrides(cmd.Context())
		if err != nil {
			return err
		}
		if len(overrides) == 0 {
			fmt.Println("No tenant overrides configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TENANT\tBASE URL\tTOKEN\tPREFIX")
		for _, o := range overrides {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.TenantID, o.BaseURL, maskToken(o.PersonalAccessToken), o.ReleaseNotePrefix)
		}
		return w.Flush()
	},
}

var (
	overrideBaseURL string
	overrideToken   string
	overridePrefix  string
)

var overrideSetCmd = &cobra.Command{
	Use:   "set <tenant-id>",
	Short: "Create or replace a tenant override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := ado.ParseOrganizationAndProjectUrls(overrideBaseURL); err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		err = store.SetOverride(cmd.Context(), configstore.Override{
			TenantID:            args[0],
			BaseURL:             overrideBaseURL,
			PersonalAccessToken: overrideToken,
			ReleaseNotePrefix:   overridePrefix,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Override for tenant %s updated.\n", args[0])
		return nil
	},
}

var overrideRmCmd = &cobra.Command{
	Use:   "rm <tenant-id>",
	Short: "Remove a tenant override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteOverride(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Override for tenant %s removed.\n", args[0])
		return nil
	},
}

// connectivity check

var (
	checkBaseURL string
	checkToken   string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test that the configured connection can reach the required API scopes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		baseURL := checkBaseURL
		if baseURL == "" {
			baseURL, err = store.BaseURL(ctx)
			if err != nil {
				return err
			}
		}

		action := web.NewCheckAction(store, newResolver(store))
		messages := action.Execute(ctx, web.CheckRequest{BaseURL: baseURL, PersonalAccessToken: checkToken})

		failed := false
		for _, m := range messages {
			fmt.Printf("[%s] %s\n", strings.ToUpper(string(m.Category)), m.Message)
			if m.Category == web.CheckError {
				failed = true
			}
		}
		if failed {
			return fmt.Errorf("connectivity check failed")
		}
		return nil
	},
}

// ad-hoc resolution

var resolveTenant string

var resolveCmd = &cobra.Command{
	Use:   "resolve <build-url>",
	Short: "Resolve the work item links for a build results URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		build, err := ado.ParseBrowserUrl(args[0])
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		links := newResolver(store).GetBuildWorkItemLinks(cmd.Context(), build, resolveTenant)
		if !links.OK() {
			return fmt.Errorf("%s", links.ErrorString())
		}
		if len(links.Value()) == 0 {
			fmt.Println("No work items are associated with this build.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDESCRIPTION\tLINK")
		for _, link := range links.Value() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", link.ID, link.Description, link.LinkURL)
		}
		return w.Flush()
	},
}

func init() {
	configSetCmd.Flags().StringVar(&setBaseURL, "base-url", "", "Azure DevOps base URL, e.g. https://dev.azure.com/my-org")
	configSetCmd.Flags().StringVar(&setToken, "token", "", "Personal Access Token with Build (read) and Work items (read) scopes")
	configSetCmd.Flags().StringVar(&setPrefix, "release-note-prefix", "", "comment prefix marking release notes")
	configSetCmd.Flags().BoolVar(&setEnabled, "enabled", false, "enable or disable the tracker")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)

	overrideSetCmd.Flags().StringVar(&overrideBaseURL, "base-url", "", "base URL the override covers")
	overrideSetCmd.Flags().StringVar(&overrideToken, "token", "", "Personal Access Token for the override")
	overrideSetCmd.Flags().StringVar(&overridePrefix, "release-note-prefix", "", "release note prefix for the override")
	_ = overrideSetCmd.MarkFlagRequired("base-url")
	overrideCmd.AddCommand(overrideListCmd)
	overrideCmd.AddCommand(overrideSetCmd)
	overrideCmd.AddCommand(overrideRmCmd)

	checkCmd.Flags().StringVar(&checkBaseURL, "base-url", "", "base URL to test (defaults to the stored value)")
	checkCmd.Flags().StringVar(&checkToken, "token", "", "token to test (defaults to the stored value)")

	resolveCmd.Flags().StringVar(&resolveTenant, "tenant", "", "tenant whose override settings apply")
}
