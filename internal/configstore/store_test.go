package configstore

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "adotrack.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDefaults(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	enabled, err := store.IsEnabled(ctx)
	if err != nil {
		t.Fatalf("IsEnabled: %v", err)
	}
	if enabled {
		t.Error("a fresh store must start disabled")
	}

	settings, err := store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings != (Settings{}) {
		t.Errorf("fresh settings = %+v, want zero values", settings)
	}
}

func TestSettingsRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SetEnabled(ctx, true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if err := store.SetBaseURL(ctx, "http://redstoneblock/DefaultCollection/"); err != nil {
		t.Fatalf("SetBaseURL: %v", err)
	}
	if err := store.SetPersonalAccessToken(ctx, "rumor"); err != nil {
		t.Fatalf("SetPersonalAccessToken: %v", err)
	}
	if err := store.SetReleaseNotePrefix(ctx, "= Changelog ="); err != nil {
		t.Fatalf("SetReleaseNotePrefix: %v", err)
	}

	settings, err := store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	want := Settings{
		Enabled:             true,
		BaseURL:             "http://redstoneblock/DefaultCollection",
		PersonalAccessToken: "rumor",
		ReleaseNotePrefix:   "= Changelog =",
	}
	if settings != want {
		t.Errorf("settings = %+v, want %+v", settings, want)
	}

	baseURL, err := store.BaseURL(ctx)
	if err != nil {
		t.Fatalf("BaseURL: %v", err)
	}
	if baseURL != "http://redstoneblock/DefaultCollection" {
		t.Errorf("BaseURL = %q, want the trailing slash trimmed", baseURL)
	}
}

func TestReopenKeepsSettings(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "adotrack.db")
	ctx := context.Background()

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.SetBaseURL(ctx, "https://dev.azure.com/fabrikam"); err != nil {
		t.Fatalf("SetBaseURL: %v", err)
	}
	store.Close()

	store, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()

	baseURL, err := store.BaseURL(ctx)
	if err != nil {
		t.Fatalf("BaseURL: %v", err)
	}
	if baseURL != "https://dev.azure.com/fabrikam" {
		t.Errorf("BaseURL = %q after reopen", baseURL)
	}
}

func TestOverrides(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	t.Run("absent tenant has no override", func(t *testing.T) {
		o, err := store.Override(ctx, "Space-1")
		if err != nil {
			t.Fatalf("Override: %v", err)
		}
		if o != nil {
			t.Errorf("override = %+v, want nil", o)
		}
	})

	t.Run("set and read back", func(t *testing.T) {
		err := store.SetOverride(ctx, Override{
			TenantID:            "Space-1",
			BaseURL:             "http://redstoneblock/DefaultCollection/",
			PersonalAccessToken: "spaceRumor",
			ReleaseNotePrefix:   "Release note:",
		})
		if err != nil {
			t.Fatalf("SetOverride: %v", err)
		}

		o, err := store.Override(ctx, "Space-1")
		if err != nil {
			t.Fatalf("Override: %v", err)
		}
		if o == nil {
			t.Fatal("override is nil after SetOverride")
		}
		if o.BaseURL != "http://redstoneblock/DefaultCollection" {
			t.Errorf("BaseURL = %q, want the trailing slash trimmed", o.BaseURL)
		}
		if o.PersonalAccessToken != "spaceRumor" || o.ReleaseNotePrefix != "Release note:" {
			t.Errorf("override = %+v", o)
		}
	})

	t.Run("replace is an upsert", func(t *testing.T) {
		err := store.SetOverride(ctx, Override{
			TenantID:            "Space-1",
			BaseURL:             "https://dev.azure.com/fabrikam",
			PersonalAccessToken: "newToken",
		})
		if err != nil {
			t.Fatalf("SetOverride: %v", err)
		}

		o, err := store.Override(ctx, "Space-1")
		if err != nil {
			t.Fatalf("Override: %v", err)
		}
		if o == nil || o.BaseURL != "https://dev.azure.com/fabrikam" || o.PersonalAccessToken != "newToken" {
			t.Errorf("override = %+v", o)
		}
	})

	t.Run("list is ordered by tenant", func(t *testing.T) {
		if err := store.SetOverride(ctx, Override{TenantID: "Space-0", BaseURL: "http://host/coll"}); err != nil {
			t.Fatalf("SetOverride: %v", err)
		}

		overrides, err := store.ListOverrides(ctx)
		if err != nil {
			t.Fatalf("ListOverrides: %v", err)
		}
		if len(overrides) != 2 || overrides[0].TenantID != "Space-0" || overrides[1].TenantID != "Space-1" {
			t.Errorf("overrides = %+v", overrides)
		}
	})

	t.Run("delete removes the override", func(t *testing.T) {
		if err := store.DeleteOverride(ctx, "Space-1"); err != nil {
			t.Fatalf("DeleteOverride: %v", err)
		}
		o, err := store.Override(ctx, "Space-1")
		if err != nil {
			t.Fatalf("Override: %v", err)
		}
		if o != nil {
			t.Errorf("override = %+v, want nil after delete", o)
		}
	})

	t.Run("missing tenant id is rejected", func(t *testing.T) {
		if err := store.SetOverride(ctx, Override{BaseURL: "http://host/coll"}); err == nil {
			t.Error("expected an error for an empty tenant id")
		}
	})
}
