package ado

import (
	"errors"
	"testing"
)

func TestParseBrowserUrl(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantOrg string
		wantPrj string
		wantID  int
		wantErr bool
	}{
		{
			name:    "on-prem collection",
			url:     "http://redstoneblock/DefaultCollection/Deployable/_build/results?buildId=24",
			wantOrg: "http://redstoneblock/DefaultCollection",
			wantPrj: "http://redstoneblock/DefaultCollection/Deployable",
			wantID:  24,
		},
		{
			name:    "dev.azure.com organization",
			url:     "https://dev.azure.com/fabrikam/Website/_build/results?buildId=187&view=results",
			wantOrg: "https://dev.azure.com/fabrikam",
			wantPrj: "https://dev.azure.com/fabrikam/Website",
			wantID:  187,
		},
		{
			name:    "leading whitespace",
			url:     "  https://dev.azure.com/fabrikam/Website/_build/results?buildId=3",
			wantOrg: "https://dev.azure.com/fabrikam",
			wantPrj: "https://dev.azure.com/fabrikam/Website",
			wantID:  3,
		},
		{
			name:    "not a build page",
			url:     "http://redstoneblock/DefaultCollection/Deployable/_release?releaseId=5",
			wantErr: true,
		},
		{
			name:    "missing buildId",
			url:     "http://redstoneblock/DefaultCollection/Deployable/_build/results",
			wantErr: true,
		},
		{
			name:    "non-numeric buildId",
			url:     "http://redstoneblock/DefaultCollection/Deployable/_build/results?buildId=latest",
			wantErr: true,
		},
		{
			name:    "negative buildId",
			url:     "http://redstoneblock/DefaultCollection/Deployable/_build/results?buildId=-2",
			wantErr: true,
		},
		{
			name:    "not a url at all",
			url:     "definitely not a build url",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBrowserUrl(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				if !errors.Is(err, ErrUnrecognizedBuildURL) {
					t.Errorf("error %v is not ErrUnrecognizedBuildURL", err)
				}
				if got != (BuildUrls{}) {
					t.Errorf("failed parse returned partial value %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.OrganizationURL != tt.wantOrg {
				t.Errorf("organization url = %q, want %q", got.OrganizationURL, tt.wantOrg)
			}
			if got.ProjectURL != tt.wantPrj {
				t.Errorf("project url = %q, want %q", got.ProjectURL, tt.wantPrj)
			}
			if got.BuildID != tt.wantID {
				t.Errorf("build id = %d, want %d", got.BuildID, tt.wantID)
			}
		})
	}
}

func TestParseOrganizationAndProjectUrls(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantOrg string
		wantPrj string
		wantErr bool
	}{
		{
			name:    "organization only",
			baseURL: "http://redstoneblock/DefaultCollection/",
			wantOrg: "http://redstoneblock/DefaultCollection",
		},
		{
			name:    "organization and project",
			baseURL: "https://dev.azure.com/fabrikam/Website",
			wantOrg: "https://dev.azure.com/fabrikam",
			wantPrj: "https://dev.azure.com/fabrikam/Website",
		},
		{
			name:    "missing collection segment",
			baseURL: "https://dev.azure.com",
			wantErr: true,
		},
		{
			name:    "not http",
			baseURL: "ftp://host/collection",
			wantErr: true,
		},
		{
			name:    "empty",
			baseURL: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrganizationAndProjectUrls(tt.baseURL)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.OrganizationURL != tt.wantOrg {
				t.Errorf("organization url = %q, want %q", got.OrganizationURL, tt.wantOrg)
			}
			if got.ProjectURL != tt.wantPrj {
				t.Errorf("project url = %q, want %q", got.ProjectURL, tt.wantPrj)
			}
		})
	}
}

func TestIsBaseOf(t *testing.T) {
	tests := []struct {
		base   string
		target string
		want   bool
	}{
		{"http://redstoneblock/DefaultCollection/", "http://redstoneblock/DefaultCollection", true},
		{"http://redstoneblock", "http://redstoneblock/DefaultCollection", true},
		{"http://REDSTONEBLOCK/defaultcollection", "http://redstoneblock/DefaultCollection", true},
		{"http://redstoneblock/DefaultCollection", "http://otherhost/DefaultCollection", false},
		{"https://redstoneblock/DefaultCollection", "http://redstoneblock/DefaultCollection", false},
		{"http://redstoneblock/Default", "http://redstoneblock/DefaultCollection", false},
		{"http://redstoneblock/DefaultCollection/Deployable", "http://redstoneblock/DefaultCollection", false},
		{"", "http://redstoneblock/DefaultCollection", false},
	}

	for _, tt := range tests {
		if got := isBaseOf(tt.base, tt.target); got != tt.want {
			t.Errorf("isBaseOf(%q, %q) = %v, want %v", tt.base, tt.target, got, tt.want)
		}
	}
}
