package ado

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPJSONClientGet(t *testing.T) {
	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":0,"value":[]}`))
	}))
	defer srv.Close()

	client := NewHTTPJSONClient(srv.Client())
	status, body, err := client.Get(context.Background(), srv.URL, "rumor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.OK() {
		t.Errorf("status = %d, want 2xx", status)
	}
	if string(body) != `{"count":0,"value":[]}` {
		t.Errorf("body = %s", body)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(":rumor"))
	if gotAuth != want {
		t.Errorf("Authorization = %q, want %q", gotAuth, want)
	}
}

func TestHTTPJSONClientGetWithoutPassword(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	status, _, err := NewHTTPJSONClient(srv.Client()).Get(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestHTTPJSONClientNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("internal error page"))
	}))
	defer srv.Close()

	status, body, err := NewHTTPJSONClient(srv.Client()).Get(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if body != nil {
		t.Errorf("body = %s, want nil for non-JSON", body)
	}
}

func TestHTTPJSONClientDetectsSigninPage(t *testing.T) {
	t.Run("203 html response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusNonAuthoritativeInfo)
			w.Write([]byte("<html>please sign in</html>"))
		}))
		defer srv.Close()

		status, body, err := NewHTTPJSONClient(srv.Client()).Get(context.Background(), srv.URL, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != StatusSigninPage {
			t.Errorf("status = %d, want StatusSigninPage", status)
		}
		if body != nil {
			t.Errorf("body = %s, want nil", body)
		}
	})

	t.Run("redirect to signin path", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "signin") {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html>sign in here</html>"))
				return
			}
			http.Redirect(w, r, "/_signin?returnUrl="+r.URL.Path, http.StatusFound)
		}))
		defer srv.Close()

		status, _, err := NewHTTPJSONClient(srv.Client()).Get(context.Background(), srv.URL+"/_apis/projects", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != StatusSigninPage {
			t.Errorf("status = %d, want StatusSigninPage", status)
		}
	})
}
