package adapty

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetProfileActivePremium(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": {
				"access_levels": {
					"premium": {
						"is_active": true,
						"is_lifetime": false,
						"expires_at": "2026-12-01T00:00:00Z"
					}
				}
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient("key_123", WithBaseURL(srv.URL))
	profile, err := c.GetProfile(context.Background(), 42)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}

	if gotPath != "/sdk/profiles/42/" {
		t.Errorf("path = %q, want /sdk/profiles/42/", gotPath)
	}
	if gotAuth != "Api-Key key_123" {
		t.Errorf("auth = %q", gotAuth)
	}

	lvl, active := profile.Premium()
	if !active {
		t.Fatal("expected active premium level")
	}
	if lvl.IsLifetime {
		t.Error("expected is_lifetime = false")
	}
	want := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	if lvl.ExpiresAt == nil || !lvl.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want %v", lvl.ExpiresAt, want)
	}
}

func TestGetProfileNoPremium(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"access_levels": {}}}`))
	}))
	defer srv.Close()

	c := NewClient("key_123", WithBaseURL(srv.URL))
	profile, err := c.GetProfile(context.Background(), 1)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if _, active := profile.Premium(); active {
		t.Error("expected no active premium level")
	}
}

func TestGetProfileServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("key_123", WithBaseURL(srv.URL))
	if _, err := c.GetProfile(context.Background(), 1); err == nil {
		t.Error("expected error for 500 response")
	}
}
