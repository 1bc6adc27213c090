package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIsOutdated(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{"older patch", "0.1.0", "0.1.1", true},
		{"older minor", "v0.1.9", "0.2.0", true},
		{"same", "1.0.0", "v1.0.0", false},
		{"newer", "1.2.0", "1.1.9", false},
		{"dev build", "dev", "9.9.9", false},
		{"empty latest", "1.0.0", "", false},
		{"prerelease suffix", "1.0.0-rc1", "1.0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOutdated(tt.current, tt.latest); got != tt.want {
				t.Errorf("IsOutdated(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

func TestCheckLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name":"v1.4.2"}`))
	}))
	defer server.Close()

	old := releasesURL
	releasesURL = server.URL
	defer func() { releasesURL = old }()

	got, err := CheckLatest(context.Background())
	if err != nil {
		t.Fatalf("CheckLatest() error = %v", err)
	}
	if got != "1.4.2" {
		t.Errorf("CheckLatest() = %q, want 1.4.2", got)
	}
}

func TestCheckLatestBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer server.Close()

	old := releasesURL
	releasesURL = server.URL
	defer func() { releasesURL = old }()

	if _, err := CheckLatest(context.Background()); err == nil {
		t.Fatal("CheckLatest() error = nil, want error")
	}
}

func TestString(t *testing.T) {
	if s := String(); !strings.HasPrefix(s, "sb3pack "+Version) {
		t.Errorf("String() = %q", s)
	}
}
