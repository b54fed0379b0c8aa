package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newGitLabTestAdapter(t *testing.T, handler http.Handler) *GitLabAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGitLabAdapter(Config{BaseURL: srv.URL})
}

func TestGitLabRepositories_Normalization(t *testing.T) {
	adapter := newGitLabTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{
				"id": 201,
				"name": "widgets",
				"path_with_namespace": "bob/widgets",
				"description": "widget factory",
				"web_url": "https://gitlab.com/bob/widgets",
				"visibility": "public",
				"star_count": 11,
				"forks_count": 2,
				"open_issues_count": 4,
				"last_activity_at": "2023-04-03T09:30:00Z",
				"namespace": {"id": 77, "kind": "user", "path": "bob"}
			},
			{
				"id": 202,
				"name": "infra",
				"path_with_namespace": "platform/infra",
				"web_url": "https://gitlab.com/platform/infra",
				"visibility": "internal",
				"star_count": 1,
				"last_activity_at": "2023-04-04T09:30:00Z",
				"namespace": {"id": 88, "kind": "group", "path": "platform"}
			}
		]`))
	}))

	repos, err := adapter.Repositories(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Repositories() error = %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected 2 repos, got %d", len(repos))
	}

	personal := repos[0]
	if personal.RemoteID != "201" {
		t.Errorf("remote id = %q, want 201", personal.RemoteID)
	}
	if personal.URL != "https://gitlab.com/bob/widgets" {
		t.Errorf("url should come from web_url, got %q", personal.URL)
	}
	if personal.Stars != 11 {
		t.Errorf("stars should come from star_count, got %d", personal.Stars)
	}
	if !personal.UpdatedAt.Equal(time.Date(2023, 4, 3, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("updated at should come from last_activity_at, got %v", personal.UpdatedAt)
	}
	if personal.OrgOwned {
		t.Error("user-namespace project marked org-owned")
	}

	group := repos[1]
	if !group.OrgOwned || group.OrgRemoteID != "88" || group.OrgLogin != "platform" {
		t.Errorf("group ownership not resolved: %+v", group)
	}
	if group.Visibility != "private" {
		t.Errorf("internal visibility should map to private, got %q", group.Visibility)
	}
}

func TestGitLabIssues_StateNormalization(t *testing.T) {
	adapter := newGitLabTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{
				"id": 301,
				"iid": 1,
				"title": "still open",
				"state": "opened",
				"labels": ["bug"],
				"created_at": "2023-04-01T10:00:00Z",
				"updated_at": "2023-04-01T11:00:00Z"
			},
			{
				"id": 302,
				"iid": 2,
				"title": "done",
				"state": "closed",
				"created_at": "2023-04-01T10:00:00Z",
				"updated_at": "2023-04-02T11:00:00Z",
				"closed_at": "2023-04-02T11:00:00Z"
			}
		]`))
	}))

	issues, err := adapter.Issues(context.Background(), "tok", RepoRef{RemoteID: "201"})
	if err != nil {
		t.Fatalf("Issues() error = %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(issues))
	}
	if issues[0].State != "open" {
		t.Errorf(`raw state "opened" must normalize to "open", got %q`, issues[0].State)
	}
	if issues[1].State != "closed" {
		t.Errorf("closed state should pass through, got %q", issues[1].State)
	}
	if issues[1].ClosedAt == nil {
		t.Error("closed_at should be carried over")
	}
}

func TestNormalizeIssueState(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"opened", "open"},
		{"open", "open"},
		{"closed", "closed"},
	}
	for _, tt := range tests {
		if got := NormalizeIssueState(tt.in); got != tt.want {
			t.Errorf("NormalizeIssueState(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseGitLabHookTime(t *testing.T) {
	got, err := ParseGitLabHookTime("2023-04-05 14:30:00 UTC")
	if err != nil {
		t.Fatalf("ParseGitLabHookTime() error = %v", err)
	}
	want := time.Date(2023, 4, 5, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := ParseGitLabHookTime("2023-04-05T14:30:00Z"); err == nil {
		t.Error("ISO timestamp should not parse with the hook layout")
	}
}

func TestGitLabCheckMembership(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Membership
	}{
		{"owner", 200, `{"access_level": 50}`, MembershipAdmin},
		{"maintainer", 200, `{"access_level": 40}`, MembershipAdmin},
		{"developer", 200, `{"access_level": 30}`, MembershipMember},
		{"not a member", 404, `{"message": "404 Not found"}`, MembershipNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newGitLabTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			got, err := adapter.CheckMembership(context.Background(), "tok", "88", AccountRef{RemoteID: "7", Login: "bob"})
			if err != nil {
				t.Fatalf("CheckMembership() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("membership = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGitLabVerifySignature(t *testing.T) {
	adapter := NewGitLabAdapter(Config{})
	secret := []byte("hook-secret")

	if err := adapter.VerifySignature(secret, nil, "hook-secret"); err != nil {
		t.Errorf("matching token rejected: %v", err)
	}
	if err := adapter.VerifySignature(secret, nil, "wrong"); err == nil {
		t.Error("mismatched token accepted")
	}
	if err := adapter.VerifySignature(secret, nil, ""); err == nil {
		t.Error("missing token accepted")
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(NewGitHubAdapter(Config{}), NewGitLabAdapter(Config{}))

	if _, err := registry.Get("github"); err != nil {
		t.Errorf("github adapter should be registered: %v", err)
	}
	if _, err := registry.Get("bitbucket"); err == nil {
		t.Error("unknown provider should be rejected")
	}

	names := registry.Names()
	if len(names) != 2 || names[0] != "github" || names[1] != "gitlab" {
		t.Errorf("Names() = %v", names)
	}
}
