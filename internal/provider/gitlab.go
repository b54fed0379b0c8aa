package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gitlaboauth "golang.org/x/oauth2/gitlab"
)

const gitlabAPI = "https://gitlab.com/api/v4"

// gitlabHookTimeLayout matches the datetime format GitLab uses inside
// webhook payloads, which differs from the ISO timestamps of its REST API.
const gitlabHookTimeLayout = "2006-01-02 15:04:05 MST"

// ParseGitLabHookTime parses the vendor-specific datetime format carried in
// GitLab webhook payloads.
func ParseGitLabHookTime(s string) (time.Time, error) {
	return time.Parse(gitlabHookTimeLayout, s)
}

type GitLabAdapter struct {
	oauth *oauth2.Config
	base  string
	http  *http.Client
}

func NewGitLabAdapter(cfg Config) *GitLabAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = gitlabAPI
	}
	return &GitLabAdapter{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read_user", "api"},
			Endpoint:     gitlaboauth.Endpoint,
		},
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GitLabAdapter) Name() string { return GitLab }

func (g *GitLabAdapter) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

func (g *GitLabAdapter) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("gitlab token exchange: %w", err)
	}
	return token, nil
}

func (g *GitLabAdapter) do(ctx context.Context, token, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("gitlab request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Provider: GitLab, Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

type glNamespace struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
	Path string `json:"path"`
}

type glProject struct {
	ID                int64       `json:"id"`
	Name              string      `json:"name"`
	PathWithNamespace string      `json:"path_with_namespace"`
	Description       string      `json:"description"`
	WebURL            string      `json:"web_url"`
	Visibility        string      `json:"visibility"`
	StarCount         int         `json:"star_count"`
	ForksCount        int         `json:"forks_count"`
	OpenIssuesCount   int         `json:"open_issues_count"`
	LastActivityAt    time.Time   `json:"last_activity_at"`
	Namespace         glNamespace `json:"namespace"`
}

func (g *GitLabAdapter) Repositories(ctx context.Context, token string) ([]RemoteRepo, error) {
	var repos []RemoteRepo
	for page := 1; ; page++ {
		var batch []glProject
		path := fmt.Sprintf("/projects?membership=true&per_page=100&page=%d", page)
		if err := g.do(ctx, token, http.MethodGet, path, nil, &batch); err != nil {
			return nil, err
		}
		for _, raw := range batch {
			repos = append(repos, normalizeGitLabProject(raw))
		}
		if len(batch) < 100 {
			return repos, nil
		}
	}
}

func normalizeGitLabProject(raw glProject) RemoteRepo {
	visibility := raw.Visibility
	if visibility == "internal" {
		visibility = "private"
	}
	repo := RemoteRepo{
		RemoteID:    strconv.FormatInt(raw.ID, 10),
		Name:        raw.Name,
		FullName:    raw.PathWithNamespace,
		Description: raw.Description,
		URL:         raw.WebURL,
		Visibility:  visibility,
		Stars:       raw.StarCount,
		Forks:       raw.ForksCount,
		OpenIssues:  raw.OpenIssuesCount,
		UpdatedAt:   raw.LastActivityAt,
	}
	if raw.Namespace.Kind == "group" {
		repo.OrgOwned = true
		repo.OrgRemoteID = strconv.FormatInt(raw.Namespace.ID, 10)
		repo.OrgLogin = raw.Namespace.Path
	}
	return repo
}

func (g *GitLabAdapter) Languages(ctx context.Context, token string, ref RepoRef) (map[string]float64, error) {
	// GitLab already reports percentages, not byte counts.
	var shares map[string]float64
	if err := g.do(ctx, token, http.MethodGet, "/projects/"+ref.RemoteID+"/languages", nil, &shares); err != nil {
		return nil, err
	}
	if shares == nil {
		shares = map[string]float64{}
	}
	return shares, nil
}

type glIssue struct {
	ID          int64      `json:"id"`
	IID         int        `json:"iid"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	State       string     `json:"state"`
	Labels      []string   `json:"labels"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at"`
}

func (g *GitLabAdapter) Issues(ctx context.Context, token string, ref RepoRef) ([]RemoteIssue, error) {
	var issues []RemoteIssue
	for page := 1; ; page++ {
		var batch []glIssue
		path := fmt.Sprintf("/projects/%s/issues?per_page=100&page=%d", ref.RemoteID, page)
		if err := g.do(ctx, token, http.MethodGet, path, nil, &batch); err != nil {
			return nil, err
		}
		for _, raw := range batch {
			issues = append(issues, normalizeGitLabIssue(raw))
		}
		if len(batch) < 100 {
			return issues, nil
		}
	}
}

// NormalizeIssueState maps GitLab's "opened" onto the canonical "open".
func NormalizeIssueState(state string) string {
	if state == "opened" {
		return "open"
	}
	return state
}

func normalizeGitLabIssue(raw glIssue) RemoteIssue {
	labels := raw.Labels
	if labels == nil {
		labels = []string{}
	}
	return RemoteIssue{
		RemoteID:  strconv.FormatInt(raw.ID, 10),
		Number:    raw.IID,
		Title:     raw.Title,
		Body:      raw.Description,
		State:     NormalizeIssueState(raw.State),
		Labels:    labels,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
		ClosedAt:  raw.ClosedAt,
	}
}

func (g *GitLabAdapter) Organization(ctx context.Context, token, orgRemoteID string) (*RemoteOrg, error) {
	var raw struct {
		ID          int64  `json:"id"`
		Path        string `json:"path"`
		Name        string `json:"name"`
		Description string `json:"description"`
		AvatarURL   string `json:"avatar_url"`
		WebURL      string `json:"web_url"`
	}
	if err := g.do(ctx, token, http.MethodGet, "/groups/"+orgRemoteID, nil, &raw); err != nil {
		return nil, err
	}
	return &RemoteOrg{
		RemoteID:    strconv.FormatInt(raw.ID, 10),
		Login:       raw.Path,
		Name:        raw.Name,
		Description: raw.Description,
		AvatarURL:   raw.AvatarURL,
		URL:         raw.WebURL,
	}, nil
}

// GitLab access levels: 10 guest, 20 reporter, 30 developer, 40 maintainer,
// 50 owner. Maintainer and up counts as admin.
const gitlabAdminAccessLevel = 40

func (g *GitLabAdapter) CheckMembership(ctx context.Context, token, orgRemoteID string, account AccountRef) (Membership, error) {
	var raw struct {
		AccessLevel int `json:"access_level"`
	}
	path := fmt.Sprintf("/groups/%s/members/all/%s", orgRemoteID, account.RemoteID)
	err := g.do(ctx, token, http.MethodGet, path, nil, &raw)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound {
			return MembershipNone, nil
		}
		return MembershipNone, err
	}
	if raw.AccessLevel >= gitlabAdminAccessLevel {
		return MembershipAdmin, nil
	}
	if raw.AccessLevel > 0 {
		return MembershipMember, nil
	}
	return MembershipNone, nil
}

type glHook struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func (g *GitLabAdapter) CreateHook(ctx context.Context, token string, ref RepoRef, url, secret string) (*RemoteHook, error) {
	body := map[string]any{
		"url":           url,
		"token":         secret,
		"issues_events": true,
		"push_events":   false,
	}
	var raw glHook
	if err := g.do(ctx, token, http.MethodPost, "/projects/"+ref.RemoteID+"/hooks", body, &raw); err != nil {
		return nil, err
	}
	return &RemoteHook{RemoteID: strconv.FormatInt(raw.ID, 10), CreatedAt: raw.CreatedAt}, nil
}

func (g *GitLabAdapter) GetHook(ctx context.Context, token string, ref RepoRef, hookID string) (*RemoteHook, error) {
	var raw glHook
	err := g.do(ctx, token, http.MethodGet, fmt.Sprintf("/projects/%s/hooks/%s", ref.RemoteID, hookID), nil, &raw)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound {
			return nil, ErrHookMissing
		}
		return nil, err
	}
	return &RemoteHook{RemoteID: strconv.FormatInt(raw.ID, 10), CreatedAt: raw.CreatedAt}, nil
}

func (g *GitLabAdapter) UpdateHook(ctx context.Context, token string, ref RepoRef, hookID, url, secret string) error {
	body := map[string]any{
		"url":           url,
		"token":         secret,
		"issues_events": true,
		"push_events":   false,
	}
	return g.do(ctx, token, http.MethodPut, fmt.Sprintf("/projects/%s/hooks/%s", ref.RemoteID, hookID), body, nil)
}

func (g *GitLabAdapter) DeleteHook(ctx context.Context, token string, ref RepoRef, hookID string) error {
	return g.do(ctx, token, http.MethodDelete, fmt.Sprintf("/projects/%s/hooks/%s", ref.RemoteID, hookID), nil, nil)
}

// VerifySignature compares the X-Gitlab-Token header against the stored
// secret. GitLab delivers the literal token rather than an HMAC digest.
func (g *GitLabAdapter) VerifySignature(secret, payload []byte, header string) error {
	if header == "" {
		return fmt.Errorf("missing token header")
	}
	if !hmac.Equal(secret, []byte(header)) {
		return fmt.Errorf("token mismatch")
	}
	return nil
}

func (g *GitLabAdapter) FetchProfile(ctx context.Context, token string) (*Profile, error) {
	var raw struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := g.do(ctx, token, http.MethodGet, "/user", nil, &raw); err != nil {
		return nil, err
	}
	return &Profile{
		RemoteID:  strconv.FormatInt(raw.ID, 10),
		Login:     raw.Username,
		Name:      raw.Name,
		Email:     raw.Email,
		AvatarURL: raw.AvatarURL,
	}, nil
}
