package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

const githubAPI = "https://api.github.com"

// Config holds the OAuth credentials and API base URL for one provider.
// BaseURL is overridable so tests can point the adapter at a fake server.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	BaseURL      string
}

type GitHubAdapter struct {
	oauth *oauth2.Config
	base  string
	http  *http.Client
}

func NewGitHubAdapter(cfg Config) *GitHubAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = githubAPI
	}
	return &GitHubAdapter{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email", "repo", "read:org", "admin:repo_hook"},
			Endpoint:     githuboauth.Endpoint,
		},
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GitHubAdapter) Name() string { return GitHub }

func (g *GitHubAdapter) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

func (g *GitHubAdapter) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("github token exchange: %w", err)
	}
	return token, nil
}

func (g *GitHubAdapter) do(ctx context.Context, token, method, path string, body, out any) error {
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
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Provider: GitHub, Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

type ghOwner struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Type  string `json:"type"`
}

type ghRepo struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Description     string    `json:"description"`
	HTMLURL         string    `json:"html_url"`
	Private         bool      `json:"private"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	OpenIssuesCount int       `json:"open_issues_count"`
	UpdatedAt       time.Time `json:"updated_at"`
	Owner           ghOwner   `json:"owner"`
}

func (g *GitHubAdapter) Repositories(ctx context.Context, token string) ([]RemoteRepo, error) {
	var repos []RemoteRepo
	for page := 1; ; page++ {
		var batch []ghRepo
		path := fmt.Sprintf("/user/repos?per_page=100&page=%d&affiliation=owner,organization_member", page)
		if err := g.do(ctx, token, http.MethodGet, path, nil, &batch); err != nil {
			return nil, err
		}
		for _, raw := range batch {
			repos = append(repos, normalizeGitHubRepo(raw))
		}
		if len(batch) < 100 {
			return repos, nil
		}
	}
}

func normalizeGitHubRepo(raw ghRepo) RemoteRepo {
	visibility := "public"
	if raw.Private {
		visibility = "private"
	}
	repo := RemoteRepo{
		RemoteID:    strconv.FormatInt(raw.ID, 10),
		Name:        raw.Name,
		FullName:    raw.FullName,
		Description: raw.Description,
		URL:         raw.HTMLURL,
		Visibility:  visibility,
		Stars:       raw.StargazersCount,
		Forks:       raw.ForksCount,
		OpenIssues:  raw.OpenIssuesCount,
		UpdatedAt:   raw.UpdatedAt,
	}
	if raw.Owner.Type == "Organization" {
		repo.OrgOwned = true
		repo.OrgRemoteID = strconv.FormatInt(raw.Owner.ID, 10)
		repo.OrgLogin = raw.Owner.Login
	}
	return repo
}

func (g *GitHubAdapter) Languages(ctx context.Context, token string, ref RepoRef) (map[string]float64, error) {
	// GitHub reports raw byte counts per language.
	var counts map[string]int64
	if err := g.do(ctx, token, http.MethodGet, "/repos/"+ref.FullName+"/languages", nil, &counts); err != nil {
		return nil, err
	}
	return percentages(counts), nil
}

type ghIssue struct {
	ID          int64           `json:"id"`
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	State       string          `json:"state"`
	Labels      []ghLabel       `json:"labels"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ClosedAt    *time.Time      `json:"closed_at"`
	PullRequest json.RawMessage `json:"pull_request"`
}

type ghLabel struct {
	Name string `json:"name"`
}

func (g *GitHubAdapter) Issues(ctx context.Context, token string, ref RepoRef) ([]RemoteIssue, error) {
	var issues []RemoteIssue
	for page := 1; ; page++ {
		var batch []ghIssue
		path := fmt.Sprintf("/repos/%s/issues?state=all&per_page=100&page=%d", ref.FullName, page)
		if err := g.do(ctx, token, http.MethodGet, path, nil, &batch); err != nil {
			return nil, err
		}
		for _, raw := range batch {
			// The issues endpoint also returns pull requests; anything
			// carrying a pull_request key is not an issue.
			if len(raw.PullRequest) > 0 {
				continue
			}
			issues = append(issues, normalizeGitHubIssue(raw))
		}
		if len(batch) < 100 {
			return issues, nil
		}
	}
}

func normalizeGitHubIssue(raw ghIssue) RemoteIssue {
	labels := make([]string, 0, len(raw.Labels))
	for _, l := range raw.Labels {
		labels = append(labels, l.Name)
	}
	return RemoteIssue{
		RemoteID:  strconv.FormatInt(raw.ID, 10),
		Number:    raw.Number,
		Title:     raw.Title,
		Body:      raw.Body,
		State:     raw.State,
		Labels:    labels,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
		ClosedAt:  raw.ClosedAt,
	}
}

func (g *GitHubAdapter) Organization(ctx context.Context, token, orgRemoteID string) (*RemoteOrg, error) {
	var raw struct {
		ID          int64  `json:"id"`
		Login       string `json:"login"`
		Name        string `json:"name"`
		Description string `json:"description"`
		AvatarURL   string `json:"avatar_url"`
		HTMLURL     string `json:"html_url"`
	}
	// Organizations are addressable by id to stay stable across renames.
	if err := g.do(ctx, token, http.MethodGet, "/organizations/"+orgRemoteID, nil, &raw); err != nil {
		return nil, err
	}
	return &RemoteOrg{
		RemoteID:    strconv.FormatInt(raw.ID, 10),
		Login:       raw.Login,
		Name:        raw.Name,
		Description: raw.Description,
		AvatarURL:   raw.AvatarURL,
		URL:         raw.HTMLURL,
	}, nil
}

func (g *GitHubAdapter) CheckMembership(ctx context.Context, token, orgRemoteID string, account AccountRef) (Membership, error) {
	org, err := g.Organization(ctx, token, orgRemoteID)
	if err != nil {
		return MembershipNone, err
	}

	var raw struct {
		State string `json:"state"`
		Role  string `json:"role"`
	}
	err = g.do(ctx, token, http.MethodGet, fmt.Sprintf("/orgs/%s/memberships/%s", org.Login, account.Login), nil, &raw)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && (reqErr.Status == http.StatusNotFound || reqErr.Status == http.StatusForbidden) {
			return MembershipNone, nil
		}
		return MembershipNone, err
	}
	if raw.State != "active" {
		return MembershipNone, nil
	}
	if raw.Role == "admin" {
		return MembershipAdmin, nil
	}
	return MembershipMember, nil
}

type ghHook struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func (g *GitHubAdapter) CreateHook(ctx context.Context, token string, ref RepoRef, url, secret string) (*RemoteHook, error) {
	body := map[string]any{
		"name":   "web",
		"active": true,
		"events": []string{"issues"},
		"config": map[string]any{
			"url":          url,
			"content_type": "json",
			"secret":       secret,
		},
	}
	var raw ghHook
	if err := g.do(ctx, token, http.MethodPost, "/repos/"+ref.FullName+"/hooks", body, &raw); err != nil {
		return nil, err
	}
	return &RemoteHook{RemoteID: strconv.FormatInt(raw.ID, 10), CreatedAt: raw.CreatedAt}, nil
}

func (g *GitHubAdapter) GetHook(ctx context.Context, token string, ref RepoRef, hookID string) (*RemoteHook, error) {
	var raw ghHook
	err := g.do(ctx, token, http.MethodGet, fmt.Sprintf("/repos/%s/hooks/%s", ref.FullName, hookID), nil, &raw)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound {
			return nil, ErrHookMissing
		}
		return nil, err
	}
	return &RemoteHook{RemoteID: strconv.FormatInt(raw.ID, 10), CreatedAt: raw.CreatedAt}, nil
}

func (g *GitHubAdapter) UpdateHook(ctx context.Context, token string, ref RepoRef, hookID, url, secret string) error {
	body := map[string]any{
		"active": true,
		"config": map[string]any{
			"url":          url,
			"content_type": "json",
			"secret":       secret,
		},
	}
	return g.do(ctx, token, http.MethodPatch, fmt.Sprintf("/repos/%s/hooks/%s", ref.FullName, hookID), body, nil)
}

func (g *GitHubAdapter) DeleteHook(ctx context.Context, token string, ref RepoRef, hookID string) error {
	return g.do(ctx, token, http.MethodDelete, fmt.Sprintf("/repos/%s/hooks/%s", ref.FullName, hookID), nil, nil)
}

// VerifySignature checks the X-Hub-Signature header: "sha1=<hex>" where the
// digest is HMAC-SHA1 over the raw request body keyed by the webhook secret.
func (g *GitHubAdapter) VerifySignature(secret, payload []byte, header string) error {
	algo, digest, found := strings.Cut(header, "=")
	if !found {
		return fmt.Errorf("malformed signature header")
	}
	if algo != "sha1" {
		return fmt.Errorf("unsupported signature algorithm %q", algo)
	}

	provided, err := hex.DecodeString(digest)
	if err != nil {
		return fmt.Errorf("malformed signature digest")
	}

	mac := hmac.New(sha1.New, secret)
	mac.Write(payload)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func (g *GitHubAdapter) FetchProfile(ctx context.Context, token string) (*Profile, error) {
	var raw struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := g.do(ctx, token, http.MethodGet, "/user", nil, &raw); err != nil {
		return nil, err
	}

	email := raw.Email
	if email == "" {
		email = g.fetchPrimaryEmail(ctx, token)
	}

	return &Profile{
		RemoteID:  strconv.FormatInt(raw.ID, 10),
		Login:     raw.Login,
		Name:      raw.Name,
		Email:     email,
		AvatarURL: raw.AvatarURL,
	}, nil
}

func (g *GitHubAdapter) fetchPrimaryEmail(ctx context.Context, token string) string {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := g.do(ctx, token, http.MethodGet, "/user/emails", nil, &emails); err != nil {
		return ""
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}
