package provider

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/oauth2"
)

const (
	GitHub = "github"
	GitLab = "gitlab"
)

// Membership is the tri-state result of an organization membership check.
type Membership int

const (
	MembershipNone Membership = iota
	MembershipMember
	MembershipAdmin
)

func (m Membership) String() string {
	switch m {
	case MembershipAdmin:
		return "admin"
	case MembershipMember:
		return "member"
	default:
		return "none"
	}
}

// Profile is the normalized OAuth profile returned after token exchange.
type Profile struct {
	RemoteID  string
	Login     string
	Name      string
	Email     string
	AvatarURL string
}

// RemoteRepo is a vendor repository normalized into the canonical shape.
type RemoteRepo struct {
	RemoteID    string
	Name        string
	FullName    string
	Description string
	URL         string
	Visibility  string
	Stars       int
	Forks       int
	OpenIssues  int
	OrgOwned    bool
	OrgRemoteID string
	OrgLogin    string
	UpdatedAt   time.Time
}

// Ref identifies a repository to the vendor API. GitHub addresses
// repositories by full name, GitLab by numeric project id.
func (r RemoteRepo) Ref() RepoRef {
	return RepoRef{RemoteID: r.RemoteID, FullName: r.FullName}
}

type RepoRef struct {
	RemoteID string
	FullName string
}

// AccountRef identifies the calling account for membership checks.
type AccountRef struct {
	RemoteID string
	Login    string
}

type RemoteOrg struct {
	RemoteID    string
	Login       string
	Name        string
	Description string
	AvatarURL   string
	URL         string
}

type RemoteIssue struct {
	RemoteID  string
	Number    int
	Title     string
	Body      string
	State     string
	Labels    []string
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

type RemoteHook struct {
	RemoteID  string
	CreatedAt time.Time
}

// ErrHookMissing is returned by GetHook when the vendor no longer has the
// webhook we created.
var ErrHookMissing = fmt.Errorf("remote webhook missing")

// Adapter is the per-vendor translation layer. Every read that hits a
// non-2xx response returns a *RequestError; the caller decides whether the
// surrounding sync continues.
type Adapter interface {
	Name() string

	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token string) (*Profile, error)

	Repositories(ctx context.Context, token string) ([]RemoteRepo, error)
	Languages(ctx context.Context, token string, ref RepoRef) (map[string]float64, error)
	Issues(ctx context.Context, token string, ref RepoRef) ([]RemoteIssue, error)
	Organization(ctx context.Context, token, orgRemoteID string) (*RemoteOrg, error)
	CheckMembership(ctx context.Context, token, orgRemoteID string, account AccountRef) (Membership, error)

	CreateHook(ctx context.Context, token string, ref RepoRef, url, secret string) (*RemoteHook, error)
	GetHook(ctx context.Context, token string, ref RepoRef, hookID string) (*RemoteHook, error)
	UpdateHook(ctx context.Context, token string, ref RepoRef, hookID, url, secret string) error
	DeleteHook(ctx context.Context, token string, ref RepoRef, hookID string) error

	VerifySignature(secret, payload []byte, header string) error
}

// RequestError carries the vendor response for a failed call. All instances
// are treated as retryable by the orchestrator.
type RequestError struct {
	Provider string
	Status   int
	Body     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s api: status %d: %s", e.Provider, e.Status, e.Body)
}

// Registry holds one adapter per provider name. It is built once at
// application start from explicit configuration.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q", name)
	}
	return a, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// percentages converts raw per-language byte counts into percentage shares
// rounded to two decimal places.
func percentages(counts map[string]int64) map[string]float64 {
	var total int64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return map[string]float64{}
	}

	out := make(map[string]float64, len(counts))
	for lang, c := range counts {
		out[lang] = math.Round(float64(c)/float64(total)*10000) / 100
	}
	return out
}
