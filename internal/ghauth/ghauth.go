// Package ghauth validates repository URLs against the supported hosting
// policy and probes GitHub's API to verify a credential, grounded on this
// codebase's google/go-github usage in githubops.go.
package ghauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// ErrInvalidURL is returned when the repository URL fails the shape check.
var ErrInvalidURL = errors.New("repository URL is invalid")

// RequestTimeout bounds every hosting-API call issued by this package.
const RequestTimeout = 10 * time.Second

// ValidateRepoURL requires an http(s) scheme, non-empty host, and a host
// containing github.com (the only permitted hosting source for auth,
// independent of whatever host the clone step is later pointed at).
func ValidateRepoURL(raw string) (owner, repo string, err error) {
	u, parseErr := url.Parse(strings.TrimSpace(raw))
	if parseErr != nil || u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if !strings.Contains(strings.ToLower(u.Host), "github.com") {
		return "", "", fmt.Errorf("%w: unsupported host %q", ErrInvalidURL, u.Host)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: path must be /owner/repo", ErrInvalidURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// AuthResult is stored under repo_metadata.github_auth.
type AuthResult struct {
	TokenProvided bool   `json:"token_provided"`
	UserValid     bool   `json:"user_valid"`
	RepoAccessible bool  `json:"repo_accessible"`
	RepoSizeKB    int    `json:"repo_size_kb"`
	Outcome       string `json:"outcome"`
}

// Outcomes, per spec.md §4.5.
const (
	OutcomeTokenAbsent   = "token_absent"
	OutcomeAuthorized    = "authorized"
	OutcomeInsufficient  = "token_insufficient"
	OutcomeRepoNotFound  = "repo_not_found"
	OutcomeNetworkError  = "network_error"
)

// client builds a go-github client, optionally authenticated with token.
func client(ctx context.Context, token string) *github.Client {
	if strings.TrimSpace(token) == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// Authenticate calls GET /user and GET /repos/{owner}/{repo}; success
// requires either a valid user probe or a successful repo probe.
func Authenticate(ctx context.Context, token, owner, repo string) AuthResult {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	cli := client(ctx, token)
	result := AuthResult{TokenProvided: strings.TrimSpace(token) != ""}

	if !result.TokenProvided {
		// Public repos are still probed anonymously so size-based timeout
		// sizing in Setup has a number to work with.
		repoInfo, _, err := cli.Repositories.Get(ctx, owner, repo)
		if err == nil && repoInfo != nil {
			result.RepoAccessible = true
			result.RepoSizeKB = repoInfo.GetSize()
			result.Outcome = OutcomeTokenAbsent
			return result
		}
		result.Outcome = classifyRepoError(err)
		return result
	}

	_, _, userErr := cli.Users.Get(ctx, "")
	result.UserValid = userErr == nil

	repoInfo, _, repoErr := cli.Repositories.Get(ctx, owner, repo)
	result.RepoAccessible = repoErr == nil && repoInfo != nil
	if result.RepoAccessible {
		result.RepoSizeKB = repoInfo.GetSize()
	}

	switch {
	case result.UserValid || result.RepoAccessible:
		result.Outcome = OutcomeAuthorized
	case isNotFound(repoErr):
		result.Outcome = OutcomeRepoNotFound
	case userErr != nil && repoErr != nil && !isNotFound(repoErr):
		result.Outcome = classifyRepoError(repoErr)
	default:
		result.Outcome = OutcomeInsufficient
	}
	return result
}

func classifyRepoError(err error) string {
	if err == nil {
		return OutcomeAuthorized
	}
	if isNotFound(err) {
		return OutcomeRepoNotFound
	}
	return OutcomeNetworkError
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode == 404
	}
	return false
}
