package ghauth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRepoURLAcceptsGitHub(t *testing.T) {
	owner, repo, err := ValidateRepoURL("https://github.com/acme/widgets")
	require.NoError(t, err)
	require.Equal(t, "acme", owner)
	require.Equal(t, "widgets", repo)
}

func TestValidateRepoURLStripsDotGit(t *testing.T) {
	_, repo, err := ValidateRepoURL("https://github.com/acme/widgets.git")
	require.NoError(t, err)
	require.Equal(t, "widgets", repo)
}

func TestValidateRepoURLRejectsNonGitHubHost(t *testing.T) {
	_, _, err := ValidateRepoURL("https://gitlab.com/acme/widgets")
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestValidateRepoURLRejectsMissingPath(t *testing.T) {
	_, _, err := ValidateRepoURL("https://github.com/acme")
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestValidateRepoURLRejectsBadScheme(t *testing.T) {
	_, _, err := ValidateRepoURL("ftp://github.com/acme/widgets")
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestValidateRepoURLRejectsGarbage(t *testing.T) {
	_, _, err := ValidateRepoURL("not-a-url")
	require.ErrorIs(t, err, ErrInvalidURL)
}
