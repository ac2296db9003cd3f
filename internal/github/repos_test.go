package github

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRepoList(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "repositories.txt")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadRepoList(t *testing.T) {
	p := writeRepoList(t, `# scan targets
https://github.com/acme/tools

acme/widgets.git
https://github.com/acme/site/tree/dev/src
`)

	refs, err := ReadRepoList(p)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, FileRef{Owner: "acme", Repo: "tools"}, refs[0])
	assert.Equal(t, FileRef{Owner: "acme", Repo: "widgets"}, refs[1])
	assert.Equal(t, FileRef{Owner: "acme", Repo: "site", Ref: "dev", Path: "src"}, refs[2])

	_, err = ReadRepoList(writeRepoList(t, "\n# nothing\n"))
	assert.Error(t, err)

	_, err = ReadRepoList(writeRepoList(t, "not-a-repo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":1:")

	_, err = ReadRepoList(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestPickRepo(t *testing.T) {
	c, _ := newFakeGitHub(t)
	p := writeRepoList(t, "https://github.com/acme/site/tree/dev\nacme/tools\n")

	target, err := PickRepo(context.Background(), p, c, func(n int) int { return n - 1 })
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/tools/tree/main", target)

	target, err = PickRepo(context.Background(), p, c, func(int) int { return 0 })
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/site/tree/dev", target)

	target, err = PickRepo(context.Background(), writeRepoList(t, "acme/tools\n"), c, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/tools/tree/main", target)
}
