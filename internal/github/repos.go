package github

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
)

// BranchResolver looks up a repository's default branch
type BranchResolver interface {
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
}

// ReadRepoList reads repository URLs or owner/repo names, one per line.
// Blank lines and lines starting with # are skipped.
func ReadRepoList(path string) ([]FileRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open repository list: %w", err)
	}
	defer f.Close()

	var refs []FileRef
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, err := parseRepoLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		refs = append(refs, ref)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read repository list: %w", err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no repositories in %s", path)
	}
	return refs, nil
}

func parseRepoLine(line string) (FileRef, error) {
	if strings.Contains(line, "://") {
		return ParseRepoURL(line)
	}
	owner, repo, err := ParseRepoFullName(strings.TrimSuffix(line, ".git"))
	if err != nil {
		return FileRef{}, err
	}
	return FileRef{Owner: owner, Repo: repo}, nil
}

// PickRepo chooses one repository from the list at random and returns its
// tree URL. Entries without a branch get the repository's default branch.
// intn may be nil, in which case math/rand/v2 is used.
func PickRepo(ctx context.Context, listPath string, branches BranchResolver, intn func(n int) int) (string, error) {
	refs, err := ReadRepoList(listPath)
	if err != nil {
		return "", err
	}
	if intn == nil {
		intn = rand.IntN
	}
	ref := refs[intn(len(refs))]

	if ref.Ref == "" {
		if ref.Ref, err = branches.DefaultBranch(ctx, ref.Owner, ref.Repo); err != nil {
			return "", err
		}
	}
	return TreeURL(ref), nil
}

// TreeURL builds the browser URL of a directory, or of the repository root
// when Path is empty
func TreeURL(ref FileRef) string {
	u := fmt.Sprintf("https://github.com/%s/%s/tree/%s", ref.Owner, ref.Repo, ref.Ref)
	if ref.Path != "" {
		u += "/" + ref.Path
	}
	return u
}
