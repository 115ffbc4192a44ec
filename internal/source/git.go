package source

import (
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// FromGit reads a changed-files scope from the git repository at repoPath.
//
// With an empty baseRef the scope is the working tree: every added, modified,
// renamed or untracked file relative to HEAD. With a baseRef the scope is the
// diff between that revision and HEAD; deletions are excluded in both cases
// since a deleted file has nothing left to analyze.
func FromGit(repoPath, baseRef string) (*Set, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository: %w", err)
	}

	if baseRef == "" {
		return worktreeChanges(repo)
	}

	return diffChanges(repo, baseRef)
}

func worktreeChanges(repo *git.Repository) (*Set, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("read worktree status: %w", err)
	}

	set := NewSet()

	for path, st := range status {
		if st.Staging == git.Deleted || st.Worktree == git.Deleted {
			continue
		}

		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}

		set.Add(NewFileID(path))
	}

	return set, nil
}

func diffChanges(repo *git.Repository, baseRef string) (*Set, error) {
	baseHash, err := repo.ResolveRevision(plumbing.Revision(baseRef))
	if err != nil {
		return nil, fmt.Errorf("resolve base revision %q: %w", baseRef, err)
	}

	baseTree, err := treeAt(repo, *baseHash)
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	headTree, err := treeAt(repo, head.Hash())
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(baseTree, headTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	set := NewSet()

	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("inspect change: %w", err)
		}

		if action == merkletrie.Delete {
			continue
		}

		set.Add(NewFileID(change.To.Name))
	}

	return set, nil
}

func treeAt(repo *git.Repository, hash plumbing.Hash) (*object.Tree, error) {
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", hash, err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree for %s: %w", hash, err)
	}

	return tree, nil
}
