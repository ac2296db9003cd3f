// Package webhook turns GitHub push deliveries into scan jobs.
package webhook

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/go-github/v82/github"

	ghclient "codebrew/internal/github"
	"codebrew/internal/scan"
	"codebrew/internal/source"
)

// Scheduler queues repository walks
type Scheduler interface {
	Enqueue(ctx context.Context, req scan.Request) (scan.Job, error)
}

// Processor schedules a scan of the files touched by a push to the default
// branch.
type Processor struct {
	scheduler Scheduler
	extension string
}

func NewProcessor(scheduler Scheduler, extension string) *Processor {
	if extension == "" {
		extension = ".py"
	}
	return &Processor{scheduler: scheduler, extension: extension}
}

// Process handles one delivery. It returns nil without error when the event
// needs no scan.
func (p *Processor) Process(ctx context.Context, eventType string, payload []byte, deliveryID string) (*scan.Job, error) {
	if p.scheduler == nil {
		return nil, fmt.Errorf("scan scheduler not configured")
	}

	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("parse webhook event: %w", err)
	}

	switch e := event.(type) {
	case *github.PushEvent:
		return p.handlePush(ctx, e, deliveryID)
	default:
		return nil, nil
	}
}

func (p *Processor) handlePush(ctx context.Context, e *github.PushEvent, deliveryID string) (*scan.Job, error) {
	if e.GetDeleted() {
		return nil, nil
	}

	repo := e.GetRepo()
	branch := strings.TrimPrefix(e.GetRef(), "refs/heads/")
	if def := repo.GetDefaultBranch(); def != "" && branch != def {
		return nil, nil
	}

	owner, name, err := ghclient.ParseRepoFullName(repo.GetFullName())
	if err != nil {
		return nil, err
	}

	ref := e.GetAfter()
	if ref == "" {
		ref = branch
	}

	paths := p.changedFiles(e.Commits)
	if len(paths) == 0 {
		return nil, nil
	}

	files := make([]string, 0, len(paths))
	for _, path := range paths {
		files = append(files, ghclient.BlobURL(owner, name, ref, path))
	}

	job, err := p.scheduler.Enqueue(ctx, scan.Request{
		Target: repo.GetFullName() + "@" + branch,
		Files:  files,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue scan: %w", err)
	}

	log.Printf("Queued scan %s of %d file(s) for push to %s (delivery=%s)", job.ID, len(files), repo.GetFullName(), deliveryID)
	return &job, nil
}

// changedFiles replays the commits in order and returns the matching paths
// still present after the push.
func (p *Processor) changedFiles(commits []*github.HeadCommit) []string {
	present := map[string]bool{}
	for _, c := range commits {
		for _, f := range c.Added {
			present[f] = true
		}
		for _, f := range c.Modified {
			present[f] = true
		}
		for _, f := range c.Removed {
			delete(present, f)
		}
	}

	var out []string
	for f := range present {
		if !strings.HasSuffix(f, p.extension) {
			continue
		}
		if dir := strings.Split(f, "/"); skipped(dir[:len(dir)-1]) {
			continue
		}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func skipped(dirs []string) bool {
	for _, d := range dirs {
		if source.SkipDir(d) {
			return true
		}
	}
	return false
}
