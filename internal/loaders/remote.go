package loaders

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/ragdex/internal/core/domain"
	"github.com/custodia-labs/ragdex/internal/core/ports/driven"
	"github.com/custodia-labs/ragdex/internal/logger"
	"github.com/custodia-labs/ragdex/internal/tempdir"
)

const (
	// DefaultFetchConcurrency bounds concurrent blob fetches per
	// loader instance.
	DefaultFetchConcurrency = 8

	remoteTimeout = 30 * time.Second
	defaultRef    = "main"
)

// repoRef identifies a repository subtree resolved from a source URL.
type repoRef struct {
	Owner string
	Repo  string
	Ref   string
	Path  string
	IsDir bool
}

// RemoteRepoLoader fetches a GitHub repository subtree through the
// REST API into a scratch directory and returns that directory as the
// single next source.
type RemoteRepoLoader struct {
	tmp         *tempdir.Set
	token       string
	concurrency int64
	limiter     *apiRateLimiter

	client *gh.Client
}

var _ driven.Loader = (*RemoteRepoLoader)(nil)

// NewRemoteRepoLoader returns a loader. The GITHUB_TOKEN environment
// variable, when set, authenticates requests and raises the API
// quota.
func NewRemoteRepoLoader(tmp *tempdir.Set, concurrency int64) *RemoteRepoLoader {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	return &RemoteRepoLoader{
		tmp:         tmp,
		token:       os.Getenv("GITHUB_TOKEN"),
		concurrency: concurrency,
		limiter:     newAPIRateLimiter(),
	}
}

func (l *RemoteRepoLoader) ensureClient(ctx context.Context) *gh.Client {
	if l.client != nil {
		return l.client
	}
	if l.token == "" {
		l.client = gh.NewClient(nil)
		return l.client
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: l.token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = remoteTimeout
	l.client = gh.NewClient(tc)
	return l.client
}

// Load fetches the subtree referenced by source. The filter is
// ignored; it applies when the scratch directory is re-resolved.
func (l *RemoteRepoLoader) Load(ctx context.Context, source, _ string) (driven.LoadResult, error) {
	ref, err := parseRepoURL(source)
	if err != nil {
		return driven.LoadResult{}, err
	}

	target, err := l.tmp.New("ragdex-remote-*")
	if err != nil {
		return driven.LoadResult{}, err
	}

	client := l.ensureClient(ctx)

	if !ref.IsDir {
		if err := l.fetchFile(ctx, client, ref, ref.Path, target); err != nil {
			return driven.LoadResult{}, err
		}
		return driven.LoadResult{NextSources: []string{target}}, nil
	}

	if err := l.fetchTree(ctx, client, ref, target); err != nil {
		return driven.LoadResult{}, err
	}
	return driven.LoadResult{NextSources: []string{target}}, nil
}

// fetchFile retrieves a single file through the contents API.
func (l *RemoteRepoLoader) fetchFile(ctx context.Context, client *gh.Client, ref repoRef, path, target string) error {
	if err := l.limiter.wait(ctx); err != nil {
		return err
	}

	logger.Debug("Fetching %s/%s@%s:%s", ref.Owner, ref.Repo, ref.Ref, path)

	opts := &gh.RepositoryContentGetOptions{Ref: ref.Ref}
	content, _, resp, err := client.Repositories.GetContents(ctx, ref.Owner, ref.Repo, path, opts)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	if resp != nil {
		l.limiter.update(resp.Response)
	}
	if content == nil {
		return fmt.Errorf("%w: %s is not a file", domain.ErrInvalidInput, path)
	}
	if content.GetEncoding() != "base64" {
		return fmt.Errorf("%w: unexpected content encoding %q for %s",
			domain.ErrInvalidInput, content.GetEncoding(), path)
	}

	decoded, err := content.GetContent()
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return writeFetched(target, path, []byte(decoded))
}

// fetchTree lists the full recursive tree once and fetches every blob
// concurrently.
func (l *RemoteRepoLoader) fetchTree(ctx context.Context, client *gh.Client, ref repoRef, target string) error {
	if err := l.limiter.wait(ctx); err != nil {
		return err
	}

	tree, resp, err := client.Git.GetTree(ctx, ref.Owner, ref.Repo, ref.Ref, true)
	if err != nil {
		return fmt.Errorf("get tree %s/%s@%s: %w", ref.Owner, ref.Repo, ref.Ref, err)
	}
	if resp != nil {
		l.limiter.update(resp.Response)
	}

	sem := semaphore.NewWeighted(l.concurrency)
	g, ctx := errgroup.WithContext(ctx)

	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		path := entry.GetPath()
		sha := entry.GetSHA()

		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return l.fetchBlob(ctx, client, ref, path, sha, target)
		})
	}

	return g.Wait()
}

func (l *RemoteRepoLoader) fetchBlob(ctx context.Context, client *gh.Client, ref repoRef, path, sha, target string) error {
	if err := l.limiter.wait(ctx); err != nil {
		return err
	}

	blob, resp, err := client.Git.GetBlob(ctx, ref.Owner, ref.Repo, sha)
	if err != nil {
		return fmt.Errorf("fetch blob %s: %w", path, err)
	}
	if resp != nil {
		l.limiter.update(resp.Response)
	}
	if blob.GetEncoding() != "base64" {
		return fmt.Errorf("%w: unexpected blob encoding %q for %s",
			domain.ErrInvalidInput, blob.GetEncoding(), path)
	}

	data, err := decodeBase64(blob.GetContent())
	if err != nil {
		return fmt.Errorf("decode blob %s: %w", path, err)
	}
	return writeFetched(target, path, data)
}

func decodeBase64(content string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
}

func writeFetched(target, path string, data []byte) error {
	dest := filepath.Join(target, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// parseRepoURL resolves a repository reference from the three
// supported URL shapes: SSH clone, HTTPS clone, and web tree/blob
// URLs. Clone URLs reference the whole default branch.
func parseRepoURL(source string) (repoRef, error) {
	source = strings.TrimSpace(source)

	if rest, ok := strings.CutPrefix(source, "git@github.com:"); ok {
		parts := strings.Split(strings.TrimSuffix(rest, ".git"), "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return repoRef{}, fmt.Errorf("%w: invalid SSH repository URL: %s", domain.ErrInvalidInput, source)
		}
		return repoRef{Owner: parts[0], Repo: parts[1], Ref: defaultRef, Path: ".", IsDir: true}, nil
	}

	parsed, err := url.Parse(source)
	if err != nil || parsed.Host != "github.com" {
		return repoRef{}, fmt.Errorf("%w: invalid repository URL: %s", domain.ErrInvalidInput, source)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return repoRef{}, fmt.Errorf("%w: invalid repository URL: %s", domain.ErrInvalidInput, source)
	}

	ref := repoRef{
		Owner: parts[0],
		Repo:  strings.TrimSuffix(parts[1], ".git"),
		Ref:   defaultRef,
		Path:  ".",
		IsDir: true,
	}

	for i := 2; i < len(parts); i++ {
		if parts[i] != "tree" && parts[i] != "blob" {
			continue
		}
		if i+1 < len(parts) {
			ref.Ref = parts[i+1]
		}
		if i+2 < len(parts) {
			ref.Path = strings.Join(parts[i+2:], "/")
		}
		ref.IsDir = parts[i] == "tree"
		break
	}

	return ref, nil
}
