package github

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v81/github"
)

// templateExts are the file types the template registry can load.
var templateExts = map[string]bool{".txt": true, ".md": true, ".pdf": true}

// RemoteFile is a template file found in the repository directory.
type RemoteFile struct {
	Path string // Relative to the fetcher base path, slash separated
	SHA  string // Git blob SHA
	Size int
}

// SyncReport lists what Sync did per file, by relative path.
type SyncReport struct {
	Written   []string `json:"written"`
	Unchanged []string `json:"unchanged"`
	Failed    []string `json:"failed,omitempty"`
}

// Fetcher downloads template files from one repository directory.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
	ref      string
	logger   *slog.Logger
}

// NewFetcher creates a fetcher for owner/repo at basePath. An empty ref means
// the default branch.
func NewFetcher(client *Client, owner, repo, basePath, ref string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: strings.Trim(basePath, "/"),
		ref:      ref,
		logger:   logger,
	}
}

func (f *Fetcher) options() *github.RepositoryContentGetOptions {
	if f.ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.ref}
}

// List recursively lists template files (.txt, .md, .pdf) under the base path.
func (f *Fetcher) List(ctx context.Context) ([]RemoteFile, error) {
	return f.listRecursive(ctx, f.basePath, "")
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]RemoteFile, error) {
	var files []RemoteFile

	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, f.options())
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		itemRelPath := path.Join(relativePath, item.GetName())

		switch item.GetType() {
		case "file":
			if templateExts[strings.ToLower(path.Ext(item.GetName()))] {
				files = append(files, RemoteFile{Path: itemRelPath, SHA: item.GetSHA(), Size: item.GetSize()})
			}
		case "dir":
			sub, err := f.listRecursive(ctx, path.Join(fullPath, item.GetName()), itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}

	return files, nil
}

// Fetch downloads one file by its path relative to the base path.
func (f *Fetcher) Fetch(ctx context.Context, relativePath string) ([]byte, error) {
	fullPath := path.Join(f.basePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, f.options())
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}
	return []byte(content), nil
}

// Sync mirrors the remote template files into destDir. Files whose local
// blob SHA already matches the remote one are not downloaded again. A failed
// file is logged and listed; the others still sync.
func (f *Fetcher) Sync(ctx context.Context, destDir string) (*SyncReport, error) {
	files, err := f.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{Written: []string{}, Unchanged: []string{}}
	for _, rf := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		dest, err := localPath(destDir, rf.Path)
		if err != nil {
			f.logger.Warn("Skipping template", "path", rf.Path, "error", err)
			report.Failed = append(report.Failed, rf.Path)
			continue
		}

		if sha, err := blobSHA(dest); err == nil && sha == rf.SHA {
			report.Unchanged = append(report.Unchanged, rf.Path)
			continue
		}

		data, err := f.Fetch(ctx, rf.Path)
		if err != nil {
			f.logger.Warn("Failed to fetch template", "path", rf.Path, "error", err)
			report.Failed = append(report.Failed, rf.Path)
			continue
		}
		if err := writeFile(dest, data); err != nil {
			f.logger.Warn("Failed to write template", "path", dest, "error", err)
			report.Failed = append(report.Failed, rf.Path)
			continue
		}
		f.logger.Info("Synced template", "path", rf.Path, "bytes", len(data))
		report.Written = append(report.Written, rf.Path)
	}

	return report, nil
}

// LatestCommitSHA retrieves the SHA of the most recent commit affecting the base path.
func (f *Fetcher) LatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx,
		f.owner,
		f.repo,
		&github.CommitsListOptions{
			SHA:  f.ref,
			Path: f.basePath,
			ListOptions: github.ListOptions{
				PerPage: 1,
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.basePath)
	}
	if commits[0].SHA == nil {
		return "", errors.New("commit SHA is nil")
	}
	return commits[0].GetSHA(), nil
}

// localPath maps a remote relative path into destDir, refusing paths that
// escape it.
func localPath(destDir, rel string) (string, error) {
	clean := path.Clean("/" + rel)[1:]
	if clean == "" || clean != rel {
		return "", fmt.Errorf("unsafe path %q", rel)
	}
	return filepath.Join(destDir, filepath.FromSlash(clean)), nil
}

// blobSHA computes the git blob id of a local file.
func blobSHA(p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}
