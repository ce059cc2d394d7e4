// Package repo registers repositories and materializes them on disk so the
// pipeline always starts from "repo is at local_path". Three sources are
// supported: a remote Git URL, an uploaded archive, and a pre-existing
// local path.
package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"codewiki/internal/logging"
	"codewiki/internal/wiki"
	"codewiki/internal/wikierr"
)

// RegisterRequest describes one repository to register. Exactly one of
// RemoteURL, ArchivePath, or LocalPath must be set.
type RegisterRequest struct {
	UserID      string
	Provider    string
	RemoteURL   string
	ArchivePath string
	LocalPath   string
	Branch      string

	// Organization and Name may be left empty for RemoteURL registrations;
	// they are then derived from the URL path.
	Organization string
	Name         string
}

// Service owns registration and the storage layout under the configured
// repository root.
type Service struct {
	store       *wiki.Store
	storagePath string
}

// NewService creates the registration service.
func NewService(store *wiki.Store, storagePath string) *Service {
	return &Service{store: store, storagePath: storagePath}
}

// Register validates the request, reserves the repository row and its wiki
// document, then materializes the source tree at the computed local path.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*wiki.Repository, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "Register")
	defer timer.Stop()

	if err := s.normalize(&req); err != nil {
		return nil, err
	}

	repo := &wiki.Repository{
		UserID:       req.UserID,
		Provider:     req.Provider,
		RemoteURL:    req.RemoteURL,
		Organization: req.Organization,
		Name:         req.Name,
		Branch:       req.Branch,
		LocalPath:    s.localPath(req),
	}
	if err := s.store.CreateRepository(repo); err != nil {
		return nil, err
	}
	if _, err := s.store.CreateDocument(repo.ID); err != nil {
		return nil, err
	}

	if err := s.materializer(req).Materialize(ctx, repo); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRepositorySync(repo.ID, true); err != nil {
		return nil, err
	}
	repo.IsCloned = true
	logging.Boot("registered %s/%s at %s", repo.Organization, repo.Name, repo.LocalPath)
	return repo, nil
}

func (s *Service) normalize(req *RegisterRequest) error {
	sources := 0
	for _, v := range []string{req.RemoteURL, req.ArchivePath, req.LocalPath} {
		if v != "" {
			sources++
		}
	}
	if sources != 1 {
		return wikierr.New(wikierr.KindValidation, "exactly one of remote URL, archive, or local path required")
	}
	if req.UserID == "" {
		return wikierr.New(wikierr.KindValidation, "user id required")
	}
	if req.Provider == "" {
		req.Provider = "git"
	}

	switch {
	case req.RemoteURL != "":
		org, name, err := ParseRemoteURL(req.RemoteURL)
		if err != nil {
			return err
		}
		if req.Organization == "" {
			req.Organization = org
		}
		if req.Name == "" {
			req.Name = name
		}
	case req.ArchivePath != "":
		if req.Name == "" {
			req.Name = strings.TrimSuffix(filepath.Base(req.ArchivePath), filepath.Ext(req.ArchivePath))
		}
		if req.Organization == "" {
			req.Organization = "uploads"
		}
		req.Provider = "upload"
	case req.LocalPath != "":
		abs, err := filepath.Abs(req.LocalPath)
		if err != nil {
			return wikierr.Wrap(wikierr.KindValidation, err, "resolve local path")
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return wikierr.New(wikierr.KindValidation, "local path %s is not a directory", abs)
		}
		req.LocalPath = abs
		if req.Name == "" {
			req.Name = filepath.Base(abs)
		}
		if req.Organization == "" {
			req.Organization = "local"
		}
		req.Provider = "local"
	}
	return nil
}

// localPath computes where a repository lives on disk. Remote clones land
// at <storage>/<org>/<name>, uploads at <storage>/uploads/<user>/<name>,
// and local-path registrations stay where they are.
func (s *Service) localPath(req RegisterRequest) string {
	switch {
	case req.LocalPath != "":
		return req.LocalPath
	case req.ArchivePath != "":
		return filepath.Join(s.storagePath, "uploads", req.UserID, req.Name)
	default:
		return filepath.Join(s.storagePath, req.Organization, req.Name)
	}
}

func (s *Service) materializer(req RegisterRequest) Materializer {
	switch {
	case req.ArchivePath != "":
		return &ArchiveMaterializer{ArchivePath: req.ArchivePath}
	case req.LocalPath != "":
		return localMaterializer{}
	default:
		return &GitMaterializer{}
	}
}

// ParseRemoteURL derives (organization, name) from a Git remote URL. The
// last two path segments are taken, with a trailing .git stripped.
func ParseRemoteURL(remote string) (org, name string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimRight(remote, "/"), ".git")

	// scp-like syntax: git@host:org/name
	if at := strings.Index(trimmed, "@"); at >= 0 && !strings.Contains(trimmed, "://") {
		if colon := strings.Index(trimmed, ":"); colon > at {
			trimmed = trimmed[colon+1:]
		}
	} else if idx := strings.Index(trimmed, "://"); idx >= 0 {
		rest := trimmed[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			trimmed = rest[slash+1:]
		} else {
			trimmed = ""
		}
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || parts[len(parts)-1] == "" || parts[len(parts)-2] == "" {
		return "", "", wikierr.New(wikierr.KindValidation, "cannot derive organization/name from %q", remote)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
