// Package gitsync clones the driver repository. Every Execute starts from an
// empty directory: a clone left over from an earlier run is removed first, so
// the local copy always reflects the remote. This package implements no
// threadpooling. The Synchronizer is not thread-safe.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp/capability"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/AaroSnid/stm32-driver-sync/internal/config"
	"github.com/AaroSnid/stm32-driver-sync/internal/logging"
	"github.com/AaroSnid/stm32-driver-sync/internal/metrics"
)

func init() {
	// For Azure DevOps compatibility. More details: https://github.com/go-git/go-git/issues/64
	transport.UnsupportedCapabilities = []capability.Capability{
		capability.ThinPack,
	}
}

type Synchronizer struct {
	path   string
	config config.Git
	tokens appTokens
	log    *logging.Logger
}

// New creates a Synchronizer cloning the configured repository into path.
// Whatever path holds is deleted on Execute and Close, so the caller must
// dedicate it to the clone.
func New(path string, config config.Git, log *logging.Logger) *Synchronizer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Synchronizer{path: path, config: config, log: log}
}

func (s *Synchronizer) Path() string {
	return s.path
}

// Execute performs a full clone of the configured repository, checking out the
// configured reference (the remote HEAD by default) and then, if set, the
// configured commit.
func (s *Synchronizer) Execute(ctx context.Context) error {
	startTime := time.Now()

	if err := s.execute(ctx); err != nil {
		metrics.GitCloneFailed(s.config.Repo)
		return fmt.Errorf("git synchronizer: %v: %w", s.config.Repo, err)
	}

	metrics.GitCloneSucceeded(s.config.Repo, startTime)
	s.log.Debugf("cloned %s into %s in %v", s.config.Repo, s.path, time.Since(startTime))
	return nil
}

func (s *Synchronizer) execute(ctx context.Context) error {
	if s.config.Repo == "" {
		return errors.New("repository url must be set")
	}

	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("failed to remove previous clone: %w", err)
	}

	authMethod, err := s.auth(ctx)
	if err != nil {
		return err
	}

	var referenceName plumbing.ReferenceName
	if s.config.Reference != nil {
		referenceName = ReferenceName(*s.config.Reference)
	}

	repository, err := git.PlainCloneContext(ctx, s.path, false, &git.CloneOptions{
		URL:               s.config.Repo,
		Auth:              authMethod,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
		ReferenceName:     referenceName,
	})
	if err != nil {
		return err
	}

	if s.config.Commit == nil {
		return nil
	}

	w, err := repository.Worktree()
	if err != nil {
		return err
	}

	return w.Checkout(&git.CheckoutOptions{
		Force: true,
		Hash:  plumbing.NewHash(*s.config.Commit),
	})
}

// Close removes the clone directory.
func (s *Synchronizer) Close(context.Context) error {
	return os.RemoveAll(s.path)
}

// ReferenceName expands a short branch name into a full reference name. Names
// starting with "refs/" are returned unchanged, so tags must be given as
// refs/tags/<tag>.
func ReferenceName(ref string) plumbing.ReferenceName {
	if strings.HasPrefix(ref, "refs/") {
		return plumbing.ReferenceName(ref)
	}
	return plumbing.NewBranchReferenceName(ref)
}
