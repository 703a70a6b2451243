// Package driver installs drivers from a cloned driver repository into a
// firmware project tree.
//
// A driver is a top-level entry of the repository named after the driver. Two
// layouts exist, told apart by the kind of that entry:
//
//   - folder drivers are directories and are copied as a whole to
//     Drivers/<NAME>, replacing any previous copy;
//   - any other entry is a flat driver: the .c/.h files listed at the entry
//     itself are copied one by one into Core/Src and Core/Inc, replacing
//     same-named files only.
//
// A flat driver entry that cannot be listed, such as a plain file, fails the
// install; files next to it in the repository are never picked up. Files that
// a flat driver no longer ships are not removed from the project.
package driver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/AaroSnid/stm32-driver-sync/internal/config"
	dsfs "github.com/AaroSnid/stm32-driver-sync/internal/fs"
	"github.com/AaroSnid/stm32-driver-sync/internal/logging"
)

// ErrNotFound is returned when the repository has no entry for a driver.
var ErrNotFound = errors.New("driver not found in repository")

type Layout int

const (
	LayoutFolder Layout = iota + 1
	LayoutFlat
)

func (l Layout) String() string {
	switch l {
	case LayoutFolder:
		return "folder"
	case LayoutFlat:
		return "flat"
	}
	return "unknown"
}

type Action int

const (
	ActionAdded Action = iota + 1
	ActionUpdated
)

func (a Action) String() string {
	switch a {
	case ActionAdded:
		return "added"
	case ActionUpdated:
		return "updated"
	}
	return "unknown"
}

// Project holds the absolute locations the installer reads from and writes to.
type Project struct {
	Root    string
	Drivers string
	Src     string
	Inc     string
	Clone   string

	sources []glob.Glob
}

// NewProject resolves the configured layout against the project root.
func NewProject(root string, layout config.Layout) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	sources, err := layout.SourceMatchers()
	if err != nil {
		return nil, err
	}

	join := func(rel string) string { return filepath.Join(abs, filepath.FromSlash(rel)) }

	return &Project{
		Root:    abs,
		Drivers: join(layout.DriversDir),
		Src:     join(layout.SourceDir),
		Inc:     join(layout.IncludeDir),
		Clone:   join(layout.CloneDir),
		sources: sources,
	}, nil
}

// Result describes what installing one driver did.
type Result struct {
	Name     string
	Layout   Layout
	Action   Action
	Copied   []string // destination paths of copied files
	Removed  []string // files deleted ahead of the copy (flat drivers)
	Includes []string
	Sources  []string
}

// Installer copies drivers from the clone into the project.
type Installer struct {
	project *Project
	out     io.Writer
	log     *logging.Logger
}

func NewInstaller(project *Project) *Installer {
	return &Installer{project: project, out: io.Discard, log: logging.NewNop()}
}

// WithOutput sets where progress lines are printed.
func (i *Installer) WithOutput(w io.Writer) *Installer {
	i.out = w
	return i
}

func (i *Installer) WithLogger(log *logging.Logger) *Installer {
	i.log = log
	return i
}

// Detect reports the layout of the repository entry at path. A missing entry
// yields ErrNotFound.
func Detect(path string) (Layout, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, err
	}

	if fi.IsDir() {
		return LayoutFolder, nil
	}
	return LayoutFlat, nil
}

// Install copies the named driver from the clone into the project.
func (i *Installer) Install(name string) (*Result, error) {
	src := filepath.Join(i.project.Clone, name)

	layout, err := Detect(src)
	if err != nil {
		return nil, fmt.Errorf("driver %q: %w", name, err)
	}

	switch layout {
	case LayoutFolder:
		return i.installFolder(name, src)
	default:
		return i.installFlat(name, src)
	}
}

func (i *Installer) installFolder(name, src string) (*Result, error) {
	dst := filepath.Join(i.project.Drivers, name)
	result := &Result{Name: name, Layout: LayoutFolder, Action: ActionAdded}

	exists, err := dsfs.Exists(dst)
	if err != nil {
		return nil, err
	}

	if exists {
		fmt.Fprintf(i.out, "  Updating existing folder driver %s\n", name)
		if err := os.RemoveAll(dst); err != nil {
			return nil, fmt.Errorf("driver %q: failed to remove %s: %w", name, dst, err)
		}
		result.Action = ActionUpdated
	} else {
		fmt.Fprintf(i.out, "  Adding new folder driver %s\n", name)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}

	if err := dsfs.CopyTree(src, dst); err != nil {
		return nil, fmt.Errorf("driver %q: failed to copy %s: %w", name, src, err)
	}
	i.log.Debugf("copied %s to %s", src, dst)

	copied, err := dsfs.FindFiles(dst, []glob.Glob{glob.MustCompile("*")})
	if err != nil {
		return nil, err
	}
	result.Copied = copied

	sources, err := dsfs.FindFiles(dst, i.project.sources)
	if err != nil {
		return nil, err
	}
	result.Sources = sources
	result.Includes = []string{dst}

	return result, nil
}

// flatDestination maps a flat driver file to its project directory. Files
// other than .c and .h are not part of a flat driver.
func (i *Installer) flatDestination(filename string) (string, bool) {
	switch {
	case strings.HasSuffix(filename, ".c"):
		return i.project.Src, true
	case strings.HasSuffix(filename, ".h"):
		return i.project.Inc, true
	}
	return "", false
}

func (i *Installer) installFlat(name, src string) (*Result, error) {
	fmt.Fprintf(i.out, "  Updating flat driver files for %s\n", name)
	result := &Result{Name: name, Layout: LayoutFlat, Action: ActionUpdated}

	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("driver %q: failed to list flat driver files: %w", name, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := i.flatDestination(e.Name()); ok {
			files = append(files, e.Name())
		}
	}

	// Remove old driver files only.
	for _, fname := range files {
		dir, _ := i.flatDestination(fname)
		target := filepath.Join(dir, fname)

		exists, err := dsfs.Exists(target)
		if err != nil {
			return nil, err
		}
		if exists {
			fmt.Fprintf(i.out, "    Removing %s\n", target)
			if err := os.Remove(target); err != nil {
				return nil, fmt.Errorf("driver %q: %w", name, err)
			}
			result.Removed = append(result.Removed, target)
		}
	}

	for _, fname := range files {
		dir, _ := i.flatDestination(fname)
		dst := filepath.Join(dir, fname)

		if err := dsfs.CopyFile(filepath.Join(src, fname), dst); err != nil {
			return nil, fmt.Errorf("driver %q: failed to copy %s: %w", name, fname, err)
		}
		i.log.Debugf("copied %s to %s", fname, dst)
		result.Copied = append(result.Copied, dst)

		if strings.HasSuffix(fname, ".c") {
			result.Sources = append(result.Sources, dst)
		} else {
			result.Includes = append(result.Includes, i.project.Inc)
		}
	}

	return result, nil
}
