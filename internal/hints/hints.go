// Package hints collects the include directories and source files that a
// CMake build needs after drivers are installed, and prints them.
package hints

import (
	"fmt"
	"io"
	"maps"
	"slices"
)

// Accumulator holds the include and source paths reported by the installer.
// Both sets are deduplicated; they are never written to disk.
type Accumulator struct {
	includes map[string]struct{}
	sources  map[string]struct{}
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		includes: map[string]struct{}{},
		sources:  map[string]struct{}{},
	}
}

func (a *Accumulator) AddInclude(paths ...string) {
	for _, p := range paths {
		a.includes[p] = struct{}{}
	}
}

func (a *Accumulator) AddSource(paths ...string) {
	for _, p := range paths {
		a.sources[p] = struct{}{}
	}
}

// Includes returns the include directories in lexicographic order.
func (a *Accumulator) Includes() []string {
	return slices.Sorted(maps.Keys(a.includes))
}

// Sources returns the source files in lexicographic order.
func (a *Accumulator) Sources() []string {
	return slices.Sorted(maps.Keys(a.sources))
}

func (a *Accumulator) Empty() bool {
	return len(a.includes) == 0 && len(a.sources) == 0
}

// Write prints the build hints. A category without entries is omitted; the
// preamble is always printed.
func (a *Accumulator) Write(w io.Writer) error {
	p := &printer{w: w}

	p.printf("\nIf using CMake, make sure these paths are included:\n\n")

	if includes := a.Includes(); len(includes) > 0 {
		p.printf("Include directories:\n")
		for _, inc := range includes {
			p.printf("  %s\n", inc)
		}
	}

	if sources := a.Sources(); len(sources) > 0 {
		p.printf("\nSource directories:\n")
		for _, src := range sources {
			p.printf("  %s\n", src)
		}
	}

	return p.err
}

// WriteCMake prints a snippet adding the hints to a CMake target.
func (a *Accumulator) WriteCMake(w io.Writer, target string) error {
	p := &printer{w: w}

	if includes := a.Includes(); len(includes) > 0 {
		p.printf("\ntarget_include_directories(%s PRIVATE\n", target)
		for _, inc := range includes {
			p.printf("    %s\n", cmakePath(inc))
		}
		p.printf(")\n")
	}

	if sources := a.Sources(); len(sources) > 0 {
		p.printf("\ntarget_sources(%s PRIVATE\n", target)
		for _, src := range sources {
			p.printf("    %s\n", cmakePath(src))
		}
		p.printf(")\n")
	}

	return p.err
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
