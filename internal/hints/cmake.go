package hints

import (
	"path/filepath"
	"strings"
)

// cmakePath converts path to forward slashes and quotes it when CMake would
// otherwise split it into several arguments.
func cmakePath(path string) string {
	path = filepath.ToSlash(path)
	if strings.ContainsAny(path, " \t;()#\"") {
		return `"` + strings.ReplaceAll(path, `"`, `\"`) + `"`
	}
	return path
}
