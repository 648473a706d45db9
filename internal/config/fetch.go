package config

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	get "github.com/hashicorp/go-getter"
)

// Fetch resolves a configuration source to a local file. Plain paths that
// exist on disk are returned unchanged; anything else (http, s3, git, a
// forced "file::" source ...) is downloaded into dir with go-getter. The
// returned path keeps the source's extension so Load picks the right decoder.
func Fetch(src, dir string) (string, error) {
	if src == "" {
		return "", nil
	}
	if _, err := os.Stat(src); err == nil {
		return src, nil
	}
	if dir == "" {
		return "", fmt.Errorf("fetch config %q: no download directory", src)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	dst := filepath.Join(dir, "config"+sourceExt(src))
	if err := os.RemoveAll(dst); err != nil {
		return "", fmt.Errorf("clear previous config: %w", err)
	}
	if err := get.GetFile(dst, src); err != nil {
		return "", fmt.Errorf("fetch config %q: %w", src, err)
	}
	return dst, nil
}

func sourceExt(src string) string {
	// Drop a forced getter prefix such as "s3::" or "file::".
	if i := strings.Index(src, "::"); i >= 0 {
		src = src[i+2:]
	}
	p := src
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		p = u.Path
	}
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".yaml", ".yml", ".json":
		return ext
	}
	return ".json"
}
