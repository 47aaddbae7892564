// Package scanner enumerates the files under the evidence roots.
package scanner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"agentx/internal/domain"
)

// Scan walks every root recursively and returns one Document per regular
// file, ordered by path. Missing or unreadable directories contribute
// nothing. A file reachable from two roots is reported once.
func Scan(roots ...string) []domain.Document {
	seen := make(map[string]struct{})
	var docs []domain.Document
	for _, root := range roots {
		if root == "" {
			continue
		}
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() && path != root {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			abs, absErr := filepath.Abs(path)
			if absErr != nil {
				abs = path
			}
			if _, dup := seen[abs]; dup {
				return nil
			}
			info, infoErr := d.Info()
			if infoErr != nil {
				return nil
			}
			seen[abs] = struct{}{}
			docs = append(docs, domain.Document{
				Name:    d.Name(),
				Path:    abs,
				Ext:     strings.ToLower(filepath.Ext(d.Name())),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
			return nil
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs
}
