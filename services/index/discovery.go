package index

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// discoverFiles walks the tree under rootPath and returns qualifying file
// paths. Subdirectories whose lower-cased name is in the exclude set are
// pruned before descent, so excluded subtrees are never visited. In
// incremental mode paths present in the baseline are skipped.
func (s *Service) discoverFiles(rootPath string, allowed, exclude, baseline map[string]struct{}) ([]string, error) {
	var files []string

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == rootPath {
				return err
			}
			s.logger.Warn("could not walk through file or directory", "path", path, "err", err.Error())
			if errors.Is(err, os.ErrPermission) {
				return nil
			}
			return err
		}

		if d.IsDir() {
			if path == rootPath {
				return nil
			}
			if _, excluded := exclude[strings.ToLower(d.Name())]; excluded {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := allowed[ext]; !ok {
			return nil
		}

		if baseline != nil {
			if _, seen := baseline[path]; seen {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
