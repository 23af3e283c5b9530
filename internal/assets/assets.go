// Package assets holds the embedded data directory (report templates) set
// by main.
package assets

import (
	"io/fs"

	"github.com/pkg/errors"
)

var efs fs.FS

func GetData() fs.FS {
	return efs
}

func UpdateData(d fs.FS) {
	efs = d
}

// ReadFile reads an embedded file, failing when no data was set.
func ReadFile(path string) ([]byte, error) {
	if efs == nil {
		return nil, errors.New("embedded data is not available")
	}
	data, err := fs.ReadFile(efs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read embedded file %s", path)
	}
	return data, nil
}

// GetAllFilenames return all file names from a path in the embedded FS.
func GetAllFilenames(fsys fs.FS, path string) (files []string, err error) {
	if err := fs.WalkDir(fsys, path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	}); err != nil {
		return nil, err
	}
	return files, nil
}
