package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/face-index/internal/constants"
	"github.com/kozaktomas/face-index/internal/facematch"
	"github.com/kozaktomas/face-index/internal/pipeline"
)

// collectImages lists the image files in folders, optionally descending into
// subdirectories.
func collectImages(folders []string, recursive bool) ([]string, error) {
	var filePaths []string
	for _, folderPath := range folders {
		info, err := os.Stat(folderPath)
		if err != nil {
			return nil, fmt.Errorf("cannot access folder %s: %w", folderPath, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", folderPath)
		}

		if recursive {
			err := filepath.WalkDir(folderPath, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && constants.IsImageFile(d.Name()) {
					filePaths = append(filePaths, path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("cannot walk folder %s: %w", folderPath, err)
			}
			continue
		}

		entries, err := os.ReadDir(folderPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read folder %s: %w", folderPath, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && constants.IsImageFile(entry.Name()) {
				filePaths = append(filePaths, filepath.Join(folderPath, entry.Name()))
			}
		}
	}
	return filePaths, nil
}

// itemsFromPaths derives index ids from file names. Files whose id collides
// with an earlier file are returned as duplicates.
func itemsFromPaths(paths []string, ascii bool) (items []pipeline.Item, duplicates []string) {
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		id := facematch.IDFromFilename(p, ascii)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			duplicates = append(duplicates, p)
			continue
		}
		seen[id] = p
		items = append(items, pipeline.Item{ID: id, Path: p})
	}
	return items, duplicates
}

func newProgressBar(total int, description, unit string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
