// Package scanner lists the photos a run should process.
package scanner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/benmeehan/photogps/internal/models"
	"github.com/benmeehan/photogps/internal/utils"
	"github.com/benmeehan/photogps/pkg/file"
	"github.com/gabriel-vasile/mimetype"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog"
)

// Options controls which files count as photos.
type Options struct {
	Recursive     bool
	Extensions    []string // with leading dot, case-insensitive
	SkipPatterns  []string // case-insensitive path substrings
	DetectContent bool     // accept any image/* MIME type instead of using Extensions
}

// Scanner enumerates photos below a path.
type Scanner struct {
	opts       Options
	fileClient file.FileOperations
	extensions map[string]struct{}
	skip       []string
	logger     zerolog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(opts Options, fileClient file.FileOperations, logger zerolog.Logger) *Scanner {
	return &Scanner{
		opts:       opts,
		fileClient: fileClient,
		extensions: utils.SliceToSet(utils.LowerAll(opts.Extensions)),
		skip:       utils.LowerAll(opts.SkipPatterns),
		logger:     logger,
	}
}

// Scan returns the photos at root in lexical order. A file root yields itself
// when it qualifies as a photo.
func (s *Scanner) Scan(root string) ([]string, error) {
	isDir, err := s.fileClient.IsDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot access %s: %v", models.ErrConfig, root, err)
	}

	if !isDir {
		if !s.accept(root) {
			return nil, fmt.Errorf("%w: unsupported file format: %s", models.ErrConfig, root)
		}
		return []string{root}, nil
	}

	var photos []string
	err = godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				if !s.opts.Recursive && filepath.Clean(path) != filepath.Clean(root) {
					return godirwalk.SkipThis
				}
				return nil
			}
			if !de.IsRegular() {
				return nil
			}
			if !s.accept(path) {
				s.logger.Debug().Str("path", path).Msg("Skipping non-photo file")
				return nil
			}
			photos = append(photos, path)
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			s.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable path")
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	s.logger.Debug().Str("root", root).Int("photos", len(photos)).Bool("recursive", s.opts.Recursive).Msg("Scan completed")
	return photos, nil
}

func (s *Scanner) accept(path string) bool {
	lower := strings.ToLower(path)
	for _, pattern := range s.skip {
		if pattern != "" && strings.Contains(lower, pattern) {
			return false
		}
	}

	if s.opts.DetectContent {
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to detect file type")
			return false
		}
		return strings.HasPrefix(mtype.String(), "image/")
	}

	_, ok := s.extensions[filepath.Ext(lower)]
	return ok
}
