package services

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nwaples/rardecode/v2"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
	"github.com/Belphemur/SubTranslate/internal/config"
	"github.com/Belphemur/SubTranslate/internal/matcher"
	"github.com/Belphemur/SubTranslate/internal/models"
)

// UploadedFile is one file received from a client.
type UploadedFile struct {
	Name    string
	Content io.Reader
}

// UploadResult lists what was stored and how subtitles pair with videos.
type UploadResult struct {
	Files   []string           `json:"files"`
	Matches []models.FileMatch `json:"matches"`
}

// UploadService stores uploads and serves translated files.
type UploadService interface {
	// Store replaces the previous upload with files, expanding archives.
	Store(files []UploadedFile) (UploadResult, error)
	// OutputPath returns the path of a translated file in the output directory.
	OutputPath(name string) (string, error)
}

// DefaultUploadService keeps uploads and outputs in two directories.
type DefaultUploadService struct {
	uploadDir string
	outputDir string
}

// NewUploadService creates an UploadService.
func NewUploadService(uploadDir, outputDir string) *DefaultUploadService {
	return &DefaultUploadService{uploadDir: uploadDir, outputDir: outputDir}
}

// Store implements UploadService. Only video and subtitle files are kept;
// archive entries are flattened into the upload directory.
func (s *DefaultUploadService) Store(files []UploadedFile) (UploadResult, error) {
	logger := config.GetLogger()
	if err := os.RemoveAll(s.uploadDir); err != nil {
		return UploadResult{}, fmt.Errorf("clear upload dir: %w", err)
	}
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return UploadResult{}, fmt.Errorf("create upload dir: %w", err)
	}

	var stored []string
	seen := make(map[string]bool)
	keep := func(name string) {
		if !seen[name] {
			seen[name] = true
			stored = append(stored, name)
		}
	}

	for _, f := range files {
		name, ok := SanitizeName(f.Name)
		if !ok {
			logger.Warn().Str("name", f.Name).Msg("Skipping upload with an invalid name")
			continue
		}
		var (
			names []string
			err   error
		)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".zip":
			names, err = s.extractZip(f.Content)
		case ".rar":
			names, err = s.extractRar(f.Content)
		default:
			if matcher.Classify(name) == models.FileKindOther {
				logger.Debug().Str("name", name).Msg("Ignoring upload that is neither video nor subtitle")
				continue
			}
			err = s.write(name, f.Content)
			names = []string{name}
		}
		if err != nil {
			return UploadResult{}, fmt.Errorf("store %s: %w", name, err)
		}
		for _, n := range names {
			keep(n)
		}
	}

	logger.Info().Int("files", len(stored)).Msg("Stored upload")
	return UploadResult{Files: stored, Matches: matcher.MatchPaths(stored)}, nil
}

// OutputPath implements UploadService.
func (s *DefaultUploadService) OutputPath(name string) (string, error) {
	clean, ok := SanitizeName(name)
	if !ok {
		return "", apperrors.NewNotFoundError("file", name)
	}
	path := filepath.Join(s.outputDir, clean)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", apperrors.NewNotFoundError("file", clean)
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", clean, err)
	}
	return path, nil
}

func (s *DefaultUploadService) extractZip(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read zip: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var names []string
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name, ok := archiveEntryName(file.Name)
		if !ok {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in zip: %w", file.Name, err)
		}
		err = s.write(name, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *DefaultUploadService) extractRar(r io.Reader) ([]string, error) {
	rr, err := rardecode.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open rar: %w", err)
	}

	var names []string
	for {
		hdr, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rar: %w", err)
		}
		if hdr.IsDir {
			continue
		}
		name, ok := archiveEntryName(hdr.Name)
		if !ok {
			continue
		}
		if err := s.write(name, rr); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// archiveEntryName flattens an archive path and keeps only video and subtitle entries.
func archiveEntryName(entry string) (string, bool) {
	name, ok := SanitizeName(entry)
	if !ok || matcher.Classify(name) == models.FileKindOther {
		return "", false
	}
	return name, true
}

func (s *DefaultUploadService) write(name string, r io.Reader) error {
	f, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

// SanitizeName reduces a client-supplied path to its final element. Both
// slash styles are treated as separators.
func SanitizeName(name string) (string, bool) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", false
	}
	return base, true
}
