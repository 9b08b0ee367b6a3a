// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package status

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// 📊 FileStatus represents what happened to a file during a run
type FileStatus int

const (
	StatusUnknown FileStatus = iota
	StatusDecoded            // Decoded copy written to the destination
	StatusCopied             // Copied verbatim
	StatusSkipped            // Destination already had the file
	StatusFailed             // Not decoded or not copied
)

// String returns a string representation of FileStatus
func (s FileStatus) String() string {
	switch s {
	case StatusDecoded:
		return "decoded"
	case StatusCopied:
		return "copied"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// 📄 FileInfo contains what is known about one destination file
type FileInfo struct {
	Path   string      // Path relative to the destination root
	Status FileStatus  // Outcome
	Size   int64       // File size in bytes, when known
	Mode   os.FileMode // File permissions, when known
	Error  error       // Any error associated with this file
}

// 💾 FileManager handles the destination tree
type FileManager interface {
	CreateDir(ctx context.Context, path string) error
	FileExists(ctx context.Context, path string) (bool, error)
	CopyFile(ctx context.Context, src, path string) error
	RemoveFile(ctx context.Context, path string) error
	Path(path string) string
}

// 📈 StatusReporter tracks file outcomes and reports progress
type StatusReporter interface {
	TrackFile(ctx context.Context, path string, info FileInfo)
	GetFileInfo(ctx context.Context, path string) (FileInfo, error)
	ListFiles(ctx context.Context) ([]FileInfo, error)

	StartOperation(ctx context.Context, total int)
	UpdateProgress(ctx context.Context, processed int)
	FinishOperation(ctx context.Context)
}

var (
	_ FileManager    = (*Manager)(nil)
	_ StatusReporter = (*Manager)(nil)
)

// 🔧 Manager implements both FileManager and StatusReporter
type Manager struct {
	fs        afero.Fs        // Filesystem shared with the source tree
	baseDir   string          // Destination root
	logger    *zerolog.Logger // Logger for status updates
	formatter FileFormatter   // Formatter for status messages

	// Status tracking
	mu    sync.RWMutex
	files map[string]FileInfo

	// Progress tracking
	total     int
	processed int
}

// 🏭 New creates a new status manager rooted at baseDir
func New(fs afero.Fs, baseDir string, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{
		fs:        fs,
		baseDir:   filepath.Clean(baseDir),
		logger:    logger,
		formatter: NewDefaultFileFormatter(),
		files:     make(map[string]FileInfo),
	}
}

// Path returns the destination path for a path relative to the root.
func (m *Manager) Path(path string) string {
	return filepath.Join(m.baseDir, filepath.FromSlash(path))
}

// Root returns the destination root.
func (m *Manager) Root() string {
	return m.baseDir
}

// FileManager interface implementation

func (m *Manager) CreateDir(ctx context.Context, path string) error {
	if err := m.fs.MkdirAll(m.Path(path), 0o755); err != nil {
		return errors.Errorf("creating directory: %w", err)
	}
	return nil
}

func (m *Manager) FileExists(ctx context.Context, path string) (bool, error) {
	exists, err := afero.Exists(m.fs, m.Path(path))
	if err != nil {
		return false, errors.Errorf("checking file existence: %w", err)
	}
	return exists, nil
}

// 📋 CopyFile copies src byte for byte to path under the destination root, keeping
// the source permissions and modification time. The copy lands under a temporary
// name first and is renamed into place.
func (m *Manager) CopyFile(ctx context.Context, src, path string) error {
	info, err := m.fs.Stat(src)
	if err != nil {
		return errors.Errorf("checking source file: %w", err)
	}

	srcFile, err := m.fs.Open(src)
	if err != nil {
		return errors.Errorf("opening source file: %w", err)
	}
	defer srcFile.Close()

	dst := m.Path(path)
	if err := m.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}

	tmp, err := afero.TempFile(m.fs, filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, srcFile)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = m.fs.Remove(tmpPath)
		return errors.Errorf("copying file content: %w", errors.Join(copyErr, closeErr))
	}

	if err := m.fs.Rename(tmpPath, dst); err != nil {
		_ = m.fs.Remove(tmpPath)
		return errors.Errorf("renaming temp file: %w", err)
	}

	if err := m.fs.Chmod(dst, info.Mode().Perm()); err != nil {
		return errors.Errorf("setting permissions: %w", err)
	}
	if err := m.fs.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return errors.Errorf("setting modification time: %w", err)
	}

	return nil
}

// 🗑️ RemoveFile deletes path under the destination root. A missing file is not an error.
func (m *Manager) RemoveFile(ctx context.Context, path string) error {
	if err := m.fs.Remove(m.Path(path)); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("removing file: %w", err)
	}
	return nil
}

// StatusReporter interface implementation

func (m *Manager) TrackFile(ctx context.Context, path string, info FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info.Path = path
	m.files[path] = info
	msg := m.formatter.FormatFileOperation(path, info.Status)
	if info.Error != nil {
		msg = m.formatter.FormatError(info.Error)
	}
	m.logger.Debug().Str("path", path).Str("status", info.Status.String()).Msg(msg)
}

func (m *Manager) GetFileInfo(ctx context.Context, path string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[path]
	if !ok {
		return FileInfo{}, errors.Errorf("file not tracked: %s", path)
	}
	return info, nil
}

// ListFiles returns every tracked file ordered by path.
func (m *Manager) ListFiles(ctx context.Context) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]FileInfo, 0, len(m.files))
	for _, info := range m.files {
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// CountByStatus returns how many tracked files ended in each status.
func (m *Manager) CountByStatus() map[FileStatus]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := map[FileStatus]int{}
	for _, info := range m.files {
		counts[info.Status]++
	}
	return counts
}

func (m *Manager) StartOperation(ctx context.Context, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total = total
	m.processed = 0
	msg := m.formatter.FormatProgress(0, total)
	m.logger.Info().Int("total", total).Msg(msg)
}

func (m *Manager) UpdateProgress(ctx context.Context, processed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed = processed
	msg := m.formatter.FormatProgress(processed, m.total)
	m.logger.Info().
		Int("processed", processed).
		Int("total", m.total).
		Msg(msg)
}

// Processed returns the last reported progress count.
func (m *Manager) Processed() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.processed
}

func (m *Manager) FinishOperation(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := m.formatter.FormatProgress(m.processed, m.total)
	m.logger.Info().
		Int("processed", m.processed).
		Int("total", m.total).
		Msg(msg)
}
