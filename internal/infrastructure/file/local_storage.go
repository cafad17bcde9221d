package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
	"github.com/mohammadpnp/energy-crm/internal/textnorm"
)

const xlsxMime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LocalStorage keeps uploaded workbooks under BaseDir with a generated,
// collision-free name.
type LocalStorage struct {
	BaseDir  string
	MaxBytes int64
}

func NewLocalStorage(baseDir string, maxBytes int64) *LocalStorage {
	if baseDir == "" {
		baseDir = "."
	}
	return &LocalStorage{BaseDir: baseDir, MaxBytes: maxBytes}
}

func (s *LocalStorage) Store(ctx context.Context, originalName string, content io.Reader) (domain.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.FileInfo{}, err
	}
	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return domain.FileInfo{}, fmt.Errorf("create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	base := textnorm.Slug(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	if base == "" {
		base = "import"
	}
	storedName := fmt.Sprintf("%s-%s%s", base, uuid.NewString(), ext)
	path := s.Path(storedName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return domain.FileInfo{}, fmt.Errorf("create file %s: %w", path, err)
	}

	src := content
	if s.MaxBytes > 0 {
		src = io.LimitReader(content, s.MaxBytes+1)
	}
	size, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.MaxBytes > 0 && size > s.MaxBytes {
		err = fmt.Errorf("file exceeds %d bytes", s.MaxBytes)
	}
	if err != nil {
		_ = os.Remove(path)
		return domain.FileInfo{}, fmt.Errorf("write file %s: %w", path, err)
	}

	return domain.FileInfo{
		OriginalName: originalName,
		StoredPath:   path,
		StoredName:   storedName,
		Size:         size,
		MimeType:     mimeType(ext),
	}, nil
}

func (s *LocalStorage) Path(storedName string) string {
	return filepath.Join(s.BaseDir, filepath.Base(storedName))
}

// Delete is a no-op for a file that is already gone.
func (s *LocalStorage) Delete(_ context.Context, storedName string) error {
	if storedName == "" {
		return nil
	}
	if err := os.Remove(s.Path(storedName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file %s: %w", storedName, err)
	}
	return nil
}

func mimeType(ext string) string {
	if ext == ".xlsx" {
		return xlsxMime
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
