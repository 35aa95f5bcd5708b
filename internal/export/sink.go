package export

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ivlev/story2video/internal/logger"
)

// Sink stores a package and returns where it went.
type Sink interface {
	Write(ctx context.Context, pkg *Package) (string, error)
}

// ZipSink writes <Dir>/<name>.zip.
type ZipSink struct {
	Dir string
}

func (s ZipSink) Write(ctx context.Context, pkg *Package) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, pkg.Name+".zip")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	zw := zip.NewWriter(f)
	for _, file := range pkg.Files {
		if err := ctx.Err(); err != nil {
			zw.Close()
			f.Close()
			os.Remove(path)
			return "", err
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     file.Name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err == nil {
			_, err = w.Write(file.Data)
		}
		if err != nil {
			zw.Close()
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("zip %s: %w", file.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	logger.Info("package written", logger.String("path", path), logger.Int("files", len(pkg.Files)))
	return path, nil
}

// DirSink writes the package as a directory tree under <Dir>/<name>.
type DirSink struct {
	Dir string
}

func (s DirSink) Write(ctx context.Context, pkg *Package) (string, error) {
	root := filepath.Join(s.Dir, pkg.Name)
	for _, file := range pkg.Files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		path := filepath.Join(root, filepath.FromSlash(file.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, file.Data, 0o644); err != nil {
			return "", err
		}
	}
	logger.Info("package written", logger.String("path", root), logger.Int("files", len(pkg.Files)))
	return root, nil
}
