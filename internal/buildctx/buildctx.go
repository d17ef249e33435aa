// Package buildctx wraps a single Dockerfile into the build-context archive
// the engine consumes.
package buildctx

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Path composes a unique archive path under baseDir. The uuid component
// keeps concurrent builds for the same language from colliding.
func Path(baseDir, lang, tarFileName string) string {
	name := fmt.Sprintf("%s_%s_%s", uuid.New().String(), lang, tarFileName)
	return filepath.Join(baseDir, name)
}

// Write creates a tar archive at tarPath containing the file at
// dockerfilePath stored under nameInTar. The engine expects the Dockerfile
// at the root of the build context.
func Write(dockerfilePath, tarPath, nameInTar string) error {
	src, err := os.Open(dockerfilePath)
	if err != nil {
		return fmt.Errorf("failed to open dockerfile %s: %w", dockerfilePath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat dockerfile %s: %w", dockerfilePath, err)
	}

	if err := os.MkdirAll(filepath.Dir(tarPath), 0o755); err != nil {
		return fmt.Errorf("failed to create context dir: %w", err)
	}

	dst, err := os.Create(tarPath)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", tarPath, err)
	}
	defer dst.Close()

	tw := tar.NewWriter(dst)
	header := &tar.Header{
		Name:    nameInTar,
		Size:    info.Size(),
		Mode:    0o644,
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("tar write header failed: %w", err)
	}
	if _, err := io.Copy(tw, src); err != nil {
		return fmt.Errorf("tar write body failed: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("tar close failed: %w", err)
	}
	return nil
}
