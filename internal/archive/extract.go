package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrUnsafePath is returned for an entry that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// ExtractOptions filters and reports an extraction.
type ExtractOptions struct {
	// Include keeps only entries matching one of these doublestar
	// patterns, e.g. "**/*.conf". Empty keeps everything.
	Include []string
}

// Result summarizes an extraction.
type Result struct {
	Files   int
	Dirs    int
	Links   int
	Skipped int
	Bytes   int64
}

// Extract unpacks a tar stream, compressed or not, into dest.
func Extract(ctx context.Context, r io.Reader, dest string, opts ExtractOptions) (*Result, error) {
	for _, pattern := range opts.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
	}

	stream, _, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	dest, err = filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	result := &Result{}
	tarReader := tar.NewReader(stream)

	for {
		select {
		case <-ctx.Done():
			return result, fmt.Errorf("extraction cancelled: %w", ctx.Err())
		default:
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			return result, nil
		}
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return result, fmt.Errorf("read archive: %w", err)
		}

		name := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(header.Name)), "/")
		if header.Typeflag != tar.TypeDir && !included(opts.Include, name) {
			result.Skipped++
			continue
		}

		target, err := safeJoin(dest, name)
		if err != nil {
			return result, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(header)); err != nil {
				return result, err
			}
			result.Dirs++
		case tar.TypeReg:
			n, err := writeFile(target, tarReader, header)
			result.Bytes += n
			if err != nil {
				return result, err
			}
			result.Files++
		case tar.TypeSymlink:
			// Links pointing outside dest are not recreated.
			if !linkInside(dest, name, header.Linkname) {
				result.Skipped++
				continue
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return result, err
			}
			_ = os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return result, err
			}
			result.Links++
		default:
			result.Skipped++
		}
	}
}

func included(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func linkInside(dest, name, link string) bool {
	if filepath.IsAbs(link) {
		return false
	}
	_, err := safeJoin(dest, filepath.Join(filepath.Dir(name), link))
	return err == nil
}

func writeFile(target string, r io.Reader, header *tar.Header) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode(header))
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(outFile, r)
	if closeErr := outFile.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

func fileMode(header *tar.Header) os.FileMode {
	mode := os.FileMode(header.Mode).Perm()
	if mode == 0 {
		mode = 0o644
	}
	return mode
}

func dirMode(header *tar.Header) os.FileMode {
	mode := os.FileMode(header.Mode).Perm()
	if mode == 0 {
		mode = 0o755
	}
	return mode
}
