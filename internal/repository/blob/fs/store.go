package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"sort"

	"github.com/sharetube/watchparty/internal/repository/blob"
	"github.com/spf13/afero"
)

func init() {
	for ext, typ := range map[string]string{
		".mp4":  "video/mp4",
		".webm": "video/webm",
		".mkv":  "video/x-matroska",
		".mov":  "video/quicktime",
		".ogv":  "video/ogg",
	} {
		_ = mime.AddExtensionType(ext, typ)
	}
}

// Store keeps objects as files under the root of an afero filesystem. A
// store built without a filesystem reports every call as unavailable.
type Store struct {
	fs     afero.Fs
	logger *slog.Logger
}

func NewStore(fsys afero.Fs, logger *slog.Logger) *Store {
	return &Store{
		fs:     fsys,
		logger: logger,
	}
}

func (s *Store) ready(ctx context.Context) error {
	if s.fs == nil {
		return blob.ErrUnavailable
	}
	return ctx.Err()
}

// Put writes r under scope/name. The name gains an extension derived from
// contentType when it has none.
func (s *Store) Put(ctx context.Context, scope, name string, r io.Reader, contentType string) (blob.Ref, error) {
	s.logger.DebugContext(ctx, "called", "params", map[string]any{
		"scope":        scope,
		"name":         name,
		"content_type": contentType,
	})
	if err := s.ready(ctx); err != nil {
		return "", err
	}

	if path.Ext(name) == "" && contentType != "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			name += exts[0]
		}
	}

	ref := blob.Join(scope, name)
	if !ref.Valid() {
		return "", fmt.Errorf("%w: %s", blob.ErrInvalidRef, ref)
	}

	if err := s.write(ref, r); err != nil {
		s.logger.DebugContext(ctx, "returned", "error", err)
		return "", err
	}

	return ref, nil
}

func (s *Store) write(ref blob.Ref, r io.Reader) error {
	if err := s.fs.MkdirAll(ref.Scope(), 0o755); err != nil {
		return fmt.Errorf("failed to create scope: %w", err)
	}

	f, err := s.fs.OpenFile(ref.String(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create object: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.fs.Remove(ref.String())
		return fmt.Errorf("failed to write object: %w", err)
	}

	if err := f.Close(); err != nil {
		s.fs.Remove(ref.String())
		return fmt.Errorf("failed to close object: %w", err)
	}

	return nil
}

// Copy duplicates src into dstScope keeping its name.
func (s *Store) Copy(ctx context.Context, src blob.Ref, dstScope string) (blob.Ref, error) {
	s.logger.DebugContext(ctx, "called", "params", map[string]any{
		"src":       src,
		"dst_scope": dstScope,
	})
	if err := s.ready(ctx); err != nil {
		return "", err
	}

	dst := blob.Join(dstScope, src.Name())
	if !src.Valid() || !dst.Valid() {
		return "", blob.ErrInvalidRef
	}

	f, err := s.fs.Open(src.String())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", blob.ErrNotFound
		}
		return "", err
	}
	defer f.Close()

	if err := s.write(dst, f); err != nil {
		s.logger.DebugContext(ctx, "returned", "error", err)
		return "", err
	}

	return dst, nil
}

// Delete removes ref. Deleting an absent object is not an error.
func (s *Store) Delete(ctx context.Context, ref blob.Ref) error {
	s.logger.DebugContext(ctx, "called", "params", map[string]any{
		"ref": ref,
	})
	if err := s.ready(ctx); err != nil {
		return err
	}
	if !ref.Valid() {
		return blob.ErrInvalidRef
	}

	if err := s.fs.Remove(ref.String()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// List returns the objects directly under scope ordered by last
// modification, oldest first. A missing scope lists as empty.
func (s *Store) List(ctx context.Context, scope string) ([]blob.Object, error) {
	s.logger.DebugContext(ctx, "called", "params", map[string]any{
		"scope": scope,
	})
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(s.fs, scope)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []blob.Object{}, nil
		}
		s.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	objects := make([]blob.Object, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		objects = append(objects, blob.Object{
			Ref:          blob.Join(scope, info.Name()),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}

	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].LastModified.Equal(objects[j].LastModified) {
			return objects[i].Ref < objects[j].Ref
		}
		return objects[i].LastModified.Before(objects[j].LastModified)
	})

	return objects, nil
}

// Open returns a readable handle for ref along with its metadata.
func (s *Store) Open(ctx context.Context, ref blob.Ref) (afero.File, blob.Object, error) {
	if err := s.ready(ctx); err != nil {
		return nil, blob.Object{}, err
	}
	if !ref.Valid() {
		return nil, blob.Object{}, blob.ErrInvalidRef
	}

	f, err := s.fs.Open(ref.String())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, blob.Object{}, blob.ErrNotFound
		}
		return nil, blob.Object{}, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, blob.Object{}, err
	}
	if info.IsDir() {
		f.Close()
		return nil, blob.Object{}, blob.ErrNotFound
	}

	return f, blob.Object{Ref: ref, Size: info.Size(), LastModified: info.ModTime()}, nil
}
