package fs

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sharetube/watchparty/internal/repository/blob"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *Store {
	return NewStore(afero.NewMemMapFs(), slog.Default())
}

func TestPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	ref, err := s.Put(ctx, "demo/playlist", "1_clip", strings.NewReader("data"), "video/mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref.String(), "demo/playlist/1_clip."), "extension is derived from content type")

	f, obj, err := s.Open(ctx, ref)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	f.Close()
	assert.Equal(t, "data", string(body))
	assert.Equal(t, int64(4), obj.Size)

	_, err = s.Put(ctx, "demo/playlist", ref.Name(), strings.NewReader("again"), "")
	assert.Error(t, err, "existing objects are never overwritten")

	require.NoError(t, s.Delete(ctx, ref))
	require.NoError(t, s.Delete(ctx, ref), "delete is idempotent")

	_, _, err = s.Open(ctx, ref)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestCopyAndList(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	objects, err := s.List(ctx, "demo/playlist")
	require.NoError(t, err)
	assert.Empty(t, objects, "missing scope lists as empty")

	src, err := s.Put(ctx, "demo/requests", "1_a.mp4", strings.NewReader("a"), "")
	require.NoError(t, err)
	_, err = s.Put(ctx, "demo/playlist", "2_b.mp4", strings.NewReader("b"), "")
	require.NoError(t, err)

	dst, err := s.Copy(ctx, src, "demo/playlist")
	require.NoError(t, err)
	assert.Equal(t, blob.Ref("demo/playlist/1_a.mp4"), dst)

	objects, err = s.List(ctx, "demo/playlist")
	require.NoError(t, err)
	require.Len(t, objects, 2)

	refs := []blob.Ref{objects[0].Ref, objects[1].Ref}
	assert.ElementsMatch(t, []blob.Ref{"demo/playlist/1_a.mp4", "demo/playlist/2_b.mp4"}, refs)

	_, err = s.Copy(ctx, "demo/requests/missing.mp4", "demo/playlist")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	_, err := s.Put(ctx, "demo/../..", "x.mp4", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, blob.ErrInvalidRef)

	_, _, err = s.Open(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, blob.ErrInvalidRef)
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, slog.Default())

	_, err := s.Put(ctx, "demo/playlist", "x.mp4", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, blob.ErrUnavailable)
	_, err = s.List(ctx, "demo/playlist")
	assert.ErrorIs(t, err, blob.ErrUnavailable)
	assert.ErrorIs(t, s.Delete(ctx, "demo/playlist/x.mp4"), blob.ErrUnavailable)
}
