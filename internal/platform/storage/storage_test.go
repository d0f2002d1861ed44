package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

func TestKeys(t *testing.T) {
	session := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	patient := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	doc := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	k := SessionPhotoKey(session, ".jpg")
	assert.True(t, strings.HasPrefix(k, session.String()+"/"))
	assert.True(t, strings.HasSuffix(k, ".jpg"))

	assert.Equal(t, "temp-photos/33333333-3333-3333-3333-333333333333.png", TempPhotoKey(doc, ".png"))
	assert.Equal(t, "patient-documents/22222222-2222-2222-2222-222222222222/33333333-3333-3333-3333-333333333333.pdf",
		DocumentKey(patient, doc, ".pdf"))
	assert.True(t, strings.HasPrefix(SideEffectPhotoKey(session, ".jpg"), session.String()+"/side-effects/"))
}

func TestCheckPhoto(t *testing.T) {
	ext, err := CheckPhoto("IMG_001.JPG", 1024, 2048)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", ext)

	_, err = CheckPhoto("scan.pdf", 10, 2048)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = CheckPhoto("big.png", 4096, 2048)
	assert.True(t, apperr.Is(err, apperr.KindPayloadTooLarge))
}

func TestCheckDocument(t *testing.T) {
	ext, err := CheckDocument("consentement.PDF", 10, 100)
	require.NoError(t, err)
	assert.Equal(t, ".pdf", ext)

	_, err = CheckDocument(" ", 10, 100)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestValidKey(t *testing.T) {
	assert.True(t, validKey("a/b.jpg"))
	for _, k := range []string{"", "/abs", "../x", "a/../b", "a//b", "a/./b"} {
		assert.False(t, validKey(k), k)
	}
}

func TestFSStore_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	n, err := s.Put(ctx, "abc/photo.jpg", strings.NewReader("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	rc, err := s.Open(ctx, "abc/photo.jpg")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, s.Delete(ctx, "abc/photo.jpg"))
	_, err = s.Open(ctx, "abc/photo.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "abc/photo.jpg"), ErrNotFound)
}

func TestFSStore_RejectsTraversal(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "../escape.jpg", strings.NewReader("x"), "")
	assert.Error(t, err)
}

func TestFSStore_Move(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFSStore(root)
	require.NoError(t, err)

	_, err = s.Put(ctx, "temp-photos/p1.jpg", strings.NewReader("x"), "")
	require.NoError(t, err)
	require.NoError(t, s.Move(ctx, "temp-photos/p1.jpg", "sess/p1.jpg"))

	_, err = os.Stat(filepath.Join(root, "sess", "p1.jpg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "temp-photos", "p1.jpg"))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, s.Move(ctx, "temp-photos/missing.jpg", "sess/x.jpg"), ErrNotFound)
}

func TestSweeper_RemovesStaleTempPhotos(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFSStore(root)
	require.NoError(t, err)

	_, err = s.Put(ctx, "temp-photos/old.jpg", strings.NewReader("x"), "")
	require.NoError(t, err)
	_, err = s.Put(ctx, "temp-photos/fresh.jpg", strings.NewReader("x"), "")
	require.NoError(t, err)
	_, err = s.Put(ctx, "sess/kept.jpg", strings.NewReader("x"), "")
	require.NoError(t, err)

	old := time.Now().Add(-25 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "temp-photos", "old.jpg"), old, old))
	require.NoError(t, os.Chtimes(filepath.Join(root, "sess", "kept.jpg"), old, old))

	sw := NewSweeper(s, zerolog.Nop())
	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(filepath.Join(root, "temp-photos", "fresh.jpg"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "sess", "kept.jpg"))
	assert.NoError(t, err)
}

func TestSweeper_MissingTempDir(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	n, err := NewSweeper(s, zerolog.Nop()).SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	sw := NewSweeper(s, zerolog.Nop())
	sw.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestCountingReader(t *testing.T) {
	cr := &countingReader{r: bytes.NewReader(make([]byte, 300))}
	_, err := io.Copy(io.Discard, cr)
	require.NoError(t, err)
	assert.Equal(t, int64(300), cr.n)
}
