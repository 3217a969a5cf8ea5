package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutImage(t *testing.T) {
	ctx := context.Background()
	d, err := NewLocal(t.TempDir(), "http://localhost:8080/storage/")
	require.NoError(t, err)

	url, err := PutImage(ctx, d, 42, "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/storage/products/42/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	key := strings.TrimPrefix(url, "http://localhost:8080/storage/")
	require.True(t, d.Exists(ctx, key))
	rc, err := d.Get(ctx, key)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "png-bytes", string(body))

	require.NoError(t, d.Delete(ctx, key))
	require.NoError(t, d.Delete(ctx, key))
	assert.False(t, d.Exists(ctx, key))
}

func TestImageKeyRejectsNonImages(t *testing.T) {
	_, err := ImageKey(1, "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	key, err := ImageKey(1, "image/jpeg; charset=binary")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".jpg"))
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	d, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	err = d.Put(context.Background(), "../../etc/passwd", strings.NewReader("x"), "")
	assert.ErrorContains(t, err, "escapes root")
}

func TestS3KeyFromURL(t *testing.T) {
	d := &S3{bucket: "be-media", baseURL: "https://cdn.buddyengineerz.in"}
	assert.Equal(t, "products/1/a.jpg", d.KeyFromURL("https://cdn.buddyengineerz.in/products/1/a.jpg"))
	assert.Equal(t, "", d.KeyFromURL("https://elsewhere.com/a.jpg"))
	assert.Equal(t, "https://cdn.buddyengineerz.in/x.png", d.URL("/x.png"))
}
