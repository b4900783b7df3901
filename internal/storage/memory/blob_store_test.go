package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObject_StoresAndReturnsURL(t *testing.T) {
	t.Parallel()

	s := NewBlobStore()
	url, err := s.PutObject(context.Background(), "screenshots/abc.jpg", "image/jpeg", bytes.NewReader([]byte("data")))
	require.NoError(t, err)
	require.Equal(t, "memory://screenshots/abc.jpg", url)

	data, ok := s.Get("screenshots/abc.jpg")
	require.True(t, ok)
	require.Equal(t, []byte("data"), data)
	require.Equal(t, 1, s.Len())
}

func TestPutObject_CopiesData(t *testing.T) {
	t.Parallel()

	s := NewBlobStore()
	src := []byte("original")
	_, err := s.PutObject(context.Background(), "p", "", bytes.NewReader(src))
	require.NoError(t, err)

	src[0] = 'X'
	data, ok := s.Get("p")
	require.True(t, ok)
	require.Equal(t, []byte("original"), data)
}
