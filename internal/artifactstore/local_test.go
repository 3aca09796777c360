package artifactstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalDiskPutGetExists(t *testing.T) {
	l := NewLocalDisk(t.TempDir())
	ctx := context.Background()

	ok, err := l.Exists(ctx, "venue-1/seats.json")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, l.Put(ctx, "venue-1/seats.json", []byte(`{"seats":[]}`)))

	ok, err = l.Exists(ctx, "venue-1/seats.json")
	assert.NoError(t, err)
	assert.True(t, ok)

	data, err := l.Get(ctx, "venue-1/seats.json")
	assert.NoError(t, err)
	assert.Equal(t, `{"seats":[]}`, string(data))
}

func TestLocalDiskListByPrefix(t *testing.T) {
	l := NewLocalDisk(t.TempDir())
	ctx := context.Background()

	assert.NoError(t, l.Put(ctx, "venue-1/depths/seat-1.png", []byte("a")))
	assert.NoError(t, l.Put(ctx, "venue-1/depths/seat-2.png", []byte("b")))
	assert.NoError(t, l.Put(ctx, "venue-2/depths/seat-1.png", []byte("c")))

	keys, err := l.List(ctx, "venue-1/")
	assert.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestLocalDiskListMissingPrefixIsEmpty(t *testing.T) {
	l := NewLocalDisk(t.TempDir())
	keys, err := l.List(context.Background(), "no-such-venue/")
	assert.NoError(t, err)
	assert.Empty(t, keys)
}
