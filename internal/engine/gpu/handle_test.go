package gpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/lumen/internal/engine/gpu"
	"github.com/Faultbox/lumen/internal/engine/gpu/gputest"
)

func TestTextureReleaseOnce(t *testing.T) {
	dev := gputest.New()
	tex, err := gpu.NewTexture(dev, gpu.TextureDesc{Width: 4, Height: 4, Format: gpu.FormatRGBA8}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Live(gputest.KindTexture))

	tex.Release()
	tex.Release()
	assert.Equal(t, 0, dev.Live(gputest.KindTexture))
	assert.Equal(t, 1, dev.Calls("DeleteTexture"))
	assert.Zero(t, tex.ID())
}

func TestNilHandlesAreSafe(t *testing.T) {
	var tex *gpu.Texture
	var buf *gpu.Buffer
	var vao *gpu.VertexArray

	assert.Zero(t, tex.ID())
	assert.Zero(t, buf.ID())
	assert.Zero(t, vao.ID())
	tex.Release()
	buf.Release()
	vao.Release()
}

func TestBufferCreationFailureWraps(t *testing.T) {
	dev := gputest.New()
	dev.FailCreate = 1

	_, err := gpu.NewBuffer(dev, gpu.ArrayBuffer, make([]byte, 16))
	require.Error(t, err)
	assert.ErrorIs(t, err, gpu.ErrOutOfMemory)
	assert.Equal(t, 0, dev.LiveTotal())
}

func TestBufferSize(t *testing.T) {
	dev := gputest.New()
	buf, err := gpu.NewBuffer(dev, gpu.ElementArrayBuffer, make([]byte, 24))
	require.NoError(t, err)
	defer buf.Release()

	assert.Equal(t, 24, buf.Size())
	assert.NotZero(t, buf.ID())
}

func TestColorAttachment(t *testing.T) {
	assert.Equal(t, gpu.ColorAttachment2, gpu.ColorAttachment(2))
	assert.True(t, gpu.FormatDepth24.IsDepth())
	assert.False(t, gpu.FormatRGBA16F.IsDepth())
}
