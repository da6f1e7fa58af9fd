package message

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollama-bridge/internal/providers"
)

func TestImageBlock_DataURLPassesThrough(t *testing.T) {
	block, err := testNormalizer().imageBlock(context.Background(), "data:image/png;base64,QUJD")
	require.NoError(t, err)

	assert.Equal(t, providers.ContentTypeImage, block.Type)
	assert.Equal(t, "data:image/png;base64,QUJD", block.Image)
}

func TestImageBlock_BareBase64GetsWrapped(t *testing.T) {
	block, err := testNormalizer().imageBlock(context.Background(), "iVBORw0KGgoAAAANSUhEUg==")
	require.NoError(t, err)

	assert.Equal(t, "data:image/jpeg;base64,iVBORw0KGgoAAAANSUhEUg==", block.Image)
}

func TestImageBlock_RemoteURLFetchedAndEncoded(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	block, err := testNormalizer().imageBlock(context.Background(), srv.URL+"/cat.jpg")
	require.NoError(t, err)

	want := jpegDataURLPrefix + base64.StdEncoding.EncodeToString(payload)
	assert.Equal(t, want, block.Image)
}

func TestImageBlock_RemoteFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testNormalizer().imageBlock(context.Background(), srv.URL+"/missing.jpg")
	assert.ErrorIs(t, err, ErrImageFetchFailed)
}

func TestImageBlock_LocalPathRejected(t *testing.T) {
	_, err := testNormalizer().imageBlock(context.Background(), "/home/user/photo.jpg")
	assert.ErrorIs(t, err, ErrUnsupportedImageInput)

	_, err = testNormalizer().imageBlock(context.Background(), "./relative.png")
	assert.ErrorIs(t, err, ErrUnsupportedImageInput)
}

func TestBuildBlocks_OrderAndEmptyFallback(t *testing.T) {
	n := testNormalizer()

	blocks, err := n.buildBlocks(context.Background(), "describe", []string{"data:image/png;base64,AAA"})
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, providers.ContentTypeText, blocks[0].Type)
	assert.Equal(t, providers.ContentTypeImage, blocks[1].Type)

	blocks, err = n.buildBlocks(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, providers.ContentTypeText, blocks[0].Type)
	assert.Equal(t, "", blocks[0].Text)
}

func TestLooksLikeBase64(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain base64", "iVBORw0KGgoAAAANSUhEUg==", true},
		{"base64 with whitespace", "aGVs\nbG8=", true},
		{"empty", "", false},
		{"data url", "data:image/png;base64,AAA", false},
		{"http url", "http://example.com/a.png", false},
		{"file path", "/tmp/a.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, looksLikeBase64(tt.input))
		})
	}
}
