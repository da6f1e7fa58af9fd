package message

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ollama-bridge/internal/providers"
)

var (
	// ErrUnsupportedImageInput means the image item is neither inline data
	// nor a fetchable URL. Local filesystem paths fall here on purpose.
	ErrUnsupportedImageInput = errors.New("unsupported image input")

	// ErrImageFetchFailed means a remote image URL did not yield a
	// successful response.
	ErrImageFetchFailed = errors.New("image fetch failed")
)

const jpegDataURLPrefix = "data:image/jpeg;base64,"

// buildBlocks assembles the ordered block list for one message: a leading
// text block when text is present, then one image block per input image.
// With neither, a single empty text block keeps the content shape uniform
// for downstream adapters.
func (n *Normalizer) buildBlocks(ctx context.Context, text string, images []string) ([]providers.ContentBlock, error) {
	var blocks []providers.ContentBlock

	if text != "" {
		blocks = append(blocks, providers.ContentBlock{Type: providers.ContentTypeText, Text: text})
	}

	for _, img := range images {
		block, err := n.imageBlock(ctx, img)
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, block)
	}

	if len(blocks) == 0 {
		blocks = append(blocks, providers.ContentBlock{Type: providers.ContentTypeText, Text: ""})
	}

	return blocks, nil
}

// imageBlock classifies one image item and converts it to a data-URL block.
func (n *Normalizer) imageBlock(ctx context.Context, img string) (providers.ContentBlock, error) {
	switch {
	case strings.HasPrefix(img, "data:"):
		return providers.ContentBlock{Type: providers.ContentTypeImage, Image: img}, nil

	case looksLikeBase64(img):
		return providers.ContentBlock{Type: providers.ContentTypeImage, Image: jpegDataURLPrefix + img}, nil

	case strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://"):
		return n.fetchImage(ctx, img)

	default:
		return providers.ContentBlock{}, fmt.Errorf("%w: %.48q", ErrUnsupportedImageInput, img)
	}
}

func (n *Normalizer) fetchImage(ctx context.Context, url string) (providers.ContentBlock, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return providers.ContentBlock{}, fmt.Errorf("%w: %v", ErrImageFetchFailed, err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return providers.ContentBlock{}, fmt.Errorf("%w: %v", ErrImageFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return providers.ContentBlock{}, fmt.Errorf("%w: status %d from %s", ErrImageFetchFailed, resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.ContentBlock{}, fmt.Errorf("%w: %v", ErrImageFetchFailed, err)
	}

	n.logger.Debug("fetched remote image", "url", url, "bytes", len(data))

	encoded := base64.StdEncoding.EncodeToString(data)

	return providers.ContentBlock{Type: providers.ContentTypeImage, Image: jpegDataURLPrefix + encoded}, nil
}

// looksLikeBase64 sniffs the first 80 characters for the base64 alphabet.
// Raw base64 never contains ':' or '.', so data URLs and http(s) URLs always
// fail this test.
func looksLikeBase64(s string) bool {
	if s == "" {
		return false
	}

	probe := s
	if len(probe) > 80 {
		probe = probe[:80]
	}

	for _, r := range probe {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+' || r == '/' || r == '=':
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		default:
			return false
		}
	}

	return true
}
