package ingestion_engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docqa/internal/core"
)

func TestExtract_PlainText(t *testing.T) {
	e := NewDocconvExtractor(false)
	got, err := e.Extract(context.Background(), []byte("This contract is between Alice and Bob."), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "This contract is between Alice and Bob.", got)
}

func TestExtract_EmptyPlainTextIsNotAnError(t *testing.T) {
	e := NewDocconvExtractor(false)
	got, err := e.Extract(context.Background(), nil, "text/plain")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtract_Failures(t *testing.T) {
	e := NewDocconvExtractor(false)
	cases := []struct {
		name        string
		data        []byte
		contentType string
	}{
		{"invalid utf8", []byte{0xff, 0xfe, 0xfd}, "text/plain"},
		{"pdf without header", []byte("definitely not a pdf"), "application/pdf"},
		{"docx that is not a zip", []byte("not a zip archive"), mimeDOCX},
		{"missing content type", []byte("hello"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Extract(context.Background(), tc.data, tc.contentType)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrExtraction)
		})
	}
}

func TestExtract_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDocconvExtractor(false).Extract(ctx, []byte("hi"), "text/plain")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, mimePlain, ContentTypeFor("notes.TXT", "application/octet-stream"))
	assert.Equal(t, mimePDF, ContentTypeFor("report.pdf", ""))
	assert.Equal(t, mimeDOCX, ContentTypeFor("memo.docx", "application/zip"))
	assert.Equal(t, "text/plain", ContentTypeFor("noext", "Text/Plain; charset=utf-8"))
}
