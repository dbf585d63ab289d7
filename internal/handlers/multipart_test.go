package handlers

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"
)

// newMultipart writes a single-file form and returns its content type.
func newMultipart(t *testing.T, buf *bytes.Buffer, filename, contentType string, data []byte) string {
	t.Helper()
	w := multipart.NewWriter(buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("kind", "image"))
	require.NoError(t, w.Close())
	return w.FormDataContentType()
}
