package network

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"

	"github.com/afzaal-28/rn-inspector/normalize"
	"github.com/afzaal-28/rn-inspector/protocol"
)

const maxDecompressedBody = 16 << 20

// DecodeBody turns a protocol body into a value for observers: text is parsed
// as JSON when possible, binary data collapses to a size placeholder.
func DecodeBody(body *protocol.ResponseBody, contentEncoding string) any {
	if body == nil {
		return nil
	}

	if !body.Base64Encoded {
		return truncateTree(normalize.TryParseJSON(body.Body))
	}

	data, err := base64.StdEncoding.DecodeString(body.Body)
	if err != nil {
		return fmt.Sprintf("[Binary data: %d chars]", len(body.Body))
	}

	if !utf8.Valid(data) {
		decoded, err := decompress(data, contentEncoding)
		if err != nil || !utf8.Valid(decoded) {
			return fmt.Sprintf("[Binary data: %d bytes]", len(data))
		}

		data = decoded
	}

	return truncateTree(normalize.TryParseJSON(string(data)))
}

// decompress undoes a content encoding the target left in place.
func decompress(data []byte, contentEncoding string) ([]byte, error) {
	var reader io.Reader

	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "br":
		reader = brotli.NewReader(bytes.NewReader(data))
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gz.Close()

		reader = gz
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", contentEncoding)
	}

	return io.ReadAll(io.LimitReader(reader, maxDecompressedBody))
}
