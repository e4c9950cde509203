package webpage

import (
	"errors"
	"mime"
	"strings"
	"unicode/utf8"
)

// PlainText returns body as text when it is valid UTF-8.
func PlainText(body []byte) (string, error) {
	if !utf8.Valid(body) {
		return "", errors.New("plain text body is not valid utf-8")
	}
	return strings.Join(strings.Fields(string(body)), " "), nil
}

func isPlainText(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/plain"
}
