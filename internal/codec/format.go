// Package codec renders document nodes as JSON or XML and parses request
// payloads back into documents.
package codec

import (
	"fmt"
	"mime"
	"strings"

	"github.com/munnerz/goautoneg"
)

// Format is a wire format.
type Format string

const (
	JSON Format = "json"
	XML  Format = "xml"
)

// Namespace is set on XML root elements.
const Namespace = "http://dhis2.org/schema/dxf/2.0"

// ContentType returns the response media type of f.
func (f Format) ContentType() string {
	if f == XML {
		return "application/xml; charset=UTF-8"
	}
	return "application/json; charset=UTF-8"
}

// UnsupportedMediaTypeError rejects payloads in an unknown format.
type UnsupportedMediaTypeError struct {
	ContentType string
}

func (e UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("Unsupported media type: %s", e.ContentType)
}

// FromContentType picks the payload format of a request. An empty header
// means JSON.
func FromContentType(contentType string) (Format, error) {
	if strings.TrimSpace(contentType) == "" {
		return JSON, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", UnsupportedMediaTypeError{ContentType: contentType}
	}
	switch {
	case mediaType == "application/json", mediaType == "text/json", strings.HasSuffix(mediaType, "+json"):
		return JSON, nil
	case mediaType == "application/xml", mediaType == "text/xml", strings.HasSuffix(mediaType, "+xml"):
		return XML, nil
	}
	return "", UnsupportedMediaTypeError{ContentType: contentType}
}

var offers = []string{"application/json", "application/xml", "text/xml"}

// Negotiate picks the response format. A path suffix wins over Accept.
func Negotiate(accept string, suffix Format) Format {
	if suffix != "" {
		return suffix
	}
	if strings.TrimSpace(accept) == "" {
		return JSON
	}
	if strings.Contains(goautoneg.Negotiate(accept, offers), "xml") {
		return XML
	}
	return JSON
}

// StripSuffix removes a trailing ".json" or ".xml" from a path segment.
func StripSuffix(segment string) (string, Format) {
	for _, f := range []Format{JSON, XML} {
		if s, ok := strings.CutSuffix(segment, "."+string(f)); ok {
			return s, f
		}
	}
	return segment, ""
}
