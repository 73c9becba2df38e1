package mailfetch

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
)

// Attachment is an XML part extracted from a raw message.
type Attachment struct {
	Filename string
	Data     []byte
}

var wordDecoder = &mime.WordDecoder{}

// maxPartDepth bounds nested multipart recursion.
const maxPartDepth = 8

// ExtractXMLAttachments parses an RFC 822 message and returns its XML parts.
func ExtractXMLAttachments(raw []byte) ([]Attachment, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	var out []Attachment
	err = walkPart(textproto.MIMEHeader(msg.Header), msg.Body, 0, &out)
	return out, err
}

func walkPart(header textproto.MIMEHeader, body io.Reader, depth int, out *[]Attachment) error {
	if depth > maxPartDepth {
		return fmt.Errorf("multipart nesting deeper than %d", maxPartDepth)
	}

	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Unparsable content type: treat the part as opaque.
		mediaType, params = "application/octet-stream", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart without boundary")
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("next part: %w", err)
			}
			if err := walkPart(part.Header, part, depth+1, out); err != nil {
				return err
			}
		}
	}

	filename := partFilename(header, params)
	if !isXMLAttachment(filename, mediaType) {
		return nil
	}
	data, err := io.ReadAll(decodeTransfer(header.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return fmt.Errorf("decode %s: %w", filename, err)
	}
	if filename == "" {
		filename = "attachment.xml"
	}
	*out = append(*out, Attachment{Filename: filename, Data: data})
	return nil
}

// partFilename reads the filename from Content-Disposition, falling back to
// the Content-Type name parameter. RFC 2047 encoded words are decoded.
func partFilename(header textproto.MIMEHeader, ctParams map[string]string) string {
	name := ""
	if cd := header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			name = params["filename"]
		}
	}
	if name == "" {
		name = ctParams["name"]
	}
	if decoded, err := wordDecoder.DecodeHeader(name); err == nil {
		name = decoded
	}
	return strings.TrimSpace(name)
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
