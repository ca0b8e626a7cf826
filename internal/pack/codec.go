// Package pack implements the offline handoff document codec. A package is
// a single HTML file carrying a human-facing shell, an embedded save
// script, and a hidden element whose data attributes hold the file name,
// MIME type, declared size, and base64 payload. The document stays usable
// with nothing but a browser at the receiving end.
package pack

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"regexp"
	"strconv"

	"github.com/caffeinepub/ofs/internal/filesize"
	"github.com/caffeinepub/ofs/internal/models"
)

// FormatVersion is embedded in every encoded package. Earlier documents
// carried no version attribute and are still accepted on decode.
const FormatVersion = "1"

// ErrCorruptPackage is returned for any structurally invalid document:
// missing name or payload fields, undecodable base64, a declared size that
// disagrees with the payload, or an unknown format version.
var ErrCorruptPackage = fmt.Errorf("corrupt offline package")

var (
	versionRe  = regexp.MustCompile(`data-version="([^"]*)"`)
	fileNameRe = regexp.MustCompile(`data-filename="([^"]*)"`)
	fileTypeRe = regexp.MustCompile(`data-filetype="([^"]*)"`)
	fileSizeRe = regexp.MustCompile(`data-filesize="([^"]*)"`)
	fileDataRe = regexp.MustCompile(`data-filedata="([^"]*)"`)
)

// Encode serializes a file into a self-contained package document.
// Callers are expected to run the size policy check before encoding; the
// base64 layer inflates the payload by roughly a third.
func Encode(payload []byte, fileName, mimeType string) ([]byte, error) {
	data := shellData{
		Version:     FormatVersion,
		FileName:    fileName,
		MimeType:    mimeType,
		MimeDisplay: mimeType,
		SizeBytes:   int64(len(payload)),
		SizeDisplay: filesize.Format(int64(len(payload))),
		Base64:      base64.StdEncoding.EncodeToString(payload),
	}
	if data.MimeDisplay == "" {
		data.MimeDisplay = "Unknown"
	}

	var buf bytes.Buffer
	if err := shellTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering package shell: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode extracts the embedded file from a package document. The declared
// size, when present, must match the decoded payload exactly; silently
// trusting an inconsistent size would reconstruct a truncated or padded
// file on save. A missing MIME type defaults, a missing size (legacy
// documents) is taken from the payload itself.
func Decode(doc []byte) (*models.OfflinePackage, error) {
	if m := versionRe.FindSubmatch(doc); m != nil {
		if v := string(m[1]); v != FormatVersion {
			return nil, fmt.Errorf("%w: unsupported format version %q", ErrCorruptPackage, v)
		}
	}

	nameMatch := fileNameRe.FindSubmatch(doc)
	dataMatch := fileDataRe.FindSubmatch(doc)
	if nameMatch == nil || dataMatch == nil {
		return nil, fmt.Errorf("%w: missing file name or payload field", ErrCorruptPackage)
	}

	payload, err := base64.StdEncoding.DecodeString(string(dataMatch[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable payload: %v", ErrCorruptPackage, err)
	}

	mimeType := models.DefaultMimeType
	if m := fileTypeRe.FindSubmatch(doc); m != nil && len(m[1]) > 0 {
		mimeType = html.UnescapeString(string(m[1]))
	}

	sizeBytes := int64(len(payload))
	if m := fileSizeRe.FindSubmatch(doc); m != nil {
		declared, err := strconv.ParseInt(string(m[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable size field %q", ErrCorruptPackage, string(m[1]))
		}
		if declared != int64(len(payload)) {
			return nil, fmt.Errorf("%w: declared size %d does not match payload length %d",
				ErrCorruptPackage, declared, len(payload))
		}
		sizeBytes = declared
	}

	return &models.OfflinePackage{
		FileName:  html.UnescapeString(string(nameMatch[1])),
		MimeType:  mimeType,
		SizeBytes: sizeBytes,
		Payload:   payload,
	}, nil
}

// SuggestedDocumentName names the package file derived from the original
// file name, mirroring what senders see when exporting.
func SuggestedDocumentName(fileName string) string {
	return "offline-share-" + fileName + ".html"
}
