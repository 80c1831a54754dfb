// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"encoding/base64"
	"path"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Content block constructors. The SDK types carry the wire shape; these
// helpers pin the type tags so call sites cannot produce an untagged
// block.

// TextBlock wraps text in a text content block.
func TextBlock(text string) mcp.Content {
	return mcp.TextContent{Type: "text", Text: text}
}

// ImageBlock wraps raw image bytes in an image content block.
func ImageBlock(data []byte, mimeType string) mcp.Content {
	return mcp.ImageContent{
		Type:     "image",
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: mimeType,
	}
}

// AudioBlock wraps raw audio bytes in an audio content block.
func AudioBlock(data []byte, mimeType string) mcp.Content {
	return mcp.AudioContent{
		Type:     "audio",
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: mimeType,
	}
}

// ResourceBlock embeds a textual resource by URI.
func ResourceBlock(uri, mimeType, text string) mcp.Content {
	return mcp.EmbeddedResource{
		Type: "resource",
		Resource: mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeType,
			Text:     text,
		},
	}
}

// FileBlock embeds file bytes, choosing image, audio, or blob resource
// representation from the detected MIME type.
func FileBlock(filePath string, data []byte) mcp.Content {
	mimeType := DetectMIMEType(filePath)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return ImageBlock(data, mimeType)
	case strings.HasPrefix(mimeType, "audio/"):
		return AudioBlock(data, mimeType)
	default:
		return mcp.EmbeddedResource{
			Type: "resource",
			Resource: mcp.BlobResourceContents{
				URI:      "file://" + filePath,
				MIMEType: mimeType,
				Blob:     base64.StdEncoding.EncodeToString(data),
			},
		}
	}
}

var mimeByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",

	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",

	".pdf":  "application/pdf",
	".json": "application/json",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".xml":  "application/xml",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".html": "text/html",
	".sql":  "text/plain",
}

// DetectMIMEType maps a file extension to a MIME type, defaulting to
// application/octet-stream.
func DetectMIMEType(filePath string) string {
	if mimeType, ok := mimeByExtension[strings.ToLower(path.Ext(filePath))]; ok {
		return mimeType
	}
	return "application/octet-stream"
}
