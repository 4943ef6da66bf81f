// Package assets holds the static response bodies served by the edge
// HTTP endpoints: the 43-byte transparent GIF and the fingerprinting
// script.
package assets

import _ "embed"

//go:embed smart.js
var smartJS []byte

// SmartJS returns the fingerprinting script body served at
// /{companyId}/{pixelId}_SMART.js.
func SmartJS() []byte { return smartJS }

// TransparentGIF is the static 43-byte 1x1 transparent GIF89a served at
// /{companyId}/{pixelId}_SMART.GIF, regardless of query string.
var TransparentGIF = []byte{
	// header
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61,
	// logical screen descriptor: 1x1, global color table of 2 entries
	0x01, 0x00, 0x01, 0x00, 0xF0, 0x00, 0x00,
	// global color table
	0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF,
	// graphic control extension: transparent color index 0
	0x21, 0xF9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00,
	// image descriptor
	0x2C, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
	// image data
	0x02, 0x02, 0x4C, 0x01, 0x00,
	// trailer
	0x3B,
}
