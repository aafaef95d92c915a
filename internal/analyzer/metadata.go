package analyzer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/anime-shed/forgery-inspector-go/internal/imaging"
)

// editingSoftware lists photo editors whose name in the authoring-software
// field marks an image as edited. Entries are lowercase.
var editingSoftware = []string{
	"adobe photoshop",
	"photoshop",
	"lightroom",
	"gimp",
	"paint.net",
	"paintshop",
	"corel",
	"pixlr",
	"affinity photo",
	"krita",
	"photoscape",
	"snapseed",
	"picsart",
	"fotor",
	"facetune",
	"canva",
}

// pngTimeLayouts are the encodings seen in the PNG "Creation Time" keyword.
var pngTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// AnalyzeMetadata inspects embedded capture metadata. A missing or
// unreadable metadata block is not an inconsistency.
func AnalyzeMetadata(codec imaging.Codec, data []byte, enabled bool, now time.Time) (result *MetadataResult) {
	result = &MetadataResult{Enabled: enabled}
	if !enabled {
		return result
	}
	defer recoverInto(&result.Error, func() {
		result.HasInconsistentMetadata = false
	})

	cfg, format, err := codec.DecodeConfig(data)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Format = format
	result.Width = cfg.Width
	result.Height = cfg.Height

	var created *time.Time
	var software string
	switch format {
	case "png":
		created, software = readPNGText(data)
	default:
		created, software, result.HasEXIF = readEXIF(data)
	}
	result.CreatedAt = created
	result.Software = software

	if created != nil && created.After(now) {
		result.FutureTimestamp = true
		result.Findings = append(result.Findings,
			fmt.Sprintf("creation timestamp %s is in the future", created.Format(time.RFC3339)))
	}
	if tool := matchEditingSoftware(software); tool != "" {
		result.EditingSoftware = tool
		result.Findings = append(result.Findings,
			fmt.Sprintf("authored with editing software %q", software))
	}

	result.HasInconsistentMetadata = result.FutureTimestamp || result.EditingSoftware != ""
	return result
}

func matchEditingSoftware(software string) string {
	if software == "" {
		return ""
	}
	lower := strings.ToLower(software)
	for _, tool := range editingSoftware {
		if strings.Contains(lower, tool) {
			return tool
		}
	}
	return ""
}

func readEXIF(data []byte) (*time.Time, string, bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", false
	}

	var created *time.Time
	if t, err := x.DateTime(); err == nil {
		created = &t
	}

	var software string
	if tag, err := x.Get(exif.Software); err == nil {
		if s, err := tag.StringVal(); err == nil {
			software = strings.TrimSpace(s)
		}
	}
	return created, software, true
}

// readPNGText scans tEXt and uncompressed iTXt chunks for the Software and
// Creation Time keywords.
func readPNGText(data []byte) (*time.Time, string) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, ""
	}

	var created *time.Time
	var software string
	offset := len(pngSignature)
	for offset+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		chunkType := string(data[offset+4 : offset+8])
		start := offset + 8
		end := start + length
		if length < 0 || end+4 > len(data) {
			break
		}
		chunk := data[start:end]
		offset = end + 4

		var keyword, text string
		var ok bool
		switch chunkType {
		case "tEXt":
			keyword, text, ok = parseTextChunk(chunk)
		case "iTXt":
			keyword, text, ok = parseInternationalTextChunk(chunk)
		case "IEND":
			return created, software
		}
		if !ok {
			continue
		}

		switch keyword {
		case "Software":
			software = strings.TrimSpace(text)
		case "Creation Time":
			if t, ok := parsePNGTime(text); ok {
				created = &t
			}
		}
	}
	return created, software
}

func parseTextChunk(chunk []byte) (string, string, bool) {
	keyword, rest, found := bytes.Cut(chunk, []byte{0})
	if !found {
		return "", "", false
	}
	return string(keyword), string(rest), true
}

func parseInternationalTextChunk(chunk []byte) (string, string, bool) {
	keyword, rest, found := bytes.Cut(chunk, []byte{0})
	if !found || len(rest) < 2 {
		return "", "", false
	}
	if rest[0] != 0 {
		// compressed text is skipped
		return "", "", false
	}
	rest = rest[2:]
	_, rest, found = bytes.Cut(rest, []byte{0}) // language tag
	if !found {
		return "", "", false
	}
	_, text, found := bytes.Cut(rest, []byte{0}) // translated keyword
	if !found {
		return "", "", false
	}
	return string(keyword), string(text), true
}

func parsePNGTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range pngTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
