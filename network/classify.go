package network

import "strings"

type ResourceType string

const (
	ResourceFetch  ResourceType = "fetch"
	ResourceXHR    ResourceType = "xhr"
	ResourceDoc    ResourceType = "doc"
	ResourceCSS    ResourceType = "css"
	ResourceJS     ResourceType = "js"
	ResourceFont   ResourceType = "font"
	ResourceImg    ResourceType = "img"
	ResourceMedia  ResourceType = "media"
	ResourceSocket ResourceType = "socket"
	ResourceOther  ResourceType = "other"
)

var protocolResourceTypes = map[string]ResourceType{
	"websocket":  ResourceSocket,
	"image":      ResourceImg,
	"font":       ResourceFont,
	"stylesheet": ResourceCSS,
	"script":     ResourceJS,
	"media":      ResourceMedia,
	"document":   ResourceDoc,
	"xhr":        ResourceXHR,
	"fetch":      ResourceFetch,
}

// extension rules are checked in order; the first list containing a
// substring of the lowercased URL wins.
var extensionRules = []struct {
	kind       ResourceType
	extensions []string
}{
	{ResourceImg, []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".bmp", ".avif"}},
	{ResourceFont, []string{".woff", ".woff2", ".ttf", ".otf", ".eot"}},
	{ResourceCSS, []string{".css"}},
	{ResourceJS, []string{".js", ".mjs", ".jsx", ".ts", ".tsx"}},
	{ResourceMedia, []string{".mp4", ".webm", ".ogg", ".mp3", ".wav", ".m4a", ".m3u8", ".mpd"}},
	{ResourceDoc, []string{".html", ".htm", ".pdf", ".xml"}},
}

// Classify derives the resource type from the protocol's own type, then the
// content type, then the URL.
func Classify(url, contentType, protocolType string) ResourceType {
	if kind, ok := protocolResourceTypes[strings.ToLower(protocolType)]; ok {
		return kind
	}

	if kind, ok := classifyContentType(strings.ToLower(contentType)); ok {
		return kind
	}

	lowerURL := strings.ToLower(url)
	for _, rule := range extensionRules {
		for _, ext := range rule.extensions {
			if strings.Contains(lowerURL, ext) {
				return rule.kind
			}
		}
	}

	return ResourceOther
}

func classifyContentType(ct string) (ResourceType, bool) {
	switch {
	case ct == "":
		return "", false
	case strings.Contains(ct, "image/"):
		return ResourceImg, true
	case strings.Contains(ct, "font/"), strings.Contains(ct, "application/font"):
		return ResourceFont, true
	case strings.Contains(ct, "text/css"):
		return ResourceCSS, true
	case strings.Contains(ct, "javascript"):
		return ResourceJS, true
	case strings.Contains(ct, "video/"), strings.Contains(ct, "audio/"):
		return ResourceMedia, true
	case strings.Contains(ct, "text/html"), strings.Contains(ct, "application/xhtml"):
		return ResourceDoc, true
	case strings.Contains(ct, "application/json"):
		return ResourceFetch, true
	default:
		return "", false
	}
}
