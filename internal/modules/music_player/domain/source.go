package domain

// SourceKind tells where a track's metadata came from.
type SourceKind string

const (
	SourceKindCatalog SourceKind = "catalog"
	SourceKindVideo   SourceKind = "video"
)

// ParseSourceKind converts a stored source name to a SourceKind.
// Unknown names are treated as catalog entries, which always need a video lookup.
func ParseSourceKind(name string) SourceKind {
	switch name {
	case "video", "youtube":
		return SourceKindVideo
	default:
		return SourceKindCatalog
	}
}

// Color returns the embed accent color for tracks of this kind.
func (k SourceKind) Color() int {
	switch k {
	case SourceKindVideo:
		return 0xFF0000
	default:
		return 0x1DB954
	}
}
