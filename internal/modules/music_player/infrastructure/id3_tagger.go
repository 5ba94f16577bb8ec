package infrastructure

import (
	"fmt"

	"github.com/bogem/id3v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
)

// sourceCommentDescription marks the comment frame holding the source video id.
const sourceCommentDescription = "source"

// ID3Tagger writes ID3v2.3 tags into materialized MP3 files.
type ID3Tagger struct{}

// NewID3Tagger creates a new ID3Tagger.
func NewID3Tagger() *ID3Tagger {
	return &ID3Tagger{}
}

// Tag sets the title, artist and source id of the file at path.
func (t *ID3Tagger) Tag(path string, tags ports.AudioTags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("id3 open: %w", err)
	}
	defer func() { _ = tag.Close() }()

	tag.SetVersion(3)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(tags.Title)
	tag.SetArtist(tags.Artist)

	if tags.SourceID != "" {
		tag.DeleteFrames(tag.CommonID("Comments"))
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: sourceCommentDescription,
			Text:        tags.SourceID,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("id3 save: %w", err)
	}
	return nil
}

// Ensure ID3Tagger implements ports.AudioTagger.
var _ ports.AudioTagger = (*ID3Tagger)(nil)
