package domain

// TimedSegment is a transcription window of an audio or video file.
// Start and End are seconds from the beginning of the media.
type TimedSegment struct {
	Start float64
	End   float64
	Text  string
}

// ExtractedContent is the normalised output of a content extractor.
// Exactly one shape is populated:
//
//   - Pages, for paged documents (index = page number - 1)
//   - Segments, for timed media
//   - Text, for everything else
//
// An extractor may legitimately return empty content (for example a
// blank text file); that is distinct from extraction failure, which is
// reported as an error.
type ExtractedContent struct {
	Text     string
	Pages    []string
	Segments []TimedSegment
}

// IsPaged reports whether the content carries per-page anchors.
func (c ExtractedContent) IsPaged() bool {
	return len(c.Pages) > 0
}

// IsTimed reports whether the content carries timestamp anchors.
func (c ExtractedContent) IsTimed() bool {
	return len(c.Segments) > 0
}

// IsEmpty reports whether no extractable text was found at all.
func (c ExtractedContent) IsEmpty() bool {
	if c.Text != "" {
		return false
	}
	for _, p := range c.Pages {
		if p != "" {
			return false
		}
	}
	for _, s := range c.Segments {
		if s.Text != "" {
			return false
		}
	}
	return true
}
