// Package extractors provides implementations of the Extractor interface
// for the supported file types, plus the registry that selects one.
//
// Each subpackage handles one content family: pdf for paged documents,
// plaintext for text and markdown, media for audio and video, image for
// pictures and screenshots.
package extractors
