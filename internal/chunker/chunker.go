// Package chunker splits extracted content into token-bounded,
// overlapping chunks with positional anchors.
package chunker

import (
	"context"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

func init() {
	// Offline BPE loader: no network fetch of the encoding file.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// DefaultChunkSize is the default target chunk length in tokens.
const DefaultChunkSize = 512

// DefaultChunkOverlap is the default overlap between chunks in tokens.
const DefaultChunkOverlap = 50

// charsPerToken is the estimation ratio used to slice text before the
// exact token count is taken. English prose averages about four
// characters per token under cl100k_base.
const charsPerToken = 4

// The encoding is slow to load, so it is shared process-wide.
var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// Chunker splits text into chunks of roughly chunkSize tokens with
// overlap tokens shared between neighbours. A chunk never exceeds
// chunkSize+overlap tokens. It implements the driven.Chunker port.
type Chunker struct {
	chunkSize int
	overlap   int
	enc       *tiktoken.Tiktoken
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the target chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options. Loading the encoding
// can fail only on a corrupt embedded BPE file.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	e, err := encoding()
	if err != nil {
		return nil, err
	}
	c.enc = e

	return c, nil
}

// Chunk splits content into ordered chunks for documentID.
// Deterministic: the same content and settings produce the same
// chunks. Empty content yields zero chunks and no error.
func (c *Chunker) Chunk(ctx context.Context, documentID string, content domain.ExtractedContent) ([]domain.Chunk, error) {
	var chunks []domain.Chunk

	switch {
	case content.IsPaged():
		for pageIdx, pageText := range content.Pages {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			page := pageIdx + 1
			for _, piece := range c.chunkText(pageText) {
				p := page
				chunks = append(chunks, domain.Chunk{
					DocumentID: documentID,
					Index:      len(chunks),
					Content:    piece.text,
					TokenCount: piece.tokens,
					PageNumber: &p,
				})
			}
		}

	case content.IsTimed():
		for _, seg := range content.Segments {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			pieces := c.chunkText(seg.Text)
			if len(pieces) == 0 {
				continue
			}
			// Subdivide the segment's time span proportionally across
			// its chunks.
			perChunk := (seg.End - seg.Start) / float64(len(pieces))
			for i, piece := range pieces {
				start := seg.Start + float64(i)*perChunk
				end := start + perChunk
				chunks = append(chunks, domain.Chunk{
					DocumentID:     documentID,
					Index:          len(chunks),
					Content:        piece.text,
					TokenCount:     piece.tokens,
					TimestampStart: &start,
					TimestampEnd:   &end,
				})
			}
		}

	default:
		for _, piece := range c.chunkText(content.Text) {
			chunks = append(chunks, domain.Chunk{
				DocumentID: documentID,
				Index:      len(chunks),
				Content:    piece.text,
				TokenCount: piece.tokens,
			})
		}
	}

	return chunks, nil
}

type piece struct {
	text   string
	tokens int
}

// chunkText slices text into pieces of roughly chunkSize tokens.
// Slicing is character-estimated for speed; boundaries prefer a
// sentence end, then a space, inside the trailing 20% of the slice.
// Pieces that still exceed chunkSize+overlap tokens are re-split on
// exact token windows.
func (c *Chunker) chunkText(text string) []piece {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	targetChars := c.chunkSize * charsPerToken
	overlapChars := c.overlap * charsPerToken

	if len(text) <= targetChars {
		return c.capped(text)
	}

	var pieces []piece
	start := 0

	for start < len(text) {
		end := start + targetChars
		if end > len(text) {
			end = len(text)
		}
		end = floorCharBoundary(text, end)

		if end < len(text) && end > start {
			searchStart := end - targetChars/5
			if searchStart < start {
				searchStart = start
			}
			searchStart = floorCharBoundary(text, searchStart)

			window := text[searchStart:end]
			if pos := strings.LastIndexAny(window, ".!?"); pos >= 0 {
				end = searchStart + pos + 1
			} else if pos := strings.LastIndex(window, " "); pos >= 0 {
				end = searchStart + pos
			}
		}

		slice := strings.TrimSpace(text[start:end])
		if slice != "" {
			pieces = append(pieces, c.capped(slice)...)
		}

		// Advance with overlap, but always by at least a quarter
		// chunk so pathological boundary placement cannot stall.
		advance := end - start - overlapChars
		if min := targetChars / 4; advance < min {
			advance = min
		}
		start = ceilCharBoundary(text, start+advance)
	}

	return pieces
}

// capped counts tokens exactly and re-splits any piece over the
// chunkSize+overlap hard cap into exact token windows.
func (c *Chunker) capped(text string) []piece {
	tokens := c.enc.Encode(text, nil, nil)
	hardCap := c.chunkSize + c.overlap
	if len(tokens) <= hardCap {
		return []piece{{text: text, tokens: len(tokens)}}
	}

	var pieces []piece
	step := c.chunkSize - c.overlap
	if step <= 0 {
		step = c.chunkSize
	}
	for start := 0; start < len(tokens); start += step {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		decoded := strings.TrimSpace(c.enc.Decode(window))
		if decoded != "" {
			pieces = append(pieces, piece{text: decoded, tokens: len(window)})
		}
		if end == len(tokens) {
			break
		}
	}
	return pieces
}

// floorCharBoundary returns the largest UTF-8 boundary <= index.
func floorCharBoundary(s string, index int) int {
	if index >= len(s) {
		return len(s)
	}
	for index > 0 && !isCharBoundary(s, index) {
		index--
	}
	return index
}

// ceilCharBoundary returns the smallest UTF-8 boundary >= index.
func ceilCharBoundary(s string, index int) int {
	if index >= len(s) {
		return len(s)
	}
	for index < len(s) && !isCharBoundary(s, index) {
		index++
	}
	return index
}

func isCharBoundary(s string, index int) bool {
	if index == 0 || index == len(s) {
		return true
	}
	// Continuation bytes are 10xxxxxx.
	return s[index]&0xC0 != 0x80
}
