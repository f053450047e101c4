// Package chunk splits a parsed document into retrieval-sized chunks,
// preserving section labels, citation markers, caption flags and page ranges
// as chunk metadata.
package chunk

import (
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"paperchat/internal/ingest"
	"paperchat/internal/models"
	"paperchat/internal/util"

	"github.com/pkoukk/tiktoken-go"
)

const (
	DefaultMaxChars = 1000
	DefaultOverlap  = 150
)

type Splitter struct {
	MaxChars int
	Overlap  int
	enc      *tiktoken.Tiktoken
}

func NewSplitter(maxChars, overlap int) *Splitter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = DefaultOverlap
		if overlap >= maxChars {
			overlap = 0
		}
	}
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		log.Printf("chunk: tiktoken unavailable, falling back to char/4 token estimate: %v", err)
		enc = nil
	}
	return &Splitter{MaxChars: maxChars, Overlap: overlap, enc: enc}
}

// Split produces the ordered chunk set for one document. Boundaries are
// deterministic for a given text and splitter configuration: windows of at
// most MaxChars per section, cut at the last sentence boundary inside the
// window when one exists, hard cut otherwise, with Overlap characters shared
// between consecutive chunks of the same section. The final chunk of a
// section may be arbitrarily short.
func (s *Splitter) Split(sessionID, documentID string, doc ingest.ParsedDocument) []models.Chunk {
	chunks := make([]models.Chunk, 0, len(doc.Text)/s.MaxChars+len(doc.Sections))
	seq := 0
	for _, sec := range doc.Sections {
		text := doc.Text[sec.Start:sec.End]
		start := 0
		for start < len(text) {
			end := start + s.MaxChars
			if end >= len(text) {
				end = len(text)
			} else {
				end = runeStart(text, end)
				if cut := lastSentenceBoundary(text[start:end]); cut > 0 {
					end = start + cut
				} else if end <= start {
					_, size := utf8.DecodeRuneInString(text[start:])
					end = start + size
				}
			}
			piece := text[start:end]
			if strings.TrimSpace(piece) != "" {
				chunks = append(chunks, s.build(sessionID, documentID, seq, sec, doc, piece, sec.Start+start, sec.Start+end))
				seq++
			}
			if end == len(text) {
				break
			}
			next := runeStart(text, end-s.Overlap)
			if next <= start {
				next = end
			}
			start = next
		}
	}
	return chunks
}

func (s *Splitter) build(sessionID, documentID string, seq int, sec models.Section, doc ingest.ParsedDocument, piece string, absStart, absEnd int) models.Chunk {
	c := models.Chunk{
		ChunkID:        util.SHA256Hex([]byte(fmt.Sprintf("%s:%04d", documentID, seq))),
		DocumentID:     documentID,
		SessionID:      sessionID,
		ChunkIndex:     seq,
		SectionOrdinal: sec.Ordinal,
		SectionLabel:   sec.Label,
		Text:           piece,
		CharLen:        len(piece),
		TokenLen:       s.tokenLen(piece),
		Citations:      ingest.CitationMarkers(piece),
		IsCaption:      ingest.IsCaptionLine(firstLine(piece)),
	}
	if p := doc.PageAt(absStart); p > 0 {
		c.PageStart = &p
	}
	if absEnd > absStart {
		if p := doc.PageAt(absEnd - 1); p > 0 {
			c.PageEnd = &p
		}
	}
	return c
}

func (s *Splitter) tokenLen(text string) int {
	if s.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(s.enc.Encode(text, nil, nil))
}

// runeStart backs i up to the first byte of the rune containing text[i], so
// window cuts never land inside a multi-byte rune.
func runeStart(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// lastSentenceBoundary returns the cut index just after the last ./!/?
// that is followed by whitespace inside window, or 0 when none exists.
func lastSentenceBoundary(window string) int {
	for i := len(window) - 2; i > 0; i-- {
		c := window[i]
		if (c == '.' || c == '!' || c == '?') && isSpace(window[i+1]) {
			return i + 1
		}
	}
	return 0
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
