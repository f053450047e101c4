package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"paperchat/internal/ragerr"
	"paperchat/internal/util"

	"github.com/ledongthuc/pdf"
)

// Parser turns raw PDF bytes into a ParsedDocument. Zero value is not usable;
// construct with NewParser.
type Parser struct {
	sections SectionDetector
	metadata MetadataDetector
}

func NewParser(sections SectionDetector, metadata MetadataDetector) *Parser {
	if sections == nil {
		sections = NewRegexSectionDetector()
	}
	if metadata == nil {
		metadata = NewHeuristicMetadataDetector()
	}
	return &Parser{sections: sections, metadata: metadata}
}

// Parse extracts text page by page, detects sections and metadata.
// Empty or unparseable input returns an InvalidDocument error; a failure
// while reading an otherwise-open PDF returns ExtractionFailure.
func (p *Parser) Parse(pdfBytes []byte) (doc ParsedDocument, err error) {
	const op = "ingest.Parse"
	if len(pdfBytes) == 0 {
		return ParsedDocument{}, ragerr.Newf(ragerr.InvalidDocument, op, "empty input")
	}
	// The pdf library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			doc = ParsedDocument{}
			err = ragerr.Newf(ragerr.ExtractionFailure, op, "pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return ParsedDocument{}, ragerr.New(ragerr.InvalidDocument, op, fmt.Errorf("open pdf: %w", err))
	}

	var b strings.Builder
	pages := make([]PageRange, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, perr := page.GetPlainText(nil)
		if perr != nil {
			// A single unreadable page degrades, it does not fail the paper.
			continue
		}
		txt = util.SanitizeText(txt)
		if txt == "" {
			continue
		}
		start := b.Len()
		b.WriteString(txt)
		b.WriteString("\n")
		pages = append(pages, PageRange{Page: i, Start: start, End: b.Len()})
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return ParsedDocument{}, ragerr.Newf(ragerr.InvalidDocument, op, "no extractable text found in PDF")
	}

	doc = ParsedDocument{Text: text, Pages: pages}
	doc.Sections = p.sections.Detect(text)
	doc.Title, doc.Authors, doc.Year, doc.Venue = p.metadata.Detect(text, doc.Sections)
	return doc, nil
}

// ParseText builds a ParsedDocument from already-extracted text, running
// section and metadata detection without the PDF layer. Page ranges are not
// available on this path.
func (p *Parser) ParseText(text string) (ParsedDocument, error) {
	text = util.SanitizeText(text)
	if strings.TrimSpace(text) == "" {
		return ParsedDocument{}, ragerr.Newf(ragerr.InvalidDocument, "ingest.ParseText", "empty text")
	}
	doc := ParsedDocument{Text: text}
	doc.Sections = p.sections.Detect(text)
	doc.Title, doc.Authors, doc.Year, doc.Venue = p.metadata.Detect(text, doc.Sections)
	return doc, nil
}
