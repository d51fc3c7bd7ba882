package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractDOCX returns the non-blank body paragraphs followed by every table
// row, cells joined with " | ".
func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	paragraphs, rows, err := walkWordXML(r.Editable().GetContent())
	if err != nil {
		return "", err
	}
	return strings.Join(append(paragraphs, rows...), "\n"), nil
}

func walkWordXML(content string) (paragraphs, rows []string, err error) {
	var (
		para      strings.Builder
		cellParas []string
		rowCells  []string
		inText    bool
		depth     int // table nesting
	)

	dec := xml.NewDecoder(strings.NewReader(content))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("invalid document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				depth++
			case "tr":
				if depth == 1 {
					rowCells = rowCells[:0]
				}
			case "tc":
				if depth == 1 {
					cellParas = cellParas[:0]
				}
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br", "cr":
				para.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if depth == 0 {
					if strings.TrimSpace(para.String()) != "" {
						paragraphs = append(paragraphs, para.String())
					}
				} else {
					cellParas = append(cellParas, para.String())
				}
			case "tc":
				if depth == 1 {
					if cell := strings.TrimSpace(strings.Join(cellParas, "\n")); cell != "" {
						rowCells = append(rowCells, cell)
					}
				}
			case "tr":
				if depth == 1 && len(rowCells) > 0 {
					rows = append(rows, strings.Join(rowCells, " | "))
				}
			case "tbl":
				depth--
			}
		}
	}
	return paragraphs, rows, nil
}

// extractPPTX returns the text of every paragraph of every text frame, slide
// by slide in slide-number order and shape by shape in document order.
func extractPPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: f})
	}
	if len(slides) == 0 {
		return "", errors.New("no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var lines []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		slideLines, err := slideText(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		lines = append(lines, slideLines...)
	}
	return strings.Join(lines, "\n"), nil
}

func slideText(r io.Reader) ([]string, error) {
	var (
		lines  []string
		para   strings.Builder
		inBody int
		inText bool
	)

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid slide xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "txBody":
				inBody++
			case "p":
				para.Reset()
			case "t":
				inText = inBody > 0
			case "br":
				if inBody > 0 {
					para.WriteString("\n")
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "txBody":
				inBody--
			case "t":
				inText = false
			case "p":
				if inBody > 0 {
					lines = append(lines, para.String())
				}
			}
		}
	}
	return lines, nil
}
