package report

import (
	"bytes"
	"fmt"

	"github.com/signintech/gopdf"

	"elopement-response/internal/response"
)

// DefaultFontPaths lists common locations of a TTF font with CJK glyphs.
var DefaultFontPaths = []string{
	"/usr/share/fonts/noto-cjk/NotoSansCJK-Regular.ttf",
	"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttf",
	"/usr/share/fonts/truetype/arphic/uming.ttf",
	"/usr/share/fonts/wqy-zenhei/wqy-zenhei.ttf",
	"/usr/share/fonts/truetype/wqy/wqy-zenhei.ttf",
}

const (
	fontName   = "CJK"
	pageBottom = 780
	textWidth  = 500
)

// RenderPDF lays out the incident report on A4 pages using the first loadable font.
func RenderPDF(inc response.Incident, fontPaths []string) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont(fontName, path); err != nil {
			fontErr = err
			continue
		}
		fontLoaded = true
		break
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF from %d paths: %w", len(fontPaths), fontErr)
	}

	lines := reportLines(inc)

	if err := pdf.SetFont(fontName, "", 18); err != nil {
		return nil, err
	}
	pdf.Cell(nil, lines[0])
	pdf.Br(30)

	if err := pdf.SetFont(fontName, "", 11); err != nil {
		return nil, err
	}
	for _, line := range lines[1:] {
		if line == "" {
			pdf.Br(10)
			continue
		}
		wrapped, err := pdf.SplitText(line, textWidth)
		if err != nil {
			wrapped = []string{line}
		}
		for _, l := range wrapped {
			if pdf.GetY() > pageBottom {
				pdf.AddPage()
			}
			pdf.Cell(nil, l)
			pdf.Br(16)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
