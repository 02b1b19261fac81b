package pptx

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/xunlong/api/internal/model"
)

// Slide geometry in EMU (914400 per inch). Decks are 10 x 7.5 inches.
const (
	emuPerInch = 914400
	slideCx    = 10 * emuPerInch
	slideCy    = 15 * emuPerInch / 2
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;",
)

// Renderer converts a generated deck into a PPTX file by reducing each
// slide's HTML fragment to a flat element list and emitting OOXML parts.
// Rendering is pure: identical input produces an identical deck.
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer creates a PPTX renderer.
func NewRenderer(logger *slog.Logger) *Renderer {
	return &Renderer{logger: logger}
}

// RenderFile renders the deck to a .pptx file at path.
func (r *Renderer) RenderFile(doc *model.PPTDocument, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Render(doc, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Render writes the deck as a PPTX archive. A slide whose HTML cannot be
// parsed becomes a plain-text box; one bad slide never aborts the deck.
func (r *Renderer) Render(doc *model.PPTDocument, w io.Writer) error {
	zw := zip.NewWriter(w)
	n := len(doc.Slides)
	hasNotes := false
	for _, s := range doc.Slides {
		if s.SpeechNotes != "" {
			hasNotes = true
		}
	}

	parts := map[string]string{
		"[Content_Types].xml":                        contentTypesXML(n, hasNotes),
		"_rels/.rels":                                rootRelsXML,
		"ppt/presentation.xml":                       presentationXML(n, hasNotes),
		"ppt/_rels/presentation.xml.rels":            presentationRelsXML(n, hasNotes),
		"ppt/slideMasters/slideMaster1.xml":          slideMasterXML,
		"ppt/slideMasters/_rels/slideMaster1.xml.rels": slideMasterRelsXML,
		"ppt/slideLayouts/slideLayout1.xml":          slideLayoutXML,
		"ppt/slideLayouts/_rels/slideLayout1.xml.rels": slideLayoutRelsXML,
		"ppt/theme/theme1.xml":                       themeXML,
	}
	if hasNotes {
		parts["ppt/notesMasters/notesMaster1.xml"] = notesMasterXML
		parts["ppt/notesMasters/_rels/notesMaster1.xml.rels"] = notesMasterRelsXML
	}

	for i, slide := range doc.Slides {
		num := i + 1
		parts[fmt.Sprintf("ppt/slides/slide%d.xml", num)] = r.slideXML(slide, num, n, doc.Colors)
		parts[fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", num)] = slideRelsXML(num, slide.SpeechNotes != "")
		if slide.SpeechNotes != "" {
			parts[fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", num)] = notesSlideXML(slide.SpeechNotes)
			parts[fmt.Sprintf("ppt/notesSlides/_rels/notesSlide%d.xml.rels", num)] = notesSlideRelsXML(num)
		}
	}

	// Sorted part order keeps the archive byte-for-byte reproducible.
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		if _, err := f.Write([]byte(parts[name])); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return zw.Close()
}

// slideXML builds one slide part. Layout is chosen from the element count:
// up to 3 content items render large, 4-8 as a list column, more than 8 in
// two compact columns.
func (r *Renderer) slideXML(slide model.Slide, num, total int, d model.DesignSpec) string {
	elements, err := ParseFragment(slide.HTMLContent)
	if err != nil || len(elements) == 0 {
		if err != nil {
			r.logger.Warn("slide HTML unparseable, using plain text box", "slide", num, "error", err)
		}
		text := StripTags(slide.HTMLContent)
		if text == "" {
			text = slide.Topic
		}
		elements = []Element{{Type: "p", Text: text}}
	}

	title := slide.Topic
	var items []Element
	for _, el := range elements {
		if (el.Type == "h1" || el.Type == "h2" || el.Type == "h3") && title == slide.Topic {
			title = el.Text
			continue
		}
		items = append(items, el)
	}

	var shapes strings.Builder
	shapeID := 2

	titleSize := 3200 // hundredths of a point
	if slide.PageType == model.PageTypeTitle {
		titleSize = 4400
	}
	shapes.WriteString(textBox(shapeID, inEMU(0.5), inEMU(0.4), inEMU(9), inEMU(1.1),
		[]para{{runs: []run{{text: title, size: titleSize, bold: true, color: hex(d.PrimaryColor)}}}}))
	shapeID++

	switch {
	case len(items) <= 3:
		var paras []para
		for _, it := range items {
			paras = append(paras, bulletPara(it.Text, 2400, d))
		}
		shapes.WriteString(textBox(shapeID, inEMU(0.8), inEMU(1.8), inEMU(8.4), inEMU(4.8), paras))
		shapeID++
	case len(items) <= 8:
		var paras []para
		for _, it := range items {
			paras = append(paras, bulletPara(it.Text, 1800, d))
		}
		shapes.WriteString(textBox(shapeID, inEMU(0.8), inEMU(1.7), inEMU(8.4), inEMU(5.0), paras))
		shapeID++
	default:
		half := (len(items) + 1) / 2
		var left, right []para
		for i, it := range items {
			p := bulletPara(it.Text, 1400, d)
			if i < half {
				left = append(left, p)
			} else {
				right = append(right, p)
			}
		}
		shapes.WriteString(textBox(shapeID, inEMU(0.5), inEMU(1.7), inEMU(4.4), inEMU(5.2), left))
		shapeID++
		shapes.WriteString(textBox(shapeID, inEMU(5.1), inEMU(1.7), inEMU(4.4), inEMU(5.2), right))
		shapeID++
	}

	// Page number, bottom-right.
	shapes.WriteString(textBox(shapeID, inEMU(8.4), inEMU(7.0), inEMU(1.3), inEMU(0.35),
		[]para{{align: "r", runs: []run{{text: fmt.Sprintf("%d / %d", num, total), size: 1200, color: hex(d.TextColor)}}}}))

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
<p:cSld><p:spTree>
<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>
<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>
%s</p:spTree></p:cSld>
<p:clrMapOvr><a:overrideClrMapping bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/></p:clrMapOvr>
</p:sld>`, shapes.String())
}

type run struct {
	text  string
	size  int // hundredths of a point
	bold  bool
	color string // rrggbb
}

type para struct {
	align string // "" or "r"
	runs  []run
}

// bulletPara prefixes the text with a colored bullet mark run.
func bulletPara(text string, size int, d model.DesignSpec) para {
	return para{runs: []run{
		{text: "▪ ", size: size, color: hex(d.AccentColor)},
		{text: text, size: size, color: hex(d.TextColor)},
	}}
}

func textBox(id, x, y, cx, cy int, paras []para) string {
	var body strings.Builder
	for _, p := range paras {
		algn := ""
		if p.align != "" {
			algn = fmt.Sprintf(` algn="%s"`, p.align)
		}
		body.WriteString(fmt.Sprintf("<a:p><a:pPr%s/>", algn))
		for _, rn := range p.runs {
			b := "0"
			if rn.bold {
				b = "1"
			}
			body.WriteString(fmt.Sprintf(
				`<a:r><a:rPr lang="en-US" sz="%d" b="%s" dirty="0"><a:solidFill><a:srgbClr val="%s"/></a:solidFill></a:rPr><a:t>%s</a:t></a:r>`,
				rn.size, b, rn.color, xmlEscaper.Replace(rn.text)))
		}
		body.WriteString("</a:p>")
	}
	return fmt.Sprintf(`<p:sp>
<p:nvSpPr><p:cNvPr id="%d" name="TextBox %d"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>
<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>
<p:txBody><a:bodyPr wrap="square" rtlCol="0"><a:normAutofit/></a:bodyPr><a:lstStyle/>%s</p:txBody>
</p:sp>
`, id, id, x, y, cx, cy, body.String())
}

func inEMU(inches float64) int {
	return int(inches * emuPerInch)
}

func hex(color string) string {
	c := strings.TrimPrefix(color, "#")
	if len(c) != 6 {
		return "000000"
	}
	return strings.ToUpper(c)
}
