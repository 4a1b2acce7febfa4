// Package blocks walks extracted article HTML into a typed sequence of
// content blocks (heading, paragraph, image, code, list, quote,
// table) for structured rendering and downstream analysis.
package blocks

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pageforge/internal/domain/entity"
)

var blockLevelTags = map[string]struct{}{
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"p": {}, "img": {}, "figure": {}, "pre": {}, "ul": {}, "ol": {},
	"blockquote": {}, "table": {},
}

var languageClassRe = regexp.MustCompile(`(?:^|\s)language-(\S+)`)

// Parse walks the body of html depth-first and returns the sequence
// of block-level elements it contains, resolving image URLs against
// baseURL. It strips nav/header/footer/script/style/noscript
// before walking.
func Parse(html, baseURL string) []entity.Block {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	doc.Find("nav, header, footer, script, style, noscript").Remove()

	base, _ := url.Parse(baseURL)

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var out []entity.Block
	walk(root, base, &out)
	return out
}

func walk(sel *goquery.Selection, base *url.URL, out *[]entity.Block) {
	sel.Children().Each(func(_ int, child *goquery.Selection) {
		tag := goquery.NodeName(child)
		if _, isBlock := blockLevelTags[tag]; isBlock {
			emit(tag, child, base, out)
			return
		}
		walk(child, base, out)
	})
}

func emit(tag string, s *goquery.Selection, base *url.URL, out *[]entity.Block) {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		level, _ := strconv.Atoi(tag[1:])
		*out = append(*out, entity.Block{Type: entity.BlockHeading, Level: level, Text: text})

	case "p":
		imgs := s.Find("img")
		if strings.TrimSpace(s.Text()) == "" && imgs.Length() > 0 {
			imgs.Each(func(_ int, img *goquery.Selection) {
				*out = append(*out, imageBlock(img, base))
			})
			return
		}
		text := strings.TrimSpace(s.Text())
		if text != "" {
			*out = append(*out, entity.Block{Type: entity.BlockParagraph, Text: text})
		}

	case "img":
		*out = append(*out, imageBlock(s, base))

	case "figure":
		img := s.Find("img").First()
		if img.Length() > 0 {
			*out = append(*out, imageBlock(img, base))
		}

	case "pre":
		lang := languageOf(s)
		code := strings.Trim(s.Text(), "\n")
		*out = append(*out, entity.Block{Type: entity.BlockCode, Language: lang, Code: code})

	case "ul", "ol":
		items := listItems(s)
		if len(items) == 0 {
			return
		}
		*out = append(*out, entity.Block{Type: entity.BlockList, Ordered: tag == "ol", Items: items})

	case "blockquote":
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		*out = append(*out, entity.Block{Type: entity.BlockQuote, Text: text})

	case "table":
		rows := tableRows(s)
		if len(rows) == 0 {
			return
		}
		*out = append(*out, entity.Block{Type: entity.BlockTable, Rows: rows})
	}
}

func imageBlock(img *goquery.Selection, base *url.URL) entity.Block {
	src, _ := img.Attr("src")
	src = strings.TrimSpace(src)
	if src == "" {
		if srcset, ok := img.Attr("srcset"); ok {
			first := strings.TrimSpace(strings.Split(srcset, ",")[0])
			src = strings.TrimSpace(strings.Split(first, " ")[0])
		}
	}
	if base != nil && src != "" {
		if resolved, err := base.Parse(src); err == nil {
			src = resolved.String()
		}
	}

	alt := strings.TrimSpace(img.AttrOr("alt", ""))
	caption := ""
	if parent := img.Parent(); goquery.NodeName(parent) == "figure" {
		caption = strings.TrimSpace(parent.Find("figcaption").First().Text())
	}
	return entity.Block{Type: entity.BlockImage, URL: src, Alt: alt, Caption: caption}
}

func languageOf(pre *goquery.Selection) string {
	if class, ok := pre.Attr("class"); ok {
		if m := languageClassRe.FindStringSubmatch(class); m != nil {
			return m[1]
		}
	}
	code := pre.Find("code").First()
	if class, ok := code.Attr("class"); ok {
		if m := languageClassRe.FindStringSubmatch(class); m != nil {
			return m[1]
		}
	}
	return ""
}

func listItems(list *goquery.Selection) []string {
	direct := list.ChildrenFiltered("li")
	items := collectItemText(direct)
	if len(items) == 0 {
		items = collectItemText(list.Find("li"))
	}
	return items
}

func collectItemText(sel *goquery.Selection) []string {
	var items []string
	sel.Each(func(_ int, li *goquery.Selection) {
		text := strings.TrimSpace(li.Text())
		if text != "" {
			items = append(items, text)
		}
	})
	return items
}

func tableRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		anyText := false
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			text := strings.TrimSpace(cell.Text())
			if text != "" {
				anyText = true
			}
			cells = append(cells, text)
		})
		if anyText {
			rows = append(rows, cells)
		}
	})
	return rows
}
