package office

import (
	"bytes"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
)

// noiseSelectors are removed before conversion.
var noiseSelectors = []string{
	"script", "style", "noscript", "template",
	"nav", "iframe", "svg", "canvas",
	"form", "button", "input", "select", "textarea",
}

func convertHTML(data []byte) (*extract.Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, common.InvalidInput("parse HTML", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	lang, _ := doc.Find("html").Attr("lang")

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}
	content := doc.Find("body").First()
	if content.Length() == 0 {
		content = doc.Selection
	}
	fragment, err := goquery.OuterHtml(content)
	if err != nil {
		return nil, common.Internal("serialize HTML", err)
	}
	md, err := htmlToMarkdown(fragment)
	if err != nil {
		return nil, common.InvalidInput("convert HTML", err)
	}

	res := extract.NewResult(md)
	res.Set("converter", "html-to-markdown").
		Set("link_count", doc.Find("a[href]").Length()).
		Set("heading_count", doc.Find("h1, h2, h3, h4, h5, h6").Length())
	if title != "" {
		res.Set("title", title)
	}
	if lang != "" {
		res.Set("lang", lang)
	}
	return res, nil
}

func htmlToMarkdown(html string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}
