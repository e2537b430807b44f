package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText collects the text of a selection and normalizes it for use as a
// display name: non-printable runes dropped, inner runs of whitespace
// collapsed, outer whitespace trimmed.
func CleanText(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
	}
	text := whitespaceRun.ReplaceAllString(buffer.String(), " ")
	text = removeNonPrintable(text)
	return strings.Trim(text, " ")
}
