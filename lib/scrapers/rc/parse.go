package rc

// The editor answers most listing requests with HTML fragments meant for
// the browser UI. Everything that touches that markup is collected here so
// an upstream markup change only breaks one file.

import (
	"regexp"

	"rcedit/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// matches names of the form "group[key]", with anything after the first
// closing bracket ignored ("meta[title][en]" yields meta/title)
var fieldName = regexp.MustCompile(`^([^\[]+)\[([^\]]+)\]`)

// the edit form advertises the tool in its title, e.g. "edit picture tool"
var formToolTitle = regexp.MustCompile(`edit\s*(\S+)\s*tool`)

// topLevelRow reports whether a table row is not nested inside another
// row. The listing tables embed preview markup in their cells, which can
// contain tables of its own.
func topLevelRow(row *goquery.Selection) bool {
	return row.ParentsFiltered("tr").Length() == 0
}

// parseWeaveRows extracts {page id: page name} from the weave listing
// table. The name sits in the first cell of each row carrying a data-id.
func parseWeaveRows(doc *goquery.Document) map[string]string {
	pages := map[string]string{}
	doc.Find("tr[data-id]").Each(func(_ int, row *goquery.Selection) {
		if !topLevelRow(row) {
			return
		}
		id := row.AttrOr("data-id", "")
		if id == "" {
			return
		}
		pages[id] = htmlutil.CleanText(row.ChildrenFiltered("td").First())
	})
	return pages
}

// parseWorkRows extracts {set id: set name} from the media set ("work")
// listing table. The name sits in the second cell.
func parseWorkRows(doc *goquery.Document) map[string]string {
	sets := map[string]string{}
	doc.Find("tr.work[data-id]").Each(func(_ int, row *goquery.Selection) {
		if !topLevelRow(row) {
			return
		}
		id := row.AttrOr("data-id", "")
		if id == "" {
			return
		}
		sets[id] = htmlutil.CleanText(row.ChildrenFiltered("td").Eq(1))
	})
	return sets
}

// parseSimpleMediaRows extracts {media id: Media} from the simple media
// listing table. The tool comes from a data attribute, the name from the
// second cell.
func parseSimpleMediaRows(doc *goquery.Document) map[string]Media {
	media := map[string]Media{}
	doc.Find("tr.simple-media[data-id]").Each(func(_ int, row *goquery.Selection) {
		if !topLevelRow(row) {
			return
		}
		id := row.AttrOr("data-id", "")
		if id == "" {
			return
		}
		media[id] = Media{
			Tool: row.AttrOr("data-tool", ""),
			Name: htmlutil.CleanText(row.ChildrenFiltered("td").Eq(1)),
		}
	})
	return media
}

// parseItemDivs extracts {item id: Item} from a rendered weave. Every
// placed item is a div carrying data-id/data-tool/data-title.
func parseItemDivs(doc *goquery.Document) map[string]Item {
	items := map[string]Item{}
	doc.Find("div[data-id]").Each(func(_ int, div *goquery.Selection) {
		id := div.AttrOr("data-id", "")
		tool, ok := div.Attr("data-tool")
		if id == "" || !ok {
			return
		}
		items[id] = Item{
			Tool:  tool,
			Title: div.AttrOr("data-title", ""),
		}
	})
	return items
}

// parseEditForm reads an editor form (item edit, weave edit) back into its
// "group[key]" field groups. It returns the tool named in the form title
// (blank for forms that don't name one) and the grouped field values:
// text inputs and checked checkboxes by value, selects by their selected
// option, textareas by content.
func parseEditForm(doc *goquery.Document) (string, map[string]map[string]string) {
	tool := ""
	if title, ok := doc.Find("form[title]").First().Attr("title"); ok {
		if m := formToolTitle.FindStringSubmatch(title); m != nil {
			tool = m[1]
		}
	}

	groups := map[string]map[string]string{}
	put := func(name, value string) {
		m := fieldName.FindStringSubmatch(name)
		if m == nil {
			return
		}
		group := groups[m[1]]
		if group == nil {
			group = map[string]string{}
			groups[m[1]] = group
		}
		group[m[2]] = value
	}

	doc.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		if input.AttrOr("type", "text") == "checkbox" {
			if _, checked := input.Attr("checked"); !checked {
				return
			}
		}
		value, ok := input.Attr("value")
		if !ok {
			return
		}
		put(input.AttrOr("name", ""), value)
	})
	doc.Find("select[name]").Each(func(_ int, sel *goquery.Selection) {
		selected := sel.Find("option[selected]").First()
		if selected.Length() == 0 {
			return
		}
		put(sel.AttrOr("name", ""), selected.AttrOr("value", ""))
	})
	doc.Find("textarea[name]").Each(func(_ int, area *goquery.Selection) {
		put(area.AttrOr("name", ""), area.Text())
	})

	return tool, groups
}
