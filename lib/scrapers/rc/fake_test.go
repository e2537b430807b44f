package rc

// An in-process stand-in for the catalogue's editor endpoints, answering
// the same markup shapes the real service does: listing tables, blank
// bodies on success, error text on failure, ids embedded in scripts and
// attributes.

import (
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

type fakePage struct {
	name        string
	description string
	style       map[string]string
}

type fakeSet struct {
	name      string
	genre     string
	date      string
	copyright string
	authors   []string
}

type fakeMedia struct {
	tool            string
	name            string
	license         string
	copyrightholder string
	description     string
	// id of the containing set, blank for simple media
	set      string
	uploaded string
}

type fakeItem struct {
	page          string
	media         string
	tool          string
	x, y, w, h, r int
	locked        bool
	common        map[string]string
	style         map[string]string
	options       map[string]string
}

type fakeCatalogue struct {
	username   string
	password   string
	exposition string

	loggedIn bool
	nextId   int
	requests map[string]int

	pages map[string]*fakePage
	sets  map[string]*fakeSet
	media map[string]*fakeMedia
	items map[string]*fakeItem
}

func newFakeCatalogue() *fakeCatalogue {
	return &fakeCatalogue{
		username:   "weaver",
		password:   "warp+weft",
		exposition: "31337",
		nextId:     100,
		requests:   map[string]int{},
		pages:      map[string]*fakePage{},
		sets:       map[string]*fakeSet{},
		media:      map[string]*fakeMedia{},
		items:      map[string]*fakeItem{},
	}
}

func (f *fakeCatalogue) id() string {
	f.nextId++
	return strconv.Itoa(f.nextId)
}

func (f *fakeCatalogue) mediaReferenced(mediaId string) bool {
	for _, item := range f.items {
		if item.media == mediaId {
			return true
		}
	}
	return false
}

var bracketKey = regexp.MustCompile(`^([^\[]+)\[([^\]]+)\]`)

func formKeyId(form map[string][]string, field string) string {
	for key := range form {
		m := bracketKey.FindStringSubmatch(key)
		if m != nil && m[1] == field {
			return m[2]
		}
	}
	return ""
}

func (f *fakeCatalogue) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/session/login", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.FormValue("username") != f.username || r.FormValue("password") != f.password {
			fmt.Fprint(w, "<div>Invalid username or password.</div>")
			return
		}
		f.loggedIn = true
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "fake-session", Path: "/"})
	})
	mux.HandleFunc("/session/logout", func(w http.ResponseWriter, r *http.Request) {
		f.loggedIn = false
	})

	mux.HandleFunc("/editor/weaves", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<table>")
		for id, page := range f.pages {
			fmt.Fprintf(
				w,
				`<tr data-id="%s"><td><a href="#">%s</a></td><td>weave</td></tr>`,
				id, html.EscapeString(page.name),
			)
		}
		fmt.Fprint(w, "</table>")
	})
	mux.HandleFunc("/weave/add", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		id := f.id()
		style := map[string]string{}
		for key, values := range r.PostForm {
			m := bracketKey.FindStringSubmatch(key)
			if m != nil && m[1] == "style" {
				style[m[2]] = values[0]
			}
		}
		f.pages[id] = &fakePage{
			name:        r.FormValue("meta[title][en]"),
			description: r.FormValue("meta[description][en]"),
			style:       style,
		}
		fmt.Fprint(w, id)
	})
	mux.HandleFunc("/weave/remove", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		id := r.FormValue("weave")
		if _, ok := f.pages[id]; !ok {
			fmt.Fprint(w, "Weave could not be found.")
			return
		}
		delete(f.pages, id)
	})
	mux.HandleFunc("/weave/edit", func(w http.ResponseWriter, r *http.Request) {
		page, ok := f.pages[r.URL.Query().Get("weave")]
		if !ok {
			fmt.Fprint(w, "Weave could not be found.")
			return
		}
		fmt.Fprint(w, `<form method="post" action="/weave/edit">`)
		fmt.Fprintf(w, `<input type="text" name="meta[title][en]" value="%s">`, html.EscapeString(page.name))
		fmt.Fprintf(w, `<textarea name="meta[description][en]">%s</textarea>`, html.EscapeString(page.description))
		for k, v := range page.style {
			fmt.Fprintf(
				w,
				`<input type="text" name="style[%s]" value="%s">`,
				html.EscapeString(k), html.EscapeString(v),
			)
		}
		fmt.Fprint(w, `<input type="submit" name="submitbutton" value="submitbutton"></form>`)
	})

	mux.HandleFunc("/editor/works", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<table>")
		for id, set := range f.sets {
			fmt.Fprintf(
				w,
				`<tr class="work" data-id="%s"><td>%s</td><td>%s</td></tr>`,
				id, html.EscapeString(set.genre), html.EscapeString(set.name),
			)
		}
		fmt.Fprint(w, "</table>")
	})
	mux.HandleFunc("/work/add", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		id := f.id()
		f.sets[id] = &fakeSet{
			name:      r.FormValue("meta[title][en]"),
			genre:     r.FormValue("meta[genre]"),
			date:      r.FormValue("meta[date]"),
			copyright: r.FormValue("meta[copyrightholder]"),
			authors:   r.PostForm["meta[rcauthors][]"],
		}
		fmt.Fprint(w, id)
	})
	mux.HandleFunc("/work/remove", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		id := r.FormValue("work[]")
		if _, ok := f.sets[id]; !ok {
			fmt.Fprint(w, "Work could not be found.")
			return
		}
		for mediaId, media := range f.media {
			if media.set == id && f.mediaReferenced(mediaId) {
				fmt.Fprint(w, "Work is still in use by an exposition.")
				return
			}
		}
		for mediaId, media := range f.media {
			if media.set == id {
				delete(f.media, mediaId)
			}
		}
		delete(f.sets, id)
	})
	mux.HandleFunc("/editor/work-children", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		setId := r.FormValue("work")
		var entries []string
		for id, media := range f.media {
			if media.set != setId {
				continue
			}
			entries = append(entries, fmt.Sprintf(
				`{"id":%s,"tool":"%s","title":"%s"}`,
				id, media.tool, media.name,
			))
		}
		w.Header().Set("content-type", "application/json")
		fmt.Fprintf(w, `{"files":[%s]}`, strings.Join(entries, ","))
	})

	mux.HandleFunc("/simple-media/list", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<table>")
		for id, media := range f.media {
			if media.set != "" {
				continue
			}
			fmt.Fprintf(
				w,
				`<tr class="simple-media" data-id="%s" data-tool="%s"><td><img src="#"></td><td>%s</td></tr>`,
				id, media.tool, html.EscapeString(media.name),
			)
		}
		fmt.Fprint(w, "</table>")
	})
	addMedia := func(set string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			r.ParseMultipartForm(16 << 20)
			tool := "image"
			if r.FormValue("audio[mediatype]") != "" {
				tool = "audio"
			}
			setId := set
			if setId == "work" {
				setId = r.FormValue("work")
			}
			id := f.id()
			f.media[id] = &fakeMedia{
				tool:            tool,
				name:            r.FormValue(tool + "[name]"),
				license:         r.FormValue(tool + "[license]"),
				copyrightholder: r.FormValue(tool + "[copyrightholder]"),
				description:     r.FormValue(tool + "[description]"),
				set:             setId,
			}
			edit := "simple-media/edit"
			if setId != "" {
				edit = "file/edit"
			}
			fmt.Fprintf(
				w,
				`<script>parent.window.formAction = '/%s?file=%s';</script>`,
				edit, id,
			)
		}
	}
	mux.HandleFunc("/simple-media/add", addMedia(""))
	mux.HandleFunc("/work/upload-file", addMedia("work"))
	mux.HandleFunc("/simple-media/remove", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		id := r.FormValue("file[]")
		if _, ok := f.media[id]; !ok {
			fmt.Fprint(w, "Media could not be found.")
			return
		}
		if f.mediaReferenced(id) {
			fmt.Fprint(w, "Media is still in use.")
			return
		}
		delete(f.media, id)
	})
	mux.HandleFunc("/work/remove-file", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		id := r.FormValue("file")
		media, ok := f.media[id]
		if !ok || media.set != r.FormValue("work") {
			fmt.Fprint(w, "Media could not be found.")
			return
		}
		if f.mediaReferenced(id) {
			fmt.Fprint(w, "Media is still in use.")
			return
		}
		delete(f.media, id)
	})
	mux.HandleFunc("/file/edit", func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(16 << 20)
		media, ok := f.media[r.FormValue("file")]
		if !ok {
			fmt.Fprint(w, "Media could not be found.")
			return
		}
		_, header, err := r.FormFile("media")
		if err != nil {
			fmt.Fprint(w, "No file content.")
			return
		}
		media.uploaded = header.Filename
	})

	mux.HandleFunc("/editor/content", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		pageId := r.FormValue("weave")
		for id, item := range f.items {
			if item.page != pageId {
				continue
			}
			fmt.Fprintf(
				w,
				`<div data-id="%s" data-tool="%s" data-title="%s"></div>`,
				id, item.tool, html.EscapeString(item.common["title"]),
			)
		}
	})
	mux.HandleFunc("/item/add", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		atoi := func(field string) int {
			v, _ := strconv.Atoi(r.FormValue(field))
			return v
		}
		id := f.id()
		f.items[id] = &fakeItem{
			page:    r.FormValue("weave"),
			media:   r.FormValue("file"),
			tool:    r.FormValue("tool"),
			x:       atoi("left"),
			y:       atoi("top"),
			w:       atoi("width"),
			h:       atoi("height"),
			common:  map[string]string{"title": ""},
			style:   map[string]string{},
			options: map[string]string{},
		}
		fmt.Fprintf(w, `<div data-id="%s" data-tool="%s"></div>`, id, f.items[id].tool)
	})
	mux.HandleFunc("/item/update", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		id := formKeyId(r.PostForm, "item")
		item, ok := f.items[id]
		if !ok {
			fmt.Fprint(w, "Item could not be found.")
			return
		}
		geometry := map[string]*int{
			"left":   &item.x,
			"top":    &item.y,
			"width":  &item.w,
			"height": &item.h,
			"rotate": &item.r,
		}
		for field, target := range geometry {
			values, ok := r.PostForm[fmt.Sprintf("%s[%s]", field, id)]
			if !ok {
				continue
			}
			v, err := strconv.Atoi(values[0])
			if err != nil {
				fmt.Fprintf(w, "Invalid %s.", field)
				return
			}
			*target = v
		}
	})
	mux.HandleFunc("/item/update-lock", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		id := formKeyId(r.PostForm, "lock")
		item, ok := f.items[id]
		if !ok {
			fmt.Fprint(w, "Item could not be found.")
			return
		}
		item.locked = r.FormValue(fmt.Sprintf("lock[%s]", id)) != "0"
	})
	mux.HandleFunc("/item/edit", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			item, ok := f.items[r.URL.Query().Get("item")]
			if !ok {
				fmt.Fprint(w, "Item could not be found.")
				return
			}
			fmt.Fprintf(w, `<form method="post" title="edit %s tool">`, item.tool)
			writeGroup := func(group string, fields map[string]string) {
				for k, v := range fields {
					fmt.Fprintf(
						w,
						`<input type="text" name="%s[%s]" value="%s">`,
						group, html.EscapeString(k), html.EscapeString(v),
					)
				}
			}
			writeGroup("common", item.common)
			writeGroup("style", map[string]string{
				"left":   strconv.Itoa(item.x),
				"top":    strconv.Itoa(item.y),
				"width":  strconv.Itoa(item.w),
				"height": strconv.Itoa(item.h),
				"rotate": strconv.Itoa(item.r),
			})
			writeGroup("style", item.style)
			writeGroup("options", item.options)
			fmt.Fprint(w, `<input type="submit" name="submitbutton" value="submitbutton"></form>`)
			return
		}

		r.ParseForm()
		item, ok := f.items[r.FormValue("item")]
		if !ok {
			fmt.Fprint(w, "Item could not be found.")
			return
		}
		for key, values := range r.PostForm {
			m := bracketKey.FindStringSubmatch(key)
			if m == nil {
				continue
			}
			switch m[1] {
			case "common":
				item.common[m[2]] = values[0]
			case "style":
				item.style[m[2]] = values[0]
			case "options":
				item.options[m[2]] = values[0]
			}
		}
	})
	mux.HandleFunc("/item/remove", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		id := r.FormValue("item[]")
		if _, ok := f.items[id]; !ok {
			fmt.Fprint(w, "Item could not be found.")
			return
		}
		delete(f.items, id)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests[r.URL.Path]++
		if r.URL.Path != "/session/login" {
			cookie, err := r.Cookie("session")
			if err != nil || cookie.Value != "fake-session" || !f.loggedIn {
				w.WriteHeader(http.StatusForbidden)
				return
			}
		}
		mux.ServeHTTP(w, r)
	})
}
