package planner

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"github.com/a-h/templ"

	"github.com/FACorreiaa/loci-planner/internal/app/models"
)

const (
	searchPlaceholder = "자연어로 장소를 입력해보세요 (예: 조용한 실내 박물관)"
	todayLabel        = "오늘의 추천"
	htmxSrc           = "https://unpkg.com/htmx.org@1.9.12"
	tailwindSrc       = "https://cdn.jsdelivr.net/npm/@tailwindcss/browser@4"
)

// htmlWriter accumulates the first write error so components read as markup.
type htmlWriter struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(parts ...string) {
	for _, p := range parts {
		if hw.err != nil {
			return
		}
		_, hw.err = io.WriteString(hw.w, p)
	}
}

func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

func (hw *htmlWriter) attr(name, value string) {
	hw.raw(" ", name, `="`, templ.EscapeString(value), `"`)
}

func (hw *htmlWriter) render(c templ.Component) {
	if hw.err != nil {
		return
	}
	hw.err = c.Render(hw.ctx, hw.w)
}

func component(fn func(hw *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{ctx: ctx, w: w}
		fn(hw)
		return hw.err
	})
}

type buttonVariant int

const (
	variantDefault buttonVariant = iota
	variantOutline
	variantSecondary
	variantSecondaryOutline
	variantGhost
)

var buttonVariantClasses = map[buttonVariant]string{
	variantDefault:          "bg-blue-600 text-white border-blue-600 hover:bg-blue-700",
	variantOutline:          "bg-white text-blue-600 border-blue-600 hover:bg-blue-50",
	variantSecondary:        "bg-fuchsia-600 text-white border-fuchsia-600 hover:bg-fuchsia-700",
	variantSecondaryOutline: "bg-white text-fuchsia-600 border-fuchsia-600 hover:bg-fuchsia-50",
	variantGhost:            "bg-transparent text-gray-600 border-transparent hover:bg-gray-100",
}

type attr struct {
	name, value string
}

type buttonProps struct {
	Variant  buttonVariant
	Small    bool
	Class    string
	Type     string
	Disabled bool
	Attrs    []attr
}

func button(p buttonProps, label string) templ.Component {
	return component(func(hw *htmlWriter) {
		size := "h-10 px-4 text-base"
		if p.Small {
			size = "h-8 px-3 text-sm"
		}
		class := twmerge.Merge(
			"inline-flex items-center justify-center rounded-md border font-medium transition-colors disabled:opacity-50",
			buttonVariantClasses[p.Variant],
			size,
			p.Class,
		)
		typ := p.Type
		if typ == "" {
			typ = "button"
		}
		hw.raw("<button")
		hw.attr("type", typ)
		hw.attr("class", class)
		for _, a := range p.Attrs {
			hw.attr(a.name, a.value)
		}
		if p.Disabled {
			hw.raw(" disabled")
		}
		hw.raw(">")
		hw.text(label)
		hw.raw("</button>")
	})
}

// Page is the full document for non-htmx requests.
func Page(d PageData) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw(`<!DOCTYPE html><html lang="ko"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>추천 장소 검색</title>`)
		hw.raw(`<script src="`, htmxSrc, `"></script>`)
		hw.raw(`<script src="`, tailwindSrc, `"></script>`)
		hw.raw(`<link rel="stylesheet" href="/assets/css/planner.css">`)
		hw.raw(`</head><body class="bg-gray-50 text-gray-900"><main class="mx-auto max-w-2xl p-4">`)
		hw.render(PlannerStep(d))
		hw.raw(`</main></body></html>`)
	})
}

// PlannerStep is the swappable body of the step. Every control inside it
// targets the section itself unless it says otherwise.
func PlannerStep(d PageData) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw(`<section id="planner-step" class="flex min-h-screen flex-col gap-3" hx-target="this" hx-swap="outerHTML">`)
		hw.render(tripSummary(d.Trip))
		hw.raw(`<h2 class="text-xl font-semibold">추천 장소 검색</h2>`)
		hw.render(AlertBox(d.Alert, d.Trip.StartingLocation != nil))
		hw.render(tripContextForm(d.Trip))
		hw.render(filterBar(d))
		hw.render(searchBox(d))
		hw.render(resultPanel(d))
		hw.render(SelectionSummary(d.Selected, false))
		hw.raw(`</section>`)
	})
}

func tripSummary(tc models.TripContext) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw(`<div id="trip-summary" class="text-sm text-gray-600">`)
		hw.raw(`<p data-role="trip-date">`)
		hw.text(models.FormatTripDate(tc.TripDate))
		hw.raw(`</p><p data-role="starting-point">`)
		hw.text(tc.StartingPoint)
		hw.raw(`</p></div>`)
	})
}

// AlertBox renders alert, or an empty slot when there is none. Load
// failures get a retry button.
func AlertBox(alert *Alert, canRetry bool) templ.Component {
	return component(func(hw *htmlWriter) {
		if alert == nil {
			hw.raw(`<div id="planner-alert"></div>`)
			return
		}
		class := "flex items-center justify-between rounded-md border px-3 py-2 text-sm"
		if alert.Kind == AlertWarning {
			class = twmerge.Merge(class, "border-amber-300 bg-amber-50 text-amber-800")
		} else {
			class = twmerge.Merge(class, "border-red-300 bg-red-50 text-red-800")
		}
		hw.raw(`<div id="planner-alert" role="alert"`)
		hw.attr("class", class)
		hw.attr("data-kind", string(alert.Kind))
		hw.raw(`><span data-role="message">`)
		hw.text(alert.Message)
		hw.raw(`</span>`)
		if canRetry && alert.Kind == AlertError {
			hw.render(button(buttonProps{
				Variant: variantGhost,
				Small:   true,
				Attrs:   []attr{{"hx-post", "/planner/reload"}, {"data-role", "retry"}},
			}, "다시 시도"))
		}
		hw.raw(`</div>`)
	})
}

func tripContextForm(tc models.TripContext) templ.Component {
	return component(func(hw *htmlWriter) {
		var lat, lng, label string
		if loc := tc.StartingLocation; loc != nil {
			lat = strconv.FormatFloat(loc.Latitude, 'f', -1, 64)
			lng = strconv.FormatFloat(loc.Longitude, 'f', -1, 64)
			label = loc.Label
		}
		hw.raw(`<details class="rounded-md border bg-white px-3 py-2"><summary class="cursor-pointer text-sm">여행 정보</summary>`)
		hw.raw(`<form id="trip-context" class="mt-2 grid grid-cols-2 gap-2 text-sm" hx-post="/planner/context">`)
		field := func(name, kind, placeholder, value string) {
			hw.raw(`<input class="rounded border px-2 py-1"`)
			hw.attr("name", name)
			hw.attr("type", kind)
			hw.attr("placeholder", placeholder)
			hw.attr("value", value)
			if kind == "number" {
				hw.raw(` step="any"`)
			}
			hw.raw(`>`)
		}
		field("tripDate", "date", "여행 날짜", models.FormatTripDate(tc.TripDate))
		field("startingPoint", "text", "출발지", tc.StartingPoint)
		field("lat", "number", "위도", lat)
		field("lng", "number", "경도", lng)
		field("label", "text", "위치 이름", label)
		field("inputLocation", "text", "입력한 위치", tc.InputLocation)
		hw.render(button(buttonProps{Type: "submit", Small: true, Class: "col-span-2"}, "적용"))
		hw.raw(`</form></details>`)
	})
}

func filterBar(d PageData) templ.Component {
	return component(func(hw *htmlWriter) {
		active := d.View.ActiveFilter
		hw.raw(`<div id="planner-filters" class="mb-2 flex flex-wrap gap-1">`)
		for _, kw := range d.Keywords {
			on := active.IsActive(models.KeywordFilter(kw))
			variant := variantOutline
			if on {
				variant = variantDefault
			}
			hw.render(button(buttonProps{
				Variant:  variant,
				Small:    true,
				Disabled: d.View.Loading,
				Attrs: []attr{
					{"hx-post", "/planner/filters/keyword/" + url.PathEscape(kw)},
					{"data-filter", kw},
					{"aria-pressed", strconv.FormatBool(on)},
				},
			}, kw))
		}

		on := active.IsActive(models.TodayPick)
		variant := variantSecondaryOutline
		if on {
			variant = variantSecondary
		}
		hw.render(button(buttonProps{
			Variant:  variant,
			Small:    true,
			Disabled: d.View.Loading,
			Attrs: []attr{
				{"hx-post", "/planner/filters/today"},
				{"data-filter", "today"},
				{"aria-pressed", strconv.FormatBool(on)},
			},
		}, todayLabel))

		if !active.IsNone() || d.View.Searched {
			hw.render(button(buttonProps{
				Variant: variantGhost,
				Small:   true,
				Attrs:   []attr{{"hx-post", "/planner/filters/clear"}, {"data-filter", "clear"}},
			}, "전체 보기"))
		}
		hw.raw(`</div>`)
	})
}

func searchBox(d PageData) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw(`<form id="planner-search" class="mb-2 flex items-start gap-2" hx-post="/planner/search" hx-indicator="#planner-spinner">`)
		hw.raw(`<textarea name="query" rows="1" class="w-full resize-none rounded-md border px-3 py-2"`)
		hw.attr("placeholder", searchPlaceholder)
		hw.raw(` onkeydown="if(event.key==='Enter'&&!event.shiftKey){event.preventDefault();this.form.requestSubmit();}">`)
		hw.text(d.View.Query)
		hw.raw(`</textarea>`)
		hw.render(button(buttonProps{
			Type:     "submit",
			Variant:  variantGhost,
			Disabled: d.View.Loading,
			Attrs:    []attr{{"aria-label", "검색"}},
		}, "검색"))
		hw.raw(`</form>`)
	})
}

func spinner(id string) string {
	return `<div id="` + id + `" class="htmx-indicator my-4 flex justify-center"><div class="h-8 w-8 animate-spin rounded-full border-4 border-blue-600 border-t-transparent"></div></div>`
}

func resultPanel(d PageData) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw(`<div id="planner-results" class="flex-1">`)
		hw.raw(spinner("planner-spinner"))

		switch {
		case d.View.Loading:
			// poll until the in-flight request has landed
			hw.raw(`<div data-role="loading" class="my-4 flex justify-center" hx-get="/planner" hx-trigger="load delay:700ms">`)
			hw.raw(`<div class="h-8 w-8 animate-spin rounded-full border-4 border-blue-600 border-t-transparent"></div></div>`)
		case len(d.View.Displayed) == 0:
			hw.raw(`<p data-role="empty" class="py-8 text-center text-gray-500">`)
			if d.View.Location == nil {
				hw.text("출발 위치를 선택하면 추천 장소가 표시됩니다.")
			} else {
				hw.text("추천 장소가 없습니다.")
			}
			hw.raw(`</p>`)
		default:
			hw.raw(`<p data-role="result-count" class="text-sm text-gray-500">`)
			if d.View.Searched {
				hw.text("검색 결과 ")
			}
			hw.text(fmt.Sprintf("%d곳", len(d.View.Displayed)))
			hw.raw(`</p><ul id="place-list" class="h-[700px] overflow-y-auto">`)
			hw.render(ListChunk(d, 0))
			hw.raw(`</ul>`)
		}
		hw.raw(`</div>`)
	})
}

// ListChunk renders one window of the displayed list starting at offset and
// a sentinel that loads the next window when scrolled into view.
func ListChunk(d PageData, offset int) templ.Component {
	return component(func(hw *htmlWriter) {
		places := d.View.Displayed
		if offset < 0 {
			offset = 0
		}
		if offset >= len(places) {
			return
		}
		size := d.PageSize
		if size <= 0 {
			size = len(places)
		}
		end := min(offset+size, len(places))
		for _, p := range places[offset:end] {
			hw.render(PlaceRow(p, d.IsSelected(p.Name)))
		}
		if end < len(places) {
			hw.raw(`<li data-role="more" class="py-3 text-center text-sm text-gray-400" hx-trigger="revealed" hx-target="this"`)
			hw.attr("hx-get", "/planner/list?offset="+strconv.Itoa(end))
			hw.raw(`>불러오는 중…</li>`)
		}
	})
}

// PlaceRow is one list entry with its selection toggle.
func PlaceRow(p models.Place, selected bool) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw(`<li class="flex items-center justify-between border-b border-gray-200 px-2 py-3"`)
		hw.attr("data-place", p.Name)
		hw.raw(`><div class="mr-4 shrink-0"><img class="h-16 w-16 rounded-md object-cover" loading="lazy"`)
		hw.attr("src", p.ImageSrc())
		hw.attr("alt", p.Name)
		hw.raw(`></div><div class="flex-1"><p data-role="name" class="font-bold">`)
		hw.text(p.Name)
		hw.raw(`</p><p data-role="subtitle" class="text-sm text-gray-500">`)
		hw.text(p.Subtitle())
		hw.raw(`</p><p data-role="summary" class="mt-1 text-sm">`)
		hw.text(p.Summary())
		hw.raw(`</p></div>`)

		hw.raw(`<form hx-post="/planner/selection/toggle" hx-target="closest li" hx-swap="outerHTML">`)
		hw.raw(`<input type="hidden" name="name"`)
		hw.attr("value", p.Name)
		hw.raw(`>`)
		variant, label := variantOutline, "+"
		if selected {
			variant, label = variantDefault, "✓ 선택됨"
		}
		hw.render(button(buttonProps{
			Type:    "submit",
			Variant: variant,
			Small:   true,
			Attrs:   []attr{{"data-role", "toggle"}, {"aria-pressed", strconv.FormatBool(selected)}},
		}, label))
		hw.raw(`</form></li>`)
	})
}

// SelectionSummary lists the selected places. oob marks it for an htmx
// out-of-band swap.
func SelectionSummary(selected []models.Place, oob bool) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw(`<aside id="selection-summary" class="rounded-md border bg-white px-3 py-2 text-sm"`)
		if oob {
			hw.raw(` hx-swap-oob="true"`)
		}
		hw.raw(`><p data-role="selection-count">`)
		hw.text(fmt.Sprintf("선택한 장소 %d곳", len(selected)))
		hw.raw(`</p><ul class="mt-1 flex flex-wrap gap-1">`)
		for _, p := range selected {
			hw.raw(`<li class="flex items-center gap-1 rounded bg-blue-50 px-2 py-0.5 text-blue-700"`)
			hw.attr("data-selected", p.Name)
			hw.raw(`><span>`)
			hw.text(p.Name)
			hw.raw(`</span><form hx-post="/planner/selection/remove" class="inline"><input type="hidden" name="name"`)
			hw.attr("value", p.Name)
			hw.raw(`>`)
			hw.render(button(buttonProps{
				Type:    "submit",
				Variant: variantGhost,
				Small:   true,
				Class:   "h-5 px-1",
				Attrs:   []attr{{"data-role", "remove"}, {"aria-label", p.Name + " 선택 해제"}},
			}, "×"))
			hw.raw(`</form></li>`)
		}
		hw.raw(`</ul></aside>`)
	})
}
