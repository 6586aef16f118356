// The dash binary is a desktop dashboard for the task service: bucketed
// task list with optimistic completion, month calendar, and settings.
package main

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"os"
	"time"

	"gioui.org/app"
	"gioui.org/font"
	"gioui.org/font/gofont"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"github.com/sabr2007/smart-tasker-bot/pkg/dash"
	"github.com/sabr2007/smart-tasker-bot/pkg/schedule"
	"github.com/sabr2007/smart-tasker-bot/pkg/task"
	"github.com/sabr2007/smart-tasker-bot/pkg/user"
)

var theme *material.Theme

// Pages
const (
	pageTasks = iota
	pageCalendar
	pageSettings
)

var bucketLabels = map[schedule.Bucket]string{
	schedule.BucketOverdue:    "Overdue",
	schedule.BucketDueToday:   "Due today",
	schedule.BucketUpcoming:   "Upcoming",
	schedule.BucketNoDeadline: "No deadline",
}

var bucketColors = map[schedule.Bucket]color.NRGBA{
	schedule.BucketOverdue:    {R: 0xFF, G: 0x40, B: 0x40, A: 0xFF},
	schedule.BucketDueToday:   {R: 0xFF, G: 0xA0, B: 0x00, A: 0xFF},
	schedule.BucketUpcoming:   {R: 0x00, G: 0xA0, B: 0xFF, A: 0xFF},
	schedule.BucketNoDeadline: {R: 0x80, G: 0x80, B: 0x80, A: 0xFF},
}

type UI struct {
	window   *app.Window
	client   *dash.Client
	snapshot *dash.Snapshot

	currentPage int
	timezone    string

	// Nav buttons
	navTasks    widget.Clickable
	navCalendar widget.Clickable
	navSettings widget.Clickable

	// Tasks page
	taskList      widget.List
	newTaskEditor widget.Editor
	deadlineEdit  widget.Editor
	createBtn     widget.Clickable
	completeBtn   map[string]*widget.Clickable
	lastError     string

	// Calendar page
	calYear       int
	calMonth      int
	calWeeksCache []schedule.GridRow
	prevMonthBtn  widget.Clickable
	nextMonthBtn  widget.Clickable

	// Settings page
	tzList widget.List
	tzBtns []widget.Clickable
	zones  []string
}

func main() {
	base := os.Getenv("TASKER_API_BASE")
	if base == "" {
		base = "http://localhost:8080"
	}
	initData := os.Getenv("TASKER_INIT_DATA")

	theme = material.NewTheme()
	theme.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))
	theme.Palette.Bg = color.NRGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xFF}
	theme.Palette.Fg = color.NRGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	theme.Palette.ContrastBg = color.NRGBA{R: 0x30, G: 0x60, B: 0xA0, A: 0xFF}
	theme.Palette.ContrastFg = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	now := time.Now()
	ui := &UI{
		client:      dash.NewClient(base, initData),
		snapshot:    dash.NewSnapshot(),
		completeBtn: make(map[string]*widget.Clickable),
		calYear:     now.Year(),
		calMonth:    int(now.Month()),
		zones:       user.CommonTimezones,
		timezone:    "UTC",
	}
	ui.taskList.Axis = layout.Vertical
	ui.tzList.Axis = layout.Vertical
	ui.newTaskEditor.SingleLine = true
	ui.deadlineEdit.SingleLine = true
	ui.tzBtns = make([]widget.Clickable, len(ui.zones))

	go ui.pollData()

	go func() {
		w := new(app.Window)
		w.Option(app.Title("smart-tasker"))
		w.Option(app.Size(unit.Dp(1000), unit.Dp(720)))
		ui.window = w
		if err := ui.run(w); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func (ui *UI) run(w *app.Window) error {
	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			ui.handleClicks(gtx)
			ui.layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

func (ui *UI) handleClicks(gtx layout.Context) {
	if ui.navTasks.Clicked(gtx) {
		ui.currentPage = pageTasks
	}
	if ui.navCalendar.Clicked(gtx) {
		ui.currentPage = pageCalendar
		go ui.fetchCalendar()
	}
	if ui.navSettings.Clicked(gtx) {
		ui.currentPage = pageSettings
	}
	if ui.createBtn.Clicked(gtx) {
		text := ui.newTaskEditor.Text()
		deadline := ui.deadlineEdit.Text()
		if text != "" {
			go ui.createTask(text, deadline)
			ui.newTaskEditor.SetText("")
			ui.deadlineEdit.SetText("")
		}
	}
	for id, btn := range ui.completeBtn {
		if btn.Clicked(gtx) {
			go ui.completeTask(id)
		}
	}
	if ui.prevMonthBtn.Clicked(gtx) {
		ui.calMonth--
		if ui.calMonth < 1 {
			ui.calMonth, ui.calYear = 12, ui.calYear-1
		}
		go ui.fetchCalendar()
	}
	if ui.nextMonthBtn.Clicked(gtx) {
		ui.calMonth++
		if ui.calMonth > 12 {
			ui.calMonth, ui.calYear = 1, ui.calYear+1
		}
		go ui.fetchCalendar()
	}
	for i := range ui.tzBtns {
		if i < len(ui.zones) && ui.tzBtns[i].Clicked(gtx) {
			go ui.setTimezone(ui.zones[i])
		}
	}
}

func (ui *UI) layout(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return ui.layoutNav(gtx)
		}),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.UniformInset(unit.Dp(16)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				switch ui.currentPage {
				case pageCalendar:
					return ui.layoutCalendar(gtx)
				case pageSettings:
					return ui.layoutSettings(gtx)
				default:
					return ui.layoutTasks(gtx)
				}
			})
		}),
	)
}

func (ui *UI) layoutNav(gtx layout.Context) layout.Dimensions {
	gtx.Constraints.Min.X = gtx.Dp(unit.Dp(160))
	gtx.Constraints.Max.X = gtx.Dp(unit.Dp(160))
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Top: unit.Dp(16), Bottom: unit.Dp(16), Left: unit.Dp(12)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				label := material.H6(theme, "tasker")
				label.Color = theme.Palette.ContrastFg
				return label.Layout(gtx)
			})
		}),
		layout.Rigid(navBtn(theme, &ui.navTasks, "Tasks", ui.currentPage == pageTasks)),
		layout.Rigid(navBtn(theme, &ui.navCalendar, "Calendar", ui.currentPage == pageCalendar)),
		layout.Rigid(navBtn(theme, &ui.navSettings, "Settings", ui.currentPage == pageSettings)),
	)
}

func navBtn(th *material.Theme, btn *widget.Clickable, label string, active bool) layout.Widget {
	return func(gtx layout.Context) layout.Dimensions {
		return layout.Inset{Top: unit.Dp(2), Bottom: unit.Dp(2), Left: unit.Dp(8), Right: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			b := material.Button(th, btn, label)
			if active {
				b.Background = th.Palette.ContrastBg
			} else {
				b.Background = color.NRGBA{A: 0}
			}
			b.Color = th.Palette.Fg
			return b.Layout(gtx)
		})
	}
}

// taskRow is one flattened list entry: a bucket header or a task.
type taskRow struct {
	header schedule.Bucket
	task   *task.Task
}

func (ui *UI) rows() []taskRow {
	groups := schedule.Bucketize(ui.snapshot.Tasks(), time.Now(), ui.timezone)
	var rows []taskRow
	for gi := range groups {
		rows = append(rows, taskRow{header: groups[gi].Bucket})
		for ti := range groups[gi].Tasks {
			rows = append(rows, taskRow{task: &groups[gi].Tasks[ti]})
		}
	}
	return rows
}

func (ui *UI) layoutTasks(gtx layout.Context) layout.Dimensions {
	rows := ui.rows()
	for _, row := range rows {
		if row.task != nil {
			if _, ok := ui.completeBtn[row.task.ID]; !ok {
				ui.completeBtn[row.task.ID] = &widget.Clickable{}
			}
		}
	}

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H5(theme, "Tasks").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{}.Layout(gtx,
				layout.Flexed(2, func(gtx layout.Context) layout.Dimensions {
					return material.Editor(theme, &ui.newTaskEditor, "New task...").Layout(gtx)
				}),
				layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
				layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
					return material.Editor(theme, &ui.deadlineEdit, "2026-01-15 18:00").Layout(gtx)
				}),
				layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return material.Button(theme, &ui.createBtn, "Add").Layout(gtx)
				}),
			)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			if ui.lastError == "" {
				return layout.Dimensions{}
			}
			label := material.Caption(theme, ui.lastError)
			label.Color = color.NRGBA{R: 0xFF, G: 0x40, B: 0x40, A: 0xFF}
			return label.Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.List(theme, &ui.taskList).Layout(gtx, len(rows), func(gtx layout.Context, i int) layout.Dimensions {
				row := rows[i]
				if row.task == nil {
					return layout.Inset{Top: unit.Dp(10), Bottom: unit.Dp(4)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
						label := material.Body1(theme, bucketLabels[row.header])
						label.Font.Weight = font.Bold
						label.Color = bucketColors[row.header]
						return label.Layout(gtx)
					})
				}
				return ui.layoutTaskRow(gtx, row.task)
			})
		}),
	)
}

func (ui *UI) layoutTaskRow(gtx layout.Context, t *task.Task) layout.Dimensions {
	return layout.Inset{Bottom: unit.Dp(4), Left: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Rigid(material.Body2(theme, t.Text).Layout),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						if t.DueAt == nil {
							return layout.Dimensions{}
						}
						label := material.Caption(theme, schedule.Denormalize(*t.DueAt, ui.timezone))
						label.Color = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
						return label.Layout(gtx)
					}),
				)
			}),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return material.Button(theme, ui.completeBtn[t.ID], "Done").Layout(gtx)
			}),
		)
	})
}

func (ui *UI) layoutCalendar(gtx layout.Context) layout.Dimensions {
	weeks := ui.calWeeksCache

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return material.Button(theme, &ui.prevMonthBtn, "<").Layout(gtx)
				}),
				layout.Rigid(layout.Spacer{Width: unit.Dp(16)}.Layout),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					title := fmt.Sprintf("%s %d", time.Month(ui.calMonth), ui.calYear)
					return material.H5(theme, title).Layout(gtx)
				}),
				layout.Rigid(layout.Spacer{Width: unit.Dp(16)}.Layout),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return material.Button(theme, &ui.nextMonthBtn, ">").Layout(gtx)
				}),
			)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(12)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return ui.layoutWeekdayHeader(gtx)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			children := make([]layout.FlexChild, 0, len(weeks))
			for wi := range weeks {
				week := weeks[wi]
				children = append(children, layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return ui.layoutWeek(gtx, week)
				}))
			}
			return layout.Flex{Axis: layout.Vertical}.Layout(gtx, children...)
		}),
	)
}

func (ui *UI) layoutWeekdayHeader(gtx layout.Context) layout.Dimensions {
	names := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	children := make([]layout.FlexChild, 0, 7)
	for _, name := range names {
		name := name
		children = append(children, layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			label := material.Caption(theme, name)
			label.Font.Weight = font.Bold
			return layout.Center.Layout(gtx, label.Layout)
		}))
	}
	return layout.Flex{}.Layout(gtx, children...)
}

func (ui *UI) layoutWeek(gtx layout.Context, week schedule.GridRow) layout.Dimensions {
	children := make([]layout.FlexChild, 0, 7)
	for ci := range week {
		cell := week[ci]
		children = append(children, layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			if cell.Blank {
				return layout.Dimensions{Size: gtx.Constraints.Min}
			}
			label := material.Body1(theme, fmt.Sprintf("%d", cell.Day))
			switch {
			case cell.IsToday:
				label.Color = theme.Palette.ContrastBg
				label.Font.Weight = font.Bold
			case cell.HasTasks:
				label.Color = color.NRGBA{R: 0xFF, G: 0xA0, B: 0x00, A: 0xFF}
				label.Font.Weight = font.Bold
			}
			return layout.Inset{Top: unit.Dp(8), Bottom: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				return layout.Center.Layout(gtx, label.Layout)
			})
		}))
	}
	return layout.Flex{}.Layout(gtx, children...)
}

func (ui *UI) layoutSettings(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H5(theme, "Settings").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.Body1(theme, "Timezone: "+ui.timezone).Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.List(theme, &ui.tzList).Layout(gtx, len(ui.zones), func(gtx layout.Context, i int) layout.Dimensions {
				return layout.Inset{Bottom: unit.Dp(2)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					b := material.Button(theme, &ui.tzBtns[i], ui.zones[i])
					if ui.zones[i] == ui.timezone {
						b.Background = theme.Palette.ContrastBg
					} else {
						b.Background = color.NRGBA{A: 0}
					}
					b.Color = theme.Palette.Fg
					return b.Layout(gtx)
				})
			})
		}),
	)
}

// Data fetching

func (ui *UI) pollData() {
	ui.fetchAll()
	ticker := time.NewTicker(10 * time.Second)
	for range ticker.C {
		ui.fetchAll()
	}
}

func (ui *UI) fetchAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if me, err := ui.client.Me(ctx); err == nil {
		ui.timezone = me.Timezone
	} else {
		log.Printf("fetch settings: %v", err)
	}

	tasks, err := ui.client.ActiveTasks(ctx)
	if err != nil {
		log.Printf("fetch tasks: %v", err)
		ui.lastError = err.Error()
	} else {
		ui.snapshot.Replace(tasks)
		ui.lastError = ""
	}
	ui.invalidate()
}

func (ui *UI) fetchCalendar() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	cal, err := ui.client.Calendar(ctx, ui.calYear, ui.calMonth)
	if err != nil {
		log.Printf("fetch calendar: %v", err)
		return
	}
	ui.calWeeksCache = cal.Weeks
	ui.invalidate()
}

func (ui *UI) createTask(text, deadline string) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if _, err := ui.client.CreateTask(ctx, text, deadline); err != nil {
		log.Printf("create task: %v", err)
		ui.lastError = err.Error()
	} else {
		ui.lastError = ""
	}
	if tasks, err := ui.client.ActiveTasks(ctx); err == nil {
		ui.snapshot.Replace(tasks)
	}
	ui.invalidate()
}

// completeTask applies the completion optimistically: the row disappears
// immediately and comes back if the server rejects it.
func (ui *UI) completeTask(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	m := ui.snapshot.ApplyComplete(id)
	ui.invalidate()

	err := ui.snapshot.Resolve(m,
		func() error {
			_, err := ui.client.Complete(ctx, id)
			return err
		},
		func() ([]task.Task, error) { return ui.client.ActiveTasks(ctx) },
	)
	if err != nil {
		log.Printf("complete task %s: %v", id, err)
		ui.lastError = err.Error()
	} else {
		ui.lastError = ""
	}
	ui.invalidate()
}

func (ui *UI) setTimezone(tz string) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	settings, err := ui.client.SetTimezone(ctx, tz)
	if err != nil {
		log.Printf("set timezone: %v", err)
		return
	}
	ui.timezone = settings.Timezone
	ui.invalidate()
}

func (ui *UI) invalidate() {
	if ui.window != nil {
		ui.window.Invalidate()
	}
}
