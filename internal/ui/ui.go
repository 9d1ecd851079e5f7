package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/config"
	"github.com/doridoridoriand/nodeboard/internal/log"
	"github.com/doridoridoriand/nodeboard/internal/procman"
	"github.com/doridoridoriand/nodeboard/internal/state"
	"github.com/doridoridoriand/nodeboard/internal/sysmon"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
)

const (
	minBoxHeight    = 3
	messageLifetime = 5 * time.Second
)

// HealthSource is the connection monitor as seen by the dashboard.
type HealthSource interface {
	HealthData() map[string]state.HealthRecord
	CheckInProgress() bool
	ForceCheck() bool
	Settings() config.Settings
}

// HistorySource returns recent measurements for a node.
type HistorySource interface {
	History(name string) []state.Point
}

// SystemSource returns the latest host sample.
type SystemSource interface {
	Latest() sysmon.Sample
}

// ProcessSource lists and toggles automation scripts.
type ProcessSource interface {
	Status() []procman.Status
	Toggle(ctx context.Context, name string) error
}

// UI renders the dashboard. History, System and Processes may be nil.
type UI struct {
	health    HealthSource
	history   HistorySource
	system    SystemSource
	processes ProcessSource
	logger    *log.Logger

	message   string
	messageAt time.Time
	now       func() time.Time
}

// New returns a UI instance.
func New(health HealthSource, history HistorySource, system SystemSource, processes ProcessSource, logger *log.Logger) *UI {
	if logger == nil {
		logger = log.Nop()
	}
	return &UI{
		health:    health,
		history:   history,
		system:    system,
		processes: processes,
		logger:    logger,
		now:       time.Now,
	}
}

// Run blocks until the context is cancelled or the user quits.
func (u *UI) Run(ctx context.Context) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	screen.HideCursor()
	defer screen.Fini()

	return u.loop(ctx, screen)
}

func (u *UI) loop(ctx context.Context, screen tcell.Screen) error {
	eventCh := make(chan tcell.Event, 1)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	refresh := u.refreshInterval()
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	u.render(screen)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-eventCh:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if u.handleKey(ctx, ev.Key(), ev.Rune()) {
					return context.Canceled
				}
				u.render(screen)
			case *tcell.EventResize:
				screen.Sync()
				u.render(screen)
			}
		case <-ticker.C:
			if next := u.refreshInterval(); next != refresh {
				refresh = next
				ticker.Reset(refresh)
			}
			u.render(screen)
		}
	}
}

func (u *UI) refreshInterval() time.Duration {
	refresh := u.health.Settings().Refresh()
	if refresh <= 0 {
		refresh = config.DefaultSettings().Refresh()
	}
	return refresh
}

// handleKey applies a key press and reports whether the UI should exit.
func (u *UI) handleKey(ctx context.Context, key tcell.Key, r rune) bool {
	if key == tcell.KeyCtrlC || key == tcell.KeyEscape {
		return true
	}
	if key != tcell.KeyRune {
		return false
	}

	switch {
	case r == 'q' || r == 'Q':
		return true
	case r == 'f' || r == 'F':
		if u.health.ForceCheck() {
			u.flash("force check started")
		} else {
			u.flash("check already running")
		}
	case r >= '1' && r <= '9':
		u.toggleScript(ctx, int(r-'1'))
	}
	return false
}

func (u *UI) toggleScript(ctx context.Context, index int) {
	if u.processes == nil {
		return
	}
	statuses := u.processes.Status()
	if index >= len(statuses) {
		u.flash(fmt.Sprintf("no script bound to key %d", index+1))
		return
	}
	name := statuses[index].Name
	wasRunning := statuses[index].State == procman.StateRunning
	if err := u.processes.Toggle(ctx, name); err != nil {
		u.logger.Warn(log.CategoryUI, "script toggle failed", zap.String("script", name), zap.Error(err))
		if errors.Is(err, procman.ErrNotRunning) {
			u.flash(fmt.Sprintf("%s already finished", name))
			return
		}
		u.flash(fmt.Sprintf("%s: %v", name, err))
		return
	}
	if wasRunning {
		u.flash(fmt.Sprintf("stopping %s", name))
	} else {
		u.flash(fmt.Sprintf("started %s", name))
	}
}

func (u *UI) flash(message string) {
	u.message = message
	u.messageAt = u.now()
}

func (u *UI) currentMessage() string {
	if u.message == "" || u.now().Sub(u.messageAt) > messageLifetime {
		return ""
	}
	return u.message
}

func (u *UI) render(screen tcell.Screen) {
	settings := u.health.Settings()
	theme := ThemeByName(settings.Theme)
	now := u.now()

	screen.SetStyle(theme.Base)
	screen.Clear()
	width, height := screen.Size()
	if width < 20 || height < 6 {
		screen.Show()
		return
	}

	data := u.health.HealthData()
	header := fmt.Sprintf(" nodeboard  %s  (f: force check  1-9: scripts  q: quit)", now.Format("2006-01-02 15:04:05"))
	drawText(screen, 0, 0, width, header, theme.Header)
	drawText(screen, 0, 1, width, formatConfigInfo(settings, u.health.CheckInProgress()), theme.Muted)
	if u.system != nil {
		drawText(screen, 0, 2, width, formatSystemLine(u.system.Latest()), theme.Base)
	}
	drawText(screen, 0, 3, width, formatSummary(data), theme.Base)

	bottom := height - 1
	y := 4
	if u.processes != nil {
		y = u.drawScripts(screen, y, width, bottom, theme, now)
	}

	var history func(string) []state.Point
	if u.history != nil {
		history = u.history.History
	}
	groups := groupNodes(data, history)
	if len(groups) == 0 && bottom-y > 0 {
		drawText(screen, 1, y, width-1, "no node results yet", theme.Muted)
	}
	for _, group := range groups {
		if bottom-y < minBoxHeight {
			break
		}
		boxHeight := min(len(group.Nodes)+2, bottom-y)
		u.drawGroupBox(screen, 0, y, width, boxHeight, group, theme, now)
		y += boxHeight
	}

	if msg := u.currentMessage(); msg != "" {
		drawText(screen, 0, bottom, width, " "+msg, theme.Notice)
	}
	screen.Show()
}

func (u *UI) drawScripts(screen tcell.Screen, y, width, bottom int, theme Theme, now time.Time) int {
	statuses := u.processes.Status()
	if len(statuses) == 0 || bottom-y < minBoxHeight {
		return y
	}
	boxHeight := min(len(statuses)+2, bottom-y)
	drawBox(screen, 0, y, width, boxHeight, theme.Border)
	drawTitle(screen, 2, y, width-4, " scripts ", theme.Header)
	for i := 0; i < len(statuses) && i < boxHeight-2 && i < 9; i++ {
		line := formatScriptLine(i+1, statuses[i], now)
		drawText(screen, 1, y+1+i, width-2, line, scriptStyle(theme, statuses[i].State))
	}
	return y + boxHeight
}

func (u *UI) drawGroupBox(screen tcell.Screen, x, y, width, height int, group nodeGroup, theme Theme, now time.Time) {
	drawBox(screen, x, y, width, height, theme.Border)

	title := fmt.Sprintf(" %s (%d) ", group.Name, len(group.Nodes))
	drawTitle(screen, x+2, y, width-4, title, theme.Header)

	if height <= 2 {
		return
	}
	maxRows := height - 2
	for i := 0; i < len(group.Nodes) && i < maxRows; i++ {
		line := formatNodeLine(width-2, group.Nodes[i], theme, now)
		drawStyledText(screen, x+1, y+1+i, width-2, line, theme.Base)
	}
}
