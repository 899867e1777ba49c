package platform

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/homedash/presenced/config"
	"github.com/homedash/presenced/display"
	"github.com/homedash/presenced/logging"
	"github.com/homedash/presenced/sensor"
	"github.com/homedash/presenced/util"
)

const gaugeWidth = 60

// TUIPlatform simulates the whole sensor and display setup on a
// terminal: a simulated subject walks toward or away from the sensor, a
// brightness gauge stands in for the backlight, and the log pane shows
// what the core is doing.
type TUIPlatform struct {
	config *config.Config

	proximity   *sensor.SimulatedProximity
	light       *sensor.SimulatedLight
	environment *sensor.SimulatedEnvironment
	backlight   *tuiBacklight

	tviewapp     *tview.Application
	intro        *tview.TextView
	gauge        *tview.TextView
	logView      *tview.TextView
	ossignalChan chan os.Signal
	logFlushOnce sync.Once
	readyChan    chan bool
	stopChan     chan struct{}

	lux      float64
	faulting bool
}

func NewTUIPlatform(conf *config.Config, ossignalchan chan os.Signal) *TUIPlatform {
	return &TUIPlatform{
		config:       conf,
		ossignalChan: ossignalchan,
		readyChan:    make(chan bool),
		stopChan:     make(chan struct{}),
		lux:          250,
	}
}

func (s *TUIPlatform) Ready() <-chan bool {
	return s.readyChan
}

func (s *TUIPlatform) Start() error {
	s.proximity = sensor.NewSimulatedProximity()
	s.light = sensor.NewSimulatedLight()
	s.environment = sensor.NewSimulatedEnvironment()
	s.backlight = newTuiBacklight(s.config.Display.MaxBrightness)

	s.initSimulationTUI()

	go s.gaugeDriver()
	return nil
}

func (s *TUIPlatform) Stop() {
	close(s.stopChan)
	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

func (s *TUIPlatform) Proximity() sensor.ProximitySource     { return s.proximity }
func (s *TUIPlatform) Light() sensor.LightSource             { return s.light }
func (s *TUIPlatform) Environment() sensor.EnvironmentSource { return s.environment }
func (s *TUIPlatform) Brightness() display.Channel           { return s.backlight }

// getIntroText generates the dynamic text for the top info pane.
func (s *TUIPlatform) getIntroText() string {
	fault := "off"
	if s.faulting {
		fault = "[#ff0000]ON[white]"
	}
	line1 := fmt.Sprintf("Ambient light: [#ffff00]%-6.0f[white]lx | Hit [#ff0000]+[white]/[#ff0000]-[white] to change | Sensor fault: %s ([#ff0000]f[white] toggles)", s.lux, fault)
	line2 := "Hit [blue]a[-] to approach the display, [blue]l[-] to leave"
	line3 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"
	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

func (s *TUIPlatform) initSimulationTUI() {
	s.tviewapp = tview.NewApplication()

	// --- Intro Pane ---
	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(" presenced Simulation ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	// --- Brightness Gauge Pane ---
	s.gauge = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.gauge.SetBorder(true).SetTitle(" Display Brightness ").SetTitleColor(tcell.ColorLightBlue)
	s.gauge.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))
	s.gauge.SetText(renderGauge(0, s.backlight.Max()))

	// --- Log Pane ---
	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// --- Layout ---
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 5, 0, false).
		AddItem(s.gauge, 4, 0, false).
		AddItem(s.logView, 0, 1, true)

	// --- Flush logs after first draw ---
	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logWriter := tview.ANSIWriter(s.logView)
			logging.SetOutput(logWriter)
			close(s.readyChan)
		})
	})

	// --- Input Handling ---
	s.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			s.tviewapp.Stop()
			s.ossignalChan <- os.Interrupt
			return nil
		case tcell.KeyRune:
			switch string(event.Rune()) {
			case "a", "A":
				s.proximity.SetTargetDistance(250)
				return nil
			case "l", "L":
				s.proximity.SetTargetDistance(3000)
				return nil
			case "f", "F":
				s.faulting = !s.faulting
				s.proximity.SetFaulting(s.faulting)
				s.intro.SetText(s.getIntroText())
				return nil
			case "+":
				s.lux = s.light.AdjustLux(25)
				s.intro.SetText(s.getIntroText())
				return nil
			case "-":
				s.lux = s.light.AdjustLux(-25)
				s.intro.SetText(s.getIntroText())
				return nil
			case "q", "Q":
				s.ossignalChan <- os.Interrupt
				return nil
			case "r", "R":
				s.ossignalChan <- syscall.SIGHUP
				return nil
			}
		case tcell.KeyUp:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row+1, col)
			return nil
		}
		return event
	})

	// --- Start TUI ---
	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
}

// gaugeDriver coalesces the high-frequency brightness writes of a fade
// into screen redraws. Latest value wins; intermediate ones are skipped
// when the terminal can't keep up.
func (s *TUIPlatform) gaugeDriver() {
	for {
		select {
		case <-s.stopChan:
			return
		case <-s.backlight.updates.Channel():
			value := s.backlight.updates.Value()
			s.tviewapp.QueueUpdateDraw(func() {
				s.gauge.SetText(renderGauge(value, s.backlight.Max()))
			})
		}
	}
}

// renderGauge draws the brightness bar.
func renderGauge(value, max int) string {
	if max < 1 {
		max = 1
	}
	filled := value * gaugeWidth / max
	percent := value * 100 / max

	var buf strings.Builder
	buf.WriteString(" [#ffff00]")
	buf.WriteString(strings.Repeat("█", filled))
	buf.WriteString("[#444444]")
	buf.WriteString(strings.Repeat("░", gaugeWidth-filled))
	buf.WriteString(fmt.Sprintf("[white] %3d%% (%d/%d)", percent, value, max))
	return buf.String()
}

// tuiBacklight is the simulated brightness channel. Writes are tracked
// like the real sysfs file and published to the gauge driver.
type tuiBacklight struct {
	mu      sync.Mutex
	max     int
	current int
	updates *util.AtomicEvent[int]
}

func newTuiBacklight(max int) *tuiBacklight {
	if max < 1 {
		max = 255
	}
	return &tuiBacklight{max: max, updates: util.NewAtomicEvent[int]()}
}

func (b *tuiBacklight) ReadCurrent() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, nil
}

func (b *tuiBacklight) Write(value int) error {
	if value < 0 || value > b.max {
		return fmt.Errorf("brightness %d outside [0,%d]", value, b.max)
	}
	b.mu.Lock()
	b.current = value
	b.mu.Unlock()
	b.updates.Send(value)
	return nil
}

func (b *tuiBacklight) Max() int { return b.max }
