// Package console is the interactive command front end: a bubbletea
// program on a TTY, a plain line reader otherwise. All commands go through
// the coordinator's control surface.
package console

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"formationctl/internal/fleet"
)

// moveStep is the formation shift per directional command, meters.
const moveStep = 5.0

// defaultAltitude is the takeoff altitude when none is given, meters.
const defaultAltitude = 10.0

// Console drives a Coordinator from user commands.
type Console struct {
	coord *fleet.Coordinator
}

// New creates a console over the coordinator.
func New(c *fleet.Coordinator) *Console {
	return &Console{coord: c}
}

// Run blocks until the user quits or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return c.runLine(ctx)
	}
	m := newModel(ctx, c)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// runLine reads commands line by line without the TUI.
func (c *Console) runLine(ctx context.Context) error {
	fmt.Println("formation console (line mode); type 'help' for commands")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.dispatch(ctx, cmd, func(line string) { fmt.Println(line) })
	}
}

// dispatch executes one command, reporting lines through out. Blocking
// operations (arm, takeoff, land) run to completion in the caller's
// goroutine.
func (c *Console) dispatch(ctx context.Context, cmd string, out func(string)) {
	fields := strings.Fields(strings.ToLower(cmd))
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "arm":
		if err := c.coord.ArmAll(ctx); err != nil {
			out("arm failed: " + err.Error())
			return
		}
		out("all vehicles armed")
	case "takeoff":
		alt := defaultAltitude
		if len(fields) > 1 {
			if v, err := strconv.ParseFloat(fields[1], 64); err == nil && v > 0 {
				alt = v
			}
		}
		out(fmt.Sprintf("formation takeoff to %.1fm...", alt))
		if err := c.coord.TakeoffFormation(ctx, alt); err != nil {
			out("takeoff failed: " + err.Error())
			return
		}
		out("formation airborne")
	case "land":
		out("formation landing...")
		c.coord.LandFormation(ctx)
		out("formation landing complete")
	case "start":
		c.coord.Start(ctx)
		out("formation flying started")
	case "stop":
		c.coord.Stop(ctx)
		out("formation flying stopped")
	case "line", "triangle", "square", "circle", "diamond":
		if err := c.coord.SetPattern(fields[0]); err != nil {
			out(err.Error())
			return
		}
		out("pattern set to " + fields[0])
	case "forward":
		c.move(out, moveStep, 0, 0)
	case "backward":
		c.move(out, -moveStep, 0, 0)
	case "left":
		c.move(out, 0, moveStep, 0)
	case "right":
		c.move(out, 0, -moveStep, 0)
	case "up":
		c.move(out, 0, 0, moveStep)
	case "down":
		c.move(out, 0, 0, -moveStep)
	case "status":
		st := c.coord.Status()
		out(fmt.Sprintf("active=%t pattern=%s center=(%.1f,%.1f,%.1f) spacing=%.1fm vehicles=%d connected=%d",
			st.Active, st.Pattern, st.Center.X, st.Center.Y, st.Center.Z, st.SpacingM, st.Vehicles, st.Connected))
		for _, v := range c.coord.Vehicles() {
			out(fmt.Sprintf("  %s: %s/%s pos=(%.1f,%.1f,%.1f)", v.ID, v.Connection, v.Flight, v.Position.X, v.Position.Y, v.Position.Z))
		}
	case "help":
		out(helpText)
	default:
		out("unknown command: " + fields[0] + " (try 'help')")
	}
}

func (c *Console) move(out func(string), dx, dy, dz float64) {
	center := c.coord.MoveFormationBy(dx, dy, dz)
	out(fmt.Sprintf("formation center moved to (%.1f, %.1f, %.1f)", center.X, center.Y, center.Z))
}

const helpText = `commands:
  arm                       arm all vehicles
  takeoff [alt]             staggered formation takeoff
  land                      staggered formation landing
  start / stop              toggle formation flying
  line triangle square circle diamond
                            select the pattern
  forward backward left right up down
                            shift the formation center by 5m
  status                    show formation and vehicle state
  quit                      land is NOT implied; land first`
