/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bottle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	BottleAsset = "img/bottle.svg"
	KissAsset   = "img/kiss.svg"

	defaultRadius       = 300.0
	narrowViewportWidth = 1000.0
)

// Scene is everything a browser needs to draw the table.
type Scene struct {
	Seats     []Seat    `json:"seats"`
	Bottle    Bottle    `json:"bottle"`
	Kiss      Overlay   `json:"kiss"`
	Countdown Countdown `json:"countdown"`
	KissCount int       `json:"kiss_count"`
	Controls  Controls  `json:"controls"`
}

type Seat struct {
	Src       string `json:"src"`
	Alt       string `json:"alt"`
	Class     string `json:"class"`
	Left      string `json:"left"`
	Top       string `json:"top"`
	Transform string `json:"transform"`
	ZIndex    string `json:"z_index"`
}

type Bottle struct {
	Src        string `json:"src"`
	Class      string `json:"class"`
	Transform  string `json:"transform"`
	Transition string `json:"transition"`
}

type Overlay struct {
	Visible bool   `json:"visible"`
	Src     string `json:"src"`
}

type Countdown struct {
	Visible bool `json:"visible"`
	Value   int  `json:"value"`
}

type Controls struct {
	StartDisabled bool   `json:"start_disabled"`
	PauseLabel    string `json:"pause_label"`
}

// Radius is the seating circle radius for a viewport. Unknown widths get the default.
func Radius(viewportWidth float64) float64 {
	if viewportWidth > 0 && viewportWidth < narrowViewportWidth {
		return viewportWidth / 4
	}

	return defaultRadius
}

// Render lays the table out for a viewport of the given width.
func Render(s Snapshot, viewportWidth float64) Scene {
	radius := Radius(viewportWidth)
	total := len(s.Players)

	seats := make([]Seat, 0, total)
	for i, player := range s.Players {
		angle := float64(i) / float64(total) * 2 * math.Pi
		x := radius * math.Cos(angle)
		y := radius * math.Sin(angle)

		previousFlying := s.Flying && s.PreviousPlayer != nil && *s.PreviousPlayer == i
		arrivingFlying := s.Flying && s.SelectedPlayer != nil && *s.SelectedPlayer == i

		classes := []string{"players"}
		if s.ActivePlayer == i {
			classes = append(classes, "active")
		}

		seat := Seat{
			Src:       player,
			Alt:       fmt.Sprintf("Player %d", i+1),
			Left:      "calc(41% + " + formatNumber(x) + "px)",
			Top:       "calc(40% + " + formatNumber(y) + "px)",
			Transform: "none",
			ZIndex:    "auto",
		}

		switch {
		case previousFlying:
			classes = append(classes, "move-center", "previous")
			seat.Left = "38%"
			seat.Top = "40%"
			seat.Transform = "translate(-50%, -50%)"
			seat.ZIndex = "1"
		case arrivingFlying:
			classes = append(classes, "move-center", "active")
			seat.Left = "62%"
			seat.Top = "40%"
			seat.Transform = "translate(-50%, -50%)"
			seat.ZIndex = "2"
		}

		seat.Class = strings.Join(classes, " ")
		seats = append(seats, seat)
	}

	bottle := Bottle{
		Src:        BottleAsset,
		Class:      "bottle",
		Transform:  "rotate(" + formatNumber(s.Rotation) + "deg)",
		Transition: "none",
	}
	if s.Spinning {
		bottle.Class = "bottle spin"
		bottle.Transition = "transform 4s ease-out"
	}

	pauseLabel := "Pause"
	if s.Paused {
		pauseLabel = "Resume"
	}

	return Scene{
		Seats:  seats,
		Bottle: bottle,
		Kiss: Overlay{
			Visible: s.ShowKiss,
			Src:     KissAsset,
		},
		Countdown: Countdown{
			Visible: s.Timer > 0,
			Value:   s.Timer,
		},
		KissCount: s.KissCount,
		Controls: Controls{
			StartDisabled: s.Started,
			PauseLabel:    pauseLabel,
		},
	}
}

// formatNumber formats v with at most two decimals and no negative zero.
func formatNumber(v float64) string {
	v = math.Round(v*100) / 100
	if v == 0 {
		v = 0
	}

	return strconv.FormatFloat(v, 'f', -1, 64)
}
