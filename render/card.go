// Package render draws shareable PNG status cards for battles.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/sketchmon/arena/game/arena"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const (
	CardW = 640
	CardH = 360

	panelW   = 280
	panelH   = 220
	panelY   = 70
	barH     = 14
	padding  = 20
	titleSz  = 26
	labelSz  = 16
	detailSz = 13
)

var (
	bgColor     = ParseHexColor("#1E1F29")
	panelColor  = ParseHexColor("#2C2F3F")
	textColor   = ParseHexColor("#ECF0F1")
	mutedColor  = ParseHexColor("#95A5A6")
	healthColor = ParseHexColor("#2ECC71")
	lowColor    = ParseHexColor("#E74C3C")
	energyColor = ParseHexColor("#3498DB")
	winColor    = ParseHexColor("#F1C40F")

	typeColors = map[string]color.RGBA{
		"Fight":  ParseHexColor("#E67E22"),
		"Fright": ParseHexColor("#8E44AD"),
		"Fairy":  ParseHexColor("#FF79C6"),
	}
)

// Faces are parsed once; opentype faces are not safe for concurrent use,
// so each card builds its own from the shared fonts.
var (
	fontsOnce   sync.Once
	fontsErr    error
	regularFont *opentype.Font
	boldFont    *opentype.Font
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if regularFont, fontsErr = opentype.Parse(goregular.TTF); fontsErr != nil {
			return
		}
		boldFont, fontsErr = opentype.Parse(gobold.TTF)
	})
	return fontsErr
}

func face(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// ParseHexColor converts #RRGGBB or #RRGGBBAA to a color.
func ParseHexColor(s string) color.RGBA {
	c := color.RGBA{0, 0, 0, 255}
	switch len(s) {
	case 7:
		fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 9:
		fmt.Sscanf(s, "#%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	}
	return c
}

type side struct {
	name          string
	kind          string
	health, maxHP int
	energy        int
	attack        int
	defense       int
	speed         int
	winner        bool
}

// BattleCard draws the current state of a battle.
func BattleCard(v *arena.BattleView, startEnergy int) (image.Image, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}
	title, err := face(boldFont, titleSz)
	if err != nil {
		return nil, err
	}
	label, err := face(boldFont, labelSz)
	if err != nil {
		return nil, err
	}
	detail, err := face(regularFont, detailSz)
	if err != nil {
		return nil, err
	}

	b := v.Battle
	player := side{
		name: v.Monster.Name, kind: v.Monster.Type,
		health: b.PlayerHealth, maxHP: v.Monster.Health, energy: b.PlayerEnergy,
		attack: v.Monster.Attack, defense: v.Monster.Defense, speed: v.Monster.Speed,
		winner: b.Winner == "player",
	}
	opp := side{
		name: v.Opponent.Name, kind: v.Opponent.Type,
		health: b.OppHealth, maxHP: v.Opponent.Health, energy: b.OppEnergy,
		attack: v.Opponent.Attack, defense: v.Opponent.Defense, speed: v.Opponent.Speed,
		winner: b.Winner == "opponent",
	}

	dc := gg.NewContext(CardW, CardH)
	dc.SetColor(bgColor)
	dc.Clear()

	dc.SetFontFace(title)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(fmt.Sprintf("Battle #%d  ·  Turn %d", b.ID, b.Turn), CardW/2, 35, 0.5, 0.5)

	drawSide(dc, label, detail, padding, player, startEnergy)
	drawSide(dc, label, detail, CardW-padding-panelW, opp, startEnergy)

	dc.SetFontFace(label)
	dc.SetColor(mutedColor)
	dc.DrawStringAnchored("VS", CardW/2, panelY+panelH/2, 0.5, 0.5)

	dc.SetFontFace(detail)
	if b.Winner != "" {
		dc.SetColor(winColor)
	}
	dc.DrawStringAnchored(v.Outcome, CardW/2, CardH-25, 0.5, 0.5)
	return dc.Image(), nil
}

func drawSide(dc *gg.Context, label, detail font.Face, x float64, s side, startEnergy int) {
	dc.SetColor(panelColor)
	dc.DrawRoundedRectangle(x, panelY, panelW, panelH, 12)
	dc.Fill()
	if s.winner {
		dc.SetColor(winColor)
		dc.SetLineWidth(3)
		dc.DrawRoundedRectangle(x, panelY, panelW, panelH, 12)
		dc.Stroke()
	}

	inner := x + padding
	dc.SetFontFace(label)
	dc.SetColor(textColor)
	dc.DrawString(truncate(s.name, 24), inner, panelY+35)

	tc, ok := typeColors[s.kind]
	if !ok {
		tc = mutedColor
	}
	dc.SetFontFace(detail)
	dc.SetColor(tc)
	dc.DrawString(s.kind, inner, panelY+58)

	w := float64(panelW - 2*padding)
	healthFill := healthColor
	if s.maxHP > 0 && s.health*4 < s.maxHP {
		healthFill = lowColor
	}
	drawBar(dc, inner, panelY+80, w, s.health, s.maxHP, healthFill)
	dc.SetColor(textColor)
	dc.DrawString(fmt.Sprintf("HP %d / %d", max(s.health, 0), s.maxHP), inner, panelY+112)

	drawBar(dc, inner, panelY+125, w, s.energy, startEnergy, energyColor)
	dc.SetColor(textColor)
	dc.DrawString(fmt.Sprintf("EN %d", s.energy), inner, panelY+157)

	dc.SetColor(mutedColor)
	dc.DrawString(fmt.Sprintf("ATK %d   DEF %d   SPD %d", s.attack, s.defense, s.speed), inner, panelY+190)
}

func drawBar(dc *gg.Context, x, y, w float64, current, total int, fill color.Color) {
	dc.SetColor(bgColor)
	dc.DrawRoundedRectangle(x, y, w, barH, barH/2)
	dc.Fill()
	if total <= 0 || current <= 0 {
		return
	}
	frac := float64(current) / float64(total)
	if frac > 1 {
		frac = 1
	}
	dc.SetColor(fill)
	dc.DrawRoundedRectangle(x, y, w*frac, barH, barH/2)
	dc.Fill()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// EncodePNG renders img into a PNG byte slice.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	dc := gg.NewContextForImage(img)
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
