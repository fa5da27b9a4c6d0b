// Package report renders a completed diagnostic session as a PDF summary
// suitable for handing to a clinician.
package report

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/signintech/gopdf"

	"github.com/curax/triage/internal/session"
)

// fontPaths are tried in order; DejaVuSans ships with most distributions.
var fontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// Generator renders session reports.
type Generator struct {
	Disclaimer string
	FontPath   string
	Logger     *slog.Logger
}

// Generate renders the session's assessment and transcript summary as a
// PDF and returns its bytes.
func (g *Generator) Generate(s *session.Session) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := g.loadFont(&pdf); err != nil {
		return nil, err
	}

	if err := pdf.SetFont("report", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Diagnostic Session Report")
	pdf.Br(30)

	if err := pdf.SetFont("report", "", 12); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Date: %s", time.Now().Format("2006-01-02 15:04")))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Session: %s", s.ID))
	pdf.Br(15)
	if s.PatientRef != "" {
		pdf.Cell(nil, fmt.Sprintf("Patient ref: %s", s.PatientRef))
		pdf.Br(15)
	}
	pdf.Cell(nil, fmt.Sprintf("Status: %s    Turns: %d    Urgency: %s",
		s.Status, s.TurnCount, s.Context.Assessment.Urgency))
	pdf.Br(25)

	if err := g.section(&pdf, "Reported symptoms"); err != nil {
		return nil, err
	}
	if len(s.Context.Symptoms) == 0 {
		if err := g.line(&pdf, "- none recorded"); err != nil {
			return nil, err
		}
	}
	for _, symptom := range s.Context.Symptoms {
		detail := symptom
		if s.Context.Duration != "" {
			detail = fmt.Sprintf("%s (duration: %s)", symptom, s.Context.Duration)
		}
		if err := g.line(&pdf, "- "+detail); err != nil {
			return nil, err
		}
	}
	if len(s.Context.Location) > 0 {
		if err := g.line(&pdf, "- location: "+strings.Join(s.Context.Location, ", ")); err != nil {
			return nil, err
		}
	}
	pdf.Br(15)

	if err := g.section(&pdf, "Possible conditions"); err != nil {
		return nil, err
	}
	if len(s.Context.Assessment.PossibleConditions) == 0 {
		if err := g.line(&pdf, "- no candidate conditions identified"); err != nil {
			return nil, err
		}
	}
	for _, c := range s.Context.Assessment.PossibleConditions {
		if err := g.line(&pdf, fmt.Sprintf("- %s (%.0f%%): %s", c.Condition, c.Probability*100, c.Description)); err != nil {
			return nil, err
		}
	}
	pdf.Br(15)

	if len(s.Context.Assessment.Recommendations) > 0 {
		if err := g.section(&pdf, "Recommendations"); err != nil {
			return nil, err
		}
		for _, rec := range s.Context.Assessment.Recommendations {
			if err := g.line(&pdf, "- "+rec); err != nil {
				return nil, err
			}
		}
		pdf.Br(15)
	}

	if g.Disclaimer != "" {
		if err := pdf.SetFont("report", "", 9); err != nil {
			return nil, err
		}
		lines, _ := pdf.SplitText(g.Disclaimer, 500)
		for _, l := range lines {
			pdf.Cell(nil, l)
			pdf.Br(11)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) loadFont(pdf *gopdf.GoPdf) error {
	paths := fontPaths
	if g.FontPath != "" {
		paths = append([]string{g.FontPath}, paths...)
	}
	var lastErr error
	for _, path := range paths {
		if err := pdf.AddTTFFont("report", path); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("load report font (install ttf-dejavu or set FontPath): %w", lastErr)
}

func (g *Generator) section(pdf *gopdf.GoPdf, title string) error {
	if err := pdf.SetFont("report", "", 14); err != nil {
		return err
	}
	pdf.Cell(nil, title)
	pdf.Br(15)
	return pdf.SetFont("report", "", 11)
}

func (g *Generator) line(pdf *gopdf.GoPdf, text string) error {
	lines, _ := pdf.SplitText(text, 500)
	for _, l := range lines {
		pdf.Cell(nil, l)
		pdf.Br(12)
	}
	return nil
}
