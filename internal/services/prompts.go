package services

import (
	"fmt"
	"strings"

	"github.com/solarscope/backend/internal/models"
)

// RoofInput is the optional hint set sent with an installation analysis.
type RoofInput struct {
	RoofSize  int    `json:"roofSize,omitempty"` // square feet
	RoofShape string `json:"roofShape"`
	PanelSize string `json:"panelSize"`
}

var (
	roofShapes = []string{"gable", "hip", "shed", "flat", "complex", "auto-detect"}
	panelSizes = []string{"standard", "large", "auto-optimize"}
)

// Normalize fills defaults and rejects out-of-range values.
func (r *RoofInput) Normalize() error {
	if r.RoofShape == "" {
		r.RoofShape = "auto-detect"
	}
	if r.PanelSize == "" {
		r.PanelSize = "auto-optimize"
	}
	if r.RoofSize != 0 && (r.RoofSize < 100 || r.RoofSize > 10000) {
		return fmt.Errorf("roofSize must be between 100 and 10000 sq ft")
	}
	if !oneOf(r.RoofShape, roofShapes) {
		return fmt.Errorf("roofShape must be one of %s", strings.Join(roofShapes, ", "))
	}
	if !oneOf(r.PanelSize, panelSizes) {
		return fmt.Errorf("panelSize must be one of %s", strings.Join(panelSizes, ", "))
	}
	return nil
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// requiredResultFields lists the keys a provider response must carry before
// it is stored.
var requiredResultFields = map[models.AnalysisType][]string{
	models.AnalysisInstallation:   {"totalPanels", "coverage", "efficiency", "confidence", "powerOutput", "orientation", "shadingAnalysis", "notes", "regions"},
	models.AnalysisFaultDetection: {"panelId", "faults", "overallHealth", "recommendations"},
}

func installationPrompt(in RoofInput) string {
	size := "estimate it from the image"
	if in.RoofSize > 0 {
		size = fmt.Sprintf("%d sq ft", in.RoofSize)
	}
	return fmt.Sprintf(`You are a solar installation engineer. Analyse this rooftop image and plan a panel layout.
Roof size: %s. Roof shape: %s. Panel size preference: %s.
Respond with JSON only, using these keys:
totalPanels (number), coverage (percent), efficiency (percent), confidence (percent),
powerOutput (kW), orientation (string), shadingAnalysis (string), notes (string),
roofType (string), estimatedRoofArea (number), usableRoofArea (number),
obstructions (array of {type,x,y,width,height}),
roofSections (array of {name,orientation,tiltAngle,area,panelCount,efficiency}),
regions (array of {x,y,width,height,roofSection}) with coordinates in percent of the image,
calculationDetails ({marketStandards:{panelWidth,panelHeight,panelArea,panelPower,panelPowerKW},annualSavings,installationCost,paybackPeriod}).`,
		size, in.RoofShape, in.PanelSize)
}

func faultPrompt(filename string) string {
	return fmt.Sprintf(`You are a photovoltaic maintenance inspector. Inspect this image of solar panels (%s) for faults
such as cracks, hot spots, soiling, delamination, discoloration and shading.
Respond with JSON only, using these keys:
panelId (string), faults (array of {type,severity,x,y,description} with x,y in percent of the image;
severity one of low|medium|high|critical), overallHealth (excellent|good|fair|poor|critical),
recommendations (array of strings).`, filename)
}

const adviceSystem = `You are SolarScope AI, a solar panel expert. Provide SHORT, practical advice (max 60 words).

EXPERTISE: installation, fault detection, maintenance, performance, ROI calculations, safety, Indian helplines.

INDIAN HELPLINES:
- MNRE: 1800-180-3333
- SECI: 011-2436-0707
- Solar Mission: 1800-11-3003
- BEE: 1800-11-2722
- PM Surya Ghar: 1800-11-4455`

const (
	jsonAdviceFormat  = `RESPONSE FORMAT: {"response": "brief advice", "category": "installation|fault|maintenance|performance|general|helpline"}`
	plainAdviceFormat = `RESPONSE FORMAT: plain text, no JSON, no markdown.`
)

// historyWindow caps how much prior conversation is sent with a question.
const historyWindow = 6

func advicePrompt(message string, history []string) string {
	return buildAdvicePrompt(jsonAdviceFormat, message, history)
}

// streamPrompt is for clients that render tokens as they arrive, so the
// model must answer in plain text.
func streamPrompt(message string, history []string) string {
	return buildAdvicePrompt(plainAdviceFormat, message, history)
}

func buildAdvicePrompt(format, message string, history []string) string {
	var b strings.Builder
	b.WriteString(adviceSystem)
	b.WriteString("\n\n")
	b.WriteString(format)
	b.WriteString("\n\n")
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	if len(history) > 0 {
		b.WriteString("CONVERSATION HISTORY:\n")
		b.WriteString(strings.Join(history, "\n"))
		b.WriteString("\n\n")
	}
	b.WriteString("USER: ")
	b.WriteString(message)
	b.WriteString("\n\nProvide BRIEF advice in 60 words max.")
	return b.String()
}
