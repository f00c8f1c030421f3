package facemark

import (
	"fmt"
	"image/color"
	"math"
)

// Overlay geometry, in surface units.
const (
	badgeWidth  = 46
	badgeHeight = 18
	badgeTextX  = 10
	badgeTextY  = 13
	boxInset    = 10
	pointOffset = 3
)

// BadgeFont is the face used for the confidence label.
var BadgeFont = Font{Family: "Arial", Size: 10, Bold: true}

var badgeTextColor = color.White

// ScoreLabel formats a confidence value as a rounded percentage, e.g. 0.876 becomes "88%".
func ScoreLabel(confidence float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(confidence*100)))
}

// Render draws results onto surface. frame is the displayed size of the frame the
// results were computed on; it is used to project the normalized keypoints.
// Results that are nil or have no keypoint list are skipped.
func Render(results []*DetectionResult, frame Dimensions, surface Surface, style RenderStyle) {
	if surface == nil {
		return
	}
	if style.ClearBeforeDraw {
		surface.Clear()
	}

	for _, res := range results {
		if res == nil || res.Keypoints == nil {
			continue
		}
		var (
			left   = res.BoundingBox.X
			top    = res.BoundingBox.Y
			width  = res.BoundingBox.Width - boxInset
			height = res.BoundingBox.Height
		)

		if style.ShowScore {
			y := top - badgeHeight
			surface.SetLineWidth(style.BoxStrokeWidth)
			surface.SetStrokeColor(style.BoxColor)
			surface.SetFillColor(style.BoxColor)
			surface.StrokeRect(left, y, badgeWidth, badgeHeight)
			surface.FillRect(left, y, badgeWidth, badgeHeight)

			surface.SetFillColor(badgeTextColor)
			surface.DrawText(ScoreLabel(res.Confidence), left+badgeTextX, y+badgeTextY, BadgeFont)
		}

		surface.SetLineWidth(style.BoxStrokeWidth)
		surface.SetStrokeColor(style.BoxColor)
		surface.StrokeRect(left, top, width, height)

		if style.ShowKeypoints {
			surface.SetFillColor(style.PointColor)
			for _, kp := range res.Keypoints {
				x := kp.X*frame.Width - pointOffset
				y := kp.Y*frame.Height - pointOffset
				surface.FillCircle(x, y, style.PointRadius)
			}
		}
	}
}
