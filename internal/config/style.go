package config

import (
	"github.com/pkg/errors"

	"github.com/esimov/facemark"
	"github.com/esimov/facemark/utils"
)

// Style builds the base overlay style from the configured colors and sizes.
func (c *Config) Style() (facemark.RenderStyle, error) {
	style := facemark.DefaultStyle()

	point, err := utils.ParseColor(c.PointColor)
	if err != nil {
		return style, errors.Wrap(err, "POINT_COLOR")
	}
	box, err := utils.ParseColor(c.BoxColor)
	if err != nil {
		return style, errors.Wrap(err, "BOX_COLOR")
	}

	style.PointColor = point
	style.BoxColor = box
	style.BoxStrokeWidth = c.BoxWidth
	style.PointRadius = c.PointSize
	style.ShowKeypoints = c.ShowKeypoints

	return style, nil
}
