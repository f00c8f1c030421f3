/*
Package facemark runs a single live face detection session over a video or image source
and draws the detection overlay (bounding boxes, confidence badges, landmark points)
onto a drawing surface.

The package is built around two pieces: the Session, which lazily creates the face
detector, drives the periodic detection loop and classifies every pass as having no,
one or many faces; and Render, a stateless routine turning a batch of detection results
into a deterministic sequence of draw calls.

A typical setup using the pigo based detector and a raster canvas looks like this:

	package main

	import (
		"context"
		"log"

		"github.com/esimov/facemark"
		"github.com/esimov/facemark/canvas"
		"github.com/esimov/facemark/detector"
	)

	func main() {
		sess, err := facemark.NewSession(facemark.Options{
			Build: detector.Builder(detector.DefaultOptions()),
		})
		if err != nil {
			log.Fatal(err)
		}
		defer sess.Close()

		c := canvas.NewFromImage(img)
		if err := sess.DetectStill(context.Background(), img, c, nil); err != nil {
			log.Fatalf("Error detecting faces: %s", err.Error())
		}
	}

Only one Session may be open at a time; NewSession returns a DuplicateInstanceError
while another one is alive.
*/
package facemark
