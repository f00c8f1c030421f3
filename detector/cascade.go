package detector

import (
	"context"
	"os"

	"github.com/esimov/facemark/utils"
)

// loadCascade reads a cascade file from the local disk or downloads it when
// the location is a URL.
func loadCascade(ctx context.Context, location string) ([]byte, error) {
	if utils.IsValidUrl(location) {
		return utils.Fetch(ctx, location)
	}
	return os.ReadFile(location)
}
