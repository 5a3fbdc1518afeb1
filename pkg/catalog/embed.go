package catalog

import "embed"

// defaults holds the pristine catalog files shipped with the binary.
//
//go:embed defaults/device_models.json defaults/drivers.yaml
var defaults embed.FS

const (
	ModelsFile  = "device_models.json"
	DriversFile = "drivers.yaml"
)

func defaultFile(name string) ([]byte, error) {
	return defaults.ReadFile("defaults/" + name)
}
