package classify

import "fmt"

// NumClasses is the number of land-cover classes. Labels run 1..NumClasses;
// 0 means unclassified.
const NumClasses = 6

// Class labels.
const (
	Unclassified = 0
	Vegetation   = 1
	Water        = 2
	UrbanArea    = 3
	Cultivation  = 4
	Sand         = 5
	Bare         = 6
)

// LabelBand names the single band of a labelled raster.
const LabelBand = "LULC"

var classNames = [NumClasses + 1]string{
	"Unclassified", "Vegetation", "Water", "Urban Area", "Cultivation", "Sand", "Bare",
}

// Palette holds the display colour of each class as hex RGB, indexed by
// label. Unclassified renders black.
var Palette = [NumClasses + 1]string{
	"000000", "0db21f", "1cece0", "ff0000", "00ff00", "f0f015", "979a5d",
}

// ClassName returns the display name for label.
func ClassName(label int) string {
	if label < 0 || label > NumClasses {
		return fmt.Sprintf("Class %d", label)
	}
	return classNames[label]
}

// ClassLabel resolves a display name back to its label.
func ClassLabel(name string) (int, bool) {
	for l := 1; l <= NumClasses; l++ {
		if classNames[l] == name {
			return l, true
		}
	}
	return 0, false
}

// ValidLabel reports whether label is a real class.
func ValidLabel(label int) bool { return label >= 1 && label <= NumClasses }
