package access

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/cutroom/floor-service/internal/models"
)

// ManualSpreadingDevice is the pseudo device for hand-spread mattresses
const ManualSpreadingDevice = "MS"

// ErrInvalidUsername means no device can be derived from the login name.
// Views treat it as a configuration error and never fetch.
var ErrInvalidUsername = errors.New("invalid username format")

var (
	spreaderPattern = regexp.MustCompile(`(?i)Spreader(\d+)`)
	cutterPattern   = regexp.MustCompile(`(?i)Cutter(\d+)`)
)

// ResolveDevice derives the device ID from a username: Spreader<n> is SP<n>
// and Cutter<n> is CT<n>.
func ResolveDevice(username string) (string, bool) {
	if m := spreaderPattern.FindStringSubmatch(username); m != nil {
		return models.SpreaderPrefix + m[1], true
	}
	if m := cutterPattern.FindStringSubmatch(username); m != nil {
		return models.CutterPrefix + m[1], true
	}
	return "", false
}

// DeviceFor is ResolveDevice returning ErrInvalidUsername on failure
func DeviceFor(username string) (string, error) {
	device, ok := ResolveDevice(username)
	if !ok {
		return "", ErrInvalidUsername
	}
	return device, nil
}

// IsCutterDevice reports whether device belongs to a cutter
func IsCutterDevice(device string) bool {
	return strings.HasPrefix(normalize(device), models.CutterPrefix)
}

// DefaultCutterRoutes lists the spreaders each cutter takes work from
var DefaultCutterRoutes = map[string][]string{
	"CT1": {"SP1"},
	"CT2": {"SP2", "SP3", ManualSpreadingDevice},
}

// Routes maps a cutter device to its upstream spreader devices
type Routes map[string][]string

// NewRoutes builds a routing table, falling back to DefaultCutterRoutes
// when table is empty.
func NewRoutes(table map[string][]string) Routes {
	if len(table) == 0 {
		table = DefaultCutterRoutes
	}
	routes := make(Routes, len(table))
	for cutter, spreaders := range table {
		key := normalize(cutter)
		for _, sp := range spreaders {
			routes[key] = append(routes[key], normalize(sp))
		}
	}
	return routes
}

// AssociatedSpreaders returns the spreaders whose output cutter may claim
func (r Routes) AssociatedSpreaders(cutter string) []string {
	spreaders := append([]string(nil), r[normalize(cutter)]...)
	sort.Strings(spreaders)
	return spreaders
}

// Accepts reports whether cutter may claim work coming from device
func (r Routes) Accepts(cutter, device string) bool {
	device = normalize(device)
	for _, sp := range r[normalize(cutter)] {
		if sp == device {
			return true
		}
	}
	return false
}

// AssociatedSpreaders looks a cutter up in DefaultCutterRoutes
func AssociatedSpreaders(cutter string) []string {
	return NewRoutes(nil).AssociatedSpreaders(cutter)
}

func normalize(device string) string {
	return strings.ToUpper(strings.TrimSpace(device))
}
