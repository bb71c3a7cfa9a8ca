package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Blood-Moon-Interactive/StarWX/internal/geo"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

// ErrMissingLocation is returned when lat or lon is absent.
var ErrMissingLocation = errors.New("lat and lon query parameters are required")

// ObserverFromQuery reads decimal-degree lat and lon query parameters.
func ObserverFromQuery(r *http.Request) (visibility.Observer, error) {
	q := r.URL.Query()
	latStr, lonStr := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lon"))
	if latStr == "" || lonStr == "" {
		return visibility.Observer{}, ErrMissingLocation
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || !(geo.Point{Latitude: lat}).Valid() {
		return visibility.Observer{}, fmt.Errorf("lat must be a number in [-90, 90], got %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || !(geo.Point{Longitude: lon}).Valid() {
		return visibility.Observer{}, fmt.Errorf("lon must be a number in [-180, 180], got %q", lonStr)
	}
	return visibility.NewObserver(lat, lon), nil
}

// IntParam reads an optional integer query parameter bounded to [lo, hi].
// An absent parameter yields def.
func IntParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s parameter, must be %d-%d", name, lo, hi)
	}
	return n, nil
}
