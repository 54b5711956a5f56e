package domain

import (
	"errors"
	"fmt"
	"strings"
)

// LocationMetadata describes one lake evaporation target series and the
// sensor series that feed it.
type LocationMetadata struct {
	LocationID     string            `json:"location_id"`
	Name           string            `json:"name"`
	TimeSeriesID   string            `json:"time_series_id"`
	OrganizationID string            `json:"organization_id"`
	Timezone       string            `json:"timezone"`
	Latitude       *float64          `json:"latitude,omitempty"`
	Longitude      *float64          `json:"longitude,omitempty"`
	Altitude       float64           `json:"altitude"`
	References     map[Kind]string   `json:"references"`
	Constants      ConstantOverrides `json:"constants"`
}

// HasCoordinates reports whether the location has a valid latitude and longitude.
func (l LocationMetadata) HasCoordinates() bool {
	if l.Latitude == nil || l.Longitude == nil {
		return false
	}
	return *l.Latitude >= -90 && *l.Latitude <= 90 && *l.Longitude >= -180 && *l.Longitude <= 180
}

// Reference returns the trimmed sensor reference for kind, if any.
func (l LocationMetadata) Reference(kind Kind) (string, bool) {
	ref := strings.TrimSpace(l.References[kind])
	return ref, ref != ""
}

// ReferenceType distinguishes the ways a sensor series can be addressed.
type ReferenceType string

const (
	RefTimeSeriesID ReferenceType = "tsId"
	RefPath         ReferenceType = "tsPath"
	RefExchangeID   ReferenceType = "exchangeId"
)

// SeriesReference is a parsed sensor reference.
type SeriesReference struct {
	Type  ReferenceType
	Value string
}

var errEmptyReference = errors.New("empty time series reference")

// ParseReference parses tsId(…), tsPath(…) and exchangeId(…) forms. A bare
// value is treated as a series id.
func ParseReference(ref string) (SeriesReference, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return SeriesReference{}, errEmptyReference
	}

	open := strings.IndexByte(ref, '(')
	if open < 0 || !strings.HasSuffix(ref, ")") {
		return SeriesReference{Type: RefTimeSeriesID, Value: ref}, nil
	}

	value := strings.TrimSpace(ref[open+1 : len(ref)-1])
	if value == "" {
		return SeriesReference{}, fmt.Errorf("reference %q: %w", ref, errEmptyReference)
	}

	switch t := ReferenceType(strings.TrimSpace(ref[:open])); t {
	case RefTimeSeriesID, RefPath, RefExchangeID:
		return SeriesReference{Type: t, Value: value}, nil
	default:
		return SeriesReference{}, fmt.Errorf("reference %q: unknown type %q", ref, t)
	}
}
