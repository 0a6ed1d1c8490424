package models

import (
	"encoding/json"
	"time"
)

// DailyValuesResponse models the JSON payload returned by the NWIS
// daily-values service. Only the fields the ingester reads are declared.
type DailyValuesResponse struct {
	Value *ResponseValue `json:"value"`
}

// ResponseValue is the top-level "value" object of the payload.
type ResponseValue struct {
	TimeSeries []TimeSeries `json:"timeSeries"`
}

// TimeSeries is one site/parameter/statistic series.
type TimeSeries struct {
	Name       string       `json:"name"`
	SourceInfo SourceInfo   `json:"sourceInfo"`
	Values     []ValueGroup `json:"values"`
}

// SourceInfo describes the site a series belongs to.
type SourceInfo struct {
	SiteName string     `json:"siteName"`
	SiteCode []SiteCode `json:"siteCode"`
}

// SiteCode is the station identifier echoed by the service.
type SiteCode struct {
	Value      string `json:"value"`
	AgencyCode string `json:"agencyCode"`
}

// ValueGroup holds the readings of one method within a series.
type ValueGroup struct {
	Value []Reading `json:"value"`
}

// Reading is a single daily reading as delivered on the wire. Value arrives
// as a JSON string in practice but numbers are tolerated.
type Reading struct {
	DateTime   string          `json:"dateTime"`
	Value      json.RawMessage `json:"value"`
	Qualifiers []string        `json:"qualifiers"`
}

// Observation is one normalized daily streamflow reading ready for storage.
type Observation struct {
	SiteID    string
	Date      time.Time
	Discharge float64
	Qualifier string
}

// Row is a persisted observation as returned by the report query.
type Row struct {
	Date      string  `json:"date"`
	Discharge float64 `json:"discharge"`
	Qualifier string  `json:"qualifier"`
}
