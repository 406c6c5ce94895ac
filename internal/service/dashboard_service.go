package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/repository"
)

// DistanceThresholdFeet marks scans taken further than this from the stop.
const DistanceThresholdFeet = 250

// KPI is a headline tile shown above the tables.
type KPI struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ScanTypeCount is the number of visible scans of one type.
type ScanTypeCount struct {
	ScanType    domain.ScanType `json:"scanType"`
	Description string          `json:"description"`
	Count       int             `json:"count"`
}

// Dashboard is the role-scoped view of the compliance records for one user.
type Dashboard struct {
	User                   domain.SessionUser
	IsCourier              bool
	Routes                 []domain.RouteRecord
	Scans                  []domain.ScanRecord
	RouteCompliantCount    int
	RouteNoncompliantCount int
	ScanCompliantCount     int
	ScanNoncompliantCount  int
	ScanComplianceRate     int
	KPIs                   []KPI
	ScanTypes              []ScanTypeCount
}

// RouteRow is a route record with the table filler figures derived from its stop
// number, its position and its compliance.
type RouteRow struct {
	domain.RouteRecord
	StopType             string
	PackagesPlanned      int
	PackagesDelivered    int
	LeaveBuildingVar     string
	ToAreaPlanned        int
	ToAreaActual         int
	ToAreaVariance       string
	AtStopPlanned        int
	AtStopActual         int
	AtStopVariance       string
	BetweenStopsPlanned  int
	BetweenStopsActual   int
	BetweenStopsVariance string
	StopsPerHourPlanned  string
	StopsPerHourActual   string
	StopsPerHourVariance string
}

// ScanRow is a scan record with its distance check.
type ScanRow struct {
	domain.ScanRecord
	DistanceExceeded bool
}

// DashboardService builds dashboards from an injected compliance source.
type DashboardService interface {
	Build(ctx context.Context, user domain.SessionUser) (*Dashboard, error)
}

type dashboardService struct {
	source repository.ComplianceSource
}

func NewDashboardService(source repository.ComplianceSource) DashboardService {
	return &dashboardService{source: source}
}

func (s *dashboardService) Build(ctx context.Context, user domain.SessionUser) (*Dashboard, error) {
	routes, err := s.source.ListRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list route records: %w", err)
	}
	scans, err := s.source.ListScans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scan records: %w", err)
	}
	return NewDashboard(user, routes, scans), nil
}

// NewDashboard filters both collections for user and derives the summary counts.
func NewDashboard(user domain.SessionUser, routes []domain.RouteRecord, scans []domain.ScanRecord) *Dashboard {
	d := &Dashboard{
		User:      user,
		IsCourier: user.IsCourier(),
		Routes:    visibleRecords(routes, user),
		Scans:     visibleRecords(scans, user),
	}

	d.RouteCompliantCount = countCompliant(d.Routes)
	d.RouteNoncompliantCount = len(d.Routes) - d.RouteCompliantCount
	d.ScanCompliantCount = countCompliant(d.Scans)
	d.ScanNoncompliantCount = len(d.Scans) - d.ScanCompliantCount
	d.ScanComplianceRate = ComplianceRate(d.ScanCompliantCount, len(d.Scans))
	d.KPIs = kpisFor(user)
	d.ScanTypes = scanTypeBreakdown(d.Scans)
	return d
}

type ownedRecord interface {
	Owner() string
	Compliant() bool
}

// visibleRecords keeps only the courier's own records, in source order, for couriers
// and returns the full collection for every other role.
func visibleRecords[T ownedRecord](records []T, user domain.SessionUser) []T {
	if !user.IsCourier() {
		return records
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if rec.Owner() == user.CourierID {
			out = append(out, rec)
		}
	}
	return out
}

func countCompliant[T ownedRecord](records []T) int {
	n := 0
	for _, rec := range records {
		if rec.Compliant() {
			n++
		}
	}
	return n
}

// ComplianceRate is the rounded percentage of compliant records, 0 for an empty set.
func ComplianceRate(compliant, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(compliant) / float64(total)))
}

func kpisFor(user domain.SessionUser) []KPI {
	if user.IsCourier() {
		return []KPI{
			{Label: "My Route Compliance", Value: "95%"},
			{Label: "My Scan Compliance", Value: "92%"},
			{Label: "My Stops / Hr", Value: "12.4"},
			{Label: "My Status", Value: "Active"},
		}
	}
	return []KPI{
		{Label: "Route Compliance", Value: "92%"},
		{Label: "Scan Compliance", Value: "88%"},
		{Label: "Average Stops / Hr", Value: "11.2"},
		{Label: "Active Couriers", Value: "3"},
	}
}

func scanTypeBreakdown(scans []domain.ScanRecord) []ScanTypeCount {
	counts := make(map[domain.ScanType]int, len(domain.ScanTypes))
	for _, scan := range scans {
		counts[scan.ScanType]++
	}
	out := make([]ScanTypeCount, 0, len(domain.ScanTypes))
	for _, t := range domain.ScanTypes {
		out = append(out, ScanTypeCount{
			ScanType:    t,
			Description: t.Description(),
			Count:       counts[t],
		})
	}
	return out
}

var commercialAddress = regexp.MustCompile(`(?i)Ave|Blvd|Ct|Plaza|Center`)

// RouteRows derives the display rows for routes.
func RouteRows(routes []domain.RouteRecord) []RouteRow {
	rows := make([]RouteRow, len(routes))
	for idx, r := range routes {
		ok := r.Compliant()
		row := RouteRow{RouteRecord: r, StopType: "RES"}
		if commercialAddress.MatchString(r.Address) {
			row.StopType = "COM"
		}

		row.PackagesPlanned = r.Stop%3 + 1
		row.PackagesDelivered = row.PackagesPlanned
		if !ok {
			row.PackagesDelivered = max(0, row.PackagesPlanned-1)
		}

		row.LeaveBuildingVar = "+5m"
		if ok {
			row.LeaveBuildingVar = "-5m"
		}

		row.ToAreaPlanned = 10 + idx%6
		row.ToAreaActual = row.ToAreaPlanned + pick(ok, -1, 2)
		row.ToAreaVariance = formatVariance(strconv.Itoa(row.ToAreaActual-row.ToAreaPlanned), row.ToAreaActual > row.ToAreaPlanned, "m")

		row.AtStopPlanned = 5 + idx%4
		row.AtStopActual = row.AtStopPlanned + pick(ok, -1, 1)
		row.AtStopVariance = formatVariance(strconv.Itoa(row.AtStopActual-row.AtStopPlanned), row.AtStopActual > row.AtStopPlanned, "m")

		row.BetweenStopsPlanned = 4 + idx%3
		row.BetweenStopsActual = row.BetweenStopsPlanned + pick(ok, -1, 1)
		row.BetweenStopsVariance = formatVariance(strconv.Itoa(row.BetweenStopsActual-row.BetweenStopsPlanned), row.BetweenStopsActual > row.BetweenStopsPlanned, "m")

		plannedSph := 11.0 + float64(idx%5)*0.3
		sphDelta := -0.5
		if ok {
			sphDelta = 0.7
		}
		row.StopsPerHourPlanned = strconv.FormatFloat(plannedSph, 'f', 1, 64)
		row.StopsPerHourActual = strconv.FormatFloat(plannedSph+sphDelta, 'f', 1, 64)
		row.StopsPerHourVariance = formatVariance(strconv.FormatFloat(sphDelta, 'f', 1, 64), sphDelta > 0, "")

		rows[idx] = row
	}
	return rows
}

// ScanRows derives the display rows for scans.
func ScanRows(scans []domain.ScanRecord) []ScanRow {
	rows := make([]ScanRow, len(scans))
	for i, s := range scans {
		rows[i] = ScanRow{ScanRecord: s, DistanceExceeded: s.DistanceFeet > DistanceThresholdFeet}
	}
	return rows
}

func pick(ok bool, whenOK, otherwise int) int {
	if ok {
		return whenOK
	}
	return otherwise
}

func formatVariance(value string, positive bool, unit string) string {
	if positive {
		return "+" + value + unit
	}
	return value + unit
}
