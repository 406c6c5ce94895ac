package domain

// ComplianceStatus is the outcome recorded for a route stop or a package scan.
type ComplianceStatus string

const (
	ComplianceCompliant    ComplianceStatus = "compliant"
	ComplianceNonCompliant ComplianceStatus = "non_compliant"
)

func (s ComplianceStatus) Valid() bool {
	return s == ComplianceCompliant || s == ComplianceNonCompliant
}

func (s ComplianceStatus) IsCompliant() bool {
	return s == ComplianceCompliant
}

// ScanType is the short code a courier's handheld records for a scan.
type ScanType string

const (
	ScanTypePickup             ScanType = "PUP"
	ScanTypePickupException    ScanType = "PUX"
	ScanTypeDelivery           ScanType = "POD"
	ScanTypeDeliveredException ScanType = "DDEX"
	ScanTypeException          ScanType = "DEX"
)

// ScanTypes lists every scan type in display order.
var ScanTypes = []ScanType{
	ScanTypeDelivery,
	ScanTypePickup,
	ScanTypeDeliveredException,
	ScanTypeException,
	ScanTypePickupException,
}

func (t ScanType) Valid() bool {
	switch t {
	case ScanTypePickup, ScanTypePickupException, ScanTypeDelivery, ScanTypeDeliveredException, ScanTypeException:
		return true
	default:
		return false
	}
}

func (t ScanType) Description() string {
	switch t {
	case ScanTypePickup:
		return "Pickup"
	case ScanTypePickupException:
		return "Pickup Exception"
	case ScanTypeDelivery:
		return "Delivery"
	case ScanTypeDeliveredException:
		return "Delivered Exception"
	case ScanTypeException:
		return "Exception"
	default:
		return string(t)
	}
}

// RouteRecord captures whether a courier stayed on the planned route at a stop.
type RouteRecord struct {
	ID          int64
	Date        string // MM/DD/YY
	CourierID   string
	CourierName string
	Route       string
	Stop        int
	Address     string
	Status      ComplianceStatus
}

func (r RouteRecord) Owner() string { return r.CourierID }
func (r RouteRecord) Compliant() bool { return r.Status.IsCompliant() }
func (r RouteRecord) StatusLabel() string {
	if r.Compliant() {
		return "On Route"
	}
	return "Off Route"
}

// ScanRecord captures a package scan and how far from the stop it was taken.
type ScanRecord struct {
	ID           int64
	Date         string // MM/DD/YY
	CourierID    string
	CourierName  string
	Route        string
	Stop         int
	Address      string
	Tracking     string
	ScanType     ScanType
	DistanceFeet int
	Status       ComplianceStatus
}

func (s ScanRecord) Owner() string { return s.CourierID }
func (s ScanRecord) Compliant() bool { return s.Status.IsCompliant() }
func (s ScanRecord) StatusLabel() string {
	if s.Compliant() {
		return "Compliant"
	}
	return "Non-compliant"
}
