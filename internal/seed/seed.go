// Package seed holds the built-in credential directory and compliance datasets.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/repository"
	"courier-dashboard/internal/service"
)

// UserSeed is a directory entry before its secret is hashed.
type UserSeed struct {
	LoginID     string
	Secret      string
	DisplayName string
	Role        domain.Role
	CourierID   string
}

// Users returns the built-in credential directory.
func Users() []UserSeed {
	return []UserSeed{
		{LoginID: "admin", Secret: "courier123", DisplayName: "Administrator", Role: domain.RoleAdmin},
		{LoginID: "manager", Secret: "manager456", DisplayName: "Manager", Role: domain.RoleManager},
		{LoginID: "supervisor", Secret: "super789", DisplayName: "Supervisor", Role: domain.RoleSupervisor},
		{LoginID: "john.doe", Secret: "john123", DisplayName: "John Doe", Role: domain.RoleCourier, CourierID: "JD"},
		{LoginID: "sarah.wilson", Secret: "sarah456", DisplayName: "Sarah Wilson", Role: domain.RoleCourier, CourierID: "SW"},
		{LoginID: "mike.smith", Secret: "mike789", DisplayName: "Mike Smith", Role: domain.RoleCourier, CourierID: "MS"},
	}
}

const (
	ok  = domain.ComplianceCompliant
	bad = domain.ComplianceNonCompliant
)

// Routes returns the built-in route compliance dataset.
func Routes() []domain.RouteRecord {
	return []domain.RouteRecord{
		{Date: "10/16/25", CourierID: "JD", CourierName: "John D.", Route: "R101", Stop: 1, Address: "123 Main St", Status: ok},
		{Date: "10/16/25", CourierID: "JD", CourierName: "John D.", Route: "R101", Stop: 5, Address: "248 River Rd", Status: ok},
		{Date: "10/17/25", CourierID: "JD", CourierName: "John D.", Route: "R118", Stop: 2, Address: "90 Broadway", Status: bad},
		{Date: "10/18/25", CourierID: "JD", CourierName: "John D.", Route: "R118", Stop: 9, Address: "12 King St", Status: ok},

		{Date: "10/16/25", CourierID: "AL", CourierName: "Amanda L.", Route: "R202", Stop: 3, Address: "456 Oak Ave", Status: ok},
		{Date: "10/17/25", CourierID: "AL", CourierName: "Amanda L.", Route: "R220", Stop: 11, Address: "77 Willow Ln", Status: ok},

		{Date: "10/16/25", CourierID: "MS", CourierName: "Mike S.", Route: "R303", Stop: 7, Address: "789 Pine Rd", Status: ok},
		{Date: "10/18/25", CourierID: "MS", CourierName: "Mike S.", Route: "R315", Stop: 4, Address: "5 Summit Dr", Status: bad},

		{Date: "10/16/25", CourierID: "LH", CourierName: "Lisa H.", Route: "R404", Stop: 2, Address: "321 Elm St", Status: ok},
		{Date: "10/17/25", CourierID: "LH", CourierName: "Lisa H.", Route: "R410", Stop: 13, Address: "200 Lakeview Blvd", Status: ok},

		{Date: "10/16/25", CourierID: "TR", CourierName: "Tom R.", Route: "R505", Stop: 7, Address: "654 Maple Dr", Status: ok},
		{Date: "10/18/25", CourierID: "TR", CourierName: "Tom R.", Route: "R512", Stop: 16, Address: "801 Cedar Ct", Status: bad},
	}
}

// Scans returns the built-in scan compliance dataset.
func Scans() []domain.ScanRecord {
	return []domain.ScanRecord{
		{Date: "10/16/25", CourierID: "JD", CourierName: "John D.", Route: "R101", Stop: 12, Address: "123 Main St, City", Tracking: "1Z999AA1234567890", ScanType: domain.ScanTypeDelivery, DistanceFeet: 180, Status: ok},
		{Date: "10/16/25", CourierID: "JD", CourierName: "John D.", Route: "R101", Stop: 18, Address: "987 Cedar Ln, City", Tracking: "1Z999AA1234567895", ScanType: domain.ScanTypeDelivery, DistanceFeet: 240, Status: ok},
		{Date: "10/17/25", CourierID: "JD", CourierName: "John D.", Route: "R118", Stop: 4, Address: "22 Birch St, City", Tracking: "1Z999AA1234567800", ScanType: domain.ScanTypePickup, DistanceFeet: 275, Status: bad},

		{Date: "10/16/25", CourierID: "AL", CourierName: "Amanda L.", Route: "R202", Stop: 8, Address: "456 Oak Ave, City", Tracking: "1Z999AA1234567891", ScanType: domain.ScanTypePickup, DistanceFeet: 95, Status: ok},
		{Date: "10/17/25", CourierID: "AL", CourierName: "Amanda L.", Route: "R220", Stop: 15, Address: "456 Oak Ave, City", Tracking: "1Z999AA1234567811", ScanType: domain.ScanTypeDeliveredException, DistanceFeet: 45, Status: ok},

		{Date: "10/16/25", CourierID: "MS", CourierName: "Mike S.", Route: "R303", Stop: 15, Address: "789 Pine Rd, City", Tracking: "1Z999AA1234567892", ScanType: domain.ScanTypeDeliveredException, DistanceFeet: 45, Status: ok},
		{Date: "10/18/25", CourierID: "MS", CourierName: "Mike S.", Route: "R315", Stop: 2, Address: "100 Oaks Blvd, City", Tracking: "1Z999AA1234567822", ScanType: domain.ScanTypeException, DistanceFeet: 310, Status: bad},

		{Date: "10/16/25", CourierID: "LH", CourierName: "Lisa H.", Route: "R404", Stop: 22, Address: "321 Elm St, City", Tracking: "1Z999AA1234567893", ScanType: domain.ScanTypeException, DistanceFeet: 310, Status: bad},
		{Date: "10/17/25", CourierID: "LH", CourierName: "Lisa H.", Route: "R410", Stop: 5, Address: "210 Lakeview Blvd, City", Tracking: "1Z999AA1234567833", ScanType: domain.ScanTypeDelivery, DistanceFeet: 120, Status: ok},

		{Date: "10/16/25", CourierID: "TR", CourierName: "Tom R.", Route: "R505", Stop: 7, Address: "654 Maple Dr, City", Tracking: "1Z999AA1234567894", ScanType: domain.ScanTypePickupException, DistanceFeet: 125, Status: ok},
		{Date: "10/18/25", CourierID: "TR", CourierName: "Tom R.", Route: "R512", Stop: 11, Address: "801 Cedar Ct, City", Tracking: "1Z999AA1234567844", ScanType: domain.ScanTypeDelivery, DistanceFeet: 260, Status: bad},
	}
}

// Apply creates missing directory entries and loads the datasets into empty tables.
// It is safe to run on every start.
func Apply(ctx context.Context, users repository.UserRepository, records repository.ComplianceRepository, logger logrus.FieldLogger) error {
	created := 0
	for _, s := range Users() {
		_, err := users.GetByLoginID(ctx, s.LoginID)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("lookup %s: %w", s.LoginID, err)
		}

		hash, err := service.HashSecret(s.Secret)
		if err != nil {
			return err
		}
		user := &domain.User{
			LoginID:     s.LoginID,
			SecretHash:  hash,
			DisplayName: s.DisplayName,
			Role:        s.Role,
			CourierID:   s.CourierID,
		}
		if _, err := users.Create(ctx, user); err != nil {
			return err
		}
		created++
	}
	if created > 0 {
		logger.Infof("seeded %d directory users", created)
	}

	n, err := records.CountRoutes(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		if err := records.InsertRoutes(ctx, Routes()); err != nil {
			return err
		}
		logger.Infof("seeded %d route records", len(Routes()))
	}

	n, err = records.CountScans(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		if err := records.InsertScans(ctx, Scans()); err != nil {
			return err
		}
		logger.Infof("seeded %d scan records", len(Scans()))
	}
	return nil
}
