package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/storage"
)

var (
	// ErrUnknownDataset is returned for an export dataset other than routes or scans.
	ErrUnknownDataset = errors.New("unknown export dataset")
	// ErrArchiveUnavailable is returned when archiving is requested without object storage.
	ErrArchiveUnavailable = errors.New("export archive storage not configured")
)

// ExportURLTTL is how long a presigned archive link stays valid.
const ExportURLTTL = 15 * time.Minute

type Dataset string

const (
	DatasetRoutes Dataset = "routes"
	DatasetScans  Dataset = "scans"
)

func ParseDataset(v string) (Dataset, error) {
	switch Dataset(strings.ToLower(strings.TrimSpace(v))) {
	case DatasetRoutes, "":
		return DatasetRoutes, nil
	case DatasetScans:
		return DatasetScans, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDataset, v)
	}
}

// ArchivedExport points at an export written to object storage.
type ArchivedExport struct {
	Location  string
	Key       string
	URL       string
	ExpiresAt time.Time
}

// ExportService renders the visible dashboard records as CSV and optionally archives them.
type ExportService struct {
	storage   storage.Service
	bucket    string
	keyPrefix string
	now       func() time.Time
}

// NewExportService accepts a nil store; archiving then fails with ErrArchiveUnavailable.
func NewExportService(store storage.Service, bucket, keyPrefix string) *ExportService {
	return &ExportService{
		storage:   store,
		bucket:    bucket,
		keyPrefix: strings.Trim(keyPrefix, "/"),
		now:       time.Now,
	}
}

func (s *ExportService) ArchiveEnabled() bool {
	return s.storage != nil && s.bucket != ""
}

// FileName is the download name of an export taken now.
func (s *ExportService) FileName(dataset Dataset) string {
	return fmt.Sprintf("%s-%s.csv", dataset, s.now().UTC().Format("20060102T150405Z"))
}

// WriteCSV writes the dashboard's visible records of dataset to w.
func (s *ExportService) WriteCSV(w io.Writer, d *Dashboard, dataset Dataset) error {
	cw := csv.NewWriter(w)
	switch dataset {
	case DatasetRoutes:
		if err := cw.Write([]string{"Date", "Courier ID", "Courier", "Route", "Stop", "Address", "Compliance"}); err != nil {
			return err
		}
		for _, r := range d.Routes {
			if err := cw.Write([]string{r.Date, r.CourierID, r.CourierName, r.Route, strconv.Itoa(r.Stop), r.Address, r.StatusLabel()}); err != nil {
				return err
			}
		}
	case DatasetScans:
		if err := cw.Write([]string{"Date", "Courier ID", "Courier", "Route", "Stop", "Address", "Tracking", "Scan Type", "Distance (ft)", "Compliance"}); err != nil {
			return err
		}
		for _, sc := range d.Scans {
			if err := cw.Write([]string{
				sc.Date,
				sc.CourierID,
				sc.CourierName,
				sc.Route,
				strconv.Itoa(sc.Stop),
				sc.Address,
				sc.Tracking,
				string(sc.ScanType),
				strconv.Itoa(sc.DistanceFeet),
				sc.StatusLabel(),
			}); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDataset, dataset)
	}
	cw.Flush()
	return cw.Error()
}

// Archive uploads the CSV export under the user's prefix and returns a presigned link.
func (s *ExportService) Archive(ctx context.Context, d *Dashboard, dataset Dataset) (*ArchivedExport, error) {
	if !s.ArchiveEnabled() {
		return nil, ErrArchiveUnavailable
	}

	var buf bytes.Buffer
	if err := s.WriteCSV(&buf, d, dataset); err != nil {
		return nil, fmt.Errorf("render export: %w", err)
	}

	key := s.userPrefix(d.User) + "/" + s.FileName(dataset)
	location, err := s.storage.Put(ctx, &buf, storage.PutOptions{
		Bucket:      s.bucket,
		Key:         key,
		ContentType: "text/csv",
	})
	if err != nil {
		return nil, fmt.Errorf("archive export: %w", err)
	}

	url, err := s.storage.GetObjectURL(ctx, s.bucket, key, ExportURLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}

	return &ArchivedExport{
		Location:  location,
		Key:       key,
		URL:       url,
		ExpiresAt: s.now().Add(ExportURLTTL),
	}, nil
}

// ListArchives returns the exports previously archived by user.
func (s *ExportService) ListArchives(ctx context.Context, user domain.SessionUser) ([]storage.ObjectInfo, error) {
	if !s.ArchiveEnabled() {
		return nil, ErrArchiveUnavailable
	}
	return s.storage.ListObjects(ctx, s.bucket, s.userPrefix(user)+"/")
}

// userPrefix is the folder holding user's archives. The login id is escaped so it
// always forms exactly one key segment.
func (s *ExportService) userPrefix(user domain.SessionUser) string {
	segment := url.PathEscape(user.LoginID)
	if s.keyPrefix == "" {
		return segment
	}
	return s.keyPrefix + "/" + segment
}
