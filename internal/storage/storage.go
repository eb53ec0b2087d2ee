// Package storage keeps uploaded MRI scans in an S3-compatible object store.
package storage

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ScanMeta is attached to the stored object as user metadata.
type ScanMeta struct {
	OriginalName string
	PatientID    string
	ScanType     string
}

func (m ScanMeta) userMetadata() map[string]string {
	return map[string]string{
		"original-filename": m.OriginalName,
		"patient-id":        m.PatientID,
		"scan-type":         m.ScanType,
	}
}

// Scan is one scan to upload. Size is -1 when unknown.
type Scan struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	Meta        ScanMeta
}

// StoredScan describes a scan after upload.
type StoredScan struct {
	Key  string
	Size int64
	ETag string
	// URL is the permanent, unsigned location of the object.
	URL string
}

// ScanStore is the object store holding uploaded MRI scans.
type ScanStore interface {
	PutScan(ctx context.Context, scan Scan) (StoredScan, error)
	// RemoveScan succeeds when the object is already gone.
	RemoveScan(ctx context.Context, key string) error
	// DownloadURL returns a presigned GET link valid for expiry.
	DownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ScanKey lays scans out per patient: mri/<patientID>/<imageID><ext>.
func ScanKey(patientID, imageID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return path.Join("mri", patientID, imageID+ext)
}
