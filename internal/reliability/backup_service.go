package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/database"
)

const (
	backupPrefix     = "frontier-backup-"
	backupTimeFormat = "2006-01-02-150405"

	// Rotation never deletes the newest backups, whatever their age.
	minBackupsToKeep = 3
)

// BackupService snapshots the database and the latest run artifacts
// into a tar.gz archive and replicates it to remote object storage.
type BackupService struct {
	db        *database.DB
	store     ObjectStore
	dataDir   string
	retention int
	version   string
	log       zerolog.Logger
}

// BackupResult summarizes one completed backup upload.
type BackupResult struct {
	Key       string        `json:"key"`
	SizeBytes int64         `json:"size_bytes"`
	Files     int           `json:"files"`
	Duration  time.Duration `json:"-"`
}

// BackupMetadata is the manifest written into every archive.
type BackupMetadata struct {
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Files     []FileMetadata `json:"files"`
}

// FileMetadata describes one file captured in a backup archive.
type FileMetadata struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo describes a backup stored remotely.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewBackupService creates a new backup service. retentionDays of zero
// keeps backups forever.
func NewBackupService(db *database.DB, store ObjectStore, dataDir string, retentionDays int, version string, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:        db,
		store:     store,
		dataDir:   dataDir,
		retention: retentionDays,
		version:   version,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// Backup stages a consistent database snapshot together with the latest
// frontier artifacts, archives them, and uploads the archive.
func (s *BackupService) Backup(ctx context.Context) (*BackupResult, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	dbFile := filepath.Base(s.db.Path())
	snapshotPath := filepath.Join(stagingDir, dbFile)
	if err := s.snapshotDatabase(ctx, snapshotPath); err != nil {
		return nil, fmt.Errorf("failed to snapshot database: %w", err)
	}

	staged := []string{dbFile}
	for _, name := range []string{"frontier-latest.json", "frontier-latest.png"} {
		src := filepath.Join(s.dataDir, name)
		if err := copyFile(src, filepath.Join(stagingDir, name)); err != nil {
			if !os.IsNotExist(err) {
				s.log.Warn().Err(err).Str("file", name).Msg("Failed to stage artifact")
			}
			continue
		}
		staged = append(staged, name)
	}

	metadata := BackupMetadata{
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Files:     make([]FileMetadata, 0, len(staged)),
	}
	for _, name := range staged {
		path := filepath.Join(stagingDir, name)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat staged %s: %w", name, err)
		}
		checksum, err := checksumFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum %s: %w", name, err)
		}
		metadata.Files = append(metadata.Files, FileMetadata{
			Name:      name,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	metadataFile := "backup-metadata.json"
	if err := writeMetadata(filepath.Join(stagingDir, metadataFile), metadata); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	staged = append(staged, metadataFile)

	archiveName := backupPrefix + time.Now().Format(backupTimeFormat) + ".tar.gz"
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, stagingDir, staged); err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return nil, fmt.Errorf("failed to upload backup: %w", err)
	}

	duration := time.Since(startTime)
	s.log.Info().
		Dur("duration", duration).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Int("files", len(staged)).
		Msg("Backup completed successfully")

	return &BackupResult{
		Key:       archiveName,
		SizeBytes: archiveInfo.Size(),
		Files:     len(staged),
		Duration:  duration,
	}, nil
}

// ListBackups lists all backups stored remotely, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()

	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, backupPrefix) || !strings.HasSuffix(obj.Key, ".tar.gz") {
			continue
		}

		timestampStr := strings.TrimPrefix(obj.Key, backupPrefix)
		timestampStr = strings.TrimSuffix(timestampStr, ".tar.gz")

		timestamp, err := time.Parse(backupTimeFormat, timestampStr)
		if err != nil {
			s.log.Warn().Str("filename", obj.Key).Msg("Failed to parse timestamp from filename")
			continue
		}

		backups = append(backups, BackupInfo{
			Filename:  obj.Key,
			Timestamp: timestamp,
			SizeBytes: obj.SizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes backups older than the retention period.
// The newest minBackupsToKeep survive regardless of age.
func (s *BackupService) RotateOldBackups(ctx context.Context) error {
	s.log.Info().Int("retention_days", s.retention).Msg("Starting backup rotation")

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	if len(backups) <= minBackupsToKeep {
		s.log.Info().Int("count", len(backups)).Msg("Too few backups to rotate")
		return nil
	}

	var cutoffTime time.Time
	if s.retention > 0 {
		cutoffTime = time.Now().AddDate(0, 0, -s.retention)
	}

	deletedCount := 0
	for i, backup := range backups {
		if i < minBackupsToKeep {
			continue
		}
		if s.retention == 0 {
			continue
		}

		if backup.Timestamp.Before(cutoffTime) {
			if err := s.store.Delete(ctx, backup.Filename); err != nil {
				s.log.Error().
					Err(err).
					Str("filename", backup.Filename).
					Msg("Failed to delete old backup")
				continue
			}

			s.log.Info().
				Str("filename", backup.Filename).
				Time("timestamp", backup.Timestamp).
				Msg("Deleted old backup")

			deletedCount++
		}
	}

	s.log.Info().
		Int("deleted", deletedCount).
		Int("remaining", len(backups)-deletedCount).
		Msg("Backup rotation completed")

	return nil
}

// snapshotDatabase stages a consistent copy of the database via
// SQLite's VACUUM INTO and verifies its integrity.
func (s *BackupService) snapshotDatabase(ctx context.Context, snapshotPath string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", snapshotPath)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	if err := verifySnapshot(snapshotPath); err != nil {
		os.Remove(snapshotPath)
		return err
	}

	return nil
}

// verifySnapshot opens a staged snapshot and runs an integrity check.
func verifySnapshot(path string) error {
	snapshot, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer snapshot.Close()

	var result string
	if err := snapshot.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// checksumFile calculates the SHA256 checksum of a file.
func checksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// writeMetadata writes the backup manifest to a JSON file.
func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive creates a tar.gz archive of the named staged files.
func createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, filename := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	return nil
}

// addFileToArchive adds a single file to a tar archive.
func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}

	return nil
}

// copyFile copies src to dst, creating or truncating dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
