package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/reliability"
)

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Push a database and artifact snapshot to the backup bucket",
		RunE:  runBackup,
	}
}

// runBackup uploads one backup archive and rotates old ones, the same
// work the scheduled backup job does in serve mode.
func runBackup(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	if !cfg.BackupEnabled() {
		return fmt.Errorf("backup target not configured: set R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, and R2_BUCKET")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	r2, err := reliability.NewR2Client(cmd.Context(), reliability.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		Bucket:          cfg.R2Bucket,
	}, log)
	if err != nil {
		return err
	}

	backup := reliability.NewBackupService(db, r2, cfg.DataDir, cfg.BackupRetention, version, log)

	result, err := backup.Backup(cmd.Context())
	if err != nil {
		return err
	}

	if err := backup.RotateOldBackups(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("Backup rotation failed")
	}

	fmt.Printf("Uploaded %s (%.1f MB, %d files)\n",
		result.Key, float64(result.SizeBytes)/(1024*1024), result.Files)
	return nil
}
