package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/studymeta/backend/internal/lectures"
	"github.com/studymeta/backend/internal/media"
	"github.com/studymeta/backend/pkg/storage"
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Compare packaged videos with lecture video paths",
	Long: `Lists output directories no lecture references and lectures whose local
package is missing or incomplete. Paths that name a directory on the remote
storage host are checked for a manifest in the videos bucket when S3 is
configured, and only counted otherwise.`,
	RunE: runDrift,
}

var driftOutputRoot string

func init() {
	driftCmd.Flags().StringVar(&driftOutputRoot, "output-root", "", "packaged video root (defaults to VIDEO_OUTPUT_ROOT)")
}

// ObjectChecker looks up objects in the videos bucket.
type ObjectChecker interface {
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// DriftReport is the difference between stored packages and the lectures table.
type DriftReport struct {
	Orphaned      []string    // directories under the output root no lecture points at
	Missing       []uuid.UUID // lectures whose local package cannot be read
	Remote        int         // lectures whose path lives on the storage host
	RemoteMissing []uuid.UUID // remote paths with no manifest in the bucket
}

// Clean reports whether storage and database agree.
func (r DriftReport) Clean() bool {
	return len(r.Orphaned) == 0 && len(r.Missing) == 0 && len(r.RemoteMissing) == 0
}

// buildDriftReport compares the directories under root with lecture video paths.
// A locally packaged video path is a bare directory name; anything containing a slash is remote.
// remote may be nil.
func buildDriftReport(ctx context.Context, root string, paths map[uuid.UUID]string, remote ObjectChecker) (DriftReport, error) {
	var report DriftReport
	entries, err := os.ReadDir(root)
	if err != nil {
		return report, fmt.Errorf("read output root: %w", err)
	}

	referenced := make(map[string]struct{}, len(paths))
	for id, p := range paths {
		if strings.Contains(p, "/") {
			report.Remote++
			if remote == nil {
				continue
			}
			ok, err := remote.ObjectExists(ctx, storage.PlaylistKey(p))
			if err != nil {
				return report, fmt.Errorf("lecture %s: %w", id, err)
			}
			if !ok {
				report.RemoteMissing = append(report.RemoteMissing, id)
			}
			continue
		}
		referenced[p] = struct{}{}
		if _, err := media.ReadPackage(filepath.Join(root, p)); err != nil {
			report.Missing = append(report.Missing, id)
		}
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := referenced[e.Name()]; !ok {
			report.Orphaned = append(report.Orphaned, e.Name())
		}
	}
	sort.Strings(report.Orphaned)
	sortIDs(report.Missing)
	sortIDs(report.RemoteMissing)
	return report, nil
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}

func printDriftReport(w io.Writer, r DriftReport) {
	for _, d := range r.Orphaned {
		fmt.Fprintf(w, "orphaned\t%s\n", d)
	}
	for _, id := range r.Missing {
		fmt.Fprintf(w, "missing\t%s\n", id)
	}
	for _, id := range r.RemoteMissing {
		fmt.Fprintf(w, "remote-missing\t%s\n", id)
	}
	fmt.Fprintf(w, "remote\t%d\n", r.Remote)
}

func runDrift(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root := driftOutputRoot
	if root == "" {
		root = cfg.Pipeline.OutputRoot
	}
	pool, err := openPool(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	var remote ObjectChecker
	if cfg.AWS.Configured() {
		s3Client, err := storage.NewS3(cmd.Context(), storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.Endpoint,
			VideosBucket:    cfg.AWS.VideosBucket,
		}, logger)
		if err != nil {
			return fmt.Errorf("s3: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "bucket\ts3://%s\n", s3Client.Bucket())
		remote = s3Client
	}

	paths, err := lectures.NewRepository(pool).ListVideoPaths(cmd.Context())
	if err != nil {
		return fmt.Errorf("list video paths: %w", err)
	}
	report, err := buildDriftReport(cmd.Context(), root, paths, remote)
	if err != nil {
		return err
	}
	printDriftReport(cmd.OutOrStdout(), report)
	if !report.Clean() {
		return fmt.Errorf("drift: %d orphaned, %d missing, %d missing remotely",
			len(report.Orphaned), len(report.Missing), len(report.RemoteMissing))
	}
	return nil
}
