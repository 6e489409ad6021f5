package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/heapgraph-analysis/internal/repository"
)

var (
	// Snapshots command flags
	listLimit int
)

// snapshotsCmd groups operations on persisted snapshots.
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect persisted heap snapshots",
	Long: `Inspect heap snapshots persisted by previous analysis runs.

Requires result persistence to be enabled in the configuration.`,
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted snapshots, newest first",
	RunE:  runSnapshotsList,
}

var snapshotsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a persisted snapshot and its flamegraph rows",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotsDelete,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsDeleteCmd)

	snapshotsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of snapshots to list")
}

// openRepositories connects to the configured result database.
func openRepositories() (*repository.Repositories, error) {
	conf := GetConfig()
	if !conf.Database.Enabled {
		return nil, fmt.Errorf("result persistence is disabled in the configuration")
	}

	gormDB, err := repository.NewGormDB(&repository.DBConfig{
		Type:     conf.Database.Type,
		Host:     conf.Database.Host,
		Port:     conf.Database.Port,
		Database: conf.Database.Database,
		User:     conf.Database.User,
		Password: conf.Database.Password,
		Path:     conf.Database.Path,
		MaxConns: conf.Database.MaxConns,
	})
	if err != nil {
		return nil, err
	}

	return repository.NewRepositories(gormDB, conf.Database.Type), nil
}

func runSnapshotsList(cmd *cobra.Command, args []string) error {
	repos, err := openRepositories()
	if err != nil {
		return err
	}
	defer repos.Close()

	snapshots, err := repos.Snapshot.ListSnapshots(cmd.Context(), listLimit)
	if err != nil {
		return err
	}

	if len(snapshots) == 0 {
		fmt.Println("No snapshots found")
		return nil
	}

	fmt.Printf("%-8s %-8s %-20s %-12s %-8s %s\n",
		"ID", "UPID", "TIMESTAMP", "RETAINED", "ROOTS", "OBJECTS")
	for _, s := range snapshots {
		fmt.Printf("%-8d %-8d %-20s %-12d %-8d %d\n",
			s.ID, s.Upid, time.Unix(0, s.GraphSampleTS).UTC().Format(time.RFC3339),
			s.TotalRetained, s.RootCount, s.ObjectCount)
	}

	return nil
}

func runSnapshotsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid snapshot id: %s", args[0])
	}

	repos, err := openRepositories()
	if err != nil {
		return err
	}
	defer repos.Close()

	if err := repos.Snapshot.DeleteSnapshot(cmd.Context(), id); err != nil {
		return err
	}

	fmt.Printf("Deleted snapshot %d\n", id)
	return nil
}
