package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/datawatch/datawatch/internal/config"
	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/internal/observability/logging"
	"github.com/datawatch/datawatch/internal/versioning"
	"github.com/datawatch/datawatch/pkg/models"
)

// NewBaselineCmd builds the baseline command group.
func NewBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage versioned baseline snapshots",
		Long: `Create, list, inspect, delete and compare baseline versions. A baseline
is an immutable snapshot of a dataset used as the reference for drift
comparison.`,
	}

	cmd.AddCommand(newBaselineCreateCmd())
	cmd.AddCommand(newBaselineListCmd())
	cmd.AddCommand(newBaselineShowCmd())
	cmd.AddCommand(newBaselineDeleteCmd())
	cmd.AddCommand(newBaselineCompareCmd())

	return cmd
}

func newBaselineManager(cfgFile string, verbose bool) (*versioning.Manager, *dataset.FileReader, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	level := "warn"
	if verbose {
		level = cfg.Logging.Level
	}
	logger := logging.New(level, cfg.Logging.Format)

	reader := dataset.NewFileReader(logger)
	manager, err := versioning.NewManager(cfg.Data.BaselineDir, reader, logger)
	if err != nil {
		return nil, nil, err
	}
	return manager, reader, nil
}

func newBaselineCreateCmd() *cobra.Command {
	var (
		cfgFile     string
		inputFile   string
		description string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Promote a dataset file to a new baseline version",
		Example: `  # Bootstrap the first baseline
  datawatch baseline create --input sales.csv

  # With a description
  datawatch baseline create --input sales.csv --description "Q3 reference"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, reader, err := newBaselineManager(cfgFile, verbose)
			if err != nil {
				return err
			}

			ds, err := reader.Read(inputFile)
			if err != nil {
				return err
			}

			metadata, err := reader.ComputeMetadata(ds, filepath.Base(inputFile), inputFile)
			if err != nil {
				return err
			}
			metadata.IsBaseline = true
			metadata.Description = description

			version, err := manager.CreateVersion(inputFile, metadata, description)
			if err != nil {
				return err
			}

			fmt.Printf("Created baseline %s (version %d) from %s\n",
				version.VersionID, version.VersionNumber, version.OriginalFilename)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default ./datawatch.yaml)")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Dataset file to promote (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Baseline description")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	cmd.MarkFlagRequired("input")

	return cmd
}

func newBaselineListCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List baseline versions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := newBaselineManager(cfgFile, verbose)
			if err != nil {
				return err
			}

			versions := manager.List()
			if len(versions) == 0 {
				fmt.Println("No baseline versions found")
				return nil
			}

			fmt.Printf("%-28s %-8s %-22s %s\n", "VERSION", "NUMBER", "CREATED", "SOURCE")
			for _, v := range versions {
				fmt.Printf("%-28s %-8d %-22s %s\n",
					v.VersionID, v.VersionNumber,
					v.CreatedAt.Format("2006-01-02 15:04:05"), v.OriginalFilename)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default ./datawatch.yaml)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	return cmd
}

func newBaselineShowCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "show <version-id>",
		Short: "Print a baseline version's full metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := newBaselineManager(cfgFile, verbose)
			if err != nil {
				return err
			}

			version := manager.Get(args[0])
			if version == nil {
				return fmt.Errorf("baseline version %s not found", args[0])
			}

			data, err := json.MarshalIndent(version, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default ./datawatch.yaml)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	return cmd
}

func newBaselineDeleteCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "delete <version-id>",
		Short: "Delete a baseline version and its data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := newBaselineManager(cfgFile, verbose)
			if err != nil {
				return err
			}

			if err := manager.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted baseline %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default ./datawatch.yaml)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	return cmd
}

func newBaselineCompareCmd() *cobra.Command {
	var (
		cfgFile   string
		inputFile string
		versionID string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a dataset file against a baseline",
		Long: `Compute metadata for a dataset file and diff it against a baseline
version. Without --version the latest baseline is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, reader, err := newBaselineManager(cfgFile, verbose)
			if err != nil {
				return err
			}

			ds, err := reader.Read(inputFile)
			if err != nil {
				return err
			}

			metadata, err := reader.ComputeMetadata(ds, filepath.Base(inputFile), inputFile)
			if err != nil {
				return err
			}

			printComparison(manager.Compare(metadata, versionID))
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default ./datawatch.yaml)")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Dataset file to compare (required)")
	cmd.Flags().StringVar(&versionID, "version", "", "Baseline version id (default latest)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	cmd.MarkFlagRequired("input")

	return cmd
}

func printComparison(report *models.ComparisonReport) {
	if !report.HasBaseline {
		fmt.Println(report.Message)
		return
	}

	fmt.Printf("Compared against %s\n", report.BaselineVersion)

	if report.Differences() == 0 {
		fmt.Println("No differences found")
		return
	}

	if report.RowCount != nil {
		line := fmt.Sprintf("Rows: %d -> %d (%+d", report.RowCount.Baseline,
			report.RowCount.Current, report.RowCount.Change)
		if report.RowCount.ChangePercentage != nil {
			line += fmt.Sprintf(", %+.2f%%", *report.RowCount.ChangePercentage)
		}
		fmt.Println(line + ")")
	}

	if report.ColumnCount != nil {
		fmt.Printf("Columns: %d -> %d (%+d)\n", report.ColumnCount.Baseline,
			report.ColumnCount.Current, report.ColumnCount.Change)
	}

	if report.ColumnSchema != nil {
		if len(report.ColumnSchema.MissingColumns) > 0 {
			fmt.Printf("Missing columns: %v\n", report.ColumnSchema.MissingColumns)
		}
		if len(report.ColumnSchema.ExtraColumns) > 0 {
			fmt.Printf("Extra columns: %v\n", report.ColumnSchema.ExtraColumns)
		}
	}

	for _, change := range report.DataTypes {
		fmt.Printf("Type change in %s: %s -> %s\n",
			change.Column, change.BaselineDType, change.CurrentDType)
	}
}
