package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/config"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/findings"
	"github.com/jimjrxieb/GPS-Copilot--sub001/internal/store"
)

func newDiffCmd() *cobra.Command {
	var dir, storePath string

	cmd := &cobra.Command{
		Use:   "diff [old] [new]",
		Short: "Show findings that are new or resolved between two runs",
		Long: `Compare two runs by finding identity.

Each argument is a run id from the snapshot store or a path to a findings.json.
With no arguments the two most recent stored runs are compared; with one
argument it is compared against the latest stored run.`,
		Args:         cobra.MaximumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if storePath == "" {
				cfg, err := config.LoadConfig(dir)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				storePath = cfg.Store.Path
			}

			var s *store.Store
			needStore := len(args) < 2
			for _, a := range args {
				if !isFile(a) {
					needStore = true
				}
			}
			if needStore {
				var err error
				if s, err = store.Open(storePath, zerolog.Nop()); err != nil {
					return err
				}
				defer s.Close()
			}

			oldRun, newRun, err := resolveRuns(s, args)
			if err != nil {
				return err
			}

			printDiff(cmd.OutOrStdout(), oldRun, newRun)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "Repository directory holding .github/gpscore.yaml")
	cmd.Flags().StringVar(&storePath, "store", "", "Run snapshot database")
	return cmd
}

// resolveRuns picks the two runs to compare from the arguments
func resolveRuns(s *store.Store, args []string) (*findings.Run, *findings.Run, error) {
	switch len(args) {
	case 2:
		oldRun, err := loadRun(s, args[0])
		if err != nil {
			return nil, nil, err
		}
		newRun, err := loadRun(s, args[1])
		return oldRun, newRun, err

	case 1:
		oldRun, err := loadRun(s, args[0])
		if err != nil {
			return nil, nil, err
		}
		newRun, err := s.Latest()
		if err != nil {
			return nil, nil, err
		}
		if newRun == nil {
			return nil, nil, fmt.Errorf("no stored runs")
		}
		return oldRun, newRun, nil

	default:
		infos, err := s.List()
		if err != nil {
			return nil, nil, err
		}
		if len(infos) < 2 {
			return nil, nil, fmt.Errorf("need at least two stored runs, have %d", len(infos))
		}
		oldRun, err := s.Get(infos[len(infos)-2].ID)
		if err != nil {
			return nil, nil, err
		}
		newRun, err := s.Get(infos[len(infos)-1].ID)
		return oldRun, newRun, err
	}
}

func loadRun(s *store.Store, ref string) (*findings.Run, error) {
	if isFile(ref) {
		return loadRunFile(ref)
	}
	if s == nil {
		return nil, fmt.Errorf("run %s: no snapshot store", ref)
	}
	return s.Get(ref)
}

func printDiff(w io.Writer, oldRun, newRun *findings.Run) {
	cmp := findings.Compare(oldRun, newRun)
	before := findings.ByFingerprint(oldRun.Findings)
	after := findings.ByFingerprint(newRun.Findings)

	fmt.Fprintf(w, "\n🔀 %s → %s\n\n", oldRun.ID, newRun.ID)
	fmt.Fprintf(w, "📈 Aggregate risk score: %.1f → %.1f\n", oldRun.AggregateRiskScore(), newRun.AggregateRiskScore())
	fmt.Fprintf(w, "Summary: 🆕 New: %d  ✅ Resolved: %d  🔁 Persisting: %d\n",
		len(cmp.New), len(cmp.Resolved), len(cmp.Persisting))

	if len(cmp.New) > 0 {
		fmt.Fprintln(w, "\n🆕 New findings:")
		for _, fp := range cmp.New {
			f := after[fp]
			fmt.Fprintf(w, "   %s %s (%s)\n", findings.SeverityEmoji(f.Severity), f.Title, f.Location())
		}
	}
	if len(cmp.Resolved) > 0 {
		fmt.Fprintln(w, "\n✅ Resolved findings:")
		for _, fp := range cmp.Resolved {
			f := before[fp]
			fmt.Fprintf(w, "   %s %s (%s)\n", findings.SeverityEmoji(f.Severity), f.Title, f.Location())
		}
	}
}
