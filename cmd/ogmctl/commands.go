package main

import (
	"fmt"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CaliLuke/go-cypherogm/internal/bookstore"
	"github.com/CaliLuke/go-cypherogm/ogm"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ogmctl",
		Short:         "Object-graph mapping tooling for Neo4j",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./ogmctl.yaml)")
	root.PersistentFlags().BoolVar(&a.metrics, "metrics", false, "print statement metrics after the command")

	root.AddCommand(
		newVersionCmd(),
		newCompileCmd(a),
		newSchemaCmd(a),
		newSeedCmd(a),
		newShowCmd(a),
		newPurgeCmd(a),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ogmctl version: %s\n", Version)
			fmt.Fprintf(out, "Git commit: %s\n", GitCommit)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		},
	}
}

func newCompileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "compile",
		Short:   "Print the Cypher compiled for the book/chapters include query",
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := bookstore.ChaptersQuery()
			if err != nil {
				return err
			}
			stmt, err := q.Statement()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stmt.Text)
			return nil
		},
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:     "schema",
		Short:   "Print or apply the uniqueness constraints and indexes",
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !apply {
				fmt.Fprintln(cmd.OutOrStdout(), ogm.GenerateSchema())
				return nil
			}
			return a.connect(cmd, func(s store) error {
				if err := ogm.EnsureSchema(cmd.Context(), s); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d schema statements\n", len(ogm.SchemaStatements()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "run the statements against the server")
	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "seed",
		Short:   "Save a sample book with its chapters and author",
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			book := bookstore.Dune()
			gc := ogm.NewGraphContext(ogm.WithLogger(a.logger))
			defer gc.Close()
			if err := gc.Track(book); err != nil {
				return err
			}
			return a.connect(cmd, func(s store) error {
				err := s.InTransaction(cmd.Context(), func(exec ogm.Executor) error {
					return gc.Save(cmd.Context(), exec)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %q (Id %d) with %d chapters\n", book.Name, book.Id, len(book.Chapters))
				return nil
			})
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "show",
		Short:   "Load every book with its chapters and print them as JSON",
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := bookstore.ChaptersQuery()
			if err != nil {
				return err
			}
			return a.connect(cmd, func(s store) error {
				books, err := q.Execute(cmd.Context(), s)
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(bookViews(books), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	}
}

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "purge",
		Short:   "Delete every book and its chapters",
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := bookstore.ChaptersQuery()
			if err != nil {
				return err
			}
			return a.connect(cmd, func(s store) error {
				books, err := q.Execute(cmd.Context(), s)
				if err != nil {
					return err
				}
				gc := ogm.NewGraphContext(ogm.WithLogger(a.logger))
				defer gc.Close()
				for _, b := range books {
					for _, c := range b.Chapters {
						if err := gc.Untrack(c); err != nil {
							return err
						}
					}
					if err := gc.Untrack(b); err != nil {
						return err
					}
				}
				removed := len(gc.Pending())
				err = s.InTransaction(cmd.Context(), func(exec ogm.Executor) error {
					return gc.Save(cmd.Context(), exec)
				})
				if err != nil {
					return err
				}
				a.logger.Info("purged", zap.Int("books", len(books)), zap.Int("nodes", removed))
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d books, %d nodes\n", len(books), removed)
				return nil
			})
		},
	}
}
