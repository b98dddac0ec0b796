package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/config"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/repository"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/tokens"
)

type printer struct {
	w      io.Writer
	format string // "json" | "text"
}

func (p *printer) print(v any) error {
	if list, ok := v.([]*person.Person); ok && list == nil {
		v = []*person.Person{}
	}
	if p.format == "text" {
		switch x := v.(type) {
		case *person.Person:
			if x == nil {
				_, err := fmt.Fprintln(p.w, "not found")
				return err
			}
			_, err := fmt.Fprintln(p.w, personLine(x))
			return err
		case []*person.Person:
			for _, pp := range x {
				if _, err := fmt.Fprintln(p.w, personLine(pp)); err != nil {
					return err
				}
			}
			return nil
		case repository.DeleteResult:
			_, err := fmt.Fprintf(p.w, "deleted %d\n", x.DeletedCount)
			return err
		case string:
			_, err := fmt.Fprintln(p.w, x)
			return err
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, string(b))
	return err
}

func personLine(p *person.Person) string {
	age := "-"
	if p.Age != nil {
		age = fmt.Sprint(*p.Age)
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s", p.ID, p.Name, age, strings.Join(p.FavoriteFoods, ","))
}

// newRootCmd builds the CLI. The returned func releases the backend opened by
// a command; call it after Execute whether or not the command failed.
func newRootCmd(out io.Writer, open opener) (*cobra.Command, func()) {
	var (
		memory bool
		format = envOr("PERSON_OUTPUT", "json")
		pr     = &printer{w: out}
		b      *backend
	)

	root := &cobra.Command{
		Use:           "person",
		Short:         "Run people store operations against MongoDB (or memory)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "text" {
				return fmt.Errorf("--output must be json or text, got %q", format)
			}
			pr.format = format
			if cmd.Annotations["backend"] == "none" || cmd.Name() == "help" {
				return nil
			}
			var err error
			b, err = open(cmd.Context(), memory)
			return err
		},
	}
	root.PersistentFlags().BoolVar(&memory, "memory", false, "Use the in-memory store instead of MongoDB")
	root.PersistentFlags().StringVar(&format, "output", format, "Output format: json|text (env PERSON_OUTPUT)")

	// create
	var (
		createName  string
		createAge   int
		createFoods []string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create and save one person",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := person.Input{Name: createName, FavoriteFoods: createFoods}
			if cmd.Flags().Changed("age") {
				in.Age = person.IntPtr(createAge)
			}
			p, err := b.svc.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return pr.print(p)
		},
	}
	createCmd.Flags().StringVar(&createName, "name", "", "Person name (required)")
	createCmd.Flags().IntVar(&createAge, "age", 0, "Age")
	createCmd.Flags().StringSliceVar(&createFoods, "food", nil, "Favorite food (repeatable)")

	createManyCmd := &cobra.Command{
		Use:   "create-many [file|-]",
		Short: "Create people from a JSON array (file or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var in []person.Input
			if err := json.NewDecoder(r).Decode(&in); err != nil {
				return fmt.Errorf("decode people: %w", err)
			}
			out, err := b.svc.CreateMany(cmd.Context(), in)
			if err != nil {
				return err
			}
			return pr.print(out)
		},
	}

	findByNameCmd := &cobra.Command{
		Use:   "find-by-name <name>",
		Short: "List every person with the given name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := b.svc.FindByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return pr.print(out)
		},
	}

	findOneByFoodCmd := &cobra.Command{
		Use:   "find-one-by-food [food]",
		Short: "Find one person who likes food (default " + repository.DefaultFoodToSearch + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := b.svc.FindOneByFood(cmd.Context(), argOr(args, repository.DefaultFoodToSearch))
			if err != nil {
				return err
			}
			return pr.print(p)
		},
	}

	findByIDCmd := &cobra.Command{
		Use:   "find-by-id <id>",
		Short: "Find a person by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := b.svc.FindByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return pr.print(p)
		},
	}

	var addFood string
	addFoodCmd := &cobra.Command{
		Use:   "add-food <id>",
		Short: "Append a favorite food to a person and save the whole record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := b.svc.AddFavoriteFoodAndSave(cmd.Context(), args[0], addFood)
			if err != nil {
				return err
			}
			return pr.print(p)
		},
	}
	addFoodCmd.Flags().StringVar(&addFood, "food", repository.DefaultFoodToAdd, "Food to add")

	var setAge int
	setAgeCmd := &cobra.Command{
		Use:   "set-age <name>",
		Short: "Set the age of the first person with the given name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := b.svc.SetAgeByName(cmd.Context(), args[0], setAge)
			if err != nil {
				return err
			}
			return pr.print(p)
		},
	}
	setAgeCmd.Flags().IntVar(&setAge, "age", repository.DefaultAgeToSet, "Age to set")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a person by id and print the removed record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := b.svc.DeleteByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return pr.print(p)
		},
	}

	deleteManyCmd := &cobra.Command{
		Use:   "delete-many [name]",
		Short: "Delete every person with the given name (default " + repository.DefaultNameToRemove + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := b.svc.DeleteManyByName(cmd.Context(), argOr(args, repository.DefaultNameToRemove))
			if err != nil {
				return err
			}
			return pr.print(res)
		},
	}

	queryChainCmd := &cobra.Command{
		Use:   "query-chain [food]",
		Short: "People who like food, sorted by name, at most two, without age",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := b.svc.QueryByFoodSortedLimited(cmd.Context(), argOr(args, repository.DefaultFoodToSearch))
			if err != nil {
				return err
			}
			return pr.print(out)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every person",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := b.svc.List(cmd.Context())
			if err != nil {
				return err
			}
			return pr.print(out)
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of all people to MinIO",
		RunE: func(cmd *cobra.Command, args []string) error {
			if b.exporter == nil {
				return fmt.Errorf("export needs MINIO_ENDPOINT")
			}
			res, err := b.exporter.Export(cmd.Context())
			if err != nil {
				return err
			}
			return pr.print(res)
		},
	}

	var (
		tokenSubject string
		tokenTTL     time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:         "token",
		Short:       "Mint an HS256 access token signed with JWT_SECRET",
		Annotations: map[string]string{"backend": "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			jwtCfg := config.LoadJWTConfig()
			if jwtCfg.Secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			ttl := jwtCfg.AccessTokenTTL
			if cmd.Flags().Changed("ttl") {
				ttl = tokenTTL
			}
			tok, err := tokens.Issue(jwtCfg.Secret, tokenSubject, ttl)
			if err != nil {
				return err
			}
			return pr.print(tok)
		},
	}
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "person-cli", "Token subject (sub claim)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default JWT_ACCESS_TOKEN_TTL minutes)")

	root.AddCommand(createCmd, createManyCmd, findByNameCmd, findOneByFoodCmd, findByIDCmd,
		addFoodCmd, setAgeCmd, deleteCmd, deleteManyCmd, queryChainCmd, listCmd, exportCmd, tokenCmd)
	root.SetContext(context.Background())
	release := func() {
		if b != nil {
			b.close()
			b = nil
		}
	}
	return root, release
}

func argOr(args []string, def string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return def
}
