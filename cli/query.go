// ABOUTME: Lookup CLI commands
// ABOUTME: Handles resolve, traverse, search, most-contacted, interests and mention
package cli

import (
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/query"
	"github.com/spf13/cobra"
)

func newResolveCommand(app *App) *cobra.Command {
	var role, category string
	cmd := &cobra.Command{
		Use:   "resolve [NAME]",
		Short: "Resolve a name or a role (--role) to one person",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			svc := app.service()
			if len(args) == 0 {
				if strings.TrimSpace(role) == "" {
					return models.NewValidationError("required", "name", "a NAME or --role is required")
				}
				res, err := svc.GetContactByRole(cmd.Context(), scope, role)
				if err != nil {
					return err
				}
				return app.printJSON(res)
			}
			res, err := svc.GetContactByName(cmd.Context(), scope, args[0], role, category)
			if err != nil {
				return err
			}
			return app.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Role relative to you, or a tie-breaking hint with NAME")
	cmd.Flags().StringVar(&category, "category", "", "Category hint: family, friends, work, acquaintance")
	return cmd
}

func newTraverseCommand(app *App) *cobra.Command {
	var start string
	cmd := &cobra.Command{
		Use:   "traverse ROLE [ROLE...]",
		Short: "Follow a chain of roles, e.g. traverse sister husband",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			startID := uuid.Nil
			if start != "" {
				if startID, err = parseUUIDArg("start", start); err != nil {
					return err
				}
			}
			res, err := app.service().Traverse(cmd.Context(), scope, startID, args)
			if err != nil {
				return err
			}
			return app.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Person to start from (default: you)")
	return cmd
}

func newSearchCommand(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Full-text search over names, notes, company and interests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			res, err := app.service().Search(cmd.Context(), scope, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			return app.printJSON(res)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	return cmd
}

func newMostContactedCommand(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "most-contacted",
		Short: "Rank your contacts by number of interactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			rows, err := app.service().MostContacted(cmd.Context(), scope, limit)
			if err != nil {
				return err
			}
			if rows == nil {
				rows = []query.ContactSummary{}
			}
			return app.printJSON(rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum number of people")
	return cmd
}

func newInterestsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "interests ROLE",
		Short: "List the interests of the person holding ROLE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			res, err := app.service().GetInterestsByRole(cmd.Context(), scope, args[0])
			if err != nil {
				return err
			}
			return app.printJSON(res)
		},
	}
}

func newMentionCommand(app *App) *cobra.Command {
	var in query.MentionInput
	cmd := &cobra.Command{
		Use:   "mention",
		Short: "Record a mention; creates a placeholder for a confident unknown",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			if strings.TrimSpace(in.Name) == "" && strings.TrimSpace(in.Role) == "" {
				return models.NewValidationError("required", "name", "--name or --role is required")
			}
			res, err := app.service().Mention(cmd.Context(), scope, in)
			if err != nil {
				return err
			}
			return app.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Name as mentioned")
	cmd.Flags().StringVar(&in.Role, "role", "", "Role as mentioned, e.g. sister")
	cmd.Flags().StringVar(&in.Category, "category", "", "Category hint")
	return cmd
}
