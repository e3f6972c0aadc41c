// ABOUTME: Relationship CLI commands
// ABOUTME: Handles rel link, end, list, interaction and frequency
package cli

import (
	"strings"
	"time"

	"github.com/harperreed/kith/models"
	"github.com/spf13/cobra"
)

func newRelCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "rel", Short: "Relationship operations"}
	cmd.AddCommand(
		newRelLinkCommand(app),
		newRelEndCommand(app),
		newRelListCommand(app),
		newRelInteractionCommand(app),
		newRelFrequencyCommand(app),
	)
	return cmd
}

func newRelLinkCommand(app *App) *cobra.Command {
	var role, personRole, category string
	var strength int
	cmd := &cobra.Command{
		Use:   "link PERSON_ID OTHER_ID",
		Short: "Link two people; --role is what OTHER is to PERSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			from, err := parseUUIDArg("person_id", args[0])
			if err != nil {
				return err
			}
			to, err := parseUUIDArg("other_id", args[1])
			if err != nil {
				return err
			}
			if strings.TrimSpace(role) == "" {
				return models.NewValidationError("required", "role", "--role is required")
			}

			toRole, _ := models.CanonicalRole(role)
			fromRole := personRole
			if fromRole == "" {
				p, err := app.store.GetPerson(cmd.Context(), scope, from)
				if err != nil {
					return err
				}
				fromRole = models.InverseRole(toRole, p.Gender)
			} else {
				fromRole, _ = models.CanonicalRole(fromRole)
			}

			rel := &models.Relationship{
				FromPersonID: from,
				ToPersonID:   to,
				Category:     category,
				FromRole:     fromRole,
				ToRole:       toRole,
				Strength:     strength,
			}
			if err := app.store.CreateRelationship(cmd.Context(), scope, rel); err != nil {
				return err
			}
			return app.printJSON(rel)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "What OTHER is to PERSON, e.g. husband (required)")
	cmd.Flags().StringVar(&personRole, "person-role", "", "What PERSON is to OTHER (derived when omitted)")
	cmd.Flags().StringVar(&category, "category", "", "family, friends, work or acquaintance (inferred when omitted)")
	cmd.Flags().IntVar(&strength, "strength", 0, "Initial strength 0-100")
	return cmd
}

func newRelEndCommand(app *App) *cobra.Command {
	var reason, at string
	cmd := &cobra.Command{
		Use:   "end RELATIONSHIP_ID",
		Short: "End a relationship without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			id, err := parseUUIDArg("relationship_id", args[0])
			if err != nil {
				return err
			}
			when, err := parseOptionalTime("at", at)
			if err != nil {
				return err
			}
			if err := app.store.EndRelationship(cmd.Context(), scope, id, reason, when); err != nil {
				return err
			}
			rel, err := app.store.GetRelationship(cmd.Context(), scope, id)
			if err != nil {
				return err
			}
			return app.printJSON(rel)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why it ended, e.g. divorced")
	cmd.Flags().StringVar(&at, "at", "", "When it ended, RFC3339 (default now)")
	return cmd
}

func newRelListCommand(app *App) *cobra.Command {
	var includeEnded bool
	cmd := &cobra.Command{
		Use:   "list PERSON_ID",
		Short: "List a person's relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			id, err := parseUUIDArg("person_id", args[0])
			if err != nil {
				return err
			}
			rels, err := app.store.ListForPerson(cmd.Context(), scope, id, includeEnded)
			if err != nil {
				return err
			}
			if rels == nil {
				rels = []models.Relationship{}
			}
			return app.printJSON(rels)
		},
	}
	cmd.Flags().BoolVar(&includeEnded, "include-ended", false, "Include ended relationships")
	return cmd
}

func newRelInteractionCommand(app *App) *cobra.Command {
	var kind, at string
	cmd := &cobra.Command{
		Use:   "interaction RELATIONSHIP_ID",
		Short: "Log a call, meet or text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			id, err := parseUUIDArg("relationship_id", args[0])
			if err != nil {
				return err
			}
			when, err := parseOptionalTime("at", at)
			if err != nil {
				return err
			}
			if err := app.store.RecordInteraction(cmd.Context(), scope, id, strings.ToLower(kind), when); err != nil {
				return err
			}
			rel, err := app.store.GetRelationship(cmd.Context(), scope, id)
			if err != nil {
				return err
			}
			return app.printJSON(rel)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", models.InteractionCall, "call, meet or text")
	cmd.Flags().StringVar(&at, "at", "", "When it happened, RFC3339 (default now)")
	return cmd
}

func newRelFrequencyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "frequency RELATIONSHIP_ID",
		Short: "Show interaction counts over rolling windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			id, err := parseUUIDArg("relationship_id", args[0])
			if err != nil {
				return err
			}
			freq, err := app.store.Frequency(cmd.Context(), scope, id)
			if err != nil {
				return err
			}
			return app.printJSON(freq)
		},
	}
}

func parseOptionalTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, models.NewValidationError("rfc3339", field, field+" must be an RFC3339 timestamp")
	}
	return t, nil
}
