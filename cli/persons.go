// ABOUTME: Person CLI commands
// ABOUTME: Handles init-owner and person add, get, list, archive and alias
package cli

import (
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/query"
	"github.com/spf13/cobra"
)

func newInitOwnerCommand(app *App) *cobra.Command {
	var name, email, phone, gender string
	cmd := &cobra.Command{
		Use:   "init-owner",
		Short: "Create the owner's own person record (the core user)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(name) == "" {
				return models.NewValidationError("required", "name", "--name is required")
			}
			if app.cfg.Owner == "" {
				app.cfg.Owner = uuid.NewString()
			}
			scope, err := app.scope()
			if err != nil {
				return err
			}
			p := &models.Person{Name: name, PersonalEmail: email, PersonalPhone: phone, Gender: gender, IsCoreUser: true}
			if err := app.store.CreatePerson(cmd.Context(), scope, p); err != nil {
				return err
			}
			app.log.Info().Str("owner_id", scope.OwnerID.String()).Str("person_id", p.ID.String()).Msg("initialized owner")
			return app.printJSON(map[string]any{"owner_id": scope.OwnerID.String(), "person": p})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Your name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Your email")
	cmd.Flags().StringVar(&phone, "phone", "", "Your phone")
	cmd.Flags().StringVar(&gender, "gender", "", "Your gender, used to derive inverse roles")
	return cmd
}

func newPersonCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "person", Short: "Person operations"}
	cmd.AddCommand(
		newPersonAddCommand(app),
		newPersonGetCommand(app),
		newPersonListCommand(app),
		newPersonArchiveCommand(app),
		newPersonAliasCommand(app),
	)
	return cmd
}

func newPersonAddCommand(app *App) *cobra.Command {
	var p models.Person
	var role, category string
	var placeholder bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a person, optionally linked to you with --role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			p.Name = strings.TrimSpace(p.Name)
			if p.Name == "" {
				return models.NewValidationError("required", "name", "--name is required")
			}
			p.IsPlaceholder = placeholder || !p.HasRealContact()

			created, rel, err := app.service().AddPerson(cmd.Context(), scope, query.AddPersonInput{Person: p, Role: role, Category: category})
			if err != nil {
				return err
			}
			return app.printJSON(map[string]any{"person": created, "relationship": rel})
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Name, "name", "", "Name (required)")
	f.StringSliceVar(&p.Aliases, "alias", nil, "Nickname or alternate name (repeatable)")
	f.StringVar(&p.PersonalEmail, "email", "", "Personal email")
	f.StringVar(&p.WorkEmail, "work-email", "", "Work email")
	f.StringVar(&p.PersonalPhone, "phone", "", "Personal phone")
	f.StringVar(&p.WorkPhone, "work-phone", "", "Work phone")
	f.StringVar(&p.Company, "company", "", "Employer")
	f.StringVar(&p.Title, "title", "", "Job title (requires --company)")
	f.StringVar(&p.City, "city", "", "City")
	f.StringVar(&p.Country, "country", "", "Country")
	f.StringVar(&p.Gender, "gender", "", "Gender")
	f.StringVar(&p.Notes, "notes", "", "Notes")
	f.StringVar(&role, "role", "", "What this person is to you, e.g. sister")
	f.StringVar(&category, "category", "", "family, friends, work or acquaintance")
	f.BoolVar(&placeholder, "placeholder", false, "Mark as a placeholder awaiting real contact details")
	return cmd
}

func newPersonGetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get PERSON_ID",
		Short: "Show one person with their external identities",
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
			p, err := app.store.GetPerson(cmd.Context(), scope, id)
			if err != nil {
				return err
			}
			idents, err := app.store.ListIdentities(cmd.Context(), scope, id)
			if err != nil {
				return err
			}
			return app.printJSON(map[string]any{"person": p, "identities": idents, "needs_completion": p.NeedsCompletion()})
		},
	}
}

func newPersonListCommand(app *App) *cobra.Command {
	var opts db.ListPersonsOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List people",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			people, err := app.store.ListPersons(cmd.Context(), scope, opts)
			if err != nil {
				return err
			}
			if people == nil {
				people = []models.Person{}
			}
			return app.printJSON(people)
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "Only this status: active, deceased, blocked, archived")
	cmd.Flags().BoolVar(&opts.IncludeArchived, "include-archived", false, "Include archived people")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of people")
	return cmd
}

func newPersonArchiveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "archive PERSON_ID",
		Short: "Archive a person; their history is kept",
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
			if err := app.store.ArchivePerson(cmd.Context(), scope, id); err != nil {
				return err
			}
			return app.printJSON(map[string]any{"archived": id.String()})
		},
	}
}

func newPersonAliasCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "alias PERSON_ID ALIAS",
		Short: "Add a nickname or alternate name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			id, err := parseUUIDArg("person_id", args[0])
			if err != nil {
				return err
			}
			p, err := app.store.AddAlias(cmd.Context(), scope, id, args[1])
			if err != nil {
				return err
			}
			return app.printJSON(p)
		},
	}
}
