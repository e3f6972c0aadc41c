// ABOUTME: Terminal dashboard statistics and rendering
// ABOUTME: Summarizes the owner's network by category and flags people and syncs needing attention
package viz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
)

// StaleAfterDays is how long an active relationship can go without contact before it is flagged.
const StaleAfterDays = 90

type DashboardStats struct {
	ByCategory map[string]CategoryStats

	TotalPeople       int
	Placeholders      int
	ActiveEdges       int
	EndedEdges        int
	PendingConflicts  int
	SyncStates        []models.SyncState
	StaleRelations    []StaleRelation
	NeedingCompletion []string
}

type CategoryStats struct {
	Category     string
	Count        int
	Interactions int
}

type StaleRelation struct {
	Name      string
	Role      string
	DaysSince int
}

func GenerateDashboardStats(ctx context.Context, store *db.Store, scope models.Scope) (*DashboardStats, error) {
	stats := &DashboardStats{ByCategory: make(map[string]CategoryStats)}

	people, err := store.ListPersons(ctx, scope, db.ListPersonsOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch people: %w", err)
	}
	stats.TotalPeople = len(people)
	names := make(map[string]string, len(people))
	for i := range people {
		p := &people[i]
		names[p.ID.String()] = p.Name
		if p.IsPlaceholder {
			stats.Placeholders++
		}
		if p.NeedsCompletion() && !p.IsCoreUser {
			stats.NeedingCompletion = append(stats.NeedingCompletion, p.Name)
		}
	}

	core, err := store.GetCoreUser(ctx, scope)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if core != nil {
		rels, err := store.ListForPerson(ctx, scope, core.ID, true)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch relationships: %w", err)
		}
		now := store.Now()
		for i := range rels {
			rel := &rels[i]
			if !rel.IsActive {
				stats.EndedEdges++
				continue
			}
			stats.ActiveEdges++
			cs := stats.ByCategory[rel.Category]
			cs.Category = rel.Category
			cs.Count++
			cs.Interactions += rel.InteractionCount
			stats.ByCategory[rel.Category] = cs

			other := names[rel.Other(core.ID).String()]
			if other == "" {
				continue
			}
			if rel.LastContactAt == nil {
				stats.StaleRelations = append(stats.StaleRelations, StaleRelation{Name: other, Role: rel.RoleOf(core.ID), DaysSince: -1})
			} else if days := int(now.Sub(*rel.LastContactAt) / (24 * time.Hour)); days > StaleAfterDays {
				stats.StaleRelations = append(stats.StaleRelations, StaleRelation{Name: other, Role: rel.RoleOf(core.ID), DaysSince: days})
			}
		}
	}

	conflicts, err := store.ListConflicts(ctx, scope, models.ConflictPending, 1000)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conflicts: %w", err)
	}
	stats.PendingConflicts = len(conflicts)

	states, err := store.ListSyncStates(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sync states: %w", err)
	}
	stats.SyncStates = states

	return stats, nil
}

func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  KITH NETWORK DASHBOARD\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	out.WriteString("YOUR CIRCLES\n")
	renderCategories(&out, stats)
	out.WriteString("\n")

	out.WriteString("STATS\n")
	out.WriteString(fmt.Sprintf("  👥 %d people  🔗 %d active  ✂️  %d ended  ❔ %d placeholders\n\n",
		stats.TotalPeople, stats.ActiveEdges, stats.EndedEdges, stats.Placeholders))

	if len(stats.SyncStates) > 0 {
		out.WriteString("SYNC\n")
		for _, st := range stats.SyncStates {
			line := fmt.Sprintf("  %-16s %s", st.Provider, st.Status)
			if st.LastErrorCode != "" {
				line += fmt.Sprintf(" (%s, %d failures)", st.LastErrorCode, st.FailureCount)
			}
			out.WriteString(line + "\n")
		}
		out.WriteString("\n")
	}

	if len(stats.StaleRelations) > 0 || len(stats.NeedingCompletion) > 0 || stats.PendingConflicts > 0 {
		out.WriteString("NEEDS ATTENTION\n")
		if len(stats.StaleRelations) > 0 {
			out.WriteString(fmt.Sprintf("  ⚠️  %d relationships - no contact in %d+ days\n", len(stats.StaleRelations), StaleAfterDays))
		}
		if len(stats.NeedingCompletion) > 0 {
			out.WriteString(fmt.Sprintf("  ⚠️  %d people - missing real contact details\n", len(stats.NeedingCompletion)))
		}
		if stats.PendingConflicts > 0 {
			out.WriteString(fmt.Sprintf("  ⚠️  %d sync conflicts - awaiting review\n", stats.PendingConflicts))
		}
	}

	return out.String()
}

// categoryOrder is the display order of relationship categories.
var categoryOrder = []string{
	models.CategoryFamily,
	models.CategoryFriends,
	models.CategoryWork,
	models.CategoryAcquaintance,
}

// Categories returns the non-empty categories in display order.
func (s *DashboardStats) Categories() []CategoryStats {
	var out []CategoryStats
	for _, category := range categoryOrder {
		if cs, ok := s.ByCategory[category]; ok {
			out = append(out, cs)
		}
	}
	return out
}

func renderCategories(out *strings.Builder, stats *DashboardStats) {
	categories := stats.Categories()

	maxCount := 0
	for _, cs := range categories {
		if cs.Count > maxCount {
			maxCount = cs.Count
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, cs := range categories {
		barLength := (cs.Count * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)
		out.WriteString(fmt.Sprintf("  %-13s %s  %2d (%d interactions)\n", cs.Category, bar, cs.Count, cs.Interactions))
	}
}
