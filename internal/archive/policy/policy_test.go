package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/okatech-org/digitalium-archive/internal/archive/models"
)

// =============================================================================
// Policy Tables Test Suite
// =============================================================================
// The permission table, the transition graph and the retention table are the
// compliance configuration of the whole engine; these tests pin their shape
// so an accidental edit to a table row fails loudly.

type PolicySuite struct {
	suite.Suite
}

func TestPolicySuite(t *testing.T) {
	suite.Run(t, new(PolicySuite))
}

// =============================================================================
// Permission Guard Tests
// =============================================================================

func (s *PolicySuite) TestIsActionAllowed() {
	s.Run("mutating actions drop as custody progresses", func() {
		s.True(IsActionAllowed(models.StatusActive, ActionEdit))
		s.True(IsActionAllowed(models.StatusActive, ActionDelete))
		s.True(IsActionAllowed(models.StatusSemiActive, ActionEdit))
		s.False(IsActionAllowed(models.StatusSemiActive, ActionDelete))
		s.False(IsActionAllowed(models.StatusInactive, ActionEdit))
		s.False(IsActionAllowed(models.StatusArchived, ActionAddVersion))
		s.False(IsActionAllowed(models.StatusArchived, ActionDelete))
	})

	s.Run("compliance actions appear in later phases", func() {
		s.False(IsActionAllowed(models.StatusActive, ActionCertifiedCopy))
		s.True(IsActionAllowed(models.StatusSemiActive, ActionCertifiedCopy))
		s.False(IsActionAllowed(models.StatusSemiActive, ActionVerifyIntegrity))
		s.True(IsActionAllowed(models.StatusInactive, ActionVerifyIntegrity))
		s.True(IsActionAllowed(models.StatusArchived, ActionDestroy))
	})

	s.Run("destruction keeps only consultation of the record", func() {
		s.True(IsActionAllowed(models.StatusDestruction, ActionView))
		s.True(IsActionAllowed(models.StatusDestruction, ActionCertifiedCopy))
		s.True(IsActionAllowed(models.StatusDestruction, ActionVerifyIntegrity))
		s.False(IsActionAllowed(models.StatusDestruction, ActionChangeStatus))
		s.False(IsActionAllowed(models.StatusDestruction, ActionDownload))
	})

	s.Run("unknown pairs are denied, never an error", func() {
		s.False(IsActionAllowed(models.ArchivalStatus("purgatoire"), ActionView))
		s.False(IsActionAllowed(models.StatusActive, Action("teleport")))
	})
}

func (s *PolicySuite) TestAllowedActions() {
	s.Run("order is stable across calls", func() {
		first := AllowedActions(models.StatusArchived)
		second := AllowedActions(models.StatusArchived)
		s.Equal(first, second)
		s.NotEmpty(first)
	})

	s.Run("unknown status yields an empty set", func() {
		s.Empty(AllowedActions(models.ArchivalStatus("purgatoire")))
	})
}

// =============================================================================
// Transition Graph Tests
// =============================================================================

func (s *PolicySuite) TestLookupTransition() {
	s.Run("every configured edge moves strictly forward", func() {
		for _, from := range models.AllStatuses {
			for _, rule := range AvailableTransitions(from) {
				s.Equal(from, rule.From)
				s.True(from.Precedes(rule.To), "edge %s -> %s", from, rule.To)
				s.NotEmpty(rule.BusinessRule)
			}
		}
	})

	s.Run("approval-gated edges always name an approver role", func() {
		for _, from := range models.AllStatuses {
			for _, rule := range AvailableTransitions(from) {
				if rule.RequiresApproval {
					s.NotEmpty(rule.ApproverRole, "edge %s -> %s", from, rule.To)
				}
			}
		}
	})

	s.Run("destruction transitions require the archives manager", func() {
		rule, ok := LookupTransition(models.StatusArchived, models.StatusDestruction)
		s.Require().True(ok)
		s.True(rule.RequiresApproval)
		s.Equal("responsable-archives", rule.ApproverRole)

		rule, ok = LookupTransition(models.StatusInactive, models.StatusDestruction)
		s.Require().True(ok)
		s.Equal("responsable-archives", rule.ApproverRole)
	})

	s.Run("absent edges are illegal even when forward-ordered", func() {
		_, ok := LookupTransition(models.StatusActive, models.StatusDestruction)
		s.False(ok)
		_, ok = LookupTransition(models.StatusSemiActive, models.StatusDestruction)
		s.False(ok)
	})

	s.Run("backward and reflexive edges do not exist", func() {
		_, ok := LookupTransition(models.StatusArchived, models.StatusActive)
		s.False(ok)
		_, ok = LookupTransition(models.StatusActive, models.StatusActive)
		s.False(ok)
	})

	s.Run("destruction has no outgoing edges", func() {
		s.Empty(AvailableTransitions(models.StatusDestruction))
	})
}

// =============================================================================
// Retention Resolution Tests
// =============================================================================

func (s *PolicySuite) TestResolveRule() {
	s.Run("known classification resolves without fallback", func() {
		rule, fellBack := ResolveRule("contrat", models.StatusInactive)
		s.False(fellBack)
		s.Equal(5, rule.Years)
		s.Contains(rule.LegalBasis, "2224")
	})

	s.Run("unknown classification falls back to default rules", func() {
		rule, fellBack := ResolveRule("plan_cadastral", models.StatusActive)
		s.True(fellBack)
		s.Equal(2, rule.Years)
		s.Equal(models.Classification("plan_cadastral"), rule.Classification)
	})

	s.Run("every classification covers every status", func() {
		for classification := range retentionTable {
			for _, status := range models.AllStatuses {
				rule, fellBack := ResolveRule(classification, status)
				s.False(fellBack)
				s.True(rule.Permanent || rule.Years > 0,
					"%s/%s has neither a period nor permanence", classification, status)
			}
		}
	})

	s.Run("auto transitions always target a legal edge", func() {
		for classification := range retentionTable {
			for _, status := range models.AllStatuses {
				rule, _ := ResolveRule(classification, status)
				if rule.AutoTransitionTo == nil {
					continue
				}
				_, ok := LookupTransition(status, *rule.AutoTransitionTo)
				s.True(ok, "%s/%s auto-targets an illegal edge", classification, status)
			}
		}
	})

	s.Run("hr files are retained permanently once archived", func() {
		rule, _ := ResolveRule("dossier_rh", models.StatusArchived)
		s.True(rule.Permanent)
		s.Nil(rule.AutoTransitionTo)
		s.Equal(models.DispositionRetainPermanently, rule.Disposition)
	})
}

func (s *PolicySuite) TestRetentionEndDate() {
	effective := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	s.Run("periods are counted in calendar years", func() {
		rule, _ := ResolveRule("facture", models.StatusInactive)
		end := RetentionEndDate(rule, effective)
		s.Require().NotNil(end)
		s.Equal(time.Date(2032, 3, 10, 9, 0, 0, 0, time.UTC), *end)
	})

	s.Run("permanent retention has no end date", func() {
		rule, _ := ResolveRule("dossier_rh", models.StatusArchived)
		s.Nil(RetentionEndDate(rule, effective))
	})
}

func (s *PolicySuite) TestDaysRemaining() {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	s.Run("due later today still counts as one day", func() {
		end := now.Add(2 * time.Hour)
		days := DaysRemaining(&end, now)
		s.Require().NotNil(days)
		s.Equal(1, *days)
	})

	s.Run("elapsed periods go to zero and below", func() {
		end := now.Add(-1 * time.Hour)
		days := DaysRemaining(&end, now)
		s.Require().NotNil(days)
		s.Equal(0, *days)

		end = now.AddDate(0, 0, -10)
		days = DaysRemaining(&end, now)
		s.Require().NotNil(days)
		s.Equal(-10, *days)
	})

	s.Run("no end date means no countdown", func() {
		s.Nil(DaysRemaining(nil, now))
	})
}

func (s *PolicySuite) TestUrgencyOf() {
	days := func(d int) *int { return &d }

	s.Run("thresholds", func() {
		s.Equal(UrgencyExpired, UrgencyOf(days(0)))
		s.Equal(UrgencyExpired, UrgencyOf(days(-5)))
		s.Equal(UrgencyCritical, UrgencyOf(days(1)))
		s.Equal(UrgencyCritical, UrgencyOf(days(30)))
		s.Equal(UrgencyWarning, UrgencyOf(days(31)))
		s.Equal(UrgencyWarning, UrgencyOf(days(90)))
		s.Equal(UrgencyNormal, UrgencyOf(days(91)))
	})

	s.Run("permanent documents are always normal", func() {
		s.Equal(UrgencyNormal, UrgencyOf(nil))
	})
}

func (s *PolicySuite) TestEvaluateRetention() {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	s.Run("bundles rule, countdown and urgency", func() {
		end := now.AddDate(0, 0, 45)
		status := EvaluateRetention("contrat", models.StatusActive, &end, now)
		s.Equal(2, status.Rule.Years)
		s.Require().NotNil(status.DaysRemaining)
		s.Equal(45, *status.DaysRemaining)
		s.Equal(UrgencyWarning, status.Urgency)
		s.False(status.FellBack)
	})

	s.Run("reports the fallback for unknown classifications", func() {
		status := EvaluateRetention("plan_cadastral", models.StatusActive, nil, now)
		s.True(status.FellBack)
	})
}
