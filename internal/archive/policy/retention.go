package policy

import (
	"math"
	"time"

	"github.com/okatech-org/digitalium-archive/internal/archive/models"
)

// DefaultClassification receives the rules applied when a document's
// classification has no entry of its own. The fallback is deliberate and
// logged by the engine; it is never silent data loss.
const DefaultClassification models.Classification = "default"

// RetentionRule says how long a document of a given classification stays in
// a given custody phase, under what legal basis, and what happens when the
// period lapses.
type RetentionRule struct {
	Classification models.Classification `json:"classification"`
	Status         models.ArchivalStatus `json:"status"`
	// Years is the retention period in calendar years. Ignored when
	// Permanent is set.
	Years       int    `json:"years"`
	Permanent   bool   `json:"permanent"`
	LegalBasis  string `json:"legal_basis,omitempty"`
	Description string `json:"description"`
	// AutoTransitionTo, when set, lets the retention sweep move the document
	// automatically once the period lapses.
	AutoTransitionTo *models.ArchivalStatus `json:"auto_transition_to,omitempty"`
	// Disposition is applied as the document's final disposition when this
	// rule's status is archived or destruction.
	Disposition models.FinalDisposition `json:"disposition,omitempty"`
}

func auto(s models.ArchivalStatus) *models.ArchivalStatus { return &s }

// retentionTable is keyed by classification; each entry covers every status
// so rule resolution never misses for a known classification.
var retentionTable = map[models.Classification]map[models.ArchivalStatus]RetentionRule{
	"contrat": {
		models.StatusActive:      {Years: 2, Description: "Contrat en cours d'exécution.", AutoTransitionTo: auto(models.StatusSemiActive)},
		models.StatusSemiActive:  {Years: 3, Description: "Contrat échu, utilité administrative résiduelle.", AutoTransitionTo: auto(models.StatusInactive)},
		models.StatusInactive:    {Years: 5, LegalBasis: "Code civil, art. 2224 (prescription quinquennale)", Description: "Conservation pendant le délai de prescription.", AutoTransitionTo: auto(models.StatusArchived)},
		models.StatusArchived:    {Years: 10, LegalBasis: "Code civil, art. 2224", Description: "Archives définitives avant élimination.", AutoTransitionTo: auto(models.StatusDestruction), Disposition: models.DispositionDestroy},
		models.StatusDestruction: {Permanent: true, Description: "Dossier éliminé; bordereau conservé.", Disposition: models.DispositionDestroy},
	},
	"facture": {
		models.StatusActive:      {Years: 1, Description: "Facture de l'exercice courant.", AutoTransitionTo: auto(models.StatusSemiActive)},
		models.StatusSemiActive:  {Years: 2, Description: "Exercice clos, contrôles possibles.", AutoTransitionTo: auto(models.StatusInactive)},
		models.StatusInactive:    {Years: 7, LegalBasis: "Code de commerce, art. L123-22", Description: "Conservation comptable obligatoire.", AutoTransitionTo: auto(models.StatusArchived)},
		models.StatusArchived:    {Years: 10, LegalBasis: "Code de commerce, art. L123-22", Description: "Archives comptables avant élimination.", AutoTransitionTo: auto(models.StatusDestruction), Disposition: models.DispositionDestroy},
		models.StatusDestruction: {Permanent: true, Description: "Pièce éliminée; bordereau conservé.", Disposition: models.DispositionDestroy},
	},
	"piece_comptable": {
		models.StatusActive:      {Years: 1, Description: "Pièce de l'exercice courant.", AutoTransitionTo: auto(models.StatusSemiActive)},
		models.StatusSemiActive:  {Years: 2, Description: "Exercice clos.", AutoTransitionTo: auto(models.StatusInactive)},
		models.StatusInactive:    {Years: 7, LegalBasis: "Code de commerce, art. L123-22", Description: "Conservation comptable obligatoire.", AutoTransitionTo: auto(models.StatusArchived)},
		models.StatusArchived:    {Years: 10, LegalBasis: "Code de commerce, art. L123-22", Description: "Archives comptables.", AutoTransitionTo: auto(models.StatusDestruction), Disposition: models.DispositionDestroy},
		models.StatusDestruction: {Permanent: true, Description: "Pièce éliminée; bordereau conservé.", Disposition: models.DispositionDestroy},
	},
	"dossier_rh": {
		models.StatusActive:      {Years: 5, Description: "Salarié présent dans l'effectif."},
		models.StatusSemiActive:  {Years: 5, Description: "Départ du salarié; litiges possibles.", AutoTransitionTo: auto(models.StatusInactive)},
		models.StatusInactive:    {Years: 45, LegalBasis: "Droits à pension; prescription longue", Description: "Conservation jusqu'à liquidation des droits.", AutoTransitionTo: auto(models.StatusArchived)},
		models.StatusArchived:    {Permanent: true, Description: "Conservation définitive du dossier individuel.", Disposition: models.DispositionRetainPermanently},
		models.StatusDestruction: {Permanent: true, Description: "Non applicable: conservation définitive.", Disposition: models.DispositionRetainPermanently},
	},
	"correspondance": {
		models.StatusActive:      {Years: 1, Description: "Courrier de l'année en cours.", AutoTransitionTo: auto(models.StatusSemiActive)},
		models.StatusSemiActive:  {Years: 2, Description: "Courrier classé, consultation occasionnelle.", AutoTransitionTo: auto(models.StatusInactive)},
		models.StatusInactive:    {Years: 2, Description: "Tri avant archivage ou élimination.", AutoTransitionTo: auto(models.StatusArchived)},
		models.StatusArchived:    {Years: 5, Description: "Échantillonnage pour conservation historique.", AutoTransitionTo: auto(models.StatusDestruction), Disposition: models.DispositionSelectiveReview},
		models.StatusDestruction: {Permanent: true, Description: "Courrier éliminé après tri.", Disposition: models.DispositionSelectiveReview},
	},
	DefaultClassification: {
		models.StatusActive:      {Years: 2, Description: "Durée par défaut en phase active.", AutoTransitionTo: auto(models.StatusSemiActive)},
		models.StatusSemiActive:  {Years: 3, Description: "Durée par défaut en phase semi-active.", AutoTransitionTo: auto(models.StatusInactive)},
		models.StatusInactive:    {Years: 5, Description: "Durée par défaut avant versement.", AutoTransitionTo: auto(models.StatusArchived)},
		models.StatusArchived:    {Permanent: true, Description: "Conservation définitive par défaut.", Disposition: models.DispositionRetainPermanently},
		models.StatusDestruction: {Permanent: true, Description: "Non applicable.", Disposition: models.DispositionRetainPermanently},
	},
}

// ResolveRule returns the retention rule for (classification, status). An
// unknown classification falls back to DefaultClassification's rules; the
// second return reports that fallback so callers can log it.
func ResolveRule(classification models.Classification, status models.ArchivalStatus) (RetentionRule, bool) {
	rules, ok := retentionTable[classification]
	fellBack := false
	if !ok {
		rules = retentionTable[DefaultClassification]
		fellBack = true
	}
	rule, ok := rules[status]
	if !ok {
		// Known classifications cover every status; this only happens for a
		// status unknown to the table, which gets permanent retention.
		rule = RetentionRule{Classification: classification, Status: status, Permanent: true}
	}
	rule.Classification = classification
	rule.Status = status
	return rule, fellBack
}

// RetentionEndDate computes when the rule's period lapses, counted in
// calendar years from the effective date. Nil means permanent retention.
func RetentionEndDate(rule RetentionRule, effective time.Time) *time.Time {
	if rule.Permanent {
		return nil
	}
	end := effective.AddDate(rule.Years, 0, 0)
	return &end
}

// DaysRemaining is ceil((end - now) / 24h); nil when there is no end date.
// The ceiling keeps a document due later today counted as one remaining day.
func DaysRemaining(end *time.Time, now time.Time) *int {
	if end == nil {
		return nil
	}
	days := int(math.Ceil(end.Sub(now).Hours() / 24))
	return &days
}

// Urgency buckets the remaining days for display and sweep prioritization.
type Urgency string

const (
	UrgencyExpired  Urgency = "expired"
	UrgencyCritical Urgency = "critical"
	UrgencyWarning  Urgency = "warning"
	UrgencyNormal   Urgency = "normal"
)

// UrgencyOf applies the thresholds ≤0 expired, ≤30 critical, ≤90 warning.
// No end date means no urgency: permanent documents are always normal.
func UrgencyOf(daysRemaining *int) Urgency {
	if daysRemaining == nil {
		return UrgencyNormal
	}
	switch d := *daysRemaining; {
	case d <= 0:
		return UrgencyExpired
	case d <= 30:
		return UrgencyCritical
	case d <= 90:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

// RetentionStatus bundles the countdown shown to users.
type RetentionStatus struct {
	Rule          RetentionRule `json:"rule"`
	EndDate       *time.Time    `json:"end_date,omitempty"`
	DaysRemaining *int          `json:"days_remaining,omitempty"`
	Urgency       Urgency       `json:"urgency"`
	// FellBack reports that the classification was unknown and the default
	// rules were applied.
	FellBack bool `json:"-"`
}

// EvaluateRetention resolves the current rule and computes the countdown
// against the document's stored end date.
func EvaluateRetention(classification models.Classification, status models.ArchivalStatus, end *time.Time, now time.Time) RetentionStatus {
	rule, fellBack := ResolveRule(classification, status)
	days := DaysRemaining(end, now)
	return RetentionStatus{
		Rule:          rule,
		EndDate:       end,
		DaysRemaining: days,
		Urgency:       UrgencyOf(days),
		FellBack:      fellBack,
	}
}
