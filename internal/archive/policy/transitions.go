package policy

import (
	"github.com/okatech-org/digitalium-archive/internal/archive/models"
)

// TransitionRule is one legal edge of the custody graph.
//
// The graph is a subset of all forward-ordered status pairs; an absent edge
// means the transition is illegal even when the ordering would allow it.
// ApproverRole is informational for the caller: the engine only enforces the
// justification requirement and documents that role verification happens
// upstream (the transport knows the actor's role, the engine does not check
// it).
type TransitionRule struct {
	From             models.ArchivalStatus `json:"from"`
	To               models.ArchivalStatus `json:"to"`
	RequiresApproval bool                  `json:"requires_approval"`
	ApproverRole     string                `json:"approver_role,omitempty"`
	BusinessRule     string                `json:"business_rule"`
}

// transitionGraph enumerates every legal custody transition. Edges are
// listed per origin status so AvailableTransitions is a direct lookup.
var transitionGraph = map[models.ArchivalStatus][]TransitionRule{
	models.StatusActive: {
		{
			From:         models.StatusActive,
			To:           models.StatusSemiActive,
			BusinessRule: "Le document n'est plus d'usage courant; il passe en conservation semi-active.",
		},
		{
			From:             models.StatusActive,
			To:               models.StatusInactive,
			RequiresApproval: true,
			ApproverRole:     "archiviste",
			BusinessRule:     "Fermeture anticipée du dossier; justification obligatoire.",
		},
		{
			From:             models.StatusActive,
			To:               models.StatusArchived,
			RequiresApproval: true,
			ApproverRole:     "archiviste",
			BusinessRule:     "Versement direct aux archives définitives; approbation d'un archiviste requise.",
		},
	},
	models.StatusSemiActive: {
		{
			From:         models.StatusSemiActive,
			To:           models.StatusInactive,
			BusinessRule: "Fin de la durée d'utilité administrative courante.",
		},
		{
			From:             models.StatusSemiActive,
			To:               models.StatusArchived,
			RequiresApproval: true,
			ApproverRole:     "archiviste",
			BusinessRule:     "Versement aux archives définitives avant la fin de la phase semi-active.",
		},
	},
	models.StatusInactive: {
		{
			From:             models.StatusInactive,
			To:               models.StatusArchived,
			RequiresApproval: true,
			ApproverRole:     "archiviste",
			BusinessRule:     "Versement aux archives définitives à l'issue de la durée d'utilité.",
		},
		{
			From:             models.StatusInactive,
			To:               models.StatusDestruction,
			RequiresApproval: true,
			ApproverRole:     "responsable-archives",
			BusinessRule:     "Élimination sans versement; visa du responsable des archives requis.",
		},
	},
	models.StatusArchived: {
		{
			From:             models.StatusArchived,
			To:               models.StatusDestruction,
			RequiresApproval: true,
			ApproverRole:     "responsable-archives",
			BusinessRule:     "Élimination réglementaire après expiration de la durée de conservation.",
		},
	},
	// destruction is terminal: no outgoing edges.
	models.StatusDestruction: nil,
}

// LookupTransition returns the rule for (from, to) if the edge is legal.
func LookupTransition(from, to models.ArchivalStatus) (TransitionRule, bool) {
	for _, rule := range transitionGraph[from] {
		if rule.To == to {
			return rule, true
		}
	}
	return TransitionRule{}, false
}

// AvailableTransitions lists the configured outgoing edges of a status.
// Callers use it to present options; validation is re-checked on request.
func AvailableTransitions(from models.ArchivalStatus) []TransitionRule {
	rules := transitionGraph[from]
	out := make([]TransitionRule, len(rules))
	copy(out, rules)
	return out
}
