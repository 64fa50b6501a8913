package model

// FlowDefinition is the explicit element graph of a job: named elements
// (steps or splits) connected by transition rules evaluated against exit
// statuses. Flows are built programmatically; there is no external
// definition format.
type FlowDefinition struct {
	StartElement    string
	Elements        map[string]interface{}
	TransitionRules []TransitionRule
}

// TransitionRule routes the flow after element From finished with an exit
// status matching On ("*" matches any). Exactly one of To / End / Fail /
// Stop applies.
type TransitionRule struct {
	From string
	On   ExitStatus
	To   string
	End  bool
	Fail bool
	Stop bool
}

// NewFlowDefinition creates an empty flow starting at startElement.
func NewFlowDefinition(startElement string) *FlowDefinition {
	return &FlowDefinition{
		StartElement: startElement,
		Elements:     make(map[string]interface{}),
	}
}

// AddElement registers a named element (a Step or a Split).
func (f *FlowDefinition) AddElement(name string, element interface{}) {
	f.Elements[name] = element
}

// AddTransitionRule appends a routing rule.
func (f *FlowDefinition) AddTransitionRule(rule TransitionRule) {
	f.TransitionRules = append(f.TransitionRules, rule)
}

// GetTransitionRule finds the rule for element from with the given exit
// status. An exact On match wins over a wildcard.
func (f *FlowDefinition) GetTransitionRule(from string, exitStatus ExitStatus) (TransitionRule, bool) {
	var wildcard *TransitionRule
	for i := range f.TransitionRules {
		rule := &f.TransitionRules[i]
		if rule.From != from {
			continue
		}
		if rule.On == exitStatus {
			return *rule, true
		}
		if rule.On == "*" && wildcard == nil {
			wildcard = rule
		}
	}
	if wildcard != nil {
		return *wildcard, true
	}
	return TransitionRule{}, false
}
