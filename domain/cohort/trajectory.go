package cohort

// Classify assigns a healing group from the pain and function status
// values observed across a patient's visit sequence. Both fields
// contribute independently; a patient with only one field ever recorded
// is still classifiable from that field alone.
//
// The rule is a max-severity reduction over every observed status:
// any worsened value puts the patient in WithDeterioration, else any
// unchanged value puts them in WithStagnation, else all observed values
// are improved and the patient is in WithoutStagnation. Deterioration
// dominates stagnation dominates improvement, so visit order never
// affects the label. A patient with both fields missing on every visit
// is Unclassifiable.
func Classify(visits []VisitRecord) HealingGroup {
	group := GroupUnclassifiable
	for _, v := range visits {
		group = foldStatus(group, v.StatusP)
		group = foldStatus(group, v.StatusFL)
	}
	return group
}

// foldStatus merges one observed status into the running group. The
// operation is commutative and associative over the severity ordering
// WithoutStagnation < WithStagnation < WithDeterioration, with
// Unclassifiable as the identity.
func foldStatus(group HealingGroup, status StatusCode) HealingGroup {
	if !status.Valid() {
		return group
	}
	observed := severityGroup(status)
	if group == GroupUnclassifiable || observed > group {
		return observed
	}
	return group
}

func severityGroup(status StatusCode) HealingGroup {
	switch status {
	case StatusWorsened:
		return GroupWithDeterioration
	case StatusUnchanged:
		return GroupWithStagnation
	default:
		return GroupWithoutStagnation
	}
}
