package models

// ProfilePatch is a partial update of a Profile. Nil fields are left alone.
type ProfilePatch struct {
	FullName *string `json:"full_name,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

// Apply merges the patch into p.
func (pp ProfilePatch) Apply(p *Profile) {
	if pp.FullName != nil {
		p.FullName = *pp.FullName
	}
	if pp.Timezone != nil {
		p.Timezone = *pp.Timezone
	}
}

// Empty reports whether the patch changes nothing.
func (pp ProfilePatch) Empty() bool {
	return pp.FullName == nil && pp.Timezone == nil
}

// AthletePatch is a partial update of an AthleteProfile. Nil fields are left
// alone. A non-nil empty level or Notes clears that field.
type AthletePatch struct {
	CrossFitLevel       *CrossFitLevel `json:"crossfit_level,omitempty"`
	LiftingLevel        *LiftingLevel  `json:"lifting_level,omitempty"`
	RunningLevel        *RunningLevel  `json:"running_level,omitempty"`
	TrainingDays        *DaySet        `json:"typical_training_days,omitempty"`
	SessionDurationMins *int           `json:"typical_session_duration_mins,omitempty"`
	PrimaryGoal         *Goal          `json:"primary_goal,omitempty"`
	Notes               *string        `json:"notes,omitempty"`
}

// Apply merges the patch into a.
func (ap AthletePatch) Apply(a *AthleteProfile) {
	a.CrossFitLevel = applyLevel(ap.CrossFitLevel, a.CrossFitLevel)
	a.LiftingLevel = applyLevel(ap.LiftingLevel, a.LiftingLevel)
	a.RunningLevel = applyLevel(ap.RunningLevel, a.RunningLevel)
	if ap.TrainingDays != nil {
		a.TrainingDays = ap.TrainingDays.Clone()
	}
	if ap.SessionDurationMins != nil {
		a.SessionDurationMins = *ap.SessionDurationMins
	}
	if ap.PrimaryGoal != nil {
		v := *ap.PrimaryGoal
		a.PrimaryGoal = &v
	}
	if ap.Notes != nil {
		if *ap.Notes == "" {
			a.Notes = nil
		} else {
			v := *ap.Notes
			a.Notes = &v
		}
	}
}

// applyLevel returns the level after patching cur with v.
func applyLevel[L ~string](v, cur *L) *L {
	switch {
	case v == nil:
		return cur
	case *v == "":
		return nil
	}
	l := *v
	return &l
}

// Empty reports whether the patch changes nothing.
func (ap AthletePatch) Empty() bool {
	return ap.CrossFitLevel == nil && ap.LiftingLevel == nil && ap.RunningLevel == nil &&
		ap.TrainingDays == nil && ap.SessionDurationMins == nil && ap.PrimaryGoal == nil &&
		ap.Notes == nil
}
