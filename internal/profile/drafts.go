package profile

import (
	"fmt"
	"strings"

	"github.com/claude/hybridathlete/internal/models"
)

// Section is one independently editable group of profile fields.
type Section string

const (
	SectionPersonal Section = "personal"
	SectionLevels   Section = "levels"
	SectionSchedule Section = "schedule"
	SectionGoal     Section = "goal"
	SectionNotes    Section = "notes"
)

// Sections lists every editable section in display order.
var Sections = []Section{SectionPersonal, SectionLevels, SectionSchedule, SectionGoal, SectionNotes}

// ParseSection validates a section name.
func ParseSection(s string) (Section, error) {
	for _, sec := range Sections {
		if string(sec) == s {
			return sec, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, s)
}

// Field names accepted by MutateDraft.
const (
	FieldFullName        = "full_name"
	FieldTimezone        = "timezone"
	FieldCrossFitLevel   = "crossfit_level"
	FieldLiftingLevel    = "lifting_level"
	FieldRunningLevel    = "running_level"
	FieldTrainingDays    = "typical_training_days"
	FieldSessionDuration = "typical_session_duration_mins"
	FieldPrimaryGoal     = "primary_goal"
	FieldNotes           = "notes"
)

// Draft is the uncommitted working copy of one section. The concrete types
// below are the only implementations.
type Draft interface {
	Section() Section
	set(field, value string) error
	clone() Draft
}

// ProfileDraft is a draft whose commit targets the primary profile.
type ProfileDraft interface {
	Draft
	Patch() models.ProfilePatch
}

// AthleteDraft is a draft whose commit targets the athlete profile.
type AthleteDraft interface {
	Draft
	Patch() models.AthletePatch
}

func notInSection(field string, s Section) error {
	return fmt.Errorf("%w: %q is not part of %s", ErrFieldNotInSection, field, s)
}

type PersonalDraft struct {
	FullName string `json:"full_name"`
	Timezone string `json:"timezone"`
}

func (d *PersonalDraft) Section() Section { return SectionPersonal }

func (d *PersonalDraft) set(field, value string) error {
	switch field {
	case FieldFullName:
		d.FullName = value
	case FieldTimezone:
		d.Timezone = value
	default:
		return notInSection(field, SectionPersonal)
	}
	return nil
}

func (d *PersonalDraft) clone() Draft { c := *d; return &c }

func (d *PersonalDraft) Patch() models.ProfilePatch {
	name, tz := d.FullName, d.Timezone
	return models.ProfilePatch{FullName: &name, Timezone: &tz}
}

type LevelsDraft struct {
	CrossFitLevel *models.CrossFitLevel `json:"crossfit_level"`
	LiftingLevel  *models.LiftingLevel  `json:"lifting_level"`
	RunningLevel  *models.RunningLevel  `json:"running_level"`
}

func (d *LevelsDraft) Section() Section { return SectionLevels }

// set parses a level; a blank value clears it.
func (d *LevelsDraft) set(field, value string) error {
	if strings.TrimSpace(value) == "" {
		switch field {
		case FieldCrossFitLevel:
			d.CrossFitLevel = nil
		case FieldLiftingLevel:
			d.LiftingLevel = nil
		case FieldRunningLevel:
			d.RunningLevel = nil
		default:
			return notInSection(field, SectionLevels)
		}
		return nil
	}
	switch field {
	case FieldCrossFitLevel:
		v, err := models.ParseCrossFitLevel(value)
		if err != nil {
			return err
		}
		d.CrossFitLevel = &v
	case FieldLiftingLevel:
		v, err := models.ParseLiftingLevel(value)
		if err != nil {
			return err
		}
		d.LiftingLevel = &v
	case FieldRunningLevel:
		v, err := models.ParseRunningLevel(value)
		if err != nil {
			return err
		}
		d.RunningLevel = &v
	default:
		return notInSection(field, SectionLevels)
	}
	return nil
}

func (d *LevelsDraft) clone() Draft { c := *d; return &c }

// Patch always carries all three levels; an empty level clears it.
func (d *LevelsDraft) Patch() models.AthletePatch {
	return models.AthletePatch{
		CrossFitLevel: levelOrClear(d.CrossFitLevel),
		LiftingLevel:  levelOrClear(d.LiftingLevel),
		RunningLevel:  levelOrClear(d.RunningLevel),
	}
}

func levelOrClear[L ~string](p *L) *L {
	if p == nil {
		var empty L
		return &empty
	}
	v := *p
	return &v
}

type ScheduleDraft struct {
	TrainingDays        models.DaySet `json:"typical_training_days"`
	SessionDurationMins int           `json:"typical_session_duration_mins"`
}

func (d *ScheduleDraft) Section() Section { return SectionSchedule }

// set toggles a weekday for the training days field rather than overwriting it.
func (d *ScheduleDraft) set(field, value string) error {
	switch field {
	case FieldTrainingDays:
		day, err := models.ParseWeekday(value)
		if err != nil {
			return err
		}
		d.TrainingDays = d.TrainingDays.Toggle(day)
	case FieldSessionDuration:
		n, err := models.ParseSessionDuration(value)
		if err != nil {
			return err
		}
		d.SessionDurationMins = n
	default:
		return notInSection(field, SectionSchedule)
	}
	return nil
}

func (d *ScheduleDraft) clone() Draft {
	return &ScheduleDraft{TrainingDays: d.TrainingDays.Clone(), SessionDurationMins: d.SessionDurationMins}
}

func (d *ScheduleDraft) Patch() models.AthletePatch {
	days := d.TrainingDays.Clone()
	mins := d.SessionDurationMins
	return models.AthletePatch{TrainingDays: &days, SessionDurationMins: &mins}
}

type GoalDraft struct {
	PrimaryGoal *models.Goal `json:"primary_goal"`
}

func (d *GoalDraft) Section() Section { return SectionGoal }

func (d *GoalDraft) set(field, value string) error {
	if field != FieldPrimaryGoal {
		return notInSection(field, SectionGoal)
	}
	g, err := models.ParseGoal(value)
	if err != nil {
		return err
	}
	d.PrimaryGoal = &g
	return nil
}

func (d *GoalDraft) clone() Draft { c := *d; return &c }

func (d *GoalDraft) Patch() models.AthletePatch {
	return models.AthletePatch{PrimaryGoal: d.PrimaryGoal}
}

type NotesDraft struct {
	Notes string `json:"notes"`
}

func (d *NotesDraft) Section() Section { return SectionNotes }

func (d *NotesDraft) set(field, value string) error {
	if field != FieldNotes {
		return notInSection(field, SectionNotes)
	}
	d.Notes = value
	return nil
}

func (d *NotesDraft) clone() Draft { c := *d; return &c }

// Patch always carries notes; an empty string clears them.
func (d *NotesDraft) Patch() models.AthletePatch {
	notes := d.Notes
	return models.AthletePatch{Notes: &notes}
}

// newDraft snapshots the fields of section from the cached entities. It
// reports false when the entity backing the section is not loaded.
func newDraft(section Section, p *models.Profile, ap *models.AthleteProfile) (Draft, bool) {
	if section == SectionPersonal {
		if p == nil {
			return nil, false
		}
		return &PersonalDraft{FullName: p.FullName, Timezone: p.Timezone}, true
	}
	if ap == nil {
		return nil, false
	}
	switch section {
	case SectionLevels:
		return &LevelsDraft{
			CrossFitLevel: clonePtr(ap.CrossFitLevel),
			LiftingLevel:  clonePtr(ap.LiftingLevel),
			RunningLevel:  clonePtr(ap.RunningLevel),
		}, true
	case SectionSchedule:
		return &ScheduleDraft{TrainingDays: ap.TrainingDays.Clone(), SessionDurationMins: ap.SessionDurationMins}, true
	case SectionGoal:
		return &GoalDraft{PrimaryGoal: clonePtr(ap.PrimaryGoal)}, true
	case SectionNotes:
		notes := ""
		if ap.Notes != nil {
			notes = *ap.Notes
		}
		return &NotesDraft{Notes: notes}, true
	}
	return nil, false
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
