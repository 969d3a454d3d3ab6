package store

import (
	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// Reduce is the single dispatch path. It never mutates s.
func Reduce(s State, a Action) State {
	if _, ok := a.(Logout); ok {
		s.Auth = AuthState{}
		s.Contribution = ContributionState{}
		s.Mark = MarkState{}
		return s
	}
	s.Auth = ReduceAuth(s.Auth, a)
	s.Plant = ReducePlant(s.Plant, a)
	s.Contribution = ReduceContribution(s.Contribution, a)
	s.Mark = ReduceMark(s.Mark, a)
	return s
}

// ReduceAuth handles auth actions
func ReduceAuth(s AuthState, a Action) AuthState {
	switch act := a.(type) {
	case SetToken:
		s.Token = act.Token
	case SetUser:
		if act.User == nil {
			s.User = nil
		} else {
			u := *act.User
			s.User = &u
		}
	case ClearAuth:
		return AuthState{}
	}
	return s
}

// ReducePlant handles plant and reference data actions. Lists are replaced, never merged.
func ReducePlant(s PlantState, a Action) PlantState {
	switch act := a.(type) {
	case SetPlantLoading:
		s.Loading = act.Loading
	case SetPlantList:
		s.Plants = cloneSlice(act.Plants)
		s.Loading = false
	case SetFamiliesLoading:
		s.FamiliesLoading = act.Loading
	case SetFamiliesList:
		s.Families = cloneSlice(act.Families)
		s.FamiliesLoading = false
	case SetAttributesLoading:
		s.AttributesLoading = act.Loading
	case SetAttributesList:
		s.Attributes = cloneSlice(act.Attributes)
		s.AttributesLoading = false
	}
	return s
}

// ReduceContribution handles contribution actions
func ReduceContribution(s ContributionState, a Action) ContributionState {
	switch act := a.(type) {
	case SetContributionLoading:
		s.Loading = act.Loading
	case SetContributionList:
		s.Contributions = cloneSlice(act.Contributions)
		s.Loading = false
	case ClearContributionList:
		return ContributionState{}
	}
	return s
}

// ReduceMark handles bookmark actions. AddMark is idempotent on mark id and plant id.
func ReduceMark(s MarkState, a Action) MarkState {
	switch act := a.(type) {
	case SetMarkLoading:
		s.Loading = act.Loading
	case SetMarkList:
		s.Marks = cloneSlice(act.Marks)
		s.Loading = false
	case AddMark:
		for _, m := range s.Marks {
			if m.ID == act.Mark.ID || (act.Mark.Plant.ID != "" && m.Plant.ID == act.Mark.Plant.ID) {
				return s
			}
		}
		marks := make([]models.Mark, 0, len(s.Marks)+1)
		marks = append(marks, s.Marks...)
		s.Marks = append(marks, act.Mark)
	case RemoveMark:
		marks := make([]models.Mark, 0, len(s.Marks))
		for _, m := range s.Marks {
			if m.ID != act.MarkID {
				marks = append(marks, m)
			}
		}
		s.Marks = marks
	case ResetMarks:
		return MarkState{}
	}
	return s
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
