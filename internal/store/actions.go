package store

import "github.com/p-ddong/floratio-lib-client/internal/models"

// Action is a state transition. The set of actions is closed.
type Action interface {
	action()
}

// Auth slice
type (
	SetToken  struct{ Token string }
	SetUser   struct{ User *models.User }
	ClearAuth struct{}
)

// Plant slice
type (
	SetPlantLoading      struct{ Loading bool }
	SetPlantList         struct{ Plants []models.PlantListItem }
	SetFamiliesLoading   struct{ Loading bool }
	SetFamiliesList      struct{ Families []models.Family }
	SetAttributesLoading struct{ Loading bool }
	SetAttributesList    struct{ Attributes []models.Attribute }
)

// Contribution slice
type (
	SetContributionLoading struct{ Loading bool }
	SetContributionList    struct{ Contributions []models.Contribution }
	ClearContributionList  struct{}
)

// Mark slice
type (
	SetMarkLoading struct{ Loading bool }
	SetMarkList    struct{ Marks []models.Mark }
	AddMark        struct{ Mark models.Mark }
	RemoveMark     struct{ MarkID string }
	ResetMarks     struct{}
)

// Logout clears every user-scoped slice
type Logout struct{}

func (SetToken) action()               {}
func (SetUser) action()                {}
func (ClearAuth) action()              {}
func (SetPlantLoading) action()        {}
func (SetPlantList) action()           {}
func (SetFamiliesLoading) action()     {}
func (SetFamiliesList) action()        {}
func (SetAttributesLoading) action()   {}
func (SetAttributesList) action()      {}
func (SetContributionLoading) action() {}
func (SetContributionList) action()    {}
func (ClearContributionList) action()  {}
func (SetMarkLoading) action()         {}
func (SetMarkList) action()            {}
func (AddMark) action()                {}
func (RemoveMark) action()             {}
func (ResetMarks) action()             {}
func (Logout) action()                 {}
