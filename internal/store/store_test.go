package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-ddong/floratio-lib-client/internal/models"
)

func mark(id, plantID string) models.Mark {
	return models.Mark{ID: id, Plant: models.MarkPlant{ID: plantID}}
}

func TestSetListReplacesAndClearsLoading(t *testing.T) {
	s := Reduce(State{}, SetPlantLoading{Loading: true})
	assert.True(t, s.Plant.Loading)

	s = Reduce(s, SetPlantList{Plants: []models.PlantListItem{{ID: "1"}, {ID: "2"}}})
	assert.False(t, s.Plant.Loading)
	assert.Len(t, s.Plant.Plants, 2)

	s = Reduce(s, SetPlantList{Plants: []models.PlantListItem{{ID: "3"}}})
	require.Len(t, s.Plant.Plants, 1)
	assert.Equal(t, "3", s.Plant.Plants[0].ID)
}

func TestReferenceListsHaveIndependentLoading(t *testing.T) {
	s := Reduce(State{}, SetFamiliesLoading{Loading: true})
	s = Reduce(s, SetAttributesLoading{Loading: true})
	s = Reduce(s, SetFamiliesList{Families: []models.Family{{ID: "f1", Name: "Araceae"}}})

	assert.False(t, s.Plant.FamiliesLoading)
	assert.True(t, s.Plant.AttributesLoading)
	assert.Equal(t, "Araceae", s.FamilyName("f1"))
	assert.Equal(t, "", s.FamilyName("missing"))

	s = Reduce(s, SetAttributesList{Attributes: []models.Attribute{{ID: "a1", Name: "Shade"}}})
	assert.False(t, s.Plant.AttributesLoading)
	assert.Equal(t, "Shade", s.AttributeName("a1"))
}

func TestMarkToggleIdempotence(t *testing.T) {
	s := Reduce(State{}, SetMarkList{Marks: []models.Mark{}})

	s = Reduce(s, AddMark{Mark: mark("m1", "p1")})
	s = Reduce(s, AddMark{Mark: mark("m1", "p1")})
	require.Len(t, s.Mark.Marks, 1)

	s = Reduce(s, AddMark{Mark: mark("m2", "p1")})
	assert.Len(t, s.Mark.Marks, 1, "second mark on the same plant is ignored")

	got, ok := s.MarkForPlant("p1")
	require.True(t, ok)
	assert.Equal(t, "m1", got.ID)

	s = Reduce(s, RemoveMark{MarkID: "m1"})
	assert.Empty(t, s.Mark.Marks)
	_, ok = s.MarkForPlant("p1")
	assert.False(t, ok)

	s = Reduce(s, RemoveMark{MarkID: "m1"})
	assert.Empty(t, s.Mark.Marks)
}

func TestReducersDoNotMutatePreviousState(t *testing.T) {
	before := Reduce(State{}, SetMarkList{Marks: []models.Mark{mark("m1", "p1")}})
	after := Reduce(before, AddMark{Mark: mark("m2", "p2")})
	after = Reduce(after, RemoveMark{MarkID: "m1"})

	require.Len(t, before.Mark.Marks, 1)
	assert.Equal(t, "m1", before.Mark.Marks[0].ID)
	require.Len(t, after.Mark.Marks, 1)
	assert.Equal(t, "m2", after.Mark.Marks[0].ID)

	input := []models.PlantListItem{{ID: "x"}}
	s := Reduce(State{}, SetPlantList{Plants: input})
	input[0].ID = "changed"
	assert.Equal(t, "x", s.Plant.Plants[0].ID)
}

func TestLogoutKeepsReferenceData(t *testing.T) {
	user := &models.User{ID: "u1", Username: "alice"}
	s := Reduce(State{}, SetToken{Token: "tok"})
	s = Reduce(s, SetUser{User: user})
	s = Reduce(s, SetFamiliesList{Families: []models.Family{{ID: "f1"}}})
	s = Reduce(s, SetAttributesList{Attributes: []models.Attribute{{ID: "a1"}}})
	s = Reduce(s, SetPlantList{Plants: []models.PlantListItem{{ID: "p"}}})
	s = Reduce(s, SetContributionList{Contributions: []models.Contribution{{ID: "c1"}}})
	s = Reduce(s, SetMarkList{Marks: []models.Mark{mark("m1", "p1")}})
	require.True(t, s.LoggedIn())

	s = Reduce(s, Logout{})

	assert.False(t, s.LoggedIn())
	assert.Nil(t, s.Auth.User)
	assert.Empty(t, s.Contribution.Contributions)
	assert.Empty(t, s.Mark.Marks)
	assert.Len(t, s.Plant.Families, 1)
	assert.Len(t, s.Plant.Attributes, 1)
	assert.Len(t, s.Plant.Plants, 1)
}

func TestClearActions(t *testing.T) {
	s := Reduce(State{}, SetContributionList{Contributions: []models.Contribution{{ID: "c"}}})
	s = Reduce(s, ClearContributionList{})
	assert.Empty(t, s.Contribution.Contributions)

	s = Reduce(s, SetMarkList{Marks: []models.Mark{mark("m", "p")}})
	s = Reduce(s, ResetMarks{})
	assert.Empty(t, s.Mark.Marks)

	s = Reduce(s, SetToken{Token: "t"})
	s = Reduce(s, ClearAuth{})
	assert.Empty(t, s.Auth.Token)
}

func TestStoreDispatchConcurrent(t *testing.T) {
	st := New(State{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.Dispatch(AddMark{Mark: mark(string(rune('a'+i%26))+"-mark", string(rune('a'+i%26)))})
		}(i)
	}
	wg.Wait()
	assert.Len(t, st.Snapshot().Mark.Marks, 26)
}
