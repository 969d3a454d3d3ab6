package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/p-ddong/floratio-lib-client/internal/models"
)

func plants() []models.PlantListItem {
	return []models.PlantListItem{
		{ID: "1", ScientificName: "Monstera deliciosa", Family: "Araceae", CommonName: []string{"Swiss cheese plant"}, Attributes: []string{"shade", "climber"}},
		{ID: "2", ScientificName: "Ficus lyrata", Family: "Moraceae", CommonName: []string{"Fiddle-leaf fig", "Banjo fig"}, Attributes: []string{"sun"}},
		{ID: "3", ScientificName: "Philodendron hederaceum", Family: "Araceae", CommonName: nil, Attributes: []string{"shade"}},
	}
}

func ids(list []models.PlantListItem) []string {
	out := []string{}
	for _, p := range list {
		out = append(out, p.ID)
	}
	return out
}

func TestFilterPlants(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"1", "2", "3"}},
		{"scientific name", Filter{Search: "FICUS"}, []string{"2"}},
		{"first common name", Filter{Search: "cheese"}, []string{"1"}},
		{"second common name ignored", Filter{Search: "banjo"}, []string{}},
		{"family exact", Filter{Family: "Araceae"}, []string{"1", "3"}},
		{"family partial does not match", Filter{Family: "Arac"}, []string{}},
		{"attribute", Filter{Attribute: "shade"}, []string{"1", "3"}},
		{"combined", Filter{Search: "philo", Family: "Araceae", Attribute: "shade"}, []string{"3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterPlants(plants(), tt.filter)))
		})
	}
}

func TestFilterContributions(t *testing.T) {
	list := []models.Contribution{
		{ID: "a", Status: models.StatusPending, Type: models.TypeCreate, User: models.ContributionUser{Username: "alice"}, Data: models.ContributionData{Plant: models.ContributionPlant{ScientificName: "Ficus lyrata"}}},
		{ID: "b", Status: models.StatusApproved, Type: models.TypeUpdate, User: models.ContributionUser{Username: "bob"}, Data: models.ContributionData{Plant: models.ContributionPlant{ScientificName: "Monstera"}}},
		{ID: "c", Status: models.StatusPending, Type: models.TypeUpdate, User: models.ContributionUser{Username: "carol"}, Data: models.ContributionData{Plant: models.ContributionPlant{ScientificName: "Ficus elastica"}}},
	}
	pick := func(f ContributionFilter) []string {
		out := []string{}
		for _, c := range FilterContributions(list, f) {
			out = append(out, c.ID)
		}
		return out
	}

	assert.Equal(t, []string{"a", "b", "c"}, pick(ContributionFilter{}))
	assert.Equal(t, []string{"a", "c"}, pick(ContributionFilter{Status: models.StatusPending}))
	assert.Equal(t, []string{"b", "c"}, pick(ContributionFilter{Type: models.TypeUpdate}))
	assert.Equal(t, []string{"a", "c"}, pick(ContributionFilter{Query: "ficus"}))
	assert.Equal(t, []string{"b"}, pick(ContributionFilter{Query: "BOB"}))
	assert.Equal(t, []string{"c"}, pick(ContributionFilter{Status: models.StatusPending, Type: models.TypeUpdate, Query: "ficus"}))
}

func TestTotalPages(t *testing.T) {
	tests := []struct{ n, p, want int }{
		{0, 28, 0},
		{1, 28, 1},
		{28, 28, 1},
		{29, 28, 2},
		{56, 28, 2},
		{57, 28, 3},
		{10, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.n, tt.p), "N=%d P=%d", tt.n, tt.p)
	}
}

func TestPaginateResetsOutOfRangePage(t *testing.T) {
	p := Paginate(57, 28, 3)
	assert.Equal(t, 3, p.Number)
	assert.False(t, p.Reset)
	assert.True(t, p.HasPrevious())
	assert.False(t, p.HasNext())

	p = Paginate(30, 28, 3)
	assert.Equal(t, 1, p.Number)
	assert.True(t, p.Reset)

	p = Paginate(30, 28, -4)
	assert.Equal(t, 1, p.Number)
	assert.False(t, p.Reset)

	p = Paginate(0, 0, 5)
	assert.Equal(t, DefaultPageSize, p.Size)
	assert.Equal(t, 5, p.Number, "empty lists keep the requested page")
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, Slice(items, Paginate(5, 2, 1)))
	assert.Equal(t, []int{5}, Slice(items, Paginate(5, 2, 3)))
	assert.Equal(t, []int{}, Slice(items, Page{Number: 9, Size: 2}))
}

func render(items []Item) []interface{} {
	out := []interface{}{}
	for _, it := range items {
		if it.Ellipsis {
			out = append(out, "…")
		} else {
			out = append(out, it.Page)
		}
	}
	return out
}

func TestPageItems(t *testing.T) {
	tests := []struct {
		current, total int
		want           []interface{}
	}{
		{1, 1, []interface{}{1}},
		{1, 3, []interface{}{1, 2, 3}},
		{1, 10, []interface{}{1, 2, "…", 10}},
		{4, 10, []interface{}{1, 2, 3, 4, 5, "…", 10}},
		{5, 10, []interface{}{1, "…", 4, 5, 6, "…", 10}},
		{8, 10, []interface{}{1, "…", 7, 8, 9, 10}},
		{10, 10, []interface{}{1, "…", 9, 10}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, render(PageItems(tt.current, tt.total)), "current=%d total=%d", tt.current, tt.total)
	}
	assert.Nil(t, PageItems(1, 0))

	items := PageItems(5, 10)
	for _, it := range items {
		if it.Page == 5 {
			assert.True(t, it.Current)
		}
	}
}
