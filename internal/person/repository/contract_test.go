package repository

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person"
)

// runRepositoryContract checks the behaviour every Repository must share.
// newRepo must return an empty repository.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("create with only a name applies defaults", func(t *testing.T) {
		r := newRepo(t)
		p, err := r.Create(ctx, person.Input{Name: "Joe"})
		require.NoError(t, err)
		require.NotEmpty(t, p.ID)
		require.Nil(t, p.Age)
		require.NotNil(t, p.FavoriteFoods)
		require.Empty(t, p.FavoriteFoods)
	})

	t.Run("create requires a name", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Create(ctx, person.Input{Age: person.IntPtr(3)})
		require.ErrorIs(t, err, person.ErrNameRequired)
		all, err := r.List(ctx)
		require.NoError(t, err)
		require.Empty(t, all)
	})

	t.Run("create many assigns unique ids", func(t *testing.T) {
		r := newRepo(t)
		in := []person.Input{
			{Name: "Ann", Age: person.IntPtr(30), FavoriteFoods: []string{"burrito"}},
			{Name: "Bob"},
			{Name: "Cid", FavoriteFoods: []string{"cola", "pizza"}},
		}
		out, err := r.CreateMany(ctx, in)
		require.NoError(t, err)
		require.Len(t, out, 3)
		seen := map[string]bool{}
		for i, p := range out {
			require.NotEmpty(t, p.ID)
			require.False(t, seen[p.ID], "duplicate id %s", p.ID)
			seen[p.ID] = true
			require.Equal(t, in[i].Name, p.Name)
		}
		require.Equal(t, []string{"cola", "pizza"}, out[2].FavoriteFoods)
	})

	t.Run("create many with an invalid entry inserts nothing", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.CreateMany(ctx, []person.Input{{Name: "Ann"}, {}})
		require.ErrorIs(t, err, person.ErrNameRequired)
		all, err := r.List(ctx)
		require.NoError(t, err)
		require.Empty(t, all)
	})

	t.Run("find by name", func(t *testing.T) {
		r := newRepo(t)
		joe, err := r.Create(ctx, person.Input{Name: "Joe", Age: person.IntPtr(15), FavoriteFoods: []string{"burger", "cola"}})
		require.NoError(t, err)
		_, err = r.Create(ctx, person.Input{Name: "Jane"})
		require.NoError(t, err)

		got, err := r.FindByName(ctx, "Joe")
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, joe, got[0])

		none, err := r.FindByName(ctx, "Nobody")
		require.NoError(t, err)
		require.NotNil(t, none)
		require.Empty(t, none)
	})

	t.Run("find one by favorite food", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Create(ctx, person.Input{Name: "Ann", FavoriteFoods: []string{"tea"}})
		require.NoError(t, err)
		_, err = r.Create(ctx, person.Input{Name: "Joe", FavoriteFoods: []string{"burger", "cola"}})
		require.NoError(t, err)

		got, err := r.FindOneByFood(ctx, "cola")
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Contains(t, got.FavoriteFoods, "cola")

		missing, err := r.FindOneByFood(ctx, "durian")
		require.NoError(t, err)
		require.Nil(t, missing)
	})

	t.Run("find by id", func(t *testing.T) {
		r := newRepo(t)
		p, err := r.Create(ctx, person.Input{Name: "Joe"})
		require.NoError(t, err)

		got, err := r.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, p, got)

		missing, err := r.FindByID(ctx, "0123456789abcdef01234567")
		require.NoError(t, err)
		require.Nil(t, missing)

		_, err = r.FindByID(ctx, "not-an-id")
		require.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("add favorite food appends and saves", func(t *testing.T) {
		r := newRepo(t)
		p, err := r.Create(ctx, person.Input{Name: "Joe", FavoriteFoods: []string{"burger", "cola"}})
		require.NoError(t, err)

		updated, err := r.AddFavoriteFoodAndSave(ctx, p.ID, DefaultFoodToAdd)
		require.NoError(t, err)
		require.Equal(t, []string{"burger", "cola", "hamburger"}, updated.FavoriteFoods)

		stored, err := r.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, updated.FavoriteFoods, stored.FavoriteFoods)

		missing, err := r.AddFavoriteFoodAndSave(ctx, "0123456789abcdef01234567", "x")
		require.NoError(t, err)
		require.Nil(t, missing)
	})

	t.Run("set age by name returns the updated record", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Create(ctx, person.Input{Name: "Joe", Age: person.IntPtr(15)})
		require.NoError(t, err)

		updated, err := r.SetAgeByName(ctx, "Joe", DefaultAgeToSet)
		require.NoError(t, err)
		require.NotNil(t, updated)
		require.Equal(t, 20, *updated.Age)

		got, err := r.FindByName(ctx, "Joe")
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, 20, *got[0].Age)

		missing, err := r.SetAgeByName(ctx, "Nobody", 1)
		require.NoError(t, err)
		require.Nil(t, missing)
	})

	t.Run("ids are matched regardless of hex case", func(t *testing.T) {
		r := newRepo(t)
		p, err := r.Create(ctx, person.Input{Name: "Joe", FavoriteFoods: []string{"cola"}})
		require.NoError(t, err)
		upper := strings.ToUpper(p.ID)

		got, err := r.FindByID(ctx, upper)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, p.ID, got.ID)

		updated, err := r.AddFavoriteFoodAndSave(ctx, upper, "tea")
		require.NoError(t, err)
		require.NotNil(t, updated)
		require.Equal(t, p.ID, updated.ID)
		require.Equal(t, []string{"cola", "tea"}, updated.FavoriteFoods)

		removed, err := r.DeleteByID(ctx, upper)
		require.NoError(t, err)
		require.NotNil(t, removed)
		require.Equal(t, p.ID, removed.ID)

		gone, err := r.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.Nil(t, gone)
	})

	t.Run("delete by id is idempotent", func(t *testing.T) {
		r := newRepo(t)
		p, err := r.Create(ctx, person.Input{Name: "Joe"})
		require.NoError(t, err)

		removed, err := r.DeleteByID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, removed)
		require.Equal(t, p.ID, removed.ID)

		again, err := r.DeleteByID(ctx, p.ID)
		require.NoError(t, err)
		require.Nil(t, again)

		gone, err := r.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.Nil(t, gone)
	})

	t.Run("delete many by name", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.CreateMany(ctx, []person.Input{{Name: "Mary"}, {Name: "Mary"}, {Name: "Joe"}})
		require.NoError(t, err)

		res, err := r.DeleteManyByName(ctx, DefaultNameToRemove)
		require.NoError(t, err)
		require.EqualValues(t, 2, res.DeletedCount)

		res, err = r.DeleteManyByName(ctx, DefaultNameToRemove)
		require.NoError(t, err)
		require.EqualValues(t, 0, res.DeletedCount)

		left, err := r.List(ctx)
		require.NoError(t, err)
		require.Len(t, left, 1)
		require.Equal(t, "Joe", left[0].Name)
	})

	t.Run("query chain filters sorts limits and projects", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.CreateMany(ctx, []person.Input{
			{Name: "Zed", Age: person.IntPtr(40), FavoriteFoods: []string{"burrito"}},
			{Name: "Amy", Age: person.IntPtr(22), FavoriteFoods: []string{"taco", "burrito"}},
			{Name: "Max", Age: person.IntPtr(31), FavoriteFoods: []string{"burrito"}},
			{Name: "Bea", Age: person.IntPtr(19), FavoriteFoods: []string{"salad"}},
		})
		require.NoError(t, err)

		got, err := r.QueryByFoodSortedLimited(ctx, DefaultFoodToSearch)
		require.NoError(t, err)
		require.Len(t, got, QueryLimit)
		names := []string{got[0].Name, got[1].Name}
		require.True(t, sort.StringsAreSorted(names))
		require.Equal(t, []string{"Amy", "Max"}, names)
		for _, p := range got {
			require.Nil(t, p.Age)
			require.Contains(t, p.FavoriteFoods, "burrito")
		}

		none, err := r.QueryByFoodSortedLimited(ctx, "nothing")
		require.NoError(t, err)
		require.Empty(t, none)
	})
}
