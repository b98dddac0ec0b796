package person

import "errors"

// ErrNameRequired is returned when a person is created without a name.
var ErrNameRequired = errors.New("person name is required")

// Person is the single entity stored in the people collection.
// Age is a pointer so that "never set" and "projected away" stay distinguishable
// from zero.
type Person struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Age           *int     `json:"age,omitempty"`
	FavoriteFoods []string `json:"favoriteFoods"`
}

// Input is the payload used to create a person.
type Input struct {
	Name          string   `json:"name" binding:"required"`
	Age           *int     `json:"age,omitempty"`
	FavoriteFoods []string `json:"favoriteFoods,omitempty"`
}

// Validate checks the only schema rule: name must be present.
func (in Input) Validate() error {
	if in.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// Person builds a new, unsaved Person with defaults applied.
func (in Input) Person() *Person {
	p := &Person{Name: in.Name, FavoriteFoods: []string{}}
	if in.Age != nil {
		age := *in.Age
		p.Age = &age
	}
	p.FavoriteFoods = append(p.FavoriteFoods, in.FavoriteFoods...)
	return p
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (p *Person) Clone() *Person {
	if p == nil {
		return nil
	}
	out := &Person{ID: p.ID, Name: p.Name, FavoriteFoods: make([]string, len(p.FavoriteFoods))}
	copy(out.FavoriteFoods, p.FavoriteFoods)
	if p.Age != nil {
		age := *p.Age
		out.Age = &age
	}
	return out
}

// HasFood reports whether food is one of the person's favorite foods.
func (p *Person) HasFood(food string) bool {
	for _, f := range p.FavoriteFoods {
		if f == food {
			return true
		}
	}
	return false
}

// IntPtr is a small helper for optional ages.
func IntPtr(v int) *int { return &v }
