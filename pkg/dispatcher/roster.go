// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package dispatcher

import (
	"github.com/jllopis/docket/pkg/errors"
)

// Assignment is one person with the responsibilities they own, in order.
type Assignment struct {
	Person           string   `json:"person" yaml:"name"`
	Responsibilities []string `json:"responsibilities" yaml:"responsibilities"`
}

// Roster maps people to responsibilities. People keep their registration
// order and no responsibility belongs to more than one person. Entries are
// never changed or removed once added.
//
// Roster is not safe for concurrent use; Dispatcher guards its own copy.
type Roster struct {
	people []string
	duties map[string][]string
	owners map[string]string
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{
		duties: make(map[string][]string),
		owners: make(map[string]string),
	}
}

// Add registers name with responsibilities. Nothing is added when it fails.
func (r *Roster) Add(name string, responsibilities []string) error {
	if name == "" {
		return errors.New(errors.CodeInvalidInput, "person name must not be empty", nil)
	}
	if _, ok := r.duties[name]; ok {
		return errors.Newf(errors.CodeDuplicatePerson, "person '%s' is already registered", name).
			WithContext("person", name)
	}

	seen := make(map[string]struct{}, len(responsibilities))
	for _, resp := range responsibilities {
		if resp == "" {
			return errors.New(errors.CodeInvalidInput, "responsibility must not be empty", nil).
				WithContext("person", name)
		}
		if owner, ok := r.owners[resp]; ok {
			return errors.Newf(errors.CodeDuplicateResponsibility, "responsibility '%s' is already assigned", resp).
				WithContext("responsibility", resp).
				WithContext("owner", owner)
		}
		if _, ok := seen[resp]; ok {
			return errors.Newf(errors.CodeDuplicateResponsibility, "responsibility '%s' is listed more than once", resp).
				WithContext("responsibility", resp).
				WithContext("person", name)
		}
		seen[resp] = struct{}{}
	}

	r.people = append(r.people, name)
	r.duties[name] = append([]string(nil), responsibilities...)
	for _, resp := range responsibilities {
		r.owners[resp] = name
	}
	return nil
}

// Len returns the number of registered people.
func (r *Roster) Len() int { return len(r.people) }

// People returns the registered people in registration order.
func (r *Roster) People() []string {
	return append([]string(nil), r.people...)
}

// Responsibilities returns every responsibility, person by person in
// registration order and then in each person's own order.
func (r *Roster) Responsibilities() []string {
	out := make([]string, 0, len(r.owners))
	for _, p := range r.people {
		out = append(out, r.duties[p]...)
	}
	return out
}

// Owner returns the person owning responsibility.
func (r *Roster) Owner(responsibility string) (string, bool) {
	owner, ok := r.owners[responsibility]
	return owner, ok
}

// Assignments returns a copy of the roster in registration order.
func (r *Roster) Assignments() []Assignment {
	out := make([]Assignment, 0, len(r.people))
	for _, p := range r.people {
		out = append(out, Assignment{Person: p, Responsibilities: append([]string(nil), r.duties[p]...)})
	}
	return out
}
