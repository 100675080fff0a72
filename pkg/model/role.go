package model

// RoleTypeProduct marks roles that double as orderable analysis products.
const RoleTypeProduct = "product"

// BioInterpreterTitle is the product role that unlocks the optional
// bio-interpreter stage on a run. It never appears in the product picker
// itself.
const BioInterpreterTitle = "BioInterpreter"

// Role is a grantable permission. Roles with Type "product" also name an
// analysis product a user may run.
type Role struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ProductRoles returns the product roles the given user may select for a
// run, and whether the bio-interpreter option is available. Admins see
// every product; everyone else only products present in their own role
// set. The BioInterpreter pseudo-product is excluded from the returned
// list and reported via the second return value instead.
func ProductRoles(roles []Role, u *User) ([]Role, bool) {
	var allowed []Role
	for _, r := range roles {
		if r.Type != RoleTypeProduct {
			continue
		}
		if u.IsAdmin() || u.HasRole(r.ID) {
			allowed = append(allowed, r)
		}
	}

	bioInterpreter := false
	products := allowed[:0]
	for _, r := range allowed {
		if r.Title == BioInterpreterTitle {
			bioInterpreter = true
			continue
		}
		products = append(products, r)
	}
	return products, bioInterpreter
}
