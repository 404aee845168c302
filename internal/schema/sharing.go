package schema

// DefaultAccess is the public access string of a private object.
const DefaultAccess = "--------"

// Sharing is the access-control block attached to shareable objects.
type Sharing struct {
	Owner      string                 `json:"owner,omitempty"`
	Public     string                 `json:"public,omitempty"`
	External   bool                   `json:"external"`
	Users      map[string]AccessEntry `json:"users,omitempty"`
	UserGroups map[string]AccessEntry `json:"userGroups,omitempty"`
}

// AccessEntry grants an access string to one user or user group.
type AccessEntry struct {
	ID     string `json:"id"`
	Access string `json:"access"`
}

// PublicAccess returns the public access string, defaulting to private.
func (s Sharing) PublicAccess() string {
	if s.Public == "" {
		return DefaultAccess
	}
	return s.Public
}

// Access is the computed permission summary for one actor and object.
type Access struct {
	Manage      bool        `json:"manage"`
	Externalize bool        `json:"externalize"`
	Write       bool        `json:"write"`
	Read        bool        `json:"read"`
	Update      bool        `json:"update"`
	Delete      bool        `json:"delete"`
	Data        *DataAccess `json:"data,omitempty"`
}

// DataAccess covers data values on data-shareable types.
type DataAccess struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
}
