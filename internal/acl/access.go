package acl

import "github.com/FairForge/metaapi/internal/schema"

// Permission is a position in an access string.
type Permission int

const (
	Read Permission = iota
	Write
	DataRead
	DataWrite
)

var permissionChars = map[Permission]byte{
	Read:      'r',
	Write:     'w',
	DataRead:  'r',
	DataWrite: 'w',
}

const accessLength = len(schema.DefaultAccess)

// IsEnabled checks a permission in an 8 character access string.
func IsEnabled(access string, p Permission) bool {
	pos := int(p)
	return len(access) == accessLength && access[pos] == permissionChars[p]
}

// IsValidAccess validates access string shape.
func IsValidAccess(access string) bool {
	if len(access) != accessLength {
		return false
	}
	for i := 0; i < accessLength; i++ {
		c := access[i]
		if c == '-' {
			continue
		}
		if expected, ok := permissionChars[Permission(i)]; !ok || c != expected {
			return false
		}
	}
	return true
}

// AccessString builds access strings permission by permission.
type AccessString struct {
	buf []byte
}

// NewAccessString starts from the private default.
func NewAccessString() *AccessString {
	return &AccessString{buf: []byte(schema.DefaultAccess)}
}

// Enable switches permissions on.
func (a *AccessString) Enable(perms ...Permission) *AccessString {
	for _, p := range perms {
		a.buf[int(p)] = permissionChars[p]
	}
	return a
}

func (a *AccessString) String() string {
	return string(a.buf)
}

// Common access strings.
var (
	AccessReadWrite = NewAccessString().Enable(Read, Write).String()
	AccessReadOnly  = NewAccessString().Enable(Read).String()
)
