// Package ldap fetches personnel accounts from the directory service.
package ldap

import (
	"strings"

	goldap "github.com/go-ldap/ldap/v3"
)

// Attribute names returned for every primary account.
const (
	AttrMail        = "mail"
	AttrDisplayName = "displayName"
	AttrDepartment  = "department"
	AttrAccountType = "cernAccountType"
	AttrEmployeeID  = "employeeID"
	AttrUIDNumber   = "uidNumber"
)

// Entry is one directory account: attribute name to raw values.
//
//	{"displayName": ["Joe Foe"], "department": ["IT/CDA"], "uidNumber": ["100000"],
//	 "mail": ["joe.foe@cern.ch"], "cernAccountType": ["Primary"], "employeeID": ["101010"]}
type Entry map[string][][]byte

// EntryFromLDAP keeps the byte values of every attribute of e.
func EntryFromLDAP(e *goldap.Entry) Entry {
	entry := make(Entry, len(e.Attributes))
	for _, attr := range e.Attributes {
		entry[attr.Name] = attr.ByteValues
	}
	return entry
}

// Has reports whether the attribute was returned at all. An attribute present
// with an empty value still counts.
func (e Entry) Has(field string) bool {
	values, ok := e[field]
	return ok && len(values) > 0
}

// Get returns the first value of field, or "" when the attribute is missing.
func (e Entry) Get(field string) string {
	values := e[field]
	if len(values) == 0 {
		return ""
	}
	return string(values[0])
}

// Email is the normalized (lowercased) mail attribute.
func (e Entry) Email() string {
	return strings.ToLower(e.Get(AttrMail))
}

func (e Entry) PersonID() string    { return e.Get(AttrEmployeeID) }
func (e Entry) DisplayName() string { return e.Get(AttrDisplayName) }
func (e Entry) Department() string  { return e.Get(AttrDepartment) }
func (e Entry) UIDNumber() string   { return e.Get(AttrUIDNumber) }
