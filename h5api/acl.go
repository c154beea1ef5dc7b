package h5api

// Perm is a tri-state permission flag. The zero value means absent.
type Perm int8

const (
	Perm_Unset Perm = iota
	Perm_Denied
	Perm_Granted
)

// PermFromInt converts the stored 0/1 form.
func PermFromInt(v int64) Perm {
	if v != 0 {
		return Perm_Granted
	}
	return Perm_Denied
}

// Int returns the stored 0/1 form; absent is stored as 0.
func (p Perm) Int() int64 {
	if p == Perm_Granted {
		return 1
	}
	return 0
}

// AclFields lists the permission names in storage order.
var AclFields = []string{"create", "read", "update", "delete", "readACL", "updateACL"}

// AclEntry holds one user's permissions on one object.
type AclEntry struct {
	UserID    int64
	Create    Perm
	Read      Perm
	Update    Perm
	Delete    Perm
	ReadACL   Perm
	UpdateACL Perm
}

// DefaultAcl grants everything to the default user.
func DefaultAcl() AclEntry {
	return AclEntry{
		UserID:    0,
		Create:    Perm_Granted,
		Read:      Perm_Granted,
		Update:    Perm_Granted,
		Delete:    Perm_Granted,
		ReadACL:   Perm_Granted,
		UpdateACL: Perm_Granted,
	}
}

// Perms returns pointers to the permission fields in AclFields order.
func (e *AclEntry) Perms() []*Perm {
	return []*Perm{&e.Create, &e.Read, &e.Update, &e.Delete, &e.ReadACL, &e.UpdateACL}
}

// Merge overwrites the permissions of e that are set in update.
func (e *AclEntry) Merge(update AclEntry) {
	dst := e.Perms()
	for i, p := range update.Perms() {
		if *p != Perm_Unset {
			*dst[i] = *p
		}
	}
}
