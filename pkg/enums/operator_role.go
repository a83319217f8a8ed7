package enums

import "fmt"

// OperatorRole gates access to the pipeline trigger endpoints.
type OperatorRole string

const (
	OperatorRoleAdmin  OperatorRole = "admin"
	OperatorRoleViewer OperatorRole = "viewer"
)

func (r OperatorRole) String() string {
	return string(r)
}

func (r OperatorRole) IsValid() bool {
	return r == OperatorRoleAdmin || r == OperatorRoleViewer
}

func ParseOperatorRole(value string) (OperatorRole, error) {
	role := OperatorRole(value)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid operator role %q", value)
	}
	return role, nil
}
