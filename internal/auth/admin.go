package auth

import (
	"strings"

	"golang.org/x/text/cases"
)

// AdminAllowlist matches emails exactly after Unicode case folding.
type AdminAllowlist struct {
	emails map[string]struct{}
}

func NewAdminAllowlist(emails []string) *AdminAllowlist {
	fold := cases.Fold()
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		set[fold.String(e)] = struct{}{}
	}
	return &AdminAllowlist{emails: set}
}

func (a *AdminAllowlist) IsAdmin(id *Identity) bool {
	if a == nil || id == nil || strings.TrimSpace(id.Email) == "" {
		return false
	}
	_, ok := a.emails[cases.Fold().String(strings.TrimSpace(id.Email))]
	return ok
}
