package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/rockymount114/City-Workflow/internal/models"
)

const maxPersonName = 100

// UserInput is the payload an admin submits to create a user.
type UserInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Role       string `json:"role"`
	Department string `json:"department"`
	EmployeeID string `json:"employeeId"`
	IsActive   *bool  `json:"isActive"`
}

// Validate normalizes the input and collects field errors. domain restricts
// e-mail addresses when non-empty.
func (in *UserInput) Validate(domain string) models.FieldErrors {
	errs := models.FieldErrors{}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Department = strings.TrimSpace(in.Department)
	in.EmployeeID = strings.TrimSpace(in.EmployeeID)

	if err := ValidateEmail(in.Email, domain); err != nil {
		errs.Add("email", err.Error())
	}
	if err := ValidatePassword(in.Password); err != nil {
		errs.Add("password", err.Error())
	}
	checkPersonName(errs, "firstName", in.FirstName)
	checkPersonName(errs, "lastName", in.LastName)
	if in.Role == "" {
		in.Role = string(models.RoleApplicant)
	}
	if role, ok := models.ParseRole(in.Role); ok {
		in.Role = string(role)
	} else {
		errs.Add("role", "Role must be one of ADMIN, APPROVER_L1, APPROVER_L2, APPLICANT")
	}
	if in.EmployeeID != "" {
		if err := ValidateEmployeeID(in.EmployeeID); err != nil {
			errs.Add("employeeId", err.Error())
		}
	}
	return errs
}

// UserPatch is a partial user update. Email is immutable.
type UserPatch struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
	EmployeeID *string `json:"employeeId"`
	IsActive   *bool   `json:"isActive"`
	Password   *string `json:"password"`
}

// Apply validates the patch and writes it into u. The new password, if
// any, is returned for hashing by the caller.
func (p UserPatch) Apply(u *models.User) (string, error) {
	errs := models.FieldErrors{}
	if p.FirstName != nil {
		v := strings.TrimSpace(*p.FirstName)
		checkPersonName(errs, "firstName", v)
		u.FirstName = v
	}
	if p.LastName != nil {
		v := strings.TrimSpace(*p.LastName)
		checkPersonName(errs, "lastName", v)
		u.LastName = v
	}
	if p.Role != nil {
		if role, ok := models.ParseRole(*p.Role); ok {
			u.Role = role
		} else {
			errs.Add("role", "Role must be one of ADMIN, APPROVER_L1, APPROVER_L2, APPLICANT")
		}
	}
	if p.Department != nil {
		u.Department = strings.TrimSpace(*p.Department)
	}
	if p.EmployeeID != nil {
		v := strings.TrimSpace(*p.EmployeeID)
		if v == "" {
			u.EmployeeID = nil
		} else if err := ValidateEmployeeID(v); err != nil {
			errs.Add("employeeId", err.Error())
		} else {
			u.EmployeeID = &v
		}
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	var password string
	if p.Password != nil {
		if err := ValidatePassword(*p.Password); err != nil {
			errs.Add("password", err.Error())
		}
		password = *p.Password
	}
	return password, errs.Err()
}

func checkPersonName(errs models.FieldErrors, field, v string) {
	if v == "" {
		errs.Add(field, "is required")
	} else if utf8.RuneCountInString(v) > maxPersonName {
		errs.Add(field, "must be at most 100 characters")
	}
}
