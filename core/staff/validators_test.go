package staff_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/staff"
	testutil "github.com/trezcool/darasa/tests"
)

func TestNewAdmin_Validate_passwordPolicy(t *testing.T) {
	svc, _ := setup(t)
	validate, _ := testutil.NewValidator()

	newAdmin := func(pwd string) staff.NewAdmin {
		return staff.NewAdmin{
			Name: "Jane Doe", Username: "janedoe", Email: "jane@test.cd",
			Password: pwd, PasswordConfirm: pwd,
		}
	}

	tests := []struct {
		name    string
		pwd     string
		wantTag string // empty means the password is accepted
	}{
		{name: "too short", pwd: "aB1!", wantTag: "pwdminlen"},
		{name: "contains whitespace", pwd: "aB1! aB1!", wantTag: "pwdnospace"},
		{name: "all numeric", pwd: "92837465", wantTag: "pwdnotallnum"},
		{name: "all lowercase", pwd: "aaaaaaaa", wantTag: "pwdcplx"},
		{name: "no special character", pwd: "janedoe2A", wantTag: "pwdcplx"},
		{name: "similar to username", pwd: "Janedoe1!", wantTag: "pwdtoosim"},
		{name: "similar to email", pwd: "Jane@test.cd1", wantTag: "pwdtoosim"},
		{name: "too common", pwd: "P@ssw0rd", wantTag: "pwdnocommon"},
		{name: "ok", pwd: "S3cr3t-pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			na := newAdmin(tt.pwd)
			err := na.Validate(validate, svc)

			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.ErrorAs(t, err, &vErrs)
			tags := make([]string, 0, len(vErrs))
			for _, fe := range vErrs {
				tags = append(tags, fe.Tag())
			}
			assert.Contains(t, tags, tt.wantTag)
		})
	}
}
