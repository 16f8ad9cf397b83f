package staff_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/staff"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

func setup(t *testing.T) (*staff.Service, context.Context) {
	t.Helper()
	return staff.NewService(inmemdb.NewAdminRepository()), context.Background()
}

func TestService_Create(t *testing.T) {
	svc, ctx := setup(t)

	adm, err := svc.Create(ctx, staff.NewAdmin{
		Name: "Jane Doe", Username: "jane", Email: "jane@test.cd",
		Password: "s3cr3t-pass", PasswordConfirm: "s3cr3t-pass",
	})
	require.NoError(t, err)
	require.NotEmpty(t, adm.ID)
	assert.True(t, adm.IsActive)
	assert.NoError(t, adm.CheckPassword("s3cr3t-pass"))
	assert.Error(t, adm.CheckPassword("wrong"))

	got, err := svc.GetByUsernameOrEmail(ctx, "JANE") // lookups are case-insensitive
	require.NoError(t, err)
	assert.Equal(t, adm.ID, got.ID)

	got, err = svc.GetByUsernameOrEmail(ctx, "jane@test.cd")
	require.NoError(t, err)
	assert.Equal(t, adm.ID, got.ID)
}

func TestNewAdmin_Validate(t *testing.T) {
	svc, ctx := setup(t)
	validate, _ := testutil.NewValidator()

	_, err := svc.Create(ctx, staff.NewAdmin{
		Name: "Jane Doe", Username: "jane", Email: "jane@test.cd",
		Password: "s3cr3t-pass", PasswordConfirm: "s3cr3t-pass",
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		na        staff.NewAdmin
		wantField string
	}{
		{
			"duplicate username",
			staff.NewAdmin{Name: "J", Username: "Jane", Email: "other@test.cd",
				Password: "S3cr3t-pass", PasswordConfirm: "S3cr3t-pass"},
			"username",
		},
		{
			"duplicate email",
			staff.NewAdmin{Name: "J", Username: "janet", Email: "JANE@test.cd",
				Password: "S3cr3t-pass", PasswordConfirm: "S3cr3t-pass"},
			"email",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.na.Validate(validate, svc)
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Len(t, vErr.Fields, 1)
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
		})
	}

	na := staff.NewAdmin{Name: "J", Username: "janet", Email: "janet@test.cd",
		Password: "S3cr3t-pass", PasswordConfirm: "mismatch"}
	assert.Error(t, na.Validate(validate, svc))
}

func TestService_ResetPassword(t *testing.T) {
	svc, ctx := setup(t)

	adm, err := svc.Create(ctx, staff.NewAdmin{
		Name: "Jane Doe", Username: "jane", Email: "jane@test.cd",
		Password: "s3cr3t-pass", PasswordConfirm: "s3cr3t-pass",
	})
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, "jane", "n3w-s3cr3t"))

	adm, err = svc.GetByID(ctx, adm.ID)
	require.NoError(t, err)
	assert.NoError(t, adm.CheckPassword("n3w-s3cr3t"))
	assert.Error(t, adm.CheckPassword("s3cr3t-pass"))

	assert.Equal(t, staff.ErrNotFound, svc.ResetPassword(ctx, "ghost", "whatever"))
}

func TestService_SetLastLogin(t *testing.T) {
	svc, ctx := setup(t)

	adm, err := svc.Create(ctx, staff.NewAdmin{
		Name: "Jane Doe", Username: "jane", Email: "jane@test.cd",
		Password: "s3cr3t-pass", PasswordConfirm: "s3cr3t-pass",
	})
	require.NoError(t, err)
	require.True(t, adm.LastLogin.IsZero())

	adm, err = svc.SetLastLogin(ctx, adm)
	require.NoError(t, err)
	assert.False(t, adm.LastLogin.IsZero())
}
