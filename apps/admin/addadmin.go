package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/staff"
)

// addAdmin creates an admin account, or resets the password if the
// username already exists.
func (cli *commandLine) addAdmin(name, uname, email, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	if _, err := cli.adminSvc.GetByUsernameOrEmail(ctx, uname); err == nil {
		return cli.adminSvc.ResetPassword(ctx, uname, pwd)
	} else if errors.Cause(err) != staff.ErrNotFound {
		return err
	}

	na := staff.NewAdmin{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := na.Validate(cli.validate, cli.adminSvc); err != nil {
		return err
	}
	_, err := cli.adminSvc.Create(ctx, na)
	return err
}
