package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/profile"
)

var errInvalidRole = errors.New("role must be teacher or student")

// addUser creates a profile. The password policy is not enforced here.
func (cli *commandLine) addUser(name, email, role, pwd string) (profile.Profile, error) {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	r := core.Role(core.CleanString(role, true /* lower */))
	if !r.Valid() {
		return profile.Profile{}, errInvalidRole
	}

	exists, err := cli.profiles.EmailExists(ctx, email)
	if err != nil {
		return profile.Profile{}, err
	}
	if exists {
		return profile.Profile{}, profile.ErrEmailExists
	}

	now := time.Now().UTC()
	p := profile.Profile{
		ID:        uuid.New().String(),
		FullName:  core.CleanString(name),
		Email:     email,
		Role:      r,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = p.SetPassword(pwd); err != nil {
		return profile.Profile{}, err
	}
	return cli.profiles.CreateProfile(ctx, p)
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	p, err := cli.profiles.GetProfileByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err = p.SetPassword(pwd); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	_, err = cli.profiles.UpdateProfile(ctx, p)
	return err
}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
