package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/profile"
	"github.com/trezcool/notas/storage/database/inmem"
	"github.com/trezcool/notas/tests"
)

var profileRepo profile.Repository

func setup(t *testing.T) *commandLine {
	profileRepo = inmemdb.NewProfileRepository(inmemdb.Open())
	return &commandLine{profiles: profileRepo}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	testutil.CreateProfile(t, profileRepo, "Taken", "taken@test.co", "pwd", core.RoleTeacher)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email but no name", args: []string{"adduser", "-email", "new@test.co"}, extra: extra{pwd: "pwd"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "new@test.co", "-name", "New"}, wantErr: errHelp},
		{name: "invalid role", args: []string{"adduser", "-email", "new@test.co", "-name", "New", "-role", "admin"}, extra: extra{pwd: "pwd"}, wantErr: errInvalidRole},
		{name: "email taken", args: []string{"adduser", "-email", "TAKEN@test.co", "-name", "New"}, extra: extra{pwd: "pwd"}, wantErr: profile.ErrEmailExists},
		{name: "teacher", args: []string{"adduser", "-email", "Teach@Test.co", "-name", " Ada Teacher "}, extra: extra{pwd: "pwd"}},
		{name: "student", args: []string{"adduser", "-email", "stud@test.co", "-name", "Ben", "-role", "student"}, extra: extra{pwd: "pwd"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
		})
	}

	p, err := profileRepo.GetProfileByEmail(context.Background(), "teach@test.co")
	require.NoError(t, err)
	assert.Equal(t, "Ada Teacher", p.FullName)
	assert.Equal(t, core.RoleTeacher, p.Role)
	assert.NoError(t, p.CheckPassword("pwd"))

	p, err = profileRepo.GetProfileByEmail(context.Background(), "stud@test.co")
	require.NoError(t, err)
	assert.Equal(t, core.RoleStudent, p.Role)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	p := testutil.CreateProfile(t, profileRepo, "User", "awe@test.cd", "mdr", core.RoleStudent)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "profile not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: extra{pwd: "lol"}, wantErr: profile.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", p.Email}, extra: extra{pwd: "lol"}},
		{name: "reset with upper-cased email", args: []string{"resetpassword", "-email", "AWE@test.cd"}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)

			refreshed, err := profileRepo.GetProfileByID(context.Background(), p.ID)
			require.NoError(t, err)
			assert.False(t, bytes.Equal(refreshed.PasswordHash, p.PasswordHash), "failed to update new password")
			assert.NoError(t, refreshed.CheckPassword(tt.extra.(extra).pwd))
		})
	}
}
