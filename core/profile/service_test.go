package profile_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/notas/core"
	"github.com/trezcool/notas/core/profile"
	"github.com/trezcool/notas/services/email"
	"github.com/trezcool/notas/services/logger"
	"github.com/trezcool/notas/storage/database/inmem"
	"github.com/trezcool/notas/tests"
)

const strongPwd = "Kx9#mQ2!vL"

type blobStoreMock struct {
	uploads     map[string][]byte
	deleted     []string
	contentType string
}

func (b *blobStoreMock) Upload(_ context.Context, path string, data []byte, contentType string) (string, error) {
	if b.uploads == nil {
		b.uploads = make(map[string][]byte)
	}
	b.uploads[path] = data
	b.contentType = contentType
	return "https://cdn.test.co/avatars/" + path, nil
}

func (b *blobStoreMock) Delete(_ context.Context, url string) error {
	b.deleted = append(b.deleted, url)
	return nil
}

func setup(t *testing.T) (*profile.Service, profile.Repository, *blobStoreMock, *validator.Validate) {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(zerolog.Nop(), conf)
	core.ParseEmailTemplates(logger)
	repo := inmemdb.NewProfileRepository(inmemdb.Open())
	blobs := new(blobStoreMock)
	svc := profile.NewService(repo, blobs, emailsvc.NewConsoleServiceMock(conf), logger, conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	profile.InitValidators(validate, translator)
	return svc, repo, blobs, validate
}

func validationFields(t *testing.T, err error) []string {
	var fields []string
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		for _, fe := range vErrs {
			fields = append(fields, fe.Field())
		}
		return fields
	}
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "want validation error, got %v", err)
	for _, fe := range vErr.Fields {
		fields = append(fields, fe.Field)
	}
	return fields
}

func TestNewProfile_Validate(t *testing.T) {
	svc, repo, _, validate := setup(t)
	testutil.CreateProfile(t, repo, "Taken", "taken@test.co", "", core.RoleStudent)

	valid := func() profile.NewProfile {
		return profile.NewProfile{
			FullName: " Ada Lovelace ", Email: " Ada@Test.CO ", Password: strongPwd, PasswordConfirm: strongPwd, Role: core.RoleTeacher,
		}
	}
	tests := []struct {
		name       string
		mutate     func(np *profile.NewProfile)
		wantFields []string
	}{
		{name: "valid", mutate: func(np *profile.NewProfile) {}},
		{name: "blank name", mutate: func(np *profile.NewProfile) { np.FullName = " " }, wantFields: []string{"full_name"}},
		{name: "bad email", mutate: func(np *profile.NewProfile) { np.Email = "ada" }, wantFields: []string{"email"}},
		{name: "unknown role", mutate: func(np *profile.NewProfile) { np.Role = "admin" }, wantFields: []string{"role"}},
		{
			name:       "passwords mismatch",
			mutate:     func(np *profile.NewProfile) { np.PasswordConfirm = "other" },
			wantFields: []string{"password_confirm"},
		},
		{
			name:       "weak password",
			mutate:     func(np *profile.NewProfile) { np.Password, np.PasswordConfirm = "weakpass", "weakpass" },
			wantFields: []string{"password"},
		},
		{name: "email taken", mutate: func(np *profile.NewProfile) { np.Email = "TAKEN@test.co" }, wantFields: []string{"email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			np := valid()
			tt.mutate(&np)
			err := np.Validate(validate, svc)
			if tt.wantFields == nil {
				require.NoError(t, err)
				assert.Equal(t, "Ada Lovelace", np.FullName)
				assert.Equal(t, "ada@test.co", np.Email)
				return
			}
			assert.Equal(t, tt.wantFields, validationFields(t, err))
		})
	}
}

func TestService_RegisterAndAuthenticate(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()
	emailsvc.ResetSentMessages()

	p, err := svc.Register(ctx, profile.NewProfile{
		FullName: "Ada Lovelace", Email: "ada@test.co", Password: strongPwd, PasswordConfirm: strongPwd, Role: core.RoleStudent,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.IsStudent())

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok, "welcome email sent")
	assert.Equal(t, "ada@test.co", msg.To[0].Address)
	assert.Equal(t, "welcome", msg.TemplateName)

	// duplicate email reaching the store
	_, err = svc.Register(ctx, profile.NewProfile{
		FullName: "Other", Email: "ada@test.co", Password: strongPwd, PasswordConfirm: strongPwd, Role: core.RoleTeacher,
	})
	assert.Equal(t, []string{"email"}, validationFields(t, err))

	got, err := svc.Authenticate(ctx, " ADA@test.co", strongPwd)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ada@test.co", "wrong")
	assert.Equal(t, profile.ErrInvalidCredentials, err)
	_, err = svc.Authenticate(ctx, "nobody@test.co", strongPwd)
	assert.Equal(t, profile.ErrInvalidCredentials, err)
}

func TestService_Update(t *testing.T) {
	svc, repo, blobs, validate := setup(t)
	ctx := context.Background()
	p := testutil.CreateProfile(t, repo, "Ada", "ada@test.co", "", core.RoleTeacher)
	p.AvatarURL = "https://cdn.test.co/old.png"
	_, err := repo.UpdateProfile(ctx, p)
	require.NoError(t, err)

	up := profile.UpdateProfile{FullName: "  Ada Lovelace "}
	require.NoError(t, up.Validate(validate))
	got, err := svc.Update(ctx, p.ID, up)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.FullName)
	assert.Equal(t, "https://cdn.test.co/old.png", got.AvatarURL)
	assert.True(t, got.UpdatedAt.After(p.UpdatedAt) || got.UpdatedAt.Equal(p.UpdatedAt))
	assert.Empty(t, blobs.deleted)

	got, err = svc.Update(ctx, p.ID, profile.UpdateProfile{RemoveAvatar: true})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.FullName)
	assert.Empty(t, got.AvatarURL)
	assert.Equal(t, []string{"https://cdn.test.co/old.png"}, blobs.deleted, "removed photo is deleted")

	_, err = svc.Update(ctx, p.ID, profile.UpdateProfile{RemoveAvatar: true})
	require.NoError(t, err)
	assert.Len(t, blobs.deleted, 1, "nothing to delete without a photo")

	_, err = svc.Update(ctx, "unknown", up)
	assert.Equal(t, profile.ErrNotFound, err)
}

func pngBytes(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestService_UploadAvatar(t *testing.T) {
	svc, repo, blobs, _ := setup(t)
	ctx := context.Background()
	p := testutil.CreateProfile(t, repo, "Ada", "ada@test.co", "", core.RoleStudent)

	t.Run("too large", func(t *testing.T) {
		_, err := svc.UploadAvatar(ctx, p.ID, "big.png", make([]byte, profile.MaxAvatarSize+1))
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, profile.ErrAvatarTooLarge, vErr.Err)
		assert.Empty(t, blobs.uploads, "nothing uploaded")
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := svc.UploadAvatar(ctx, p.ID, "notes.txt", []byte("hello"))
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, profile.ErrAvatarNotImage, vErr.Err)
		assert.Empty(t, blobs.uploads)
	})

	t.Run("too many pixels", func(t *testing.T) {
		data := pngHeader(t, 10000, 5000)
		require.Less(t, len(data), 100, "header only, small on the wire")

		_, err := svc.UploadAvatar(ctx, p.ID, "huge.png", data)
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, profile.ErrAvatarDimensions, vErr.Err)
		assert.Empty(t, blobs.uploads)
	})

	var first string
	t.Run("resized and stored", func(t *testing.T) {
		got, err := svc.UploadAvatar(ctx, p.ID, "me.png", pngBytes(t, 1024, 256))
		require.NoError(t, err)
		require.Len(t, blobs.uploads, 1)
		assert.Equal(t, "image/png", blobs.contentType)
		assert.Empty(t, blobs.deleted)
		first = got.AvatarURL

		for path, data := range blobs.uploads {
			assert.True(t, strings.HasPrefix(path, p.ID+"/"), path)
			assert.True(t, strings.HasSuffix(path, ".png"), path)
			assert.Equal(t, "https://cdn.test.co/avatars/"+path, got.AvatarURL)

			cfg, err := png.DecodeConfig(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 512, cfg.Width)
			assert.Equal(t, 128, cfg.Height)
		}
	})

	t.Run("replaced photo is deleted", func(t *testing.T) {
		require.NotEmpty(t, first)
		got, err := svc.UploadAvatar(ctx, p.ID, "me.png", pngBytes(t, 16, 16))
		require.NoError(t, err)
		assert.NotEqual(t, first, got.AvatarURL)
		assert.Equal(t, []string{first}, blobs.deleted)
	})
}

// pngHeader returns the signature and IHDR chunk of an RGBA PNG, enough for image.DecodeConfig.
func pngHeader(t *testing.T, w, h uint32) []byte {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	require.NoError(t, binary.Write(&ihdr, binary.BigEndian, w))
	require.NoError(t, binary.Write(&ihdr, binary.BigEndian, h))
	ihdr.Write([]byte{8, 6, 0, 0, 0}) // bit depth, RGBA, compression, filter, interlace

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(ihdr.Len()-4)))
	buf.Write(ihdr.Bytes())
	require.NoError(t, binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes())))
	return buf.Bytes()
}

func TestService_PasswordReset(t *testing.T) {
	svc, repo, _, _ := setup(t)
	ctx := context.Background()
	p := testutil.CreateProfile(t, repo, "Ada", "ada@test.co", "Old-pwd-123", core.RoleTeacher)
	emailsvc.ResetSentMessages()

	assert.Equal(t, profile.ErrNotFound, svc.RequestPasswordReset(ctx, "nobody@test.co"))
	require.NoError(t, svc.RequestPasswordReset(ctx, "ADA@test.co"))

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, p.Email, msg.To[0].Address)
	data := msg.TemplateData.(map[string]string)
	assert.Equal(t, profile.EncodeUID(p), data["UID"])
	assert.Contains(t, msg.TextContent, "uid="+data["UID"])

	_, err := svc.ResetPassword(ctx, profile.ResetPassword{UID: data["UID"], Token: "bad-token", Password: strongPwd})
	assert.Equal(t, []string{"token"}, validationFields(t, err))

	_, err = svc.ResetPassword(ctx, profile.ResetPassword{UID: data["UID"], Token: data["Token"], Password: "short"})
	assert.Equal(t, []string{"password"}, validationFields(t, err))

	_, err = svc.ResetPassword(ctx, profile.ResetPassword{UID: data["UID"], Token: data["Token"], Password: strongPwd})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "ada@test.co", strongPwd)
	require.NoError(t, err)

	// the token cannot be reused once the password changed
	_, err = svc.ResetPassword(ctx, profile.ResetPassword{UID: data["UID"], Token: data["Token"], Password: "An0ther!pwd"})
	assert.Equal(t, []string{"token"}, validationFields(t, err))
}
