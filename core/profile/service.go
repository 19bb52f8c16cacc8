package profile

import (
	"bytes"
	"context"
	"image"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/notas/core"
)

const (
	// MaxAvatarSize is the largest profile photo accepted, checked before any upload.
	MaxAvatarSize = 5 << 20

	// MaxAvatarPixels bounds width*height, read from the image header before decoding.
	MaxAvatarPixels = 40_000_000
)

var (
	avatarMaxDim = 512

	// errors
	ErrNotFound           = errors.New("profile not found")
	ErrEmailExists        = errors.New("a profile with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAvatarTooLarge     = errors.New("image must not exceed 5MB")
	ErrAvatarNotImage     = errors.New("file must be a JPEG, PNG or GIF image")
	ErrAvatarDimensions   = errors.New("image must not exceed 40 megapixels")

	avatarFormats = map[imaging.Format]struct{ ext, contentType string }{
		imaging.JPEG: {"jpg", "image/jpeg"},
		imaging.PNG:  {"png", "image/png"},
		imaging.GIF:  {"gif", "image/gif"},
	}
)

type (
	Repository interface {
		EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error)
		CreateProfile(ctx context.Context, p Profile) (Profile, error)
		GetProfileByID(ctx context.Context, id string) (Profile, error)
		GetProfileByEmail(ctx context.Context, email string) (Profile, error)
		GetProfilesByID(ctx context.Context, ids ...string) ([]Profile, error)
		UpdateProfile(ctx context.Context, p Profile) (Profile, error)
	}

	// BlobStore stores profile photos and returns their public URL.
	// Delete ignores URLs the store did not hand out.
	BlobStore interface {
		Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
		Delete(ctx context.Context, url string) error
	}

	Service struct {
		repo    Repository
		blobs   BlobStore
		mailSvc core.EmailService
		logger  core.Logger
		tokens  tokenGenerator
	}
)

func NewService(repo Repository, blobs BlobStore, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		blobs:   blobs,
		mailSvc: mailSvc,
		logger:  logger,
		tokens: tokenGenerator{
			secret:  []byte(conf.SecretKey),
			timeout: conf.PasswordResetTimeoutDelta,
			now:     time.Now,
		},
	}
}

// CheckUniqueness returns a ValidationError when the email is taken by a profile other than excluded ones.
func (svc *Service) CheckUniqueness(email string, excludedIDs ...string) error {
	exists, err := svc.repo.EmailExists(context.Background(), email, excludedIDs...)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

// Register creates a validated NewProfile and sends the welcome email.
func (svc *Service) Register(ctx context.Context, np NewProfile) (Profile, error) {
	now := time.Now().UTC()
	p := Profile{
		ID:        uuid.New().String(),
		FullName:  np.FullName,
		Email:     np.Email,
		Role:      np.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.SetPassword(np.Password); err != nil {
		return Profile{}, errors.Wrap(err, "hashing password")
	}

	p, err := svc.repo.CreateProfile(ctx, p)
	if err != nil {
		if core.IsConflict(err) {
			return Profile{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return Profile{}, errors.Wrap(err, "creating profile")
	}

	svc.sendWelcomeMail(p)
	return p, nil
}

func (svc *Service) sendWelcomeMail(p Profile) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: p.FullName, Address: p.Email}},
		Subject:      "Welcome!",
		TemplateName: "welcome",
		TemplateData: map[string]string{
			"FullName": p.FullName,
			"Email":    p.Email,
			"Role":     string(p.Role),
		},
	})
}

// Authenticate returns the profile matching the credentials.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Profile, error) {
	p, err := svc.repo.GetProfileByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Profile{}, ErrInvalidCredentials
		}
		return Profile{}, errors.Wrap(err, "finding profile by email")
	}
	if err = p.CheckPassword(pwd); err != nil {
		return Profile{}, ErrInvalidCredentials
	}
	return p, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfileByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Profile, error) {
	return svc.repo.GetProfileByEmail(ctx, core.CleanString(email, true /* lower */))
}

// GetManyByID returns the profiles indexed by ID. Unknown IDs are skipped.
func (svc *Service) GetManyByID(ctx context.Context, ids ...string) (map[string]Profile, error) {
	profiles, err := svc.repo.GetProfilesByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying profiles")
	}
	byID := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	return byID, nil
}

// Update applies a validated UpdateProfile.
func (svc *Service) Update(ctx context.Context, id string, up UpdateProfile) (Profile, error) {
	p, err := svc.repo.GetProfileByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if up.FullName != "" {
		p.FullName = up.FullName
	}
	oldAvatar := ""
	if up.RemoveAvatar {
		oldAvatar, p.AvatarURL = p.AvatarURL, ""
	}
	p.UpdatedAt = time.Now().UTC()
	if p, err = svc.repo.UpdateProfile(ctx, p); err != nil {
		return Profile{}, err
	}
	svc.deleteAvatar(ctx, oldAvatar)
	return p, nil
}

// SetPassword replaces the password of the profile.
func (svc *Service) SetPassword(ctx context.Context, id, pwd string) (Profile, error) {
	p, err := svc.repo.GetProfileByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if tag := checkPassword(pwd, p.FullName, p.Email); tag != "" {
		return Profile{}, core.NewValidationError(nil, core.FieldError{Field: "password", Error: passwordRuleText(tag)})
	}
	if err = p.SetPassword(pwd); err != nil {
		return Profile{}, errors.Wrap(err, "hashing password")
	}
	p.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateProfile(ctx, p)
}

// RequestPasswordReset emails a password reset link to the profile owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	p, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(p)
	return nil
}

func (svc *Service) sendPasswordResetMail(p Profile) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: p.FullName, Address: p.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"FullName": p.FullName,
			"UID":      EncodeUID(p),
			"Token":    svc.tokens.makeToken(p),
		},
	})
}

// ResetPassword sets a new password when the reset token is valid.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetPassword) (Profile, error) {
	invalidErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: "invalid or expired token"})

	id, err := decodeUID(rp.UID)
	if err != nil {
		return Profile{}, invalidErr
	}
	p, err := svc.repo.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Profile{}, invalidErr
		}
		return Profile{}, err
	}
	if err = svc.tokens.verifyToken(p, rp.Token); err != nil {
		return Profile{}, invalidErr
	}
	return svc.SetPassword(ctx, p.ID, rp.Password)
}

// UploadAvatar stores a new profile photo and sets it on the profile.
// The photo is rejected before any upload when it exceeds MaxAvatarSize or is not a supported image;
// accepted photos are scaled down to fit a 512x512 box.
func (svc *Service) UploadAvatar(ctx context.Context, id, filename string, data []byte) (Profile, error) {
	if len(data) > MaxAvatarSize {
		return Profile{}, core.NewValidationError(ErrAvatarTooLarge, core.FieldError{Field: "file", Error: ErrAvatarTooLarge.Error()})
	}

	p, err := svc.repo.GetProfileByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	img, format, err := decodeAvatar(data)
	if err != nil {
		if err != ErrAvatarDimensions {
			err = ErrAvatarNotImage
		}
		return Profile{}, core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
	}
	fmtInfo := avatarFormats[format]

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, imaging.Fit(img, avatarMaxDim, avatarMaxDim, imaging.Lanczos), format, imaging.JPEGQuality(90)); err != nil {
		return Profile{}, errors.Wrap(err, "encoding avatar")
	}

	key := path.Join(p.ID, uuid.New().String()+"."+fmtInfo.ext)
	url, err := svc.blobs.Upload(ctx, key, buf.Bytes(), fmtInfo.contentType)
	if err != nil {
		return Profile{}, errors.Wrap(err, "uploading avatar "+strings.TrimSpace(filename))
	}

	oldAvatar := p.AvatarURL
	p.AvatarURL = url
	p.UpdatedAt = time.Now().UTC()
	if p, err = svc.repo.UpdateProfile(ctx, p); err != nil {
		svc.deleteAvatar(ctx, url)
		return Profile{}, err
	}
	svc.deleteAvatar(ctx, oldAvatar)
	return p, nil
}

// deleteAvatar removes a photo no profile points to anymore. Failures leave an orphan blob and are only logged.
func (svc *Service) deleteAvatar(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := svc.blobs.Delete(ctx, url); err != nil {
		svc.logger.Error("deleting avatar "+url, err)
	}
}

func decodeAvatar(data []byte) (image.Image, imaging.Format, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxAvatarPixels {
		return nil, 0, ErrAvatarDimensions
	}
	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return nil, 0, err
	}
	if _, ok := avatarFormats[format]; !ok {
		return nil, 0, errors.New("unsupported image format " + name)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, err
	}
	return img, format, nil
}

func passwordRuleText(tag string) string {
	switch tag {
	case pwdMinLenTag:
		return pwdMinLenText
	case pwdNoSpaceTag:
		return pwdNoSpaceText
	case pwdNotAllNumTag:
		return pwdNotAllNumText
	case pwdComplexityTag:
		return pwdComplexityText
	case pwdAttrSimTag:
		return pwdAttrSimText
	default:
		return "invalid password"
	}
}
