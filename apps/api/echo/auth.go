package echoapi

import (
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/staff"
	"github.com/trezcool/darasa/core/student"
)

var (
	// appJWTConfig is the default JWT auth middleware config; initialized
	// once from the app config in NewServer.
	appJWTConfig    middleware.JWTConfig
	contextAdminKey = "admin"
)

func initJWTConfig(conf *core.Config) {
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "claimsToken",
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	IsAdmin      bool   `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
	IsStudent    bool   `json:"is_student,omitempty"` // -> STUDENT PORTAL
}

func GetAdminClaims(conf *core.Config, adm staff.Admin, origIat ...int64) *Claims {
	claims := newClaims(conf, adm.ID, origIat...)
	claims.Username = adm.Username
	claims.Email = adm.Email
	claims.IsAdmin = true
	return claims
}

func GetStudentClaims(conf *core.Config, stu student.Student, origIat ...int64) *Claims {
	claims := newClaims(conf, stu.ID, origIat...)
	claims.IsStudent = true
	return claims
}

func newClaims(conf *core.Config, subject string, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   subject,
			Audience:  "Darasa",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
	}
}

func authenticate(ctx echo.Context, conf *core.Config, uname, pwd string, svc staff.ServiceInterface) (*Claims, error) {
	adm, err := svc.GetByUsernameOrEmail(ctx.Request().Context(), uname)
	if err != nil {
		if errors.Cause(err) == staff.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding admin by username or email")
	}
	if err = adm.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !adm.IsActive {
		return nil, errAccountDeactivated
	}
	adm, err = svc.SetLastLogin(ctx.Request().Context(), adm)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetAdminClaims(conf, adm), nil
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextAdmin(ctx echo.Context, svc staff.ServiceInterface, clms ...Claims) (staff.Admin, error) {
	if adm, ok := ctx.Get(contextAdminKey).(staff.Admin); ok {
		return adm, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return staff.Admin{}, errors.Wrap(err, "getting context claims")
		}
	}

	adm, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return staff.Admin{}, errors.Wrap(err, "finding admin by ID")
	}
	ctx.Set(contextAdminKey, adm)
	return adm, nil
}

func refreshToken(ctx echo.Context, deps ServerDeps) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(deps.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	var newClaims *Claims
	switch {
	case claims.IsAdmin:
		adm, err := getContextAdmin(ctx, deps.AdminSvc, claims)
		if err != nil {
			return "", errors.Wrap(err, "getting context admin")
		}
		if !adm.IsActive {
			return "", errAccountDeactivated
		}
		newClaims = GetAdminClaims(deps.Conf, adm, claims.OrigIssuedAt)
	case claims.IsStudent:
		stu, err := deps.StudentSvc.GetByID(ctx.Request().Context(), claims.Subject)
		if err != nil {
			if errors.Cause(err) == student.ErrNotFound {
				return "", errUnauthorized
			}
			return "", errors.Wrap(err, "finding student by ID")
		}
		newClaims = GetStudentClaims(deps.Conf, stu, claims.OrigIssuedAt)
	default:
		return "", errUnauthorized
	}

	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
