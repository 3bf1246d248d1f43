package echoapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/client"
	"github.com/atelierhq/atelier/core/staff"
	"github.com/atelierhq/atelier/core/user"
)

const (
	contextClaimsKey  = "claims"
	contextUserKey    = "user"
	contextStaffKey   = "staff"
	contextClientKey  = "client"
	tokenAudience     = "atelier-dashboard"
	authHeaderPrefix  = "Bearer "
	errMissingJWTText = "missing or malformed jwt"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
}

func (c Claims) IsAdmin() bool  { return c.Role == user.RoleAdmin }
func (c Claims) IsStaff() bool  { return c.Role == user.RoleStaff || c.IsAdmin() }
func (c Claims) IsClient() bool { return c.Role == user.RoleClient }

// Tokenizer issues and verifies the API's access tokens.
type Tokenizer struct {
	appName    string
	secret     []byte
	expiration time.Duration
	refresh    time.Duration
}

func NewTokenizer(conf *core.Config) *Tokenizer {
	return &Tokenizer{
		appName:    conf.AppName,
		secret:     []byte(conf.SecretKey),
		expiration: conf.Server.JWTExpirationDelta,
		refresh:    conf.Server.JWTRefreshExpirationDelta,
	}
}

// UserClaims builds the claims of usr. origIat carries the first issue time over token refreshes.
func (tk *Tokenizer) UserClaims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tk.appName,
			Subject:   usr.ID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(tk.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// GenerateToken signs claims with HS256.
func (tk *Tokenizer) GenerateToken(claims *Claims) (string, error) {
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tk.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Token issues a fresh access token for usr.
func (tk *Tokenizer) Token(usr user.User) (string, error) {
	return tk.GenerateToken(tk.UserClaims(usr))
}

func (tk *Tokenizer) parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, new(Claims), func(t *jwt.Token) (interface{}, error) {
		return tk.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuer(tk.appName),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

// Middleware authenticates requests carrying a bearer token and stores its claims in the context.
func (tk *Tokenizer) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, authHeaderPrefix) {
				// EventSource cannot set headers: streams pass the token as a query param
				if raw := ctx.QueryParam("access_token"); raw != "" {
					auth = authHeaderPrefix + raw
				} else {
					return errMissingToken
				}
			}
			claims, err := tk.parse(strings.TrimPrefix(auth, authHeaderPrefix))
			if err != nil {
				return errInvalidToken.WithInternal(err)
			}
			ctx.Set(contextClaimsKey, *claims)
			return next(ctx)
		}
	}
}

// Refresh issues a new token from the context's claims as long as the refresh window is open.
func (tk *Tokenizer) Refresh(claims Claims, usr user.User) (string, error) {
	if !usr.IsActive {
		return "", errAccountDeactivated
	}
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(tk.refresh)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}
	token, err := tk.GenerateToken(tk.UserClaims(usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// getContextStaff returns the staff profile of the current user, if any.
func getContextStaff(ctx echo.Context) (staff.Staff, bool) {
	s, ok := ctx.Get(contextStaffKey).(staff.Staff)
	return s, ok
}

func getContextClient(ctx echo.Context) (client.Client, bool) {
	c, ok := ctx.Get(contextClientKey).(client.Client)
	return c, ok
}
